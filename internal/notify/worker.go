package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one queued notification. Tasks are enqueued only after the
// transaction that produced them has committed.
type Task struct {
	Recipient  string
	Subject    string
	Body       string
	Attachment *Attachment
}

const sendTimeout = 30 * time.Second

// Worker consumes queued tasks and hands them to the mailer on a background
// goroutine, keeping dispatch latency and failures off the caller's path.
// Send failures are logged and dropped; nothing is retried or re-driven.
type Worker struct {
	mailer Mailer
	logger *zap.Logger
	tasks  chan Task

	stopOnce sync.Once
	done     chan struct{}
}

// NewWorker creates a worker with a bounded queue.
func NewWorker(mailer Mailer, queueSize int, logger *zap.Logger) *Worker {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Worker{
		mailer: mailer,
		logger: logger,
		tasks:  make(chan Task, queueSize),
		done:   make(chan struct{}),
	}
}

// Start launches the consumer goroutine.
func (w *Worker) Start() {
	go w.run()
}

// Enqueue queues a task without ever blocking the caller. When the queue is
// full the task is dropped and logged; the triggering transaction has already
// committed and must not be affected.
func (w *Worker) Enqueue(task Task) {
	select {
	case w.tasks <- task:
	default:
		w.logger.Warn("Notification queue full, dropping task",
			zap.String("recipient", task.Recipient),
			zap.String("subject", task.Subject),
		)
	}
}

// Stop drains the queue and waits for the consumer to exit.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.tasks)
	})
	<-w.done
}

func (w *Worker) run() {
	defer close(w.done)

	for task := range w.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := w.mailer.Send(ctx, task.Recipient, task.Subject, task.Body, task.Attachment)
		cancel()

		if err != nil {
			w.logger.Error("Notification send failed",
				zap.String("recipient", task.Recipient),
				zap.String("subject", task.Subject),
				zap.Error(err),
			)
			continue
		}

		w.logger.Debug("Notification dispatched",
			zap.String("recipient", task.Recipient),
			zap.String("subject", task.Subject),
		)
	}
}
