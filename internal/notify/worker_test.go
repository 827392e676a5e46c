package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// blockingMailer holds every send until released, to keep the queue full
type blockingMailer struct {
	mu      sync.Mutex
	sent    []string
	release chan struct{}
	fail    bool
}

func newBlockingMailer() *blockingMailer {
	return &blockingMailer{release: make(chan struct{})}
}

func (m *blockingMailer) Send(_ context.Context, to, _, _ string, _ *Attachment) error {
	<-m.release
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	if m.fail {
		return errors.New("send failed")
	}
	return nil
}

func (m *blockingMailer) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

func TestWorkerDeliversQueuedTasks(t *testing.T) {
	mailer := newBlockingMailer()
	close(mailer.release) // sends complete immediately

	worker := NewWorker(mailer, 8, zap.NewNop())
	worker.Start()

	worker.Enqueue(Task{Recipient: "a@example.com", Subject: "one"})
	worker.Enqueue(Task{Recipient: "b@example.com", Subject: "two"})

	worker.Stop()

	sent := mailer.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(sent))
	}
	if sent[0] != "a@example.com" || sent[1] != "b@example.com" {
		t.Errorf("unexpected delivery order: %v", sent)
	}
}

// Enqueue must never block the caller, even with a saturated queue and a
// stuck mailer: the triggering transaction has already committed.
func TestWorkerEnqueueNeverBlocks(t *testing.T) {
	mailer := newBlockingMailer() // all sends blocked

	worker := NewWorker(mailer, 1, zap.NewNop())
	worker.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			worker.Enqueue(Task{Recipient: "x@example.com", Subject: "flood"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}

	close(mailer.release)
	worker.Stop()
}

// A failed send is logged and dropped; later tasks still go out.
func TestWorkerContinuesAfterSendFailure(t *testing.T) {
	mailer := newBlockingMailer()
	mailer.fail = true
	close(mailer.release)

	worker := NewWorker(mailer, 8, zap.NewNop())
	worker.Start()

	worker.Enqueue(Task{Recipient: "a@example.com", Subject: "one"})
	worker.Enqueue(Task{Recipient: "b@example.com", Subject: "two"})

	worker.Stop()

	if got := len(mailer.Sent()); got != 2 {
		t.Errorf("expected both sends attempted, got %d", got)
	}
}

func TestDisabledMailerReportsSuccess(t *testing.T) {
	mailer := &disabledMailer{logger: zap.NewNop()}

	err := mailer.Send(context.Background(), "a@example.com", "subject", "body", nil)
	if err != nil {
		t.Errorf("disabled mailer must never fail, got %v", err)
	}
}
