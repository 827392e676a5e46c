package service

import (
	"context"
	"fmt"

	"shopfront/internal/notify"
	"shopfront/internal/repository"

	"go.uber.org/zap"
)

// RestockService notifies wishlisting users when a product comes back in
// stock. The caller owns the transition check: OnStockReplenished is invoked
// only after stock has been observed moving from <= 0 to > 0.
type RestockService interface {
	OnStockReplenished(ctx context.Context, productID int64)
}

type restockService struct {
	catalog    repository.CatalogRepository
	wishlists  repository.WishlistRepository
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewRestockService creates a new instance of RestockService
func NewRestockService(
	catalog repository.CatalogRepository,
	wishlists repository.WishlistRepository,
	dispatcher Dispatcher,
	logger *zap.Logger,
) RestockService {
	return &restockService{
		catalog:    catalog,
		wishlists:  wishlists,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// OnStockReplenished queues one back-in-stock notification per distinct
// wishlist recipient. Each recipient is independent: a failed send never
// stops the rest, and nothing here propagates to the stock update path.
func (s *restockService) OnStockReplenished(ctx context.Context, productID int64) {
	product, err := s.catalog.FindByID(ctx, productID)
	if err != nil {
		s.logger.Error("Restock notification: product lookup failed",
			zap.Int64("product_id", productID),
			zap.Error(err),
		)
		return
	}

	recipients, err := s.wishlists.FindRecipientsForProduct(ctx, productID)
	if err != nil {
		s.logger.Error("Restock notification: recipient lookup failed",
			zap.Int64("product_id", productID),
			zap.Error(err),
		)
		return
	}

	for _, recipient := range recipients {
		s.dispatcher.Enqueue(notify.Task{
			Recipient: recipient.Address,
			Subject:   fmt.Sprintf("%s is back in stock", product.Title),
			Body: fmt.Sprintf(
				"Hello %s,\n\n%s from your wishlist is available again.\n",
				recipient.DisplayName, product.Title,
			),
		})
	}

	s.logger.Info("Restock notifications queued",
		zap.Int64("product_id", productID),
		zap.Int("recipients", len(recipients)),
	)
}
