package service

import (
	"context"
	"fmt"
	"time"

	"shopfront/internal/domain"
	"shopfront/internal/repository"

	"go.uber.org/zap"
)

// CatalogService serves product reads and the admin update path. It owns the
// restock-transition comparison: a stock write that moves a product from out
// of stock to available triggers the restock watcher.
type CatalogService interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error)
	CreateProduct(ctx context.Context, product *domain.Product) error
	UpdateProduct(ctx context.Context, product *domain.Product) error
	SetStock(ctx context.Context, id int64, stock int) error
}

type catalogService struct {
	catalog repository.CatalogRepository
	restock RestockService
	logger  *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	catalog repository.CatalogRepository,
	restock RestockService,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		catalog: catalog,
		restock: restock,
		logger:  logger,
	}
}

// GetProduct retrieves a single product
func (s *catalogService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return s.catalog.FindByID(ctx, id)
}

// ListProducts retrieves a product page
func (s *catalogService) ListProducts(ctx context.Context, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	return s.catalog.List(ctx, page, pageSize, sortBy, sortOrder)
}

// CreateProduct inserts a new catalog entry
func (s *catalogService) CreateProduct(ctx context.Context, product *domain.Product) error {
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := s.catalog.Create(ctx, product); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// UpdateProduct updates title, description, price and rating. Stock goes
// through SetStock so the restock transition is never missed.
func (s *catalogService) UpdateProduct(ctx context.Context, product *domain.Product) error {
	product.UpdatedAt = time.Now().UTC()
	return s.catalog.Update(ctx, product)
}

// SetStock overwrites stock and fires the restock watcher when the write was
// a replenishment transition.
func (s *catalogService) SetStock(ctx context.Context, id int64, stock int) error {
	restocked, err := s.catalog.SetStock(ctx, id, stock)
	if err != nil {
		return err
	}

	if restocked {
		s.logger.Info("Product restocked",
			zap.Int64("product_id", id),
			zap.Int("stock", stock),
		)
		s.restock.OnStockReplenished(ctx, id)
	}

	return nil
}
