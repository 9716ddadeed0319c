package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"riceshop/backend/internal/domain"
	"riceshop/backend/internal/store"
)

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, productNotFound(err)
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductRequest) (domain.Product, error) {
	product, err := s.productFromRequest(req)
	if err != nil {
		return domain.Product{}, err
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, duplicateProductName(err)
	}

	s.reports.Invalidate(ctx)
	log.Info().Str("product_id", created.ID).Str("name", created.Name).Str("by", actorOrAnonymous(ctx).Username).Msg("product created")
	return *created, nil
}

// UpdateProduct replaces every editable field of the product.
func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductRequest) (domain.Product, error) {
	product, err := s.productFromRequest(req)
	if err != nil {
		return domain.Product{}, err
	}
	product.ID = strings.TrimSpace(id)

	updated, err := s.repo.UpdateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, duplicateProductName(productNotFound(err))
	}

	s.reports.Invalidate(ctx)
	log.Info().Str("product_id", updated.ID).Str("by", actorOrAnonymous(ctx).Username).Msg("product updated")
	return *updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.DeleteProduct(ctx, strings.TrimSpace(id)); err != nil {
		return productNotFound(err)
	}
	s.reports.Invalidate(ctx)
	return nil
}

func (s *Service) ClearProducts(ctx context.Context) (int, error) {
	n, err := s.repo.DeleteAllProducts(ctx)
	if err != nil {
		return 0, err
	}
	s.reports.Invalidate(ctx)
	log.Warn().Int("count", n).Str("by", actorOrAnonymous(ctx).Username).Msg("all products cleared")
	return n, nil
}

func (s *Service) productFromRequest(req domain.ProductRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Type = domain.RiceType(strings.TrimSpace(string(req.Type)))

	if req.Name == "" || req.Type == "" || req.CurrentStockBags == nil || req.PricePerBag == nil {
		return domain.Product{}, fmt.Errorf("%w: Missing required fields.", store.ErrInvalidArgument)
	}
	if err := s.checkStruct(req); err != nil {
		return domain.Product{}, err
	}
	if !req.Type.Valid() {
		return domain.Product{}, fmt.Errorf("%w: type must be one of %v", store.ErrInvalidArgument, domain.RiceTypes)
	}
	if !req.PricePerBag.IsPositive() {
		return domain.Product{}, fmt.Errorf("%w: pricePerBag must be greater than zero", store.ErrInvalidArgument)
	}

	cost := decimal.Zero
	if req.CostPricePerBag != nil {
		if req.CostPricePerBag.IsNegative() {
			return domain.Product{}, fmt.Errorf("%w: costPricePerBag cannot be negative", store.ErrInvalidArgument)
		}
		cost = *req.CostPricePerBag
	}

	return domain.Product{
		Name:             req.Name,
		Type:             req.Type,
		CurrentStockBags: *req.CurrentStockBags,
		PricePerBag:      *req.PricePerBag,
		CostPricePerBag:  cost,
	}, nil
}

func productNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: Product not found.", store.ErrNotFound)
	}
	return err
}

func duplicateProductName(err error) error {
	if errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("%w: Product with this name already exists.", store.ErrConflict)
	}
	return err
}
