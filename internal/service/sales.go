package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"riceshop/backend/internal/domain"
	"riceshop/backend/internal/pricing"
	"riceshop/backend/internal/store"
)

// stockChange accumulates the kilograms a transaction moves for one product, so repeated
// lines for the same product are checked and written once.
type stockChange struct {
	product domain.Product
	kg      decimal.Decimal
}

type stockPlan struct {
	changes map[string]*stockChange
	order   []string
}

func newStockPlan() *stockPlan {
	return &stockPlan{changes: make(map[string]*stockChange)}
}

func (p *stockPlan) lookup(ctx context.Context, repo store.ProductStore, productID string, label string) (*stockChange, error) {
	productID = strings.TrimSpace(productID)
	if change, ok := p.changes[productID]; ok {
		return change, nil
	}

	product, err := repo.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: Product %s not found.", store.ErrNotFound, defaultString(label, productID))
		}
		return nil, err
	}

	change := &stockChange{product: *product, kg: decimal.Zero}
	p.changes[productID] = change
	p.order = append(p.order, productID)
	return change, nil
}

// apply writes the new stock level of every product in the plan concurrently and waits for all of them.
func (p *stockPlan) apply(ctx context.Context, repo store.ProductStore, next func(stockBags int, kg decimal.Decimal) int) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range p.order {
		change := p.changes[id]
		g.Go(func() error {
			bags := next(change.product.CurrentStockBags, change.kg)
			if err := repo.SetStock(gctx, change.product.ID, bags); err != nil {
				return fmt.Errorf("update stock for %s: %w", change.product.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// RecordSale validates every cart line against current stock before touching anything,
// then lowers stock and writes the sale.
func (s *Service) RecordSale(ctx context.Context, req domain.SaleRequest) (domain.Sale, error) {
	if len(req.CartItems) == 0 {
		return domain.Sale{}, fmt.Errorf("%w: Cart is empty.", store.ErrInvalidArgument)
	}
	if !req.PaymentMode.Valid() {
		return domain.Sale{}, fmt.Errorf("%w: Invalid payment mode provided.", store.ErrInvalidArgument)
	}
	if err := s.checkStruct(req); err != nil {
		return domain.Sale{}, err
	}

	plan := newStockPlan()
	items := make([]domain.SaleItem, 0, len(req.CartItems))
	totalAmount := decimal.Zero
	totalProfit := decimal.Zero

	for _, line := range req.CartItems {
		if line.QuantitySoldLooseKg.IsNegative() {
			return domain.Sale{}, fmt.Errorf("%w: quantitySoldLooseKg cannot be negative", store.ErrInvalidArgument)
		}

		change, err := plan.lookup(ctx, s.repo, line.ProductID, line.ProductName)
		if err != nil {
			return domain.Sale{}, err
		}
		product := change.product

		if line.QuantitySoldLooseKg.IsPositive() && (line.PricePerKgLooseAtSale == nil || !line.PricePerKgLooseAtSale.IsPositive()) {
			return domain.Sale{}, fmt.Errorf("%w: Price per loose kg must be a positive number for %s.", store.ErrInvalidArgument, product.Name)
		}

		kg := pricing.ToKg(line.QuantitySoldBags, line.QuantitySoldLooseKg)
		if !kg.IsPositive() {
			return domain.Sale{}, fmt.Errorf("%w: Invalid sale quantity for %s. Total quantity must be positive.", store.ErrInvalidArgument, product.Name)
		}
		if kg.GreaterThan(pricing.MaxLineKg) {
			return domain.Sale{}, fmt.Errorf("%w: Invalid sale quantity for %s. Total quantity cannot exceed %s kg.", store.ErrInvalidArgument, product.Name, pricing.MaxLineKg)
		}

		requested := change.kg.Add(kg)
		available := pricing.ToKg(product.CurrentStockBags, decimal.Zero)
		if available.LessThan(requested) {
			return domain.Sale{}, fmt.Errorf("%w: Insufficient stock for %s. Available: %d bags (%s kg). Trying to sell %s kg.",
				store.ErrInsufficientStock, product.Name, product.CurrentStockBags, available, requested)
		}
		change.kg = requested

		priced := pricing.Line{
			Bags:            line.QuantitySoldBags,
			LooseKg:         line.QuantitySoldLooseKg,
			PricePerBag:     product.PricePerBag,
			PricePerKgLoose: pricing.ResolveLoosePrice(line.PricePerKgLooseAtSale, product.PricePerBag),
			CostPerBag:      product.CostPricePerBag,
		}
		item := saleItemFromLine(product, priced)
		items = append(items, item)
		totalAmount = totalAmount.Add(item.Subtotal)
		totalProfit = totalProfit.Add(item.ProfitPerItem)
	}

	if err := plan.apply(ctx, s.repo, pricing.RemainingBags); err != nil {
		return domain.Sale{}, err
	}

	actor := actorOrAnonymous(ctx)
	sale, err := s.repo.CreateSale(ctx, domain.Sale{
		SaleItems:          items,
		TotalAmount:        totalAmount,
		TotalProfit:        totalProfit,
		RecordedBy:         actor.ID,
		RecordedByUsername: actor.Username,
		PaymentMode:        req.PaymentMode,
		CreatedAt:          s.now(),
	})
	if err != nil {
		// Stock is already lowered and is not rolled back.
		log.Error().Err(err).Str("by", actor.Username).Str("total", totalAmount.String()).Msg("stock updated but sale was not recorded")
		return domain.Sale{}, err
	}

	s.reports.Invalidate(ctx)
	log.Info().Str("sale_id", sale.ID).Str("total", sale.TotalAmount.String()).Str("mode", string(sale.PaymentMode)).Str("by", actor.Username).Msg("sale recorded")
	return *sale, nil
}

func saleItemFromLine(product domain.Product, line pricing.Line) domain.SaleItem {
	return domain.SaleItem{
		ProductID:             product.ID,
		ProductName:           product.Name,
		QuantitySoldBags:      line.Bags,
		QuantitySoldLooseKg:   line.LooseKg,
		PricePerBagAtSale:     line.PricePerBag,
		PricePerKgLooseAtSale: line.PricePerKgLoose,
		CostPricePerBagAtSale: line.CostPerBag,
		Subtotal:              line.Amount(),
		ProfitPerItem:         line.Profit(),
	}
}

// ListSales returns the newest sales first.
func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	sales, err := s.repo.ListSales(ctx, store.SaleFilter{})
	if err != nil {
		return nil, err
	}
	slices.Reverse(sales)
	return sales, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Sale{}, fmt.Errorf("%w: Sale not found.", store.ErrNotFound)
		}
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ClearSales(ctx context.Context) (int, error) {
	n, err := s.repo.DeleteAllSales(ctx)
	if err != nil {
		return 0, err
	}
	s.reports.Invalidate(ctx)
	log.Warn().Int("count", n).Str("by", actorOrAnonymous(ctx).Username).Msg("sales history cleared")
	return n, nil
}
