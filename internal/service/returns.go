package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"riceshop/backend/internal/domain"
	"riceshop/backend/internal/pricing"
	"riceshop/backend/internal/store"
)

const defaultReturnReason = "Not specified"

// ProcessReturn refunds at the product's current prices and puts the quantity back into stock.
// Returned quantities are not checked against what the referenced sale actually sold.
func (s *Service) ProcessReturn(ctx context.Context, req domain.ReturnRequest) (domain.Return, error) {
	if len(req.ReturnItems) == 0 {
		return domain.Return{}, fmt.Errorf("%w: No items provided for return.", store.ErrInvalidArgument)
	}
	if err := s.checkStruct(req); err != nil {
		return domain.Return{}, err
	}

	saleID := strings.TrimSpace(req.SaleID)
	if saleID != "" {
		if _, err := s.repo.GetSale(ctx, saleID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Return{}, fmt.Errorf("%w: Sale %s not found.", store.ErrNotFound, saleID)
			}
			return domain.Return{}, err
		}
	}

	plan := newStockPlan()
	items := make([]domain.ReturnItem, 0, len(req.ReturnItems))
	totalRefund := decimal.Zero

	for _, line := range req.ReturnItems {
		if line.QuantityReturnedLooseKg.IsNegative() {
			return domain.Return{}, fmt.Errorf("%w: quantityReturnedLooseKg cannot be negative", store.ErrInvalidArgument)
		}

		change, err := plan.lookup(ctx, s.repo, line.ProductID, line.ProductName)
		if err != nil {
			return domain.Return{}, err
		}
		product := change.product

		kg := pricing.ToKg(line.QuantityReturnedBags, line.QuantityReturnedLooseKg)
		if !kg.IsPositive() {
			return domain.Return{}, fmt.Errorf("%w: Invalid return quantity for %s. Must be positive.", store.ErrInvalidArgument, product.Name)
		}
		if change.kg.Add(kg).GreaterThan(pricing.MaxLineKg) {
			return domain.Return{}, fmt.Errorf("%w: Invalid return quantity for %s. Cannot exceed %s kg.", store.ErrInvalidArgument, product.Name, pricing.MaxLineKg)
		}
		if line.QuantityReturnedLooseKg.IsPositive() && (line.PricePerKgLooseAtReturn == nil || !line.PricePerKgLooseAtReturn.IsPositive()) {
			return domain.Return{}, fmt.Errorf("%w: Price per loose kg must be a positive number for returned item %s.", store.ErrInvalidArgument, product.Name)
		}
		change.kg = change.kg.Add(kg)

		priced := pricing.Line{
			Bags:            line.QuantityReturnedBags,
			LooseKg:         line.QuantityReturnedLooseKg,
			PricePerBag:     product.PricePerBag,
			PricePerKgLoose: pricing.ResolveLoosePrice(line.PricePerKgLooseAtReturn, product.PricePerBag),
			CostPerBag:      product.CostPricePerBag,
		}
		item := domain.ReturnItem{
			ProductID:               product.ID,
			ProductName:             product.Name,
			QuantityReturnedBags:    priced.Bags,
			QuantityReturnedLooseKg: priced.LooseKg,
			PricePerBagAtReturn:     priced.PricePerBag,
			PricePerKgLooseAtReturn: priced.PricePerKgLoose,
			CostPricePerBagAtReturn: priced.CostPerBag,
			RefundAmount:            priced.Amount(),
			ProfitReversed:          priced.Profit(),
		}
		items = append(items, item)
		totalRefund = totalRefund.Add(item.RefundAmount)
	}

	if err := plan.apply(ctx, s.repo, pricing.RestockedBags); err != nil {
		return domain.Return{}, err
	}

	actor := actorOrAnonymous(ctx)
	ret, err := s.repo.CreateReturn(ctx, domain.Return{
		SaleID:              saleID,
		ReturnItems:         items,
		TotalRefundAmount:   totalRefund,
		Reason:              defaultString(strings.TrimSpace(req.Reason), defaultReturnReason),
		ProcessedBy:         actor.ID,
		ProcessedByUsername: actor.Username,
		ReturnDate:          s.now(),
	})
	if err != nil {
		log.Error().Err(err).Str("by", actor.Username).Str("refund", totalRefund.String()).Msg("stock restored but return was not recorded")
		return domain.Return{}, err
	}

	s.reports.Invalidate(ctx)
	log.Info().Str("return_id", ret.ID).Str("refund", ret.TotalRefundAmount.String()).Str("by", actor.Username).Msg("return processed")
	return *ret, nil
}

// ListReturns returns the newest returns first.
func (s *Service) ListReturns(ctx context.Context) ([]domain.Return, error) {
	returns, err := s.repo.ListReturns(ctx)
	if err != nil {
		return nil, err
	}
	slices.Reverse(returns)
	return returns, nil
}

func (s *Service) ClearReturns(ctx context.Context) (int, error) {
	n, err := s.repo.DeleteAllReturns(ctx)
	if err != nil {
		return 0, err
	}
	log.Warn().Int("count", n).Str("by", actorOrAnonymous(ctx).Username).Msg("returns history cleared")
	return n, nil
}
