// Package report derives sales summaries from recorded sales. Every figure comes from the
// prices captured on the sale items, never from the current catalog, except the by-type
// breakdown which needs the product's type.
package report

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"riceshop/backend/internal/cache"
	"riceshop/backend/internal/domain"
	"riceshop/backend/internal/pricing"
	"riceshop/backend/internal/store"
)

type Source interface {
	ListSales(ctx context.Context, filter store.SaleFilter) ([]domain.Sale, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

type Aggregator struct {
	source   Source
	cache    cache.ReportCache
	cacheTTL time.Duration
}

func NewAggregator(source Source, cacheStore cache.ReportCache, cacheTTL time.Duration) *Aggregator {
	if cacheStore == nil {
		cacheStore = cache.NoopReportCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}

	return &Aggregator{
		source:   source,
		cache:    cacheStore,
		cacheTTL: cacheTTL,
	}
}

// Invalidate makes every cached report stale. Callers run it after any write that reports read.
func (a *Aggregator) Invalidate(ctx context.Context) {
	if err := a.cache.Bump(ctx); err != nil {
		log.Warn().Err(err).Msg("report cache invalidation failed")
	}
}

func (a *Aggregator) SalesSummary(ctx context.Context, window store.SaleFilter, period Period, label domain.ReportPeriod) (domain.SalesSummary, error) {
	var summary domain.SalesSummary
	err := a.cached(ctx, &summary, func() error {
		sales, err := a.source.ListSales(ctx, window)
		if err != nil {
			return err
		}
		summary = Summarize(sales, period, label)
		return nil
	}, "summary", string(period), windowKey(window), label.StartDate, label.EndDate)
	return summary, err
}

func (a *Aggregator) MaxProfitProduct(ctx context.Context, window store.SaleFilter) (*domain.ProductProfit, error) {
	var best *domain.ProductProfit
	err := a.cached(ctx, &best, func() error {
		sales, err := a.source.ListSales(ctx, window)
		if err != nil {
			return err
		}
		best = MaxProfit(sales)
		return nil
	}, "max-profit", windowKey(window))
	return best, err
}

func (a *Aggregator) Trends(ctx context.Context, window store.SaleFilter, period Period) ([]domain.TrendPoint, error) {
	var points []domain.TrendPoint
	err := a.cached(ctx, &points, func() error {
		sales, err := a.source.ListSales(ctx, window)
		if err != nil {
			return err
		}
		points = Trend(sales, period)
		return nil
	}, "trends", string(period), windowKey(window))
	return points, err
}

func (a *Aggregator) ByProductType(ctx context.Context, window store.SaleFilter) ([]domain.TypePerformance, error) {
	var rows []domain.TypePerformance
	err := a.cached(ctx, &rows, func() error {
		sales, err := a.source.ListSales(ctx, window)
		if err != nil {
			return err
		}
		products, err := a.source.GetProductsByIDs(ctx, productIDs(sales))
		if err != nil {
			return err
		}
		rows = TypeBreakdown(sales, products)
		return nil
	}, "by-type", windowKey(window))
	return rows, err
}

// cached serves dest from the report cache or fills it with compute and stores the result.
// Cache failures are logged and never fail the report.
func (a *Aggregator) cached(ctx context.Context, dest any, compute func() error, parts ...string) error {
	gen, err := a.cache.Generation(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("report cache generation lookup failed")
		return compute()
	}

	key := buildCacheKey(gen, parts)
	if ok, err := a.cache.Get(ctx, key, dest); err == nil && ok {
		return nil
	} else if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("report cache read failed")
	}

	if err := compute(); err != nil {
		return err
	}
	if err := a.cache.Set(ctx, key, dest, a.cacheTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("report cache write failed")
	}
	return nil
}

func buildCacheKey(gen int64, parts []string) string {
	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("g%d:%s", gen, hex.EncodeToString(hash[:]))
}

func windowKey(window store.SaleFilter) string {
	return fmt.Sprintf("%d-%d", window.From.UnixMilli(), window.To.UnixMilli())
}

// Summarize totals sales per payment mode and per bucket. Sales with an unknown payment
// mode still count toward the period totals.
func Summarize(sales []domain.Sale, period Period, label domain.ReportPeriod) domain.SalesSummary {
	summary := domain.SalesSummary{
		ReportPeriod:      label,
		TotalPeriodSales:  decimal.Zero,
		TotalPeriodProfit: decimal.Zero,
		TotalCashSales:    decimal.Zero,
		TotalOnlineSales:  decimal.Zero,
		DailyBreakdown:    make(map[string]domain.DailyBucket),
	}

	for _, sale := range sales {
		key := period.bucket(sale.CreatedAt)
		bucket, ok := summary.DailyBreakdown[key]
		if !ok {
			bucket = domain.DailyBucket{
				TotalSales:   decimal.Zero,
				TotalProfit:  decimal.Zero,
				TotalCash:    decimal.Zero,
				TotalOnline:  decimal.Zero,
				Transactions: make([]domain.Sale, 0, 4),
			}
		}

		bucket.TotalSales = bucket.TotalSales.Add(sale.TotalAmount)
		bucket.TotalProfit = bucket.TotalProfit.Add(sale.TotalProfit)
		bucket.Transactions = append(bucket.Transactions, sale)

		switch sale.PaymentMode {
		case domain.PaymentCash:
			bucket.TotalCash = bucket.TotalCash.Add(sale.TotalAmount)
			summary.TotalCashSales = summary.TotalCashSales.Add(sale.TotalAmount)
		case domain.PaymentOnline:
			bucket.TotalOnline = bucket.TotalOnline.Add(sale.TotalAmount)
			summary.TotalOnlineSales = summary.TotalOnlineSales.Add(sale.TotalAmount)
		default:
			log.Warn().Str("sale_id", sale.ID).Str("payment_mode", string(sale.PaymentMode)).Msg("sale has unrecognized payment mode")
		}

		summary.DailyBreakdown[key] = bucket
		summary.TotalPeriodSales = summary.TotalPeriodSales.Add(sale.TotalAmount)
		summary.TotalPeriodProfit = summary.TotalPeriodProfit.Add(sale.TotalProfit)
	}
	return summary
}

// MaxProfit groups sale items by product and returns the most profitable one.
// Ties keep the product seen first. No items yields nil.
func MaxProfit(sales []domain.Sale) *domain.ProductProfit {
	order := make([]string, 0, 8)
	groups := make(map[string]*domain.ProductProfit)
	for _, sale := range sales {
		for _, item := range sale.SaleItems {
			g, ok := groups[item.ProductID]
			if !ok {
				g = &domain.ProductProfit{
					ProductID:           item.ProductID,
					ProductName:         item.ProductName,
					TotalProfit:         decimal.Zero,
					TotalQuantitySoldKg: decimal.Zero,
					TotalRevenue:        decimal.Zero,
				}
				groups[item.ProductID] = g
				order = append(order, item.ProductID)
			}
			g.TotalProfit = g.TotalProfit.Add(item.ProfitPerItem)
			g.TotalQuantitySoldKg = g.TotalQuantitySoldKg.Add(pricing.ToKg(item.QuantitySoldBags, item.QuantitySoldLooseKg))
			g.TotalRevenue = g.TotalRevenue.Add(item.Subtotal)
		}
	}

	var best *domain.ProductProfit
	for _, id := range order {
		if g := groups[id]; best == nil || g.TotalProfit.GreaterThan(best.TotalProfit) {
			best = g
		}
	}
	return best
}

// Trend returns one point per bucket, ascending.
func Trend(sales []domain.Sale, period Period) []domain.TrendPoint {
	byBucket := make(map[string]*domain.TrendPoint)
	for _, sale := range sales {
		key := period.bucket(sale.CreatedAt)
		point, ok := byBucket[key]
		if !ok {
			point = &domain.TrendPoint{Period: key, TotalSales: decimal.Zero, TotalProfit: decimal.Zero}
			byBucket[key] = point
		}
		point.TotalSales = point.TotalSales.Add(sale.TotalAmount)
		point.TotalProfit = point.TotalProfit.Add(sale.TotalProfit)
	}

	points := make([]domain.TrendPoint, 0, len(byBucket))
	for _, point := range byBucket {
		points = append(points, *point)
	}
	slices.SortFunc(points, func(a, b domain.TrendPoint) int {
		return strings.Compare(a.Period, b.Period)
	})
	return points
}

// TypeBreakdown joins items to the catalog by product id. Items whose product no longer
// exists are left out. Rows are ordered by revenue, highest first.
func TypeBreakdown(sales []domain.Sale, products map[string]domain.Product) []domain.TypePerformance {
	byType := make(map[domain.RiceType]*domain.TypePerformance)
	for _, sale := range sales {
		for _, item := range sale.SaleItems {
			product, ok := products[item.ProductID]
			if !ok {
				continue
			}
			row, ok := byType[product.Type]
			if !ok {
				row = &domain.TypePerformance{
					Type:                product.Type,
					TotalSales:          decimal.Zero,
					TotalProfit:         decimal.Zero,
					TotalQuantitySoldKg: decimal.Zero,
				}
				byType[product.Type] = row
			}
			row.TotalSales = row.TotalSales.Add(item.Subtotal)
			row.TotalProfit = row.TotalProfit.Add(item.ProfitPerItem)
			row.TotalQuantitySoldKg = row.TotalQuantitySoldKg.Add(pricing.ToKg(item.QuantitySoldBags, item.QuantitySoldLooseKg))
		}
	}

	rows := make([]domain.TypePerformance, 0, len(byType))
	for _, row := range byType {
		rows = append(rows, *row)
	}
	slices.SortFunc(rows, func(a, b domain.TypePerformance) int {
		if c := b.TotalSales.Cmp(a.TotalSales); c != 0 {
			return c
		}
		return strings.Compare(string(a.Type), string(b.Type))
	})
	return rows
}

func productIDs(sales []domain.Sale) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0, 16)
	for _, sale := range sales {
		for _, item := range sale.SaleItems {
			if _, ok := seen[item.ProductID]; ok {
				continue
			}
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}
