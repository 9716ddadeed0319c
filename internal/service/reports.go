package service

import (
	"context"

	"riceshop/backend/internal/domain"
	"riceshop/backend/internal/report"
)

func (s *Service) SalesSummary(ctx context.Context, startDate string, endDate string, period string) (domain.SalesSummary, error) {
	window, err := report.DayWindow(startDate, endDate)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	p, err := report.ParsePeriod(period)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	return s.reports.SalesSummary(ctx, window, p, domain.ReportPeriod{StartDate: startDate, EndDate: endDate})
}

// MaxProfitProduct returns nil when nothing was sold on date.
func (s *Service) MaxProfitProduct(ctx context.Context, date string) (*domain.ProductProfit, error) {
	window, err := report.SingleDay(date)
	if err != nil {
		return nil, err
	}
	return s.reports.MaxProfitProduct(ctx, window)
}

func (s *Service) SalesTrends(ctx context.Context, period string, startDate string, endDate string) ([]domain.TrendPoint, error) {
	p, err := report.ParsePeriod(period)
	if err != nil {
		return nil, err
	}
	window, err := report.DayWindow(startDate, endDate)
	if err != nil {
		return nil, err
	}
	return s.reports.Trends(ctx, window, p)
}

// PerformanceByType covers the whole history when either date is missing.
func (s *Service) PerformanceByType(ctx context.Context, startDate string, endDate string) ([]domain.TypePerformance, error) {
	window, err := report.OptionalDayWindow(startDate, endDate)
	if err != nil {
		return nil, err
	}
	return s.reports.ByProductType(ctx, window)
}
