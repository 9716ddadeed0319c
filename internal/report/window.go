package report

import (
	"fmt"
	"strings"
	"time"

	"riceshop/backend/internal/store"
)

const dateLayout = "2006-01-02"

type Period string

const (
	Daily   Period = "daily"
	Monthly Period = "monthly"
)

// ParsePeriod defaults an empty value to daily and rejects anything else it does not know.
func ParsePeriod(raw string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(raw))) {
	case "", Daily:
		return Daily, nil
	case Monthly:
		return Monthly, nil
	}
	return "", fmt.Errorf("%w: period must be daily or monthly", store.ErrInvalidArgument)
}

func (p Period) bucket(t time.Time) string {
	if p == Monthly {
		return t.UTC().Format("2006-01")
	}
	return t.UTC().Format(dateLayout)
}

// DayWindow spans from the first millisecond of startDate to the last millisecond of endDate, in UTC.
func DayWindow(startDate string, endDate string) (store.SaleFilter, error) {
	if strings.TrimSpace(startDate) == "" || strings.TrimSpace(endDate) == "" {
		return store.SaleFilter{}, fmt.Errorf("%w: startDate and endDate are required query parameters", store.ErrInvalidArgument)
	}
	start, err := parseDay(startDate)
	if err != nil {
		return store.SaleFilter{}, err
	}
	end, err := parseDay(endDate)
	if err != nil {
		return store.SaleFilter{}, err
	}
	if end.Before(start) {
		return store.SaleFilter{}, fmt.Errorf("%w: endDate is before startDate", store.ErrInvalidArgument)
	}
	return store.SaleFilter{From: start, To: endOfDay(end)}, nil
}

// OptionalDayWindow returns an open window when either date is missing.
func OptionalDayWindow(startDate string, endDate string) (store.SaleFilter, error) {
	if strings.TrimSpace(startDate) == "" || strings.TrimSpace(endDate) == "" {
		return store.SaleFilter{}, nil
	}
	return DayWindow(startDate, endDate)
}

func SingleDay(date string) (store.SaleFilter, error) {
	if strings.TrimSpace(date) == "" {
		return store.SaleFilter{}, fmt.Errorf("%w: date query parameter is required", store.ErrInvalidArgument)
	}
	day, err := parseDay(date)
	if err != nil {
		return store.SaleFilter{}, err
	}
	return store.SaleFilter{From: day, To: endOfDay(day)}, nil
}

func parseDay(raw string) (time.Time, error) {
	day, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", store.ErrInvalidArgument, raw)
	}
	return day, nil
}

func endOfDay(day time.Time) time.Time {
	return day.Add(24*time.Hour - time.Millisecond)
}
