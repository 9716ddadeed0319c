package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"riceshop/backend/internal/domain"
	"riceshop/backend/internal/report"
	"riceshop/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo         store.Repository
	reports      *report.Aggregator
	validate     *validator.Validate
	passwordCost int
	now          func() time.Time
}

func New(repo store.Repository, reports *report.Aggregator) *Service {
	if reports == nil {
		reports = report.NewAggregator(repo, nil, 0)
	}

	return &Service{
		repo:         repo,
		reports:      reports,
		validate:     newValidator(),
		passwordCost: bcrypt.DefaultCost,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkStruct runs the struct tag rules and reports the first failure as an invalid argument.
func (s *Service) checkStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: %s is required", store.ErrInvalidArgument, fe.Field())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Errorf("%w: %s must be at least %s characters", store.ErrInvalidArgument, fe.Field(), fe.Param())
		}
		return fmt.Errorf("%w: %s must be at least %s", store.ErrInvalidArgument, fe.Field(), fe.Param())
	case "max":
		return fmt.Errorf("%w: %s must be at most %s", store.ErrInvalidArgument, fe.Field(), fe.Param())
	default:
		return fmt.Errorf("%w: %s is invalid", store.ErrInvalidArgument, fe.Field())
	}
}

func actorOrAnonymous(ctx context.Context) domain.Actor {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}
	}
	return actor
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
