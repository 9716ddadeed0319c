package store

import (
	"context"
	"errors"
	"time"

	"riceshop/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrConflict          = errors.New("conflict")
)

// SaleFilter bounds a sale listing by creation time. Zero values leave that side open.
type SaleFilter struct {
	From time.Time
	To   time.Time
}

func (f SaleFilter) Contains(t time.Time) bool {
	if !f.From.IsZero() && t.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.After(f.To) {
		return false
	}
	return true
}

type ProductStore interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	SetStock(ctx context.Context, id string, bags int) error
	DeleteProduct(ctx context.Context, id string) error
	DeleteAllProducts(ctx context.Context) (int, error)
}

type SaleStore interface {
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	// ListSales returns sales in the order they were recorded.
	ListSales(ctx context.Context, filter SaleFilter) ([]domain.Sale, error)
	DeleteAllSales(ctx context.Context) (int, error)
}

type ReturnStore interface {
	CreateReturn(ctx context.Context, ret domain.Return) (*domain.Return, error)
	ListReturns(ctx context.Context) ([]domain.Return, error)
	DeleteAllReturns(ctx context.Context) (int, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) (*domain.User, error)
	DeleteUser(ctx context.Context, id string) error
}

type Repository interface {
	ProductStore
	SaleStore
	ReturnStore
	UserStore
}
