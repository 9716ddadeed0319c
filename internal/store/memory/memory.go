package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"riceshop/backend/internal/domain"
	"riceshop/backend/internal/store"
	"riceshop/backend/internal/xid"
)

type Store struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	sales    []domain.Sale
	returns  []domain.Return
	users    map[string]domain.User
}

var _ store.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		products: make(map[string]domain.Product),
		sales:    make([]domain.Sale, 0, 64),
		returns:  make([]domain.Return, 0, 16),
		users:    make(map[string]domain.User),
	}
}

// seedUsers builds the demo accounts used when no database is configured.
// Passwords come from SEED_ADMIN_PASSWORD, SEED_SALES_PASSWORD and SEED_MANAGER_PASSWORD
// and fall back to dev defaults with a warning.
func seedUsers(now time.Time) map[string]domain.User {
	seeds := []struct {
		username string
		envKey   string
		fallback string
		role     domain.Role
	}{
		{"admin", "SEED_ADMIN_PASSWORD", "admin123", domain.RoleAdmin},
		{"sales", "SEED_SALES_PASSWORD", "sales123", domain.RoleSales},
		{"manager", "SEED_MANAGER_PASSWORD", "manager123", domain.RoleManager},
	}

	users := make(map[string]domain.User, len(seeds))
	for _, seed := range seeds {
		password := os.Getenv(seed.envKey)
		if password == "" {
			log.Warn().Str("user", seed.username).Str("env", seed.envKey).Msg("memory store: using default dev password")
			password = seed.fallback
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal().Err(err).Str("user", seed.username).Msg("memory store: failed to hash seed password")
		}
		id := xid.New("usr")
		users[id] = domain.User{
			ID:           id,
			Username:     seed.username,
			PasswordHash: string(hash),
			Role:         seed.role,
			CreatedAt:    now,
		}
	}
	return users
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	s := New()
	s.users = seedUsers(now)

	for _, p := range []struct {
		name  string
		kind  domain.RiceType
		bags  int
		price string
		cost  string
	}{
		{"India Gate Basmati", domain.RiceBasmati, 40, "2450", "2100"},
		{"Sona Masoori Raw", domain.RiceRaw, 60, "1350", "1150"},
		{"Ponni Steam", domain.RiceSteam, 35, "1500", "1280"},
		{"HMT Kolam", domain.RiceHMT, 25, "1650", "1400"},
	} {
		id := xid.New("prd")
		s.products[id] = domain.Product{
			ID:               id,
			Name:             p.name,
			Type:             p.kind,
			CurrentStockBags: p.bags,
			PricePerBag:      decimal.RequireFromString(p.price),
			CostPricePerBag:  decimal.RequireFromString(p.cost),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
	}
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if product, ok := s.products[id]; ok {
			result[id] = product
		}
	}
	return result, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameTakenLocked(product.Name, "") {
		return nil, store.ErrConflict
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if s.nameTakenLocked(product.Name, product.ID) {
		return nil, store.ErrConflict
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) SetStock(_ context.Context, id string, bags int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return store.ErrNotFound
	}
	if bags < 0 {
		return store.ErrInsufficientStock
	}
	product.CurrentStockBags = bags
	product.UpdatedAt = time.Now().UTC()
	s.products[id] = product
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) DeleteAllProducts(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.products)
	s.products = make(map[string]domain.Product)
	return n, nil
}

func (s *Store) nameTakenLocked(name string, exceptID string) bool {
	for id, p := range s.products {
		if id != exceptID && p.Name == name {
			return true
		}
	}
	return false
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.SaleItems) == 0 {
		return nil, fmt.Errorf("%w: sale has no items", store.ErrInvalidArgument)
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	sale = cloneSale(sale)
	s.sales = append(s.sales, sale)
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sale := range s.sales {
		if sale.ID == id {
			found := cloneSale(sale)
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListSales(_ context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if !filter.Contains(sale.CreatedAt) {
			continue
		}
		result = append(result, cloneSale(sale))
	}
	slices.SortStableFunc(result, func(a, b domain.Sale) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return result, nil
}

func (s *Store) DeleteAllSales(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.sales)
	s.sales = make([]domain.Sale, 0, 64)
	return n, nil
}

func (s *Store) CreateReturn(_ context.Context, ret domain.Return) (*domain.Return, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ret.ReturnItems) == 0 {
		return nil, fmt.Errorf("%w: return has no items", store.ErrInvalidArgument)
	}
	if ret.ID == "" {
		ret.ID = xid.New("ret")
	}
	if ret.ReturnDate.IsZero() {
		ret.ReturnDate = time.Now().UTC()
	}
	ret = cloneReturn(ret)
	s.returns = append(s.returns, ret)
	created := cloneReturn(ret)
	return &created, nil
}

func (s *Store) ListReturns(_ context.Context) ([]domain.Return, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Return, 0, len(s.returns))
	for _, ret := range s.returns {
		result = append(result, cloneReturn(ret))
	}
	return result, nil
}

func (s *Store) DeleteAllReturns(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.returns)
	s.returns = make([]domain.Return, 0, 16)
	return n, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.usernameTakenLocked(user.Username, "") {
		return nil, store.ErrConflict
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = user
	return &user, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Username == username {
			found := user
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.User) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.users[user.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if s.usernameTakenLocked(user.Username, user.ID) {
		return nil, store.ErrConflict
	}
	existing.Username = user.Username
	existing.Role = user.Role
	s.users[user.ID] = existing
	return &existing, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *Store) usernameTakenLocked(username string, exceptID string) bool {
	for id, user := range s.users {
		if id != exceptID && user.Username == username {
			return true
		}
	}
	return false
}

func cloneSale(src domain.Sale) domain.Sale {
	dup := src
	dup.SaleItems = slices.Clone(src.SaleItems)
	return dup
}

func cloneReturn(src domain.Return) domain.Return {
	dup := src
	dup.ReturnItems = slices.Clone(src.ReturnItems)
	return dup
}
