package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"riceshop/backend/internal/domain"
	"riceshop/backend/internal/store"
	"riceshop/backend/internal/xid"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

var _ store.Repository = (*Store)(nil)

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates any missing tables. It is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const productColumns = `id, name, type, current_stock_bags, price_per_bag, cost_price_per_bag, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Type, &p.CurrentStockBags, &p.PricePerBag, &p.CostPricePerBag, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 32)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New("prd")
	}

	created, err := scanProduct(s.db.QueryRowContext(ctx, `
		INSERT INTO products (id, name, type, current_stock_bags, price_per_bag, cost_price_per_bag, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING `+productColumns,
		product.ID, product.Name, product.Type, product.CurrentStockBags, product.PricePerBag, product.CostPricePerBag))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	updated, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, type = $3, current_stock_bags = $4, price_per_bag = $5, cost_price_per_bag = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		product.ID, product.Name, product.Type, product.CurrentStockBags, product.PricePerBag, product.CostPricePerBag))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) SetStock(ctx context.Context, id string, bags int) error {
	if bags < 0 {
		return store.ErrInsufficientStock
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET current_stock_bags = $2, updated_at = now() WHERE id = $1
	`, id, bags)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) DeleteAllProducts(ctx context.Context) (int, error) {
	return s.deleteAll(ctx, `DELETE FROM products`)
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.SaleItems) == 0 {
		return nil, fmt.Errorf("%w: sale has no items", store.ErrInvalidArgument)
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sales (id, total_amount, total_profit, recorded_by, recorded_by_username, payment_mode, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sale.ID, sale.TotalAmount, sale.TotalProfit, sale.RecordedBy, sale.RecordedByUsername, sale.PaymentMode, sale.CreatedAt); err != nil {
		return nil, err
	}

	for i, item := range sale.SaleItems {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (
				sale_id, position, product_id, product_name, quantity_sold_bags, quantity_sold_loose_kg,
				price_per_bag_at_sale, price_per_kg_loose_at_sale, cost_price_per_bag_at_sale, subtotal, profit_per_item
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, sale.ID, i, item.ProductID, item.ProductName, item.QuantitySoldBags, item.QuantitySoldLooseKg,
			item.PricePerBagAtSale, item.PricePerKgLooseAtSale, item.CostPricePerBagAtSale, item.Subtotal, item.ProfitPerItem); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	sales, err := s.querySales(ctx, `WHERE s.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return nil, store.ErrNotFound
	}
	return &sales[0], nil
}

func (s *Store) ListSales(ctx context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	return s.querySales(ctx, `
		WHERE ($1::timestamptz IS NULL OR s.created_at >= $1)
		  AND ($2::timestamptz IS NULL OR s.created_at <= $2)
	`, nullTime(filter.From), nullTime(filter.To))
}

// querySales loads sales and their items with a single join, preserving recorded order.
func (s *Store) querySales(ctx context.Context, where string, args ...any) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.total_amount, s.total_profit, s.recorded_by, s.recorded_by_username, s.payment_mode, s.created_at,
		       i.product_id, i.product_name, i.quantity_sold_bags, i.quantity_sold_loose_kg,
		       i.price_per_bag_at_sale, i.price_per_kg_loose_at_sale, i.cost_price_per_bag_at_sale,
		       i.subtotal, i.profit_per_item
		FROM sales s
		JOIN sale_items i ON i.sale_id = s.id
		`+where+`
		ORDER BY s.created_at, s.id, i.position
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	for rows.Next() {
		var (
			sale domain.Sale
			item domain.SaleItem
		)
		if err := rows.Scan(
			&sale.ID, &sale.TotalAmount, &sale.TotalProfit, &sale.RecordedBy, &sale.RecordedByUsername, &sale.PaymentMode, &sale.CreatedAt,
			&item.ProductID, &item.ProductName, &item.QuantitySoldBags, &item.QuantitySoldLooseKg,
			&item.PricePerBagAtSale, &item.PricePerKgLooseAtSale, &item.CostPricePerBagAtSale,
			&item.Subtotal, &item.ProfitPerItem,
		); err != nil {
			return nil, err
		}
		if n := len(sales); n > 0 && sales[n-1].ID == sale.ID {
			sales[n-1].SaleItems = append(sales[n-1].SaleItems, item)
			continue
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		sale.SaleItems = []domain.SaleItem{item}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) DeleteAllSales(ctx context.Context) (int, error) {
	return s.deleteAll(ctx, `DELETE FROM sales`)
}

func (s *Store) CreateReturn(ctx context.Context, ret domain.Return) (*domain.Return, error) {
	if len(ret.ReturnItems) == 0 {
		return nil, fmt.Errorf("%w: return has no items", store.ErrInvalidArgument)
	}
	if ret.ID == "" {
		ret.ID = xid.New("ret")
	}
	if ret.ReturnDate.IsZero() {
		ret.ReturnDate = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO returns (id, sale_id, total_refund_amount, reason, processed_by, processed_by_username, return_date)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
	`, ret.ID, ret.SaleID, ret.TotalRefundAmount, ret.Reason, ret.ProcessedBy, ret.ProcessedByUsername, ret.ReturnDate); err != nil {
		return nil, err
	}

	for i, item := range ret.ReturnItems {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO return_items (
				return_id, position, product_id, product_name, quantity_returned_bags, quantity_returned_loose_kg,
				price_per_bag_at_return, price_per_kg_loose_at_return, cost_price_per_bag_at_return, refund_amount, profit_reversed
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, ret.ID, i, item.ProductID, item.ProductName, item.QuantityReturnedBags, item.QuantityReturnedLooseKg,
			item.PricePerBagAtReturn, item.PricePerKgLooseAtReturn, item.CostPricePerBagAtReturn, item.RefundAmount, item.ProfitReversed); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (s *Store) ListReturns(ctx context.Context) ([]domain.Return, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, COALESCE(r.sale_id, ''), r.total_refund_amount, r.reason, r.processed_by, r.processed_by_username, r.return_date,
		       i.product_id, i.product_name, i.quantity_returned_bags, i.quantity_returned_loose_kg,
		       i.price_per_bag_at_return, i.price_per_kg_loose_at_return, i.cost_price_per_bag_at_return,
		       i.refund_amount, i.profit_reversed
		FROM returns r
		JOIN return_items i ON i.return_id = r.id
		ORDER BY r.return_date, r.id, i.position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	returns := make([]domain.Return, 0, 16)
	for rows.Next() {
		var (
			ret  domain.Return
			item domain.ReturnItem
		)
		if err := rows.Scan(
			&ret.ID, &ret.SaleID, &ret.TotalRefundAmount, &ret.Reason, &ret.ProcessedBy, &ret.ProcessedByUsername, &ret.ReturnDate,
			&item.ProductID, &item.ProductName, &item.QuantityReturnedBags, &item.QuantityReturnedLooseKg,
			&item.PricePerBagAtReturn, &item.PricePerKgLooseAtReturn, &item.CostPricePerBagAtReturn,
			&item.RefundAmount, &item.ProfitReversed,
		); err != nil {
			return nil, err
		}
		if n := len(returns); n > 0 && returns[n-1].ID == ret.ID {
			returns[n-1].ReturnItems = append(returns[n-1].ReturnItems, item)
			continue
		}
		ret.ReturnDate = ret.ReturnDate.UTC()
		ret.ReturnItems = []domain.ReturnItem{item}
		returns = append(returns, ret)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return returns, nil
}

func (s *Store) DeleteAllReturns(ctx context.Context) (int, error) {
	return s.deleteAll(ctx, `DELETE FROM returns`)
}

const userColumns = `id, username, password_hash, role, created_at`

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	created, err := scanUser(s.db.QueryRowContext(ctx, `
		INSERT INTO app_users (id, username, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING `+userColumns,
		user.ID, user.Username, user.PasswordHash, user.Role))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &created, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM app_users WHERE id = $1`, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM app_users WHERE username = $1`, username)
}

func (s *Store) getUser(ctx context.Context, query string, arg string) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM app_users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, 16)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	updated, err := scanUser(s.db.QueryRowContext(ctx, `
		UPDATE app_users SET username = $2, role = $3
		WHERE id = $1
		RETURNING `+userColumns,
		user.ID, user.Username, user.Role))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM app_users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) deleteAll(ctx context.Context, query string) (int, error) {
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
