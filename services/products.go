package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/utils"

	"github.com/shopspring/decimal"
)

type ProductService struct {
	db *sql.DB
}

func NewProductService(db *sql.DB) *ProductService {
	return &ProductService{db: db}
}

// ApplyMovement returns the stock after a movement. Saídas cannot take the
// quantity below zero; ajuste sets the quantity outright.
func ApplyMovement(current decimal.Decimal, kind string, quantity decimal.Decimal) (decimal.Decimal, error) {
	if quantity.IsNegative() || (kind != models.MovementAjuste && quantity.IsZero()) {
		return decimal.Zero, invalidf("quantity must be greater than zero")
	}
	switch kind {
	case models.MovementEntrada:
		return current.Add(quantity), nil
	case models.MovementSaida:
		if quantity.GreaterThan(current) {
			return decimal.Zero, conflictf("insufficient stock: %s available", current.String())
		}
		return current.Sub(quantity), nil
	case models.MovementAjuste:
		return quantity, nil
	}
	return decimal.Zero, invalidf("invalid movement type %q", kind)
}

const productColumns = `id, tenant_id, sku, name, unit, cost, price, quantity, min_quantity, created_at, updated_at`

func scanProduct(row interface{ Scan(...interface{}) error }) (*models.Product, error) {
	var p models.Product
	if err := row.Scan(&p.ID, &p.TenantID, &p.SKU, &p.Name, &p.Unit, &p.Cost, &p.Price, &p.Quantity,
		&p.MinQuantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProductService) query(ctx context.Context, query string, args ...interface{}) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *ProductService) List(ctx context.Context, tenantID, search string, limit, offset int) ([]models.Product, int64, error) {
	where := ` WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if search = strings.TrimSpace(search); search != "" {
		args = append(args, "%"+search+"%")
		where += ` AND (name ILIKE $2 OR sku ILIKE $2)`
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY name`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}
	products, err := s.query(ctx, query, args...)
	return products, total, err
}

func (s *ProductService) LowStock(ctx context.Context, tenantID string) ([]models.Product, error) {
	return s.query(ctx, `SELECT `+productColumns+` FROM products
		WHERE tenant_id = $1 AND quantity <= min_quantity AND min_quantity > 0
		ORDER BY quantity - min_quantity, name`, tenantID)
}

func (s *ProductService) Get(ctx context.Context, tenantID, id string) (*models.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 AND tenant_id = $2`, id, tenantID))
	if err != nil {
		return nil, dbError(err)
	}
	return p, nil
}

func validateProduct(req models.ProductRequest) error {
	if req.Cost.IsNegative() || req.Price.IsNegative() || req.MinQuantity.IsNegative() {
		return invalidf("cost, price and min_quantity cannot be negative")
	}
	return nil
}

func unitOrDefault(unit string) string {
	if strings.TrimSpace(unit) == "" {
		return "un"
	}
	return strings.TrimSpace(unit)
}

func (s *ProductService) Create(ctx context.Context, tenantID string, req models.ProductRequest) (*models.Product, error) {
	if err := validateProduct(req); err != nil {
		return nil, err
	}
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		INSERT INTO products (tenant_id, sku, name, unit, cost, price, min_quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+productColumns,
		tenantID, strings.ToUpper(strings.TrimSpace(req.SKU)), strings.TrimSpace(req.Name), unitOrDefault(req.Unit),
		req.Cost.Round(2), req.Price.Round(2), req.MinQuantity))
	if err != nil {
		return nil, dbError(err)
	}
	return p, nil
}

// Update edits the catalogue fields. Quantity only changes through movements.
func (s *ProductService) Update(ctx context.Context, tenantID, id string, req models.ProductRequest) (*models.Product, error) {
	if err := validateProduct(req); err != nil {
		return nil, err
	}
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET sku = $3, name = $4, unit = $5, cost = $6, price = $7, min_quantity = $8, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+productColumns,
		id, tenantID, strings.ToUpper(strings.TrimSpace(req.SKU)), strings.TrimSpace(req.Name), unitOrDefault(req.Unit),
		req.Cost.Round(2), req.Price.Round(2), req.MinQuantity))
	if err != nil {
		return nil, dbError(err)
	}
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddMovement locks the product row, applies the movement and records it.
func (s *ProductService) AddMovement(ctx context.Context, tenantID, userID, productID string, req models.StockMovementRequest) (*models.StockMovement, error) {
	movement := &models.StockMovement{ProductID: productID, Type: req.Type, Quantity: req.Quantity, Note: req.Note}

	err := utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		var current decimal.Decimal
		if err := tx.QueryRowContext(ctx, `
			SELECT quantity FROM products WHERE id = $1 AND tenant_id = $2 FOR UPDATE
		`, productID, tenantID).Scan(&current); err != nil {
			return dbError(err)
		}

		after, err := ApplyMovement(current, req.Type, req.Quantity)
		if err != nil {
			return err
		}
		movement.BalanceAfter = after

		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET quantity = $3, updated_at = NOW() WHERE id = $1 AND tenant_id = $2
		`, productID, tenantID, after); err != nil {
			return err
		}

		return tx.QueryRowContext(ctx, `
			INSERT INTO stock_movements (tenant_id, product_id, type, quantity, balance_after, note, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at
		`, tenantID, productID, req.Type, req.Quantity, after, nullString(req.Note), nullString(userID)).
			Scan(&movement.ID, &movement.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

func (s *ProductService) Movements(ctx context.Context, tenantID, productID string) ([]models.StockMovement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, type, quantity, balance_after, COALESCE(note, ''), created_at
		FROM stock_movements WHERE product_id = $1 AND tenant_id = $2
		ORDER BY created_at DESC LIMIT 200
	`, productID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.StockMovement{}
	for rows.Next() {
		var m models.StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Type, &m.Quantity, &m.BalanceAfter, &m.Note, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
