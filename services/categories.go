package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jbapex/financeiro-api/models"
)

type CategoryService struct {
	db          *sql.DB
	categorizer *CategorizerService
}

func NewCategoryService(db *sql.DB, categorizer *CategorizerService) *CategoryService {
	return &CategoryService{db: db, categorizer: categorizer}
}

type defaultCategory struct {
	name     string
	kind     string
	dreGroup string
	color    string
}

// Seeded for every new tenant. Names line up with the categorizer dictionary.
var defaultCategories = []defaultCategory{
	{"Vendas", models.TypeReceita, models.DREReceitaBruta, "#16a34a"},
	{"Serviços", models.TypeReceita, models.DREReceitaBruta, "#22c55e"},
	{"Rendimentos", models.TypeReceita, models.DREReceitasFinanceiras, "#0ea5e9"},
	{"Outras Receitas", models.TypeReceita, models.DREOutras, "#64748b"},
	{"Impostos", models.TypeDespesa, models.DREDeducoes, "#dc2626"},
	{"Fornecedores", models.TypeDespesa, models.DRECustos, "#ea580c"},
	{"Salários", models.TypeDespesa, models.DREDespesasOperacionais, "#f59e0b"},
	{"Aluguel", models.TypeDespesa, models.DREDespesasOperacionais, "#a855f7"},
	{"Energia e Água", models.TypeDespesa, models.DREDespesasOperacionais, "#eab308"},
	{"Telefone e Internet", models.TypeDespesa, models.DREDespesasOperacionais, "#6366f1"},
	{"Alimentação", models.TypeDespesa, models.DREDespesasOperacionais, "#f97316"},
	{"Transporte", models.TypeDespesa, models.DREDespesasOperacionais, "#14b8a6"},
	{"Combustível", models.TypeDespesa, models.DREDespesasOperacionais, "#84cc16"},
	{"Software e Assinaturas", models.TypeDespesa, models.DREDespesasOperacionais, "#3b82f6"},
	{"Tarifas Bancárias", models.TypeDespesa, models.DREDespesasFinanceiras, "#be123c"},
	{"Juros", models.TypeDespesa, models.DREDespesasFinanceiras, "#9f1239"},
	{"Outras Despesas", models.TypeDespesa, models.DREOutras, "#475569"},
}

// SeedDefaults inserts the starter chart of categories for a new tenant.
func SeedDefaults(ctx context.Context, q querier, tenantID string) error {
	for _, c := range defaultCategories {
		_, err := q.ExecContext(ctx, `
			INSERT INTO categories (tenant_id, name, type, dre_group, color)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (tenant_id, name, type) DO NOTHING
		`, tenantID, c.name, c.kind, c.dreGroup, c.color)
		if err != nil {
			return fmt.Errorf("seed category %s: %w", c.name, err)
		}
	}
	return nil
}

const categoryColumns = `id, tenant_id, name, type, COALESCE(color, ''), parent_id, dre_group, created_at, updated_at`

func scanCategory(row interface{ Scan(...interface{}) error }) (*models.Category, error) {
	var c models.Category
	var parent sql.NullString
	if err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Type, &c.Color, &parent, &c.DREGroup, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ParentID = stringPtr(parent)
	return &c, nil
}

func (s *CategoryService) List(ctx context.Context, tenantID, kind string) ([]models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if kind != "" {
		query += ` AND type = $2`
		args = append(args, kind)
	}
	query += ` ORDER BY type, name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

func (s *CategoryService) Get(ctx context.Context, tenantID, id string) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	c, err := scanCategory(row)
	if err != nil {
		return nil, dbError(err)
	}
	return c, nil
}

func defaultDREGroup(req models.CategoryRequest) string {
	if req.DREGroup != "" {
		return req.DREGroup
	}
	if req.Type == models.TypeReceita {
		return models.DREReceitaBruta
	}
	return models.DREDespesasOperacionais
}

func (s *CategoryService) Create(ctx context.Context, tenantID string, req models.CategoryRequest) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO categories (tenant_id, name, type, color, parent_id, dre_group)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+categoryColumns,
		tenantID, strings.TrimSpace(req.Name), req.Type, nullString(req.Color), nullable(req.ParentID), defaultDREGroup(req))
	c, err := scanCategory(row)
	if err != nil {
		return nil, dbError(err)
	}
	return c, nil
}

func (s *CategoryService) Update(ctx context.Context, tenantID, id string, req models.CategoryRequest) (*models.Category, error) {
	if req.ParentID != nil && *req.ParentID == id {
		return nil, invalidf("category cannot be its own parent")
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE categories
		SET name = $3, type = $4, color = $5, parent_id = $6, dre_group = $7, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+categoryColumns,
		id, tenantID, strings.TrimSpace(req.Name), req.Type, nullString(req.Color), nullable(req.ParentID), defaultDREGroup(req))
	c, err := scanCategory(row)
	if err != nil {
		return nil, dbError(err)
	}
	return c, nil
}

// Delete refuses categories still referenced by live ledger entries.
func (s *CategoryService) Delete(ctx context.Context, tenantID, id string) error {
	var inUse bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM transactions WHERE category_id = $1 AND tenant_id = $2 AND deleted_at IS NULL)
	`, id, tenantID).Scan(&inUse)
	if err != nil {
		return err
	}
	if inUse {
		return conflictf("category is in use")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return dbError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Suggest runs the categorizer and maps the answer onto a tenant category.
func (s *CategoryService) Suggest(ctx context.Context, tenantID, label string) (*models.CategorySuggestion, error) {
	categories, err := s.List(ctx, tenantID, "")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}

	name, source := s.categorizer.GetCategory(ctx, label, names)
	suggestion := &models.CategorySuggestion{Label: label, Category: name, Source: source}
	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			id := c.ID
			suggestion.CategoryID = &id
			suggestion.Category = c.Name
			break
		}
	}
	return suggestion, nil
}

// NameIndex maps "type|lowercase name" to category id.
func (s *CategoryService) NameIndex(ctx context.Context, tenantID string) (map[string]string, error) {
	categories, err := s.List(ctx, tenantID, "")
	if err != nil {
		return nil, err
	}
	index := make(map[string]string, len(categories))
	for _, c := range categories {
		index[categoryKey(c.Type, c.Name)] = c.ID
	}
	return index, nil
}

func categoryKey(kind, name string) string {
	return kind + "|" + strings.ToLower(strings.TrimSpace(name))
}
