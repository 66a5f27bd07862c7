package services

import (
	"context"
	"database/sql"

	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/utils"
)

type PipelineService struct {
	db *sql.DB
}

func NewPipelineService(db *sql.DB) *PipelineService {
	return &PipelineService{db: db}
}

var stageColors = []string{"#94a3b8", "#3b82f6", "#f59e0b", "#a855f7", "#16a34a"}

// SeedStages creates the default kanban columns for a new tenant.
func SeedStages(ctx context.Context, q querier, tenantID string) error {
	for i, name := range models.DefaultStages {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO pipeline_stages (tenant_id, name, color, position) VALUES ($1, $2, $3, $4)
		`, tenantID, name, stageColors[i%len(stageColors)], i); err != nil {
			return err
		}
	}
	return nil
}

func (s *PipelineService) ListStages(ctx context.Context, tenantID string) ([]models.PipelineStage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, COALESCE(color, ''), position, created_at
		FROM pipeline_stages WHERE tenant_id = $1 ORDER BY position, created_at
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := []models.PipelineStage{}
	for rows.Next() {
		var st models.PipelineStage
		if err := rows.Scan(&st.ID, &st.TenantID, &st.Name, &st.Color, &st.Position, &st.CreatedAt); err != nil {
			return nil, err
		}
		stages = append(stages, st)
	}
	return stages, rows.Err()
}

func (s *PipelineService) CreateStage(ctx context.Context, tenantID string, req models.StageRequest) (*models.PipelineStage, error) {
	st := models.PipelineStage{TenantID: tenantID, Name: req.Name, Color: req.Color}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO pipeline_stages (tenant_id, name, color, position)
		VALUES ($1, $2, $3, COALESCE($4, (SELECT COALESCE(MAX(position) + 1, 0) FROM pipeline_stages WHERE tenant_id = $1)))
		RETURNING id, position, created_at
	`, tenantID, req.Name, nullString(req.Color), req.Position).Scan(&st.ID, &st.Position, &st.CreatedAt)
	if err != nil {
		return nil, dbError(err)
	}
	return &st, nil
}

func (s *PipelineService) UpdateStage(ctx context.Context, tenantID, id string, req models.StageRequest) (*models.PipelineStage, error) {
	st := models.PipelineStage{ID: id, TenantID: tenantID}
	err := s.db.QueryRowContext(ctx, `
		UPDATE pipeline_stages
		SET name = $3, color = $4, position = COALESCE($5, position)
		WHERE id = $1 AND tenant_id = $2
		RETURNING name, COALESCE(color, ''), position, created_at
	`, id, tenantID, req.Name, nullString(req.Color), req.Position).Scan(&st.Name, &st.Color, &st.Position, &st.CreatedAt)
	if err != nil {
		return nil, dbError(err)
	}
	return &st, nil
}

// DeleteStage refuses columns that still hold cards.
func (s *PipelineService) DeleteStage(ctx context.Context, tenantID, id string) error {
	var cards int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM contacts WHERE stage_id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`, id, tenantID).Scan(&cards); err != nil {
		return err
	}
	if cards > 0 {
		return conflictf("stage has %d cards", cards)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM pipeline_stages WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Board returns every stage with its cards in position order.
func (s *PipelineService) Board(ctx context.Context, tenantID string) ([]models.PipelineStage, error) {
	stages, err := s.ListStages(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+contactColumns+` FROM contacts
		WHERE tenant_id = $1 AND stage_id IS NOT NULL AND deleted_at IS NULL
		ORDER BY position, name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byStage := map[string][]models.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		byStage[*c.StageID] = append(byStage[*c.StageID], *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range stages {
		stages[i].Cards = byStage[stages[i].ID]
		if stages[i].Cards == nil {
			stages[i].Cards = []models.Contact{}
		}
	}
	return stages, nil
}

// MoveCard removes cardID from whichever column holds it and inserts it into
// target at position, clamped to [0, len]. It returns the new order of every
// column that changed.
func MoveCard(board map[string][]string, cardID, target string, position int) (map[string][]string, error) {
	if _, ok := board[target]; !ok {
		return nil, ErrNotFound
	}

	changed := map[string][]string{}
	for stage, cards := range board {
		for i, id := range cards {
			if id == cardID {
				rest := make([]string, 0, len(cards)-1)
				rest = append(rest, cards[:i]...)
				rest = append(rest, cards[i+1:]...)
				changed[stage] = rest
				break
			}
		}
	}

	column, ok := changed[target]
	if !ok {
		column = append([]string{}, board[target]...)
	}
	if position < 0 {
		position = 0
	}
	if position > len(column) {
		position = len(column)
	}

	moved := make([]string, 0, len(column)+1)
	moved = append(moved, column[:position]...)
	moved = append(moved, cardID)
	moved = append(moved, column[position:]...)
	changed[target] = moved

	return changed, nil
}

// Move applies MoveCard and persists positions 0..n-1 of the touched columns
// in one transaction.
func (s *PipelineService) Move(ctx context.Context, tenantID string, req models.MoveCardRequest) error {
	contact, err := NewContactService(s.db).Get(ctx, tenantID, req.ContactID)
	if err != nil {
		return err
	}
	if contact.Kind != models.ContactCliente {
		return invalidf("only clients can be placed on the pipeline")
	}

	return utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT st.id, c.id
			FROM pipeline_stages st
			LEFT JOIN contacts c ON c.stage_id = st.id AND c.deleted_at IS NULL
			WHERE st.tenant_id = $1
			ORDER BY st.id, c.position, c.name
			FOR UPDATE OF st
		`, tenantID)
		if err != nil {
			return err
		}

		board := map[string][]string{}
		for rows.Next() {
			var stageID string
			var cardID sql.NullString
			if err := rows.Scan(&stageID, &cardID); err != nil {
				rows.Close()
				return err
			}
			if _, ok := board[stageID]; !ok {
				board[stageID] = []string{}
			}
			if cardID.Valid {
				board[stageID] = append(board[stageID], cardID.String)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		changed, err := MoveCard(board, req.ContactID, req.StageID, req.Position)
		if err != nil {
			return err
		}

		for stageID, cards := range changed {
			for pos, cardID := range cards {
				if _, err := tx.ExecContext(ctx, `
					UPDATE contacts SET stage_id = $1, position = $2, updated_at = NOW()
					WHERE id = $3 AND tenant_id = $4
				`, stageID, pos, cardID, tenantID); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
