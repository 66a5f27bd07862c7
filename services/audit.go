package services

import (
	"context"
	"database/sql"

	"github.com/sirupsen/logrus"
)

type AuditService struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewAuditService(db *sql.DB, log *logrus.Logger) *AuditService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AuditService{db: db, log: log}
}

// Record is best effort: a failed audit write is logged and never fails the request.
func (s *AuditService) Record(ctx context.Context, tenantID, userID, action, entity, entityID string) {
	if s == nil || s.db == nil {
		return
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (tenant_id, user_id, action, entity, entity_id)
		VALUES ($1, $2, $3, $4, $5)
	`, nullString(tenantID), nullString(userID), action, entity, nullString(entityID))
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"action": action,
			"entity": entity,
		}).Warn("audit log write failed")
	}
}
