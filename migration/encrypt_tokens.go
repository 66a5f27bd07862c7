// Package migration holds one-off data migrations that can be replayed
// safely: records already in the target format are skipped.
//
// USAGE: EncryptLegacyTokens runs at boot when DATA_ENCRYPTION_KEY is set and
// from POST /admin/maintenance/encrypt-tokens.
package migration

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jbapex/financeiro-api/utils"

	"github.com/sirupsen/logrus"
)

type Result struct {
	Migrated int `json:"migrated"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// MigrateTenantToken encrypts one tenant's WhatsApp token when it is still plaintext.
// The update is guarded on the old value so a concurrent settings change wins.
func MigrateTenantToken(ctx context.Context, db *sql.DB, tenantID, stored string) (bool, error) {
	if stored == "" || utils.IsEncrypted(stored) {
		return false, nil
	}

	encrypted, err := utils.EncryptString(stored)
	if err != nil {
		return false, fmt.Errorf("encrypt token: %w", err)
	}

	res, err := db.ExecContext(ctx, `
		UPDATE tenants SET whatsapp_token = $2, updated_at = NOW()
		WHERE id = $1 AND whatsapp_token = $3
	`, tenantID, encrypted, stored)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// EncryptLegacyTokens walks every tenant holding a plaintext WhatsApp token.
func EncryptLegacyTokens(ctx context.Context, db *sql.DB, log *logrus.Logger) (*Result, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, whatsapp_token FROM tenants
		WHERE whatsapp_token IS NOT NULL AND whatsapp_token <> '' AND whatsapp_token NOT LIKE 'enc:%'
	`)
	if err != nil {
		return nil, err
	}

	type pending struct{ id, token string }
	var todo []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.token); err != nil {
			rows.Close()
			return nil, err
		}
		todo = append(todo, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &Result{}
	for _, p := range todo {
		migrated, err := MigrateTenantToken(ctx, db, p.id, p.token)
		switch {
		case err != nil:
			result.Errors++
			log.WithError(err).WithField("tenant_id", p.id).Error("token migration failed")
		case migrated:
			result.Migrated++
		default:
			result.Skipped++
		}
	}

	log.WithFields(logrus.Fields{
		"migrated": result.Migrated,
		"skipped":  result.Skipped,
		"errors":   result.Errors,
	}).Info("whatsapp token migration finished")
	return result, nil
}
