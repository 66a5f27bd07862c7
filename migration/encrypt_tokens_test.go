package migration

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jbapex/financeiro-api/utils"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

// encryptedOf matches a stored ciphertext that decrypts to plain.
type encryptedOf string

func (e encryptedOf) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, "enc:v1:") {
		return false
	}
	plain, err := utils.DecryptString(s)
	return err == nil && plain == string(e)
}

func TestMigrateTenantToken_SkipsEmptyAndEncrypted(t *testing.T) {
	t.Setenv("DATA_ENCRYPTION_KEY", testKey)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	migrated, err := MigrateTenantToken(context.Background(), db, "t1", "")
	require.NoError(t, err)
	assert.False(t, migrated)

	migrated, err = MigrateTenantToken(context.Background(), db, "t1", "enc:v1:abc")
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateTenantToken_NeedsKey(t *testing.T) {
	t.Setenv("DATA_ENCRYPTION_KEY", "")
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = MigrateTenantToken(context.Background(), db, "t1", "plain")
	assert.Error(t, err)
}

func TestEncryptLegacyTokens(t *testing.T) {
	t.Setenv("DATA_ENCRYPTION_KEY", testKey)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, whatsapp_token FROM tenants").
		WillReturnRows(sqlmock.NewRows([]string{"id", "whatsapp_token"}).
			AddRow("t1", "token-one").
			AddRow("t2", "token-two").
			AddRow("t3", "token-three"))
	mock.ExpectExec("UPDATE tenants SET whatsapp_token").
		WithArgs("t1", encryptedOf("token-one"), "token-one").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// t2 changed concurrently: the guarded update touches nothing.
	mock.ExpectExec("UPDATE tenants SET whatsapp_token").
		WithArgs("t2", encryptedOf("token-two"), "token-two").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE tenants SET whatsapp_token").
		WithArgs("t3", encryptedOf("token-three"), "token-three").
		WillReturnError(errors.New("connection reset"))

	log, hook := test.NewNullLogger()
	result, err := EncryptLegacyTokens(context.Background(), db, log)
	require.NoError(t, err)
	assert.Equal(t, &Result{Migrated: 1, Skipped: 1, Errors: 1}, result)
	assert.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, "t3", hook.AllEntries()[0].Data["tenant_id"])
	assert.Equal(t, 1, hook.LastEntry().Data["migrated"])
}

func TestEncryptLegacyTokens_QueryFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, whatsapp_token FROM tenants").WillReturnError(errors.New("boom"))

	_, err = EncryptLegacyTokens(context.Background(), db, nil)
	assert.Error(t, err)
}
