package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jbapex/financeiro-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTransactionWhere(t *testing.T) {
	where, args := BuildTransactionWhere("tenant-1", models.TransactionFilter{})
	assert.Equal(t, " WHERE t.tenant_id = $1 AND t.deleted_at IS NULL", where)
	assert.Equal(t, []interface{}{"tenant-1"}, args)

	from, to := day(2024, 3, 1), day(2024, 3, 31)
	where, args = BuildTransactionWhere("tenant-1", models.TransactionFilter{
		From:   &from,
		To:     &to,
		Type:   models.TypeDespesa,
		Search: "  aluguel ",
		Tag:    "fixo",
	})
	assert.Equal(t, " WHERE t.tenant_id = $1 AND t.deleted_at IS NULL AND t.date >= $2 AND t.date <= $3"+
		" AND t.type = $4 AND t.description ILIKE $5 AND $6 = ANY(t.tags)", where)
	assert.Equal(t, []interface{}{"tenant-1", from, to, models.TypeDespesa, "%aluguel%", "fixo"}, args)
}

func TestSignedAmount(t *testing.T) {
	assert.True(t, SignedAmount(models.Transaction{Type: models.TypeReceita, Amount: dec("10")}).Equal(dec("10")))
	assert.True(t, SignedAmount(models.Transaction{Type: models.TypeDespesa, Amount: dec("10")}).Equal(dec("-10")))
	assert.True(t, SignedAmount(models.Transaction{Type: models.TypeTransferencia, Direction: models.DirectionOut, Amount: dec("10")}).Equal(dec("-10")))
}

func TestValidateTransaction(t *testing.T) {
	date, err := validateTransaction(models.TransactionRequest{Description: "Venda", Amount: dec("10"), Date: "2024-03-15"})
	require.NoError(t, err)
	assert.Equal(t, 15, date.Day())

	_, err = validateTransaction(models.TransactionRequest{Description: "Venda", Amount: dec("0"), Date: "2024-03-15"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = validateTransaction(models.TransactionRequest{Description: "  ", Amount: dec("1"), Date: "2024-03-15"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = validateTransaction(models.TransactionRequest{Description: "Venda", Amount: dec("1"), Date: "ontem"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCleanTags(t *testing.T) {
	assert.Equal(t, []string{"fixo", "pix"}, cleanTags([]string{" Fixo", "PIX", "fixo", ""}))
}

func TestSingular(t *testing.T) {
	assert.Equal(t, "category", singular("categories"))
	assert.Equal(t, "contact", singular("contacts"))
	assert.Equal(t, "bank_account", singular("bank_accounts"))
}

func TestEnsureOwned(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM categories`).
		WithArgs("cat-1", "tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	catID := "cat-1"
	err = ensureOwned(context.Background(), db, "tenant-1", map[string]*string{
		"categories": &catID,
		"contacts":   nil,
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "category cat-1 not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ledgerRow feeds scanTransaction from sqlmock.
type ledgerRow struct {
	ID, Type, Amount string
	Account          interface{}
	TransferGroup    interface{}
	Direction        string
	Reconciled       bool
}

func transactionRow(id, kind, amount string, account interface{}, reconciled bool) *ledgerRow {
	return &ledgerRow{ID: id, Type: kind, Amount: amount, Account: account, Reconciled: reconciled}
}

func (l *ledgerRow) rows() *sqlmock.Rows {
	now := day(2024, 3, 5)
	return sqlmock.NewRows([]string{"id", "tenant_id", "type", "description", "amount", "date",
		"category_id", "category_name", "bank_account_id", "contact_id", "contact_name",
		"status", "payment_method", "notes", "tags",
		"installment_id", "recurring_id", "transfer_group", "transfer_direction", "reconciled", "created_by",
		"created_at", "updated_at"}).AddRow(
		l.ID, "tenant-1", l.Type, "Lançamento", l.Amount, now,
		nil, "", l.Account, nil, "",
		"pago", "", "", "{}",
		nil, nil, l.TransferGroup, l.Direction, l.Reconciled, nil,
		now, now)
}

func newTransactionMock(t *testing.T) (*TransactionService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTransactionService(db, NewCategoryService(db, nil), NewCategorizerService(nil, nil, nil)), mock
}

func importRow(line int) models.ImportedRow {
	return models.ImportedRow{
		Line:        line,
		Date:        day(2024, 3, 10),
		Description: "Lote 7781 XPTO",
		Amount:      dec("45.90"),
		Type:        models.TypeDespesa,
	}
}

func TestImport_RepeatedRowsInFileAreAllInserted(t *testing.T) {
	svc, mock := newTransactionMock(t)

	// Category lookup happens before the transaction opens.
	mock.ExpectQuery(`FROM categories WHERE tenant_id = \$1`).
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM transactions`).
		WithArgs("tenant-1", day(2024, 3, 10), models.TypeDespesa, sqlmock.AnyArg(), "Lote 7781 XPTO").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO transactions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO transactions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := svc.Import(context.Background(), "tenant-1", "user-1", nil, []models.ImportedRow{importRow(2), importRow(3)})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 0, result.Skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImport_SkipsOnlyRowsThatExistedBefore(t *testing.T) {
	svc, mock := newTransactionMock(t)

	mock.ExpectQuery(`FROM categories WHERE tenant_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM transactions`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO transactions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := svc.Import(context.Background(), "tenant-1", "user-1", nil, []models.ImportedRow{importRow(2), importRow(3)})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransfer_WritesOutAndInLegs(t *testing.T) {
	svc, mock := newTransactionMock(t)

	for _, account := range []string{"acc-a", "acc-b"} {
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM bank_accounts`).
			WithArgs(account, "tenant-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	}
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT uuid_generate_v4\(\)`).
		WillReturnRows(sqlmock.NewRows([]string{"uuid"}).AddRow("group-1"))
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs("tenant-1", "Transferência entre contas", sqlmock.AnyArg(), day(2024, 3, 5), "acc-a", "group-1", models.DirectionOut, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs("tenant-1", "Transferência entre contas", sqlmock.AnyArg(), day(2024, 3, 5), "acc-b", "group-1", models.DirectionIn, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	group, err := svc.Transfer(context.Background(), "tenant-1", "user-1", models.TransferRequest{
		FromAccountID: "acc-a",
		ToAccountID:   "acc-b",
		Amount:        dec("300"),
		Date:          "2024-03-05",
	})
	require.NoError(t, err)
	assert.Equal(t, "group-1", group)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_TransferReleasesStatementLines(t *testing.T) {
	svc, mock := newTransactionMock(t)

	transfer := transactionRow("tx-1", models.TypeTransferencia, "300.00", "acc-a", false)
	transfer.TransferGroup = "group-1"
	transfer.Direction = models.DirectionOut
	mock.ExpectQuery(`WHERE t.id = \$1 AND t.tenant_id = \$2`).
		WithArgs("tx-1", "tenant-1").
		WillReturnRows(transfer.rows())
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE statement_lines SET status = 'pendente', transaction_id = NULL`).
		WithArgs("group-1", "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE transactions SET deleted_at = NOW\(\)`).
		WithArgs("group-1", "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, svc.Delete(context.Background(), "tenant-1", "tx-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
