package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jbapex/financeiro-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func ledger(id, kind, amount string, date int) models.Transaction {
	return models.Transaction{
		ID:            id,
		Type:          kind,
		Amount:        dec(amount),
		Date:          day(2024, 3, date),
		BankAccountID: strPtr("acc"),
	}
}

func statement(id, amount string, date int) models.StatementLine {
	return models.StatementLine{
		ID:            id,
		BankAccountID: "acc",
		Amount:        dec(amount),
		Date:          day(2024, 3, date),
		Status:        models.StatementPendente,
	}
}

func TestIsMatchCandidate(t *testing.T) {
	line := statement("l1", "-150.00", 10)

	assert.True(t, IsMatchCandidate(line, ledger("t1", models.TypeDespesa, "150.00", 12)))
	assert.True(t, IsMatchCandidate(line, ledger("t1", models.TypeDespesa, "150.01", 15)))
	assert.False(t, IsMatchCandidate(line, ledger("t1", models.TypeDespesa, "150.02", 10)), "amount beyond one cent")
	assert.False(t, IsMatchCandidate(line, ledger("t1", models.TypeDespesa, "150.00", 16)), "six days apart")
	assert.False(t, IsMatchCandidate(line, ledger("t1", models.TypeReceita, "150.00", 10)), "wrong direction")

	other := ledger("t1", models.TypeDespesa, "150.00", 10)
	other.BankAccountID = strPtr("other")
	assert.False(t, IsMatchCandidate(line, other), "other account")

	done := ledger("t1", models.TypeDespesa, "150.00", 10)
	done.Reconciled = true
	assert.False(t, IsMatchCandidate(line, done), "already reconciled")

	out := ledger("t1", models.TypeTransferencia, "150.00", 10)
	out.Direction = models.DirectionOut
	assert.True(t, IsMatchCandidate(line, out), "outgoing transfer leg")
}

func TestMatchCandidates_Ordering(t *testing.T) {
	line := statement("l1", "200.00", 10)
	txs := []models.Transaction{
		ledger("far", models.TypeReceita, "200.00", 14),
		ledger("near-off", models.TypeReceita, "200.01", 11),
		ledger("near", models.TypeReceita, "200.00", 9),
		ledger("expense", models.TypeDespesa, "200.00", 10),
	}

	got := MatchCandidates(line, txs)
	require.Len(t, got, 3)
	assert.Equal(t, "near", got[0].Transaction.ID)
	assert.Equal(t, "near-off", got[1].Transaction.ID)
	assert.Equal(t, "far", got[2].Transaction.ID)
	assert.Equal(t, 4, got[2].DaysApart)
}

func TestPlanAutoMatch(t *testing.T) {
	lines := []models.StatementLine{
		statement("unique", "-50.00", 5),
		statement("ambiguous", "-80.00", 5),
		statement("none", "-999.00", 5),
		statement("clash-a", "300.00", 20),
		statement("clash-b", "300.00", 21),
	}
	done := statement("done", "-50.00", 5)
	done.Status = models.StatementConciliado
	lines = append(lines, done)

	txs := []models.Transaction{
		ledger("t-unique", models.TypeDespesa, "50.00", 6),
		ledger("t-amb-1", models.TypeDespesa, "80.00", 4),
		ledger("t-amb-2", models.TypeDespesa, "80.00", 7),
		ledger("t-clash", models.TypeReceita, "300.00", 20),
	}

	links, result := PlanAutoMatch(lines, txs)
	assert.Equal(t, map[string]string{"unique": "t-unique"}, links)
	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 3, result.Ambiguous)
	assert.Equal(t, 1, result.Unmatched)
}

func TestStatementHash(t *testing.T) {
	a := StatementHash("acc", day(2024, 3, 1), dec("10"), "PIX  Recebido")
	b := StatementHash("acc", day(2024, 3, 1), dec("10.00"), "pix recebido")
	c := StatementHash("acc", day(2024, 3, 2), dec("10.00"), "pix recebido")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func lineRows(status, amount string, txID interface{}) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "tenant_id", "bank_account_id", "date", "description", "amount",
		"hash", "status", "transaction_id", "created_at"}).
		AddRow("line-1", "tenant-1", "acc", day(2024, 3, 10), "PIX Fornecedor", amount,
			"hash", status, txID, day(2024, 3, 11))
}

func newReconciliationMock(t *testing.T) (*ReconciliationService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewReconciliationService(db), mock
}

func TestMatch_LinksAndAdoptsAccount(t *testing.T) {
	svc, mock := newReconciliationMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM statement_lines WHERE id = \$1 AND tenant_id = \$2 FOR UPDATE`).
		WithArgs("line-1", "tenant-1").
		WillReturnRows(lineRows(models.StatementPendente, "-50.00", nil))
	mock.ExpectQuery(`WHERE t.id = \$1 AND t.tenant_id = \$2`).
		WithArgs("tx-1", "tenant-1").
		WillReturnRows(transactionRow("tx-1", models.TypeDespesa, "50.00", nil, false).rows())
	mock.ExpectExec(`UPDATE transactions SET bank_account_id = \$3`).
		WithArgs("tx-1", "tenant-1", "acc").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE statement_lines SET status = 'conciliado', transaction_id = \$3`).
		WithArgs("line-1", "tenant-1", "tx-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE transactions SET reconciled = TRUE`).
		WithArgs("tx-1", "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`FROM statement_lines WHERE id = \$1 AND tenant_id = \$2`).
		WillReturnRows(lineRows(models.StatementConciliado, "-50.00", "tx-1"))

	line, err := svc.Match(context.Background(), "tenant-1", "line-1", "tx-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatementConciliado, line.Status)
	require.NotNil(t, line.TransactionID)
	assert.Equal(t, "tx-1", *line.TransactionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatch_Rejections(t *testing.T) {
	svc, mock := newReconciliationMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(lineRows(models.StatementConciliado, "-50.00", "tx-0"))
	mock.ExpectRollback()
	_, err := svc.Match(context.Background(), "tenant-1", "line-1", "tx-1")
	assert.ErrorIs(t, err, ErrConflict)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(lineRows(models.StatementPendente, "-50.00", nil))
	mock.ExpectQuery(`WHERE t.id = \$1`).
		WillReturnRows(transactionRow("tx-1", models.TypeReceita, "50.00", "acc", false).rows())
	mock.ExpectRollback()
	_, err = svc.Match(context.Background(), "tenant-1", "line-1", "tx-1")
	assert.ErrorIs(t, err, ErrInvalidInput, "income cannot settle a debit line")

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(lineRows(models.StatementPendente, "-50.00", nil))
	mock.ExpectQuery(`WHERE t.id = \$1`).
		WillReturnRows(transactionRow("tx-1", models.TypeDespesa, "50.00", "other-acc", false).rows())
	mock.ExpectRollback()
	_, err = svc.Match(context.Background(), "tenant-1", "line-1", "tx-1")
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateFromStatement_MirrorsLine(t *testing.T) {
	svc, mock := newReconciliationMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(lineRows(models.StatementPendente, "-50.00", nil))
	mock.ExpectQuery(`INSERT INTO transactions`).
		WithArgs("tenant-1", models.TypeDespesa, "PIX Fornecedor", sqlmock.AnyArg(), day(2024, 3, 10),
			nil, "acc", nil, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("tx-9"))
	mock.ExpectExec(`UPDATE statement_lines SET status = 'conciliado'`).
		WithArgs("line-1", "tenant-1", "tx-9").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE transactions SET reconciled = TRUE`).
		WithArgs("tx-9", "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`FROM statement_lines WHERE id = \$1`).
		WillReturnRows(lineRows(models.StatementConciliado, "-50.00", "tx-9"))

	line, err := svc.CreateFromStatement(context.Background(), "tenant-1", "user-1", "line-1", models.CreateFromStatementRequest{})
	require.NoError(t, err)
	assert.Equal(t, "tx-9", *line.TransactionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnmatch_ReleasesLinkedEntry(t *testing.T) {
	svc, mock := newReconciliationMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(lineRows(models.StatementConciliado, "-50.00", "tx-1"))
	mock.ExpectExec(`UPDATE transactions SET reconciled = FALSE`).
		WithArgs("tx-1", "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE statement_lines SET status = 'pendente', transaction_id = NULL`).
		WithArgs("line-1", "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`FROM statement_lines WHERE id = \$1`).
		WillReturnRows(lineRows(models.StatementPendente, "-50.00", nil))

	line, err := svc.Unmatch(context.Background(), "tenant-1", "line-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatementPendente, line.Status)
	assert.Nil(t, line.TransactionID)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(lineRows(models.StatementPendente, "-50.00", nil))
	mock.ExpectRollback()
	_, err = svc.Unmatch(context.Background(), "tenant-1", "line-1")
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
