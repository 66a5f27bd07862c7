package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jbapex/financeiro-api/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSplitInstallments_RemainderOnLast(t *testing.T) {
	plan, err := SplitInstallments(dec("100"), 3, day(2024, 1, 31))
	require.NoError(t, err)
	require.Len(t, plan, 3)

	assert.True(t, plan[0].Amount.Equal(dec("33.33")))
	assert.True(t, plan[1].Amount.Equal(dec("33.33")))
	assert.True(t, plan[2].Amount.Equal(dec("33.34")))

	assert.Equal(t, day(2024, 1, 31), plan[0].DueDate)
	assert.Equal(t, day(2024, 2, 29), plan[1].DueDate)
	assert.Equal(t, day(2024, 3, 31), plan[2].DueDate)

	sum := decimal.Zero
	for i, p := range plan {
		assert.Equal(t, i+1, p.Number)
		sum = sum.Add(p.Amount)
	}
	assert.True(t, sum.Equal(dec("100")))
}

func TestSplitInstallments_SumAlwaysMatches(t *testing.T) {
	// Every total covers at least one cent per installment.
	for _, total := range []string{"0.12", "1", "999.99", "1234.57", "10000"} {
		for _, count := range []int{1, 2, 3, 7, 12} {
			plan, err := SplitInstallments(dec(total), count, day(2024, 5, 15))
			require.NoError(t, err)
			sum := decimal.Zero
			for _, p := range plan {
				assert.True(t, p.Amount.IsPositive())
				sum = sum.Add(p.Amount)
			}
			assert.True(t, sum.Equal(dec(total)), "%s / %d", total, count)
		}
	}
}

func TestSplitInstallments_Invalid(t *testing.T) {
	_, err := SplitInstallments(dec("100"), 0, day(2024, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = SplitInstallments(dec("100"), MaxInstallments+1, day(2024, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = SplitInstallments(decimal.Zero, 2, day(2024, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = SplitInstallments(dec("0.02"), 3, day(2024, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = SplitInstallments(dec("0.10"), 12, day(2024, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEffectiveStatus(t *testing.T) {
	today := day(2024, 4, 30)
	assert.Equal(t, models.InstallmentVencido, EffectiveStatus(models.InstallmentPendente, day(2024, 4, 29), today))
	assert.Equal(t, models.InstallmentPendente, EffectiveStatus(models.InstallmentPendente, today, today))
	assert.Equal(t, models.InstallmentPago, EffectiveStatus(models.InstallmentPago, day(2024, 1, 1), today))
	assert.Equal(t, models.InstallmentCancelado, EffectiveStatus(models.InstallmentCancelado, day(2024, 1, 1), today))
}

func TestAging(t *testing.T) {
	today := day(2024, 4, 30)
	items := []models.Installment{
		{Status: models.InstallmentPendente, DueDate: day(2024, 4, 20), Amount: dec("100")},
		{Status: models.InstallmentPendente, DueDate: day(2024, 3, 15), Amount: dec("50")},
		{Status: models.InstallmentPendente, DueDate: day(2024, 1, 1), Amount: dec("25")},
		{Status: models.InstallmentPago, DueDate: day(2024, 1, 1), Amount: dec("999")},
		{Status: models.InstallmentPendente, DueDate: day(2024, 5, 10), Amount: dec("999")},
	}

	buckets := Aging(items, today)
	require.Len(t, buckets, 4)
	assert.Equal(t, "0-30", buckets[0].Label)
	assert.Equal(t, 1, buckets[0].Count)
	assert.True(t, buckets[0].Amount.Equal(dec("100")))
	assert.Equal(t, 1, buckets[1].Count)
	assert.Equal(t, 0, buckets[2].Count)
	assert.True(t, buckets[2].Amount.IsZero())
	assert.Equal(t, 1, buckets[3].Count)
	assert.True(t, buckets[3].Amount.Equal(dec("25")))
}

func installmentRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"kind", "description", "number", "total_count", "amount", "status",
		"contact_id", "category_id", "bank_account_id"})
}

func TestPay_RollsBackWhenLedgerInsertFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT kind, description").
		WithArgs("i1", "t1").
		WillReturnRows(installmentRow().AddRow("pagar", "Aluguel", 1, 3, "100.00", "pendente", nil, nil, nil))
	mock.ExpectExec("UPDATE installments SET status = 'pago'").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO transactions").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	svc := NewInstallmentService(db)
	_, err = svc.Pay(context.Background(), "t1", "u1", "i1", models.PayInstallmentRequest{PaidAt: "2024-03-10"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPay_AlreadyPaidConflicts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT kind, description").
		WithArgs("i1", "t1").
		WillReturnRows(installmentRow().AddRow("receber", "Venda", 2, 2, "80.00", "pago", nil, nil, nil))
	mock.ExpectRollback()

	svc := NewInstallmentService(db)
	_, err = svc.Pay(context.Background(), "t1", "u1", "i1", models.PayInstallmentRequest{})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPay_RejectsBadInput(t *testing.T) {
	svc := NewInstallmentService(nil)

	_, err := svc.Pay(context.Background(), "t1", "u1", "i1", models.PayInstallmentRequest{PaidAt: "ontem"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	zero := decimal.Zero
	_, err = svc.Pay(context.Background(), "t1", "u1", "i1", models.PayInstallmentRequest{Amount: &zero})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
