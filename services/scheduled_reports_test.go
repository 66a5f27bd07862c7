package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jbapex/financeiro-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var brt = time.FixedZone("BRT", -3*3600)

func TestParseClock(t *testing.T) {
	hh, mm, err := ParseClock("08:05")
	require.NoError(t, err)
	assert.Equal(t, 8, hh)
	assert.Equal(t, 5, mm)

	for _, bad := range []string{"", "8:05", "24:00", "12:60", "ab:cd", "12:00:00"} {
		_, _, err := ParseClock(bad)
		assert.ErrorIs(t, err, ErrInvalidInput, bad)
	}
}

func TestIsDue(t *testing.T) {
	// Friday 15/03/2024 08:30 local time.
	now := time.Date(2024, time.March, 15, 8, 30, 0, 0, brt)
	sentAt := func(t time.Time) *time.Time { return &t }

	tests := []struct {
		name   string
		report models.ScheduledReport
		want   bool
	}{
		{"daily never sent", models.ScheduledReport{Active: true, Frequency: models.ScheduleDiario, SendTime: "08:00"}, true},
		{"before send time", models.ScheduledReport{Active: true, Frequency: models.ScheduleDiario, SendTime: "09:00"}, false},
		{"inactive", models.ScheduledReport{Frequency: models.ScheduleDiario, SendTime: "08:00"}, false},
		{"bad time", models.ScheduledReport{Active: true, Frequency: models.ScheduleDiario, SendTime: "8h"}, false},
		{"already sent today", models.ScheduledReport{Active: true, Frequency: models.ScheduleDiario, SendTime: "08:00",
			LastSentAt: sentAt(time.Date(2024, time.March, 15, 8, 0, 0, 0, time.UTC))}, false},
		{"sent yesterday", models.ScheduledReport{Active: true, Frequency: models.ScheduleDiario, SendTime: "08:00",
			LastSentAt: sentAt(time.Date(2024, time.March, 14, 8, 0, 0, 0, time.UTC))}, true},
		{"weekly on its weekday", models.ScheduledReport{Active: true, Frequency: models.ScheduleSemanal, Weekday: 5, SendTime: "08:00"}, true},
		{"weekly other weekday", models.ScheduledReport{Active: true, Frequency: models.ScheduleSemanal, Weekday: 1, SendTime: "08:00"}, false},
		{"monthly on its day", models.ScheduledReport{Active: true, Frequency: models.ScheduleMensal, MonthDay: 15, SendTime: "08:00"}, true},
		{"monthly other day", models.ScheduledReport{Active: true, Frequency: models.ScheduleMensal, MonthDay: 10, SendTime: "08:00"}, false},
		{"unknown frequency", models.ScheduledReport{Active: true, Frequency: "anual", SendTime: "08:00"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDue(tt.report, now))
		})
	}
}

func TestIsDue_MonthDayClampsToMonthEnd(t *testing.T) {
	r := models.ScheduledReport{Active: true, Frequency: models.ScheduleMensal, MonthDay: 31, SendTime: "07:00"}
	assert.True(t, IsDue(r, time.Date(2024, time.February, 29, 7, 0, 0, 0, brt)))
	assert.False(t, IsDue(r, time.Date(2024, time.February, 28, 7, 0, 0, 0, brt)))
}

func TestReportPeriod(t *testing.T) {
	today := day(2024, 3, 15)

	from, to := ReportPeriod(models.ReportResumoSemanal, today)
	assert.Equal(t, day(2024, 3, 9), from)
	assert.Equal(t, today, to)

	from, _ = ReportPeriod(models.ReportResumoMensal, today)
	assert.Equal(t, day(2024, 3, 1), from)

	from, to = ReportPeriod(models.ReportResumoDiario, today)
	assert.Equal(t, today, from)
	assert.Equal(t, today, to)
}

func TestRenderReport_Summary(t *testing.T) {
	text := RenderReport(ReportData{
		Kind:    models.ReportResumoMensal,
		Company: "Acme",
		Today:   day(2024, 3, 15),
		Period: models.MonthTotals{
			Label:     "Março 2024",
			Receitas:  dec("1500"),
			Despesas:  dec("200.50"),
			Resultado: dec("1299.50"),
		},
		Balance:      dec("10000"),
		OverduePagar: models.DueSummary{Count: 2, Amount: dec("300")},
	})

	assert.True(t, strings.HasPrefix(text, "*Resumo mensal - Acme*\n15/03/2024"))
	assert.Contains(t, text, "Período: Março 2024")
	assert.Contains(t, text, "Receitas: R$ 1.500,00")
	assert.Contains(t, text, "Despesas: R$ 200,50")
	assert.Contains(t, text, "Resultado: R$ 1.299,50")
	assert.Contains(t, text, "Saldo em contas: R$ 10.000,00")
	assert.Contains(t, text, "*Em atraso*\nA pagar: 2 (R$ 300,00)")
	assert.NotContains(t, text, "A receber:")
	assert.False(t, strings.HasSuffix(text, "\n"))
}

func TestRenderReport_DailyHasNoPeriodLine(t *testing.T) {
	text := RenderReport(ReportData{Kind: models.ReportResumoDiario, Company: "Acme", Today: day(2024, 3, 15)})
	assert.NotContains(t, text, "Período")
	assert.NotContains(t, text, "Em atraso")
}

func TestRenderReport_DueList(t *testing.T) {
	pagar := make([]models.Installment, ReportListLimit+2)
	for i := range pagar {
		pagar[i] = models.Installment{Description: "Boleto", Number: 1, TotalCount: 3, Amount: dec("50"), DueDate: day(2024, 3, 20)}
	}
	pagar[0].ContactName = "Fornecedor X"

	text := RenderReport(ReportData{Kind: models.ReportContasVencer, Company: "Acme", Today: day(2024, 3, 15), Pagar: pagar})

	assert.Contains(t, text, "*Contas a vencer (7 dias) - Acme*")
	assert.Contains(t, text, "*A receber*\nNenhuma conta no período.")
	assert.Contains(t, text, "• 20/03 Fornecedor X - Boleto (1/3): R$ 50,00")
	assert.Contains(t, text, "... e mais 2")
	assert.Equal(t, ReportListLimit, strings.Count(text, "• "))
	assert.NotContains(t, text, "Saldo em contas")
}

func TestSend_CollectFailureIsRecordedAsFailedDispatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewScheduledReportService(db, nil, nil, NewWhatsAppService("http://gateway.local", "token"), nil)
	now := time.Date(2024, 3, 15, 8, 0, 0, 0, brt)

	mock.ExpectQuery(`FROM scheduled_reports WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs("report-1", "tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name", "report", "phones", "frequency",
			"weekday", "month_day", "send_time", "active", "last_sent_at", "created_at", "updated_at"}).
			AddRow("report-1", "tenant-1", "Resumo", models.ReportResumoDiario, "{5511999990000}", "diario",
				0, 0, "08:00", true, nil, now, now))
	mock.ExpectQuery(`SELECT COALESCE\(whatsapp_api_url, ''\)`).
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"url", "token"}).AddRow("", ""))
	mock.ExpectQuery(`SELECT name FROM tenants WHERE id = \$1`).
		WithArgs("tenant-1").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectQuery(`INSERT INTO report_dispatches`).
		WithArgs("tenant-1", "report-1", models.TriggerJob, models.DispatchFailed, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sent_at"}).AddRow("dispatch-1", now))
	mock.ExpectExec(`UPDATE scheduled_reports SET last_sent_at`).
		WithArgs("report-1", "tenant-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	dispatch, err := svc.Send(context.Background(), "tenant-1", "report-1", models.TriggerJob, now)
	require.NoError(t, err)
	assert.Equal(t, models.DispatchFailed, dispatch.Status)
	assert.Contains(t, dispatch.Error, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}
