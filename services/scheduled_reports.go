package services

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/utils"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ReportListLimit caps the installments listed in a contas_vencer message.
const ReportListLimit = 15

type ScheduledReportService struct {
	db           *sql.DB
	reports      *ReportService
	installments *InstallmentService
	whatsapp     *WhatsAppService
	log          *logrus.Logger
}

func NewScheduledReportService(db *sql.DB, reports *ReportService, installments *InstallmentService, whatsapp *WhatsAppService, log *logrus.Logger) *ScheduledReportService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ScheduledReportService{db: db, reports: reports, installments: installments, whatsapp: whatsapp, log: log}
}

// ============================================================================
// SCHEDULE
// ============================================================================

// ParseClock parses "HH:MM".
func ParseClock(raw string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, invalidf("time must be HH:MM")
	}
	hh, err1 := strconv.Atoi(parts[0])
	mm, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, 0, invalidf("time must be HH:MM")
	}
	return hh, mm, nil
}

// wallClock reads a TIMESTAMP column value as a wall clock in loc.
func wallClock(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// IsDue reports whether a report should go out at now: its day matches, the
// send time has passed and nothing was sent since today's slot. now must be
// in the business timezone; last_sent_at is stored as that zone's wall clock.
func IsDue(r models.ScheduledReport, now time.Time) bool {
	if !r.Active {
		return false
	}
	hh, mm, err := ParseClock(r.SendTime)
	if err != nil {
		return false
	}

	switch r.Frequency {
	case models.ScheduleDiario:
	case models.ScheduleSemanal:
		if int(now.Weekday()) != r.Weekday {
			return false
		}
	case models.ScheduleMensal:
		day := r.MonthDay
		if day < 1 {
			day = 1
		}
		if dim := utils.DaysInMonth(now.Year(), now.Month()); day > dim {
			day = dim
		}
		if now.Day() != day {
			return false
		}
	default:
		return false
	}

	slot := time.Date(now.Year(), now.Month(), now.Day(), hh, mm, 0, 0, now.Location())
	if now.Before(slot) {
		return false
	}
	return r.LastSentAt == nil || wallClock(*r.LastSentAt, now.Location()).Before(slot)
}

// ============================================================================
// RENDERING
// ============================================================================

type ReportData struct {
	Kind           string
	Company        string
	Today          time.Time
	Period         models.MonthTotals
	Balance        decimal.Decimal
	OverdueReceber models.DueSummary
	OverduePagar   models.DueSummary
	Receber        []models.Installment
	Pagar          []models.Installment
}

// ReportPeriod is the date range a summary covers.
func ReportPeriod(kind string, today time.Time) (time.Time, time.Time) {
	switch kind {
	case models.ReportResumoSemanal:
		return today.AddDate(0, 0, -6), today
	case models.ReportResumoMensal:
		return time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()), today
	}
	return today, today
}

func reportTitle(kind string) string {
	switch kind {
	case models.ReportResumoDiario:
		return "Resumo diário"
	case models.ReportResumoSemanal:
		return "Resumo semanal"
	case models.ReportResumoMensal:
		return "Resumo mensal"
	case models.ReportContasVencer:
		return "Contas a vencer (7 dias)"
	}
	return "Relatório"
}

func writeDue(b *strings.Builder, label string, d models.DueSummary) {
	if d.Count == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %d (%s)\n", label, d.Count, utils.FormatBRL(d.Amount))
}

func writeInstallments(b *strings.Builder, title string, items []models.Installment) {
	fmt.Fprintf(b, "\n*%s*\n", title)
	if len(items) == 0 {
		b.WriteString("Nenhuma conta no período.\n")
		return
	}
	shown := items
	if len(shown) > ReportListLimit {
		shown = shown[:ReportListLimit]
	}
	for _, i := range shown {
		name := i.Description
		if i.ContactName != "" {
			name = i.ContactName + " - " + name
		}
		fmt.Fprintf(b, "• %s %s (%d/%d): %s\n", i.DueDate.Format("02/01"), name, i.Number, i.TotalCount, utils.FormatBRL(i.Amount))
	}
	if extra := len(items) - len(shown); extra > 0 {
		fmt.Fprintf(b, "... e mais %d\n", extra)
	}
}

// RenderReport builds the WhatsApp text (WhatsApp markup: *bold*).
func RenderReport(d ReportData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s - %s*\n%s\n", reportTitle(d.Kind), d.Company, d.Today.Format("02/01/2006"))

	if d.Kind == models.ReportContasVencer {
		writeInstallments(&b, "A receber", d.Receber)
		writeInstallments(&b, "A pagar", d.Pagar)
	} else {
		if d.Kind != models.ReportResumoDiario {
			fmt.Fprintf(&b, "Período: %s\n", d.Period.Label)
		}
		fmt.Fprintf(&b, "\nReceitas: %s\n", utils.FormatBRL(d.Period.Receitas))
		fmt.Fprintf(&b, "Despesas: %s\n", utils.FormatBRL(d.Period.Despesas))
		fmt.Fprintf(&b, "Resultado: %s\n", utils.FormatBRL(d.Period.Resultado))
		fmt.Fprintf(&b, "\nSaldo em contas: %s\n", utils.FormatBRL(d.Balance))
	}

	if d.OverdueReceber.Count > 0 || d.OverduePagar.Count > 0 {
		b.WriteString("\n*Em atraso*\n")
		writeDue(&b, "A receber", d.OverdueReceber)
		writeDue(&b, "A pagar", d.OverduePagar)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *ScheduledReportService) collect(ctx context.Context, tenantID, kind string, today time.Time) (*ReportData, error) {
	d := &ReportData{Kind: kind, Today: today}
	if err := s.db.QueryRowContext(ctx, `SELECT name FROM tenants WHERE id = $1`, tenantID).Scan(&d.Company); err != nil {
		return nil, dbError(err)
	}

	var err error
	if d.OverdueReceber, err = s.reports.overdueSummary(ctx, tenantID, models.KindReceber, today); err != nil {
		return nil, err
	}
	if d.OverduePagar, err = s.reports.overdueSummary(ctx, tenantID, models.KindPagar, today); err != nil {
		return nil, err
	}

	if kind == models.ReportContasVencer {
		week := today.AddDate(0, 0, 7)
		filter := models.InstallmentFilter{Status: models.InstallmentPendente, From: &today, To: &week}
		filter.Kind = models.KindReceber
		if d.Receber, _, err = s.installments.List(ctx, tenantID, filter, today); err != nil {
			return nil, err
		}
		filter.Kind = models.KindPagar
		if d.Pagar, _, err = s.installments.List(ctx, tenantID, filter, today); err != nil {
			return nil, err
		}
		return d, nil
	}

	from, to := ReportPeriod(kind, today)
	if d.Period, err = s.reports.PeriodTotals(ctx, tenantID, from, to); err != nil {
		return nil, err
	}
	if d.Balance, err = s.reports.accounts.TotalBalance(ctx, tenantID); err != nil {
		return nil, err
	}
	return d, nil
}

// Render returns the text a report would send right now, without sending it.
func (s *ScheduledReportService) Render(ctx context.Context, tenantID, id string) (string, error) {
	r, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return "", err
	}
	d, err := s.collect(ctx, tenantID, r.Report, utils.Today())
	if err != nil {
		return "", err
	}
	return RenderReport(*d), nil
}

// ============================================================================
// CRUD
// ============================================================================

const scheduledColumns = `id, tenant_id, name, report, phones, frequency, weekday, month_day, send_time, active,
	last_sent_at, created_at, updated_at`

func scanScheduled(row interface{ Scan(...interface{}) error }) (*models.ScheduledReport, error) {
	var r models.ScheduledReport
	var lastSent sql.NullTime
	if err := row.Scan(&r.ID, &r.TenantID, &r.Name, &r.Report, pq.Array(&r.Phones), &r.Frequency, &r.Weekday,
		&r.MonthDay, &r.SendTime, &r.Active, &lastSent, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if lastSent.Valid {
		r.LastSentAt = &lastSent.Time
	}
	if r.Phones == nil {
		r.Phones = []string{}
	}
	return &r, nil
}

func validateScheduled(req models.ScheduledReportRequest) (models.ScheduledReportRequest, error) {
	if _, _, err := ParseClock(req.SendTime); err != nil {
		return req, err
	}
	phones := []string{}
	seen := map[string]bool{}
	for _, raw := range req.Phones {
		phone, err := NormalizePhone(raw)
		if err != nil {
			return req, err
		}
		if !seen[phone] {
			seen[phone] = true
			phones = append(phones, phone)
		}
	}
	if len(phones) == 0 {
		return req, invalidf("at least one phone is required")
	}
	req.Phones = phones
	if req.MonthDay < 1 {
		req.MonthDay = 1
	}
	return req, nil
}

func (s *ScheduledReportService) List(ctx context.Context, tenantID string) ([]models.ScheduledReport, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+scheduledColumns+` FROM scheduled_reports WHERE tenant_id = $1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ScheduledReport{}
	for rows.Next() {
		r, err := scanScheduled(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *ScheduledReportService) Get(ctx context.Context, tenantID, id string) (*models.ScheduledReport, error) {
	r, err := scanScheduled(s.db.QueryRowContext(ctx, `SELECT `+scheduledColumns+` FROM scheduled_reports WHERE id = $1 AND tenant_id = $2`, id, tenantID))
	if err != nil {
		return nil, dbError(err)
	}
	return r, nil
}

func (s *ScheduledReportService) Create(ctx context.Context, tenantID string, req models.ScheduledReportRequest) (*models.ScheduledReport, error) {
	req, err := validateScheduled(req)
	if err != nil {
		return nil, err
	}
	active := req.Active == nil || *req.Active
	r, err := scanScheduled(s.db.QueryRowContext(ctx, `
		INSERT INTO scheduled_reports (tenant_id, name, report, phones, frequency, weekday, month_day, send_time, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+scheduledColumns,
		tenantID, strings.TrimSpace(req.Name), req.Report, pq.Array(req.Phones), req.Frequency, req.Weekday,
		req.MonthDay, strings.TrimSpace(req.SendTime), active))
	if err != nil {
		return nil, dbError(err)
	}
	return r, nil
}

func (s *ScheduledReportService) Update(ctx context.Context, tenantID, id string, req models.ScheduledReportRequest) (*models.ScheduledReport, error) {
	req, err := validateScheduled(req)
	if err != nil {
		return nil, err
	}
	r, err := scanScheduled(s.db.QueryRowContext(ctx, `
		UPDATE scheduled_reports
		SET name = $3, report = $4, phones = $5, frequency = $6, weekday = $7, month_day = $8,
			send_time = $9, active = COALESCE($10, active), updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+scheduledColumns,
		id, tenantID, strings.TrimSpace(req.Name), req.Report, pq.Array(req.Phones), req.Frequency, req.Weekday,
		req.MonthDay, strings.TrimSpace(req.SendTime), req.Active))
	if err != nil {
		return nil, dbError(err)
	}
	return r, nil
}

func (s *ScheduledReportService) Delete(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_reports WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ============================================================================
// DISPATCH
// ============================================================================

func (s *ScheduledReportService) gateway(ctx context.Context, tenantID string) (WhatsAppGateway, error) {
	var gw WhatsAppGateway
	var stored string
	if err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(whatsapp_api_url, ''), COALESCE(whatsapp_token, '') FROM tenants WHERE id = $1
	`, tenantID).Scan(&gw.URL, &stored); err != nil {
		return gw, dbError(err)
	}
	token, err := utils.DecryptString(stored)
	if err != nil {
		return gw, fmt.Errorf("decrypt whatsapp token: %w", err)
	}
	gw.Token = token
	return s.whatsapp.Resolve(gw), nil
}

// Send renders and delivers a report to every phone, logging one dispatch.
// Delivery failures are recorded on the dispatch, not returned. Scheduled
// runs stamp last_sent_at even on failure so a broken gateway is not retried
// every minute.
func (s *ScheduledReportService) Send(ctx context.Context, tenantID, id, trigger string, now time.Time) (*models.ReportDispatch, error) {
	r, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	var failures []string
	gw, err := s.gateway(ctx, tenantID)
	if err != nil {
		failures = append(failures, err.Error())
	}

	var text string
	if len(failures) == 0 {
		data, err := s.collect(ctx, tenantID, r.Report, utils.DateOnly(now))
		if err != nil {
			failures = append(failures, "collect report: "+err.Error())
		} else {
			text = RenderReport(*data)
			for _, phone := range r.Phones {
				if err := s.whatsapp.Send(ctx, gw, phone, text); err != nil {
					failures = append(failures, utils.MaskPhone(phone)+": "+err.Error())
				}
			}
		}
	}

	dispatch := &models.ReportDispatch{ReportID: r.ID, Trigger: trigger, Status: models.DispatchSent}
	if len(failures) > 0 {
		dispatch.Status = models.DispatchFailed
		dispatch.Error = strings.Join(failures, "; ")
	}

	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO report_dispatches (tenant_id, report_id, trigger, status, error)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, sent_at
	`, tenantID, r.ID, trigger, dispatch.Status, nullString(dispatch.Error)).Scan(&dispatch.ID, &dispatch.SentAt); err != nil {
		return nil, err
	}

	if dispatch.Status == models.DispatchSent || trigger == models.TriggerJob {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE scheduled_reports SET last_sent_at = $3 WHERE id = $1 AND tenant_id = $2
		`, r.ID, tenantID, now.In(utils.Location)); err != nil {
			return nil, err
		}
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"report_id": r.ID,
		"trigger":   trigger,
		"status":    dispatch.Status,
	}).Info("scheduled report dispatched")
	return dispatch, nil
}

func (s *ScheduledReportService) Dispatches(ctx context.Context, tenantID, reportID string) ([]models.ReportDispatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, report_id, trigger, status, COALESCE(error, ''), sent_at
		FROM report_dispatches
		WHERE report_id = $1 AND tenant_id = $2
		ORDER BY sent_at DESC LIMIT 100
	`, reportID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ReportDispatch{}
	for rows.Next() {
		var d models.ReportDispatch
		if err := rows.Scan(&d.ID, &d.ReportID, &d.Trigger, &d.Status, &d.Error, &d.SentAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DispatchDue sends every due report of active tenants whose plan includes WhatsApp.
func (s *ScheduledReportService) DispatchDue(ctx context.Context, now time.Time) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixColumns("r", scheduledColumns)+`
		FROM scheduled_reports r
		JOIN tenants t ON t.id = r.tenant_id
		WHERE r.active AND t.status = $1
	`, models.TenantActive)
	if err != nil {
		return 0, err
	}
	var due []models.ScheduledReport
	for rows.Next() {
		r, err := scanScheduled(rows)
		if err != nil {
			rows.Close()
			return 0, err
		}
		if IsDue(*r, now) {
			due = append(due, *r)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	allowed := map[string]bool{}
	sent := 0
	for _, r := range due {
		ok, seen := allowed[r.TenantID]
		if !seen {
			tenant, err := loadTenant(ctx, s.db, r.TenantID)
			if err != nil {
				return sent, err
			}
			ok = hasModule(tenant.Modules, models.ModuleWhatsApp)
			allowed[r.TenantID] = ok
		}
		if !ok {
			continue
		}
		if _, err := s.Send(ctx, r.TenantID, r.ID, models.TriggerJob, now); err != nil {
			s.log.WithError(err).WithField("report_id", r.ID).Error("scheduled report failed")
			continue
		}
		sent++
	}
	return sent, nil
}

func hasModule(modules []string, module string) bool {
	for _, m := range modules {
		if m == module {
			return true
		}
	}
	return false
}

// ============================================================================
// SETTINGS
// ============================================================================

func (s *ScheduledReportService) WhatsAppSettings(ctx context.Context, tenantID string) (*models.WhatsAppSettings, error) {
	gw := WhatsAppGateway{}
	var stored string
	if err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(whatsapp_api_url, ''), COALESCE(whatsapp_token, '') FROM tenants WHERE id = $1
	`, tenantID).Scan(&gw.URL, &stored); err != nil {
		return nil, dbError(err)
	}
	gw.Token = stored
	resolved := s.whatsapp.Resolve(gw)
	return &models.WhatsAppSettings{
		APIURL:       gw.URL,
		Configured:   resolved.Configured(),
		UsingDefault: gw.URL == "" || stored == "",
	}, nil
}

// SaveWhatsAppSettings stores the gateway token encrypted at rest.
func (s *ScheduledReportService) SaveWhatsAppSettings(ctx context.Context, tenantID string, req models.WhatsAppSettingsRequest) (*models.WhatsAppSettings, error) {
	apiURL := strings.TrimSpace(req.APIURL)
	if apiURL != "" {
		u, err := url.Parse(apiURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return nil, invalidf("api_url must be an http(s) URL")
		}
	}

	token, err := utils.EncryptString(strings.TrimSpace(req.Token))
	if err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE tenants SET whatsapp_api_url = $2, whatsapp_token = $3, updated_at = NOW() WHERE id = $1
	`, tenantID, nullString(apiURL), nullString(token)); err != nil {
		return nil, err
	}
	return s.WhatsAppSettings(ctx, tenantID)
}
