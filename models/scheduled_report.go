package models

import (
	"time"
)

const (
	ReportResumoDiario  = "resumo_diario"
	ReportResumoSemanal = "resumo_semanal"
	ReportResumoMensal  = "resumo_mensal"
	ReportContasVencer  = "contas_vencer"

	ScheduleDiario  = "diario"
	ScheduleSemanal = "semanal"
	ScheduleMensal  = "mensal"

	DispatchSent   = "enviado"
	DispatchFailed = "falhou"

	TriggerManual = "manual"
	TriggerJob    = "agendado"
)

type ScheduledReport struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	Name       string     `json:"name"`
	Report     string     `json:"report"`
	Phones     []string   `json:"phones"`
	Frequency  string     `json:"frequency"`
	Weekday    int        `json:"weekday"`
	MonthDay   int        `json:"month_day"`
	SendTime   string     `json:"time"`
	Active     bool       `json:"active"`
	LastSentAt *time.Time `json:"last_sent_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type ScheduledReportRequest struct {
	Name      string   `json:"name" binding:"required,max=120"`
	Report    string   `json:"report" binding:"required,oneof=resumo_diario resumo_semanal resumo_mensal contas_vencer"`
	Phones    []string `json:"phones" binding:"required,min=1"`
	Frequency string   `json:"frequency" binding:"required,oneof=diario semanal mensal"`
	Weekday   int      `json:"weekday" binding:"min=0,max=6"`
	MonthDay  int      `json:"month_day" binding:"min=0,max=31"`
	SendTime  string   `json:"time" binding:"required"`
	Active    *bool    `json:"active"`
}

type ReportDispatch struct {
	ID       string    `json:"id"`
	ReportID string    `json:"report_id"`
	Trigger  string    `json:"trigger"`
	Status   string    `json:"status"`
	Error    string    `json:"error,omitempty"`
	SentAt   time.Time `json:"sent_at"`
}

type WhatsAppSettingsRequest struct {
	APIURL string `json:"api_url"`
	Token  string `json:"token" binding:"required"`
}

type WhatsAppSettings struct {
	APIURL       string `json:"api_url"`
	Configured   bool   `json:"configured"`
	UsingDefault bool   `json:"using_default"`
}
