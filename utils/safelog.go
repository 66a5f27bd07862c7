// utils/safelog.go
// ============================================================================
// SAFE LOGGING - masks personal and financial data in production logs
// ============================================================================

package utils

import (
	"regexp"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ============================================================================
// PATTERNS
// ============================================================================

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	// CPF 000.000.000-00 and CNPJ 00.000.000/0000-00, punctuated or not
	cnpjRegex = regexp.MustCompile(`\b\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2}\b`)
	cpfRegex  = regexp.MustCompile(`\b\d{3}\.?\d{3}\.?\d{3}-?\d{2}\b`)

	// R$ 1.234,56 / 1234.56 BRL
	amountWithCurrencyRegex = regexp.MustCompile(`(R\$\s*-?\d[\d.,]*|-?\d[\d.,]*\s*(BRL|R\$))`)

	// +55 (11) 91234-5678, 5511912345678
	phoneRegex = regexp.MustCompile(`\+?55\s?\(?\d{2}\)?\s?9?\d{4}-?\d{4}\b`)

	uuidRegex = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
)

// ============================================================================
// MASKING
// ============================================================================

// MaskString masks sensitive data inside free text.
func MaskString(input string) string {
	result := emailRegex.ReplaceAllString(input, "***@***.***")
	result = cnpjRegex.ReplaceAllString(result, "**.***.***/****-**")
	result = cpfRegex.ReplaceAllString(result, "***.***.***-**")
	result = phoneRegex.ReplaceAllString(result, "+55 ** *****-****")
	result = amountWithCurrencyRegex.ReplaceAllString(result, "R$ ***")
	result = uuidRegex.ReplaceAllStringFunc(result, shortenID)
	return result
}

func MaskAmount(amount decimal.Decimal) string {
	return "R$ ***"
}

// MaskID keeps the first 8 characters.
func MaskID(id string) string {
	return shortenID(id)
}

func MaskEmail(email string) string {
	return "***@***.***"
}

// MaskPhone keeps the last 4 digits.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}

func shortenID(id string) string {
	if len(id) <= 8 {
		return "***"
	}
	return id[:8] + "..."
}

// ============================================================================
// LOGRUS HOOK
// ============================================================================

// MaskingHook rewrites the message and string fields of every entry.
type MaskingHook struct{}

func NewMaskingHook() *MaskingHook {
	return &MaskingHook{}
}

func (h *MaskingHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *MaskingHook) Fire(entry *logrus.Entry) error {
	entry.Message = MaskString(entry.Message)
	for key, value := range entry.Data {
		if s, ok := value.(string); ok {
			entry.Data[key] = MaskString(s)
		}
	}
	return nil
}
