package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrWhatsAppNotConfigured = errors.New("whatsapp gateway not configured")

// WhatsAppGateway is a text-message gateway reachable over HTTP. The
// tenant-level settings override the process defaults.
type WhatsAppGateway struct {
	URL   string
	Token string
}

func (g WhatsAppGateway) Configured() bool {
	return g.URL != "" && g.Token != ""
}

type WhatsAppService struct {
	defaults   WhatsAppGateway
	httpClient *http.Client
}

func NewWhatsAppService(apiURL, token string) *WhatsAppService {
	return &WhatsAppService{
		defaults:   WhatsAppGateway{URL: apiURL, Token: token},
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// Resolve fills the blanks of a tenant gateway with the process defaults.
func (s *WhatsAppService) Resolve(tenant WhatsAppGateway) WhatsAppGateway {
	if tenant.URL == "" {
		tenant.URL = s.defaults.URL
	}
	if tenant.Token == "" {
		tenant.Token = s.defaults.Token
	}
	return tenant
}

// NormalizePhone keeps digits and prefixes Brazil's country code on local numbers.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case len(digits) == 10 || len(digits) == 11:
		digits = "55" + digits
	case (len(digits) == 12 || len(digits) == 13) && strings.HasPrefix(digits, "55"):
	default:
		return "", invalidf("invalid phone number %q", raw)
	}
	return digits, nil
}

type whatsAppMessage struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func (s *WhatsAppService) Send(ctx context.Context, gw WhatsAppGateway, phone, message string) error {
	if !gw.Configured() {
		return ErrWhatsAppNotConfigured
	}

	body, err := json.Marshal(whatsAppMessage{Phone: phone, Message: message})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, gw.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+gw.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp gateway status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
