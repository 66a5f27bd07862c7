package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"
)

var ErrEmailNotConfigured = errors.New("RESEND_API_KEY not configured")

const resendURL = "https://api.resend.com/emails"

type EmailService struct {
	apiKey      string
	fromEmail   string
	frontendURL string
	endpoint    string
	httpClient  *http.Client
}

func NewEmailService(apiKey, fromEmail, frontendURL string) *EmailService {
	return &EmailService{
		apiKey:      apiKey,
		fromEmail:   fromEmail,
		frontendURL: frontendURL,
		endpoint:    resendURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *EmailService) Configured() bool {
	return s != nil && s.apiKey != ""
}

// InvitationURL is the link the invitee opens in the web app.
func (s *EmailService) InvitationURL(token string) string {
	return fmt.Sprintf("%s/convite/aceitar?token=%s", s.frontendURL, token)
}

func (s *EmailService) SendInvitation(ctx context.Context, to, inviterName, companyName, token string) error {
	if !s.Configured() {
		return ErrEmailNotConfigured
	}

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: sans-serif; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #0f766e; color: white; padding: 30px; border-radius: 10px 10px 0 0; }
        .content { background: #f8f9fa; padding: 30px; }
        .button { display: inline-block; background: #0f766e; color: white; padding: 15px 30px; text-decoration: none; border-radius: 8px; margin: 20px 0; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Convite para o JB APEX Financeiro</h1>
        </div>
        <div class="content">
            <p>Olá,</p>
            <p><strong>%s</strong> convidou você para acessar o financeiro da empresa <strong>%s</strong>.</p>
            <a href="%s" class="button">Aceitar convite</a>
            <p style="color: #b91c1c; margin-top: 30px;">Este link expira em 7 dias.</p>
        </div>
    </div>
</body>
</html>
	`, html.EscapeString(inviterName), html.EscapeString(companyName), s.InvitationURL(token))

	payload := map[string]interface{}{
		"from":    fmt.Sprintf("JB APEX Financeiro <%s>", s.fromEmail),
		"to":      []string{to},
		"subject": fmt.Sprintf("%s convidou você para o financeiro da %s", inviterName, companyName),
		"html":    htmlBody,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.apiKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send email: status %d", resp.StatusCode)
	}

	return nil
}
