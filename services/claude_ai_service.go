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

	"github.com/sirupsen/logrus"
)

// ============================================================================
// CLAUDE AI SERVICE - advisor chat and label classification
// ============================================================================

const anthropicMessagesURL = "https://api.anthropic.com/v1/messages"

var ErrAINotConfigured = errors.New("ANTHROPIC_API_KEY not set")

type ClaudeAIService struct {
	apiKey     string
	model      string
	fastModel  string
	maxTokens  int
	baseURL    string
	httpClient *http.Client
	log        *logrus.Logger
}

type ClaudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []ClaudeMessage `json:"messages"`
}

type ClaudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ClaudeResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func NewClaudeAIService(apiKey string, log *logrus.Logger) *ClaudeAIService {
	return &ClaudeAIService{
		apiKey:     apiKey,
		model:      "claude-3-5-sonnet-latest",
		fastModel:  "claude-3-haiku-20240307",
		maxTokens:  1500,
		baseURL:    anthropicMessagesURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log,
	}
}

func (s *ClaudeAIService) Configured() bool {
	return s != nil && s.apiKey != ""
}

// ============================================================================
// 1. ADVISOR CHAT
// ============================================================================

// Chat sends the whole conversation, oldest first, and returns the reply text.
func (s *ClaudeAIService) Chat(ctx context.Context, system string, history []ClaudeMessage) (string, error) {
	if !s.Configured() {
		return "", ErrAINotConfigured
	}
	if len(history) == 0 {
		return "", invalidf("empty conversation")
	}

	return s.executeRequest(ctx, ClaudeRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    system,
		Messages:  history,
	})
}

// ============================================================================
// 2. LABEL CLASSIFICATION
// Called when the static rules and the mapping cache both miss.
// ============================================================================

// CategorizeLabel asks for exactly one of the given category names.
func (s *ClaudeAIService) CategorizeLabel(ctx context.Context, label string, categories []string) (string, error) {
	if !s.Configured() {
		return "", ErrAINotConfigured
	}

	systemPrompt := `Você classifica lançamentos financeiros de pequenas empresas brasileiras.
Responda SOMENTE com o nome exato de uma das categorias fornecidas, sem pontuação.
Se nenhuma servir, responda "Outros".`

	prompt := fmt.Sprintf("Categorias: %s\nLançamento: %s", strings.Join(categories, ", "), label)

	category, err := s.executeRequest(ctx, ClaudeRequest{
		Model:     s.fastModel,
		MaxTokens: 20,
		System:    systemPrompt,
		Messages:  []ClaudeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}

	return strings.Trim(strings.TrimSpace(category), ".\""), nil
}

// ============================================================================
// HELPER: EXECUTE REQUEST
// ============================================================================

func (s *ClaudeAIService) executeRequest(ctx context.Context, requestBody ClaudeRequest) (string, error) {
	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var claudeResp ClaudeResponse
	if err := json.Unmarshal(body, &claudeResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(claudeResp.Content) == 0 {
		return "", fmt.Errorf("empty response from Claude")
	}

	if s.log != nil {
		s.log.WithFields(logrus.Fields{
			"model":         claudeResp.Model,
			"input_tokens":  claudeResp.Usage.InputTokens,
			"output_tokens": claudeResp.Usage.OutputTokens,
			"cost_usd":      s.EstimateCost(claudeResp.Usage.InputTokens, claudeResp.Usage.OutputTokens),
		}).Debug("claude call")
	}

	return claudeResp.Content[0].Text, nil
}

// ============================================================================
// COST ESTIMATE
// ============================================================================

const (
	InputTokenPrice  = 0.000003
	OutputTokenPrice = 0.000015
)

func (s *ClaudeAIService) EstimateCost(inputTokens int, outputTokens int) float64 {
	return float64(inputTokens)*InputTokenPrice + float64(outputTokens)*OutputTokenPrice
}
