package services

import (
	"context"
	"database/sql"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
)

const (
	SourceRule    = "regra"
	SourceCache   = "cache"
	SourceAI      = "ia"
	SourceDefault = "padrao"
)

type CategorizerService struct {
	db  *sql.DB
	ai  *ClaudeAIService
	log *logrus.Logger
}

func NewCategorizerService(db *sql.DB, ai *ClaudeAIService, log *logrus.Logger) *CategorizerService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CategorizerService{db: db, ai: ai, log: log}
}

type staticRule struct {
	keyword  string
	category string
}

// --- STATIC DICTIONARY (free) ---
// Checked in order; longer keywords come before their prefixes.
var staticRules = []staticRule{
	// TAXES
	{"simples nacional", "Impostos"}, {"das", "Impostos"}, {"darf", "Impostos"},
	{"gps inss", "Impostos"}, {"iss", "Impostos"}, {"icms", "Impostos"},

	// BANK
	{"tarifa", "Tarifas Bancárias"}, {"iof", "Tarifas Bancárias"}, {"manutencao conta", "Tarifas Bancárias"},
	{"juros", "Juros"}, {"rendimento", "Rendimentos"}, {"rend pago", "Rendimentos"},

	// PAYROLL
	{"salario", "Salários"}, {"folha", "Salários"}, {"fgts", "Salários"}, {"pro labore", "Salários"},

	// FOOD
	{"ifood", "Alimentação"}, {"rappi", "Alimentação"}, {"restaurante", "Alimentação"},
	{"padaria", "Alimentação"}, {"supermercado", "Alimentação"},

	// TRANSPORT
	{"uber", "Transporte"}, {"99app", "Transporte"}, {"99 pop", "Transporte"}, {"estacionamento", "Transporte"},
	{"sem parar", "Transporte"}, {"posto", "Combustível"}, {"shell", "Combustível"}, {"ipiranga", "Combustível"},
	{"petrobras", "Combustível"},

	// UTILITIES
	{"enel", "Energia e Água"}, {"cemig", "Energia e Água"}, {"copel", "Energia e Água"},
	{"light", "Energia e Água"}, {"sabesp", "Energia e Água"}, {"copasa", "Energia e Água"},
	{"vivo", "Telefone e Internet"}, {"claro", "Telefone e Internet"}, {"tim", "Telefone e Internet"},
	{"oi fibra", "Telefone e Internet"},

	// SOFTWARE
	{"netflix", "Software e Assinaturas"}, {"spotify", "Software e Assinaturas"},
	{"google", "Software e Assinaturas"}, {"microsoft", "Software e Assinaturas"},
	{"adobe", "Software e Assinaturas"}, {"aws", "Software e Assinaturas"},

	// HOUSING
	{"aluguel", "Aluguel"}, {"condominio", "Aluguel"},
}

var accentReplacer = strings.NewReplacer(
	"á", "a", "à", "a", "ã", "a", "â", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "õ", "o", "ô", "o",
	"ú", "u", "ü", "u",
	"ç", "c",
)

// NormalizeLabel lowercases, strips accents and punctuation and collapses
// whitespace: "PAG*IFOOD  São Paulo" becomes "pag ifood sao paulo".
func NormalizeLabel(label string) string {
	s := accentReplacer.Replace(strings.ToLower(label))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

// MatchStaticRule looks the label up in the built-in dictionary. Keywords of
// up to four letters must match a whole word, longer ones a word prefix.
func MatchStaticRule(label string) (string, bool) {
	padded := " " + NormalizeLabel(label) + " "
	for _, rule := range staticRules {
		needle := " " + rule.keyword
		if len(rule.keyword) <= 4 {
			needle += " "
		}
		if strings.Contains(padded, needle) {
			return rule.category, true
		}
	}
	return "", false
}

// GetCategory resolves a free-text label to a category name. known lists the
// tenant's category names, offered to the AI as the closed set of answers.
func (s *CategorizerService) GetCategory(ctx context.Context, rawLabel string, known []string) (string, string) {
	normalized := NormalizeLabel(rawLabel)
	if normalized == "" {
		return "", SourceDefault
	}

	// 1. Static rules
	if category, ok := MatchStaticRule(normalized); ok {
		return category, SourceRule
	}

	// 2. DB cache
	if s.db != nil {
		var cached string
		err := s.db.QueryRowContext(ctx,
			"SELECT category FROM label_mappings WHERE normalized_label = $1",
			normalized).Scan(&cached)
		if err == nil {
			return cached, SourceCache
		}
	}

	// 3. Claude
	if !s.ai.Configured() || len(known) == 0 {
		return "", SourceDefault
	}
	category, err := s.ai.CategorizeLabel(ctx, rawLabel, known)
	if err != nil {
		s.log.WithError(err).Warn("categorizer: AI call failed")
		return "", SourceDefault
	}

	// 4. Store mapping
	if s.db != nil {
		_, err = s.db.ExecContext(ctx,
			"INSERT INTO label_mappings (normalized_label, category, source) VALUES ($1, $2, 'AI') ON CONFLICT (normalized_label) DO NOTHING",
			normalized, category)
		if err != nil {
			s.log.WithError(err).Warn("categorizer: failed to cache mapping")
		}
	}

	return category, SourceAI
}
