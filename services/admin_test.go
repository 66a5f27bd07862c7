package services

import (
	"testing"

	"github.com/jbapex/financeiro-api/models"
	"github.com/stretchr/testify/assert"
)

func TestEffectiveModules(t *testing.T) {
	tests := []struct {
		name     string
		plan     []string
		enabled  []string
		disabled []string
		want     []string
	}{
		{"plan only", []string{models.ModuleCRM, models.ModuleFinanceiro}, nil, nil,
			[]string{models.ModuleFinanceiro, models.ModuleCRM}},
		{"override adds", []string{models.ModuleFinanceiro}, []string{models.ModuleIA}, nil,
			[]string{models.ModuleFinanceiro, models.ModuleIA}},
		{"override removes", []string{models.ModuleFinanceiro, models.ModuleEstoque}, nil, []string{models.ModuleEstoque},
			[]string{models.ModuleFinanceiro}},
		{"disable beats enable", nil, []string{models.ModuleWhatsApp}, []string{models.ModuleWhatsApp},
			[]string{}},
		{"unknown names dropped", []string{"xadrez", models.ModuleRelatorios}, nil, nil,
			[]string{models.ModuleRelatorios}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveModules(tt.plan, tt.enabled, tt.disabled))
		})
	}
}

func TestValidModules(t *testing.T) {
	assert.NoError(t, validModules(models.AllModules))
	assert.NoError(t, validModules(nil))
	assert.ErrorIs(t, validModules([]string{models.ModuleCRM, "xadrez"}), ErrInvalidInput)
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"crm", "ia"}, dedupe([]string{" ia", "crm", "ia", ""}))
	assert.Equal(t, []string{}, dedupe(nil))
}
