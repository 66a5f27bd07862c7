package utils

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestMaskString(t *testing.T) {
	assert.Equal(t, "contato ***@***.***", MaskString("contato joao.silva@empresa.com.br"))
	assert.Equal(t, "cpf ***.***.***-**", MaskString("cpf 123.456.789-09"))
	assert.Equal(t, "cnpj **.***.***/****-**", MaskString("cnpj 12.345.678/0001-95"))
	assert.Equal(t, "saldo R$ ***", MaskString("saldo R$ 1.234,56"))
	assert.Equal(t, "tenant 3f2b8c1a...", MaskString("tenant 3f2b8c1a-1111-2222-3333-444455556666"))
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "****5678", MaskPhone("5511912345678"))
	assert.Equal(t, "****", MaskPhone("123"))
}

func TestMaskingHook(t *testing.T) {
	entry := logrus.NewEntry(logrus.New())
	entry.Message = "login for ana@example.com"
	entry.Data = logrus.Fields{"email": "ana@example.com", "count": 3}

	assert.NoError(t, NewMaskingHook().Fire(entry))
	assert.Equal(t, "login for ***@***.***", entry.Message)
	assert.Equal(t, "***@***.***", entry.Data["email"])
	assert.Equal(t, 3, entry.Data["count"])
}
