package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/jbapex/financeiro-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statementCSV = "\xEF\xBB\xBFData;Descrição;Valor;Tipo\n" +
	"10/03/2024;PIX Cliente;1.500,00;C\n" +
	"11/03/2024;Aluguel;-2.000,00;D\n" +
	";;;\n" +
	"bad;X;10;C\n" +
	"12/03/2024;;10;C\n" +
	"13/03/2024;Taxa;abc;D\n" +
	"14/03/2024;Zero;0;C\n" +
	"15/03/2024;Foo;5;talvez\n"

func statementOptions() models.ImportOptions {
	return models.ImportOptions{Mapping: models.ColumnMapping{
		Date:        "data",
		Description: "Descrição",
		Amount:      "VALOR",
		Type:        "tipo",
	}}
}

func TestParseCSV(t *testing.T) {
	rows, rowErrors, err := ParseCSV(strings.NewReader(statementCSV), statementOptions())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, day(2024, 3, 10), rows[0].Date)
	assert.Equal(t, "PIX Cliente", rows[0].Description)
	assert.Equal(t, models.TypeReceita, rows[0].Type)
	assert.True(t, rows[0].Amount.Equal(dec("1500")))

	assert.Equal(t, models.TypeDespesa, rows[1].Type)
	assert.True(t, rows[1].Amount.Equal(dec("2000")), "amounts are stored positive")
	assert.True(t, rows[1].SignedAmount.Equal(dec("-2000")))

	lines := []int{}
	for _, e := range rowErrors {
		lines = append(lines, e.Line)
	}
	assert.Equal(t, []int{5, 6, 7, 8, 9}, lines, "blank line 4 is skipped silently")
	assert.Contains(t, rowErrors[0].Error, "invalid date")
	assert.Contains(t, rowErrors[4].Error, "invalid type")
}

func TestParseCSV_SignDecidesTypeWithoutTypeColumn(t *testing.T) {
	input := "date,description,amount\n2024-03-01,Venda,250.00\n2024-03-02,Tarifa,-12.90\n"
	opts := models.ImportOptions{Mapping: models.ColumnMapping{Date: "date", Description: "description", Amount: "amount"}}

	rows, rowErrors, err := ParseCSV(strings.NewReader(input), opts)
	require.NoError(t, err)
	assert.Empty(t, rowErrors)
	require.Len(t, rows, 2)
	assert.Equal(t, models.TypeReceita, rows[0].Type)
	assert.Equal(t, models.TypeDespesa, rows[1].Type)
	assert.True(t, rows[1].Amount.Equal(dec("12.90")))
}

func TestParseCSV_SubCentAmountIsZero(t *testing.T) {
	input := "date;description;amount\n2024-03-01;Cafe;0,004\n2024-03-02;Pao;0,005\n"
	opts := models.ImportOptions{DecimalComma: true, Mapping: models.ColumnMapping{Date: "date", Description: "description", Amount: "amount"}}

	rows, rowErrors, err := ParseCSV(strings.NewReader(input), opts)
	require.NoError(t, err)
	require.Len(t, rowErrors, 1)
	assert.Equal(t, 2, rowErrors[0].Line)
	assert.Contains(t, rowErrors[0].Error, "amount is zero")
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Amount.Equal(dec("0.01")))
}

func TestParseCSV_HeaderErrors(t *testing.T) {
	_, _, err := ParseCSV(strings.NewReader(statementCSV), models.ImportOptions{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	opts := statementOptions()
	opts.Mapping.Notes = "observacao"
	_, _, err = ParseCSV(strings.NewReader(statementCSV), opts)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = ParseCSV(strings.NewReader(""), statementOptions())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseCSV_TruncatesLongDescriptions(t *testing.T) {
	long := strings.Repeat("ç", 300)
	input := "d;desc;v\n01/03/2024;" + long + ";10\n"
	opts := models.ImportOptions{Mapping: models.ColumnMapping{Date: "d", Description: "desc", Amount: "v"}}

	rows, _, err := ParseCSV(strings.NewReader(input), opts)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, []rune(rows[0].Description), 255)
}

func TestPreviewCSV(t *testing.T) {
	var b strings.Builder
	b.WriteString("Data\tHistórico\tValor\n")
	for i := 1; i <= 15; i++ {
		fmt.Fprintf(&b, "%02d/03/2024\tItem %d\t%d,00\n", i, i, i)
	}

	preview, err := PreviewCSV(strings.NewReader(b.String()), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Data", "Histórico", "Valor"}, preview.Header)
	assert.Equal(t, "tab", preview.Delimiter)
	require.Len(t, preview.Rows, PreviewRows)
	assert.Equal(t, "Item 1", preview.Rows[0][1])

	_, err = PreviewCSV(strings.NewReader(""), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDetectDelimiter(t *testing.T) {
	assert.Equal(t, ';', DetectDelimiter("a;b;c"))
	assert.Equal(t, ',', DetectDelimiter("a,b,c"))
	assert.Equal(t, '|', DetectDelimiter("a|b|c"))
	assert.Equal(t, '\t', DetectDelimiter("a\tb"))
	assert.Equal(t, ',', DetectDelimiter("single"))
}

func TestParseTypeValue(t *testing.T) {
	for _, raw := range []string{"Crédito", "C", "entrada", "RECEITA"} {
		kind, ok := ParseTypeValue(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, models.TypeReceita, kind, raw)
	}
	for _, raw := range []string{"Débito", "D", "saída", "despesa"} {
		kind, ok := ParseTypeValue(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, models.TypeDespesa, kind, raw)
	}
	_, ok := ParseTypeValue("talvez")
	assert.False(t, ok)
}
