package services

import (
	"testing"
	"time"

	"github.com/jbapex/financeiro-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOccurrence(t *testing.T) {
	start := day(2024, 1, 31)
	assert.Equal(t, start, Occurrence(models.FreqMensal, start, 0))
	assert.Equal(t, day(2024, 2, 29), Occurrence(models.FreqMensal, start, 1))
	assert.Equal(t, day(2024, 3, 31), Occurrence(models.FreqMensal, start, 2), "day 31 comes back after February")
	assert.Equal(t, day(2024, 2, 14), Occurrence(models.FreqSemanal, start, 2))
	assert.Equal(t, day(2024, 7, 31), Occurrence(models.FreqSemestral, start, 1))
	assert.Equal(t, day(2024, 4, 30), Occurrence(models.FreqTrimestral, start, 1))
	assert.Equal(t, day(2025, 2, 28), Occurrence(models.FreqAnual, day(2024, 2, 29), 1))
}

func TestFirstOnOrAfter(t *testing.T) {
	tpl := models.RecurringTemplate{Frequency: models.FreqMensal, StartDate: day(2024, 1, 10)}

	d, ok := FirstOnOrAfter(tpl, day(2024, 3, 11))
	require.True(t, ok)
	assert.Equal(t, day(2024, 4, 10), d)

	d, ok = FirstOnOrAfter(tpl, day(2024, 3, 10))
	require.True(t, ok)
	assert.Equal(t, day(2024, 3, 10), d)

	end := day(2024, 3, 31)
	tpl.EndDate = &end
	_, ok = FirstOnOrAfter(tpl, day(2024, 3, 11))
	assert.False(t, ok)
}

func TestOccurrencesBetween(t *testing.T) {
	tpl := models.RecurringTemplate{Frequency: models.FreqMensal, StartDate: day(2024, 1, 15)}

	got := OccurrencesBetween(tpl, day(2024, 2, 1), day(2024, 4, 30))
	assert.Equal(t, []time.Time{day(2024, 2, 15), day(2024, 3, 15), day(2024, 4, 15)}, got)

	end := day(2024, 3, 20)
	tpl.EndDate = &end
	got = OccurrencesBetween(tpl, day(2024, 2, 1), day(2024, 4, 30))
	assert.Equal(t, []time.Time{day(2024, 2, 15), day(2024, 3, 15)}, got)

	assert.Empty(t, OccurrencesBetween(tpl, day(2023, 1, 1), day(2023, 12, 31)))
}

func TestPreview(t *testing.T) {
	tpl := models.RecurringTemplate{
		Frequency: models.FreqMensal,
		StartDate: day(2024, 1, 31),
		NextDate:  day(2024, 1, 31),
	}
	assert.Equal(t, []time.Time{day(2024, 1, 31), day(2024, 2, 29), day(2024, 3, 31)}, Preview(tpl, 3))
	assert.Empty(t, Preview(tpl, 0))

	end := day(2024, 2, 29)
	tpl.EndDate = &end
	assert.Len(t, Preview(tpl, 10), 2)
}

func TestTemplateFromRequest(t *testing.T) {
	today := day(2024, 5, 1)
	req := models.RecurringRequest{
		Description: " Aluguel ",
		Type:        models.TypeDespesa,
		Amount:      dec("1500.005"),
		Frequency:   models.FreqMensal,
		StartDate:   "2024-01-15",
	}

	tpl, err := templateFromRequest(req, today)
	require.NoError(t, err)
	assert.Equal(t, "Aluguel", tpl.Description)
	assert.Equal(t, day(2024, 5, 15), tpl.NextDate)
	assert.True(t, tpl.Active)
	assert.True(t, tpl.Amount.Equal(dec("1500.01")))

	req.EndDate = "2024-03-01"
	tpl, err = templateFromRequest(req, today)
	require.NoError(t, err)
	assert.False(t, tpl.Active, "schedule already over")
	assert.Equal(t, day(2024, 1, 15), tpl.NextDate)
}

func TestTemplateFromRequest_Invalid(t *testing.T) {
	base := models.RecurringRequest{Type: models.TypeReceita, Amount: dec("10"), Frequency: models.FreqMensal, StartDate: "2024-01-01"}
	today := day(2024, 1, 1)

	bad := base
	bad.Frequency = "diaria"
	_, err := templateFromRequest(bad, today)
	assert.ErrorIs(t, err, ErrInvalidInput)

	bad = base
	bad.Amount = dec("0")
	_, err = templateFromRequest(bad, today)
	assert.ErrorIs(t, err, ErrInvalidInput)

	bad = base
	bad.EndDate = "2023-12-31"
	_, err = templateFromRequest(bad, today)
	assert.ErrorIs(t, err, ErrInvalidInput)

	bad = base
	bad.StartDate = "amanha"
	_, err = templateFromRequest(bad, today)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
