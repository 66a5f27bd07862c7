package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveCard_AcrossColumns(t *testing.T) {
	board := map[string][]string{
		"lead":     {"a", "b", "c"},
		"proposta": {"x", "y"},
	}

	changed, err := MoveCard(board, "b", "proposta", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, changed["lead"])
	assert.Equal(t, []string{"x", "b", "y"}, changed["proposta"])
	assert.Equal(t, []string{"a", "b", "c"}, board["lead"], "input is not mutated")
}

func TestMoveCard_WithinColumn(t *testing.T) {
	board := map[string][]string{"lead": {"a", "b", "c"}, "fechado": {}}

	changed, err := MoveCard(board, "a", "lead", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, changed["lead"])
	assert.NotContains(t, changed, "fechado")
}

func TestMoveCard_ClampsPosition(t *testing.T) {
	board := map[string][]string{"lead": {"a"}, "fechado": {"z"}}

	changed, err := MoveCard(board, "a", "fechado", 99)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a"}, changed["fechado"])
	assert.Empty(t, changed["lead"])

	changed, err = MoveCard(board, "a", "fechado", -3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "z"}, changed["fechado"])
}

func TestMoveCard_NewCardAndUnknownStage(t *testing.T) {
	board := map[string][]string{"lead": {"a"}}

	changed, err := MoveCard(board, "new", "lead", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "a"}, changed["lead"])

	_, err = MoveCard(board, "a", "missing", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}
