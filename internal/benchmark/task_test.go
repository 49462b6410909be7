package benchmark

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	items, err := Expand([]string{"A", "B"}, "m", 3)
	require.NoError(t, err)
	require.Len(t, items, 6)

	want := []WorkItem{
		{Prompt: "A", Model: "m", Run: 1},
		{Prompt: "A", Model: "m", Run: 2},
		{Prompt: "A", Model: "m", Run: 3},
		{Prompt: "B", Model: "m", Run: 1},
		{Prompt: "B", Model: "m", Run: 2},
		{Prompt: "B", Model: "m", Run: 3},
	}
	assert.Equal(t, want, items)
}

func TestExpand_SingleRun(t *testing.T) {
	items, err := Expand([]string{"only"}, "m", 1)
	require.NoError(t, err)
	assert.Equal(t, []WorkItem{{Prompt: "only", Model: "m", Run: 1}}, items)
}

func TestExpand_DuplicatePromptsStayDistinct(t *testing.T) {
	items, err := Expand([]string{"same", "same"}, "m", 2)
	require.NoError(t, err)
	assert.Len(t, items, 4)
}

func TestExpand_InvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		prompts []string
		model   string
		runs    int
	}{
		{name: "no prompts", prompts: nil, model: "m", runs: 1},
		{name: "zero runs", prompts: []string{"p"}, model: "m", runs: 0},
		{name: "negative runs", prompts: []string{"p"}, model: "m", runs: -2},
		{name: "blank model", prompts: []string{"p"}, model: "  ", runs: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := Expand(tt.prompts, tt.model, tt.runs)
			assert.Nil(t, items)
			assert.True(t, errors.Is(err, ErrInvalidInput), "got %v", err)
		})
	}
}

func TestParsePrompts(t *testing.T) {
	input := "  first prompt \n\n\t\nsecond\r\n   \nthird"
	prompts, err := ParsePrompts(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"first prompt", "second", "third"}, prompts)
}

func TestParsePrompts_Empty(t *testing.T) {
	prompts, err := ParsePrompts(strings.NewReader("\n \n"))
	require.NoError(t, err)
	assert.Empty(t, prompts)
}
