package monitor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasSale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		description string
		want        bool
	}{
		{name: "sentinel only", description: "None found", want: false},
		{name: "sale described", description: "Sale: 20% off shoes", want: true},
		{name: "sentinel embedded", description: "no sale, None found here", want: false},
		{name: "lowercase sentinel is not matched", description: "none found", want: true},
		{name: "empty description", description: "", want: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, HasSale(tt.description))
		})
	}
}

func TestClassifyKeepsDescription(t *testing.T) {
	t.Parallel()

	c := Classify("Spring sale, 30% off lighting")
	require.True(t, c.HasSale)
	require.Equal(t, "Spring sale, 30% off lighting", c.Description)
}

func TestDefaultPromptAsksForSentinel(t *testing.T) {
	t.Parallel()

	require.Contains(t, DefaultPrompt, `"None found"`)
	require.Equal(t, 1000, DefaultMaxTokens)
}
