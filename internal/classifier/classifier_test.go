package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sale-monitor/internal/classifier/gemini"
	"github.com/JakeFAU/sale-monitor/internal/classifier/openai"
	"github.com/JakeFAU/sale-monitor/internal/classifier/workersai"
	"github.com/JakeFAU/sale-monitor/internal/config"
)

func TestNewSelectsProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider string
		want     any
	}{
		{name: "workers ai", provider: config.ProviderWorkersAI, want: &workersai.Client{}},
		{name: "openai", provider: config.ProviderOpenAI, want: &openai.Client{}},
		{name: "gemini without key", provider: config.ProviderGemini, want: &gemini.Client{}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, err := New(context.Background(), config.ClassifierConfig{Provider: tt.provider, TimeoutSeconds: 5}, nil)
			require.NoError(t, err)
			defer c.Close() //nolint:errcheck // test cleanup
			require.IsType(t, tt.want, c)
		})
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), config.ClassifierConfig{Provider: "llava"}, nil)
	require.Error(t, err)
}
