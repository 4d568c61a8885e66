package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/require"
)

func TestResponseTextJoinsTextParts(t *testing.T) {
	t.Parallel()

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{
				genai.Text("Summer sale: "),
				genai.ImageData("png", []byte{1}),
				genai.Text("30% off\n"),
			}},
		}},
	}
	require.Equal(t, "Summer sale: 30% off", responseText(resp))
}

func TestResponseTextHandlesEmpty(t *testing.T) {
	t.Parallel()

	require.Empty(t, responseText(nil))
	require.Empty(t, responseText(&genai.GenerateContentResponse{}))
	require.Empty(t, responseText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}))
}

func TestDescribeWithoutKey(t *testing.T) {
	t.Parallel()

	c, err := New(context.Background(), "", "gemini-1.5-flash", nil)
	require.NoError(t, err)
	_, err = c.Describe(context.Background(), []byte{1}, "p", 10)
	require.True(t, errors.Is(err, ErrMissingAPIKey))
	require.NoError(t, c.Close())
}
