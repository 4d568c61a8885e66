package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/require"
)

type fakeInvoker struct {
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
}

func (f *fakeInvoker) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestDescribeBuildsMessagesPayload(t *testing.T) {
	t.Parallel()

	fake := &fakeInvoker{body: `{"content":[{"type":"text","text":"Clearance: up to 50% off"}]}`}
	c := NewClient(fake, "anthropic.claude-3-haiku-20240307-v1:0", nil)

	desc, err := c.Describe(context.Background(), []byte{0xff, 0xd8}, "find sales", 1000)
	require.NoError(t, err)
	require.Equal(t, "Clearance: up to 50% off", desc)
	require.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", aws.ToString(fake.input.ModelId))

	var sent messagesRequest
	require.NoError(t, json.Unmarshal(fake.input.Body, &sent))
	require.Equal(t, anthropicVersion, sent.AnthropicVersion)
	require.Equal(t, 1000, sent.MaxTokens)
	require.Len(t, sent.Messages, 1)
	require.Len(t, sent.Messages[0].Content, 2)
	require.Equal(t, "image", sent.Messages[0].Content[0].Type)
	require.Equal(t, "/9g=", sent.Messages[0].Content[0].Source.Data)
	require.Equal(t, "find sales", sent.Messages[0].Content[1].Text)
}

func TestDescribePropagatesInvokeError(t *testing.T) {
	t.Parallel()

	c := NewClient(&fakeInvoker{err: errors.New("throttled")}, "m", nil)
	_, err := c.Describe(context.Background(), []byte{1}, "p", 10)
	require.ErrorContains(t, err, "throttled")
}

func TestDescribeEmptyContent(t *testing.T) {
	t.Parallel()

	c := NewClient(&fakeInvoker{body: `{"content":[]}`}, "m", nil)
	_, err := c.Describe(context.Background(), []byte{1}, "p", 10)
	require.ErrorContains(t, err, "empty response")
}
