package monitor

import (
	"context"
	"io"
	"time"
)

// Renderer loads a page in a headless browser and captures a screenshot.
// Implementations acquire and release their browser session inside Capture.
type Renderer interface {
	Capture(ctx context.Context, url string) (Screenshot, error)
}

// Classifier describes an image in response to a text prompt.
type Classifier interface {
	Describe(ctx context.Context, image []byte, prompt string, maxTokens int) (string, error)
}

// Notifier delivers an email message.
type Notifier interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
