package monitor

import (
	"time"
)

// Trigger identifies where an invocation originated.
type Trigger string

// Trigger kinds.
const (
	TriggerInteractive Trigger = "interactive"
	TriggerScheduled   Trigger = "scheduled"
)

// Request is the immutable input to one pipeline run.
type Request struct {
	URL     string
	Trigger Trigger
}

// Screenshot holds the captured page image for the duration of one run.
type Screenshot struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Classification is the model's description plus the derived sale flag.
type Classification struct {
	Description string
	HasSale     bool
}

// Attachment is a base64-encoded email attachment.
type Attachment struct {
	Filename    string
	Content     string
	ContentType string
}

// EmailMessage is built once per run and handed to a Notifier.
type EmailMessage struct {
	From        string
	To          string
	Subject     string
	Text        string
	Attachments []Attachment
}

// Outcome is the terminal record of one pipeline run.
//
// Err is set when a fatal step failed; the remaining fields are then only
// partially populated. NotifyErr records a failed email send, which never
// makes the run unsuccessful.
type Outcome struct {
	RunID          string
	Request        Request
	Timestamp      time.Time
	Screenshot     Screenshot
	Classification Classification
	EmailSent      bool
	NotifyErr      error
	Err            *Error
}

// Success reports whether every fatal step completed.
func (o Outcome) Success() bool {
	return o.Err == nil
}
