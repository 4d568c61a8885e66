package monitor

import (
	"encoding/base64"
	"fmt"
	"time"
)

// Email subjects keyed on the classification outcome.
const (
	SubjectSale   = "🔥 Sale Alert: Discounts Found!"
	SubjectNoSale = "Sale Monitor: No Sales Today"
)

// ScreenshotFilename names the attachment in the report email.
const ScreenshotFilename = "screenshot.jpg"

// TimestampLayout renders UTC times the way the report body and status
// document expect them (millisecond ISO-8601 with a Z suffix).
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in TimestampLayout after converting to UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Subject picks the email subject for a classification.
func Subject(c Classification) string {
	if c.HasSale {
		return SubjectSale
	}
	return SubjectNoSale
}

// BuildEmail composes the report for one run. The screenshot is attached as
// base64 content.
func BuildEmail(from, to, url string, c Classification, shot Screenshot, now time.Time) EmailMessage {
	contentType := shot.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	text := fmt.Sprintf("Website: %s\nAnalysis: %s\nTimestamp: %s", url, c.Description, FormatTimestamp(now))
	return EmailMessage{
		From:    from,
		To:      to,
		Subject: Subject(c),
		Text:    text,
		Attachments: []Attachment{{
			Filename:    ScreenshotFilename,
			Content:     base64.StdEncoding.EncodeToString(shot.Data),
			ContentType: contentType,
		}},
	}
}
