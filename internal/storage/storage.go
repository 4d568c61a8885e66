// Package storage names screenshot copies and hosts the blob store backends.
package storage

import (
	"path"
	"strings"
	"time"
)

// ScreenshotKey returns the object path for a run's screenshot:
// <prefix>/<yyyy>/<mm>/<dd>/<runID>.jpg.
func ScreenshotKey(prefix, runID string, at time.Time) string {
	return path.Join(strings.Trim(prefix, "/"), at.UTC().Format("2006/01/02"), runID+".jpg")
}
