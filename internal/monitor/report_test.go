package monitor

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReportSuccess(t *testing.T) {
	t.Parallel()

	out := Outcome{
		Request:        Request{URL: "https://www.dwr.com", Trigger: TriggerScheduled},
		Timestamp:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Classification: Classify("None found"),
		EmailSent:      false,
	}
	body, err := json.Marshal(out.Report())
	require.NoError(t, err)
	require.JSONEq(t, `{
		"success": true,
		"timestamp": "2024-05-01T12:00:00.000Z",
		"url": "https://www.dwr.com",
		"hasSale": false,
		"analysisResult": "None found",
		"emailSent": false
	}`, string(body))
}

func TestReportFailure(t *testing.T) {
	t.Parallel()

	out := Outcome{Err: NewError(KindNavigation, errors.New("net::ERR_NAME_NOT_RESOLVED"))}
	require.False(t, out.Success())
	body, err := json.Marshal(out.Report())
	require.NoError(t, err)
	require.JSONEq(t, `{"success": false, "error": "net::ERR_NAME_NOT_RESOLVED"}`, string(body))
}
