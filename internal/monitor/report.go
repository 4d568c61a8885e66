package monitor

// StatusReport is the JSON status document for scheduled runs and the error
// body for failed interactive runs.
type StatusReport struct {
	Success        bool   `json:"success"`
	Timestamp      string `json:"timestamp,omitempty"`
	URL            string `json:"url,omitempty"`
	HasSale        *bool  `json:"hasSale,omitempty"`
	AnalysisResult string `json:"analysisResult,omitempty"`
	EmailSent      *bool  `json:"emailSent,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Report converts an outcome to its wire form.
func (o Outcome) Report() StatusReport {
	if o.Err != nil {
		return StatusReport{Success: false, Error: o.Err.Error()}
	}
	hasSale := o.Classification.HasSale
	emailSent := o.EmailSent
	return StatusReport{
		Success:        true,
		Timestamp:      FormatTimestamp(o.Timestamp),
		URL:            o.Request.URL,
		HasSale:        &hasSale,
		AnalysisResult: o.Classification.Description,
		EmailSent:      &emailSent,
	}
}
