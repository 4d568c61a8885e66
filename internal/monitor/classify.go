package monitor

import "strings"

// NoSaleSentinel is the literal the prompt asks the model to emit when the
// page shows no offers. Matching is an exact, case-sensitive substring test.
const NoSaleSentinel = "None found"

// DefaultPrompt is sent to the classifier alongside the screenshot.
const DefaultPrompt = `Look at the text in this screenshot and tell me if there are any sales, 
		discounts, or special offers on the page. If yes, describe the details 
		of the sale. If no, just say "None found"`

// DefaultMaxTokens caps the classifier's generated output.
const DefaultMaxTokens = 1000

// HasSale reports whether description lacks the no-sale sentinel.
func HasSale(description string) bool {
	return !strings.Contains(description, NoSaleSentinel)
}

// Classify derives a Classification from the model description.
func Classify(description string) Classification {
	return Classification{
		Description: description,
		HasSale:     HasSale(description),
	}
}
