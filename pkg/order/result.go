package order

import (
	"regexp"
	"strings"
)

// SubmitResult is what the signing/transport client reports for a place or
// cancel. Terminal order states come from the exchange, not from here.
type SubmitResult struct {
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	OrderID    *uint64 `json:"orderId,omitempty"`
	FilledSize *string `json:"filledSize,omitempty"`
	AvgPrice   *string `json:"avgPrice,omitempty"`
}

// Filled reports whether the exchange returned fill information.
func (r SubmitResult) Filled() bool { return r.FilledSize != nil && r.AvgPrice != nil }

// Err returns nil on success and an *ExternalFailure otherwise.
func (r SubmitResult) Err() error {
	if r.Success {
		return nil
	}
	return &ExternalFailure{Raw: r.Message, Message: CleanMessage(r.Message)}
}

// ExternalFailure is a rejection reported by the exchange client.
// Message is safe to show to an end user; Raw is kept for logs.
type ExternalFailure struct {
	Raw     string
	Message string
}

func (e *ExternalFailure) Error() string { return e.Message }

var (
	assetSuffix = regexp.MustCompile(`(?i)[\s.,;:]*\basset=\d+\b`)
	spaces      = regexp.MustCompile(`\s{2,}`)
)

var internalPrefixes = []string{
	"Exchange error:",
	"Failed to place order:",
	"Failed to cancel order:",
	"Cancel failed:",
}

// CleanMessage strips transport prefixes and numeric asset-id tokens.
//
//	"Exchange error: Order must have minimum value of $10. asset=10142"
//	-> "Order must have minimum value of $10"
func CleanMessage(msg string) string {
	out := strings.TrimSpace(msg)
	for changed := true; changed; {
		changed = false
		for _, p := range internalPrefixes {
			if strings.HasPrefix(out, p) {
				out = strings.TrimSpace(strings.TrimPrefix(out, p))
				changed = true
			}
		}
	}
	out = assetSuffix.ReplaceAllString(out, "")
	out = spaces.ReplaceAllString(out, " ")
	out = strings.TrimRight(strings.TrimSpace(out), ".,;:")
	if out == "" {
		return "Order rejected"
	}
	return out
}
