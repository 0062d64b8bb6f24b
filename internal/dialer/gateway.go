// Package dialer drives call attempts through a pluggable gateway and turns
// their outcomes into call records.
package dialer

import (
	"context"

	"autodialer-platform/internal/calllog"
)

// Outcome is the provider-agnostic result of one call attempt.
//
// Rules:
// - No provider SDK calls outside gateway implementations.
// - Transport failures are data (a failed outcome), not faults: a gateway
//   maps anything it cannot deliver into StatusFailed with the error
//   captured in ErrorMessage.
type Outcome struct {
	Status calllog.Status

	// Duration is the call length in seconds; meaningful only when the call
	// was answered.
	Duration float64

	Message      string
	ErrorMessage string

	// ProviderSID identifies the call at the provider, when one placed it.
	ProviderSID string
}

// Gateway places one call and reports its outcome. The returned error is
// reserved for defects (nil config, programming errors); expected telephony
// failures arrive as failed outcomes. The dispatcher converts either shape
// into a failed record, so a misbehaving gateway can never abort a batch.
type Gateway interface {
	Name() string
	PlaceCall(ctx context.Context, number string) (Outcome, error)
}
