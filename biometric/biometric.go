// Package biometric models the platform's identity-proof capability
// (fingerprint/face sensor) as an opaque collaborator: request proof of
// identity, get success, failure, or cancellation back. The engine never
// touches sensor APIs directly.
package biometric

import "context"

// Kind identifies the biometric sensor variety reported by the platform.
type Kind string

const (
	KindNone        Kind = "none"
	KindFingerprint Kind = "fingerprint"
	KindFace        Kind = "face"
)

// Capability describes what the device offers.
type Capability struct {
	HardwarePresent bool
	Enrolled        bool // Hardware present AND a credential is enrolled
	Kind            Kind
}

// Usable reports whether biometric prompts can succeed on this device.
func (c Capability) Usable() bool {
	return c.HardwarePresent && c.Enrolled
}

// Outcome is the result of a proof request. Cancellation is a distinct
// outcome from failure and must never be surfaced as an error.
type Outcome int

const (
	OutcomeGranted Outcome = iota
	OutcomeCancelled
	OutcomeFailed
)

// ProofResult is the platform's answer to a proof request.
type ProofResult struct {
	Outcome Outcome
	Reason  string // Populated for OutcomeFailed
}

// Prover is the platform collaborator.
type Prover interface {
	// CheckCapability reports the device's biometric capability.
	CheckCapability(ctx context.Context) (Capability, error)

	// RequestProof shows the platform prompt with the given text and waits
	// for the user. Errors are platform faults; user decisions arrive as
	// ProofResult outcomes.
	RequestProof(ctx context.Context, promptText string) (ProofResult, error)
}
