// Package bridge is the trust boundary between rendered content and
// privileged host-side code. Every inbound call is a named request with a
// JSON payload that is validated before any provider is touched; outbound
// events are pushed to per-window listeners with last-registration-wins
// semantics.
package bridge

import "encoding/json"

// Request is the wire format for content-to-host calls.
type Request struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Result is the generic response shape. ok reports success; failed results
// carry a branchable error code instead of an exception.
type Result map[string]any

// OK encodes a successful result with optional extra fields.
func OK(extra Result) string {
	if extra == nil {
		extra = Result{}
	}
	extra["ok"] = true
	data, _ := json.Marshal(extra)
	return string(data)
}

// Fail encodes a discriminated failure the caller can branch on.
func Fail(code string, extra Result) string {
	if extra == nil {
		extra = Result{}
	}
	extra["ok"] = false
	extra["error"] = code
	data, _ := json.Marshal(extra)
	return string(data)
}

// Input caps enforced before dispatch. Anything over a cap is rejected at the
// boundary; no oversized value ever reaches a provider.
const (
	// MaxPayloadBytes caps a whole inbound request.
	MaxPayloadBytes = 256 * 1024
	// MaxClipboardBytes caps clipboard writes.
	MaxClipboardBytes = 1 << 20
	// MaxURLBytes caps any URL field.
	MaxURLBytes = 2048
	// MaxIDBytes caps caller-supplied ids and accelerator strings.
	MaxIDBytes = 256
	// MaxCloseBatch caps the notification-close-many id list.
	MaxCloseBatch = 64
)

// Failure codes shared across handlers.
const (
	CodeBadRequest       = "bad_request"
	CodeUnknownRequest   = "unknown_request"
	CodePayloadTooLarge  = "payload_too_large"
	CodeSchemeNotAllowed = "scheme_not_allowed"
	CodeLimitExceeded    = "limit_exceeded"
	CodeProviderFailure  = "provider_failure"
	CodeUnsupported      = "unsupported"
	CodeCancelled        = "cancelled"
)
