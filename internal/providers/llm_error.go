package providers

import "fmt"

// LLMErrorKind is the vendor-neutral error taxonomy every adapter must
// classify its failures into, per spec.md §4.6.
type LLMErrorKind string

const (
	ErrRateLimit      LLMErrorKind = "rate_limit"
	ErrAuthentication LLMErrorKind = "authentication"
	ErrInvalidRequest LLMErrorKind = "invalid_request"
	ErrNetwork        LLMErrorKind = "network"
	ErrProvider       LLMErrorKind = "provider"
	ErrSerialization  LLMErrorKind = "serialization"
	ErrTimeout        LLMErrorKind = "timeout"
	ErrCancelled      LLMErrorKind = "cancelled"
	ErrUnsupported    LLMErrorKind = "unsupported"
)

// LLMError is the error type every LLMProvider implementation returns
// from Complete and surfaces on the stream's terminal event.
type LLMError struct {
	Kind     LLMErrorKind
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *LLMError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %v", e.Kind, e.Cause)
	}
	return string(e.Kind)
}

func (e *LLMError) Unwrap() error { return e.Cause }

// FromProviderError maps the teacher-derived ProviderError/FailoverReason
// taxonomy (used by each vendor adapter internally) onto the spec's
// LLMError kinds.
func FromProviderError(err error) *LLMError {
	if err == nil {
		return nil
	}
	pe, ok := GetProviderError(err)
	if !ok {
		return &LLMError{Kind: ErrProvider, Message: err.Error(), Cause: err}
	}
	kind := ErrProvider
	switch pe.Reason {
	case FailoverRateLimit:
		kind = ErrRateLimit
	case FailoverAuth:
		kind = ErrAuthentication
	case FailoverInvalidRequest:
		kind = ErrInvalidRequest
	case FailoverTimeout:
		kind = ErrTimeout
	case FailoverBilling, FailoverServerError, FailoverModelUnavailable, FailoverContentFilter, FailoverUnknown:
		kind = ErrProvider
	}
	meta := map[string]string{}
	if pe.Provider != "" {
		meta["provider"] = pe.Provider
	}
	if pe.Model != "" {
		meta["model"] = pe.Model
	}
	if pe.Code != "" {
		meta["code"] = pe.Code
	}
	if pe.RequestID != "" {
		meta["request_id"] = pe.RequestID
	}
	return &LLMError{Kind: kind, Message: pe.Error(), Metadata: meta, Cause: pe}
}
