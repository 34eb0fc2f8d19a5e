package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport means the provider could not be reached or answered with a
	// transport-level failure (network error, 5xx, 429, open breaker).
	ErrTransport = errors.New("provider transport error")
	// ErrParse means the provider payload could not be decoded.
	ErrParse = errors.New("provider parse error")
	// ErrInvalidResponse means the provider marked its own answer unusable.
	ErrInvalidResponse = errors.New("provider invalid response")
)

// ProviderError is returned by every Provider.Fetch failure. Kind is one of
// ErrTransport, ErrParse or ErrInvalidResponse.
type ProviderError struct {
	Kind     error
	Provider string
	Err      error
}

func NewProviderError(kind error, provider string, err error) *ProviderError {
	return &ProviderError{Kind: kind, Provider: provider, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrParse) and friends match on Kind.
func (e *ProviderError) Is(target error) bool {
	return e.Kind == target
}
