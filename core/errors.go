package core

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/orrery/model"
)

// ConfigError is re-exported so callers can match registration failures
// without importing model.
type ConfigError = model.ConfigError

var (
	// ErrUnknownBody indicates an id that does not resolve to a registered body.
	ErrUnknownBody = errors.New("unknown body")
	// ErrAlreadyRegistered indicates an id is already present in the world.
	ErrAlreadyRegistered = errors.New("body already registered")
)

// MissingAssetError reports a texture that could not be loaded. The body
// it belongs to is left out of animation and picking.
type MissingAssetError struct {
	Body string
	Path string
	Err  error
}

func (e *MissingAssetError) Error() string {
	return fmt.Sprintf("asset %q for body %q: %v", e.Path, e.Body, e.Err)
}

func (e *MissingAssetError) Unwrap() error { return e.Err }

// DanglingFocusError reports a focus target that no longer resolves to a
// live node. By the time it is returned the controller is Unfocused.
type DanglingFocusError struct {
	Target string
}

func (e *DanglingFocusError) Error() string {
	return fmt.Sprintf("focus target %q no longer resolves; focus released", e.Target)
}

// ResolvePeriod returns the declared period, or fallback when none was
// declared. A declared period that is not positive is a ConfigError and is
// never replaced by the fallback.
func ResolvePeriod(id string, declared *float64, fallback float64) (float64, error) {
	if err := model.ValidatePeriod(id, declared); err != nil {
		return 0, err
	}
	if declared != nil {
		return *declared, nil
	}
	if !(fallback > 0) {
		return 0, &ConfigError{Body: id, Field: "fallback period", Reason: fmt.Sprintf("must be > 0, got %v", fallback)}
	}
	return fallback, nil
}
