package service

import (
	"errors"
	"fmt"
)

var (
	ErrIntegrationMissing   = errors.New("integration missing")
	ErrIntegrationAmbiguous = errors.New("more than one integration")
	ErrCredentialMissing    = errors.New("access credential missing")
	ErrUnsupportedPlatform  = errors.New("no publisher for platform")
	ErrNoMedia              = errors.New("content has no media to publish")
	ErrContainerNotReady    = errors.New("media container not ready")
	ErrMediaUnresolvable    = errors.New("media reference cannot be resolved")
)

// GraphError is a failed Graph API call. Error returns the upstream message
// unchanged so it can be stored as the item's error message.
type GraphError struct {
	Step       string
	StatusCode int
	Message    string
	Type       string
	Code       int

	// payload is set when the response carried a Graph error object.
	payload bool
}

// Transient reports a server-side failure without a Graph error object,
// which is worth retrying.
func (e *GraphError) Transient() bool {
	return !e.payload && e.StatusCode >= 500
}

func (e *GraphError) Error() string {
	return e.Message
}

func (e *GraphError) Detail() string {
	return fmt.Sprintf("%s: status=%d type=%s code=%d: %s", e.Step, e.StatusCode, e.Type, e.Code, e.Message)
}
