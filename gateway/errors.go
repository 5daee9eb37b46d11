package gateway

import (
	"errors"
	"fmt"
)

// ProviderNotFoundError reports a Create call for a (capability, name) pair
// with no registered factory. It is a distinct type so HTTP callers can map
// it to a 4xx instead of a generic 5xx.
type ProviderNotFoundError struct {
	Capability Capability
	Name       string
}

func (e *ProviderNotFoundError) Error() string {
	return fmt.Sprintf("no %s provider registered with name %q", e.Capability, e.Name)
}

// IsProviderNotFound reports whether err is a ProviderNotFoundError.
func IsProviderNotFound(err error) bool {
	var pnf *ProviderNotFoundError
	return errors.As(err, &pnf)
}
