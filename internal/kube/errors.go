package kube

import (
	"errors"
	"fmt"
)

// NotFoundError reports that a requested cluster resource does not exist.
// Callers distinguish it from transient API failures to decide between a
// terminal "not found" response and an error response.
type NotFoundError struct {
	Resource  string
	Namespace string
	Name      string
}

func (e *NotFoundError) Error() string {
	if e.Namespace == "" {
		return fmt.Sprintf("%s %q not found", e.Resource, e.Name)
	}
	return fmt.Sprintf("%s %q not found in namespace %q", e.Resource, e.Name, e.Namespace)
}

// IsNotFound reports whether err or any error it wraps is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
