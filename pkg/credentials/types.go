// Package credentials holds the authoritative MQTT credential model, the durable
// store backends, the read-through cache, and the service that orchestrates them.
package credentials

import (
	"errors"
	"fmt"
	"strings"
)

// Credential is the authoritative record binding a broker username to its secret
// material. There is at most one live credential per username.
type Credential struct {
	Username    string `json:"username"`
	Secret      string `json:"secret"`
	IsSuperuser bool   `json:"is_superuser"`
	ClientID    string `json:"client_id,omitempty"`
}

var (
	// ErrNotFound indicates no credential exists for the requested username.
	ErrNotFound = errors.New("mqtt user not found")

	// ErrConflict indicates a credential already exists for the username.
	ErrConflict = errors.New("mqtt user already exists")
)

// ValidationError describes a single invalid input field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// BadRequestError carries every validation failure for a request, never just the
// first one.
type BadRequestError struct {
	Errors []ValidationError
}

func (e *BadRequestError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		fields = append(fields, ve.Field)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(fields, ", "))
}

// AsBadRequest unwraps err into a BadRequestError if it is one.
func AsBadRequest(err error) (*BadRequestError, bool) {
	var br *BadRequestError
	if errors.As(err, &br) {
		return br, true
	}
	return nil, false
}
