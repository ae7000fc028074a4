package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched by every *ConfigurationError.
	ErrConfiguration = errors.New("missing configuration")
	// ErrInvalidSeed reports an unusable seed document.
	ErrInvalidSeed = errors.New("invalid environment seed")
	// ErrAPIClientMissing is returned when a well-known API client cannot be resolved by name.
	ErrAPIClientMissing = errors.New("api client not found")
)

// ConfigurationError is raised before any remote call when a required setting is empty.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return "missing required app setting " + e.Setting
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// OrganizationNotFoundError means the portal could not return the seller organization.
// Organizations are created in the portal; seeding never creates one.
type OrganizationNotFoundError struct {
	OrgID string
	Err   error
}

func (e *OrganizationNotFoundError) Error() string {
	msg := fmt.Sprintf("failed to retrieve seller organization %q: the organization must exist before it can be seeded", e.OrgID)
	if e.Err != nil {
		msg += " (" + e.Err.Error() + ")"
	}
	return msg
}

func (e *OrganizationNotFoundError) Unwrap() error { return e.Err }

// RemoteOperationError carries the failing step and call. Unwrap yields the platform error untouched.
type RemoteOperationError struct {
	Step string
	Op   string
	Err  error
}

func (e *RemoteOperationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Step, e.Op, e.Err)
}

func (e *RemoteOperationError) Unwrap() error { return e.Err }

func remote(step, op string, err error) error {
	if err == nil {
		return nil
	}
	var re *RemoteOperationError
	if errors.As(err, &re) {
		return err
	}
	return &RemoteOperationError{Step: step, Op: op, Err: err}
}
