package auth

import "errors"

// Error taxonomy surfaced by the access-control components. External collaborator
// failures are converted into one of these at the component boundary.
var (
	// ErrInvalidCredentials means the identity provider rejected the email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNetwork is a transport-level failure talking to the identity provider or store.
	ErrNetwork = errors.New("network error")

	// ErrRoleUnauthorized means the calling identity could not be established.
	ErrRoleUnauthorized = errors.New("role check: unauthorized")
	// ErrRoleTransport means the authorization function could not be reached.
	ErrRoleTransport = errors.New("role check: transport failure")

	// ErrWriteForbidden means the acting identity is not a verified administrator.
	ErrWriteForbidden = errors.New("write forbidden")
	// ErrWriteTransport means the access store rejected or failed the write.
	ErrWriteTransport = errors.New("write: transport failure")

	// ErrAccessDenied is the generic admin-flow refusal. It never says which check failed.
	ErrAccessDenied = errors.New("access denied")
)

// IsAccessDenial reports whether err must be shown to the user as a generic denial.
func IsAccessDenial(err error) bool {
	return errors.Is(err, ErrAccessDenied) ||
		errors.Is(err, ErrWriteForbidden) ||
		errors.Is(err, ErrRoleUnauthorized) ||
		errors.Is(err, ErrRoleTransport)
}
