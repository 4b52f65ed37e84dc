package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrForbidden        = fmt.Errorf("forbidden")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrTransientAPI       = fmt.Errorf("transient API error")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNotFound           = fmt.Errorf("resource not found")

	// Input validation errors
	ErrValidation           = fmt.Errorf("validation error")
	ErrUnsupportedAlgorithm = fmt.Errorf("%w: unsupported algorithm", ErrValidation)
	ErrInvalidClusterCount  = fmt.Errorf("%w: invalid cluster count", ErrValidation)
	ErrInsufficientData     = fmt.Errorf("%w: insufficient data", ErrValidation)
	ErrMissingArgument      = fmt.Errorf("%w: missing required argument", ErrValidation)
	ErrInvalidArgument      = fmt.Errorf("%w: invalid argument", ErrValidation)

	// Pipeline errors
	ErrCollectionFailed   = fmt.Errorf("collection failed")
	ErrDeploymentFailed   = fmt.Errorf("deployment failed")
	ErrPartialDataLoss    = fmt.Errorf("partial data loss")
	ErrDependencyNotFound = fmt.Errorf("dependency not found")
)
