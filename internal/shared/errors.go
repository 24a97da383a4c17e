package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration missing")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing client credentials")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("not connected")
	ErrExchangeFailed   = fmt.Errorf("token exchange failed")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrAppToken         = fmt.Errorf("app token request failed")

	// Upstream API errors
	ErrUpstreamRejected = fmt.Errorf("catalog API rejected request")
	ErrNoData           = fmt.Errorf("no data from source")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
