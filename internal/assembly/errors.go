package assembly

import "errors"

var (
	// ErrAuthentication means the portal session could not be established:
	// the listing page was unreachable or carried no anti-forgery token.
	ErrAuthentication = errors.New("portal authentication failed")
	// ErrTransient wraps a single failed upstream HTTP call.
	ErrTransient = errors.New("upstream request failed")
	// ErrParse means a response did not have the expected shape.
	ErrParse = errors.New("unexpected upstream content")
)
