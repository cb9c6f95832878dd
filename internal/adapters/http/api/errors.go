package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrUnauthenticated  = errors.New("missing user identity")
	ErrAuditNotComputed = errors.New("audit not yet computed")
)
