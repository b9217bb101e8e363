package permissions

import "errors"

var (
	ErrInvalidIdentity  = errors.New("invalid identity")
	ErrInvalidDecision  = errors.New("invalid decision")
	ErrNotFound         = errors.New("chat request not found")
	ErrAlreadyResolved  = errors.New("chat request already resolved")
	ErrPermissionDenied = errors.New("no approved chat request between participants")
)
