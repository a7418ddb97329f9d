package domain

import "errors"

var (
	// ErrDuplicateIdentity indicates a username or email collision.
	ErrDuplicateIdentity = errors.New("username or email already exists")
	// ErrInvalidCredentials indicates an unknown identity or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated indicates a missing, expired or invalidated session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the requester does not own the target resource.
	ErrForbidden = errors.New("forbidden")
	// ErrUnsupportedMedia indicates uploaded content outside the allow-list.
	ErrUnsupportedMedia = errors.New("unsupported media type")
	// ErrPayloadTooLarge indicates uploaded content above the configured maximum.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrStorageUnavailable indicates the object store did not accept the upload.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrNotFound indicates a missing user or post.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a malformed request.
	ErrInvalidInput = errors.New("invalid input")
)
