// Package common defines shared constants and sentinel errors used across
// the FilesCloud server layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Ownership and existence failures are deliberately conflated so a caller
	// cannot distinguish "someone else's file" from "no such file".
	ErrNotFoundOrForbidden = errors.New("file not found")

	// Share-link resolution errors. A failed attempt never mutates the link.
	ErrTokenNotFound         = errors.New("share token not found")
	ErrLinkExpired           = errors.New("share link expired")
	ErrPasswordRequired      = errors.New("share password required")
	ErrPasswordMismatch      = errors.New("share password mismatch")
	ErrDownloadLimitExceeded = errors.New("download limit exceeded")

	// Upload validation and blob storage errors.
	ErrUnsupportedType    = errors.New("unsupported file type")
	ErrPayloadTooLarge    = errors.New("payload too large")
	ErrStorageWriteFailed = errors.New("storage write failed")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Registration errors.
	ErrUsernameTaken = errors.New("username already taken")
)
