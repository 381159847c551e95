package auth

import "errors"

// Authentication failures. All map to 401; the client must re-authenticate,
// the server never retries.
var (
	// ErrTokenMissing means no bearer token was presented.
	ErrTokenMissing = errors.New("token missing")

	// ErrTokenMalformed means the token failed to parse or its signature
	// did not verify.
	ErrTokenMalformed = errors.New("token malformed")

	// ErrTokenExpired means the token is past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrAccountInactive means the token verified but the account has been
	// deactivated (or deleted) since issuance.
	ErrAccountInactive = errors.New("account inactive")
)

// Authorization failures. All map to 403, with distinct messages so the
// client can tell "ask an admin to allow-list me" from "you lack privilege".
var (
	// ErrInsufficientRole means the account's role ranks below the
	// required role.
	ErrInsufficientRole = errors.New("insufficient role")

	// ErrEmailNotAllowed means the email has no allow-list entry.
	ErrEmailNotAllowed = errors.New("email not allow-listed")

	// ErrEmailBlocked means the email has an explicit blocked entry.
	ErrEmailBlocked = errors.New("email blocked")
)
