package service

import "errors"

var (
	ErrUnknownKind       = errors.New("unknown document kind")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrInvalidTransition = errors.New("transition not allowed from the current status")
	ErrForbidden         = errors.New("missing permission for this action")
	ErrPayloadInvalid    = errors.New("invalid document payload")
	ErrInvalidDecision   = errors.New("decision must be approve or reject")

	ErrTDSSectionNotFound = errors.New("tds section rule not found")
	ErrTDSOverlap         = errors.New("a rule for this section already covers these dates")
	ErrNoActiveTDSRule    = errors.New("no active tds rule for section")
	ErrInvalidTDSRule     = errors.New("invalid tds rule")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserExists         = errors.New("username or email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidRole        = errors.New("invalid role")

	ErrVendorNotFound = errors.New("vendor not found")
	ErrInvalidVendor  = errors.New("invalid vendor")
)
