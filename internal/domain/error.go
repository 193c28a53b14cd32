package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Capture
	ErrCameraUnavailable = errors.New("camera unavailable")
	ErrNoActiveStream    = errors.New("no active capture stream")

	// Payload
	ErrDecrypt        = errors.New("decrypt payload")
	ErrParse          = errors.New("parse payload")
	ErrPayloadInvalid = errors.New("payload invalid")

	// Store
	ErrStore          = errors.New("ticket store failure")
	ErrTicketNotFound = errors.New("ticket invalid or already used")
	ErrUnsupported    = errors.New("operation not supported by store")
)
