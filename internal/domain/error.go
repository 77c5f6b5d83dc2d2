package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")

	// Webhook processing errors
	ErrEventAlreadyProcessed = errors.New("gateway event already processed")
	ErrMalformedPayload      = errors.New("malformed event payload")
	ErrUnknownCustomer       = errors.New("gateway customer has no local mapping")
	ErrBadSignature          = errors.New("webhook signature verification failed")
)
