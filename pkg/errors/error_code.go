package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199)
	ErrCodeInvalidConfiguration ErrorCode = 100
	ErrCodeInvalidDateRange     ErrorCode = 102

	// Input table errors (200-299)
	ErrCodeTableSchemaInvalid  ErrorCode = 200
	ErrCodeTableEmpty          ErrorCode = 201
	ErrCodeTableQueryFailed    ErrorCode = 202
	ErrCodeTableSourceNotFound ErrorCode = 203

	// State blob errors (400-499)
	ErrCodeStateDecodeFailed ErrorCode = 400
	ErrCodeStateEncodeFailed ErrorCode = 401

	// Output errors (500-599)
	ErrCodeWriteFailed ErrorCode = 501
)
