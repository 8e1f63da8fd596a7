package web

import "errors"

// shutdownError is a type used to help with the graceful termination of the
// service when an integrity issue is identified.
type shutdownError struct {
	Message string
}

// NewShutdownError returns an error that causes the framework to signal a
// graceful shutdown.
func NewShutdownError(message string) error {
	return &shutdownError{message}
}

// Error implements the error interface.
func (se *shutdownError) Error() string {
	return se.Message
}

// isShutdown checks to see if the shutdown error is contained in the
// specified error value.
func isShutdown(err error) bool {
	var se *shutdownError
	return errors.As(err, &se)
}
