package engine

import "fmt"

// CommandError is a Redis-style error carrying the RESP error prefix
// ("ERR", "WRONGTYPE", "NOAUTH") separately from its message, so the RESP
// codec and facades never have to string-sniff a message to recover the
// prefix.
type CommandError struct {
	Prefix  string
	Message string
}

func (e *CommandError) Error() string {
	return e.Prefix + " " + e.Message
}

// ErrWrongType is returned (as *CommandError, use errors.As) when a command
// operates against a key whose current type differs from the command's.
func ErrWrongType() *CommandError {
	return &CommandError{Prefix: "WRONGTYPE", Message: "Operation against a key holding the wrong kind of value"}
}

// ErrNoAuth is returned for any command but AUTH when a password is
// configured and the caller has not authenticated.
func ErrNoAuth() *CommandError {
	return &CommandError{Prefix: "NOAUTH", Message: "Authentication required."}
}

// ErrGeneric builds a plain "ERR ..." command error.
func ErrGeneric(format string, args ...any) *CommandError {
	return &CommandError{Prefix: "ERR", Message: fmt.Sprintf(format, args...)}
}
