package protocol

import "fmt"

// Code classifies a wire decoding failure.
type Code string

const (
	// CodeProtocol marks an unrecognized message tag.
	CodeProtocol Code = "PROTOCOL"
	// CodeParse marks a well-tagged message with missing or mistyped fields.
	CodeParse Code = "PARSE"
)

// Error is a typed codec error. Either kind closes the agent session when it
// comes from an agent frame, and closes the UI session when the UI envelope
// itself cannot be decoded. A UI command whose content or import data fails
// to decode does not close the UI session; it is reported back to the UI as
// an error event.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func protocolErrf(format string, args ...interface{}) *Error {
	return &Error{Code: CodeProtocol, Message: fmt.Sprintf(format, args...)}
}

func parseErrf(format string, args ...interface{}) *Error {
	return &Error{Code: CodeParse, Message: fmt.Sprintf(format, args...)}
}
