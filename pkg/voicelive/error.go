package voicelive

import "fmt"

// Error represents an error from the voicelive service or client.
type Error struct {
	// Type is the error type (e.g., "invalid_request_error").
	Type string `json:"type,omitzero"`

	// Code is the error code (e.g., "connection_failed").
	Code string `json:"code,omitzero"`

	// Message is the human-readable error message.
	Message string `json:"message,omitzero"`

	// Param is the parameter that caused the error, if applicable.
	Param string `json:"param,omitzero"`

	// EventID is the ID of the event that caused the error.
	EventID string `json:"event_id,omitzero"`

	// HTTPStatus is the HTTP status code, if applicable.
	HTTPStatus int `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("voicelive: %s: %s", e.Code, e.Message)
	}
	if e.Type != "" {
		return fmt.Sprintf("voicelive: %s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("voicelive: %s", e.Message)
}

// EventError contains error information carried by inbound error events.
type EventError struct {
	Type    string `json:"type,omitzero"`
	Code    string `json:"code,omitzero"`
	Message string `json:"message,omitzero"`
	Param   string `json:"param,omitzero"`
	EventID string `json:"event_id,omitzero"`
}

// ToError converts EventError to Error. A malformed or empty service error
// shape falls back to a generic message.
func (e *EventError) ToError() *Error {
	if e == nil || (e.Message == "" && e.Code == "" && e.Type == "") {
		return &Error{Message: "unknown service error"}
	}
	return &Error{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Param:   e.Param,
		EventID: e.EventID,
	}
}
