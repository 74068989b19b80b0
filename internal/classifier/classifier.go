// Package classifier describes the contract of the remote expression
// classification service: what is sent, what comes back and how transport
// failures are reported.
package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/expression-client/internal/probability"
)

// Image is a user-chosen file, carried as raw bytes.
type Image struct {
	Filename string
	Data     []byte
}

// Response is the decoded body returned by POST /upload. A response with an
// empty Expression means the service detected nothing; Error then carries its
// explanation, if any.
type Response struct {
	Filename      string               `json:"filename,omitempty"`
	Expression    string               `json:"expression"`
	Accuracy      float64              `json:"accuracy"`
	Probabilities *probability.Mapping `json:"probabilities"`
	Error         string               `json:"error,omitempty"`
}

// Detected reports whether the service produced a label.
func (r *Response) Detected() bool {
	return r != nil && r.Expression != ""
}

// Client exposes the single call the submission flow needs.
type Client interface {
	Classify(ctx context.Context, requestID string, image *Image) (*Response, error)
}

// ErrUnexpectedStatus is wrapped by TransportError for non-2xx replies.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// TransportError annotates a network, status or decoding failure with the
// operation and request it belongs to.
type TransportError struct {
	Operation  string
	RequestID  string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	msg := e.Operation
	if e.RequestID != "" {
		msg = fmt.Sprintf("%s (request_id=%s)", msg, e.RequestID)
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s status=%d", msg, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewTransportError wraps err; it returns nil when err is nil.
func NewTransportError(operation, requestID string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Operation: operation, RequestID: requestID, StatusCode: statusCode, Err: err}
}

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
