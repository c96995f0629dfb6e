package api

import "fmt"

// Failure is the uniform error returned for every unsuccessful wallet API
// call, whether the server answered with a non-2xx status or the transport
// failed outright.
type Failure struct {
	Message    string
	HTTPStatus int
	ErrCode    string
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.ErrCode != "" {
		return fmt.Sprintf("api: %s (%d %s)", f.Message, f.HTTPStatus, f.ErrCode)
	}
	return fmt.Sprintf("api: %s (%d)", f.Message, f.HTTPStatus)
}

// Code exposes the remote error code for log enrichment.
func (f *Failure) Code() string {
	return f.ErrCode
}

// genericFailure covers transport-level errors where no response was received.
func genericFailure(err error) *Failure {
	return &Failure{
		Message:    "An error occurred",
		HTTPStatus: 500,
		ErrCode:    err.Error(),
	}
}
