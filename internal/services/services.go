// Package services exposes typed operations over the wallet API gateway.
// Services are stateless: the caller owns the bearer token and passes it on
// every authenticated call.
package services

// itemsEnvelope is the list shape the wallet API wraps collections in.
type itemsEnvelope[T any] struct {
	Items []T `json:"items"`
}

// pageEnvelope extends the list shape with the total record count used by
// paginated endpoints.
type pageEnvelope[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// submitAck is the acknowledgement returned by transfer submissions.
type submitAck struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}
