package transport

import "encoding/json"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope wraps every API response. Error carries the human readable
// message and Code its machine readable class.
type Envelope struct {
	Status    string      `json:"status"`
	Code      string      `json:"code,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Meta      interface{} `json:"meta,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// ReplayMeta marks a response served from an earlier request with the same
// idempotency key.
type ReplayMeta struct {
	Replayed bool `json:"replayed"`
}

func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: StatusSuccess,
		Data:   data,
		Meta:   meta,
	}
}

func NewError(code, message string, meta interface{}) Envelope {
	return Envelope{
		Status: StatusError,
		Code:   code,
		Error:  message,
		Meta:   meta,
	}
}

// WithRequestID stamps the envelope with the id the client can quote in
// support requests.
func (e Envelope) WithRequestID(id string) Envelope {
	e.RequestID = id
	return e
}

// String returns the JSON form, or "{}" when the payload cannot be encoded.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}
