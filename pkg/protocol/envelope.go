package protocol

import (
	"fmt"
	"time"
)

// UnsignedSignature is the placeholder carried by envelopes that the transport
// has not signed yet.
const UnsignedSignature = "0"

type Envelope struct {
	Source    string `json:"source"`
	Channel   int    `json:"channel"`
	Epoch     int64  `json:"epoch"`
	Signature string `json:"signature"`
	Body      string `json:"body"`
}

func NewEnvelope(source string, body []byte) Envelope {
	return Envelope{
		Source:    source,
		Channel:   0,
		Epoch:     time.Now().Unix(),
		Signature: UnsignedSignature,
		Body:      string(body),
	}
}

func (e Envelope) Validate() error {
	if e.Source == "" {
		return fmt.Errorf("%w: envelope without source", ErrMalformedRequest)
	}
	if e.Body == "" {
		return fmt.Errorf("%w: envelope without body", ErrMalformedRequest)
	}
	return nil
}

// Message is an envelope together with the subject it was broadcast under.
type Message struct {
	Envelope
	Subject   string
	Recipient string
}
