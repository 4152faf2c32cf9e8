package reasoning

import (
	"encoding/json"
	"errors"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
)

func init() {
	err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "reasoning",
		Category:    "call",
		Version:     "v1",
		Description: "Reasoning call record for run replay",
		Factory:     func() any { return &CallPayload{} },
	})
	if err != nil {
		panic("failed to register CallPayload: " + err.Error())
	}
}

// CallType is the message type for reasoning call payloads.
var CallType = message.Type{Domain: "reasoning", Category: "call", Version: "v1"}

// CallPayload implements message.Payload for call records.
type CallPayload struct {
	Record *CallRecord `json:"record"`
}

// Schema returns the message type.
func (p *CallPayload) Schema() message.Type {
	return CallType
}

// Validate ensures the payload has required fields.
func (p *CallPayload) Validate() error {
	if p.Record == nil {
		return errors.New("call record is required")
	}
	if p.Record.RequestID == "" {
		return errors.New("request ID is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler for the Payload interface.
func (p *CallPayload) MarshalJSON() ([]byte, error) {
	type Alias CallPayload
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON implements json.Unmarshaler for the Payload interface.
func (p *CallPayload) UnmarshalJSON(data []byte) error {
	type Alias CallPayload
	aux := (*Alias)(p)
	return json.Unmarshal(data, aux)
}
