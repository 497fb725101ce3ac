package gateway

import (
	"encoding/json"
	"fmt"
)

const (
	ActionJoinAuction = "joinAuction"
	ActionPlaceBid    = "placeBid"
	ActionAuctionEnd  = "auctionEnd"
)

// Envelope is the inbound wire frame: an action name plus its raw payload,
// decoded into a typed command by the dispatcher.
type Envelope struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Action == "" {
		return Envelope{}, fmt.Errorf("envelope missing action")
	}
	return env, nil
}

func (e Envelope) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("envelope missing payload")
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", e.Action, err)
	}
	return nil
}
