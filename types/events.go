package types

import (
	"encoding/json"
	"fmt"
)

// Event types published by a CometBFT node under the tm.event key.
const (
	EventNewBlock            = "NewBlock"
	EventNewBlockHeader      = "NewBlockHeader"
	EventNewEvidence         = "NewEvidence"
	EventTx                  = "Tx"
	EventValidatorSetUpdates = "ValidatorSetUpdates"
	EventNewRound            = "NewRound"
	EventCompleteProposal    = "CompleteProposal"
	EventVote                = "Vote"
)

// QueryForEvent returns the subscription query selecting one event type.
func QueryForEvent(eventType string) string {
	return fmt.Sprintf("%s='%s'", EventTypeKey, eventType)
}

const EventTypeKey = "tm.event"

// Event is a server-pushed notification. Data is the opaque payload as it
// arrived on the wire.
type Event struct {
	SubscriptionID string          `json:"subscription"`
	Query          string          `json:"query,omitempty"`
	Data           json.RawMessage `json:"data"`
}
