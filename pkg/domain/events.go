package domain

import "time"

type EventType string

const (
	EventTransactionCreated    EventType = "TRANSACTION_CREATED"
	EventOfferCreated          EventType = "OFFER_CREATED"
	EventOfferWithdrawn        EventType = "OFFER_WITHDRAWN"
	EventContractCreated       EventType = "CONTRACT_CREATED"
	EventContractWithdrawn     EventType = "CONTRACT_WITHDRAWN"
	EventClauseChanged         EventType = "CLAUSE_CHANGED"
	EventClauseRemoved         EventType = "CLAUSE_REMOVED"
	EventFieldsSet             EventType = "FIELDS_SET"
	EventContractsEqualChanged EventType = "CONTRACTS_EQUAL_CHANGED"
	EventStageAdvanced         EventType = "STAGE_ADVANCED"
	EventClosingCompleted      EventType = "CLOSING_COMPLETED"
)

// Event is one committed change to a transaction. Events are appended in the
// same commit as the change they describe.
type Event struct {
	EventID       string         `json:"event_id"`
	TransactionID string         `json:"transaction_id"`
	Type          EventType      `json:"event_type"`
	ActorID       string         `json:"actor_id"`
	Payload       map[string]any `json:"payload"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ClosingRequest is handed to the closing collaborator exactly once, when a
// transaction enters the closing stage.
type ClosingRequest struct {
	TransactionID string       `json:"transaction_id"`
	PropertyType  PropertyType `json:"property_type"`
	TermsHash     string       `json:"terms_hash"`
}
