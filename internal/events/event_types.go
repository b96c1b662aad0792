package events

import (
	"time"

	"github.com/spec-kit/incident-coordinator/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated           EventType = "ticket_created"
	EventStaked                  EventType = "staked"
	EventAnalystAssigned         EventType = "analyst_assigned"
	EventReportSubmitted         EventType = "report_submitted"
	EventCertifierAssigned       EventType = "certifier_assigned"
	EventValidated               EventType = "validated"
	EventRejected                EventType = "rejected"
	EventReconciliationScheduled EventType = "reconciliation_scheduled"
	EventReconciliationResolved  EventType = "reconciliation_resolved"
	EventReconciliationFailed    EventType = "reconciliation_failed"
	EventSessionChanged          EventType = "session_changed"
)

// Event represents a lifecycle event emitted by the coordinator. TxRef is
// empty for events not backed by an on-chain transaction.
type Event struct {
	ID        string              `json:"id"`
	Type      EventType           `json:"type"`
	TicketID  string              `json:"ticket_id,omitempty"`
	NewStatus domain.TicketStatus `json:"new_status,omitempty"`
	TxRef     string              `json:"tx_ref,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
	Payload   interface{}         `json:"payload,omitempty"`
}

// StakedPayload payload.
type StakedPayload struct {
	Staker      string `json:"staker"`
	Amount      string `json:"amount"`
	TotalStaked string `json:"total_staked"`
}

// AnalystAssignedPayload payload.
type AnalystAssignedPayload struct {
	Analyst string `json:"analyst"`
}

// CertifierAssignedPayload payload.
type CertifierAssignedPayload struct {
	Certifier string `json:"certifier"`
}

// ValidatedPayload carries the confirmed distribution.
type ValidatedPayload struct {
	AnalystReward   string            `json:"analyst_reward"`
	CertifierReward string            `json:"certifier_reward"`
	StakerRewards   map[string]string `json:"staker_rewards,omitempty"`
}

// RejectedPayload payload.
type RejectedPayload struct {
	Reason string `json:"reason,omitempty"`
	Final  bool   `json:"final"`
}

// ReconciliationPayload describes a sweep outcome for one ticket.
type ReconciliationPayload struct {
	Action   string              `json:"action,omitempty"`
	Outcome  string              `json:"outcome"`
	Reverted domain.TicketStatus `json:"reverted_to,omitempty"`
}

// SessionChangedPayload describes the new active wallet session; Address is
// empty after a disconnect.
type SessionChangedPayload struct {
	Chain   domain.Chain `json:"chain,omitempty"`
	Address string       `json:"address,omitempty"`
}
