package domain

import (
	"math/big"
	"time"
)

// Chain identifies which ledger owns a ticket. A ticket belongs to exactly
// one chain for its lifetime.
type Chain string

const (
	ChainEVM Chain = "EVM"
	ChainDAG Chain = "DAG"
)

// Valid reports whether the chain value is a known ledger.
func (c Chain) Valid() bool {
	return c == ChainEVM || c == ChainDAG
}

// TicketStatus enumerates lifecycle states for incident tickets.
type TicketStatus string

const (
	TicketStatusOpen              TicketStatus = "OPEN"
	TicketStatusStaked            TicketStatus = "STAKED"
	TicketStatusAnalystAssigned   TicketStatus = "ANALYST_ASSIGNED"
	TicketStatusReportSubmitted   TicketStatus = "REPORT_SUBMITTED"
	TicketStatusCertifierAssigned TicketStatus = "CERTIFIER_ASSIGNED"
	TicketStatusValidated         TicketStatus = "VALIDATED"
	TicketStatusRejected          TicketStatus = "REJECTED"
)

// Severity enumerates incident impact tiers used for collateral sizing.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether the severity is a known tier.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Ticket is the aggregate for one security-incident case. The stored row is
// a mirror of on-chain truth: Status only ever reflects a confirmed
// transition, never an optimistic local one.
type Ticket struct {
	ID                    string
	Chain                 Chain
	Title                 string
	Description           string
	Client                string
	Analyst               *string
	Certifier             *string
	Severity              Severity
	StakingPoolRef        string
	RewardAmount          *big.Int
	Status                TicketStatus
	TxRef                 string
	PendingReconciliation bool
	PendingAction         *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Terminal reports whether the ticket has reached a closing state.
func (t *Ticket) Terminal() bool {
	return t.Status == TicketStatusValidated || t.Status == TicketStatusRejected
}

var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:              {TicketStatusStaked},
	TicketStatusStaked:            {TicketStatusAnalystAssigned},
	TicketStatusAnalystAssigned:   {TicketStatusReportSubmitted},
	TicketStatusReportSubmitted:   {TicketStatusCertifierAssigned},
	TicketStatusCertifierAssigned: {TicketStatusValidated, TicketStatusOpen, TicketStatusRejected},
	TicketStatusValidated:         {},
	TicketStatusRejected:          {},
}

// CanTransition reports whether the status state machine permits moving from
// current to next. The only backward edge is the certifier rejection path
// back to OPEN.
func CanTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

var statusRank = map[TicketStatus]int{
	TicketStatusOpen:              0,
	TicketStatusStaked:            1,
	TicketStatusAnalystAssigned:   2,
	TicketStatusReportSubmitted:   3,
	TicketStatusCertifierAssigned: 4,
	TicketStatusValidated:         5,
	TicketStatusRejected:          5,
}

// StatusAhead reports whether a is strictly ahead of b on the forward path.
// The rejection re-entry to OPEN is not "ahead" by rank; reconciliation
// resolves it through the recorded pending action instead.
func StatusAhead(a, b TicketStatus) bool {
	return statusRank[a] > statusRank[b]
}
