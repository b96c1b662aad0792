package dto

import (
	"time"

	"github.com/spec-kit/incident-coordinator/internal/domain"
)

// CreateTicketRequest payload. RewardAmount is a base-10 integer string in
// the smallest unit.
type CreateTicketRequest struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Severity     domain.Severity `json:"severity"`
	RewardAmount string          `json:"reward_amount"`
}

// StakeRequest payload.
type StakeRequest struct {
	Amount string `json:"amount"`
}

// AssignRequest payload for analyst/certifier assignment.
type AssignRequest struct {
	Address string `json:"address"`
}

// ReportRequest payload.
type ReportRequest struct {
	ReportHash string `json:"report_hash"`
}

// RejectRequest payload.
type RejectRequest struct {
	Reason string `json:"reason"`
	Final  bool   `json:"final"`
}

// TicketResponse mirrors the stored ticket.
type TicketResponse struct {
	ID                    string              `json:"id"`
	Chain                 domain.Chain        `json:"chain"`
	Title                 string              `json:"title"`
	Description           string              `json:"description"`
	Client                string              `json:"client"`
	Analyst               *string             `json:"analyst,omitempty"`
	Certifier             *string             `json:"certifier,omitempty"`
	Severity              domain.Severity     `json:"severity"`
	StakingPoolRef        string              `json:"staking_pool_ref,omitempty"`
	RewardAmount          string              `json:"reward_amount"`
	Status                domain.TicketStatus `json:"status"`
	TxRef                 string              `json:"tx_ref,omitempty"`
	ExplorerURL           string              `json:"explorer_url,omitempty"`
	PendingReconciliation bool                `json:"pending_reconciliation"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

// OperationResponse reports a lifecycle operation: SUCCESS or PENDING.
// Rejections arrive as error responses instead.
type OperationResponse struct {
	Outcome string         `json:"outcome"`
	TxRef   string         `json:"tx_ref,omitempty"`
	Ticket  TicketResponse `json:"ticket"`
}

// ReconcileResponse reports an on-demand reconciliation.
type ReconcileResponse struct {
	Outcome string `json:"outcome"`
}
