package coordinator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-coordinator/internal/chain"
	"github.com/spec-kit/incident-coordinator/internal/domain"
	"github.com/spec-kit/incident-coordinator/internal/events"
	apperrors "github.com/spec-kit/incident-coordinator/pkg/util"
)

// ReconcileOutcome names the sweep resolution for one ticket.
type ReconcileOutcome string

const (
	ReconcileResolved ReconcileOutcome = "resolved"
	ReconcileFailed   ReconcileOutcome = "failed"
	ReconcileDeferred ReconcileOutcome = "deferred"
	ReconcileNoop     ReconcileOutcome = "noop"
)

// Reconcile corrects one ticket's stored mirror against confirmed on-chain
// state. On-chain always wins when it is ahead; a pending transition with
// no on-chain trace past the grace period is declared failed and the ticket
// stays at its last confirmed status, making the action retryable.
func (c *Coordinator) Reconcile(ctx context.Context, ticketID string) (ReconcileOutcome, error) {
	unlock := c.locks.lock(ticketID)
	defer unlock()

	ticket, err := c.loadTicket(ctx, ticketID)
	if err != nil {
		return ReconcileNoop, err
	}
	outcome, err := c.reconcileLocked(ctx, ticket)
	if c.metrics != nil {
		c.metrics.RecordReconciliation(string(outcome))
	}
	return outcome, err
}

func (c *Coordinator) reconcileLocked(ctx context.Context, ticket *domain.Ticket) (ReconcileOutcome, error) {
	adapter, err := c.adapter(ticket.Chain)
	if err != nil {
		return ReconcileNoop, err
	}

	ref := ticket.StakingPoolRef
	if ref == "" {
		// Pending create: the only handle we have is the transaction ref.
		ref = ticket.TxRef
	}
	if ref == "" {
		return c.failPending(ctx, ticket)
	}

	record, err := adapter.ReadRecord(ctx, ref)
	if err != nil {
		if errors.Is(err, chain.ErrRecordNotFound) {
			if ticket.PendingReconciliation && time.Since(ticket.UpdatedAt) > c.gracePeriod(ticket.Chain) {
				return c.failPending(ctx, ticket)
			}
			return ReconcileDeferred, nil
		}
		// Transient read failure; try again next sweep.
		return ReconcileDeferred, err
	}

	if !ticket.PendingReconciliation {
		if !domain.StatusAhead(record.Status, ticket.Status) {
			return ReconcileNoop, nil
		}
		return c.adoptRecord(ctx, ticket, record)
	}

	// A pending transition resolves only once the chain shows it landed:
	// the record moved strictly ahead, or it echoes the in-flight tx ref
	// (markPending stores the unconfirmed ref as tx_ref, so equality means
	// the submission settled), or a pending create produced a record at all.
	// A record still carrying the prior confirmed ref is not a landing; the
	// grace rule decides between deferral and failure.
	landed := domain.StatusAhead(record.Status, ticket.Status) ||
		(record.TxRef != "" && record.TxRef == ticket.TxRef) ||
		ticket.StakingPoolRef == ""
	if !landed {
		if time.Since(ticket.UpdatedAt) > c.gracePeriod(ticket.Chain) {
			return c.failPending(ctx, ticket)
		}
		return ReconcileDeferred, nil
	}

	return c.adoptRecord(ctx, ticket, record)
}

// adoptRecord overwrites the stored mirror with the on-chain record.
func (c *Coordinator) adoptRecord(ctx context.Context, ticket *domain.Ticket, record *chain.OnChainRecord) (ReconcileOutcome, error) {
	fields := map[string]any{
		"pending_reconciliation": false,
		"pending_action":         (*string)(nil),
	}
	if record.Status != "" && record.Status != ticket.Status {
		fields["status"] = record.Status
	}
	if record.TxRef != "" {
		fields["tx_ref"] = record.TxRef
	}
	if record.PoolRef != "" && ticket.StakingPoolRef == "" {
		fields["staking_pool_ref"] = record.PoolRef
	}
	if record.RewardAmount != nil {
		fields["reward_amount"] = record.RewardAmount
	}
	fields["analyst"] = optionalAddress(record.Analyst)
	fields["certifier"] = optionalAddress(record.Certifier)

	patched, err := c.tickets.Patch(ctx, ticket.ID, fields)
	if err != nil {
		c.logger.Error("reconciliation store patch failed",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		return ReconcileDeferred, apperrors.NewStoreError(err)
	}

	c.logger.Info("reconciled ticket from chain",
		zap.String("ticket_id", patched.ID),
		zap.String("status", string(patched.Status)))
	c.publish(ctx, events.Event{
		Type:      events.EventReconciliationResolved,
		TicketID:  patched.ID,
		NewStatus: patched.Status,
		TxRef:     patched.TxRef,
		Payload:   events.ReconciliationPayload{Action: pendingAction(ticket), Outcome: string(ReconcileResolved)},
	})
	return ReconcileResolved, nil
}

// failPending declares the in-flight transition failed: the flag clears,
// the last confirmed status stands, and the client may retry the action.
func (c *Coordinator) failPending(ctx context.Context, ticket *domain.Ticket) (ReconcileOutcome, error) {
	if !ticket.PendingReconciliation {
		return ReconcileNoop, nil
	}
	patched, err := c.tickets.Patch(ctx, ticket.ID, map[string]any{
		"pending_reconciliation": false,
		"pending_action":         (*string)(nil),
	})
	if err != nil {
		return ReconcileDeferred, apperrors.NewStoreError(err)
	}

	c.logger.Warn("pending transition not found on chain within grace period",
		zap.String("ticket_id", ticket.ID),
		zap.String("action", pendingAction(ticket)))
	c.publish(ctx, events.Event{
		Type:      events.EventReconciliationFailed,
		TicketID:  patched.ID,
		NewStatus: patched.Status,
		TxRef:     patched.TxRef,
		Payload: events.ReconciliationPayload{
			Action:   pendingAction(ticket),
			Outcome:  string(ReconcileFailed),
			Reverted: patched.Status,
		},
	})
	return ReconcileFailed, nil
}

// SweepReport tallies one reconciliation pass.
type SweepReport struct {
	Scanned  int
	Resolved int
	Failed   int
	Deferred int
}

// ReconcileSweep resolves every flagged ticket, oldest first. Read errors
// defer the ticket to the next pass rather than aborting the sweep.
func (c *Coordinator) ReconcileSweep(ctx context.Context, batchSize int) (*SweepReport, error) {
	tickets, err := c.tickets.ListPendingReconciliation(ctx, time.Now(), batchSize)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}

	report := &SweepReport{Scanned: len(tickets)}
	for i := range tickets {
		outcome, err := c.Reconcile(ctx, tickets[i].ID)
		if err != nil {
			c.logger.Warn("sweep reconcile error",
				zap.String("ticket_id", tickets[i].ID), zap.Error(err))
		}
		switch outcome {
		case ReconcileResolved:
			report.Resolved++
		case ReconcileFailed:
			report.Failed++
		case ReconcileDeferred:
			report.Deferred++
		}
	}
	return report, nil
}

func optionalAddress(addr string) *string {
	if addr == "" {
		return (*string)(nil)
	}
	return &addr
}

func pendingAction(ticket *domain.Ticket) string {
	if ticket.PendingAction == nil {
		return ""
	}
	return *ticket.PendingAction
}
