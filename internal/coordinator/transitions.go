package coordinator

import (
	"context"
	"errors"
	"math/big"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-coordinator/internal/accountant"
	"github.com/spec-kit/incident-coordinator/internal/chain"
	"github.com/spec-kit/incident-coordinator/internal/domain"
	"github.com/spec-kit/incident-coordinator/internal/events"
	apperrors "github.com/spec-kit/incident-coordinator/pkg/util"
)

// transition describes one chain-backed state change: the op to submit and
// the store patch plus event to apply once the chain confirms.
type transition struct {
	op        chain.Op
	amount    *big.Int
	params    map[string]string
	fields    map[string]any
	newStatus domain.TicketStatus
	event     events.EventType
	payload   interface{}
}

// execute runs the shared transition pattern: submit, await receipt, then
// write-after-confirm. Preconditions are the caller's job; by the time
// execute runs, failure can only come from the chain or the store.
func (c *Coordinator) execute(ctx context.Context, ticket *domain.Ticket, actor string, tr transition) (*OpResult, error) {
	if tr.newStatus != "" && !domain.CanTransition(ticket.Status, tr.newStatus) {
		return nil, apperrors.NewPreconditionViolation("status transition not allowed",
			map[string]any{"status": ticket.Status, "target": tr.newStatus})
	}
	adapter, err := c.adapter(ticket.Chain)
	if err != nil {
		return nil, err
	}

	handle, err := adapter.SubmitFundedTransaction(ctx, chain.TxRequest{
		Op:        tr.op,
		Actor:     actor,
		TicketRef: ticket.StakingPoolRef,
		PoolRef:   ticket.StakingPoolRef,
		Amount:    tr.amount,
		Params:    tr.params,
	})
	if err != nil {
		c.recordChainOp(ticket.Chain, tr.op, "submit_failed")
		return nil, err
	}

	receipt, err := adapter.AwaitReceipt(ctx, handle, c.receiptTimeout(ticket.Chain))
	if err != nil {
		if apperrors.IsAmbiguous(err) {
			c.recordChainOp(ticket.Chain, tr.op, "timeout")
			return c.markPending(ctx, ticket, tr.op, handle.TxRef), nil
		}
		c.recordChainOp(ticket.Chain, tr.op, "failed")
		return nil, err
	}
	if !receipt.Success {
		// A revert is a no-op: nothing is recorded locally.
		c.recordChainOp(ticket.Chain, tr.op, "reverted")
		return nil, apperrors.NewChainError(apperrors.CodeChainReverted, receipt.Reason)
	}
	c.recordChainOp(ticket.Chain, tr.op, "confirmed")

	fields := map[string]any{"tx_ref": receipt.TxRef}
	for k, v := range tr.fields {
		fields[k] = v
	}
	if tr.newStatus != "" {
		fields["status"] = tr.newStatus
	}

	patched, err := c.tickets.Patch(ctx, ticket.ID, fields)
	if err != nil {
		// Chain confirmed; the store mirror lags until the sweep repairs it.
		c.logger.Warn("store patch failed after confirmed chain op",
			zap.String("ticket_id", ticket.ID), zap.String("op", string(tr.op)), zap.Error(err))
		return c.markPending(ctx, ticket, tr.op, receipt.TxRef), nil
	}

	c.publish(ctx, events.Event{
		Type:      tr.event,
		TicketID:  patched.ID,
		NewStatus: patched.Status,
		TxRef:     patched.TxRef,
		Payload:   tr.payload,
	})
	return &OpResult{Outcome: OutcomeSuccess, Ticket: patched, TxRef: patched.TxRef}, nil
}

// StakeCollateral locks collateral into the ticket's pool. Reaching the
// severity-tier requirement moves the ticket from OPEN to STAKED; staking
// anything less leaves it OPEN.
func (c *Coordinator) StakeCollateral(ctx context.Context, ticketID string, amount *big.Int) (*OpResult, error) {
	unlock := c.locks.lock(ticketID)
	defer unlock()

	ticket, err := c.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	sess, err := c.requireSession(ticket.Chain)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusOpen {
		return nil, apperrors.NewPreconditionViolation("ticket is not accepting stake",
			map[string]any{"status": ticket.Status})
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, apperrors.NewValidationError("stake amount must be positive", nil)
	}

	adapter, err := c.adapter(ticket.Chain)
	if err != nil {
		return nil, err
	}

	// Approve-then-stake sequencing. The DAG adapter completes approve as a
	// local no-op; on EVM a failed allowance stops before any stake cost.
	approveHandle, err := adapter.SubmitFundedTransaction(ctx, chain.TxRequest{
		Op:      chain.OpApprove,
		Actor:   sess.Address,
		PoolRef: ticket.StakingPoolRef,
		Amount:  amount,
	})
	if err != nil {
		c.recordChainOp(ticket.Chain, chain.OpApprove, "submit_failed")
		return nil, err
	}
	approveReceipt, err := adapter.AwaitReceipt(ctx, approveHandle, c.receiptTimeout(ticket.Chain))
	if err != nil {
		if apperrors.IsAmbiguous(err) {
			// No stake is in flight yet and the mirror is untouched, so an
			// ambiguous allowance needs no reconciliation; the caller retries.
			c.recordChainOp(ticket.Chain, chain.OpApprove, "timeout")
			return nil, err
		}
		c.recordChainOp(ticket.Chain, chain.OpApprove, "failed")
		return nil, err
	}
	if !approveReceipt.Success {
		c.recordChainOp(ticket.Chain, chain.OpApprove, "reverted")
		return nil, apperrors.NewChainError(apperrors.CodeChainReverted, approveReceipt.Reason)
	}

	handle, err := adapter.SubmitFundedTransaction(ctx, chain.TxRequest{
		Op:      chain.OpStake,
		Actor:   sess.Address,
		PoolRef: ticket.StakingPoolRef,
		Amount:  amount,
	})
	if err != nil {
		c.recordChainOp(ticket.Chain, chain.OpStake, "submit_failed")
		return nil, err
	}
	receipt, err := adapter.AwaitReceipt(ctx, handle, c.receiptTimeout(ticket.Chain))
	if err != nil {
		if apperrors.IsAmbiguous(err) {
			c.recordChainOp(ticket.Chain, chain.OpStake, "timeout")
			return c.markPending(ctx, ticket, chain.OpStake, handle.TxRef), nil
		}
		c.recordChainOp(ticket.Chain, chain.OpStake, "failed")
		return nil, err
	}
	if !receipt.Success {
		c.recordChainOp(ticket.Chain, chain.OpStake, "reverted")
		return nil, apperrors.NewChainError(apperrors.CodeChainReverted, receipt.Reason)
	}
	c.recordChainOp(ticket.Chain, chain.OpStake, "confirmed")

	totalStaked := c.applyStake(ctx, ticket, sess.Address, amount, receipt)

	fields := map[string]any{"tx_ref": receipt.TxRef}
	newStatus := ticket.Status
	required := accountant.RequiredCollateral(ticket.Severity)
	if totalStaked.Cmp(required) >= 0 {
		newStatus = domain.TicketStatusStaked
		fields["status"] = newStatus
	}

	patched, err := c.tickets.Patch(ctx, ticket.ID, fields)
	if err != nil {
		c.logger.Warn("store patch failed after confirmed stake",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		return c.markPending(ctx, ticket, chain.OpStake, receipt.TxRef), nil
	}

	c.publish(ctx, events.Event{
		Type:      events.EventStaked,
		TicketID:  patched.ID,
		NewStatus: patched.Status,
		TxRef:     patched.TxRef,
		Payload: events.StakedPayload{
			Staker:      sess.Address,
			Amount:      amount.String(),
			TotalStaked: totalStaked.String(),
		},
	})
	return &OpResult{Outcome: OutcomeSuccess, Ticket: patched, TxRef: patched.TxRef}, nil
}

// applyStake upserts the staker's position mirror and returns the pool
// total, preferring the ledger-reported total over the local sum.
func (c *Coordinator) applyStake(ctx context.Context, ticket *domain.Ticket, staker string, amount *big.Int, receipt *chain.Receipt) *big.Int {
	position, err := c.stakes.Get(ctx, ticket.StakingPoolRef, staker)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		c.logger.Warn("stake position read failed", zap.Error(err))
	}
	if position == nil {
		position = &domain.StakePosition{
			Pool:       ticket.StakingPoolRef,
			Staker:     staker,
			Amount:     big.NewInt(0),
			RewardDebt: big.NewInt(0),
		}
	}
	position.Amount = new(big.Int).Add(position.Amount, amount)
	if err := c.stakes.Upsert(ctx, position); err != nil {
		c.logger.Warn("stake position upsert failed; pool totals remain chain-sourced", zap.Error(err))
	}

	if receipt.Record != nil && receipt.Record.TotalStaked != nil {
		return receipt.Record.TotalStaked
	}
	total, err := c.stakes.TotalStaked(ctx, ticket.StakingPoolRef)
	if err != nil {
		c.logger.Warn("stake total read failed", zap.Error(err))
		return position.Amount
	}
	return total
}

// AssignAnalyst assigns the analyst, exactly once, on a fully staked ticket.
func (c *Coordinator) AssignAnalyst(ctx context.Context, ticketID, analyst string) (*OpResult, error) {
	unlock := c.locks.lock(ticketID)
	defer unlock()

	ticket, err := c.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	sess, err := c.requireSession(ticket.Chain)
	if err != nil {
		return nil, err
	}
	if sess.Address != ticket.Client {
		return nil, apperrors.NewPreconditionViolation("only the ticket client can assign an analyst", nil)
	}
	if ticket.Status != domain.TicketStatusStaked {
		return nil, apperrors.NewPreconditionViolation("ticket must be staked before analyst assignment",
			map[string]any{"status": ticket.Status})
	}
	if ticket.Analyst != nil {
		return nil, apperrors.NewAlreadyAssigned("analyst already assigned",
			map[string]any{"analyst": *ticket.Analyst})
	}

	normalized, err := domain.NormalizeAddress(ticket.Chain, analyst)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid analyst address", map[string]any{"reason": err.Error()})
	}
	if err := c.roles.Require(ctx, normalized, domain.RoleAnalyst); err != nil {
		return nil, err
	}

	return c.execute(ctx, ticket, sess.Address, transition{
		op:        chain.OpAssignAnalyst,
		params:    map[string]string{"analyst": normalized},
		fields:    map[string]any{"analyst": &normalized},
		newStatus: domain.TicketStatusAnalystAssigned,
		event:     events.EventAnalystAssigned,
		payload:   events.AnalystAssignedPayload{Analyst: normalized},
	})
}

// SubmitReport records the assigned analyst's findings hash on chain.
func (c *Coordinator) SubmitReport(ctx context.Context, ticketID, reportHash string) (*OpResult, error) {
	unlock := c.locks.lock(ticketID)
	defer unlock()

	ticket, err := c.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	sess, err := c.requireSession(ticket.Chain)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusAnalystAssigned {
		return nil, apperrors.NewPreconditionViolation("ticket is not awaiting a report",
			map[string]any{"status": ticket.Status})
	}
	if ticket.Analyst == nil || *ticket.Analyst != sess.Address {
		return nil, apperrors.NewPreconditionViolation("only the assigned analyst can submit the report", nil)
	}
	if reportHash == "" {
		return nil, apperrors.NewValidationError("report hash required", nil)
	}

	return c.execute(ctx, ticket, sess.Address, transition{
		op:        chain.OpSubmitReport,
		params:    map[string]string{"report_hash": reportHash},
		newStatus: domain.TicketStatusReportSubmitted,
		event:     events.EventReportSubmitted,
	})
}

// AssignCertifier assigns the certifier once a report exists. The certifier
// must differ from the analyst; the role registry's stability makes that
// check durable.
func (c *Coordinator) AssignCertifier(ctx context.Context, ticketID, certifier string) (*OpResult, error) {
	unlock := c.locks.lock(ticketID)
	defer unlock()

	ticket, err := c.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	sess, err := c.requireSession(ticket.Chain)
	if err != nil {
		return nil, err
	}
	if sess.Address != ticket.Client {
		return nil, apperrors.NewPreconditionViolation("only the ticket client can assign a certifier", nil)
	}
	if ticket.Status != domain.TicketStatusReportSubmitted {
		return nil, apperrors.NewPreconditionViolation("certifier assignment requires a submitted report",
			map[string]any{"status": ticket.Status})
	}
	if ticket.Certifier != nil {
		return nil, apperrors.NewAlreadyAssigned("certifier already assigned",
			map[string]any{"certifier": *ticket.Certifier})
	}

	normalized, err := domain.NormalizeAddress(ticket.Chain, certifier)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid certifier address", map[string]any{"reason": err.Error()})
	}
	if ticket.Analyst != nil && normalized == *ticket.Analyst {
		return nil, apperrors.NewPreconditionViolation("certifier must differ from analyst", nil)
	}
	if err := c.roles.Require(ctx, normalized, domain.RoleCertifier); err != nil {
		return nil, err
	}

	return c.execute(ctx, ticket, sess.Address, transition{
		op:        chain.OpAssignCertifier,
		params:    map[string]string{"certifier": normalized},
		fields:    map[string]any{"certifier": &normalized},
		newStatus: domain.TicketStatusCertifierAssigned,
		event:     events.EventCertifierAssigned,
		payload:   events.CertifierAssignedPayload{Certifier: normalized},
	})
}

// CertifierApprove validates the report and distributes the escrowed
// reward. The distribution plan is conservation-checked before submission;
// a revert records nothing locally.
func (c *Coordinator) CertifierApprove(ctx context.Context, ticketID string) (*OpResult, error) {
	unlock := c.locks.lock(ticketID)
	defer unlock()

	ticket, err := c.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	sess, err := c.requireSession(ticket.Chain)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusCertifierAssigned {
		return nil, apperrors.NewPreconditionViolation("ticket is not awaiting certification",
			map[string]any{"status": ticket.Status})
	}
	if ticket.Certifier == nil || *ticket.Certifier != sess.Address {
		return nil, apperrors.NewPreconditionViolation("only the assigned certifier can approve", nil)
	}

	adapter, err := c.adapter(ticket.Chain)
	if err != nil {
		return nil, err
	}
	// Pool totals come from the ledger, never synthesized locally.
	pool, err := adapter.ReadPool(ctx, ticket.StakingPoolRef)
	if err != nil {
		return nil, err
	}
	positions, err := c.stakes.ListByPool(ctx, ticket.StakingPoolRef)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}

	plan, err := accountant.DistributionPlan(ticket.RewardAmount, positions, pool.TotalStaked)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	params := map[string]string{
		"analyst_reward":   plan.Analyst.String(),
		"certifier_reward": plan.Certifier.String(),
	}
	stakerRewards := make(map[string]string, len(plan.Stakers))
	for staker, cut := range plan.Stakers {
		params["staker:"+staker] = cut.String()
		stakerRewards[staker] = cut.String()
	}

	result, err := c.execute(ctx, ticket, sess.Address, transition{
		op:        chain.OpValidateAndDistribute,
		params:    params,
		newStatus: domain.TicketStatusValidated,
		event:     events.EventValidated,
		payload: events.ValidatedPayload{
			AnalystReward:   plan.Analyst.String(),
			CertifierReward: plan.Certifier.String(),
			StakerRewards:   stakerRewards,
		},
	})
	if err != nil || result.Outcome != OutcomeSuccess {
		return result, err
	}

	// Reward debt bookkeeping so a later claim cannot double-pay. Mirror
	// only; the ledger holds the authoritative debt.
	for i := range positions {
		cut, ok := plan.Stakers[positions[i].Staker]
		if !ok {
			continue
		}
		positions[i].RewardDebt = new(big.Int).Add(positions[i].RewardDebt, cut)
		if err := c.stakes.Upsert(ctx, &positions[i]); err != nil {
			c.logger.Warn("reward debt mirror update failed",
				zap.String("staker", positions[i].Staker), zap.Error(err))
		}
	}
	return result, nil
}

// CertifierReject sends the ticket back. The default re-enters the analysis
// cycle at OPEN with assignments cleared and stake preserved; final closes
// the ticket at REJECTED. Retry bounds are the caller's policy.
func (c *Coordinator) CertifierReject(ctx context.Context, ticketID, reason string, final bool) (*OpResult, error) {
	unlock := c.locks.lock(ticketID)
	defer unlock()

	ticket, err := c.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	sess, err := c.requireSession(ticket.Chain)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusCertifierAssigned {
		// Rejecting without a submitted report is not permitted.
		return nil, apperrors.NewPreconditionViolation("rejection requires a submitted report under certification",
			map[string]any{"status": ticket.Status})
	}
	if ticket.Certifier == nil || *ticket.Certifier != sess.Address {
		return nil, apperrors.NewPreconditionViolation("only the assigned certifier can reject", nil)
	}

	newStatus := domain.TicketStatusOpen
	fields := map[string]any{
		"analyst":   (*string)(nil),
		"certifier": (*string)(nil),
	}
	if final {
		newStatus = domain.TicketStatusRejected
		fields = map[string]any{}
	}

	return c.execute(ctx, ticket, sess.Address, transition{
		op: chain.OpRejectReport,
		params: map[string]string{
			"reason": reason,
			"final":  boolString(final),
		},
		fields:    fields,
		newStatus: newStatus,
		event:     events.EventRejected,
		payload:   events.RejectedPayload{Reason: reason, Final: final},
	})
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
