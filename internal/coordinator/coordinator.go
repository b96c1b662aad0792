// Package coordinator drives the ticket lifecycle state machine across the
// ledger adapters and the off-chain record store. Store writes always
// happen after the chain confirms (write-after-confirm); when the store
// fails after a confirmed chain operation the ticket is flagged for
// reconciliation instead of failing the operation, because the on-chain
// fact is authoritative.
package coordinator

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-coordinator/internal/analysis"
	"github.com/spec-kit/incident-coordinator/internal/chain"
	"github.com/spec-kit/incident-coordinator/internal/domain"
	"github.com/spec-kit/incident-coordinator/internal/events"
	"github.com/spec-kit/incident-coordinator/internal/observability"
	"github.com/spec-kit/incident-coordinator/internal/persistence"
	"github.com/spec-kit/incident-coordinator/internal/registry"
	"github.com/spec-kit/incident-coordinator/internal/repository"
	"github.com/spec-kit/incident-coordinator/internal/session"
	apperrors "github.com/spec-kit/incident-coordinator/pkg/util"
)

// Outcome is the user-visible result of a mutating operation. Rejections
// surface as errors; Pending must eventually resolve to success or failure
// via the reconciliation sweep.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomePending Outcome = "PENDING"
)

// OpResult reports one lifecycle operation.
type OpResult struct {
	Outcome Outcome
	Ticket  *domain.Ticket
	TxRef   string
}

// Timing carries per-chain receipt and reconciliation windows.
type Timing struct {
	ReceiptTimeout map[domain.Chain]time.Duration
	GracePeriod    map[domain.Chain]time.Duration
}

// Dependencies bundles collaborators for the coordinator.
type Dependencies struct {
	Tickets    repository.TicketRepository
	Stakes     repository.StakePositionRepository
	Roles      *registry.RoleRegistry
	Sessions   *session.Manager
	Adapters   map[domain.Chain]chain.Adapter
	Dispatcher events.Dispatcher
	Analyzer   *analysis.Client
	Cache      *persistence.Redis
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Timing     Timing
}

// Coordinator is the lifecycle state machine.
type Coordinator struct {
	tickets    repository.TicketRepository
	stakes     repository.StakePositionRepository
	roles      *registry.RoleRegistry
	sessions   *session.Manager
	adapters   map[domain.Chain]chain.Adapter
	dispatcher events.Dispatcher
	analyzer   *analysis.Client
	cache      *persistence.Redis
	metrics    *observability.Metrics
	logger     *zap.Logger
	timing     Timing
	locks      *ticketLocks
}

// New constructs the coordinator.
func New(deps Dependencies) *Coordinator {
	return &Coordinator{
		tickets:    deps.Tickets,
		stakes:     deps.Stakes,
		roles:      deps.Roles,
		sessions:   deps.Sessions,
		adapters:   deps.Adapters,
		dispatcher: deps.Dispatcher,
		analyzer:   deps.Analyzer,
		cache:      deps.Cache,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		timing:     deps.Timing,
		locks:      newTicketLocks(),
	}
}

// CreateTicketInput describes ticket creation.
type CreateTicketInput struct {
	Title        string
	Description  string
	Severity     domain.Severity
	RewardAmount *big.Int
}

// CreateTicket reports a new incident: the ticket and its staking pool are
// created atomically on the session's chain, the reward amount is escrowed,
// and the store mirror is written once the chain confirms.
func (c *Coordinator) CreateTicket(ctx context.Context, input CreateTicketInput) (*OpResult, error) {
	sess, err := c.requireSession(domain.Chain(""))
	if err != nil {
		return nil, err
	}
	if input.RewardAmount == nil || input.RewardAmount.Sign() <= 0 {
		return nil, apperrors.NewValidationError("reward amount must be positive", nil)
	}
	if strings.TrimSpace(input.Title) == "" && strings.TrimSpace(input.Description) == "" {
		return nil, apperrors.NewValidationError("title or description required", nil)
	}

	if err := c.ensureClientRole(ctx, sess.Address); err != nil {
		return nil, err
	}

	input = c.enrich(ctx, input)
	if input.Severity == "" {
		input.Severity = domain.SeverityMedium
	}
	if !input.Severity.Valid() {
		return nil, apperrors.NewValidationError("unknown severity", map[string]any{"severity": input.Severity})
	}

	adapter, err := c.adapter(sess.Chain)
	if err != nil {
		return nil, err
	}
	handle, err := adapter.SubmitFundedTransaction(ctx, chain.TxRequest{
		Op:     chain.OpCreateTicket,
		Actor:  sess.Address,
		Amount: input.RewardAmount,
		Params: map[string]string{"severity": string(input.Severity)},
	})
	if err != nil {
		c.recordChainOp(sess.Chain, chain.OpCreateTicket, "submit_failed")
		return nil, err
	}

	receipt, err := adapter.AwaitReceipt(ctx, handle, c.receiptTimeout(sess.Chain))
	if err != nil {
		if apperrors.IsAmbiguous(err) {
			// The ticket may exist on chain; persist a pending stub so the
			// sweep can adopt or discard it once the outcome is known.
			return c.createPendingStub(ctx, sess, input, handle.TxRef)
		}
		c.recordChainOp(sess.Chain, chain.OpCreateTicket, "failed")
		return nil, err
	}
	if !receipt.Success {
		c.recordChainOp(sess.Chain, chain.OpCreateTicket, "reverted")
		return nil, apperrors.NewChainError(apperrors.CodeChainReverted, receipt.Reason)
	}
	c.recordChainOp(sess.Chain, chain.OpCreateTicket, "confirmed")

	poolRef := ""
	if receipt.Record != nil {
		poolRef = receipt.Record.PoolRef
	}
	ticket := &domain.Ticket{
		Chain:          sess.Chain,
		Title:          strings.TrimSpace(input.Title),
		Description:    strings.TrimSpace(input.Description),
		Client:         sess.Address,
		Severity:       input.Severity,
		StakingPoolRef: poolRef,
		RewardAmount:   input.RewardAmount,
		Status:         domain.TicketStatusOpen,
		TxRef:          receipt.TxRef,
	}
	if err := c.tickets.Create(ctx, ticket); err != nil {
		// Chain already holds the ticket; one retry before surfacing the
		// refs so the caller can reconcile manually.
		if err = c.tickets.Create(ctx, ticket); err != nil {
			return nil, apperrors.NewDomainError(apperrors.CodeStoreError,
				"ticket confirmed on chain but record store write failed", 500,
				map[string]any{"tx_ref": receipt.TxRef, "pool_ref": poolRef})
		}
	}

	c.publish(ctx, events.Event{
		Type:      events.EventTicketCreated,
		TicketID:  ticket.ID,
		NewStatus: ticket.Status,
		TxRef:     ticket.TxRef,
	})
	return &OpResult{Outcome: OutcomeSuccess, Ticket: ticket, TxRef: ticket.TxRef}, nil
}

func (c *Coordinator) createPendingStub(ctx context.Context, sess *session.Session, input CreateTicketInput, txRef string) (*OpResult, error) {
	c.recordChainOp(sess.Chain, chain.OpCreateTicket, "timeout")
	ticket := &domain.Ticket{
		Chain:        sess.Chain,
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
		Client:       sess.Address,
		Severity:     input.Severity,
		RewardAmount: input.RewardAmount,
		Status:       domain.TicketStatusOpen,
		TxRef:        txRef,
	}
	if err := c.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	action := string(chain.OpCreateTicket)
	if _, err := c.tickets.Patch(ctx, ticket.ID, map[string]any{
		"pending_reconciliation": true,
		"pending_action":         &action,
	}); err != nil {
		c.logger.Warn("failed to flag pending stub", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	c.publish(ctx, events.Event{
		Type:      events.EventReconciliationScheduled,
		TicketID:  ticket.ID,
		NewStatus: ticket.Status,
		TxRef:     txRef,
		Payload:   events.ReconciliationPayload{Action: action, Outcome: "scheduled"},
	})
	return &OpResult{Outcome: OutcomePending, Ticket: ticket, TxRef: txRef}, nil
}

// GetTicket loads a ticket mirror by id.
func (c *Coordinator) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return c.loadTicket(ctx, ticketID)
}

// ListTickets lists ticket mirrors.
func (c *Coordinator) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := c.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	return tickets, nil
}

// ExplorerURL renders an audit link for a ticket's last transaction.
func (c *Coordinator) ExplorerURL(ticket *domain.Ticket) string {
	adapter, err := c.adapter(ticket.Chain)
	if err != nil || ticket.TxRef == "" {
		return ""
	}
	return adapter.ExplorerURL(ticket.TxRef)
}

func (c *Coordinator) ensureClientRole(ctx context.Context, address string) error {
	binding, err := c.roles.Get(ctx, address)
	if err != nil {
		return err
	}
	if binding == nil {
		_, err := c.roles.Assign(ctx, address, domain.RoleClient)
		return err
	}
	if binding.Role != domain.RoleClient {
		return apperrors.NewRoleViolation("only clients can create tickets",
			map[string]any{"address": address, "role": binding.Role})
	}
	return nil
}

// enrich asks the analysis service for a structured reading; failures never
// block creation.
func (c *Coordinator) enrich(ctx context.Context, input CreateTicketInput) CreateTicketInput {
	if c.analyzer == nil || !c.analyzer.Available() {
		return input
	}
	enrichment, err := c.analyzer.AnalyzeIncident(ctx, input.Description)
	if err != nil {
		c.logger.Debug("incident analysis unavailable, using user-entered fields", zap.Error(err))
		return input
	}
	if strings.TrimSpace(input.Title) == "" && enrichment.Title != "" {
		input.Title = enrichment.Title
	}
	if input.Severity == "" && enrichment.Severity.Valid() {
		input.Severity = enrichment.Severity
	}
	return input
}

func (c *Coordinator) adapter(ch domain.Chain) (chain.Adapter, error) {
	adapter, ok := c.adapters[ch]
	if !ok {
		return nil, apperrors.NewInternalError(errors.New("no adapter for chain " + string(ch)))
	}
	return adapter, nil
}

// requireSession returns the active wallet session, optionally checking it
// is bound to the wanted chain. Cross-chain operations are rejected here
// before any chain cost.
func (c *Coordinator) requireSession(want domain.Chain) (*session.Session, error) {
	sess := c.sessions.Current()
	if sess == nil {
		return nil, apperrors.NewUnauthorized("no wallet session connected")
	}
	if want != "" && sess.Chain != want {
		return nil, apperrors.NewSessionMismatch("active session chain does not match ticket chain")
	}
	return sess, nil
}

func (c *Coordinator) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := c.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, apperrors.NewStoreError(err)
	}
	return ticket, nil
}

func (c *Coordinator) receiptTimeout(ch domain.Chain) time.Duration {
	if d, ok := c.timing.ReceiptTimeout[ch]; ok && d > 0 {
		return d
	}
	return 90 * time.Second
}

func (c *Coordinator) gracePeriod(ch domain.Chain) time.Duration {
	if d, ok := c.timing.GracePeriod[ch]; ok && d > 0 {
		return d
	}
	return 10 * time.Minute
}

func (c *Coordinator) recordChainOp(ch domain.Chain, op chain.Op, outcome string) {
	if c.metrics != nil {
		c.metrics.RecordChainOp(string(ch), string(op), outcome)
	}
}

func (c *Coordinator) publish(ctx context.Context, event events.Event) {
	if c.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = c.dispatcher.Publish(ctx, event)
}

// markPending flags the ticket for the reconciliation sweep after an
// ambiguous outcome (receipt timeout) or a store failure following a
// confirmed chain write. The stored status stays at the last confirmed
// value.
func (c *Coordinator) markPending(ctx context.Context, ticket *domain.Ticket, op chain.Op, txRef string) *OpResult {
	action := string(op)
	fields := map[string]any{
		"pending_reconciliation": true,
		"pending_action":         &action,
	}
	if txRef != "" {
		fields["tx_ref"] = txRef
	}
	patched, err := c.tickets.Patch(ctx, ticket.ID, fields)
	if err != nil {
		// The sweep can still find the ticket once the flag write
		// succeeds on a later attempt; log and carry on with the
		// in-memory copy.
		c.logger.Error("failed to flag ticket for reconciliation",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		patched = ticket
		patched.PendingReconciliation = true
		patched.PendingAction = &action
	}
	c.publish(ctx, events.Event{
		Type:      events.EventReconciliationScheduled,
		TicketID:  ticket.ID,
		NewStatus: patched.Status,
		TxRef:     txRef,
		Payload:   events.ReconciliationPayload{Action: action, Outcome: "scheduled"},
	})
	return &OpResult{Outcome: OutcomePending, Ticket: patched, TxRef: txRef}
}
