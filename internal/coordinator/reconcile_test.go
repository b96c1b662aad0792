package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-coordinator/internal/chain"
	"github.com/spec-kit/incident-coordinator/internal/domain"
	"github.com/spec-kit/incident-coordinator/internal/events"
)

func seedPendingTicket(rig *testRig, action string, updatedAt time.Time) *domain.Ticket {
	return rig.tickets.seed(&domain.Ticket{
		Chain:                 domain.ChainEVM,
		Client:                clientAddr,
		Severity:              domain.SeverityLow,
		StakingPoolRef:        "pool-1",
		Status:                domain.TicketStatusOpen,
		TxRef:                 "tx-" + action,
		PendingReconciliation: true,
		PendingAction:         &action,
		UpdatedAt:             updatedAt,
	})
}

func TestReconcileNoopWhenMirrorMatchesChain(t *testing.T) {
	rig := newTestRig(t)
	ticket := rig.tickets.seed(&domain.Ticket{
		Chain:          domain.ChainEVM,
		Client:         clientAddr,
		Severity:       domain.SeverityLow,
		StakingPoolRef: "pool-1",
		Status:         domain.TicketStatusStaked,
	})
	rig.adapter.records["pool-1"] = &chain.OnChainRecord{
		PoolRef: "pool-1",
		Status:  domain.TicketStatusStaked,
	}

	outcome, err := rig.coord.Reconcile(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ReconcileNoop, outcome)
}

func TestReconcileAdoptsAheadRecord(t *testing.T) {
	// A crash between chain confirm and store write leaves the mirror behind
	// with no pending flag; on-chain still wins.
	rig := newTestRig(t)
	ticket := rig.tickets.seed(&domain.Ticket{
		Chain:          domain.ChainEVM,
		Client:         clientAddr,
		Severity:       domain.SeverityLow,
		StakingPoolRef: "pool-1",
		Status:         domain.TicketStatusStaked,
	})
	rig.adapter.records["pool-1"] = &chain.OnChainRecord{
		PoolRef: "pool-1",
		Status:  domain.TicketStatusReportSubmitted,
		Analyst: analystAddr,
		TxRef:   "tx-submit_report",
	}

	outcome, err := rig.coord.Reconcile(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResolved, outcome)

	stored, err := rig.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusReportSubmitted, stored.Status)
	assert.Equal(t, "tx-submit_report", stored.TxRef)

	evt := rig.lastEvent(t, events.EventReconciliationResolved)
	assert.Equal(t, ticket.ID, evt.TicketID)
}

func TestReconcilePendingWithinGraceDefers(t *testing.T) {
	rig := newTestRig(t)
	ticket := seedPendingTicket(rig, "stake", time.Now())
	// The timed-out stake has not landed: the chain still shows the
	// pre-transition state under the previously confirmed tx, not the
	// in-flight ref the mirror stored.
	rig.adapter.records["pool-1"] = &chain.OnChainRecord{
		PoolRef: "pool-1",
		Status:  domain.TicketStatusOpen,
		TxRef:   "tx-create-prior",
	}

	outcome, err := rig.coord.Reconcile(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ReconcileDeferred, outcome)

	stored, err := rig.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.True(t, stored.PendingReconciliation)
	assert.False(t, rig.hasEvent(events.EventReconciliationResolved))
}

func TestReconcilePendingPastGraceFails(t *testing.T) {
	rig := newTestRig(t) // grace period is 50ms in the rig
	ticket := seedPendingTicket(rig, "stake", time.Now().Add(-time.Minute))
	rig.adapter.records["pool-1"] = &chain.OnChainRecord{
		PoolRef: "pool-1",
		Status:  domain.TicketStatusOpen,
		TxRef:   "tx-create-prior",
	}

	outcome, err := rig.coord.Reconcile(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ReconcileFailed, outcome)

	stored, err := rig.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	// The last confirmed status stands and the action is retryable.
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.False(t, stored.PendingReconciliation)
	assert.Nil(t, stored.PendingAction)

	assert.True(t, rig.hasEvent(events.EventReconciliationFailed))
}

func TestReconcilePendingTransitionLandedLate(t *testing.T) {
	rig := newTestRig(t)
	ticket := seedPendingTicket(rig, "stake", time.Now())
	// The stake landed after the receipt wait gave up.
	rig.adapter.records["pool-1"] = &chain.OnChainRecord{
		PoolRef:     "pool-1",
		Status:      domain.TicketStatusStaked,
		TotalStaked: units(100),
		TxRef:       "tx-stake",
	}

	outcome, err := rig.coord.Reconcile(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResolved, outcome)

	stored, err := rig.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusStaked, stored.Status)
	assert.False(t, stored.PendingReconciliation)
}

func TestReconcilePendingEchoedRefResolves(t *testing.T) {
	// A below-requirement stake landed without a status change: the record
	// echoes the in-flight tx ref, which is proof enough of settlement.
	rig := newTestRig(t)
	ticket := seedPendingTicket(rig, "stake", time.Now())
	rig.adapter.records["pool-1"] = &chain.OnChainRecord{
		PoolRef:     "pool-1",
		Status:      domain.TicketStatusOpen,
		TotalStaked: units(40),
		TxRef:       ticket.TxRef,
	}

	outcome, err := rig.coord.Reconcile(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResolved, outcome)

	stored, err := rig.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.False(t, stored.PendingReconciliation)
}

func TestReconcilePendingCreateAdoptsPoolRef(t *testing.T) {
	// A create stub has no pool ref; the tx ref is the only handle.
	rig := newTestRig(t)
	action := string(chain.OpCreateTicket)
	ticket := rig.tickets.seed(&domain.Ticket{
		Chain:                 domain.ChainEVM,
		Client:                clientAddr,
		Severity:              domain.SeverityLow,
		Status:                domain.TicketStatusOpen,
		TxRef:                 "tx-create",
		PendingReconciliation: true,
		PendingAction:         &action,
	})
	rig.adapter.records["tx-create"] = &chain.OnChainRecord{
		TicketRef: ticket.ID,
		PoolRef:   "pool-9",
		Status:    domain.TicketStatusOpen,
		TxRef:     "tx-create-final",
		Client:    clientAddr,
	}

	outcome, err := rig.coord.Reconcile(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResolved, outcome)

	stored, err := rig.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "pool-9", stored.StakingPoolRef)
	assert.False(t, stored.PendingReconciliation)
}

func TestReconcileRecordMissingWithinGraceDefers(t *testing.T) {
	rig := newTestRig(t)
	ticket := seedPendingTicket(rig, "stake", time.Now())

	outcome, err := rig.coord.Reconcile(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ReconcileDeferred, outcome)
}

func TestReconcileRecordMissingPastGraceFails(t *testing.T) {
	rig := newTestRig(t)
	ticket := seedPendingTicket(rig, "create_ticket", time.Now().Add(-time.Minute))

	outcome, err := rig.coord.Reconcile(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ReconcileFailed, outcome)
}

func TestReconcileSweep(t *testing.T) {
	rig := newTestRig(t)

	// One resolves from chain, one fails past grace, one clean ticket is
	// never scanned.
	resolved := seedPendingTicket(rig, "stake", time.Now().Add(-time.Minute))
	rig.adapter.records["pool-1"] = &chain.OnChainRecord{
		PoolRef: "pool-1",
		Status:  domain.TicketStatusStaked,
		TxRef:   "tx-stake-late",
	}

	failedAction := "assign_analyst"
	failed := rig.tickets.seed(&domain.Ticket{
		Chain:                 domain.ChainEVM,
		Client:                clientAddr,
		Severity:              domain.SeverityLow,
		StakingPoolRef:        "pool-2",
		Status:                domain.TicketStatusStaked,
		TxRef:                 "tx-lost",
		PendingReconciliation: true,
		PendingAction:         &failedAction,
		UpdatedAt:             time.Now().Add(-time.Minute),
	})

	rig.tickets.seed(&domain.Ticket{
		Chain:          domain.ChainEVM,
		Client:         clientAddr,
		Severity:       domain.SeverityLow,
		StakingPoolRef: "pool-3",
		Status:         domain.TicketStatusOpen,
	})

	report, err := rig.coord.ReconcileSweep(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Resolved)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, report.Deferred)

	storedResolved, err := rig.tickets.GetByID(context.Background(), resolved.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusStaked, storedResolved.Status)

	storedFailed, err := rig.tickets.GetByID(context.Background(), failed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusStaked, storedFailed.Status)
	assert.False(t, storedFailed.PendingReconciliation)
}
