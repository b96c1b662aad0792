package coordinator

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-coordinator/internal/accountant"
	"github.com/spec-kit/incident-coordinator/internal/domain"
	apperrors "github.com/spec-kit/incident-coordinator/pkg/util"
)

func TestPoolStatsReportsSharesAndPendingRewards(t *testing.T) {
	rig := newTestRig(t)
	ticket := rig.tickets.seed(&domain.Ticket{
		Chain:          domain.ChainEVM,
		Client:         clientAddr,
		Severity:       domain.SeverityLow,
		StakingPoolRef: "pool-1",
		Status:         domain.TicketStatusStaked,
	})
	rig.adapter.pool = &domain.PoolState{
		Ref:         "pool-1",
		TotalStaked: units(100),
		RewardRate:  units(2),
		RewardPaid:  units(0),
		BlockHeight: 10,
	}
	require.NoError(t, rig.stakes.Upsert(context.Background(), &domain.StakePosition{
		Pool: "pool-1", Staker: stakerAddr, Amount: units(50), RewardDebt: units(4),
	}))
	require.NoError(t, rig.stakes.Upsert(context.Background(), &domain.StakePosition{
		Pool: "pool-1", Staker: clientAddr, Amount: units(25), RewardDebt: units(0),
	}))

	stats, err := rig.coord.PoolStats(context.Background(), ticket.ID)
	require.NoError(t, err)

	assert.Equal(t, "pool-1", stats.PoolRef)
	assert.Equal(t, units(100).String(), stats.TotalStaked)
	assert.Equal(t, units(100).String(), stats.RequiredCollateral)
	assert.Equal(t, domain.TicketStatusStaked, stats.Status)

	byStaker := make(map[string]PoolShare, len(stats.Positions))
	for _, position := range stats.Positions {
		byStaker[position.Staker] = position
	}
	require.Len(t, byStaker, 2)

	// Half the pool at a rate of 2 units over 10 blocks accrues 10 units;
	// 4 units of debt leaves 6 pending.
	half := byStaker[stakerAddr]
	assert.Equal(t, units(50).String(), half.Amount)
	assert.Equal(t, new(big.Int).Div(accountant.Precision, big.NewInt(2)).String(), half.Share)
	assert.Equal(t, units(6).String(), half.PendingReward)

	quarter := byStaker[clientAddr]
	assert.Equal(t, new(big.Int).Div(accountant.Precision, big.NewInt(4)).String(), quarter.Share)
	assert.Equal(t, units(5).String(), quarter.PendingReward)
}

func TestPoolStatsWithoutConfirmedPool(t *testing.T) {
	rig := newTestRig(t)
	ticket := rig.tickets.seed(&domain.Ticket{
		Chain:    domain.ChainEVM,
		Client:   clientAddr,
		Severity: domain.SeverityLow,
		Status:   domain.TicketStatusOpen,
	})

	_, err := rig.coord.PoolStats(context.Background(), ticket.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePreconditionViolation))
}
