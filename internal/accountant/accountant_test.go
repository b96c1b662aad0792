package accountant

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-coordinator/internal/domain"
)

func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), Precision)
}

func TestRequiredCollateral(t *testing.T) {
	assert.Equal(t, units(100), RequiredCollateral(domain.SeverityLow))
	assert.Equal(t, units(250), RequiredCollateral(domain.SeverityMedium))
	assert.Equal(t, units(500), RequiredCollateral(domain.SeverityHigh))
	assert.Equal(t, units(1000), RequiredCollateral(domain.SeverityCritical))

	// Unknown severity prices at the critical tier.
	assert.Equal(t, units(1000), RequiredCollateral(domain.Severity("UNHEARD_OF")))
}

func TestComputeShareEmptyPool(t *testing.T) {
	assert.Zero(t, ComputeShare(big.NewInt(0), units(5)).Sign())
	assert.Zero(t, ComputeShare(nil, units(5)).Sign())
	assert.Zero(t, ComputeShare(units(10), nil).Sign())
	assert.Zero(t, ComputeShare(units(10), big.NewInt(0)).Sign())
}

func TestComputeShare(t *testing.T) {
	// 25 of 100 staked -> 25% of Precision.
	share := ComputeShare(units(100), units(25))
	want := new(big.Int).Quo(Precision, big.NewInt(4))
	assert.Equal(t, want, share)

	// Sole staker owns the whole pool.
	assert.Equal(t, Precision, ComputeShare(units(7), units(7)))
}

func TestComputeRewardFloorsAtZero(t *testing.T) {
	share := new(big.Int).Quo(Precision, big.NewInt(2))
	debt := units(1_000_000)

	got := ComputeReward(big.NewInt(10), 3, share, debt)
	assert.Zero(t, got.Sign())
}

func TestComputeReward(t *testing.T) {
	// rate=4 per block, 10 blocks, 50% share, no debt -> 20.
	share := new(big.Int).Quo(Precision, big.NewInt(2))
	got := ComputeReward(big.NewInt(4), 10, share, nil)
	assert.Equal(t, big.NewInt(20), got)

	// Debt is subtracted.
	got = ComputeReward(big.NewInt(4), 10, share, big.NewInt(5))
	assert.Equal(t, big.NewInt(15), got)

	// Zero rate or zero share accrue nothing.
	assert.Zero(t, ComputeReward(big.NewInt(0), 10, share, nil).Sign())
	assert.Zero(t, ComputeReward(big.NewInt(4), 10, big.NewInt(0), nil).Sign())
}

func TestDistributionPlanSplits(t *testing.T) {
	reward := units(1000)
	positions := []domain.StakePosition{
		{Staker: "0xaaa", Amount: units(300)},
		{Staker: "0xbbb", Amount: units(100)},
	}

	plan, err := DistributionPlan(reward, positions, units(400))
	require.NoError(t, err)

	assert.Equal(t, units(500), plan.Analyst)
	assert.Equal(t, units(150), plan.Certifier)

	// Staker budget is 350, split 3:1.
	assert.Equal(t, new(big.Int).Mul(big.NewInt(2625), new(big.Int).Quo(Precision, big.NewInt(10))), plan.Stakers["0xaaa"])
	assert.Equal(t, new(big.Int).Mul(big.NewInt(875), new(big.Int).Quo(Precision, big.NewInt(10))), plan.Stakers["0xbbb"])
}

func TestDistributionPlanConservation(t *testing.T) {
	// Awkward amounts leave integer-division dust; the plan must never
	// exceed the escrowed reward.
	reward := big.NewInt(1001)
	positions := []domain.StakePosition{
		{Staker: "a", Amount: big.NewInt(3)},
		{Staker: "b", Amount: big.NewInt(3)},
		{Staker: "c", Amount: big.NewInt(1)},
	}

	plan, err := DistributionPlan(reward, positions, big.NewInt(7))
	require.NoError(t, err)
	assert.LessOrEqual(t, plan.Total().Cmp(reward), 0)
}

func TestDistributionPlanNoStakers(t *testing.T) {
	plan, err := DistributionPlan(units(10), nil, big.NewInt(0))
	require.NoError(t, err)
	assert.Empty(t, plan.Stakers)
	assert.LessOrEqual(t, plan.Total().Cmp(units(10)), 0)
}

func TestDistributionPlanNegativeReward(t *testing.T) {
	_, err := DistributionPlan(big.NewInt(-1), nil, nil)
	assert.Error(t, err)
}
