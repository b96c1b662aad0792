// Package accountant holds the pure stake arithmetic. All amounts are
// fixed-point integers scaled by Precision (10^18); nothing in this package
// performs I/O or touches floating point.
package accountant

import (
	"fmt"
	"math/big"

	"github.com/spec-kit/incident-coordinator/internal/domain"
)

// Precision is the fixed-point scale shared with the on-chain contracts.
var Precision = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// collateralUnits maps severity tiers to whole collateral units.
var collateralUnits = map[domain.Severity]int64{
	domain.SeverityLow:      100,
	domain.SeverityMedium:   250,
	domain.SeverityHigh:     500,
	domain.SeverityCritical: 1000,
}

// Distribution share of the pool reward, in basis points. The staker pool
// takes the remainder.
const (
	analystShareBPS   = 5000
	certifierShareBPS = 1500
	bpsDenominator    = 10000
)

// RequiredCollateral returns the collateral a ticket of the given severity
// must accumulate before analysis can begin. Unknown severities price at the
// critical tier.
func RequiredCollateral(severity domain.Severity) *big.Int {
	units, ok := collateralUnits[severity]
	if !ok {
		units = collateralUnits[domain.SeverityCritical]
	}
	return new(big.Int).Mul(big.NewInt(units), Precision)
}

// ComputeShare returns the staker's fraction of the pool scaled by
// Precision (1e18 == 100%). An empty pool yields zero, never a division
// error.
func ComputeShare(totalStaked, stakerAmount *big.Int) *big.Int {
	if totalStaked == nil || totalStaked.Sign() <= 0 || stakerAmount == nil || stakerAmount.Sign() <= 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(stakerAmount, Precision)
	return share.Quo(share, totalStaked)
}

// ComputeReward returns the staker's pending reward:
// rewardRate * blocksElapsed * share - rewardDebt, floored at zero.
func ComputeReward(rewardRate *big.Int, blocksElapsed uint64, share, rewardDebt *big.Int) *big.Int {
	if rewardRate == nil || rewardRate.Sign() <= 0 || share == nil || share.Sign() <= 0 {
		return big.NewInt(0)
	}
	accrued := new(big.Int).Mul(rewardRate, new(big.Int).SetUint64(blocksElapsed))
	accrued.Mul(accrued, share)
	accrued.Quo(accrued, Precision)
	if rewardDebt != nil {
		accrued.Sub(accrued, rewardDebt)
	}
	if accrued.Sign() < 0 {
		return big.NewInt(0)
	}
	return accrued
}

// Distribution is a conservation-checked split of a ticket's escrowed
// reward. Integer division dust stays in the pool.
type Distribution struct {
	Analyst   *big.Int
	Certifier *big.Int
	Stakers   map[string]*big.Int
}

// Total sums every leg of the distribution.
func (d *Distribution) Total() *big.Int {
	total := new(big.Int).Add(d.Analyst, d.Certifier)
	for _, amount := range d.Stakers {
		total.Add(total, amount)
	}
	return total
}

// DistributionPlan splits rewardAmount between analyst, certifier and
// stakers pro rata. It guarantees Total() <= rewardAmount; violation of
// that bound is an invariant failure reported as an error.
func DistributionPlan(rewardAmount *big.Int, positions []domain.StakePosition, totalStaked *big.Int) (*Distribution, error) {
	if rewardAmount == nil || rewardAmount.Sign() < 0 {
		return nil, fmt.Errorf("reward amount must be non-negative")
	}

	plan := &Distribution{
		Analyst:   shareOf(rewardAmount, analystShareBPS),
		Certifier: shareOf(rewardAmount, certifierShareBPS),
		Stakers:   make(map[string]*big.Int, len(positions)),
	}

	stakerBudget := new(big.Int).Sub(rewardAmount, plan.Analyst)
	stakerBudget.Sub(stakerBudget, plan.Certifier)

	if totalStaked != nil && totalStaked.Sign() > 0 {
		for i := range positions {
			cut := new(big.Int).Mul(stakerBudget, positions[i].Amount)
			cut.Quo(cut, totalStaked)
			if cut.Sign() > 0 {
				plan.Stakers[positions[i].Staker] = cut
			}
		}
	}

	if plan.Total().Cmp(rewardAmount) > 0 {
		return nil, fmt.Errorf("distribution %s exceeds reward %s", plan.Total(), rewardAmount)
	}
	return plan, nil
}

func shareOf(amount *big.Int, bps int64) *big.Int {
	share := new(big.Int).Mul(amount, big.NewInt(bps))
	return share.Quo(share, big.NewInt(bpsDenominator))
}
