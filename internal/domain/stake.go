package domain

import (
	"math/big"
	"time"
)

// StakePosition tracks one staker's collateral in one pool. Amount never
// goes negative; RewardDebt records reward already paid out so a later
// claim cannot double-count.
type StakePosition struct {
	Pool       string
	Staker     string
	Amount     *big.Int
	RewardDebt *big.Int
	UpdatedAt  time.Time
}

// PoolState is the on-chain view of a ticket's collateral pool. Totals are
// always read back from the ledger, never synthesized locally.
type PoolState struct {
	Ref         string
	TotalStaked *big.Int
	RewardRate  *big.Int
	RewardPaid  *big.Int
	BlockRef    string
	BlockHeight uint64
}
