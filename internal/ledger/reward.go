package ledger

import (
	"math/rand/v2"
)

// RewardSource draws the payout of a single spin.
type RewardSource interface {
	Draw() int64
}

type Payout struct {
	Amount int64
	Weight float64
}

// DefaultPayouts is the classic payout table: half of all spins pay nothing.
var DefaultPayouts = []Payout{
	{Amount: 0, Weight: 0.50},
	{Amount: 1000, Weight: 0.30},
	{Amount: 2000, Weight: 0.15},
	{Amount: 5000, Weight: 0.04},
	{Amount: 10000, Weight: 0.01},
}

// WeightedRewards draws from a discrete payout table.
type WeightedRewards struct {
	payouts []Payout
	total   float64
	float64 func() float64
}

func NewWeightedRewards(payouts []Payout) *WeightedRewards {
	w := &WeightedRewards{payouts: payouts, float64: rand.Float64}
	for _, p := range payouts {
		w.total += p.Weight
	}
	return w
}

func (w *WeightedRewards) Draw() int64 {
	if len(w.payouts) == 0 {
		return 0
	}
	r := w.float64() * w.total
	for _, p := range w.payouts {
		if r < p.Weight {
			return p.Amount
		}
		r -= p.Weight
	}
	return w.payouts[len(w.payouts)-1].Amount
}

// UniformRewards draws uniformly from [Min, Max].
type UniformRewards struct {
	Min, Max int64
	int64n   func(int64) int64
}

func NewUniformRewards(min, max int64) *UniformRewards {
	return &UniformRewards{Min: min, Max: max, int64n: rand.Int64N}
}

func (u *UniformRewards) Draw() int64 {
	if u.Max <= u.Min {
		return u.Min
	}
	return u.Min + u.int64n(u.Max-u.Min+1)
}
