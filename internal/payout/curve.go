package payout

import (
	"math"
	"math/bits"

	"DiveHouse/internal/model"
)

// SurvivalProbability computes the chance, in parts-per-million, that the
// given dive succeeds. The curve decays linearly from the base by
// DecayPerDivePPM per dive and floors at MinSurvivalPPM. All arithmetic
// saturates, so any uint16 dive index (including 0) is safe.
func SurvivalProbability(p model.GameParams, dive uint16) uint32 {
	steps := uint32(dive)
	if steps > 0 {
		steps--
	}
	reduction, overflow := mulSat32(steps, p.DecayPerDivePPM)
	if overflow {
		return p.MinSurvivalPPM
	}
	prob := p.BaseSurvivalPPM
	if reduction >= prob {
		prob = 0
	} else {
		prob -= reduction
	}
	if prob < p.MinSurvivalPPM {
		prob = p.MinSurvivalPPM
	}
	return prob
}

// TreasureForDive computes the payout owed after surviving `dive` rounds.
// Dive 0 returns the bet unchanged. Growth applies num/den per dive with
// 128-bit intermediates; the result clamps at MaxPayoutForBet and the loop
// exits as soon as the cap is reached, so adversarially large bet/ratio/dive
// combinations cannot overflow or spin.
func TreasureForDive(p model.GameParams, bet uint64, dive uint16) uint64 {
	if dive == 0 || bet == 0 {
		return bet
	}
	maxPayout := MaxPayoutForBet(p, bet)
	num := uint64(p.TreasureMultiplierNum)
	den := uint64(p.TreasureMultiplierDen)

	result := bet
	for i := uint16(0); i < dive; i++ {
		hi, lo := bits.Mul64(result, num)
		if hi >= den {
			// quotient would exceed 64 bits
			return maxPayout
		}
		q, _ := bits.Div64(hi, lo, den)
		result = q
		if result >= maxPayout {
			return maxPayout
		}
	}
	return result
}

// MaxPayoutForBet is the reservation earmarked per session: the bet scaled
// by the payout multiplier, saturating at the uint64 ceiling.
func MaxPayoutForBet(p model.GameParams, bet uint64) uint64 {
	hi, lo := bits.Mul64(bet, uint64(p.MaxPayoutMultiplier))
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}

// MaxDivesForBet returns the smallest dive index at which the treasure curve
// reaches the payout cap, bounded above by MaxDives so it always terminates.
func MaxDivesForBet(p model.GameParams, bet uint64) uint16 {
	maxPayout := MaxPayoutForBet(p, bet)
	dive := uint16(1)
	for TreasureForDive(p, bet, dive) < maxPayout && dive < p.MaxDives {
		dive++
	}
	return dive
}

// mulSat32 multiplies two uint32 values, reporting overflow instead of
// wrapping.
func mulSat32(a, b uint32) (uint32, bool) {
	prod := uint64(a) * uint64(b)
	if prod > math.MaxUint32 {
		return math.MaxUint32, true
	}
	return uint32(prod), false
}
