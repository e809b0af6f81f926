package roll

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"DiveHouse/internal/model"
	"DiveHouse/internal/payout"
)

// Outcome is the result of one resolved round.
type Outcome int

const (
	Lose Outcome = iota
	Survive
)

func (o Outcome) String() string {
	if o == Survive {
		return "survive"
	}
	return "lose"
}

// Roll derives a deterministic scalar in [0, 1_000_000) from the entropy
// value and dive index: Keccak-256(entropy || dive LE), first 8 hash bytes
// little-endian, reduced modulo 1e6. Distinct dive indices give independent
// rolls from the same entropy.
func Roll(entropy [32]byte, dive uint16) uint32 {
	h := sha3.NewLegacyKeccak256()
	h.Write(entropy[:])
	var diveBytes [2]byte
	binary.LittleEndian.PutUint16(diveBytes[:], dive)
	h.Write(diveBytes[:])

	sum := h.Sum(nil)
	r := binary.LittleEndian.Uint64(sum[:8])
	return uint32(r % 1_000_000)
}

// Resolve decides survive/lose for one round: survive iff the roll lands
// below the survival probability for this dive.
func Resolve(entropy [32]byte, dive uint16, p model.GameParams) Outcome {
	if Roll(entropy, dive) < payout.SurvivalProbability(p, dive) {
		return Survive
	}
	return Lose
}
