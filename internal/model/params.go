package model

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is returned when game parameters fail validation.
var ErrInvalidParams = errors.New("invalid game parameters")

// GameParams holds the payout-curve and bet-limit parameters for one
// deployment. Shared read-only by every session; changed only through the
// admin update path, which re-validates the whole struct.
type GameParams struct {
	BaseSurvivalPPM       uint32 `yaml:"base_survival_ppm" json:"base_survival_ppm"`
	DecayPerDivePPM       uint32 `yaml:"decay_per_dive_ppm" json:"decay_per_dive_ppm"`
	MinSurvivalPPM        uint32 `yaml:"min_survival_ppm" json:"min_survival_ppm"`
	TreasureMultiplierNum uint16 `yaml:"treasure_multiplier_num" json:"treasure_multiplier_num"`
	TreasureMultiplierDen uint16 `yaml:"treasure_multiplier_den" json:"treasure_multiplier_den"`
	MaxPayoutMultiplier   uint16 `yaml:"max_payout_multiplier" json:"max_payout_multiplier"`
	MaxDives              uint16 `yaml:"max_dives" json:"max_dives"`
	MinBet                uint64 `yaml:"min_bet" json:"min_bet"`
	MaxBet                uint64 `yaml:"max_bet" json:"max_bet"` // 0 means unlimited
}

// DefaultParams returns the stock curve: 99% survival at dive 1 decaying
// 0.5% per dive to a 10% floor, 1.1x treasure growth capped at 100x the bet.
func DefaultParams() GameParams {
	return GameParams{
		BaseSurvivalPPM:       990_000,
		DecayPerDivePPM:       5_000,
		MinSurvivalPPM:        100_000,
		TreasureMultiplierNum: 11,
		TreasureMultiplierDen: 10,
		MaxPayoutMultiplier:   100,
		MaxDives:              50,
		MinBet:                100_000,
		MaxBet:                0,
	}
}

// Validate checks every parameter constraint. It is the single source of
// truth for parameter validation; partial updates must call it after
// applying their fields.
func (p GameParams) Validate() error {
	if p.TreasureMultiplierDen == 0 {
		return fmt.Errorf("treasure_multiplier_den must be > 0: %w", ErrInvalidParams)
	}
	if p.TreasureMultiplierNum == 0 {
		return fmt.Errorf("treasure_multiplier_num must be > 0: %w", ErrInvalidParams)
	}
	if p.MaxPayoutMultiplier == 0 {
		return fmt.Errorf("max_payout_multiplier must be > 0: %w", ErrInvalidParams)
	}
	if p.BaseSurvivalPPM > 1_000_000 {
		return fmt.Errorf("base_survival_ppm exceeds 100%%: %w", ErrInvalidParams)
	}
	if p.MinSurvivalPPM > p.BaseSurvivalPPM {
		return fmt.Errorf("min_survival_ppm exceeds base: %w", ErrInvalidParams)
	}
	if p.DecayPerDivePPM > p.BaseSurvivalPPM {
		return fmt.Errorf("decay_per_dive_ppm exceeds base: %w", ErrInvalidParams)
	}
	if p.MaxDives == 0 {
		return fmt.Errorf("max_dives must be > 0: %w", ErrInvalidParams)
	}
	if p.MaxBet > 0 && p.MinBet > p.MaxBet {
		return fmt.Errorf("min_bet exceeds max_bet: %w", ErrInvalidParams)
	}
	return nil
}

// ParamsUpdate carries an admin partial update; nil fields are left as-is.
type ParamsUpdate struct {
	BaseSurvivalPPM       *uint32 `json:"base_survival_ppm,omitempty"`
	DecayPerDivePPM       *uint32 `json:"decay_per_dive_ppm,omitempty"`
	MinSurvivalPPM        *uint32 `json:"min_survival_ppm,omitempty"`
	TreasureMultiplierNum *uint16 `json:"treasure_multiplier_num,omitempty"`
	TreasureMultiplierDen *uint16 `json:"treasure_multiplier_den,omitempty"`
	MaxPayoutMultiplier   *uint16 `json:"max_payout_multiplier,omitempty"`
	MaxDives              *uint16 `json:"max_dives,omitempty"`
	MinBet                *uint64 `json:"min_bet,omitempty"`
	MaxBet                *uint64 `json:"max_bet,omitempty"`
}

// Apply merges the present fields onto a copy of p and validates the result.
// Validation is never incremental: the merged struct passes the full
// Validate pass or the update is rejected whole.
func (u ParamsUpdate) Apply(p GameParams) (GameParams, error) {
	out := p
	if u.BaseSurvivalPPM != nil {
		out.BaseSurvivalPPM = *u.BaseSurvivalPPM
	}
	if u.DecayPerDivePPM != nil {
		out.DecayPerDivePPM = *u.DecayPerDivePPM
	}
	if u.MinSurvivalPPM != nil {
		out.MinSurvivalPPM = *u.MinSurvivalPPM
	}
	if u.TreasureMultiplierNum != nil {
		out.TreasureMultiplierNum = *u.TreasureMultiplierNum
	}
	if u.TreasureMultiplierDen != nil {
		out.TreasureMultiplierDen = *u.TreasureMultiplierDen
	}
	if u.MaxPayoutMultiplier != nil {
		out.MaxPayoutMultiplier = *u.MaxPayoutMultiplier
	}
	if u.MaxDives != nil {
		out.MaxDives = *u.MaxDives
	}
	if u.MinBet != nil {
		out.MinBet = *u.MinBet
	}
	if u.MaxBet != nil {
		out.MaxBet = *u.MaxBet
	}
	if err := out.Validate(); err != nil {
		return GameParams{}, err
	}
	return out, nil
}
