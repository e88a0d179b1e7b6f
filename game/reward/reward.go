package reward

import "errors"

// Reward is the currency/XP triple granted by a claim.
type Reward struct {
	VCoin int `json:"vcoin"`
	Ruby  int `json:"ruby"`
	XP    int `json:"xp"`
}

// IsZero reports whether the reward grants nothing.
func (r Reward) IsZero() bool {
	return r.VCoin == 0 && r.Ruby == 0 && r.XP == 0
}

// Failure taxonomy shared by every claim path. REST handlers map these to
// status codes; anything else is a remote/store failure.
var (
	ErrNotFound        = errors.New("reward: not found")
	ErrNotCompleted    = errors.New("reward: quest not completed")
	ErrAlreadyClaimed  = errors.New("reward: already claimed")
	ErrNotEligible     = errors.New("reward: not eligible")
	ErrNotReady        = errors.New("reward: reward table not ready")
	ErrUnauthenticated = errors.New("reward: no owner identity")
)
