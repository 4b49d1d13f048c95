package memory

import (
	"math"
	"time"
)

// DecayFactor returns 2^(-elapsed/halfLife). Non-positive elapsed time (or a
// non-positive half-life) yields 1, so a unit never gains importance by
// clock skew.
func DecayFactor(elapsed, halfLife time.Duration) float64 {
	if elapsed <= 0 || halfLife <= 0 {
		return 1
	}
	return math.Exp2(-elapsed.Seconds() / halfLife.Seconds())
}

// AccessRate is an exponentially weighted event-rate estimate used to
// predict how often a unit will be accessed.
type AccessRate struct {
	// Rate is the estimate at Last.
	Rate float64 `json:"rate"`

	// Last is the time of the last observed access.
	Last time.Time `json:"last"`
}

// At returns the predicted rate at now for time constant tau.
func (r AccessRate) At(now time.Time, tau time.Duration) float64 {
	if r.Last.IsZero() || tau <= 0 {
		return r.Rate
	}
	dt := now.Sub(r.Last)
	if dt <= 0 {
		return r.Rate
	}
	return r.Rate * math.Exp(-dt.Seconds()/tau.Seconds())
}

// Observe records one access at now.
func (r *AccessRate) Observe(now time.Time, tau time.Duration) {
	r.Rate = r.At(now, tau) + 1
	if now.After(r.Last) {
		r.Last = now
	}
}
