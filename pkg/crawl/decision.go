package crawl

import (
	"net/http"

	"github.com/aesuli/amadown2py/pkg/signals"
)

// Pacing constants, in seconds.
const (
	// RateLimitPenalty is added to the pause after a 503.
	RateLimitPenalty = 2.0

	// ChallengePenalty is added when a challenge page is tolerated.
	ChallengePenalty = 2.0

	// ReliefThreshold is the pause from which a success relaxes pacing.
	ReliefThreshold = 2.0

	// ReliefStep is subtracted from the pause after a captured page.
	ReliefStep = 1.0
)

// ReviewsPerPage estimates the reviews on one page for the review budget.
const ReviewsPerPage = 10

// Action tells the controller what to do with the current page.
type Action int

const (
	// Continue captures the page and moves on.
	Continue Action = iota

	// RetrySamePage fetches the same page again.
	RetrySamePage

	// StopTarget ends the current identifier.
	StopTarget
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case Continue:
		return "continue"
	case RetrySamePage:
		return "retry_same_page"
	case StopTarget:
		return "stop_target"
	default:
		return "unknown"
	}
}

// PauseOp is how a decision changes the pacing delay.
type PauseOp int

const (
	// PauseKeep leaves the delay unchanged.
	PauseKeep PauseOp = iota
	// PauseAdd adds Delta seconds.
	PauseAdd
	// PauseDouble doubles the delay.
	PauseDouble
)

// PauseChange is a pacing adjustment.
type PauseChange struct {
	Op    PauseOp
	Delta float64
}

// Apply returns the adjusted pause.
func (c PauseChange) Apply(pause float64) float64 {
	switch c.Op {
	case PauseAdd:
		return pause + c.Delta
	case PauseDouble:
		return pause * 2
	default:
		return pause
	}
}

// Decision reasons, also used as metric labels.
const (
	ReasonCaptured           = "captured"
	ReasonChallengeTolerated = "challenge_tolerated"
	ReasonChallenge          = "challenge"
	ReasonRateLimited        = "rate_limited"
	ReasonFetchFailed        = "fetch_failed"
)

// Decision is the outcome of Decide.
type Decision struct {
	Action Action
	Pause  PauseChange
	Reason string
}

// Observation is what the controller learned from one fetch.
type Observation struct {
	StatusCode int
	HasContent bool
	Signals    signals.Page
}

// Decide maps a fetch observation to the next step. strictCaptcha retries
// every challenge page; otherwise only a challenge on the first page is
// retried, later ones are kept with a pacing penalty.
func Decide(obs Observation, strictCaptcha, firstPage bool) Decision {
	if !obs.HasContent || obs.StatusCode != http.StatusOK {
		if obs.StatusCode == http.StatusServiceUnavailable {
			return Decision{
				Action: RetrySamePage,
				Pause:  PauseChange{Op: PauseAdd, Delta: RateLimitPenalty},
				Reason: ReasonRateLimited,
			}
		}
		return Decision{Action: StopTarget, Reason: ReasonFetchFailed}
	}

	if obs.Signals.Challenge {
		if strictCaptcha || firstPage {
			return Decision{
				Action: RetrySamePage,
				Pause:  PauseChange{Op: PauseDouble},
				Reason: ReasonChallenge,
			}
		}
		return Decision{
			Action: Continue,
			Pause:  PauseChange{Op: PauseAdd, Delta: ChallengePenalty},
			Reason: ReasonChallengeTolerated,
		}
	}

	return Decision{Action: Continue, Reason: ReasonCaptured}
}
