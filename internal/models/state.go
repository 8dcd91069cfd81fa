package models

// PageState is what a single poll of the wizard page observed. It is never cached.
type PageState int

const (
	StateUnknown PageState = iota
	StateLoading
	StateReadyStep1
	StateReadyStep2
	StateErrorShown
)

func (s PageState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReadyStep1:
		return "ready_step1"
	case StateReadyStep2:
		return "ready_step2"
	case StateErrorShown:
		return "error_shown"
	default:
		return "unknown"
	}
}

// Classification is the Step Classifier's answer after a submission.
type Classification int

const (
	ClassNone Classification = iota
	ClassStep2
	ClassError
)

func (c Classification) String() string {
	switch c {
	case ClassStep2:
		return "step2"
	case ClassError:
		return "error"
	default:
		return "none"
	}
}

// Outcome tags one round of the scheduler.
type Outcome int

const (
	OutcomeException Outcome = iota
	OutcomeBooked
	OutcomeNoMatch
	OutcomeCaptchaFailed
	OutcomeSubmitFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBooked:
		return "booked"
	case OutcomeNoMatch:
		return "no_match"
	case OutcomeCaptchaFailed:
		return "captcha_failed"
	case OutcomeSubmitFailed:
		return "submit_failed"
	default:
		return "exception"
	}
}

// AttemptResult is produced once per round and consumed by the scheduler.
type AttemptResult struct {
	Outcome      Outcome
	Cause        string
	Confirmation string // ticket summary HTML, only on booking
	Offers       []TrainOffer
	Err          error
}

// Terminal reports whether the outcome ends the scheduler.
func (r AttemptResult) Terminal() bool {
	return r.Outcome == OutcomeBooked
}
