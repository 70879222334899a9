// Package entitlement decides whether a user may download right now.
package entitlement

import "time"

// DefaultTrialPeriod is the free-access window that starts at first contact.
const DefaultTrialPeriod = 24 * time.Hour

type State int

const (
	Expired State = iota
	Trial
	Pro
)

func (s State) String() string {
	switch s {
	case Pro:
		return "pro"
	case Trial:
		return "trial"
	default:
		return "expired"
	}
}

// Active reports whether the state grants download access.
func (s State) Active() bool {
	return s == Pro || s == Trial
}

// Subject carries the stored timestamps the evaluation depends on.
type Subject struct {
	IsPro      bool
	ProEnd     *time.Time
	TrialStart time.Time
}

// Evaluate returns exactly one state for the subject at now.
func Evaluate(s Subject, now time.Time) State {
	return EvaluateWithTrial(s, now, DefaultTrialPeriod)
}

func EvaluateWithTrial(s Subject, now time.Time, trial time.Duration) State {
	if s.IsPro && (s.ProEnd == nil || s.ProEnd.After(now)) {
		return Pro
	}
	if now.Before(s.TrialStart.Add(trial)) {
		return Trial
	}
	return Expired
}

func TrialEndsAt(trialStart time.Time, trial time.Duration) time.Time {
	if trial <= 0 {
		trial = DefaultTrialPeriod
	}
	return trialStart.Add(trial)
}
