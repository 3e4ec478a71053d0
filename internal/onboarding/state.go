package onboarding

import "fmt"

// State identifies a step in the email connection flow.
type State string

// State constants define the email connection steps.
const (
	// StateNotStarted means no connection attempt has been made.
	StateNotStarted State = "not_started"
	// StateTryingSilentOAuth means a background OAuth grant is being attempted.
	StateTryingSilentOAuth State = "trying_silent_oauth"
	// StateSilentOAuthFailed means the background attempt did not produce a grant.
	StateSilentOAuthFailed State = "silent_oauth_failed"
	// StateGuidedSMTPPending means the rep is entering SMTP settings.
	StateGuidedSMTPPending State = "guided_smtp_pending"
	// StateCredentialsTested means a connection test is in flight.
	StateCredentialsTested State = "credentials_tested"
	// StateVerified means the account is connected and usable.
	StateVerified State = "verified"
	// StateManualFallback means the rep gave up on automated setup.
	StateManualFallback State = "manual_fallback"
)

var transitions = map[State][]State{
	StateNotStarted:        {StateTryingSilentOAuth, StateManualFallback},
	StateTryingSilentOAuth: {StateVerified, StateSilentOAuthFailed, StateManualFallback},
	StateSilentOAuthFailed: {StateGuidedSMTPPending, StateManualFallback},
	StateGuidedSMTPPending: {StateCredentialsTested, StateManualFallback},
	StateCredentialsTested: {StateVerified, StateGuidedSMTPPending, StateManualFallback},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Session tracks one rep's walk through the connection flow.
type Session struct {
	Current State   `json:"state"`   // Current step.
	History []State `json:"history"` // Visited steps in order, including the current one.
}

// NewSession starts a session at StateNotStarted.
func NewSession() *Session {
	return &Session{Current: StateNotStarted, History: []State{StateNotStarted}}
}

// Advance moves the session to the next state, rejecting illegal transitions.
func (s *Session) Advance(to State) error {
	if !CanTransition(s.Current, to) {
		return fmt.Errorf("onboarding: illegal transition %s -> %s", s.Current, to)
	}
	s.Current = to
	s.History = append(s.History, to)
	return nil
}
