package goIdent

import "time"

// lockoutPolicy implements failed-login counting and the timed lockout
// window. State lives on the User record so it survives restarts and is
// shared by every engine instance pointing at the same store; the policy only
// mutates in-memory fields and leaves persistence to the caller.
type lockoutPolicy struct {
	config LockoutConfig
}

func newLockoutPolicy(cfg LockoutConfig) *lockoutPolicy {
	return &lockoutPolicy{config: cfg}
}

// isLocked reports whether the lockout window is still open at now.
func (p *lockoutPolicy) isLocked(u *User, now time.Time) bool {
	return u != nil && !u.LockoutUntil.IsZero() && now.Before(u.LockoutUntil)
}

// recordFailure increments the consecutive-failure counter and opens the
// lockout window when the threshold is reached. Returns true when this
// failure triggered the lockout.
func (p *lockoutPolicy) recordFailure(u *User, now time.Time) bool {
	if u == nil {
		return false
	}
	u.FailedLogins++
	if u.FailedLogins >= p.config.Threshold {
		u.LockoutUntil = now.Add(p.config.Duration)
		return true
	}
	return false
}

// recordSuccess resets the counter and clears any lockout. Called on every
// successful password verification, which also serves as the immediate unlock
// once the window has elapsed.
func (p *lockoutPolicy) recordSuccess(u *User) {
	if u == nil {
		return
	}
	u.FailedLogins = 0
	u.LockoutUntil = time.Time{}
}
