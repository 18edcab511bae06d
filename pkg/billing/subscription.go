package billing

import (
	"time"

	"github.com/google/uuid"
)

// Subscription is the local mirror of a processor subscription.
// There is at most one record per owner; it is updated in place and never
// deleted, so ended subscriptions remain queryable.
type Subscription struct {
	ID          uuid.UUID
	OwnerID     string
	Plan        string // local plan key requested by the caller
	PlanID      string // processor subscription instance id
	PlanName    string
	Quantity    int64
	TrialEndsAt *time.Time
	EndsAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsSubscribed reports whether the subscription is usable right now.
func (s *Subscription) IsSubscribed(plan string) bool {
	return s.IsSubscribedAt(time.Now().UTC(), plan)
}

// IsSubscribedAt reports whether the record is not ended at now.
// Empty plan matches any plan.
func (s *Subscription) IsSubscribedAt(now time.Time, plan string) bool {
	if s == nil || !s.matches(plan) {
		return false
	}
	return !s.endedAt(now)
}

// OnTrial reports whether a trial is running right now.
func (s *Subscription) OnTrial(plan string) bool {
	return s.OnTrialAt(time.Now().UTC(), plan)
}

// OnTrialAt reports whether trial_ends_at is still in the future at now.
// An ended subscription is never on trial, even if its trial date is ahead.
func (s *Subscription) OnTrialAt(now time.Time, plan string) bool {
	if s == nil || !s.matches(plan) {
		return false
	}
	return s.trialActiveAt(now) && !s.endedAt(now)
}

// IsCanceled reports whether cancellation is scheduled but not yet effective.
func (s *Subscription) IsCanceled() bool {
	return s.IsCanceledAt(time.Now().UTC())
}

// IsCanceledAt reports the canceled-pending state: no running trial and an
// ends_at still in the future. A lapsed trial date counts as cleared.
func (s *Subscription) IsCanceledAt(now time.Time) bool {
	if s == nil || s.EndsAt == nil {
		return false
	}
	return !s.trialActiveAt(now) && s.EndsAt.After(now)
}

// WasSubscribed reports whether the subscription has ended.
func (s *Subscription) WasSubscribed(plan string) bool {
	return s.WasSubscribedAt(time.Now().UTC(), plan)
}

// WasSubscribedAt reports whether ends_at is set and not after now.
func (s *Subscription) WasSubscribedAt(now time.Time, plan string) bool {
	if s == nil || !s.matches(plan) {
		return false
	}
	return s.endedAt(now)
}

// TrialDaysRemainingAt returns whole days left in the trial, rounded up.
// Returns 0 when no trial is running.
func (s *Subscription) TrialDaysRemainingAt(now time.Time) int {
	if !s.OnTrialAt(now, "") {
		return 0
	}
	remaining := s.TrialEndsAt.Sub(now)
	days := int(remaining.Hours() / 24)
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// StateAt classifies the record into a lifecycle state.
func (s *Subscription) StateAt(now time.Time) State {
	switch {
	case s == nil:
		return StateNone
	case s.endedAt(now):
		return StateEnded
	case s.EndsAt != nil:
		return StateCancelPending
	case s.trialActiveAt(now):
		return StateTrialing
	default:
		return StateActive
	}
}

func (s *Subscription) matches(plan string) bool {
	return plan == "" || s.Plan == plan
}

func (s *Subscription) endedAt(now time.Time) bool {
	return s.EndsAt != nil && !s.EndsAt.After(now)
}

func (s *Subscription) trialActiveAt(now time.Time) bool {
	return s.TrialEndsAt != nil && s.TrialEndsAt.After(now)
}

func (s *Subscription) clone() *Subscription {
	if s == nil {
		return nil
	}
	c := *s
	c.TrialEndsAt = cloneTime(s.TrialEndsAt)
	c.EndsAt = cloneTime(s.EndsAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Status is a point-in-time snapshot of the evaluator predicates for one owner.
type Status struct {
	OwnerID       string     `json:"owner_id"`
	State         State      `json:"state"`
	Plan          string     `json:"plan,omitempty"`
	PlanName      string     `json:"plan_name,omitempty"`
	Subscribed    bool       `json:"subscribed"`
	OnTrial       bool       `json:"on_trial"`
	Canceled      bool       `json:"canceled"`
	WasSubscribed bool       `json:"was_subscribed"`
	TrialDaysLeft int        `json:"trial_days_left"`
	TrialEndsAt   *time.Time `json:"trial_ends_at,omitempty"`
	EndsAt        *time.Time `json:"ends_at,omitempty"`
}

// StatusAt builds a Status from the record. A nil record yields StateNone.
func StatusAt(ownerID string, s *Subscription, now time.Time) Status {
	st := Status{
		OwnerID:       ownerID,
		State:         s.StateAt(now),
		Subscribed:    s.IsSubscribedAt(now, ""),
		OnTrial:       s.OnTrialAt(now, ""),
		Canceled:      s.IsCanceledAt(now),
		WasSubscribed: s.WasSubscribedAt(now, ""),
		TrialDaysLeft: s.TrialDaysRemainingAt(now),
	}
	if s != nil {
		st.Plan = s.Plan
		st.PlanName = s.PlanName
		st.TrialEndsAt = cloneTime(s.TrialEndsAt)
		st.EndsAt = cloneTime(s.EndsAt)
	}
	return st
}
