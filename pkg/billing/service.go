package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/billable/pkg/logger"
)

// Service defines the public interface for subscription billing.
type Service interface {
	// Lifecycle mutations, serialized per owner
	Subscribe(ctx context.Context, owner *Owner, plan, token string, opts *SubscribeOptions) (bool, error)
	Cancel(ctx context.Context, owner *Owner, now bool) (bool, error)
	Resume(ctx context.Context, owner *Owner) error
	Swap(ctx context.Context, owner *Owner, plan string) (bool, error)

	// Payments
	Charge(ctx context.Context, owner *Owner, amount int64, opts *ChargeOptions) (bool, error)
	Card(ctx context.Context, owner *Owner, token string) (bool, error)
	CreateCustomer(ctx context.Context, owner *Owner, token string) (string, error)

	// Local status queries, no processor calls
	Plan(ctx context.Context, ownerID string) (string, error)
	Subscription(ctx context.Context, ownerID string) (*Subscription, error)
	Status(ctx context.Context, ownerID string) (Status, error)
	IsSubscribed(ctx context.Context, ownerID, plan string) bool
	OnTrial(ctx context.Context, ownerID, plan string) bool
	IsCanceled(ctx context.Context, ownerID string) bool
	WasSubscribed(ctx context.Context, ownerID, plan string) bool

	// Processor push
	EndSubscription(ctx context.Context, customerID, subscriptionID string) (Disposition, error)
	SyncSubscription(ctx context.Context, customerID string, sub *ProcessorSubscription) (Disposition, error)
	AdoptSubscription(ctx context.Context, ownerID, customerID string, sub *ProcessorSubscription) (Disposition, error)
	HandleEvent(ctx context.Context, ev *WebhookEvent) (Disposition, error)
}

type service struct {
	processor Processor
	store     Store
	owners    OwnerStore

	log         *slog.Logger
	now         func() time.Time
	locker      Locker
	lockTimeout time.Duration
	retry       RetryPolicy
	currency    string
	catalog     *Catalog
	notifier    Notifier
	observer    Observer
}

// NewService creates a new Service with the given dependencies.
// Panics if processor, store or owners is nil.
func NewService(processor Processor, store Store, owners OwnerStore, opts ...ServiceOption) Service {
	if processor == nil {
		panic("billing: Processor is required")
	}
	if store == nil {
		panic("billing: Store is required")
	}
	if owners == nil {
		panic("billing: OwnerStore is required")
	}

	s := &service{
		processor:   processor,
		store:       store,
		owners:      owners,
		log:         slog.Default(),
		now:         func() time.Time { return time.Now().UTC() },
		locker:      NewMemoryLocker(),
		lockTimeout: 10 * time.Second,
		retry:       DefaultRetryPolicy,
		currency:    "usd",
		notifier:    nopNotifier{},
		observer:    nopObserver{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Subscribe subscribes the owner to plan, creating the processor customer first if needed.
// Subscribing to the plan the owner already holds is a no-op success.
// Returns false without error when the processor does not know the customer.
func (s *service) Subscribe(ctx context.Context, owner *Owner, plan, token string, opts *SubscribeOptions) (ok bool, err error) {
	defer s.observe(OpSubscribe, time.Now(), &ok, &err)

	if err := validateOwner(owner); err != nil {
		return false, err
	}
	if plan == "" {
		return false, ErrPlanRequired
	}
	o := opts.orDefault()
	if !o.coupon.IsZero() && o.coupon.Kind() != CouponKindCode {
		return false, ErrInvalidCoupon
	}

	unlock, err := s.lockOwner(ctx, owner.ID)
	if err != nil {
		return false, err
	}
	defer unlock()

	if owner.CustomerID == "" {
		if _, err := s.createCustomer(ctx, owner, token); err != nil {
			return false, err
		}
	}

	prev, err := s.loadRecord(ctx, owner.ID)
	if err != nil {
		return false, err
	}
	if prev.IsSubscribedAt(s.now(), plan) {
		s.log.DebugContext(ctx, "owner already subscribed to plan",
			logger.OwnerID(owner.ID), logger.Plan(plan))
		return true, nil
	}

	params := SubscriptionParams{
		CustomerID:     owner.CustomerID,
		Plan:           s.catalog.Resolve(plan),
		Quantity:       o.quantity,
		Coupon:         o.coupon.Code(),
		IdempotencyKey: idempotencyKey(ctx, OpSubscribe),
	}
	trialDays := o.trialDays
	if !o.trialSet {
		if p, found := s.catalog.Lookup(plan); found {
			trialDays = p.TrialDays
		}
	}
	switch {
	case o.skipTrial:
		params.TrialEndNow = true
	case trialDays > 0:
		params.TrialPeriodDays = int64(trialDays)
	}

	sub, err := withRetry(ctx, s.retry, func(ctx context.Context) (*ProcessorSubscription, error) {
		return s.processor.CreateSubscription(ctx, params)
	})
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			s.log.WarnContext(ctx, "processor customer not found on subscribe",
				logger.OwnerID(owner.ID), logger.CustomerID(owner.CustomerID))
			return false, nil
		}
		return false, processorError(err)
	}

	owner.SubscriptionID = sub.ID
	if err := s.owners.SaveOwner(ctx, owner); err != nil {
		return false, errors.Join(ErrFailedToSaveOwner, err)
	}

	var replaced string
	if prev.IsSubscribedAt(s.now(), "") && prev.PlanID != "" && prev.PlanID != sub.ID {
		replaced = prev.PlanID
	}

	next := s.nextRecord(owner.ID, prev)
	next.Plan = plan
	reconcile(next, sub, s.now())
	if o.quantity > 0 && sub.FirstItem().Quantity == 0 {
		next.Quantity = o.quantity
	}
	if err := s.commit(ctx, prev, next, EventSubscribe); err != nil {
		return false, err
	}
	if replaced != "" {
		s.cancelReplaced(ctx, owner, replaced)
	}

	s.log.InfoContext(ctx, "owner subscribed",
		logger.OwnerID(owner.ID),
		logger.Plan(plan),
		logger.SubscriptionID(sub.ID))
	s.notify(ctx, Notice{
		Kind:        NoticeSubscriptionStarted,
		Owner:       *owner,
		Plan:        next.Plan,
		PlanName:    next.PlanName,
		TrialEndsAt: cloneTime(next.TrialEndsAt),
	})

	return true, nil
}

// cancelReplaced ends a processor subscription superseded by a new one for the same owner.
// Failures are logged; the owner's record already points at the new subscription.
func (s *service) cancelReplaced(ctx context.Context, owner *Owner, subscriptionID string) {
	_, err := s.processor.DeleteSubscription(ctx, subscriptionID, false)
	switch {
	case err == nil:
		s.log.InfoContext(ctx, "replaced subscription canceled",
			logger.OwnerID(owner.ID), logger.SubscriptionID(subscriptionID))
	case errors.Is(err, ErrNoActiveSubscription):
	default:
		s.log.ErrorContext(ctx, "failed to cancel replaced subscription",
			logger.OwnerID(owner.ID), logger.SubscriptionID(subscriptionID), logger.Error(err))
	}
}

// Cancel cancels the owner's subscription, immediately when now is true,
// otherwise at the end of the current billing period.
// Returns false when there is no active subscription to cancel.
func (s *service) Cancel(ctx context.Context, owner *Owner, now bool) (ok bool, err error) {
	defer s.observe(OpCancel, time.Now(), &ok, &err)

	if err := validateOwner(owner); err != nil {
		return false, err
	}

	unlock, err := s.lockOwner(ctx, owner.ID)
	if err != nil {
		return false, err
	}
	defer unlock()

	prev, err := s.loadRecord(ctx, owner.ID)
	if err != nil {
		return false, err
	}
	if prev == nil || prev.PlanID == "" {
		return false, nil
	}

	sub, err := s.processor.DeleteSubscription(ctx, prev.PlanID, !now)
	if err != nil {
		if errors.Is(err, ErrNoActiveSubscription) {
			return false, nil
		}
		return false, processorError(err)
	}

	t := s.now()
	next := prev.clone()
	next.UpdatedAt = t
	ev := EventCancel
	if now {
		ev = EventCancelNow
		next.EndsAt = &t
		next.TrialEndsAt = nil
	} else {
		next.EndsAt = periodEnd(sub, t)
	}
	if err := s.commit(ctx, prev, next, ev); err != nil {
		return false, err
	}

	kind := NoticeCancellationScheduled
	if now {
		kind = NoticeSubscriptionEnded
	}
	s.log.InfoContext(ctx, "subscription canceled",
		logger.OwnerID(owner.ID),
		logger.SubscriptionID(prev.PlanID),
		slog.Bool("immediately", now))
	s.notify(ctx, Notice{
		Kind:     kind,
		Owner:    *owner,
		Plan:     next.Plan,
		PlanName: next.PlanName,
		EndsAt:   cloneTime(next.EndsAt),
	})

	return true, nil
}

// Resume clears a pending cancellation. Resuming an ended subscription is rejected by the processor.
func (s *service) Resume(ctx context.Context, owner *Owner) (err error) {
	ok := true
	defer s.observe(OpResume, time.Now(), &ok, &err)

	if err := validateOwner(owner); err != nil {
		return err
	}

	unlock, err := s.lockOwner(ctx, owner.ID)
	if err != nil {
		return err
	}
	defer unlock()

	prev, err := s.loadRecord(ctx, owner.ID)
	if err != nil {
		return err
	}
	if prev == nil {
		return ErrSubscriptionNotFound
	}

	current, err := s.processor.RetrieveSubscription(ctx, prev.PlanID)
	if err != nil {
		return processorError(err)
	}
	item := current.FirstItem()
	sub, err := s.processor.ModifySubscription(ctx, prev.PlanID, ModifySubscriptionParams{
		CancelAtPeriodEnd: ptr(false),
		Items:             []SubscriptionItemParams{{ID: item.ID, Plan: item.PlanID}},
	})
	if err != nil {
		return processorError(err)
	}

	next := prev.clone()
	reconcile(next, sub, s.now())
	next.EndsAt = nil
	next.UpdatedAt = s.now()
	return s.commit(ctx, prev, next, EventResume)
}

// Swap moves the subscription to another plan and clears any pending cancellation.
func (s *service) Swap(ctx context.Context, owner *Owner, plan string) (ok bool, err error) {
	defer s.observe(OpSwap, time.Now(), &ok, &err)

	if err := validateOwner(owner); err != nil {
		return false, err
	}
	if plan == "" {
		return false, ErrPlanRequired
	}

	unlock, err := s.lockOwner(ctx, owner.ID)
	if err != nil {
		return false, err
	}
	defer unlock()

	prev, err := s.loadRecord(ctx, owner.ID)
	if err != nil {
		return false, err
	}
	if prev == nil {
		return false, ErrSubscriptionNotFound
	}

	current, err := s.processor.RetrieveSubscription(ctx, prev.PlanID)
	if err != nil {
		return false, processorError(err)
	}
	sub, err := s.processor.ModifySubscription(ctx, prev.PlanID, ModifySubscriptionParams{
		CancelAtPeriodEnd: ptr(false),
		Items:             []SubscriptionItemParams{{ID: current.FirstItem().ID, Plan: s.catalog.Resolve(plan)}},
	})
	if err != nil {
		return false, processorError(err)
	}

	next := prev.clone()
	next.Plan = plan
	reconcile(next, sub, s.now())
	next.UpdatedAt = s.now()
	if err := s.commit(ctx, prev, next, EventSwap); err != nil {
		return false, err
	}

	s.log.InfoContext(ctx, "subscription swapped",
		logger.OwnerID(owner.ID),
		slog.String("from_plan", prev.Plan),
		logger.Plan(plan))
	return true, nil
}

// Charge makes a one-off charge of amount minor units, discounted by the coupon in opts.
// Without a token in opts the stored customer is charged.
// Returns whether the processor settled the charge.
func (s *service) Charge(ctx context.Context, owner *Owner, amount int64, opts *ChargeOptions) (ok bool, err error) {
	defer s.observe(OpCharge, time.Now(), &ok, &err)

	if err := validateOwner(owner); err != nil {
		return false, err
	}
	if amount <= 0 {
		return false, ErrInvalidAmount
	}
	o := opts.orDefault()
	if o.token == "" && owner.CustomerID == "" {
		s.log.WarnContext(ctx, "charge without customer or token", logger.OwnerID(owner.ID))
		return false, nil
	}

	discounted, err := s.applyCoupon(ctx, decimal.NewFromInt(amount), o.coupon)
	if err != nil {
		return false, err
	}
	cents := toMinorUnits(discounted)
	if cents <= 0 {
		return false, ErrInvalidAmount
	}

	params := ChargeParams{
		Amount:         cents,
		Currency:       o.currency,
		Description:    o.description,
		Metadata:       o.metadata,
		IdempotencyKey: idempotencyKey(ctx, OpCharge),
	}
	if params.Currency == "" {
		params.Currency = s.currency
	}
	if params.Description == "" {
		params.Description = "Charge For " + ownerLabel(owner)
	}
	if o.token != "" {
		params.Source = o.token
	} else {
		params.CustomerID = owner.CustomerID
	}

	charge, err := withRetry(ctx, s.retry, func(ctx context.Context) (*Charge, error) {
		return s.processor.CreateCharge(ctx, params)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrCustomerNotFound):
			return false, nil
		case errors.Is(err, ErrPaymentDeclined):
			s.log.WarnContext(ctx, "charge declined", logger.OwnerID(owner.ID), logger.Error(err))
			return false, nil
		}
		return false, processorError(err)
	}

	if !charge.Settled() {
		s.log.WarnContext(ctx, "charge not settled",
			logger.OwnerID(owner.ID),
			slog.String("charge_id", charge.ID),
			slog.String("status", charge.Status))
		return false, nil
	}

	s.notify(ctx, Notice{
		Kind:     NoticeChargeSucceeded,
		Owner:    *owner,
		Amount:   cents,
		Currency: params.Currency,
		ChargeID: charge.ID,
	})
	return true, nil
}

// Card replaces the customer's default payment method.
func (s *service) Card(ctx context.Context, owner *Owner, token string) (ok bool, err error) {
	defer s.observe(OpCard, time.Now(), &ok, &err)

	if err := validateOwner(owner); err != nil {
		return false, err
	}
	if token == "" {
		return false, ErrTokenRequired
	}
	if owner.CustomerID == "" {
		return false, nil
	}

	if err := s.processor.ModifyCustomer(ctx, owner.CustomerID, CustomerParams{Token: token}); err != nil {
		switch {
		case errors.Is(err, ErrCustomerNotFound):
			return false, nil
		case errors.Is(err, ErrPaymentDeclined):
			s.log.WarnContext(ctx, "card declined", logger.OwnerID(owner.ID), logger.Error(err))
			return false, nil
		}
		return false, processorError(err)
	}
	return true, nil
}

// CreateCustomer creates the processor customer for the owner unless one already exists.
func (s *service) CreateCustomer(ctx context.Context, owner *Owner, token string) (id string, err error) {
	ok := true
	defer s.observe(OpCreateCustomer, time.Now(), &ok, &err)

	if err := validateOwner(owner); err != nil {
		return "", err
	}

	unlock, err := s.lockOwner(ctx, owner.ID)
	if err != nil {
		return "", err
	}
	defer unlock()

	if owner.CustomerID != "" {
		return owner.CustomerID, nil
	}
	return s.createCustomer(ctx, owner, token)
}

func (s *service) createCustomer(ctx context.Context, owner *Owner, token string) (string, error) {
	customer, err := s.processor.CreateCustomer(ctx, CustomerParams{
		Description: "Customer " + ownerLabel(owner),
		Email:       owner.Email,
		Token:       token,
	})
	if err != nil {
		return "", processorError(err)
	}

	owner.CustomerID = customer.ID
	if err := s.owners.SaveOwner(ctx, owner); err != nil {
		return "", errors.Join(ErrFailedToSaveOwner, err)
	}

	s.log.InfoContext(ctx, "processor customer created",
		logger.OwnerID(owner.ID), logger.CustomerID(customer.ID))
	return customer.ID, nil
}

// Plan returns the plan name of the owner's record, or an empty string when there is none.
func (s *service) Plan(ctx context.Context, ownerID string) (string, error) {
	rec, err := s.loadRecord(ctx, ownerID)
	if err != nil || rec == nil {
		return "", err
	}
	return rec.PlanName, nil
}

// Subscription returns the owner's record, or ErrSubscriptionNotFound.
func (s *service) Subscription(ctx context.Context, ownerID string) (*Subscription, error) {
	rec, err := s.store.FindByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return nil, err
		}
		return nil, errors.Join(ErrFailedToLoadSubscription, err)
	}
	return rec, nil
}

func (s *service) Status(ctx context.Context, ownerID string) (Status, error) {
	rec, err := s.loadRecord(ctx, ownerID)
	if err != nil {
		return Status{}, err
	}
	return StatusAt(ownerID, rec, s.now()), nil
}

// IsSubscribed returns false on any error.
func (s *service) IsSubscribed(ctx context.Context, ownerID, plan string) bool {
	rec := s.loadRecordSafe(ctx, ownerID)
	return rec.IsSubscribedAt(s.now(), plan)
}

// OnTrial returns false on any error.
func (s *service) OnTrial(ctx context.Context, ownerID, plan string) bool {
	rec := s.loadRecordSafe(ctx, ownerID)
	return rec.OnTrialAt(s.now(), plan)
}

// IsCanceled returns false on any error.
func (s *service) IsCanceled(ctx context.Context, ownerID string) bool {
	rec := s.loadRecordSafe(ctx, ownerID)
	return rec.IsCanceledAt(s.now())
}

// WasSubscribed returns false on any error.
func (s *service) WasSubscribed(ctx context.Context, ownerID, plan string) bool {
	rec := s.loadRecordSafe(ctx, ownerID)
	return rec.WasSubscribedAt(s.now(), plan)
}

// EndSubscription marks the subscription as ended now. It is the entry point for
// processor notifications that a subscription was deleted.
func (s *service) EndSubscription(ctx context.Context, customerID, subscriptionID string) (Disposition, error) {
	return s.endSubscription(ctx, "", customerID, subscriptionID)
}

func (s *service) endSubscription(ctx context.Context, ownerID, customerID, subscriptionID string) (d Disposition, err error) {
	ok := true
	defer s.observe(OpEndSubscription, time.Now(), &ok, &err)

	owner, prev, unlock, d, err := s.lookupPushed(ctx, ownerID, customerID, subscriptionID)
	if unlock == nil {
		return d, err
	}
	defer unlock()

	t := s.now()
	next := prev.clone()
	if next.EndsAt == nil || next.EndsAt.After(t) {
		next.EndsAt = &t
	}
	next.UpdatedAt = t
	if err := s.commit(ctx, prev, next, EventEnd); err != nil {
		return "", err
	}

	s.notify(ctx, Notice{
		Kind:     NoticeSubscriptionEnded,
		Owner:    *owner,
		Plan:     next.Plan,
		PlanName: next.PlanName,
		EndsAt:   cloneTime(next.EndsAt),
	})
	return DispositionHandled, nil
}

// SyncSubscription reconciles the owner's record with a subscription pushed by the processor.
func (s *service) SyncSubscription(ctx context.Context, customerID string, sub *ProcessorSubscription) (Disposition, error) {
	return s.syncSubscription(ctx, "", customerID, sub)
}

func (s *service) syncSubscription(ctx context.Context, ownerID, customerID string, sub *ProcessorSubscription) (d Disposition, err error) {
	ok := true
	defer s.observe(OpSyncSubscription, time.Now(), &ok, &err)

	if sub == nil {
		return "", ErrInvalidWebhook
	}
	if customerID == "" {
		customerID = sub.CustomerID
	}

	_, prev, unlock, d, err := s.lookupPushed(ctx, ownerID, customerID, sub.ID)
	if unlock == nil {
		return d, err
	}
	defer unlock()

	next := prev.clone()
	if priceID := sub.FirstItem().PlanID; priceID != "" && priceID != s.catalog.Resolve(prev.Plan) {
		next.Plan = s.catalog.KeyFor(priceID)
	}
	reconcile(next, sub, s.now())
	next.UpdatedAt = s.now()
	if err := s.commit(ctx, prev, next, EventSync); err != nil {
		return "", err
	}
	return DispositionHandled, nil
}

// AdoptSubscription records a subscription created outside Subscribe, such as a hosted checkout.
// The owner is found by processor customer id, then by ownerID; an unknown ownerID becomes a new owner.
// The processor customer is linked to the owner and the owner's record is replaced by the new subscription.
func (s *service) AdoptSubscription(ctx context.Context, ownerID, customerID string, sub *ProcessorSubscription) (d Disposition, err error) {
	ok := true
	defer s.observe(OpAdoptSubscription, time.Now(), &ok, &err)

	if sub == nil || sub.ID == "" {
		return "", ErrInvalidWebhook
	}
	if customerID == "" {
		customerID = sub.CustomerID
	}

	owner, err := s.findPushedOwner(ctx, ownerID, customerID)
	switch {
	case errors.Is(err, ErrOwnerNotFound) && ownerID != "":
		owner = &Owner{ID: ownerID}
	case errors.Is(err, ErrOwnerNotFound):
		s.log.WarnContext(ctx, "subscription for unknown owner",
			logger.CustomerID(customerID), logger.SubscriptionID(sub.ID))
		return DispositionNotFound, nil
	case err != nil:
		return "", err
	}

	unlock, err := s.lockOwner(ctx, owner.ID)
	if err != nil {
		return "", err
	}
	defer unlock()

	prev, err := s.store.FindByPlanID(ctx, sub.ID)
	switch {
	case errors.Is(err, ErrSubscriptionNotFound):
		if prev, err = s.loadRecord(ctx, owner.ID); err != nil {
			return "", err
		}
	case err != nil:
		return "", errors.Join(ErrFailedToLoadSubscription, err)
	case prev.OwnerID != owner.ID:
		s.log.WarnContext(ctx, "subscription belongs to another owner",
			logger.OwnerID(owner.ID), logger.SubscriptionID(sub.ID))
		return DispositionNotFound, nil
	}

	if customerID != "" {
		owner.CustomerID = customerID
	}
	owner.SubscriptionID = sub.ID
	if err := s.owners.SaveOwner(ctx, owner); err != nil {
		return "", errors.Join(ErrFailedToSaveOwner, err)
	}

	started := prev == nil || prev.PlanID != sub.ID
	next := s.nextRecord(owner.ID, prev)
	next.Plan = s.catalog.KeyFor(sub.FirstItem().PlanID)
	reconcile(next, sub, s.now())
	if err := s.commit(ctx, prev, next, EventSync); err != nil {
		return "", err
	}

	s.log.InfoContext(ctx, "subscription adopted",
		logger.OwnerID(owner.ID),
		logger.CustomerID(customerID),
		logger.SubscriptionID(sub.ID))
	if started {
		s.notify(ctx, Notice{
			Kind:        NoticeSubscriptionStarted,
			Owner:       *owner,
			Plan:        next.Plan,
			PlanName:    next.PlanName,
			TrialEndsAt: cloneTime(next.TrialEndsAt),
		})
	}
	return DispositionHandled, nil
}

// HandleEvent routes a verified webhook event by kind.
func (s *service) HandleEvent(ctx context.Context, ev *WebhookEvent) (d Disposition, err error) {
	if ev == nil {
		return "", ErrInvalidWebhook
	}
	defer func() {
		if err == nil {
			s.observer.ObserveWebhook(ev.Kind, d)
		}
	}()

	switch ev.Kind {
	case EventSubscriptionDeleted:
		if ev.Subscription == nil {
			return "", ErrInvalidWebhook
		}
		customerID := ev.CustomerID
		if customerID == "" {
			customerID = ev.Subscription.CustomerID
		}
		return s.endSubscription(ctx, ev.OwnerID, customerID, ev.Subscription.ID)
	case EventSubscriptionUpdated:
		return s.syncSubscription(ctx, ev.OwnerID, ev.CustomerID, ev.Subscription)
	case EventSubscriptionCreated:
		return s.AdoptSubscription(ctx, ev.OwnerID, ev.CustomerID, ev.Subscription)
	default:
		s.log.DebugContext(ctx, "unsupported webhook event", logger.EventType(ev.Type))
		return DispositionUnsupported, nil
	}
}

// lookupPushed resolves the owner and record addressed by a processor push and locks the owner.
// A nil unlock means the caller must return the given disposition and error as is.
func (s *service) lookupPushed(ctx context.Context, ownerID, customerID, subscriptionID string) (*Owner, *Subscription, func(), Disposition, error) {
	owner, err := s.findPushedOwner(ctx, ownerID, customerID)
	if err != nil {
		if errors.Is(err, ErrOwnerNotFound) {
			s.log.WarnContext(ctx, "webhook for unknown customer", logger.CustomerID(customerID))
			return nil, nil, nil, DispositionNotFound, nil
		}
		return nil, nil, nil, "", err
	}

	unlock, err := s.lockOwner(ctx, owner.ID)
	if err != nil {
		return nil, nil, nil, "", err
	}

	rec, err := s.store.FindByPlanID(ctx, subscriptionID)
	switch {
	case errors.Is(err, ErrSubscriptionNotFound):
		unlock()
		s.log.WarnContext(ctx, "webhook for unknown subscription",
			logger.CustomerID(customerID), logger.SubscriptionID(subscriptionID))
		return nil, nil, nil, DispositionNotFound, nil
	case err != nil:
		unlock()
		return nil, nil, nil, "", errors.Join(ErrFailedToLoadSubscription, err)
	case rec.OwnerID != owner.ID:
		unlock()
		s.log.WarnContext(ctx, "webhook subscription belongs to another owner",
			logger.OwnerID(owner.ID), logger.SubscriptionID(subscriptionID))
		return nil, nil, nil, DispositionNotFound, nil
	}

	return owner, rec, unlock, "", nil
}

// findPushedOwner resolves an owner by processor customer id, falling back to the owner id
// carried in processor metadata.
func (s *service) findPushedOwner(ctx context.Context, ownerID, customerID string) (*Owner, error) {
	if customerID != "" {
		owner, err := s.owners.FindOwnerByCustomerID(ctx, customerID)
		switch {
		case err == nil:
			return owner, nil
		case !errors.Is(err, ErrOwnerNotFound):
			return nil, errors.Join(ErrFailedToLookupOwner, err)
		}
	}
	if ownerID == "" {
		return nil, ErrOwnerNotFound
	}
	owner, err := s.owners.FindOwner(ctx, ownerID)
	switch {
	case errors.Is(err, ErrOwnerNotFound):
		return nil, err
	case err != nil:
		return nil, errors.Join(ErrFailedToLookupOwner, err)
	}
	return owner, nil
}

func (s *service) applyCoupon(ctx context.Context, amount decimal.Decimal, c Coupon) (decimal.Decimal, error) {
	if c.Kind() != CouponKindCode {
		return ApplyCoupon(amount, c, nil), nil
	}
	terms, err := s.processor.RetrieveCoupon(ctx, c.Code())
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return decimal.Zero, err
		}
		return decimal.Zero, processorError(err)
	}
	return ApplyCoupon(amount, c, terms), nil
}

func (s *service) lockOwner(ctx context.Context, ownerID string) (func(), error) {
	lctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	unlock, err := s.locker.Lock(lctx, OwnerLockKey(ownerID))
	if err != nil {
		if errors.Is(err, ErrLockTimeout) {
			return nil, err
		}
		return nil, errors.Join(ErrLockTimeout, err)
	}
	return unlock, nil
}

func (s *service) loadRecord(ctx context.Context, ownerID string) (*Subscription, error) {
	rec, err := s.store.FindByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return nil, nil
		}
		return nil, errors.Join(ErrFailedToLoadSubscription, err)
	}
	return rec, nil
}

func (s *service) loadRecordSafe(ctx context.Context, ownerID string) *Subscription {
	rec, err := s.loadRecord(ctx, ownerID)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to load subscription",
			logger.OwnerID(ownerID), logger.Error(err))
		return nil
	}
	return rec
}

func (s *service) nextRecord(ownerID string, prev *Subscription) *Subscription {
	if prev != nil {
		next := prev.clone()
		next.UpdatedAt = s.now()
		return next
	}
	now := s.now()
	return &Subscription{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Quantity:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// commit validates the observed transition and persists next.
// A record that already exists under the owner is overwritten in place.
func (s *service) commit(ctx context.Context, prev, next *Subscription, ev Event) error {
	now := s.now()
	from, to := prev.StateAt(now), next.StateAt(now)
	terr := CheckTransition(from, ev, to)
	s.observer.ObserveTransition(from, to, ev, terr == nil)
	if terr != nil {
		s.log.WarnContext(ctx, "unexpected subscription transition",
			logger.OwnerID(next.OwnerID), logger.Error(terr))
	}

	if prev != nil {
		if err := s.store.Update(ctx, next); err != nil {
			return errors.Join(ErrFailedToSaveSubscription, err)
		}
		return nil
	}

	err := s.store.Create(ctx, next)
	if errors.Is(err, ErrSubscriptionAlreadyExists) {
		existing, ferr := s.store.FindByOwner(ctx, next.OwnerID)
		if ferr != nil {
			return errors.Join(ErrFailedToSaveSubscription, err, ferr)
		}
		next.ID = existing.ID
		next.CreatedAt = existing.CreatedAt
		err = s.store.Update(ctx, next)
	}
	if err != nil {
		return errors.Join(ErrFailedToSaveSubscription, err)
	}
	return nil
}

func (s *service) notify(ctx context.Context, n Notice) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.WarnContext(ctx, "failed to deliver billing notice",
			logger.OwnerID(n.Owner.ID),
			slog.String("notice", string(n.Kind)),
			logger.Error(err))
	}
}

func (s *service) observe(op string, start time.Time, ok *bool, err *error) {
	s.observer.ObserveOperation(op, OutcomeOf(*ok, *err), time.Since(start))
}

func validateOwner(owner *Owner) error {
	if owner == nil || owner.ID == "" {
		return ErrOwnerRequired
	}
	return nil
}

func ownerLabel(owner *Owner) string {
	if owner.Email != "" {
		return owner.Email
	}
	return owner.ID
}

// processorError passes classified processor errors through and tags the rest.
func processorError(err error) error {
	for _, known := range []error{
		ErrPlanNotFound,
		ErrCustomerNotFound,
		ErrNoActiveSubscription,
		ErrInvalidCoupon,
		ErrProcessorUnavailable,
		ErrProcessorFailure,
		ErrProcessorRejected,
		ErrPaymentDeclined,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return errors.Join(ErrProcessorFailure, err)
}

// periodEnd picks the grace period end reported by the processor, falling back to now.
func periodEnd(sub *ProcessorSubscription, now time.Time) *time.Time {
	if t := unixTime(sub.CurrentPeriodEnd); t != nil {
		return t
	}
	if t := unixTime(sub.TrialEnd); t != nil {
		return t
	}
	return &now
}

func ptr[T any](v T) *T { return &v }
