package billing

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// Processor operation names, used by MemoryProcessor for call counting and error injection.
const (
	CallCreateCustomer       = "create_customer"
	CallCreateSubscription   = "create_subscription"
	CallRetrieveSubscription = "retrieve_subscription"
	CallModifySubscription   = "modify_subscription"
	CallDeleteSubscription   = "delete_subscription"
	CallCreateCharge         = "create_charge"
	CallModifyCustomer       = "modify_customer"
	CallRetrieveCoupon       = "retrieve_coupon"
)

// DeclinedToken is a payment token that MemoryProcessor always declines, for charges and as a customer source.
const DeclinedToken = "tok_chargeDeclined"

const memoryPeriod = 30 * 24 * time.Hour

// MemoryProcessor is a stateful in-process Processor for development and tests.
// Plans and coupons must be registered before use.
type MemoryProcessor struct {
	mu sync.Mutex

	now       func() time.Time
	seq       int
	plans     map[string]string // plan id -> name
	coupons   map[string]CouponTerms
	customers map[string]*memoryCustomer
	subs      map[string]*ProcessorSubscription
	chargeReq []ChargeParams
	idem      map[string]any
	calls     map[string]int
	failures  map[string][]error
}

type memoryCustomer struct {
	email  string
	source string
}

// MemoryOption configures a MemoryProcessor.
type MemoryOption func(*MemoryProcessor)

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(p *MemoryProcessor) {
		if now != nil {
			p.now = now
		}
	}
}

// WithMemoryPlan registers a plan id with a display name.
func WithMemoryPlan(id, name string) MemoryOption {
	return func(p *MemoryProcessor) {
		p.plans[id] = name
	}
}

func WithMemoryCoupon(terms CouponTerms) MemoryOption {
	return func(p *MemoryProcessor) {
		p.coupons[terms.ID] = terms
	}
}

func NewMemoryProcessor(opts ...MemoryOption) *MemoryProcessor {
	p := &MemoryProcessor{
		now:       func() time.Time { return time.Now().UTC() },
		plans:     make(map[string]string),
		coupons:   make(map[string]CouponTerms),
		customers: make(map[string]*memoryCustomer),
		subs:      make(map[string]*ProcessorSubscription),
		idem:      make(map[string]any),
		calls:     make(map[string]int),
		failures:  make(map[string][]error),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddPlan registers a plan after construction.
func (p *MemoryProcessor) AddPlan(id, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plans[id] = name
}

// FailNext makes the next call of op return err. Calls queue in order.
func (p *MemoryProcessor) FailNext(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op] = append(p.failures[op], err)
}

// Calls returns how many times op was invoked, including failed calls.
func (p *MemoryProcessor) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

// Charges returns the accepted charge requests in order.
func (p *MemoryProcessor) Charges() []ChargeParams {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.chargeReq)
}

// CustomerSource returns the payment source on file for a customer.
func (p *MemoryProcessor) CustomerSource(id string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.customers[id]
	if !ok {
		return "", false
	}
	return c.source, true
}

func (p *MemoryProcessor) CreateCustomer(_ context.Context, params CustomerParams) (*Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(CallCreateCustomer); err != nil {
		return nil, err
	}

	if params.Token == DeclinedToken {
		return nil, fmt.Errorf("%w: %q", ErrPaymentDeclined, params.Token)
	}
	id := p.nextID("cus")
	p.customers[id] = &memoryCustomer{email: params.Email, source: params.Token}
	return &Customer{ID: id}, nil
}

func (p *MemoryProcessor) CreateSubscription(_ context.Context, params SubscriptionParams) (*ProcessorSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(CallCreateSubscription); err != nil {
		return nil, err
	}
	if prev, ok := p.idem[params.IdempotencyKey].(*ProcessorSubscription); ok && params.IdempotencyKey != "" {
		return copySubscription(prev), nil
	}

	if _, ok := p.customers[params.CustomerID]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrCustomerNotFound, params.CustomerID)
	}
	name, ok := p.plans[params.Plan]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPlanNotFound, params.Plan)
	}
	if params.Coupon != "" {
		if _, ok := p.coupons[params.Coupon]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCoupon, params.Coupon)
		}
	}

	now := p.now()
	sub := &ProcessorSubscription{
		ID:         p.nextID("sub"),
		CustomerID: params.CustomerID,
		Status:     "active",
		Items: []ProcessorSubscriptionItem{{
			ID:       p.nextID("si"),
			PlanID:   params.Plan,
			PlanName: name,
			Quantity: max(params.Quantity, 1),
		}},
		CurrentPeriodEnd: now.Add(memoryPeriod).Unix(),
	}
	if !params.TrialEndNow && params.TrialPeriodDays > 0 {
		trialEnd := now.Add(time.Duration(params.TrialPeriodDays) * 24 * time.Hour).Unix()
		sub.Status = "trialing"
		sub.TrialEnd = trialEnd
		sub.CurrentPeriodEnd = trialEnd
	}

	p.subs[sub.ID] = sub
	if params.IdempotencyKey != "" {
		p.idem[params.IdempotencyKey] = sub
	}
	return copySubscription(sub), nil
}

func (p *MemoryProcessor) RetrieveSubscription(_ context.Context, id string) (*ProcessorSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(CallRetrieveSubscription); err != nil {
		return nil, err
	}

	sub, ok := p.subs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSubscriptionNotFound, id)
	}
	return copySubscription(sub), nil
}

func (p *MemoryProcessor) ModifySubscription(_ context.Context, id string, params ModifySubscriptionParams) (*ProcessorSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(CallModifySubscription); err != nil {
		return nil, err
	}

	sub, ok := p.subs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSubscriptionNotFound, id)
	}
	if sub.Status == "canceled" {
		return nil, fmt.Errorf("%w: subscription %q has ended", ErrProcessorRejected, id)
	}

	for _, ip := range params.Items {
		if ip.Plan == "" {
			continue
		}
		name, ok := p.plans[ip.Plan]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrPlanNotFound, ip.Plan)
		}
		for i := range sub.Items {
			if sub.Items[i].ID == ip.ID {
				sub.Items[i].PlanID = ip.Plan
				sub.Items[i].PlanName = name
			}
		}
	}
	if params.CancelAtPeriodEnd != nil {
		sub.CancelAtPeriodEnd = *params.CancelAtPeriodEnd
	}
	if sub.TrialEnd > 0 && sub.TrialEnd <= p.now().Unix() {
		sub.Status = "active"
	}
	return copySubscription(sub), nil
}

func (p *MemoryProcessor) DeleteSubscription(_ context.Context, id string, atPeriodEnd bool) (*ProcessorSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(CallDeleteSubscription); err != nil {
		return nil, err
	}

	sub, ok := p.subs[id]
	if !ok || sub.Status == "canceled" {
		return nil, fmt.Errorf("%w: %q", ErrNoActiveSubscription, id)
	}
	if atPeriodEnd {
		sub.CancelAtPeriodEnd = true
	} else {
		sub.Status = "canceled"
		sub.CancelAtPeriodEnd = false
		sub.EndedAt = p.now().Unix()
	}
	return copySubscription(sub), nil
}

func (p *MemoryProcessor) CreateCharge(_ context.Context, params ChargeParams) (*Charge, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(CallCreateCharge); err != nil {
		return nil, err
	}
	if prev, ok := p.idem[params.IdempotencyKey].(*Charge); ok && params.IdempotencyKey != "" {
		c := *prev
		return &c, nil
	}

	if params.Source == "" {
		if _, ok := p.customers[params.CustomerID]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrCustomerNotFound, params.CustomerID)
		}
	}

	charge := Charge{ID: p.nextID("ch"), Amount: params.Amount, Status: ChargeStatusSucceeded}
	if params.Source == DeclinedToken {
		charge.Status = "failed"
	}
	params.Metadata = maps.Clone(params.Metadata)
	p.chargeReq = append(p.chargeReq, params)
	if params.IdempotencyKey != "" {
		p.idem[params.IdempotencyKey] = &charge
	}
	c := charge
	return &c, nil
}

func (p *MemoryProcessor) ModifyCustomer(_ context.Context, id string, params CustomerParams) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(CallModifyCustomer); err != nil {
		return err
	}

	c, ok := p.customers[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrCustomerNotFound, id)
	}
	if params.Token == DeclinedToken {
		return fmt.Errorf("%w: %q", ErrPaymentDeclined, params.Token)
	}
	if params.Token != "" {
		c.source = params.Token
	}
	if params.Email != "" {
		c.email = params.Email
	}
	return nil
}

func (p *MemoryProcessor) RetrieveCoupon(_ context.Context, id string) (*CouponTerms, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(CallRetrieveCoupon); err != nil {
		return nil, err
	}

	terms, ok := p.coupons[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCoupon, id)
	}
	return &terms, nil
}

// enter counts the call and pops an injected failure. Callers hold p.mu.
func (p *MemoryProcessor) enter(op string) error {
	p.calls[op]++
	queue := p.failures[op]
	if len(queue) == 0 {
		return nil
	}
	p.failures[op] = queue[1:]
	return queue[0]
}

func (p *MemoryProcessor) nextID(prefix string) string {
	p.seq++
	return fmt.Sprintf("%s_%06d", prefix, p.seq)
}

func copySubscription(sub *ProcessorSubscription) *ProcessorSubscription {
	c := *sub
	c.Items = slices.Clone(sub.Items)
	return &c
}
