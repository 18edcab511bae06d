package billing

import "context"

// Store persists subscription records, one per owner.
type Store interface {
	// FindByOwner returns ErrSubscriptionNotFound when the owner has no record.
	FindByOwner(ctx context.Context, ownerID string) (*Subscription, error)
	// FindByPlanID looks a record up by processor subscription id.
	FindByPlanID(ctx context.Context, planID string) (*Subscription, error)
	// Create returns ErrSubscriptionAlreadyExists when the owner already has a record.
	Create(ctx context.Context, sub *Subscription) error
	Update(ctx context.Context, sub *Subscription) error
}

// Owner is the billable entity. It is passed to the Service explicitly and
// persisted through OwnerStore whenever its processor ids change.
type Owner struct {
	ID             string
	Email          string
	CustomerID     string
	SubscriptionID string
}

// OwnerFinder loads an owner by its own id. It returns ErrOwnerNotFound for unknown owners.
type OwnerFinder interface {
	FindOwner(ctx context.Context, ownerID string) (*Owner, error)
}

// OwnerStore persists the processor ids of billable entities.
type OwnerStore interface {
	OwnerFinder
	SaveOwner(ctx context.Context, owner *Owner) error
	// FindOwnerByCustomerID returns ErrOwnerNotFound for unknown customers.
	FindOwnerByCustomerID(ctx context.Context, customerID string) (*Owner, error)
}
