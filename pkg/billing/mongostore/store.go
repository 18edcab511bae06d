// Package mongostore persists billing records in MongoDB.
package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/billable/pkg/billing"
	mongox "github.com/dmitrymomot/billable/pkg/mongo"
)

const (
	SubscriptionsCollection = "billing_subscriptions"
	OwnersCollection        = "billing_owners"
)

// Store implements billing.Store and billing.OwnerStore.
type Store struct {
	subs   *mongo.Collection
	owners *mongo.Collection
}

var (
	_ billing.Store       = (*Store)(nil)
	_ billing.OwnerStore  = (*Store)(nil)
	_ billing.OwnerFinder = (*Store)(nil)
)

func New(db *mongo.Database) *Store {
	if db == nil {
		panic("mongostore: database is required")
	}
	return &Store{
		subs:   db.Collection(SubscriptionsCollection),
		owners: db.Collection(OwnersCollection),
	}
}

// EnsureIndexes creates the unique owner index and the lookup indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.subs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "plan_id", Value: 1}}},
	}); err != nil {
		return err
	}
	_, err := s.owners.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "customer_id", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.D{{Key: "customer_id", Value: bson.D{{Key: "$gt", Value: ""}}}}),
	})
	return err
}

type subscriptionDoc struct {
	ID          string     `bson:"_id"`
	OwnerID     string     `bson:"owner_id"`
	Plan        string     `bson:"plan"`
	PlanID      string     `bson:"plan_id"`
	PlanName    string     `bson:"plan_name"`
	Quantity    int64      `bson:"quantity"`
	TrialEndsAt *time.Time `bson:"trial_ends_at"`
	EndsAt      *time.Time `bson:"ends_at"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

type ownerDoc struct {
	ID             string `bson:"_id"`
	Email          string `bson:"email"`
	CustomerID     string `bson:"customer_id"`
	SubscriptionID string `bson:"subscription_id"`
}

func toDoc(sub *billing.Subscription) subscriptionDoc {
	return subscriptionDoc{
		ID:          sub.ID.String(),
		OwnerID:     sub.OwnerID,
		Plan:        sub.Plan,
		PlanID:      sub.PlanID,
		PlanName:    sub.PlanName,
		Quantity:    sub.Quantity,
		TrialEndsAt: sub.TrialEndsAt,
		EndsAt:      sub.EndsAt,
		CreatedAt:   sub.CreatedAt,
		UpdatedAt:   sub.UpdatedAt,
	}
}

func (d subscriptionDoc) toSubscription() (*billing.Subscription, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	return &billing.Subscription{
		ID:          id,
		OwnerID:     d.OwnerID,
		Plan:        d.Plan,
		PlanID:      d.PlanID,
		PlanName:    d.PlanName,
		Quantity:    d.Quantity,
		TrialEndsAt: utc(d.TrialEndsAt),
		EndsAt:      utc(d.EndsAt),
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}, nil
}

func (s *Store) FindByOwner(ctx context.Context, ownerID string) (*billing.Subscription, error) {
	return s.findOne(ctx, bson.D{{Key: "owner_id", Value: ownerID}})
}

func (s *Store) FindByPlanID(ctx context.Context, planID string) (*billing.Subscription, error) {
	if planID == "" {
		return nil, billing.ErrSubscriptionNotFound
	}
	return s.findOne(ctx, bson.D{{Key: "plan_id", Value: planID}})
}

func (s *Store) findOne(ctx context.Context, filter bson.D) (*billing.Subscription, error) {
	var doc subscriptionDoc
	if err := s.subs.FindOne(ctx, filter).Decode(&doc); err != nil {
		if mongox.IsNotFoundError(err) {
			return nil, billing.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return doc.toSubscription()
}

func (s *Store) Create(ctx context.Context, sub *billing.Subscription) error {
	_, err := s.subs.InsertOne(ctx, toDoc(sub))
	if mongox.IsDuplicateKeyError(err) {
		return errors.Join(billing.ErrSubscriptionAlreadyExists, err)
	}
	return err
}

func (s *Store) Update(ctx context.Context, sub *billing.Subscription) error {
	res, err := s.subs.UpdateOne(ctx,
		bson.D{{Key: "owner_id", Value: sub.OwnerID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "plan", Value: sub.Plan},
			{Key: "plan_id", Value: sub.PlanID},
			{Key: "plan_name", Value: sub.PlanName},
			{Key: "quantity", Value: sub.Quantity},
			{Key: "trial_ends_at", Value: sub.TrialEndsAt},
			{Key: "ends_at", Value: sub.EndsAt},
			{Key: "updated_at", Value: sub.UpdatedAt},
		}}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return billing.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) SaveOwner(ctx context.Context, owner *billing.Owner) error {
	if owner == nil || owner.ID == "" {
		return billing.ErrOwnerRequired
	}
	_, err := s.owners.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: owner.ID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "email", Value: owner.Email},
			{Key: "customer_id", Value: owner.CustomerID},
			{Key: "subscription_id", Value: owner.SubscriptionID},
		}}},
		options.UpdateOne().SetUpsert(true),
	)
	return err
}

func (s *Store) FindOwnerByCustomerID(ctx context.Context, customerID string) (*billing.Owner, error) {
	if customerID == "" {
		return nil, billing.ErrOwnerNotFound
	}
	return s.findOwner(ctx, bson.D{{Key: "customer_id", Value: customerID}})
}

func (s *Store) FindOwner(ctx context.Context, ownerID string) (*billing.Owner, error) {
	if ownerID == "" {
		return nil, billing.ErrOwnerNotFound
	}
	return s.findOwner(ctx, bson.D{{Key: "_id", Value: ownerID}})
}

func (s *Store) findOwner(ctx context.Context, filter bson.D) (*billing.Owner, error) {
	var doc ownerDoc
	if err := s.owners.FindOne(ctx, filter).Decode(&doc); err != nil {
		if mongox.IsNotFoundError(err) {
			return nil, billing.ErrOwnerNotFound
		}
		return nil, err
	}
	return &billing.Owner{
		ID:             doc.ID,
		Email:          doc.Email,
		CustomerID:     doc.CustomerID,
		SubscriptionID: doc.SubscriptionID,
	}, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
