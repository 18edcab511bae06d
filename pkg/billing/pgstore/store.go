// Package pgstore persists billing records in PostgreSQL.
package pgstore

import (
	"context"
	"embed"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/billable/pkg/billing"
	"github.com/dmitrymomot/billable/pkg/pg"
)

// Migrations holds the goose migrations for the billing tables.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations to pass to pg.Migrate.
const MigrationsDir = "migrations"

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements billing.Store and billing.OwnerStore.
type Store struct {
	db DBTX
}

var (
	_ billing.Store       = (*Store)(nil)
	_ billing.OwnerStore  = (*Store)(nil)
	_ billing.OwnerFinder = (*Store)(nil)
)

func New(db DBTX) *Store {
	if db == nil {
		panic("pgstore: DBTX is required")
	}
	return &Store{db: db}
}

const subscriptionColumns = `id, owner_id, plan, plan_id, plan_name, quantity, trial_ends_at, ends_at, created_at, updated_at`

func (s *Store) FindByOwner(ctx context.Context, ownerID string) (*billing.Subscription, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM billing_subscriptions WHERE owner_id = $1`,
		ownerID,
	)
	return scanSubscription(row)
}

func (s *Store) FindByPlanID(ctx context.Context, planID string) (*billing.Subscription, error) {
	if planID == "" {
		return nil, billing.ErrSubscriptionNotFound
	}
	row := s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM billing_subscriptions WHERE plan_id = $1`,
		planID,
	)
	return scanSubscription(row)
}

func (s *Store) Create(ctx context.Context, sub *billing.Subscription) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO billing_subscriptions (`+subscriptionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sub.ID, sub.OwnerID, sub.Plan, sub.PlanID, sub.PlanName, sub.Quantity,
		sub.TrialEndsAt, sub.EndsAt, sub.CreatedAt, sub.UpdatedAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return errors.Join(billing.ErrSubscriptionAlreadyExists, err)
	}
	return err
}

func (s *Store) Update(ctx context.Context, sub *billing.Subscription) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE billing_subscriptions
		 SET plan = $2, plan_id = $3, plan_name = $4, quantity = $5,
		     trial_ends_at = $6, ends_at = $7, updated_at = $8
		 WHERE owner_id = $1`,
		sub.OwnerID, sub.Plan, sub.PlanID, sub.PlanName, sub.Quantity,
		sub.TrialEndsAt, sub.EndsAt, sub.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) SaveOwner(ctx context.Context, owner *billing.Owner) error {
	if owner == nil || owner.ID == "" {
		return billing.ErrOwnerRequired
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO billing_owners (id, email, customer_id, subscription_id, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (id) DO UPDATE
		 SET email = EXCLUDED.email,
		     customer_id = EXCLUDED.customer_id,
		     subscription_id = EXCLUDED.subscription_id,
		     updated_at = NOW()`,
		owner.ID, owner.Email, owner.CustomerID, owner.SubscriptionID,
	)
	return err
}

func (s *Store) FindOwnerByCustomerID(ctx context.Context, customerID string) (*billing.Owner, error) {
	if customerID == "" {
		return nil, billing.ErrOwnerNotFound
	}
	return s.findOwner(ctx, `SELECT id, email, customer_id, subscription_id FROM billing_owners WHERE customer_id = $1`, customerID)
}

func (s *Store) FindOwner(ctx context.Context, ownerID string) (*billing.Owner, error) {
	if ownerID == "" {
		return nil, billing.ErrOwnerNotFound
	}
	return s.findOwner(ctx, `SELECT id, email, customer_id, subscription_id FROM billing_owners WHERE id = $1`, ownerID)
}

func (s *Store) findOwner(ctx context.Context, query, arg string) (*billing.Owner, error) {
	var o billing.Owner
	err := s.db.QueryRow(ctx, query, arg).Scan(&o.ID, &o.Email, &o.CustomerID, &o.SubscriptionID)
	if pg.IsNotFoundError(err) {
		return nil, billing.ErrOwnerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func scanSubscription(row pgx.Row) (*billing.Subscription, error) {
	var sub billing.Subscription
	err := row.Scan(
		&sub.ID, &sub.OwnerID, &sub.Plan, &sub.PlanID, &sub.PlanName, &sub.Quantity,
		&sub.TrialEndsAt, &sub.EndsAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if pg.IsNotFoundError(err) {
		return nil, billing.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	if sub.TrialEndsAt != nil {
		t := sub.TrialEndsAt.UTC()
		sub.TrialEndsAt = &t
	}
	if sub.EndsAt != nil {
		t := sub.EndsAt.UTC()
		sub.EndsAt = &t
	}
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.UpdatedAt = sub.UpdatedAt.UTC()
	return &sub, nil
}
