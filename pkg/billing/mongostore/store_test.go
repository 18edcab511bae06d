package mongostore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billable/pkg/billing"
	"github.com/dmitrymomot/billable/pkg/billing/mongostore"
	"github.com/dmitrymomot/billable/pkg/mongo"
)

// The test is skipped when MONGODB_URL is not set.
func TestStore_Integration(t *testing.T) {
	url := os.Getenv("MONGODB_URL")
	if url == "" {
		t.Skip("MONGODB_URL not set")
	}

	ctx := context.Background()
	db, err := mongo.NewWithDatabase(ctx, mongo.Config{
		ConnectionURL:  url,
		Database:       "billing_test_" + uuid.NewString()[:8],
		ConnectTimeout: 5 * time.Second,
		MaxPoolSize:    4,
		RetryAttempts:  1,
		RetryInterval:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = db.Client().Disconnect(context.Background())
	})

	store := mongostore.New(db)
	require.NoError(t, store.EnsureIndexes(ctx))

	owner := &billing.Owner{ID: "owner-1", Email: "jane@example.com", CustomerID: "cus_1"}
	require.NoError(t, store.SaveOwner(ctx, owner))
	owner.SubscriptionID = "sub_1"
	require.NoError(t, store.SaveOwner(ctx, owner))

	got, err := store.FindOwnerByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, *owner, *got)

	_, err = store.FindOwnerByCustomerID(ctx, "cus_missing")
	assert.ErrorIs(t, err, billing.ErrOwnerNotFound)

	got, err = store.FindOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", got.SubscriptionID)

	now := time.Now().UTC().Truncate(time.Millisecond)
	sub := &billing.Subscription{
		ID:        uuid.New(),
		OwnerID:   "owner-1",
		Plan:      "pro",
		PlanID:    "sub_1",
		PlanName:  "Pro",
		Quantity:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Create(ctx, sub))
	assert.ErrorIs(t, store.Create(ctx, sub), billing.ErrSubscriptionAlreadyExists)

	ends := now.Add(time.Hour)
	sub.EndsAt = &ends
	require.NoError(t, store.Update(ctx, sub))

	found, err := store.FindByPlanID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, found.ID)
	require.NotNil(t, found.EndsAt)
	assert.True(t, ends.Equal(*found.EndsAt))

	_, err = store.FindByOwner(ctx, "owner-2")
	assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)
}
