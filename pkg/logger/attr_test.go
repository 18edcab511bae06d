package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billable/pkg/logger"
)

func TestGroup(t *testing.T) {
	t.Parallel()
	attr := logger.Group("req", slog.String("id", "1"), slog.Int("n", 2))
	require.Equal(t, "req", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "id", g[0].Key)
	assert.Equal(t, "n", g[1].Key)
}

func TestErrors(t *testing.T) {
	t.Parallel()
	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "0", g[0].Key)
	assert.Equal(t, "2", g[1].Key)
	assert.Equal(t, err2, g[1].Value.Any())

	assert.True(t, logger.Errors(nil).Equal(slog.Attr{}))
}

func TestError(t *testing.T) {
	t.Parallel()
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())
	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

func TestBillingAttrs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attr    slog.Attr
		wantKey string
	}{
		{logger.OwnerID("u1"), "owner_id"},
		{logger.CustomerID("cus_1"), "customer_id"},
		{logger.SubscriptionID("sub_1"), "subscription_id"},
		{logger.Plan("pro"), "plan"},
		{logger.IdempotencyKey("k"), "idempotency_key"},
		{logger.RequestID("r"), "request_id"},
	}
	for _, tt := range tests {
		t.Run(tt.wantKey, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.wantKey, tt.attr.Key)
			assert.NotEmpty(t, tt.attr.Value.String())
		})
	}

	assert.True(t, logger.OwnerID("").Equal(slog.Attr{}))
	assert.True(t, logger.Plan("").Equal(slog.Attr{}))
	assert.Equal(t, int64(3), logger.RetryCount(3).Value.Int64())
	assert.Equal(t, time.Second, logger.Duration(time.Second).Value.Duration())
	assert.Equal(t, "webhook", logger.Component("webhook").Value.String())
	assert.Equal(t, "event_type", logger.EventType("customer.subscription.updated").Key)
}
