package binder_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billable/pkg/binder"
)

type chargeRequest struct {
	Owner          string   `path:"owner"`
	Amount         int64    `json:"amount"`
	Currency       string   `json:"currency"`
	Expand         []string `query:"expand"`
	DryRun         bool     `query:"dry_run"`
	IdempotencyKey string   `header:"idempotency-key"`
	Limit          *int     `query:"limit"`
}

func TestJSON(t *testing.T) {
	t.Parallel()
	bind := binder.JSON()

	t.Run("decodes body", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":1499,"currency":"usd"}`))
		r.Header.Set("Content-Type", "application/json; charset=utf-8")
		var req chargeRequest
		require.NoError(t, bind(r, &req))
		assert.Equal(t, int64(1499), req.Amount)
		assert.Equal(t, "usd", req.Currency)
	})

	t.Run("content type optional", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":1}`))
		var req chargeRequest
		require.NoError(t, bind(r, &req))
		assert.Equal(t, int64(1), req.Amount)
	})

	t.Run("empty body is not applicable", func(t *testing.T) {
		t.Parallel()
		var req chargeRequest
		assert.ErrorIs(t, bind(httptest.NewRequest(http.MethodPost, "/", nil), &req), binder.ErrBinderNotApplicable)
		assert.ErrorIs(t, bind(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("  \n")), &req), binder.ErrBinderNotApplicable)
	})

	t.Run("rejects", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name string
			ct   string
			body string
			want error
		}{
			{name: "form content", ct: "application/x-www-form-urlencoded", body: "amount=1", want: binder.ErrUnsupportedMediaType},
			{name: "unknown field", ct: "application/json", body: `{"amount":1,"coupon":"X"}`, want: binder.ErrFailedToParseJSON},
			{name: "wrong type", ct: "application/json", body: `{"amount":"ten"}`, want: binder.ErrFailedToParseJSON},
			{name: "trailing data", ct: "application/json", body: `{"amount":1}{"amount":2}`, want: binder.ErrFailedToParseJSON},
			{name: "too large", ct: "application/json", body: `{"currency":"` + strings.Repeat("a", binder.DefaultMaxJSONSize) + `"}`, want: binder.ErrFailedToParseJSON},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
				r.Header.Set("Content-Type", tt.ct)
				var req chargeRequest
				assert.ErrorIs(t, bind(r, &req), tt.want)
			})
		}
	})
}

func TestParams(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodPost, "/owners/u1/charges?expand=card,%20customer&dry_run=true&limit=5", nil)
	r.Header.Set("Idempotency-Key", "idem-1")
	extractor := func(_ *http.Request, name string) string {
		if name == "owner" {
			return "u1"
		}
		return ""
	}

	var req chargeRequest
	require.NoError(t, binder.Path(extractor)(r, &req))
	require.NoError(t, binder.Query()(r, &req))
	require.NoError(t, binder.Header()(r, &req))

	assert.Equal(t, "u1", req.Owner)
	assert.Equal(t, []string{"card", "customer"}, req.Expand)
	assert.True(t, req.DryRun)
	require.NotNil(t, req.Limit)
	assert.Equal(t, 5, *req.Limit)
	assert.Equal(t, "idem-1", req.IdempotencyKey)
	assert.Zero(t, req.Amount)
}

func TestParams_Errors(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/?dry_run=maybe", nil)
	var req chargeRequest
	assert.ErrorIs(t, binder.Query()(r, &req), binder.ErrFailedToParseQuery)

	assert.ErrorIs(t, binder.Header()(r, req), binder.ErrFailedToParseHeader)

	var s string
	assert.ErrorIs(t, binder.Path(func(*http.Request, string) string { return "" })(r, &s), binder.ErrFailedToParsePath)
}
