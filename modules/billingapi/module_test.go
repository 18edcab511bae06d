package billingapi_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dmitrymomot/billable/modules/billingapi"
	"github.com/dmitrymomot/billable/pkg/billing"
	"github.com/dmitrymomot/billable/pkg/logger"
)

const webhookSecret = "whsec_api_test"

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string              `json:"code"`
		Message string              `json:"message"`
		Details map[string][]string `json:"details"`
	} `json:"error"`
}

type result struct {
	OK     bool            `json:"ok"`
	Status *billing.Status `json:"status"`
}

type fixture struct {
	srv   *httptest.Server
	proc  *billing.MemoryProcessor
	store *billing.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	parser, err := billing.NewStripeWebhookParser(webhookSecret)
	require.NoError(t, err)
	return newFixtureWithParser(t, parser)
}

func newFixtureWithParser(t *testing.T, parser billing.WebhookParser) *fixture {
	t.Helper()

	catalog, err := billing.NewCatalog(
		billing.CatalogPlan{Key: "pro", PriceID: "price_pro", Name: "Pro", TrialDays: 14},
		billing.CatalogPlan{Key: "team", PriceID: "price_team", Name: "Team"},
	)
	require.NoError(t, err)

	proc := billing.NewMemoryProcessor(
		billing.WithMemoryPlan("price_pro", "Pro Monthly"),
		billing.WithMemoryPlan("price_team", "Team Monthly"),
	)
	store := billing.NewMemoryStore()
	svc := billing.NewService(proc, store, store,
		billing.WithCatalog(catalog),
		billing.WithLogger(logger.Nop()),
		billing.WithRetryPolicy(billing.RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}),
	)
	m := billingapi.New(svc, store,
		billingapi.WithWebhookParser(parser),
		billingapi.WithLogger(logger.Nop()),
	)
	srv := httptest.NewServer(m.Handle())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, proc: proc, store: store}
}

func (f *fixture) do(t *testing.T, method, path, body string, headers map[string]string) (*http.Response, envelope) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func decodeResult(t *testing.T, env envelope) result {
	t.Helper()
	var res result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	return res
}

func TestNew_PanicsWithoutDependencies(t *testing.T) {
	t.Parallel()

	store := billing.NewMemoryStore()
	svc := billing.NewService(billing.NewMemoryProcessor(), store, store)

	assert.Panics(t, func() { billingapi.New(nil, store) })
	assert.Panics(t, func() { billingapi.New(svc, nil) })
	assert.NotPanics(t, func() { billingapi.New(svc, store) })
}

func TestModule_Subscribe(t *testing.T) {
	t.Parallel()

	t.Run("starts a trial and reports status", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		resp, env := f.do(t, http.MethodPost, "/owners/acme/subscription",
			`{"plan":"pro","token":"tok_visa","email":"ops@acme.test"}`,
			map[string]string{"Idempotency-Key": "sub-1"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		res := decodeResult(t, env)
		assert.True(t, res.OK)
		require.NotNil(t, res.Status)
		assert.Equal(t, billing.StateTrialing, res.Status.State)
		assert.Equal(t, "pro", res.Status.Plan)
		assert.True(t, res.Status.OnTrial)

		owner, err := f.store.FindOwner(t.Context(), "acme")
		require.NoError(t, err)
		assert.Equal(t, "ops@acme.test", owner.Email)
		assert.NotEmpty(t, owner.CustomerID)

		resp, env = f.do(t, http.MethodGet, "/owners/acme/subscription", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var st billing.Status
		require.NoError(t, json.Unmarshal(env.Data, &st))
		assert.True(t, st.Subscribed)
	})

	t.Run("zero trial days bills immediately", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		resp, env := f.do(t, http.MethodPost, "/owners/acme/subscription",
			`{"plan":"pro","token":"tok_visa","trial_days":0}`, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		res := decodeResult(t, env)
		assert.True(t, res.OK)
		require.NotNil(t, res.Status)
		assert.Equal(t, billing.StateActive, res.Status.State)
		assert.False(t, res.Status.OnTrial)
	})

	t.Run("missing plan is a validation error", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		resp, env := f.do(t, http.MethodPost, "/owners/acme/subscription", `{"token":"tok_visa"}`, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		require.NotNil(t, env.Error)
		assert.Equal(t, "validation_error", env.Error.Code)
		assert.Contains(t, env.Error.Details, "plan")
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		resp, env := f.do(t, http.MethodPost, "/owners/acme/subscription", `{"plan":"gold","token":"tok_visa"}`, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		require.NotNil(t, env.Error)
		assert.Equal(t, "plan_not_found", env.Error.Code)
	})

	t.Run("processor outage asks for a retry", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		for range 3 {
			f.proc.FailNext(billing.CallCreateCustomer, billing.ErrProcessorUnavailable)
		}

		resp, env := f.do(t, http.MethodPost, "/owners/acme/subscription", `{"plan":"pro","token":"tok_visa"}`, nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "5", resp.Header.Get("Retry-After"))
		require.NotNil(t, env.Error)
		assert.Equal(t, "billing_unavailable", env.Error.Code)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		resp, env := f.do(t, http.MethodPost, "/owners/acme/subscription", `{"plan":"pro","tier":"x"}`, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.NotNil(t, env.Error)
		assert.Equal(t, "bad_request", env.Error.Code)
	})
}

func TestModule_Lifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/owners/acme/subscription", `{"plan":"team","token":"tok_visa"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env := f.do(t, http.MethodPut, "/owners/acme/subscription", `{"plan":"pro"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decodeResult(t, env)
	assert.True(t, res.OK)
	assert.Equal(t, "pro", res.Status.Plan)

	resp, env = f.do(t, http.MethodDelete, "/owners/acme/subscription", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res = decodeResult(t, env)
	assert.True(t, res.Status.Canceled)
	assert.Equal(t, billing.StateCancelPending, res.Status.State)

	resp, env = f.do(t, http.MethodPost, "/owners/acme/subscription/resume", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res = decodeResult(t, env)
	assert.False(t, res.Status.Canceled)

	resp, env = f.do(t, http.MethodDelete, "/owners/acme/subscription?now=true", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res = decodeResult(t, env)
	assert.Equal(t, billing.StateEnded, res.Status.State)
	assert.True(t, res.Status.WasSubscribed)
}

func TestModule_ResumeWithoutSubscription(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp, env := f.do(t, http.MethodPost, "/owners/nobody/subscription/resume", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "subscription_not_found", env.Error.Code)
}

func TestModule_ResumeEndedSubscription(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/owners/acme/subscription", `{"plan":"team","token":"tok_visa"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = f.do(t, http.MethodDelete, "/owners/acme/subscription?now=true", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env := f.do(t, http.MethodPost, "/owners/acme/subscription/resume", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Retry-After"))
	require.NotNil(t, env.Error)
	assert.Equal(t, "billing_rejected", env.Error.Code)
}

func TestModule_CustomerAndCard(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp, env := f.do(t, http.MethodPost, "/owners/acme/customer", `{"email":"ops@acme.test","token":"tok_visa"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var cust struct {
		CustomerID string `json:"customer_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &cust))
	require.NotEmpty(t, cust.CustomerID)

	resp, env = f.do(t, http.MethodPut, "/owners/acme/card", `{"token":"tok_mastercard"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeResult(t, env).OK)

	source, ok := f.proc.CustomerSource(cust.CustomerID)
	require.True(t, ok)
	assert.Equal(t, "tok_mastercard", source)

	resp, env = f.do(t, http.MethodPut, "/owners/acme/card", `{}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Details, "token")
	resp, env = f.do(t, http.MethodPut, "/owners/acme/card", `{"token":"`+billing.DeclinedToken+`"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decodeResult(t, env).OK)

	resp, env = f.do(t, http.MethodPost, "/owners/globex/customer", `{"token":"`+billing.DeclinedToken+`"}`, nil)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Retry-After"))
	require.NotNil(t, env.Error)
	assert.Equal(t, "payment_declined", env.Error.Code)
}

func TestModule_Charge(t *testing.T) {
	t.Parallel()

	t.Run("charges the card on file with a discount", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		resp, _ := f.do(t, http.MethodPost, "/owners/acme/customer", `{"token":"tok_visa"}`, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp, env := f.do(t, http.MethodPost, "/owners/acme/charges",
			`{"amount":2000,"fraction_off":0.25,"description":"Setup fee","metadata":{"order":"42"}}`,
			map[string]string{"Idempotency-Key": "charge-42"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, decodeResult(t, env).OK)

		charges := f.proc.Charges()
		require.Len(t, charges, 1)
		assert.Equal(t, int64(1500), charges[0].Amount)
		assert.Equal(t, "Setup fee", charges[0].Description)
		assert.Equal(t, billing.OpCharge+":charge-42", charges[0].IdempotencyKey)
		assert.Equal(t, "42", charges[0].Metadata["order"])
	})

	t.Run("without a card reports not ok", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		resp, env := f.do(t, http.MethodPost, "/owners/acme/charges", `{"amount":500}`, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.False(t, decodeResult(t, env).OK)
		assert.Empty(t, f.proc.Charges())
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		resp, env := f.do(t, http.MethodPost, "/owners/acme/charges", `{"amount":0,"coupon":"TEN","amount_off":5}`, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		require.NotNil(t, env.Error)
		assert.Contains(t, env.Error.Details, "amount")
		assert.Contains(t, env.Error.Details, "coupon")
	})
}

func signed(payload string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    webhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	}).Header
}

func TestModule_Webhook(t *testing.T) {
	t.Parallel()

	t.Run("deleted subscription ends the record", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		resp, _ := f.do(t, http.MethodPost, "/owners/acme/subscription", `{"plan":"team","token":"tok_visa"}`, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		owner, err := f.store.FindOwner(t.Context(), "acme")
		require.NoError(t, err)

		payload := `{"id":"evt_1","object":"event","type":"customer.subscription.deleted","data":{"object":{` +
			`"id":"` + owner.SubscriptionID + `","customer":"` + owner.CustomerID + `","status":"canceled"}}}`
		resp, env := f.do(t, http.MethodPost, "/webhooks", payload, map[string]string{"Stripe-Signature": signed(payload)})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			EventID     string `json:"event_id"`
			Disposition string `json:"disposition"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &out))
		assert.Equal(t, "evt_1", out.EventID)
		assert.Equal(t, string(billing.DispositionHandled), out.Disposition)

		resp, env = f.do(t, http.MethodGet, "/owners/acme/subscription", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var st billing.Status
		require.NoError(t, json.Unmarshal(env.Data, &st))
		assert.Equal(t, billing.StateEnded, st.State)
	})

	t.Run("unknown customer is acknowledged", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		payload := `{"id":"evt_2","object":"event","type":"customer.subscription.deleted",` +
			`"data":{"object":{"id":"sub_x","customer":"cus_x","status":"canceled"}}}`
		resp, env := f.do(t, http.MethodPost, "/webhooks", payload, map[string]string{"Stripe-Signature": signed(payload)})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(env.Data), string(billing.DispositionNotFound))
	})

	t.Run("unsupported event type", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		payload := `{"id":"evt_3","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`
		resp, env := f.do(t, http.MethodPost, "/webhooks", payload, map[string]string{"Stripe-Signature": signed(payload)})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(env.Data), string(billing.DispositionUnsupported))
	})

	t.Run("bad signature", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		payload := `{"id":"evt_4","object":"event","type":"invoice.paid","data":{"object":{}}}`
		resp, env := f.do(t, http.MethodPost, "/webhooks", payload, map[string]string{"Stripe-Signature": "t=1,v1=bad"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.NotNil(t, env.Error)
		assert.Equal(t, "invalid_webhook", env.Error.Code)
	})
}

func signPaddle(payload string) string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(ts + ":" + payload))
	return "ts=" + ts + ";h1=" + hex.EncodeToString(mac.Sum(nil))
}

func TestModule_PaddleWebhook(t *testing.T) {
	t.Parallel()

	parser, err := billing.NewPaddleWebhookParser(webhookSecret)
	require.NoError(t, err)
	f := newFixtureWithParser(t, parser)

	post := func(payload string) (*http.Response, envelope) {
		return f.do(t, http.MethodPost, "/webhooks", payload, map[string]string{"Paddle-Signature": signPaddle(payload)})
	}
	disposition := func(env envelope) string {
		var out struct {
			Disposition string `json:"disposition"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &out))
		return out.Disposition
	}

	created := `{"event_id":"evt_p1","event_type":"subscription.created","data":{` +
		`"id":"sub_01p","status":"active","customer_id":"ctm_01p","custom_data":{"owner_id":"acme"},` +
		`"items":[{"quantity":1,"price":{"id":"price_team","name":"Team Monthly"}}]}}`
	resp, env := post(created)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(billing.DispositionHandled), disposition(env))

	resp, env = f.do(t, http.MethodGet, "/owners/acme/subscription", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st billing.Status
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.True(t, st.Subscribed)
	assert.Equal(t, "team", st.Plan)

	canceled := `{"event_id":"evt_p2","event_type":"subscription.canceled","data":{` +
		`"id":"sub_01p","status":"canceled","customer_id":"ctm_01p","canceled_at":"2025-03-05T10:00:00Z",` +
		`"items":[{"quantity":1,"price":{"id":"price_team"}}]}}`
	resp, env = post(canceled)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(billing.DispositionHandled), disposition(env))

	resp, env = f.do(t, http.MethodGet, "/owners/acme/subscription", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, billing.StateEnded, st.State)
	assert.True(t, st.WasSubscribed)
}
