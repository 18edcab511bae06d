package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billable/pkg/billing"
	"github.com/dmitrymomot/billable/pkg/email"
	"github.com/dmitrymomot/billable/pkg/httpserver"
	"github.com/dmitrymomot/billable/pkg/logger"
)

const testCatalog = `plans:
  - key: pro
    price_id: price_pro
    name: Pro Monthly
    trial_days: 14
  - key: team
    price_id: price_team
    name: Team Monthly
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func testConfig(t *testing.T) appConfig {
	t.Helper()
	return appConfig{
		Env:              "test",
		Name:             "billingd",
		Store:            storeMemory,
		Locker:           lockerMemory,
		MetricsNamespace: "billable",
		Billing: billing.Config{
			Driver:              billing.DriverMemory,
			WebhookSource:       billing.WebhookStripe,
			StripeWebhookSecret: "whsec_cmd_test",
			Currency:            "usd",
			CatalogPath:         writeFile(t, "plans.yaml", testCatalog),
			RetryMaxRetries:     1,
			RetryBaseDelay:      time.Millisecond,
			RetryMaxDelay:       time.Millisecond,
			LockTimeout:         time.Second,
		},
		HTTP: httpserver.Config{
			HealthPath:        "/health",
			ReadyPath:         "/ready",
			MetricsPath:       "/metrics",
			ReadHeaderTimeout: time.Second,
		},
		Email: email.Config{
			DevDir:       t.TempDir(),
			SenderEmail:  "billing@example.com",
			SupportEmail: "support@example.com",
			Language:     "en",
			ProductName:  "Billable",
		},
	}
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "billingd "+Version)
}

func TestPlansCmd(t *testing.T) {
	t.Run("prints the catalog", func(t *testing.T) {
		out, err := execute(t, "plans", "--catalog", writeFile(t, "plans.yaml", testCatalog))
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, []string{"KEY", "PRICE", "NAME", "TRIAL", "DAYS"}, strings.Fields(lines[0]))
		assert.Equal(t, []string{"pro", "price_pro", "Pro", "Monthly", "14"}, strings.Fields(lines[1]))
		assert.Equal(t, []string{"team", "price_team", "Team", "Monthly", "0"}, strings.Fields(lines[2]))
	})

	t.Run("rejects an invalid catalog", func(t *testing.T) {
		_, err := execute(t, "plans", "--catalog", writeFile(t, "plans.yaml", "plans:\n  - key: pro\n    colour: red\n"))
		assert.ErrorIs(t, err, billing.ErrInvalidCatalog)
	})

	t.Run("needs a catalog", func(t *testing.T) {
		_, err := execute(t, "plans", "--env-file", writeFile(t, ".env", "BILLING_CATALOG_PATH=\n"))
		assert.ErrorIs(t, err, errNoCatalog)
	})
}

func TestMigrateCmd_MemoryStore(t *testing.T) {
	out, err := execute(t, "migrate", "--env-file", writeFile(t, ".env", "BILLING_STORE=memory\n"))
	require.NoError(t, err)
	assert.Contains(t, out, `store "memory" has no schema to migrate`)
}

func TestAppConfig_Validate(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	require.NoError(t, cfg.validate())

	cfg.Store = "sqlite"
	assert.ErrorIs(t, cfg.validate(), errUnknownStore)

	cfg = testConfig(t)
	cfg.Locker = "etcd"
	assert.ErrorIs(t, cfg.validate(), errUnknownLocker)
}

func TestLoadAppConfig(t *testing.T) {
	cfg, err := loadAppConfig([]string{writeFile(t, ".env", "BILLING_STORE=mongo\nBILLING_DRIVER=stripe\nHTTP_ADDR=:9090\n")})
	require.NoError(t, err)
	assert.Equal(t, storeMongo, cfg.Store)
	assert.Equal(t, billing.DriverStripe, cfg.Billing.Driver)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "/metrics", cfg.HTTP.MetricsPath)

	_, err = loadAppConfig([]string{writeFile(t, ".env", "BILLING_STORE=sqlite\n")})
	assert.ErrorIs(t, err, errUnknownStore)
}

func TestBuildApp_Memory(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	a, err := buildApp(context.Background(), cfg, nil, logger.Nop())
	require.NoError(t, err)
	srv := httptest.NewServer(a.router())
	t.Cleanup(srv.Close)

	code, _ := get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, code)
	code, _ = get(t, srv.URL+"/ready")
	assert.Equal(t, http.StatusOK, code)

	resp, err := http.Post(srv.URL+"/owners/acme/subscription", "application/json",
		strings.NewReader(`{"plan":"pro","token":"tok_visa","email":"ops@acme.test"}`))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	code, body := get(t, srv.URL+"/owners/acme/subscription")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"state":"trialing"`)
	assert.Contains(t, body, `"plan_name":"Pro Monthly"`)

	code, body = get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `billable_billing_operations_total{operation="subscribe",outcome="ok"} 1`)
	assert.Contains(t, body, "billable_http_requests_total")

	sent, err := filepath.Glob(filepath.Join(cfg.Email.DevDir, "*.html"))
	require.NoError(t, err)
	assert.Len(t, sent, 1, "subscription started notice")

	resp, err = http.Post(srv.URL+"/webhooks", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.NoError(t, a.close(context.Background()))
}

func TestBuildApp_RedisLocker(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Locker = lockerRedis
	envFile := writeFile(t, ".env", "REDIS_URL=redis://"+mr.Addr()+"/0\nREDIS_RETRY_ATTEMPTS=1\n")

	a, err := buildApp(context.Background(), cfg, []string{envFile}, logger.Nop())
	require.NoError(t, err)
	srv := httptest.NewServer(a.router())
	t.Cleanup(srv.Close)

	code, body := get(t, srv.URL+"/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"redis":"ok"`)

	resp, err := http.Post(srv.URL+"/owners/acme/customer", "application/json", strings.NewReader(`{"token":"tok_visa"}`))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	mr.SetError("LOADING dataset in memory")
	code, body = get(t, srv.URL+"/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, `"redis":"unavailable"`)

	assert.NoError(t, a.close(context.Background()))
}

func TestBuildApp_Errors(t *testing.T) {
	t.Parallel()

	t.Run("unknown processor", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		cfg.Billing.Driver = "braintree"
		_, err := buildApp(context.Background(), cfg, nil, logger.Nop())
		assert.ErrorIs(t, err, billing.ErrUnknownProcessor)
	})

	t.Run("missing webhook secret", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		cfg.Billing.StripeWebhookSecret = ""
		_, err := buildApp(context.Background(), cfg, nil, logger.Nop())
		assert.ErrorIs(t, err, billing.ErrMissingWebhookSecret)
	})

	t.Run("missing catalog file", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		cfg.Billing.CatalogPath = filepath.Join(t.TempDir(), "absent.yaml")
		_, err := buildApp(context.Background(), cfg, nil, logger.Nop())
		assert.Error(t, err)
	})
}
