package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
logger:
  level: debug
  format: text
bot:
  token: "123:abc"
  mode: polling
server:
  port: ":8080"
database:
  driver: memory
redis:
  addr: "localhost:6379"
paystack:
  secret_key: "sk_test_123"
raffle:
  title: "Friends Raffle Draw"
  ticket_price: 1000
  max_tickets: 1000
  admin_ids: [42, 43]
reconcile:
  interval: 30s
  initial_delay: 10s
`

func writeConfig(t *testing.T, env, body string) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, env+".yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadFrom_AppliesDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	dir := writeConfig(t, "test", testConfigYAML)

	cfg, _, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.AppEnv)
	assert.Equal(t, int64(1000), cfg.Raffle.TicketPrice)
	assert.Equal(t, 1000, cfg.Raffle.MaxTickets)
	assert.Equal(t, []int{1, 2, 5, 10}, cfg.Raffle.PurchaseOptions)
	assert.Equal(t, 30*time.Second, cfg.Reconcile.Interval)
	assert.Equal(t, 10*time.Second, cfg.Reconcile.InitialDelay)
	assert.Equal(t, "ticker", cfg.Reconcile.Scheduler)
	assert.Equal(t, 30*time.Second, cfg.Paystack.InitializeTimeout)
	assert.Equal(t, 20*time.Second, cfg.Paystack.VerifyTimeout)
	assert.Equal(t, "https://api.paystack.co", cfg.Paystack.BaseURL)
	assert.True(t, cfg.Raffle.IsAdmin(42))
	assert.False(t, cfg.Raffle.IsAdmin(7))
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("RAFFLE_MAX_TICKETS", "3")
	t.Setenv("PAYSTACK_SECRET_KEY", "sk_live_override")
	dir := writeConfig(t, "test", testConfigYAML)

	cfg, _, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Raffle.MaxTickets)
	assert.Equal(t, "sk_live_override", cfg.Paystack.SecretKey)
}

func TestLoadFrom_RejectsInvalidSecretKey(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("PAYSTACK_SECRET_KEY", "pk_public_key")
	dir := writeConfig(t, "test", testConfigYAML)

	_, _, err := LoadFrom(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SecretKey")
}

func TestLoadFrom_MissingFile(t *testing.T) {
	t.Setenv("APP_ENV", "missing")

	_, _, err := LoadFrom(t.TempDir())
	require.Error(t, err)
}

func TestGetDBConnectionString(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{
		Host:     "db",
		Port:     "5432",
		User:     "raffle",
		Password: "secret",
		Name:     "raffle",
		SSLMode:  "disable",
	}}

	assert.Equal(t, "host=db port=5432 user=raffle password=secret dbname=raffle sslmode=disable", cfg.GetDBConnectionString())
}
