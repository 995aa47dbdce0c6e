package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets map[string]string

func (f fakeSecrets) GetSecret(_ context.Context, name string) (string, error) {
	if v, ok := f[name]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}

func setRequiredEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "test.db")
	t.Setenv("JWT_SECRET", "jwt-secret")
	t.Setenv("KHALTI_SECRET_KEY", "live_secret_key")
	t.Setenv("BACKEND_URL", "http://localhost:8081/")
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg := FromEnv()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, "http://localhost:8081", cfg.BackendURL)
	assert.Equal(t, "http://localhost:5173", cfg.FrontendURL)
	assert.Equal(t, "https://a.khalti.com/api/v2", cfg.Khalti.BaseURL)
	assert.Equal(t, "http://localhost:8081/api/payment/verify", cfg.Khalti.ReturnURL)
	assert.Equal(t, 15*time.Second, cfg.Khalti.Timeout)
	assert.Equal(t, EventsNone, cfg.EventsBackend)
	assert.False(t, cfg.Stripe.Enabled())
}

func TestValidate_MissingPaymentSettings(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("KHALTI_SECRET_KEY", "")
	t.Setenv("BACKEND_URL", "")

	err := FromEnv().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KHALTI_SECRET_KEY is required")
	assert.Contains(t, err.Error(), "BACKEND_URL is required")
}

func TestValidate_MissingJWTSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_SECRET", "")

	err := FromEnv().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}

func TestValidate_EventsBackend(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("EVENTS_BACKEND", "kafka")

	err := FromEnv().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")

	t.Setenv("KAFKA_BROKERS", "localhost:9092, localhost:9093")
	cfg := FromEnv()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"localhost:9092", "localhost:9093"}, cfg.KafkaBrokers)
}

func TestValidate_SQSBackendNeedsQueue(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("EVENTS_BACKEND", "sqs")

	err := FromEnv().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORDER_EVENTS_QUEUE_URL")

	t.Setenv("ORDER_EVENTS_QUEUE_URL", "http://localhost:4566/000000000000/order-events")
	assert.NoError(t, FromEnv().Validate())
}

func TestValidate_CORSOrigins(t *testing.T) {
	tests := []struct {
		name     string
		origins  string
		frontend string
		wantErr  string
	}{
		{name: "defaults to storefront", origins: ""},
		{name: "explicit list", origins: "http://localhost:5173, https://shop.hamrogrocery.com/"},
		{name: "allow all", origins: "*"},
		{name: "missing scheme", origins: "localhost:5173", wantErr: `invalid CORS origin "localhost:5173"`},
		{name: "bare host", origins: "shop.hamrogrocery.com", wantErr: `invalid CORS origin "shop.hamrogrocery.com"`},
		{name: "wildcard subdomain", origins: "https://*.hamrogrocery.com", wantErr: "invalid CORS origin"},
		{name: "bad storefront fallback", origins: "", frontend: "hamrogrocery", wantErr: `invalid CORS origin "hamrogrocery"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("ALLOWED_ORIGINS", tt.origins)
			if tt.frontend != "" {
				t.Setenv("FRONTEND_URL", tt.frontend)
			}

			err := FromEnv().Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCORSOrigins_FallsBackToFrontend(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ALLOWED_ORIGINS", "")
	assert.Equal(t, []string{"http://localhost:5173"}, FromEnv().CORSOrigins())
}

func TestValidate_PostgresIncomplete(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("POSTGRES_USER", "")

	err := FromEnv().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database config incomplete")
}

func TestApplySecrets(t *testing.T) {
	setRequiredEnv(t)
	cfg := FromEnv()

	cfg.ApplySecrets(context.Background(), fakeSecrets{
		SecretDBCredentials: `{"POSTGRES_USER":"grocer","POSTGRES_HOST":"db.internal"}`,
		SecretKhaltiKey:     " key-from-sm ",
	})

	assert.Equal(t, "grocer", cfg.PostgresUser)
	assert.Equal(t, "db.internal", cfg.PostgresHost)
	assert.Equal(t, "key-from-sm", cfg.Khalti.SecretKey)
	assert.Equal(t, "jwt-secret", cfg.JWTSecret)
}
