package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretsAPI struct {
	values map[string]string
	calls  int
}

func (f *fakeSecretsAPI) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	v, ok := f.values[*in.SecretId]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: sdkaws.String(v)}, nil
}

func TestSecretsClient_CachesUntilTTL(t *testing.T) {
	api := &fakeSecretsAPI{values: map[string]string{"grocery/JWT_SECRET": "s3cret"}}
	client := NewSecretsClientWithAPI(api, time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		v, err := client.GetSecret(context.Background(), "grocery/JWT_SECRET")
		require.NoError(t, err)
		assert.Equal(t, "s3cret", v)
	}
	assert.Equal(t, 1, api.calls)

	now = now.Add(2 * time.Minute)
	_, err := client.GetSecret(context.Background(), "grocery/JWT_SECRET")
	require.NoError(t, err)
	assert.Equal(t, 2, api.calls)
}

func TestSecretsClient_Errors(t *testing.T) {
	api := &fakeSecretsAPI{values: map[string]string{"empty": ""}}
	client := NewSecretsClientWithAPI(api, 0)

	_, err := client.GetSecret(context.Background(), "missing")
	assert.ErrorContains(t, err, "failed to get secret missing")

	_, err = client.GetSecret(context.Background(), "empty")
	assert.ErrorContains(t, err, "no string value")
}

func TestGetJSONSecret(t *testing.T) {
	api := &fakeSecretsAPI{values: map[string]string{
		"grocery/DB_CREDENTIALS": `{"POSTGRES_USER":"grocer","POSTGRES_PASSWORD":"pw"}`,
		"plain":                  "not-json",
	}}
	client := NewSecretsClientWithAPI(api, 0)

	m, err := GetJSONSecret(context.Background(), client, "grocery/DB_CREDENTIALS")
	require.NoError(t, err)
	assert.Equal(t, "grocer", m["POSTGRES_USER"])

	_, err = GetJSONSecret(context.Background(), client, "plain")
	assert.ErrorContains(t, err, "not a json object")
}
