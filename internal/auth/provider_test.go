package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCredentialsProvider_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewClientCredentialsProvider("", "client", "secret", "")
	require.Error(t, err)

	_, err = NewClientCredentialsProvider("http://example.invalid/token", "", "secret", "")
	require.Error(t, err)
}

func TestClientCredentialsProvider_Acquire(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Contains(t, r.PostForm.Get("scope"), "https://graph.microsoft.com/.default")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"issued-token","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	provider, err := NewClientCredentialsProvider(srv.URL, "client-id", "client-secret", "Test App")
	require.NoError(t, err)

	cred, err := provider.Acquire(context.Background(), []string{"https://graph.microsoft.com/.default", ""})
	require.NoError(t, err)
	assert.Equal(t, "issued-token", cred.Token)
	assert.Equal(t, "Test App", cred.DisplayName)
	assert.True(t, cred.Valid())
}

func TestClientCredentialsProvider_EndpointFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()

	provider, err := NewClientCredentialsProvider(srv.URL, "client-id", "bad-secret", "")
	require.NoError(t, err)

	_, err = provider.Acquire(context.Background(), []string{"scope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquiring token")
}

func TestStaticProvider_EnvPrecedence(t *testing.T) {
	t.Setenv("TEST_PG_TOKEN", "specific-token")
	t.Setenv("TEST_PG_SHARED", "shared-token")

	provider := NewStaticProvider(StaticOptions{
		EnvVar:       "TEST_PG_TOKEN",
		SharedEnvVar: "TEST_PG_SHARED",
	})

	cred, err := provider.Acquire(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "specific-token", cred.Token)
}

func TestStaticProvider_SharedEnvFallback(t *testing.T) {
	t.Setenv("TEST_PG_TOKEN", "")
	t.Setenv("TEST_PG_SHARED", "shared-token")

	provider := NewStaticProvider(StaticOptions{
		EnvVar:       "TEST_PG_TOKEN",
		SharedEnvVar: "TEST_PG_SHARED",
	})

	cred, err := provider.Acquire(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "shared-token", cred.Token)
}

func TestStaticProvider_ConfigFile(t *testing.T) {
	t.Setenv("TEST_PG_TOKEN", "")
	t.Setenv("TEST_PG_SHARED", "")

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("auth:\n  token: file-token\n"), 0o600))

	provider := NewStaticProvider(StaticOptions{
		EnvVar:          "TEST_PG_TOKEN",
		SharedEnvVar:    "TEST_PG_SHARED",
		AllowConfigFile: true,
		ConfigPath:      configPath,
	})

	cred, err := provider.Acquire(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "file-token", cred.Token)
}

func TestStaticProvider_ConfigFileDisabled(t *testing.T) {
	t.Setenv("TEST_PG_TOKEN", "")
	t.Setenv("TEST_PG_SHARED", "")

	provider := NewStaticProvider(StaticOptions{
		EnvVar:       "TEST_PG_TOKEN",
		SharedEnvVar: "TEST_PG_SHARED",
	})

	cred, err := provider.Acquire(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, cred.Token)
	assert.False(t, cred.Valid())
}

func TestStaticProvider_MissingConfigFile(t *testing.T) {
	t.Setenv("TEST_PG_TOKEN", "")
	t.Setenv("TEST_PG_SHARED", "")

	provider := NewStaticProvider(StaticOptions{
		EnvVar:          "TEST_PG_TOKEN",
		SharedEnvVar:    "TEST_PG_SHARED",
		AllowConfigFile: true,
		ConfigPath:      filepath.Join(t.TempDir(), "missing.yaml"),
	})

	cred, err := provider.Acquire(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, cred.Token)
}

func TestStaticProvider_MalformedConfigDegradesToEmpty(t *testing.T) {
	t.Setenv("TEST_PG_TOKEN", "")
	t.Setenv("TEST_PG_SHARED", "")

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("auth: [not a mapping"), 0o600))

	provider := NewStaticProvider(StaticOptions{
		EnvVar:          "TEST_PG_TOKEN",
		SharedEnvVar:    "TEST_PG_SHARED",
		AllowConfigFile: true,
		ConfigPath:      configPath,
	})

	cred, err := provider.Acquire(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, cred.Token)
}

func TestNormalizeScopes(t *testing.T) {
	t.Parallel()

	scopes := normalizeScopes([]string{" a ", "", "b", "a"})
	assert.Equal(t, []string{"a", "b"}, scopes)
}
