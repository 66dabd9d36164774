package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ai-search-guru/getcito/config"
	"github.com/ai-search-guru/getcito/models"
	"github.com/ai-search-guru/getcito/repositories/memory"
	"github.com/ai-search-guru/getcito/repositories/redis"
	"github.com/ai-search-guru/getcito/repositories/sqlite"
	"github.com/ai-search-guru/getcito/services/providers"
)

func testConfig(t *testing.T, driver string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Environment: "test",
		Store: config.StoreConfig{
			Driver: driver,
			SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "getcito.db")},
		},
		Observability: config.ObservabilityConfig{
			LogLevel:    "debug",
			LogFormat:   "console",
			ServiceName: "getcito-test",
		},
	}
	cfg.Providers.DataForSEO.FlatRate = "0.002"
	return cfg
}

// fakeOpenAI answers chat completions with a fixed billed response
func fakeOpenAI(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"message":{"role":"assistant","content":"Acme CRM is often recommended."},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":8,"total_tokens":18}}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewDependencies(t *testing.T) {
	t.Run("memory store without credentials", func(t *testing.T) {
		ctx := context.Background()

		deps, err := NewDependencies(ctx, testConfig(t, config.StoreMemory), zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NotNil(t, deps)

		assert.IsType(t, &memory.Store{}, deps.Store)
		assert.NotNil(t, deps.Queries)
		assert.NotNil(t, deps.QueryService)
		assert.Nil(t, deps.AuthMiddleware)

		assert.Empty(t, deps.Manager.GetAvailableProviders())
		status := deps.Manager.GetProviderStatus()
		assert.Len(t, status, 4)
		for _, kind := range providers.AllKinds() {
			assert.Contains(t, status, kind.String())
		}

		assert.NoError(t, deps.Close(ctx))
	})

	t.Run("end to end query is stored in sqlite", func(t *testing.T) {
		ctx := context.Background()
		var calls atomic.Int32
		server := fakeOpenAI(t, &calls)

		cfg := testConfig(t, config.StoreSQLite)
		cfg.Providers.OpenAI.APIKey = "sk-test"
		cfg.Providers.OpenAI.BaseURL = server.URL
		cfg.Providers.OpenAI.Timeout = 2 * time.Second

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(ctx)

		assert.IsType(t, &sqlite.Store{}, deps.Store)
		assert.Equal(t, []string{"openai"}, deps.Manager.GetAvailableProviders())

		req := providers.NewAPIRequest("best CRM for startups", "user-1", nil, "")
		resp, err := deps.QueryService.Run(ctx, req)
		require.NoError(t, err)
		require.Len(t, resp.Results, 1)
		assert.True(t, resp.Results[0].IsSuccess(), resp.Results[0].Error)
		assert.Equal(t, int32(1), calls.Load())

		record, err := deps.QueryService.Get(ctx, req.ID, "user-1")
		require.NoError(t, err)
		assert.Equal(t, models.QueryStatusCompleted, record.Status)
		assert.Equal(t, "Acme CRM is often recommended.", record.Response.AggregatedData["openai"].Text())
	})

	t.Run("redis store", func(t *testing.T) {
		ctx := context.Background()
		mr := miniredis.RunT(t)

		cfg := testConfig(t, config.StoreRedis)
		cfg.Store.Redis = config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "getcito"}

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)

		assert.IsType(t, &redis.Store{}, deps.Store)
		assert.NoError(t, deps.Store.Ping(ctx))
		assert.NoError(t, deps.Close(ctx))
	})

	t.Run("auth enabled", func(t *testing.T) {
		cfg := testConfig(t, config.StoreMemory)
		cfg.Auth = config.AuthConfig{JWTSecret: "secret", Issuer: "getcito"}

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(context.Background())

		assert.NotNil(t, deps.AuthMiddleware)
	})

	t.Run("tracing enabled", func(t *testing.T) {
		cfg := testConfig(t, config.StoreMemory)
		cfg.Observability.TracingEnabled = true

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.NoError(t, deps.Close(context.Background()))
	})
}

func TestNewDependencies_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr string
	}{
		{
			name:    "unknown store driver",
			mutate:  func(cfg *config.Config) { cfg.Store.Driver = "mongo" },
			wantErr: "failed to initialize store",
		},
		{
			name: "unreachable redis",
			mutate: func(cfg *config.Config) {
				cfg.Store.Driver = config.StoreRedis
				cfg.Store.Redis.Addr = "127.0.0.1:1"
			},
			wantErr: "failed to initialize store",
		},
		{
			name: "unreachable postgres",
			mutate: func(cfg *config.Config) {
				cfg.Store.Driver = config.StorePostgres
				cfg.Store.Database = config.DatabaseConfig{
					Host:     "127.0.0.1",
					Port:     1,
					User:     "getcito",
					Database: "getcito",
					SSLMode:  "disable",
				}
			},
			wantErr: "failed to initialize store",
		},
		{
			name:    "invalid flat rate",
			mutate:  func(cfg *config.Config) { cfg.Providers.DataForSEO.FlatRate = "two cents" },
			wantErr: "invalid DataForSEO flat rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, config.StoreMemory)
			tt.mutate(cfg)

			deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
			require.Error(t, err)
			assert.Nil(t, deps)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProviderConfig(t *testing.T) {
	got := providerConfig(config.ProviderSettings{
		APIKey:      "k",
		BaseURL:     "http://localhost",
		Model:       "gpt-4o",
		MaxTokens:   500,
		Temperature: 0.3,
		Timeout:     time.Second,
		MaxRetries:  1,
		RetryDelay:  time.Millisecond,
	})

	assert.Equal(t, providers.ProviderConfig{
		APIKey:       "k",
		BaseURL:      "http://localhost",
		DefaultModel: "gpt-4o",
		MaxTokens:    500,
		Temperature:  0.3,
		Timeout:      time.Second,
		MaxRetries:   1,
		RetryDelay:   time.Millisecond,
	}, got)
}
