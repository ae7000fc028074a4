package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"headstart/internal/orchestrator"
	"headstart/pkg/config"
)

func TestNewFallsBackToMemory(t *testing.T) {
	a, err := New(context.Background(), config.Config{BatchConcurrency: 2, BatchSize: 10}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	require.NotNil(t, a.Seeder)
	runs, err := a.Runs.List(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = a.Seeder.Seed(context.Background(), orchestrator.EnvironmentSeed{})
	var cfgErr *orchestrator.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "ORDERCLOUD_API_URL", cfgErr.Setting)
}

func TestNewRejectsIncompleteBlobSettings(t *testing.T) {
	_, err := New(context.Background(), config.Config{BlobEndpoint: "http://127.0.0.1:9000", TranslationsContainer: "ngx-translate"}, zaptest.NewLogger(t).Sugar())
	assert.ErrorContains(t, err, "translations store")
}
