package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"headstart/internal/app"
	"headstart/internal/orchestrator"
	"headstart/pkg/config"
)

const seedYAML = `portal_username: dev
portal_password: pw
seller_org_id: org-1
initial_admin_username: admin
initial_admin_password: Admin123!
buyers:
  - name: Acme
    xp:
      markup_percent: 5
suppliers:
  - name: Widgets Inc
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func run(t *testing.T, cfg config.Config, args ...string) (string, error) {
	t.Helper()
	cli := &CLI{}
	parser, err := initParser(cli, kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	rt := &runtime{
		ctx: context.Background(),
		cfg: cfg,
		log: zaptest.NewLogger(t).Sugar(),
		out: &out,
		open: func(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (*app.App, error) {
			return app.New(ctx, cfg, log)
		},
	}
	err = kctx.Run(rt)
	return out.String(), err
}

func TestLoadSeed(t *testing.T) {
	seed, err := loadSeed(writeFile(t, "seed.yaml", seedYAML))
	require.NoError(t, err)
	assert.Equal(t, "org-1", seed.SellerOrgID)
	require.Len(t, seed.Buyers, 1)
	assert.Equal(t, "Acme", seed.Buyers[0].Name)
	assert.Equal(t, 5, seed.Buyers[0].Xp.MarkupPercent)
	require.Len(t, seed.Suppliers, 1)

	seed, err = loadSeed(writeFile(t, "seed.json", `{"SellerOrgID":"org-2","Buyers":[{"Name":"B"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "org-2", seed.SellerOrgID)

	_, err = loadSeed(writeFile(t, "seed.yml", "seller_org: typo\n"))
	assert.Error(t, err)

	_, err = loadSeed(writeFile(t, "seed.txt", "x"))
	assert.ErrorContains(t, err, "unsupported extension")
}

func TestSeedCommandFailsFastWithoutConfiguration(t *testing.T) {
	_, err := run(t, config.Config{BatchConcurrency: 2, BatchSize: 10}, "seed", "--file", writeFile(t, "seed.yaml", seedYAML))
	var cfgErr *orchestrator.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Equal(t, "ORDERCLOUD_API_URL", cfgErr.Setting)
}

func TestSeedCommandRequiresFile(t *testing.T) {
	_, err := run(t, config.Config{}, "seed")
	assert.Error(t, err)
}

func TestDeleteMessageSendersNeedsConfirmation(t *testing.T) {
	_, err := run(t, config.Config{ClientID: "mw"}, "message-senders", "delete")
	assert.ErrorContains(t, err, "--yes")
}

func TestCatalogShow(t *testing.T) {
	out, err := run(t, config.Config{}, "catalog", "show", "roles")
	require.NoError(t, err)
	assert.Contains(t, out, "- ")

	out, err = run(t, config.Config{}, "catalog", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "security_profiles:")
	assert.Contains(t, out, "xp_indices:")

	_, err = run(t, config.Config{}, "catalog", "show", "nope")
	assert.Error(t, err)
}

func TestRunsCommandListsMemoryLedger(t *testing.T) {
	out, err := run(t, config.Config{}, "runs", "--limit", "5")
	require.NoError(t, err)
	assert.Empty(t, out)
}
