package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"go.uber.org/zap/zaptest"

	"headstart/internal/batch"
	"headstart/pkg/blob"
	"headstart/pkg/platform"
	"headstart/pkg/portal"
)

type fakePortal struct {
	orgs   map[string]bool
	orgErr error
	calls  atomic.Int64
}

func (p *fakePortal) Login(_ context.Context, username, password string) (string, error) {
	p.calls.Add(1)
	if password == "wrong" {
		return "", errors.New("portal: status 401")
	}
	return "dev-token", nil
}

func (p *fakePortal) GetOrgToken(_ context.Context, orgID, _ string) (string, error) {
	p.calls.Add(1)
	return "org-token:" + orgID, nil
}

func (p *fakePortal) GetOrganization(_ context.Context, orgID, _ string) (portal.Organization, error) {
	p.calls.Add(1)
	if p.orgErr != nil {
		return portal.Organization{}, p.orgErr
	}
	if !p.orgs[orgID] {
		return portal.Organization{}, portal.ErrNotFound
	}
	return portal.Organization{ID: orgID, Name: "Marketplace", Active: true}, nil
}

type fakeRates struct {
	calls atomic.Int64
	err   error
}

func (r *fakeRates) Update(context.Context) error {
	r.calls.Add(1)
	return r.err
}

type fixture struct {
	seeder *Seeder
	mem    *platform.Memory
	portal *fakePortal
	blobs  *blob.MemoryStore
	rates  *fakeRates
}

func testConfig() Config {
	return Config{
		APIURL:            "https://sandboxapi.ordercloud.io",
		ClientID:          "mw-client",
		WebhookHashKey:    "hash-key",
		MiddlewareBaseURL: "https://middleware.example.com",
	}
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		mem:    platform.NewMemory(),
		portal: &fakePortal{orgs: map[string]bool{"org-1": true}},
		blobs:  blob.NewMemoryStore(),
		rates:  &fakeRates{},
	}
	f.seeder = New(cfg, Deps{
		Platform:     f.mem,
		Portal:       f.portal,
		Rates:        f.rates,
		Translations: f.blobs,
		Batch:        batch.New(3, 4, 0),
		Log:          zaptest.NewLogger(t).Sugar(),
	})
	return f
}

func testSeed() EnvironmentSeed {
	return EnvironmentSeed{
		PortalUsername:       "dev",
		PortalPassword:       "secret",
		SellerOrgID:          "org-1",
		InitialAdminUsername: "admin",
		InitialAdminPassword: "Admin123!",
	}
}

func indexOf(calls []string, op string) int {
	for i, c := range calls {
		if c == op {
			return i
		}
	}
	return -1
}

func lastIndexOf(calls []string, op string) int {
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i] == op {
			return i
		}
	}
	return -1
}

func clientByID(t *testing.T, mem *platform.Memory, id string) platform.APIClient {
	t.Helper()
	list, err := mem.ListAPIClients(context.Background(), "", platform.Filters{"ID": id})
	if err != nil || len(list) != 1 {
		t.Fatalf("client %s: %v (%d found)", id, err, len(list))
	}
	return list[0]
}

func boundEvent(c platform.APIClient) string {
	if c.OrderCheckoutIntegrationEventID == nil {
		return ""
	}
	return *c.OrderCheckoutIntegrationEventID
}
