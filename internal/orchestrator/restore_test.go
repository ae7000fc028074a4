package orchestrator

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"headstart/internal/ledger"
	"headstart/pkg/platform"
)

func ptr(s string) *string { return &s }

// restoredStaging seeds an organization, then adds the wiring a production copy brings along.
func restoredStaging(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, testConfig())
	seed := testSeed()
	seed.Suppliers = []platform.Supplier{
		{Name: "Acme Supply", Xp: map[string]any{"NotificationRcpts": []string{"ops@acme.example"}}},
		{Name: "Beta Supply", Xp: map[string]any{"NotificationRcpts": []string{"orders@beta.example"}}},
	}
	_, err := f.seeder.Seed(context.Background(), seed)
	require.NoError(t, err)

	_, err = f.mem.SaveIntegrationEvent(context.Background(), "", platform.IntegrationEvent{ID: "ProdCheckout", Name: "Production Checkout"})
	require.NoError(t, err)
	f.mem.SeedAPIClient(platform.APIClient{ID: "sf-1", AppName: "Storefront - Acme", OrderCheckoutIntegrationEventID: ptr("ProdCheckout")})
	f.mem.SeedAPIClient(platform.APIClient{ID: "sf-2", AppName: "Storefront - Beta", OrderCheckoutIntegrationEventID: ptr("HeadStartCheckout")})
	f.mem.SeedAPIClient(platform.APIClient{ID: "other", AppName: "Reporting"})
	return f
}

func TestPostStagingRestoreDeletesBeforeRecreating(t *testing.T) {
	f := restoredStaging(t)
	mark := len(f.mem.Calls())

	require.NoError(t, f.seeder.PostStagingRestore(context.Background()))
	calls := f.mem.Calls()[mark:]

	firstSave := indexOf(calls, "integrationevents.save")
	require.GreaterOrEqual(t, firstSave, 0)
	assert.Less(t, lastIndexOf(calls, "integrationevents.delete"), firstSave)
	assert.Less(t, lastIndexOf(calls, "integrationevents.list"), firstSave)

	deletes, patches := 0, 0
	for i, c := range calls {
		switch c {
		case "integrationevents.delete":
			deletes++
		case "apiclients.patch":
			patches++
			if i < firstSave {
				assert.Less(t, i, indexOf(calls, "integrationevents.delete"), "detach precedes every delete")
			}
		}
	}
	assert.Equal(t, 3, deletes)
	// 4 bound clients detached, then the local client plus two storefronts rebound
	assert.Equal(t, 7, patches)
}

func TestPostStagingRestoreRewiresEnvironment(t *testing.T) {
	f := restoredStaging(t)
	ctx := context.Background()
	clients, err := f.seeder.GetAPIClients(ctx, "")
	require.NoError(t, err)

	require.NoError(t, f.seeder.PostStagingRestore(ctx))

	events, err := f.mem.ListIntegrationEvents(ctx, "")
	require.NoError(t, err)
	var ids []string
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	assert.ElementsMatch(t, []string{"HeadStartCheckout", "HeadStartCheckoutLOCAL"}, ids)

	assert.Equal(t, "HeadStartCheckout", boundEvent(clientByID(t, f.mem, "sf-1")))
	assert.Equal(t, "HeadStartCheckout", boundEvent(clientByID(t, f.mem, "sf-2")))
	assert.Equal(t, "HeadStartCheckoutLOCAL", boundEvent(clientByID(t, f.mem, clients.BuyerUILocal.ID)))
	assert.Empty(t, boundEvent(clientByID(t, f.mem, clients.BuyerUI.ID)))
	assert.Empty(t, boundEvent(clientByID(t, f.mem, "other")))

	suppliers, err := f.mem.ListSuppliers(ctx, "", nil)
	require.NoError(t, err)
	require.Len(t, suppliers, 2)
	for _, sp := range suppliers {
		assert.Equal(t, []string{}, sp.Xp["NotificationRcpts"], sp.Name)
	}

	runs, err := f.seeder.runs.List(ctx, "client:mw-client", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, ledger.KindStagingRestore, runs[0].Kind)
	assert.Equal(t, ledger.StatusSucceeded, runs[0].Status)
}

func TestPostStagingRestoreStopsWhenDetachFails(t *testing.T) {
	f := restoredStaging(t)
	f.mem.FailOn("apiclients.patch", &platform.APIError{Status: http.StatusTooManyRequests})
	mark := len(f.mem.Calls())

	err := f.seeder.PostStagingRestore(context.Background())
	var re *RemoteOperationError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "delete-integration-events", re.Step)

	calls := f.mem.Calls()[mark:]
	assert.Equal(t, -1, indexOf(calls, "integrationevents.delete"))
	assert.Equal(t, -1, indexOf(calls, "integrationevents.save"))
	// every bound client was still attempted
	assert.Equal(t, 4, countOf(calls, "apiclients.patch"))
}

func countOf(calls []string, op string) int {
	n := 0
	for _, c := range calls {
		if c == op {
			n++
		}
	}
	return n
}

func TestPostStagingRestoreFailsFastOnMissingConfiguration(t *testing.T) {
	cfg := testConfig()
	cfg.WebhookHashKey = ""
	f := newFixture(t, cfg)
	assert.ErrorIs(t, f.seeder.PostStagingRestore(context.Background()), ErrConfiguration)
	assert.Empty(t, f.mem.Calls())
}

func TestShutOffSupplierEmailsWithNoSuppliers(t *testing.T) {
	f := newFixture(t, testConfig())
	require.NoError(t, f.seeder.ShutOffSupplierEmails(context.Background(), "tok"))
	assert.Equal(t, []string{"suppliers.list"}, f.mem.Calls())
}

func TestPurgeMessageSenders(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	_, err := f.seeder.Seed(ctx, testSeed())
	require.NoError(t, err)

	require.NoError(t, f.seeder.PurgeMessageSenders(ctx))
	senders, err := f.mem.ListMessageSenders(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, senders)
	assert.Empty(t, f.mem.SenderAssignments())
	assert.Equal(t, 3, f.mem.CallCount("messagesenders.delete"))
}

func TestDeletesTolerateAlreadyRemovedRecords(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	_, err := f.seeder.Seed(ctx, testSeed())
	require.NoError(t, err)

	gone := &platform.APIError{Status: http.StatusNotFound, Errors: []platform.ErrorDetail{{ErrorCode: "NotFound"}}}
	f.mem.FailOn("messagesenders.delete", gone)
	f.mem.FailOn("integrationevents.delete", gone)

	require.NoError(t, f.seeder.PurgeMessageSenders(ctx))
	require.NoError(t, f.seeder.DeleteAllIntegrationEvents(ctx, "tok"))
	assert.Equal(t, 3, f.mem.CallCount("messagesenders.delete"))
	assert.Equal(t, 2, f.mem.CallCount("integrationevents.delete"))
}

func TestDeletesStillFailOnOtherErrors(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	_, err := f.seeder.Seed(ctx, testSeed())
	require.NoError(t, err)

	f.mem.FailOn("messagesenders.delete", &platform.APIError{Status: http.StatusInternalServerError})
	err = f.seeder.DeleteAllMessageSenders(ctx, "tok")
	var re *RemoteOperationError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "messagesenders.delete", re.Op)
	assert.False(t, platform.IsNotFound(err))
}
