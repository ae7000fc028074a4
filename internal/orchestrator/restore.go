package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"headstart/internal/batch"
	"headstart/internal/ledger"
	"headstart/pkg/platform"
)

// PostStagingRestore rebuilds environment wiring after staging was restored from production.
// The restore leaves production integration events and supplier email recipients in place, so
// every integration event is detached and deleted, then checkout events are recreated for the
// storefront clients while supplier notifications are switched off.
func (s *Seeder) PostStagingRestore(ctx context.Context) (err error) {
	if err := s.checkConfig(); err != nil {
		return err
	}
	r, err := s.begin(ctx, "client:"+s.cfg.ClientID, ledger.KindStagingRestore)
	if err != nil {
		return err
	}
	defer func() { s.end(ctx, r, err) }()

	var (
		token       string
		clients     APIClientSet
		storefronts []string
	)
	if err := s.step(ctx, r, "authenticate", func(ctx context.Context) (err error) {
		token, err = s.oc.Authenticate(ctx)
		return remote("authenticate", "platform.authenticate", err)
	}); err != nil {
		return err
	}
	if err := s.step(ctx, r, "get-api-clients", func(ctx context.Context) (err error) {
		if clients, err = s.GetAPIClients(ctx, token); err != nil {
			return err
		}
		storefronts, err = s.GetStorefrontClientIDs(ctx, token)
		return err
	}); err != nil {
		return err
	}
	if err := s.step(ctx, r, "delete-integration-events", func(ctx context.Context) error {
		return s.DeleteAllIntegrationEvents(ctx, token)
	}); err != nil {
		return err
	}
	return s.step(ctx, r, "recreate-integration-events", func(ctx context.Context) error {
		var g errgroup.Group
		g.Go(func() error {
			return s.CreateAndAssignIntegrationEvents(ctx, token, storefronts, clients.BuyerUILocal.ID)
		})
		g.Go(func() error { return s.ShutOffSupplierEmails(ctx, token) })
		return g.Wait()
	})
}

// GetStorefrontClientIDs lists the clients whose app name matches the storefront pattern.
func (s *Seeder) GetStorefrontClientIDs(ctx context.Context, token string) ([]string, error) {
	list, err := s.oc.ListAPIClients(ctx, token, platform.Filters{"AppName": s.cat.StorefrontAppNamePattern})
	if err != nil {
		return nil, remote("get-api-clients", "apiclients.list", err)
	}
	ids := make([]string, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// ignoreNotFound treats a delete of something already gone as done.
func ignoreNotFound(err error) error {
	if platform.IsNotFound(err) {
		return nil
	}
	return err
}

// DeleteAllIntegrationEvents detaches every client from its checkout event, then deletes every
// event. The platform refuses to delete an event that a client still references.
func (s *Seeder) DeleteAllIntegrationEvents(ctx context.Context, token string) error {
	const step = "delete-integration-events"
	bound, err := s.oc.ListAPIClients(ctx, token, platform.Filters{"OrderCheckoutIntegrationEventID": "*"})
	if err != nil {
		return remote(step, "apiclients.list", err)
	}
	err = batch.Run(ctx, s.batch, bound, func(ctx context.Context, c platform.APIClient) error {
		_, err := s.oc.PatchAPIClient(ctx, token, c.ID, platform.APIClientPatch{OrderCheckoutIntegrationEventID: nil})
		return err
	})
	if err != nil {
		return remote(step, "apiclients.patch", err)
	}
	events, err := s.oc.ListIntegrationEvents(ctx, token)
	if err != nil {
		return remote(step, "integrationevents.list", err)
	}
	err = batch.Run(ctx, s.batch, events, func(ctx context.Context, e platform.IntegrationEvent) error {
		return ignoreNotFound(s.oc.DeleteIntegrationEvent(ctx, token, e.ID))
	})
	return remote(step, "integrationevents.delete", err)
}

// ShutOffSupplierEmails clears the notification recipients of every supplier.
func (s *Seeder) ShutOffSupplierEmails(ctx context.Context, token string) error {
	const step = "shut-off-supplier-emails"
	suppliers, err := s.oc.ListSuppliers(ctx, token, nil)
	if err != nil {
		return remote(step, "suppliers.list", err)
	}
	err = batch.Run(ctx, s.batch, suppliers, func(ctx context.Context, sp platform.Supplier) error {
		_, err := s.oc.PatchSupplier(ctx, token, sp.ID, platform.SupplierPatch{Xp: map[string]any{"NotificationRcpts": []string{}}})
		return err
	})
	return remote(step, "suppliers.patch", err)
}

// DeleteAllMessageSenders deletes every message sender in the organization.
func (s *Seeder) DeleteAllMessageSenders(ctx context.Context, token string) error {
	const step = "delete-message-senders"
	senders, err := s.oc.ListMessageSenders(ctx, token)
	if err != nil {
		return remote(step, "messagesenders.list", err)
	}
	err = batch.Run(ctx, s.batch, senders, func(ctx context.Context, m platform.MessageSender) error {
		return ignoreNotFound(s.oc.DeleteMessageSender(ctx, token, m.ID))
	})
	return remote(step, "messagesenders.delete", err)
}

// PurgeMessageSenders authenticates as the configured client and deletes all message senders.
func (s *Seeder) PurgeMessageSenders(ctx context.Context) (err error) {
	r, err := s.begin(ctx, "client:"+s.cfg.ClientID, ledger.KindDeleteMessageSenders)
	if err != nil {
		return err
	}
	defer func() { s.end(ctx, r, err) }()

	var token string
	if err := s.step(ctx, r, "authenticate", func(ctx context.Context) (err error) {
		token, err = s.oc.Authenticate(ctx)
		return remote("authenticate", "platform.authenticate", err)
	}); err != nil {
		return err
	}
	return s.step(ctx, r, "delete-message-senders", func(ctx context.Context) error {
		return s.DeleteAllMessageSenders(ctx, token)
	})
}
