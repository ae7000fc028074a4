package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"headstart/internal/batch"
	"headstart/internal/catalog"
	"headstart/internal/ledger"
	"headstart/internal/translations"
	"headstart/pkg/platform"
)

// EnvironmentSeed is what the caller wants provisioned. It is not modified by Seed.
type EnvironmentSeed struct {
	PortalUsername       string              `json:"PortalUsername" yaml:"portal_username"`
	PortalPassword       string              `json:"PortalPassword" yaml:"portal_password"`
	SellerOrgID          string              `json:"SellerOrgID" yaml:"seller_org_id"`
	InitialAdminUsername string              `json:"InitialAdminUsername" yaml:"initial_admin_username"`
	InitialAdminPassword string              `json:"InitialAdminPassword" yaml:"initial_admin_password"`
	Buyers               []platform.Buyer    `json:"Buyers" yaml:"buyers"`
	Suppliers            []platform.Supplier `json:"Suppliers" yaml:"suppliers"`
}

func (e EnvironmentSeed) validate() error {
	var missing []string
	if e.PortalUsername == "" {
		missing = append(missing, "PortalUsername")
	}
	if e.PortalPassword == "" {
		missing = append(missing, "PortalPassword")
	}
	if e.SellerOrgID == "" {
		missing = append(missing, "SellerOrgID")
	}
	if e.InitialAdminUsername == "" {
		missing = append(missing, "InitialAdminUsername")
	}
	if e.InitialAdminPassword == "" {
		missing = append(missing, "InitialAdminPassword")
	}
	for i, b := range e.Buyers {
		if b.Name == "" {
			missing = append(missing, fmt.Sprintf("Buyers[%d].Name", i))
		}
	}
	for i, sp := range e.Suppliers {
		if sp.Name == "" {
			missing = append(missing, fmt.Sprintf("Suppliers[%d].Name", i))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidSeed, strings.Join(missing, ", "))
	}
	return nil
}

type ClientCredentials struct {
	ClientID     string `json:"ClientID"`
	ClientSecret string `json:"ClientSecret,omitempty"`
}

// SeedResponse tells the caller which clients to configure its applications with.
type SeedResponse struct {
	Comments   string                       `json:"Comments"`
	APIClients map[string]ClientCredentials `json:"ApiClients"`
}

const seededComment = "Success! Your environment is now seeded. The following clientIDs & secrets should be used to finalize the configuration of your application. The initial admin username and password can be used to sign into your admin application"

const (
	middlewareUserID = "MiddlewareIntegrationsUser"
	initialAdminID   = "InitialAdminUser"
	seedUserEmail    = "test@test.com"
)

// APIClientSet is the four well-known clients, resolved by app name.
type APIClientSet struct {
	AdminUI      platform.APIClient
	BuyerUI      platform.APIClient
	BuyerUILocal platform.APIClient
	Middleware   platform.APIClient
}

// IndexResult is the outcome of one xp index upsert. Index failures never fail a run.
// Existing is set when the platform reported the index as already present; Err is nil then.
type IndexResult struct {
	Index    platform.XpIndex
	Existing bool
	Err      error
}

// Seed provisions the seller organization named by seed. Each step completes before the next
// one starts; the first failing step aborts the run. Re-running with the same seed is the
// recovery path.
func (s *Seeder) Seed(ctx context.Context, seed EnvironmentSeed) (resp SeedResponse, err error) {
	if err := s.checkConfig(); err != nil {
		return SeedResponse{}, err
	}
	if err := seed.validate(); err != nil {
		return SeedResponse{}, err
	}
	r, err := s.begin(ctx, seed.SellerOrgID, ledger.KindSeed)
	if err != nil {
		return SeedResponse{}, err
	}
	defer func() { s.end(ctx, r, err) }()

	buyers := s.buyersWithDefault(seed.Buyers)
	var (
		token   string
		clients APIClientSet
	)
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"authenticate", func(ctx context.Context) (err error) {
			token, err = s.orgToken(ctx, seed)
			return err
		}},
		{"create-seller-users", func(ctx context.Context) error {
			return s.createDefaultSellerUsers(ctx, token, seed)
		}},
		{"create-api-clients", func(ctx context.Context) error {
			return s.CreateAPIClients(ctx, token)
		}},
		{"create-security-profiles", func(ctx context.Context) error {
			return s.createSecurityProfiles(ctx, token)
		}},
		{"assign-security-profiles", func(ctx context.Context) error {
			return s.assignSecurityProfiles(ctx, token, buyers)
		}},
		{"get-api-clients", func(ctx context.Context) (err error) {
			clients, err = s.GetAPIClients(ctx, token)
			return err
		}},
		{"create-incrementors", func(ctx context.Context) error {
			return s.createIncrementors(ctx, token)
		}},
		{"create-message-senders", func(ctx context.Context) error {
			return s.createMessageSenders(ctx, token, buyers, seed.Suppliers)
		}},
		{"create-buyers", func(ctx context.Context) error {
			return s.createBuyers(ctx, token, buyers)
		}},
		{"create-xp-indices", func(ctx context.Context) error {
			var existing, failed int
			for _, res := range s.createXpIndices(ctx, token) {
				switch {
				case res.Existing:
					existing++
				case res.Err != nil:
					failed++
				}
			}
			s.log.Infow("xp indices applied", "total", len(s.cat.XpIndices), "existing", existing, "failed", failed)
			return nil
		}},
		{"create-integration-events", func(ctx context.Context) error {
			return s.CreateAndAssignIntegrationEvents(ctx, token, []string{clients.BuyerUI.ID}, clients.BuyerUILocal.ID)
		}},
		{"create-suppliers", func(ctx context.Context) error {
			return s.createSuppliers(ctx, token, seed.Suppliers)
		}},
		{"publish-assets", s.publishAssets},
	}
	for _, st := range steps {
		if err := s.step(ctx, r, st.name, st.fn); err != nil {
			return SeedResponse{}, err
		}
	}

	return SeedResponse{
		Comments: seededComment,
		APIClients: map[string]ClientCredentials{
			"Middleware": {ClientID: clients.Middleware.ID, ClientSecret: clients.Middleware.ClientSecret},
			"Seller":     {ClientID: clients.AdminUI.ID},
			"Buyer":      {ClientID: clients.BuyerUI.ID},
		},
	}, nil
}

// buyersWithDefault copies the caller's buyers and appends the default buyer.
func (s *Seeder) buyersWithDefault(in []platform.Buyer) []platform.Buyer {
	out := make([]platform.Buyer, 0, len(in)+1)
	out = append(out, in...)
	return append(out, s.cat.DefaultBuyer)
}

func (s *Seeder) orgToken(ctx context.Context, seed EnvironmentSeed) (string, error) {
	devToken, err := s.portal.Login(ctx, seed.PortalUsername, seed.PortalPassword)
	if err != nil {
		return "", remote("authenticate", "portal.login", err)
	}
	if err := s.VerifyOrgExists(ctx, seed.SellerOrgID, devToken); err != nil {
		return "", err
	}
	token, err := s.portal.GetOrgToken(ctx, seed.SellerOrgID, devToken)
	return token, remote("authenticate", "portal.org_token", err)
}

// VerifyOrgExists fails with *OrganizationNotFoundError when the portal cannot return orgID.
func (s *Seeder) VerifyOrgExists(ctx context.Context, orgID, devToken string) error {
	_, err := s.portal.GetOrganization(ctx, orgID, devToken)
	if err == nil {
		return nil
	}
	// Any lookup failure, including a rejected token, means the organization is not usable.
	return &OrganizationNotFoundError{OrgID: orgID, Err: err}
}

func (s *Seeder) createDefaultSellerUsers(ctx context.Context, token string, seed EnvironmentSeed) error {
	// the middleware API client runs as this user
	middleware := platform.User{
		ID:        middlewareUserID,
		Username:  s.cat.APIClients.Middleware.DefaultContextUser,
		Email:     seedUserEmail,
		Active:    true,
		FirstName: "Default",
		LastName:  "User",
	}
	if _, err := s.oc.SaveAdminUser(ctx, token, middleware); err != nil {
		return remote("create-seller-users", "adminusers.save", err)
	}
	initial := platform.User{
		ID:        initialAdminID,
		Username:  seed.InitialAdminUsername,
		Password:  seed.InitialAdminPassword,
		Email:     seedUserEmail,
		Active:    true,
		FirstName: "Initial",
		LastName:  "User",
	}
	_, err := s.oc.SaveAdminUser(ctx, token, initial)
	return remote("create-seller-users", "adminusers.save", err)
}

func (s *Seeder) clientFromDef(d catalog.APIClientDef) (platform.APIClient, error) {
	c := platform.APIClient{
		AppName:                d.AppName,
		Active:                 true,
		AllowSeller:            d.AllowSeller,
		AllowAnyBuyer:          d.AllowAnyBuyer,
		AllowAnySupplier:       d.AllowAnySupplier,
		AccessTokenDuration:    s.cat.APIClients.AccessTokenDuration,
		RefreshTokenDuration:   s.cat.APIClients.RefreshTokenDuration,
		DefaultContextUserName: d.DefaultContextUser,
	}
	if d.GenerateSecret {
		secret, err := newClientSecret()
		if err != nil {
			return platform.APIClient{}, err
		}
		c.ClientSecret = secret
	}
	return c, nil
}

// CreateAPIClients upserts the four well-known clients. A client whose app name already exists is
// saved under its existing ID; otherwise it is created. The four writes run concurrently.
func (s *Seeder) CreateAPIClients(ctx context.Context, token string) error {
	existing, err := s.oc.ListAPIClients(ctx, token, nil)
	if err != nil {
		return remote("create-api-clients", "apiclients.list", err)
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, def := range s.cat.APIClients.All() {
		client, err := s.clientFromDef(def)
		if err != nil {
			return err
		}
		match, found := findByAppName(existing, def.AppName)
		g.Go(func() error {
			if found {
				_, err := s.oc.SaveAPIClient(ctx, token, match.ID, client)
				return remote("create-api-clients", "apiclients.save", err)
			}
			_, err := s.oc.CreateAPIClient(ctx, token, client)
			return remote("create-api-clients", "apiclients.create", err)
		})
	}
	return g.Wait()
}

func findByAppName(clients []platform.APIClient, name string) (platform.APIClient, bool) {
	for _, c := range clients {
		if c.AppName == name {
			return c, true
		}
	}
	return platform.APIClient{}, false
}

// GetAPIClients resolves the four well-known clients by app name.
func (s *Seeder) GetAPIClients(ctx context.Context, token string) (APIClientSet, error) {
	list, err := s.oc.ListAPIClients(ctx, token, nil)
	if err != nil {
		return APIClientSet{}, remote("get-api-clients", "apiclients.list", err)
	}
	defs := s.cat.APIClients
	var set APIClientSet
	for _, want := range []struct {
		name string
		dst  *platform.APIClient
	}{
		{defs.AdminUI.AppName, &set.AdminUI},
		{defs.BuyerUI.AppName, &set.BuyerUI},
		{defs.BuyerUILocal.AppName, &set.BuyerUILocal},
		{defs.Middleware.AppName, &set.Middleware},
	} {
		c, ok := findByAppName(list, want.name)
		if !ok {
			return APIClientSet{}, fmt.Errorf("%w: %q", ErrAPIClientMissing, want.name)
		}
		*want.dst = c
	}
	return set, nil
}

func (s *Seeder) createSecurityProfiles(ctx context.Context, token string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range s.cat.Profiles() {
		g.Go(func() error {
			_, err := s.oc.SaveSecurityProfile(ctx, token, p)
			return remote("create-security-profiles", "securityprofiles.save:"+p.ID, err)
		})
	}
	return g.Wait()
}

// assignSecurityProfiles issues every assignment as one jointly awaited group: the base buyer
// profile for each seed buyer that already exists, each seller role at organization scope, and
// full access for the middleware user.
func (s *Seeder) assignSecurityProfiles(ctx context.Context, token string, buyers []platform.Buyer) error {
	const step = "assign-security-profiles"
	existing, err := s.existingBuyerIDs(ctx, token, buyers)
	if err != nil {
		return remote(step, "buyers.list", err)
	}
	admins, err := s.oc.ListAdminUsers(ctx, token, platform.Filters{"Username": s.cat.APIClients.Middleware.DefaultContextUser})
	if err != nil {
		return remote(step, "adminusers.list", err)
	}
	if len(admins) == 0 {
		return remote(step, "adminusers.list", fmt.Errorf("admin user %q not found", s.cat.APIClients.Middleware.DefaultContextUser))
	}

	var assignments []platform.SecurityProfileAssignment
	for _, id := range existing {
		assignments = append(assignments, platform.SecurityProfileAssignment{SecurityProfileID: s.cat.BaseBuyerProfile, BuyerID: id})
	}
	for _, role := range s.cat.SellerRoles {
		assignments = append(assignments, platform.SecurityProfileAssignment{SecurityProfileID: role})
	}
	assignments = append(assignments, platform.SecurityProfileAssignment{SecurityProfileID: s.cat.FullAccessProfile, UserID: admins[0].ID})

	g, ctx := errgroup.WithContext(ctx)
	for _, a := range assignments {
		g.Go(func() error {
			return remote(step, "securityprofiles.assign:"+a.SecurityProfileID, s.oc.SaveSecurityProfileAssignment(ctx, token, a))
		})
	}
	return g.Wait()
}

func (s *Seeder) createIncrementors(ctx context.Context, token string) error {
	for _, inc := range s.cat.PlatformIncrementors() {
		if _, err := s.oc.SaveIncrementor(ctx, token, inc); err != nil {
			return remote("create-incrementors", "incrementors.save:"+inc.ID, err)
		}
	}
	return nil
}

// createMessageSenders saves each sender and binds it to its scope: every existing seed buyer,
// the organization, or every existing seed supplier. Buyers and suppliers created later are
// bound as part of their creation.
func (s *Seeder) createMessageSenders(ctx context.Context, token string, buyers []platform.Buyer, suppliers []platform.Supplier) error {
	const step = "create-message-senders"
	buyerIDs, err := s.existingBuyerIDs(ctx, token, buyers)
	if err != nil {
		return remote(step, "buyers.list", err)
	}
	supplierIDs, err := s.existingSupplierIDs(ctx, token, suppliers)
	if err != nil {
		return remote(step, "suppliers.list", err)
	}
	for _, sender := range s.cat.Senders(s.cfg.MiddlewareBaseURL, s.cfg.WebhookHashKey) {
		saved, err := s.oc.SaveMessageSender(ctx, token, sender)
		if err != nil {
			return remote(step, "messagesenders.save:"+sender.ID, err)
		}
		var bindings []platform.MessageSenderAssignment
		switch s.scopeOf(saved.ID) {
		case catalog.ScopeBuyer:
			for _, id := range buyerIDs {
				bindings = append(bindings, platform.MessageSenderAssignment{MessageSenderID: saved.ID, BuyerID: id})
			}
		case catalog.ScopeSeller:
			bindings = append(bindings, platform.MessageSenderAssignment{MessageSenderID: saved.ID})
		case catalog.ScopeSupplier:
			for _, id := range supplierIDs {
				bindings = append(bindings, platform.MessageSenderAssignment{MessageSenderID: saved.ID, SupplierID: id})
			}
		}
		for _, b := range bindings {
			if err := s.oc.SaveMessageSenderAssignment(ctx, token, b); err != nil {
				return remote(step, "messagesenders.assign:"+saved.ID, err)
			}
		}
	}
	return nil
}

func (s *Seeder) scopeOf(senderID string) catalog.SenderScope {
	for _, m := range s.cat.MessageSenders {
		if m.ID == senderID {
			return m.Scope
		}
	}
	return ""
}

// createBuyers creates each buyer whose name is not taken yet.
func (s *Seeder) createBuyers(ctx context.Context, token string, buyers []platform.Buyer) error {
	for _, b := range buyers {
		_, exists, err := s.findBuyer(ctx, token, b.Name)
		if err != nil {
			return remote("create-buyers", "buyers.list", err)
		}
		if exists {
			s.log.Debugw("buyer exists", "name", b.Name)
			continue
		}
		if err := s.createBuyer(ctx, token, b); err != nil {
			return err
		}
	}
	return nil
}

// createBuyer creates the buyer with zero markup, its default catalog, and its base profile and
// email bindings. A blank ID is drawn from the buyer incrementor.
func (s *Seeder) createBuyer(ctx context.Context, token string, b platform.Buyer) error {
	const step = "create-buyers"
	if b.ID == "" {
		b.ID = "{buyerIncrementor}"
	}
	b.Xp.MarkupPercent = 0
	created, err := s.oc.CreateBuyer(ctx, token, b)
	if err != nil {
		return remote(step, "buyers.create", err)
	}
	if _, err := s.oc.SaveCatalog(ctx, token, platform.Catalog{ID: created.ID, Name: created.Name, Active: true}); err != nil {
		return remote(step, "catalogs.save", err)
	}
	if err := s.oc.SaveCatalogAssignment(ctx, token, platform.CatalogAssignment{
		CatalogID:         created.ID,
		BuyerID:           created.ID,
		ViewAllCategories: true,
		ViewAllProducts:   false,
	}); err != nil {
		return remote(step, "catalogs.assign", err)
	}
	if err := s.oc.SaveSecurityProfileAssignment(ctx, token, platform.SecurityProfileAssignment{
		SecurityProfileID: s.cat.BaseBuyerProfile,
		BuyerID:           created.ID,
	}); err != nil {
		return remote(step, "securityprofiles.assign", err)
	}
	if sender, ok := s.cat.SenderFor(catalog.ScopeBuyer); ok {
		if err := s.oc.SaveMessageSenderAssignment(ctx, token, platform.MessageSenderAssignment{MessageSenderID: sender.ID, BuyerID: created.ID}); err != nil {
			return remote(step, "messagesenders.assign", err)
		}
	}
	s.log.Infow("buyer created", "id", created.ID, "name", created.Name)
	return nil
}

// createXpIndices is best effort: the platform can answer a successful put with a duplicate-ID
// error, so failures are reported per index and never abort the run.
func (s *Seeder) createXpIndices(ctx context.Context, token string) []IndexResult {
	results := make([]IndexResult, 0, len(s.cat.XpIndices))
	for _, idx := range s.cat.XpIndices {
		err := s.oc.PutXpIndex(ctx, token, idx)
		switch {
		case err == nil:
			results = append(results, IndexResult{Index: idx})
		case platform.IsIDExists(err):
			s.log.Debugw("xp index already present", "thing_type", idx.ThingType, "key", idx.Key)
			results = append(results, IndexResult{Index: idx, Existing: true})
		default:
			s.log.Warnw("xp index not confirmed", "thing_type", idx.ThingType, "key", idx.Key, "err", err)
			results = append(results, IndexResult{Index: idx, Err: err})
		}
	}
	return results
}

func (s *Seeder) checkoutEvent(def catalog.EventDef, url string) platform.IntegrationEvent {
	cfg := make(map[string]any, len(s.cat.IntegrationEvents.ConfigData))
	for k, v := range s.cat.IntegrationEvents.ConfigData {
		cfg[k] = v
	}
	return platform.IntegrationEvent{
		ID:                      def.ID,
		Name:                    def.Name,
		EventType:               platform.EventTypeOrderCheckout,
		CustomImplementationUrl: url,
		HashKey:                 s.cfg.WebhookHashKey,
		ElevatedRoles:           []string{platform.RoleFullAccess},
		ConfigData:              cfg,
	}
}

// CreateAndAssignIntegrationEvents saves both checkout events, binds the local event to
// localClientID and the production event to every client in buyerClientIDs.
func (s *Seeder) CreateAndAssignIntegrationEvents(ctx context.Context, token string, buyerClientIDs []string, localClientID string) error {
	const step = "create-integration-events"
	events := s.cat.IntegrationEvents
	prod := s.checkoutEvent(events.Production, s.cfg.MiddlewareBaseURL)
	if _, err := s.oc.SaveIntegrationEvent(ctx, token, prod); err != nil {
		return remote(step, "integrationevents.save:"+prod.ID, err)
	}
	local := s.checkoutEvent(events.Local, s.cfg.LocalCheckoutURL)
	if _, err := s.oc.SaveIntegrationEvent(ctx, token, local); err != nil {
		return remote(step, "integrationevents.save:"+local.ID, err)
	}
	localID := local.ID
	if _, err := s.oc.PatchAPIClient(ctx, token, localClientID, platform.APIClientPatch{OrderCheckoutIntegrationEventID: &localID}); err != nil {
		return remote(step, "apiclients.patch:"+localClientID, err)
	}
	prodID := prod.ID
	err := batch.Run(ctx, s.batch, buyerClientIDs, func(ctx context.Context, id string) error {
		_, err := s.oc.PatchAPIClient(ctx, token, id, platform.APIClientPatch{OrderCheckoutIntegrationEventID: &prodID})
		return err
	})
	return remote(step, "apiclients.patch", err)
}

// createSuppliers creates each supplier whose name is not taken yet and binds supplier emails to it.
func (s *Seeder) createSuppliers(ctx context.Context, token string, suppliers []platform.Supplier) error {
	const step = "create-suppliers"
	sender, hasSender := s.cat.SenderFor(catalog.ScopeSupplier)
	for _, sp := range suppliers {
		_, exists, err := s.findSupplier(ctx, token, sp.Name)
		if err != nil {
			return remote(step, "suppliers.list", err)
		}
		if exists {
			s.log.Debugw("supplier exists", "name", sp.Name)
			continue
		}
		if sp.ID == "" {
			sp.ID = "{supplierIncrementor}"
		}
		created, err := s.oc.CreateSupplier(ctx, token, sp)
		if err != nil {
			return remote(step, "suppliers.create", err)
		}
		if hasSender {
			if err := s.oc.SaveMessageSenderAssignment(ctx, token, platform.MessageSenderAssignment{MessageSenderID: sender.ID, SupplierID: created.ID}); err != nil {
				return remote(step, "messagesenders.assign", err)
			}
		}
		s.log.Infow("supplier created", "id", created.ID, "name", created.Name)
	}
	return nil
}

func (s *Seeder) publishAssets(ctx context.Context) error {
	if s.rates != nil {
		if err := s.rates.Update(ctx); err != nil {
			return fmt.Errorf("update exchange rates: %w", err)
		}
	} else {
		s.log.Warnw("exchange rates not configured, skipping")
	}
	if s.translations != nil {
		if err := translations.PublishEnglish(ctx, s.translations); err != nil {
			return fmt.Errorf("publish translations: %w", err)
		}
	} else {
		s.log.Warnw("translations store not configured, skipping")
	}
	return nil
}
