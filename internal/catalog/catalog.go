// Package catalog holds the static tables provisioning applies to every organization:
// security profiles, seller roles, message senders, incrementors, xp indices, the
// well-known API clients and the checkout integration events.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"headstart/pkg/platform"
)

//go:embed catalog.yaml
var raw []byte

type Profile struct {
	ID          string   `yaml:"id"`
	CustomRoles []string `yaml:"custom_roles"`
	Roles       []string `yaml:"roles"`
}

// SenderScope decides what a message sender is bound to after it is saved.
type SenderScope string

const (
	ScopeBuyer    SenderScope = "buyer"
	ScopeSeller   SenderScope = "seller"
	ScopeSupplier SenderScope = "supplier"
)

type MessageSender struct {
	ID           string      `yaml:"id"`
	Name         string      `yaml:"name"`
	Scope        SenderScope `yaml:"scope"`
	MessageTypes []string    `yaml:"message_types"`
}

type Incrementor struct {
	ID               string `yaml:"id"`
	Name             string `yaml:"name"`
	LastNumber       int    `yaml:"last_number"`
	LeftPaddingCount int    `yaml:"left_padding_count"`
}

type APIClientDef struct {
	AppName            string `yaml:"app_name"`
	AllowSeller        bool   `yaml:"allow_seller"`
	AllowAnyBuyer      bool   `yaml:"allow_any_buyer"`
	AllowAnySupplier   bool   `yaml:"allow_any_supplier"`
	DefaultContextUser string `yaml:"default_context_user"`
	GenerateSecret     bool   `yaml:"generate_secret"`
}

type APIClients struct {
	AdminUI              APIClientDef `yaml:"admin_ui"`
	BuyerUI              APIClientDef `yaml:"buyer_ui"`
	BuyerUILocal         APIClientDef `yaml:"buyer_ui_local"`
	Middleware           APIClientDef `yaml:"middleware"`
	AccessTokenDuration  int          `yaml:"access_token_duration"`
	RefreshTokenDuration int          `yaml:"refresh_token_duration"`
}

// All returns the four definitions in a stable order.
func (c APIClients) All() []APIClientDef {
	return []APIClientDef{c.Middleware, c.AdminUI, c.BuyerUI, c.BuyerUILocal}
}

type EventDef struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type IntegrationEvents struct {
	Production EventDef       `yaml:"production"`
	Local      EventDef       `yaml:"local"`
	ConfigData map[string]any `yaml:"config_data"`
}

type Catalog struct {
	FullAccessProfile        string             `yaml:"full_access_profile"`
	BaseBuyerProfile         string             `yaml:"base_buyer_profile"`
	SecurityProfiles         []Profile          `yaml:"security_profiles"`
	SellerRoles              []string           `yaml:"seller_roles"`
	MessageSenders           []MessageSender    `yaml:"message_senders"`
	Incrementors             []Incrementor      `yaml:"incrementors"`
	XpIndices                []platform.XpIndex `yaml:"xp_indices"`
	APIClients               APIClients         `yaml:"api_clients"`
	StorefrontAppNamePattern string             `yaml:"storefront_app_name_pattern"`
	IntegrationEvents        IntegrationEvents  `yaml:"integration_events"`
	DefaultBuyer             platform.Buyer     `yaml:"default_buyer"`
}

var (
	once    sync.Once
	loaded  *Catalog
	loadErr error
)

// Default returns the embedded catalog, parsed on first use.
func Default() (*Catalog, error) {
	once.Do(func() { loaded, loadErr = Parse(raw) })
	return loaded, loadErr
}

// MustDefault is Default for process start-up.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse decodes and validates a catalog document.
func Parse(b []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if c.FullAccessProfile == "" {
		return fmt.Errorf("full_access_profile is required")
	}
	ids := map[string]bool{}
	for _, p := range c.SecurityProfiles {
		if p.ID == "" {
			return fmt.Errorf("security profile without id")
		}
		if ids[p.ID] {
			return fmt.Errorf("duplicate security profile %q", p.ID)
		}
		ids[p.ID] = true
	}
	if ids[c.FullAccessProfile] {
		return fmt.Errorf("full access profile %q must not be a domain profile", c.FullAccessProfile)
	}
	if !ids[c.BaseBuyerProfile] {
		return fmt.Errorf("base buyer profile %q is not defined", c.BaseBuyerProfile)
	}
	for _, r := range c.SellerRoles {
		if !ids[r] {
			return fmt.Errorf("seller role %q has no security profile", r)
		}
	}
	for _, s := range c.MessageSenders {
		switch s.Scope {
		case ScopeBuyer, ScopeSeller, ScopeSupplier:
		default:
			return fmt.Errorf("message sender %q: unknown scope %q", s.ID, s.Scope)
		}
	}
	for _, d := range c.APIClients.All() {
		if strings.TrimSpace(d.AppName) == "" {
			return fmt.Errorf("api client without app_name")
		}
	}
	if c.IntegrationEvents.Production.ID == "" || c.IntegrationEvents.Local.ID == "" {
		return fmt.Errorf("both checkout integration events need an id")
	}
	if c.DefaultBuyer.Name == "" {
		return fmt.Errorf("default_buyer.name is required")
	}
	return nil
}

// Profiles renders the domain profiles plus the full-access profile.
func (c *Catalog) Profiles() []platform.SecurityProfile {
	out := make([]platform.SecurityProfile, 0, len(c.SecurityProfiles)+1)
	for _, p := range c.SecurityProfiles {
		out = append(out, platform.SecurityProfile{
			ID:          p.ID,
			Name:        p.ID,
			Roles:       nonNil(p.Roles),
			CustomRoles: nonNil(p.CustomRoles),
		})
	}
	out = append(out, platform.SecurityProfile{
		ID:          c.FullAccessProfile,
		Name:        c.FullAccessProfile,
		Roles:       []string{platform.RoleFullAccess},
		CustomRoles: []string{},
	})
	return out
}

// Senders renders the message senders for a middleware deployment.
func (c *Catalog) Senders(middlewareBaseURL, sharedKey string) []platform.MessageSender {
	out := make([]platform.MessageSender, 0, len(c.MessageSenders))
	for _, s := range c.MessageSenders {
		out = append(out, platform.MessageSender{
			ID:           s.ID,
			Name:         s.Name,
			MessageTypes: nonNil(s.MessageTypes),
			URL:          middlewareBaseURL + "/messagesenders/{messagetype}",
			SharedKey:    sharedKey,
		})
	}
	return out
}

// SenderFor returns the sender bound to the given scope.
func (c *Catalog) SenderFor(scope SenderScope) (MessageSender, bool) {
	for _, s := range c.MessageSenders {
		if s.Scope == scope {
			return s, true
		}
	}
	return MessageSender{}, false
}

func (c *Catalog) PlatformIncrementors() []platform.Incrementor {
	out := make([]platform.Incrementor, 0, len(c.Incrementors))
	for _, i := range c.Incrementors {
		out = append(out, platform.Incrementor(i))
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
