// Package platform is the typed surface of the remote commerce platform (OrderCloud) API used by provisioning.
package platform

// Meta is the paging envelope returned by list endpoints.
type Meta struct {
	Page       int `json:"Page"`
	PageSize   int `json:"PageSize"`
	TotalCount int `json:"TotalCount"`
	TotalPages int `json:"TotalPages"`
}

// ListPage is one page of a list response.
type ListPage[T any] struct {
	Meta  Meta `json:"Meta"`
	Items []T  `json:"Items"`
}

// Filters are equality or wildcard filters keyed by field path ("AppName", "xp.Type").
// A value of "*" matches any non-empty value; other values may contain "*" wildcards.
// "|", a leading "!" and leading "<", ">" are read as operators.
type Filters map[string]string

type User struct {
	ID        string `json:"ID,omitempty"`
	Username  string `json:"Username"`
	Password  string `json:"Password,omitempty"`
	FirstName string `json:"FirstName"`
	LastName  string `json:"LastName"`
	Email     string `json:"Email"`
	Active    bool   `json:"Active"`
}

type APIClient struct {
	ID                              string  `json:"ID,omitempty"`
	ClientSecret                    string  `json:"ClientSecret,omitempty"`
	AppName                         string  `json:"AppName"`
	Active                          bool    `json:"Active"`
	AccessTokenDuration             int     `json:"AccessTokenDuration"`
	RefreshTokenDuration            int     `json:"RefreshTokenDuration"`
	DefaultContextUserName          string  `json:"DefaultContextUserName,omitempty"`
	AllowAnyBuyer                   bool    `json:"AllowAnyBuyer"`
	AllowAnySupplier                bool    `json:"AllowAnySupplier"`
	AllowSeller                     bool    `json:"AllowSeller"`
	OrderCheckoutIntegrationEventID *string `json:"OrderCheckoutIntegrationEventID,omitempty"`
}

// APIClientPatch always serializes OrderCheckoutIntegrationEventID; nil clears the binding.
type APIClientPatch struct {
	OrderCheckoutIntegrationEventID *string `json:"OrderCheckoutIntegrationEventID"`
}

type SecurityProfile struct {
	ID          string   `json:"ID"`
	Name        string   `json:"Name"`
	Roles       []string `json:"Roles"`
	CustomRoles []string `json:"CustomRoles"`
}

// SecurityProfileAssignment binds a profile to the organization (no party IDs), a buyer, a supplier or a user.
type SecurityProfileAssignment struct {
	SecurityProfileID string `json:"SecurityProfileID"`
	BuyerID           string `json:"BuyerID,omitempty"`
	SupplierID        string `json:"SupplierID,omitempty"`
	UserID            string `json:"UserID,omitempty"`
	UserGroupID       string `json:"UserGroupID,omitempty"`
}

type Incrementor struct {
	ID               string `json:"ID"`
	Name             string `json:"Name"`
	LastNumber       int    `json:"LastNumber"`
	LeftPaddingCount int    `json:"LeftPaddingCount"`
}

type MessageSender struct {
	ID           string   `json:"ID"`
	Name         string   `json:"Name"`
	MessageTypes []string `json:"MessageTypes"`
	URL          string   `json:"URL"`
	SharedKey    string   `json:"SharedKey,omitempty"`
}

type MessageSenderAssignment struct {
	MessageSenderID string `json:"MessageSenderID"`
	BuyerID         string `json:"BuyerID,omitempty"`
	SupplierID      string `json:"SupplierID,omitempty"`
}

type BuyerXp struct {
	MarkupPercent int `json:"MarkupPercent" yaml:"markup_percent"`
}

type Buyer struct {
	ID               string  `json:"ID,omitempty" yaml:"id"`
	Name             string  `json:"Name" yaml:"name"`
	Active           bool    `json:"Active" yaml:"active"`
	DefaultCatalogID string  `json:"DefaultCatalogID,omitempty" yaml:"default_catalog_id"`
	Xp               BuyerXp `json:"xp" yaml:"xp"`
}

type Supplier struct {
	ID     string         `json:"ID,omitempty" yaml:"id"`
	Name   string         `json:"Name" yaml:"name"`
	Active bool           `json:"Active" yaml:"active"`
	Xp     map[string]any `json:"xp,omitempty" yaml:"xp"`
}

type SupplierPatch struct {
	Xp map[string]any `json:"xp"`
}

type Catalog struct {
	ID     string `json:"ID"`
	Name   string `json:"Name"`
	Active bool   `json:"Active"`
}

type CatalogAssignment struct {
	CatalogID         string `json:"CatalogID"`
	BuyerID           string `json:"BuyerID"`
	ViewAllCategories bool   `json:"ViewAllCategories"`
	ViewAllProducts   bool   `json:"ViewAllProducts"`
}

// XpIndex makes an xp field filterable for the given thing type.
type XpIndex struct {
	ThingType string `json:"ThingType" yaml:"thing_type"`
	Key       string `json:"Key" yaml:"key"`
}

type IntegrationEvent struct {
	ID                      string         `json:"ID"`
	Name                    string         `json:"Name"`
	EventType               string         `json:"EventType"`
	CustomImplementationUrl string         `json:"CustomImplementationUrl"`
	HashKey                 string         `json:"HashKey,omitempty"`
	ElevatedRoles           []string       `json:"ElevatedRoles,omitempty"`
	ConfigData              map[string]any `json:"ConfigData,omitempty"`
}

const (
	RoleFullAccess = "FullAccess"

	EventTypeOrderCheckout = "OrderCheckout"
)
