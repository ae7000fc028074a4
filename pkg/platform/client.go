package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Client is the subset of the commerce platform API that provisioning consumes.
// Every call is scoped by the access token passed in; list calls walk all pages.
type Client interface {
	// Authenticate obtains a client-credentials token for the configured middleware client.
	Authenticate(ctx context.Context) (string, error)

	SaveAdminUser(ctx context.Context, token string, u User) (User, error)
	ListAdminUsers(ctx context.Context, token string, f Filters) ([]User, error)

	ListAPIClients(ctx context.Context, token string, f Filters) ([]APIClient, error)
	CreateAPIClient(ctx context.Context, token string, c APIClient) (APIClient, error)
	SaveAPIClient(ctx context.Context, token, id string, c APIClient) (APIClient, error)
	PatchAPIClient(ctx context.Context, token, id string, p APIClientPatch) (APIClient, error)

	SaveSecurityProfile(ctx context.Context, token string, p SecurityProfile) (SecurityProfile, error)
	SaveSecurityProfileAssignment(ctx context.Context, token string, a SecurityProfileAssignment) error

	SaveIncrementor(ctx context.Context, token string, i Incrementor) (Incrementor, error)

	SaveMessageSender(ctx context.Context, token string, s MessageSender) (MessageSender, error)
	SaveMessageSenderAssignment(ctx context.Context, token string, a MessageSenderAssignment) error
	ListMessageSenders(ctx context.Context, token string) ([]MessageSender, error)
	DeleteMessageSender(ctx context.Context, token, id string) error

	ListBuyers(ctx context.Context, token string, f Filters) ([]Buyer, error)
	CreateBuyer(ctx context.Context, token string, b Buyer) (Buyer, error)
	SaveCatalog(ctx context.Context, token string, c Catalog) (Catalog, error)
	SaveCatalogAssignment(ctx context.Context, token string, a CatalogAssignment) error

	ListSuppliers(ctx context.Context, token string, f Filters) ([]Supplier, error)
	CreateSupplier(ctx context.Context, token string, s Supplier) (Supplier, error)
	PatchSupplier(ctx context.Context, token, id string, p SupplierPatch) (Supplier, error)

	PutXpIndex(ctx context.Context, token string, idx XpIndex) error

	SaveIntegrationEvent(ctx context.Context, token string, e IntegrationEvent) (IntegrationEvent, error)
	ListIntegrationEvents(ctx context.Context, token string) ([]IntegrationEvent, error)
	DeleteIntegrationEvent(ctx context.Context, token, id string) error
}

// ErrorDetail is one entry of the platform's error envelope.
type ErrorDetail struct {
	ErrorCode string `json:"ErrorCode"`
	Message   string `json:"Message"`
}

// APIError is returned for any non-2xx platform response.
type APIError struct {
	Status int
	Method string
	Path   string
	Errors []ErrorDetail
}

func (e *APIError) Error() string {
	var msgs []string
	for _, d := range e.Errors {
		msgs = append(msgs, d.ErrorCode+": "+d.Message)
	}
	if len(msgs) == 0 {
		msgs = append(msgs, http.StatusText(e.Status))
	}
	return fmt.Sprintf("platform %s %s: %d %s", e.Method, e.Path, e.Status, strings.Join(msgs, "; "))
}

// HasCode reports whether the platform reported the given error code.
func (e *APIError) HasCode(code string) bool {
	for _, d := range e.Errors {
		if d.ErrorCode == code {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err is a platform 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsIDExists reports whether err is the platform's duplicate-ID error.
func IsIDExists(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.Status == http.StatusConflict || apiErr.HasCode("IdExists"))
}
