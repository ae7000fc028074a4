package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"headstart/pkg/metrics"
)

const listPageSize = 100

// HTTPConfig configures the REST client.
type HTTPConfig struct {
	APIURL       string
	AuthURL      string
	ClientID     string
	ClientSecret string
	RateLimit    float64 // requests per second, 0 = unlimited
	Timeout      time.Duration
}

// HTTPClient implements Client against the platform's REST API.
type HTTPClient struct {
	cfg     HTTPConfig
	hc      *http.Client
	limiter *rate.Limiter
	tokens  TokenCache
	log     *zap.SugaredLogger
}

// NewHTTPClient builds a REST client. A nil cache falls back to an in-process cache.
func NewHTTPClient(cfg HTTPConfig, tokens TokenCache, log *zap.SugaredLogger) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.APIURL) == "" {
		return nil, errors.New("platform api url is required")
	}
	if _, err := url.Parse(cfg.APIURL); err != nil {
		return nil, fmt.Errorf("invalid platform api url: %w", err)
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = cfg.APIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if tokens == nil {
		tokens = NewMemoryTokenCache()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit)+1)
	}
	return &HTTPClient{
		cfg:     cfg,
		hc:      &http.Client{Timeout: cfg.Timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		limiter: limiter,
		tokens:  tokens,
		log:     log,
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *HTTPClient) Authenticate(ctx context.Context) (string, error) {
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return "", errors.New("platform client credentials are not configured")
	}
	if tok, ok := c.tokens.Get(ctx, c.cfg.ClientID); ok {
		return tok, nil
	}
	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("grant_type", "client_credentials")
	form.Set("scope", RoleFullAccess)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.AuthURL, "/")+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var out tokenResponse
	if err := c.send(req, "authenticate", &out); err != nil {
		return "", err
	}
	if ttl, err := tokenTTL(out.AccessToken, out.ExpiresIn, time.Now()); err == nil {
		c.tokens.Set(ctx, c.cfg.ClientID, out.AccessToken, ttl)
	}
	return out.AccessToken, nil
}

func (c *HTTPClient) do(ctx context.Context, op, method, path, token string, query url.Values, body, out any) error {
	full := strings.TrimRight(c.cfg.APIURL, "/") + "/v1" + path
	if enc := query.Encode(); enc != "" {
		full += "?" + enc
	}
	var reqBody io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, full, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, op, out)
}

func (c *HTTPClient) send(req *http.Request, op string, out any) (err error) {
	defer func() { metrics.RemoteCalls.WithLabelValues(op, metrics.Outcome(err)).Inc() }()
	if err := c.limiter.Wait(req.Context()); err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("platform %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Method: req.Method, Path: req.URL.Path}
		var envelope struct {
			Errors []ErrorDetail `json:"Errors"`
		}
		if b, _ := io.ReadAll(resp.Body); len(b) > 0 {
			_ = json.Unmarshal(b, &envelope)
		}
		apiErr.Errors = envelope.Errors
		c.log.Debugw("platform error", "op", op, "status", resp.StatusCode, "path", req.URL.Path)
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func listAll[T any](ctx context.Context, c *HTTPClient, op, path, token string, f Filters) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		q := url.Values{}
		for k, v := range f {
			q.Set(k, v)
		}
		q.Set("page", strconv.Itoa(page))
		q.Set("pageSize", strconv.Itoa(listPageSize))
		var p ListPage[T]
		if err := c.do(ctx, op, http.MethodGet, path, token, q, nil, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Items...)
		if page >= p.Meta.TotalPages {
			return all, nil
		}
	}
}

func esc(id string) string { return url.PathEscape(id) }

func (c *HTTPClient) SaveAdminUser(ctx context.Context, token string, u User) (User, error) {
	var out User
	err := c.do(ctx, "adminusers.save", http.MethodPut, "/adminusers/"+esc(u.ID), token, nil, u, &out)
	return out, err
}

func (c *HTTPClient) ListAdminUsers(ctx context.Context, token string, f Filters) ([]User, error) {
	return listAll[User](ctx, c, "adminusers.list", "/adminusers", token, f)
}

func (c *HTTPClient) ListAPIClients(ctx context.Context, token string, f Filters) ([]APIClient, error) {
	return listAll[APIClient](ctx, c, "apiclients.list", "/apiclients", token, f)
}

func (c *HTTPClient) CreateAPIClient(ctx context.Context, token string, ac APIClient) (APIClient, error) {
	var out APIClient
	err := c.do(ctx, "apiclients.create", http.MethodPost, "/apiclients", token, nil, ac, &out)
	return out, err
}

func (c *HTTPClient) SaveAPIClient(ctx context.Context, token, id string, ac APIClient) (APIClient, error) {
	var out APIClient
	err := c.do(ctx, "apiclients.save", http.MethodPut, "/apiclients/"+esc(id), token, nil, ac, &out)
	return out, err
}

func (c *HTTPClient) PatchAPIClient(ctx context.Context, token, id string, p APIClientPatch) (APIClient, error) {
	var out APIClient
	err := c.do(ctx, "apiclients.patch", http.MethodPatch, "/apiclients/"+esc(id), token, nil, p, &out)
	return out, err
}

func (c *HTTPClient) SaveSecurityProfile(ctx context.Context, token string, p SecurityProfile) (SecurityProfile, error) {
	var out SecurityProfile
	err := c.do(ctx, "securityprofiles.save", http.MethodPut, "/securityprofiles/"+esc(p.ID), token, nil, p, &out)
	return out, err
}

func (c *HTTPClient) SaveSecurityProfileAssignment(ctx context.Context, token string, a SecurityProfileAssignment) error {
	return c.do(ctx, "securityprofiles.assign", http.MethodPost, "/securityprofiles/assignments", token, nil, a, nil)
}

func (c *HTTPClient) SaveIncrementor(ctx context.Context, token string, i Incrementor) (Incrementor, error) {
	var out Incrementor
	err := c.do(ctx, "incrementors.save", http.MethodPut, "/incrementors/"+esc(i.ID), token, nil, i, &out)
	return out, err
}

func (c *HTTPClient) SaveMessageSender(ctx context.Context, token string, s MessageSender) (MessageSender, error) {
	var out MessageSender
	err := c.do(ctx, "messagesenders.save", http.MethodPut, "/messagesenders/"+esc(s.ID), token, nil, s, &out)
	return out, err
}

func (c *HTTPClient) SaveMessageSenderAssignment(ctx context.Context, token string, a MessageSenderAssignment) error {
	return c.do(ctx, "messagesenders.assign", http.MethodPost, "/messagesenders/assignments", token, nil, a, nil)
}

func (c *HTTPClient) ListMessageSenders(ctx context.Context, token string) ([]MessageSender, error) {
	return listAll[MessageSender](ctx, c, "messagesenders.list", "/messagesenders", token, nil)
}

func (c *HTTPClient) DeleteMessageSender(ctx context.Context, token, id string) error {
	return c.do(ctx, "messagesenders.delete", http.MethodDelete, "/messagesenders/"+esc(id), token, nil, nil, nil)
}

func (c *HTTPClient) ListBuyers(ctx context.Context, token string, f Filters) ([]Buyer, error) {
	return listAll[Buyer](ctx, c, "buyers.list", "/buyers", token, f)
}

func (c *HTTPClient) CreateBuyer(ctx context.Context, token string, b Buyer) (Buyer, error) {
	var out Buyer
	err := c.do(ctx, "buyers.create", http.MethodPost, "/buyers", token, nil, b, &out)
	return out, err
}

func (c *HTTPClient) SaveCatalog(ctx context.Context, token string, cat Catalog) (Catalog, error) {
	var out Catalog
	err := c.do(ctx, "catalogs.save", http.MethodPut, "/catalogs/"+esc(cat.ID), token, nil, cat, &out)
	return out, err
}

func (c *HTTPClient) SaveCatalogAssignment(ctx context.Context, token string, a CatalogAssignment) error {
	return c.do(ctx, "catalogs.assign", http.MethodPost, "/catalogs/assignments", token, nil, a, nil)
}

func (c *HTTPClient) ListSuppliers(ctx context.Context, token string, f Filters) ([]Supplier, error) {
	return listAll[Supplier](ctx, c, "suppliers.list", "/suppliers", token, f)
}

func (c *HTTPClient) CreateSupplier(ctx context.Context, token string, s Supplier) (Supplier, error) {
	var out Supplier
	err := c.do(ctx, "suppliers.create", http.MethodPost, "/suppliers", token, nil, s, &out)
	return out, err
}

func (c *HTTPClient) PatchSupplier(ctx context.Context, token, id string, p SupplierPatch) (Supplier, error) {
	var out Supplier
	err := c.do(ctx, "suppliers.patch", http.MethodPatch, "/suppliers/"+esc(id), token, nil, p, &out)
	return out, err
}

func (c *HTTPClient) PutXpIndex(ctx context.Context, token string, idx XpIndex) error {
	return c.do(ctx, "xpindices.put", http.MethodPut, "/xpindices", token, nil, idx, nil)
}

func (c *HTTPClient) SaveIntegrationEvent(ctx context.Context, token string, e IntegrationEvent) (IntegrationEvent, error) {
	var out IntegrationEvent
	err := c.do(ctx, "integrationevents.save", http.MethodPut, "/integrationEvents/"+esc(e.ID), token, nil, e, &out)
	return out, err
}

func (c *HTTPClient) ListIntegrationEvents(ctx context.Context, token string) ([]IntegrationEvent, error) {
	return listAll[IntegrationEvent](ctx, c, "integrationevents.list", "/integrationEvents", token, nil)
}

func (c *HTTPClient) DeleteIntegrationEvent(ctx context.Context, token, id string) error {
	return c.do(ctx, "integrationevents.delete", http.MethodDelete, "/integrationEvents/"+esc(id), token, nil, nil, nil)
}
