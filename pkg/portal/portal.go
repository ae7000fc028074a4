// Package portal talks to the platform's developer portal, which owns organizations and
// issues organization-scoped tokens to portal users.
package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"headstart/pkg/metrics"
)

// ErrNotFound is returned when the portal does not know the organization or the caller cannot see it.
var ErrNotFound = errors.New("portal: organization not found")

type Organization struct {
	ID     string `json:"Id"`
	Name   string `json:"Name"`
	Active bool   `json:"Active"`
	Region string `json:"Region,omitempty"`
}

// Service is the portal surface used while seeding.
type Service interface {
	Login(ctx context.Context, username, password string) (string, error)
	GetOrgToken(ctx context.Context, orgID, devToken string) (string, error)
	GetOrganization(ctx context.Context, orgID, devToken string) (Organization, error)
}

type Client struct {
	baseURL string
	hc      *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 30 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var out tokenResponse
	if err := c.send(req, "portal.login", &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errors.New("portal: login returned no token")
	}
	return out.AccessToken, nil
}

func (c *Client) GetOrgToken(ctx context.Context, orgID, devToken string) (string, error) {
	req, err := c.get(ctx, "/organizations/"+url.PathEscape(orgID)+"/token", devToken)
	if err != nil {
		return "", err
	}
	var out tokenResponse
	if err := c.send(req, "portal.org_token", &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errors.New("portal: organization token response carried no token")
	}
	return out.AccessToken, nil
}

func (c *Client) GetOrganization(ctx context.Context, orgID, devToken string) (Organization, error) {
	req, err := c.get(ctx, "/organizations/"+url.PathEscape(orgID), devToken)
	if err != nil {
		return Organization{}, err
	}
	var out Organization
	if err := c.send(req, "portal.organization", &out); err != nil {
		return Organization{}, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path, token string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

// send labels metrics with op; errors name the request instead, since callers add their own context.
func (c *Client) send(req *http.Request, op string, out any) (err error) {
	defer func() { metrics.RemoteCalls.WithLabelValues(op, metrics.Outcome(err)).Inc() }()
	req.Header.Set("Accept", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("portal %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden:
		return ErrNotFound
	case resp.StatusCode >= 300:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("portal %s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
