// Package siteapi is a page store backed by the school website HTTP API.
package siteapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"pagebuilder/internal/domain"
)

// TenantHeader carries the school subdomain on every request.
const TenantHeader = "X-Tenant-Subdomain"

// TenantSource supplies the bearer token and the tenant subdomain.
// tenant.Store implements it.
type TenantSource interface {
	oauth2.TokenSource
	Subdomain() string
}

type Client struct {
	baseURL string
	tenant  TenantSource
	http    *http.Client
}

// New creates a client for the API at baseURL. The token is read from
// tenant on every request, so logging in or out takes effect immediately.
func New(baseURL string, tenant TenantSource, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tenant:  tenant,
		http: &http.Client{
			Timeout: timeout,
			Transport: &oauth2.Transport{
				Source: tenant,
				Base:   http.DefaultTransport,
			},
		},
	}
}

func (c *Client) GetPage(ctx context.Context, id string) (*domain.Page, error) {
	var page domain.Page
	if err := c.do(ctx, http.MethodGet, "/website/pages/"+url.PathEscape(id), nil, &page); err != nil {
		return nil, fmt.Errorf("get page %s: %w", id, err)
	}
	return &page, nil
}

func (c *Client) ListPages(ctx context.Context) ([]domain.Page, error) {
	var pages []domain.Page
	if err := c.do(ctx, http.MethodGet, "/website/pages", nil, &pages); err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return pages, nil
}

func (c *Client) CreatePage(ctx context.Context, p *domain.Page) error {
	if err := c.do(ctx, http.MethodPost, "/website/pages", p, p); err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	return nil
}

// SaveSections submits the full section list; the API replaces every
// section of the page.
func (c *Client) SaveSections(ctx context.Context, pageID string, sections []domain.Section) error {
	body := domain.PageUpdate{Sections: sections}
	if err := c.do(ctx, http.MethodPut, "/website/pages/"+url.PathEscape(pageID), body, nil); err != nil {
		return fmt.Errorf("save page %s: %w", pageID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sub := c.tenant.Subdomain(); sub != "" {
		req.Header.Set(TenantHeader, sub)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	logrus.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("site api request")

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrPageNotFound
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
