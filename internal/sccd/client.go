// Package sccd is a client for the SCCD (Maximo OSLC) work order resource.
package sccd

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"git.home.luguber.info/inful/wodesk/internal/config"
	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
	"git.home.luguber.info/inful/wodesk/internal/logfields"
	"git.home.luguber.info/inful/wodesk/internal/workorder"
)

const (
	resourcePath = "oslc/os/sidwo"
	pageSize     = 60
	maxPages     = 50
	userAgent    = "wodesk/1.0"
)

// Client talks to one SCCD instance on behalf of one work order owner.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	owner      string
	username   string
	password   string
	statuses   []string

	toLocal  map[string]workorder.State
	toRemote map[workorder.State]string
}

// New creates a client from the remote configuration. A nil httpClient
// builds one honoring the configured timeout and TLS settings.
func New(cfg config.RemoteConfig, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.ConfigError("remote.base_url must be an absolute URL").
			WithCause(err).
			WithContext("base_url", cfg.BaseURL).
			Build()
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for lab instances
		}
		httpClient = &http.Client{Timeout: cfg.Timeout, Transport: transport}
	}

	stateMap := cfg.StateMap
	if len(stateMap) == 0 {
		stateMap = config.DefaultStateMap()
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    base,
		owner:      cfg.Owner,
		username:   cfg.Username,
		password:   cfg.Password,
		statuses:   cfg.Statuses,
		toLocal:    make(map[string]workorder.State, len(stateMap)),
		toRemote:   make(map[workorder.State]string, len(stateMap)),
	}
	for remote, local := range stateMap {
		c.toLocal[remote] = workorder.State(local)
		c.toRemote[workorder.State(local)] = remote
	}
	return c, nil
}

// LocalState maps an SCCD status to the local state. Unknown statuses pass through.
func (c *Client) LocalState(status string) workorder.State {
	if s, ok := c.toLocal[status]; ok {
		return s
	}
	return workorder.State(status)
}

// RemoteStatus maps a local state to the SCCD status. Unknown states pass through.
func (c *Client) RemoteStatus(state workorder.State) string {
	if s, ok := c.toRemote[state]; ok {
		return s
	}
	return string(state)
}

func (c *Client) resourceURL(query url.Values) string {
	u := c.baseURL.JoinPath(resourcePath)
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, target string, body any) (*http.Request, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, errors.RemoteError("failed to marshal request body").WithCause(err).Build()
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, errors.RemoteError("failed to create request").
			WithCause(err).
			WithContext("method", method).
			WithContext("url", target).
			Build()
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		// SCCD merges the posted properties into the resource.
		req.Header.Set("x-method-override", "PATCH")
		req.Header.Set("patchtype", "MERGE")
		req.Header.Set("properties", "*")
	}
	return req, nil
}

// do executes req and decodes a JSON response into result when non-nil.
func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NetworkError("failed to reach SCCD").
			WithCause(err).
			WithContext("method", req.Method).
			WithContext("url", redact(req.URL)).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	slog.Debug("SCCD request",
		logfields.Method(req.Method),
		logfields.URL(redact(req.URL)),
		logfields.Status(resp.StatusCode))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		limitedBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		bodyStr := strings.ReplaceAll(string(limitedBody), "\n", " ")

		b := errors.RemoteError(fmt.Sprintf("SCCD API error: %s", resp.Status))
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			b = errors.AuthError(fmt.Sprintf("SCCD rejected credentials: %s", resp.Status))
		case resp.StatusCode == http.StatusNotFound:
			b = errors.NewError(errors.CategoryNotFound, fmt.Sprintf("SCCD resource not found: %s", resp.Status))
		case resp.StatusCode == http.StatusTooManyRequests:
			b = b.WithRetry(errors.RetryRateLimit)
		case resp.StatusCode < 500:
			// Client errors will not succeed on retry.
			b = b.WithRetry(errors.RetryNever)
		}
		return b.WithContext("code", resp.StatusCode).
			WithContext("url", redact(req.URL)).
			WithContext("response", bodyStr).
			Build()
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return errors.RemoteError("failed to decode SCCD response").WithCause(err).Build()
		}
	}
	return nil
}

// redact drops the query, which carries the owner filter, from logged URLs.
func redact(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.User = nil
	return c.String()
}
