// Package client talks to the procurement API over HTTP and websocket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"procurement/internal/apperr"
	"procurement/internal/workflow"

	"go.uber.org/zap"
)

// TokenSource supplies the bearer token for requests.
type TokenSource interface {
	Token() string
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
}

// do sends a JSON request and decodes the envelope's data into out.
// Transport failures are returned as is so the caller can classify them.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	c.log.Debug("api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	var (
		env       envelope
		decodeErr error
	)
	if len(raw) > 0 {
		decodeErr = json.Unmarshal(raw, &env)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return apperr.FromStatus("", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out tokenResponse
	if err := c.do(ctx, http.MethodPost, "/login", loginRequest{Email: email, Password: password}, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// Me describes the signed-in user.
type Me struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

func (c *Client) Me(ctx context.Context) (Me, error) {
	var out Me
	err := c.do(ctx, http.MethodGet, "/me", nil, &out)
	return out, err
}

// Documents returns the API of one document kind.
func (c *Client) Documents(kind workflow.Kind) *Documents {
	return &Documents{c: c, kind: kind, base: "/api/" + kind.Resource()}
}

// Documents implements the executor's persistence API for one kind.
type Documents struct {
	c    *Client
	kind workflow.Kind
	base string
}

type page struct {
	Items []workflow.Entity `json:"items"`
	Total int64             `json:"total"`
}

func (d *Documents) List(ctx context.Context, filter workflow.ListFilter) ([]workflow.Entity, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", filter.Status.String())
	}
	if filter.Query != "" {
		q.Set("q", filter.Query)
	}
	if filter.Page > 0 {
		q.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}

	path := d.base
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out page
	if err := d.c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (d *Documents) Get(ctx context.Context, id string) (workflow.Entity, error) {
	var out workflow.Entity
	err := d.c.do(ctx, http.MethodGet, d.base+"/"+url.PathEscape(id), nil, &out)
	return out, err
}

// Actions returns the actions the API offers the caller for id.
func (d *Documents) Actions(ctx context.Context, id string) ([]workflow.StatusAction, error) {
	var out []workflow.StatusAction
	err := d.c.do(ctx, http.MethodGet, d.base+"/"+url.PathEscape(id)+"/actions", nil, &out)
	return out, err
}

func (d *Documents) Create(ctx context.Context, payload any) (workflow.Entity, error) {
	var out workflow.Entity
	err := d.c.do(ctx, http.MethodPost, d.base, payload, &out)
	return out, err
}

// Update replaces the content of an editable document. payload is the full
// request body: title, party_name, currency and the kind-specific payload.
func (d *Documents) Update(ctx context.Context, id string, payload any) (workflow.Entity, error) {
	var out workflow.Entity
	err := d.c.do(ctx, http.MethodPut, d.base+"/"+url.PathEscape(id), payload, &out)
	return out, err
}

type statusRequest struct {
	Status workflow.Status `json:"status"`
}

func (d *Documents) UpdateStatus(ctx context.Context, id string, status workflow.Status) (workflow.Entity, error) {
	var out workflow.Entity
	err := d.c.do(ctx, http.MethodPatch, d.base+"/"+url.PathEscape(id)+"/status", statusRequest{Status: status}, &out)
	return out, err
}

type approvalRequest struct {
	Decision workflow.Decision `json:"decision"`
	Reason   string            `json:"reason,omitempty"`
}

func (d *Documents) Approve(ctx context.Context, id string, decision workflow.Decision, reason string) (workflow.Entity, error) {
	var out workflow.Entity
	err := d.c.do(ctx, http.MethodPost, d.base+"/"+url.PathEscape(id)+"/approval", approvalRequest{Decision: decision, Reason: reason}, &out)
	return out, err
}

func (d *Documents) Delete(ctx context.Context, id string) error {
	return d.c.do(ctx, http.MethodDelete, d.base+"/"+url.PathEscape(id), nil, nil)
}
