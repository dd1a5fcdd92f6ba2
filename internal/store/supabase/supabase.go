// Package supabase reads tables through PostgREST and identities through
// the GoTrue admin API of a hosted Supabase project.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/postgrest-go"

	"fintrack/internal/log"
	"fintrack/internal/store"
)

// Client talks to one Supabase project with the service role key.
type Client struct {
	baseURL    string
	serviceKey string
	transport  http.RoundTripper
	timeout    time.Duration
	logger     *log.Logger
}

type Option func(*Client)

// WithHTTPClient takes the transport and timeout of hc (default: the
// default transport and 10s).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc.Transport != nil {
			c.transport = hc.Transport
		}
		if hc.Timeout > 0 {
			c.timeout = hc.Timeout
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(baseURL, serviceKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" || strings.TrimSpace(serviceKey) == "" {
		return nil, errors.New("supabase: url and service key are required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("supabase: invalid url: %w", err)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		transport:  http.DefaultTransport,
		timeout:    10 * time.Second,
		logger:     log.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// call binds one request to ctx and remembers the response status, which
// neither client library exposes on error.
type call struct {
	ctx    context.Context
	base   http.RoundTripper
	status int
}

func (c *call) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := c.base.RoundTrip(req.WithContext(c.ctx))
	if err == nil {
		c.status = resp.StatusCode
	}
	return resp, err
}

func (c *Client) newCall(ctx context.Context) (*call, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	return &call{ctx: ctx, base: c.transport}, cancel
}

func (c *Client) rest(rt *call) *postgrest.Client {
	client := postgrest.NewClient(c.baseURL+"/rest/v1", "public", map[string]string{
		"apikey":        c.serviceKey,
		"Authorization": "Bearer " + c.serviceKey,
	})
	client.Transport.Parent = rt
	return client
}

func (c *Client) auth(rt *call, token string) gotrue.Client {
	return gotrue.New("", c.serviceKey).
		WithCustomGoTrueURL(c.baseURL + "/auth/v1").
		WithToken(token).
		WithClient(http.Client{Transport: rt})
}

// Select runs q against /rest/v1/<table>. Single-row queries fetch at most
// two rows and apply the single-row check locally.
func (c *Client) Select(ctx context.Context, q store.Query) ([]store.Row, error) {
	rt, cancel := c.newCall(ctx)
	defer cancel()

	rest := c.rest(rt)
	if rest.ClientError != nil {
		return nil, fmt.Errorf("supabase: %w", rest.ClientError)
	}
	fb := rest.From(q.Table).Select(strings.Join(q.Columns, ","), "", false)
	applyFilters(fb, q.Filters)
	if q.OrderBy != "" {
		fb = fb.Order(q.OrderBy, &postgrest.OrderOpts{Ascending: true})
	}
	if q.IsSingle() {
		fb = fb.Limit(2, "")
	}

	start := time.Now()
	body, _, err := fb.Execute()
	c.logger.DebugContext(ctx, "PostgREST query",
		log.FieldOperation, "select",
		"query", q.String(),
		log.FieldStatusCode, rt.status,
		log.FieldDuration, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", store.ErrUnavailable, q.Table, err)
	}

	var rows []store.Row
	if err := decode(body, &rows); err != nil {
		return nil, err
	}
	if q.IsSingle() {
		if err := store.CheckSingle(rows); err != nil {
			return nil, fmt.Errorf("%s: %w", q, err)
		}
	}
	return rows, nil
}

// applyFilters sets one query parameter per column. PostgREST keys filters
// by column, so a column filtered twice (a date range) goes into an and=
// group instead.
func applyFilters(fb *postgrest.FilterBuilder, filters []store.Filter) {
	seen := make(map[string]int, len(filters))
	for _, f := range filters {
		seen[f.Column]++
	}
	var grouped []string
	for _, f := range filters {
		if seen[f.Column] > 1 {
			grouped = append(grouped, fmt.Sprintf("%s.%s.%s", f.Column, f.Op, quote(literal(f.Value))))
			continue
		}
		fb.Filter(f.Column, string(f.Op), literal(f.Value))
	}
	if len(grouped) > 0 {
		fb.And(strings.Join(grouped, ","), "")
	}
}

func identity(u types.User) store.Identity {
	id := store.Identity{ID: u.ID.String(), Email: u.Email}
	if name, ok := u.UserMetadata["username"].(string); ok {
		id.Username = name
	}
	return id
}

// UserByID calls the admin users endpoint.
func (c *Client) UserByID(ctx context.Context, id string) (store.Identity, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return store.Identity{}, fmt.Errorf("user %q: %w", id, store.ErrIdentityNotFound)
	}
	rt, cancel := c.newCall(ctx)
	defer cancel()

	resp, err := c.auth(rt, c.serviceKey).AdminGetUser(types.AdminGetUserRequest{UserID: uid})
	switch {
	case rt.status == http.StatusNotFound:
		return store.Identity{}, fmt.Errorf("user %q: %w", id, store.ErrIdentityNotFound)
	case err != nil:
		return store.Identity{}, fmt.Errorf("%w: admin users: %v", store.ErrUnavailable, err)
	case resp.ID == uuid.Nil:
		return store.Identity{}, fmt.Errorf("user %q: %w", id, store.ErrIdentityNotFound)
	}
	return identity(resp.User), nil
}

// UserByToken resolves a session access token through /auth/v1/user.
func (c *Client) UserByToken(ctx context.Context, token string) (store.Identity, error) {
	rt, cancel := c.newCall(ctx)
	defer cancel()

	resp, err := c.auth(rt, token).GetUser()
	switch {
	case rt.status == http.StatusUnauthorized, rt.status == http.StatusForbidden:
		return store.Identity{}, store.ErrInvalidToken
	case err != nil:
		return store.Identity{}, fmt.Errorf("%w: auth user: %v", store.ErrUnavailable, err)
	}
	return identity(resp.User), nil
}

func decode(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func literal(v any) string {
	switch t := v.(type) {
	case fmt.Stringer:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	}
	return fmt.Sprint(v)
}

// quote wraps values holding PostgREST reserved characters in double
// quotes for use inside a logical group.
func quote(s string) string {
	if !strings.ContainsAny(s, `,.:()"\`) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
