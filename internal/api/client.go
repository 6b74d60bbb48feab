// Package api is the HTTP client for a tournament's edit endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pelotourney-cli/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
)

const (
	CSRFCookie      = "csrftoken"
	CSRFHeader      = "X-CSRFToken"
	RequestIDHeader = "X-Request-ID"

	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 * 1024
)

var ErrTimeout = errors.New("api: request timed out")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status=%d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status=%d body=%s", e.Method, e.Path, e.Status, e.Body)
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds every request. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

type Client struct {
	base         *url.URL
	tournamentID int64
	http         *http.Client
	timeout      time.Duration
	log          logrus.FieldLogger
}

func New(baseURL string, tournamentID int64, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if tournamentID <= 0 {
		return nil, fmt.Errorf("invalid tournament id %d", tournamentID)
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	c := &Client{
		base:         u,
		tournamentID: tournamentID,
		timeout:      defaultTimeout,
		log:          discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		c.http = &http.Client{Jar: jar}
	} else if c.http.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		hc := *c.http
		hc.Jar = jar
		c.http = &hc
	}
	return c, nil
}

func (c *Client) TournamentID() int64 { return c.tournamentID }

func (c *Client) Timeout() time.Duration { return c.timeout }

func (c *Client) tournamentPath(parts ...string) string {
	p := "/tournaments/" + strconv.FormatInt(c.tournamentID, 10)
	for _, s := range parts {
		p += "/" + strings.Trim(s, "/")
	}
	return p
}

// EditLocation is the edit screen positioned at fragment.
func (c *Client) EditLocation(fragment string) model.Location {
	return model.Location{Path: c.tournamentPath("edit"), Fragment: fragment}
}

// State hydrates the whole edit screen.
func (c *Client) State(ctx context.Context) (model.PageState, error) {
	var st model.PageState
	err := c.do(ctx, http.MethodGet, c.tournamentPath("state"), nil, nil, &st)
	return st, err
}

func (c *Client) SearchMembers(ctx context.Context, query string) ([]model.SearchResult, error) {
	q := url.Values{}
	q.Set("rider_query", query)
	var out []model.SearchResult
	if err := c.do(ctx, http.MethodGet, c.tournamentPath("rider_search"), q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateTeams sends the full team membership.
func (c *Client) UpdateTeams(ctx context.Context, teams []model.TeamPayload) error {
	if teams == nil {
		teams = []model.TeamPayload{}
	}
	return c.do(ctx, http.MethodPost, c.tournamentPath("teams"), nil, teams, nil)
}

func (c *Client) DeleteTeam(ctx context.Context, teamID int64) error {
	return c.do(ctx, http.MethodDelete, c.tournamentPath("teams"), nil, model.TeamRef{TeamID: teamID}, nil)
}

func (c *Client) DeleteMember(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodDelete, c.tournamentPath("members"), nil, model.MemberRef{Username: username}, nil)
}

func (c *Client) AddRide(ctx context.Context, rideID string) error {
	return c.do(ctx, http.MethodPost, c.tournamentPath("rides"), nil, model.RidePayload{RideID: rideID}, nil)
}

func (c *Client) DeleteRide(ctx context.Context, rideID string) error {
	return c.do(ctx, http.MethodDelete, c.tournamentPath("rides"), nil, model.RidePayload{RideID: rideID}, nil)
}

func (c *Client) ListRides(ctx context.Context, f model.RideFilter) (model.RideList, error) {
	var out model.RideList
	err := c.do(ctx, http.MethodGet, c.tournamentPath("rides", "search"), f.Query(), nil, &out)
	return out, err
}

func (c *Client) ListRideFilters(ctx context.Context) (model.RideFilters, error) {
	var out model.RideFilters
	err := c.do(ctx, http.MethodGet, c.tournamentPath("rides", "filters"), nil, nil, &out)
	return out, err
}

// UpdatePermissions sends every member's role.
func (c *Client) UpdatePermissions(ctx context.Context, perms []model.PermissionPayload) error {
	if perms == nil {
		perms = []model.PermissionPayload{}
	}
	return c.do(ctx, http.MethodPost, c.tournamentPath("permissions"), nil, perms, nil)
}

// UpdateTournament saves the whole settings form.
func (c *Client) UpdateTournament(ctx context.Context, p model.TournamentPayload) error {
	return c.do(ctx, http.MethodPost, c.tournamentPath("edit"), nil, p, nil)
}

// SyncTournament asks the server to refresh ride and workout data for the
// tournament. It returns once the sync has finished.
func (c *Client) SyncTournament(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, c.tournamentPath("sync"), nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("create %s %s request: %w", method, path, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet && method != http.MethodHead {
		tok := c.csrfToken(&u)
		if tok == "" {
			c.primeCSRF(ctx)
			tok = c.csrfToken(&u)
		}
		if tok != "" {
			req.Header.Set(CSRFHeader, tok)
		}
	}

	log := c.log.WithFields(logrus.Fields{"method": method, "path": path, "request_id": reqID, "tournament_id": c.tournamentID})
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.WithField("timeout", c.timeout.String()).Warn("request timed out")
			return fmt.Errorf("%w: %s %s after %s", ErrTimeout, method, path, c.timeout)
		}
		log.WithError(err).Warn("request failed")
		return fmt.Errorf("send %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	log = log.WithFields(logrus.Fields{"status": resp.StatusCode, "elapsed_ms": time.Since(start).Milliseconds()})
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.Warn("request rejected")
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: string(bytes.TrimSpace(respBody))}
	}
	log.Debug("request ok")

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s %s after %s", ErrTimeout, method, path, c.timeout)
		}
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// csrfToken reads the anti-forgery cookie captured from an earlier response.
func (c *Client) csrfToken(u *url.URL) string {
	if c.http.Jar == nil {
		return ""
	}
	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == CSRFCookie {
			return ck.Value
		}
	}
	return ""
}

// primeCSRF loads the state endpoint so the server can issue the cookie.
// Errors are ignored; the mutating request then fails on its own.
func (c *Client) primeCSRF(ctx context.Context) {
	var st model.PageState
	if err := c.do(ctx, http.MethodGet, c.tournamentPath("state"), nil, nil, &st); err != nil {
		c.log.WithError(err).Debug("csrf priming failed")
	}
}
