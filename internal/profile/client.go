package profile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"
	"github.com/pquerna/otp/totp"

	"github.com/knuxify/vrc-embed/internal/observe"
)

// Sentinel errors for profile lookups.
var (
	ErrNotFound   = errors.New("profile: user not found")
	ErrInvalidID  = errors.New("profile: invalid user id")
	ErrAuthFailed = errors.New("profile: authentication failed")
)

// DefaultCacheTTL is how long a fetched user record stays fresh.
const DefaultCacheTTL = 60 * time.Second

// Config configures the upstream API client.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.vrchat.cloud/api/1".
	BaseURL string

	// Username and Password authenticate the service account.
	Username string
	Password string

	// TOTPSecret enables unattended two-factor verification when set.
	TOTPSecret string

	// UserAgent is sent on every request.
	UserAgent string

	// CacheTTL overrides DefaultCacheTTL.
	CacheTTL time.Duration
}

// Client fetches user profiles from the upstream API, caching results in a
// Store and keeping one authenticated session alive.
//
// Contract:
// - Concurrency: safe for concurrent use; login attempts are serialized.
// - Errors: a missing user is ErrNotFound; transient upstream failures are
//   retried with exponential backoff before surfacing.
type Client struct {
	cfg   Config
	http  *http.Client
	store *Store
	log   observe.Logger

	loginMu sync.Mutex

	now func() time.Time
}

// NewClient creates a client. Previously persisted session cookies are
// loaded from the store, so a restart does not force a fresh login.
func NewClient(cfg Config, store *Store, log observe.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("profile: base URL is required")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if log == nil {
		log = observe.NopLogger()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("profile: cookie jar: %w", err)
	}
	c := &Client{
		cfg:   cfg,
		http:  &http.Client{Jar: jar, Timeout: 30 * time.Second},
		store: store,
		log:   log.WithComponent("profile"),
		now:   time.Now,
	}
	c.loadCookies()
	return c, nil
}

// GetUser returns the profile for id, from the local cache when fresh.
// Not-found answers are cached too, as empty records, so a missing user does
// not hammer the upstream.
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	if user, ok := c.cachedUser(id); ok {
		if user == nil {
			return nil, ErrNotFound
		}
		return user, nil
	}

	user, err := backoff.Retry(ctx, func() (*User, error) {
		u, err := c.fetchUser(ctx, id)
		if err != nil && !transient(err) {
			return nil, backoff.Permanent(err)
		}
		return u, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(3))

	if errors.Is(err, ErrNotFound) {
		c.storeUser(id, nil)
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.storeUser(id, user)
	return user, nil
}

// fetchUser performs one upstream lookup, re-authenticating once on a stale
// session.
func (c *Client) fetchUser(ctx context.Context, id string) (*User, error) {
	resp, err := c.get(ctx, "/users/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
		if resp, err = c.get(ctx, "/users/"+url.PathEscape(id)); err != nil {
			return nil, err
		}
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, &upstreamError{path: "/users/" + id, status: resp.StatusCode}
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("profile: decode user %s: %w", id, err)
	}
	if user.ID == "" {
		user.ID = id
	}
	return &user, nil
}

// Login establishes an authenticated session with basic auth, completing
// TOTP two-factor verification when the upstream requests it, and persists
// the session cookies.
func (c *Client) Login(ctx context.Context) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/auth/user", nil)
	if err != nil {
		return fmt.Errorf("profile: login request: %w", err)
	}
	// The upstream expects URL-encoded credentials in the basic auth pair.
	req.SetBasicAuth(url.QueryEscape(c.cfg.Username), url.QueryEscape(c.cfg.Password))
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("profile: login: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		return fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		drain(resp)
		return fmt.Errorf("profile: login: status %d", resp.StatusCode)
	}

	var auth struct {
		DisplayName           string   `json:"displayName"`
		RequiresTwoFactorAuth []string `json:"requiresTwoFactorAuth"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		drain(resp)
		return fmt.Errorf("profile: decode login response: %w", err)
	}
	drain(resp)

	if len(auth.RequiresTwoFactorAuth) > 0 {
		if err := c.verifyTwoFactor(ctx, auth.RequiresTwoFactorAuth); err != nil {
			return err
		}
		if resp, err = c.get(ctx, "/auth/user"); err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			drain(resp)
			return fmt.Errorf("%w: status %d after two-factor", ErrAuthFailed, resp.StatusCode)
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&auth); decodeErr != nil {
			drain(resp)
			return fmt.Errorf("profile: decode login response: %w", decodeErr)
		}
		drain(resp)
	}

	c.saveCookies()
	c.log.Info(ctx, "logged in", observe.F("display_name", auth.DisplayName))
	return nil
}

// verifyTwoFactor answers a TOTP challenge with a generated code. Email and
// interactive flows cannot be completed unattended.
func (c *Client) verifyTwoFactor(ctx context.Context, methods []string) error {
	supported := false
	for _, m := range methods {
		if m == "totp" {
			supported = true
			break
		}
	}
	if !supported || c.cfg.TOTPSecret == "" {
		return fmt.Errorf("%w: two-factor methods %v need interactive login", ErrAuthFailed, methods)
	}

	secret := strings.ToUpper(strings.ReplaceAll(c.cfg.TOTPSecret, " ", ""))
	code, err := totp.GenerateCode(secret, c.now())
	if err != nil {
		return fmt.Errorf("profile: generate totp code: %w", err)
	}

	body, _ := json.Marshal(map[string]string{"code": code})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/auth/twofactorauth/totp/verify", strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("profile: totp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("profile: totp verify: %w", err)
	}
	drain(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: totp verify status %d", ErrAuthFailed, resp.StatusCode)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("profile: request %s: %w", path, err)
	}
	c.setHeaders(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile: request %s: %w", path, err)
	}
	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
}

// cachedUser returns (user, true) on a fresh cache entry; a cached negative
// answer comes back as (nil, true).
func (c *Client) cachedUser(id string) (*User, bool) {
	if c.store == nil {
		return nil, false
	}
	raw, ok, err := c.store.Get("users/" + id + "/cachetime")
	if err != nil || !ok {
		return nil, false
	}
	cachedAt, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || c.now().Unix()-cachedAt > int64(c.cfg.CacheTTL/time.Second) {
		return nil, false
	}

	data, ok, err := c.store.Get("users/" + id)
	if err != nil || !ok {
		return nil, false
	}
	if string(data) == "{}" {
		return nil, true
	}
	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, false
	}
	return &user, true
}

// storeUser caches a lookup result; nil marks a negative answer.
func (c *Client) storeUser(id string, user *User) {
	if c.store == nil {
		return
	}
	data := []byte("{}")
	if user != nil {
		var err error
		if data, err = json.Marshal(user); err != nil {
			return
		}
	}
	_ = c.store.Put("users/"+id, data)
	_ = c.store.Put("users/"+id+"/cachetime", []byte(strconv.FormatInt(c.now().Unix(), 10)))
}

const cookieKey = "cookies"

// saveCookies persists the session cookies for the API host.
func (c *Client) saveCookies() {
	if c.store == nil {
		return
	}
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return
	}
	data, err := json.Marshal(c.http.Jar.Cookies(base))
	if err != nil {
		return
	}
	_ = c.store.Put(cookieKey, data)
}

// loadCookies restores a persisted session, if any.
func (c *Client) loadCookies() {
	if c.store == nil {
		return
	}
	data, ok, err := c.store.Get(cookieKey)
	if err != nil || !ok {
		return
	}
	var cookies []*http.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return
	}
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return
	}
	c.http.Jar.SetCookies(base, cookies)
}

// upstreamError is a non-OK status from the profile API.
type upstreamError struct {
	path   string
	status int
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("profile: %s: status %d", e.path, e.status)
}

// transient reports whether an upstream error is worth retrying: server-side
// statuses and network-level failures, but never not-found or auth failures.
func transient(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrInvalidID) {
		return false
	}
	var ue *upstreamError
	if errors.As(err, &ue) {
		return ue.status >= 500
	}
	return true
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
