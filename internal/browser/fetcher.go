package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"jobsift/internal/config"
	"jobsift/internal/metrics"
	"jobsift/internal/model"
)

// ErrAuthenticationFailed means the target still presented a login page
// after one full re-authentication cycle. Fatal for that URL; the caller
// decides whether to skip it or abort the batch.
var ErrAuthenticationFailed = errors.New("still logged out after re-authentication")

// ErrRobotsDisallowed means robots.txt forbids fetching the target URL.
var ErrRobotsDisallowed = errors.New("fetch disallowed by robots.txt")

// loginFormSelector finds a visible login form regardless of the exact
// page structure. Kept semantic (action attribute) rather than positional.
const loginFormSelector = `form[action*="login"], form[action*="signin"]`

// Credential input lookup goes by placeholder text, which survives site
// redesigns far better than structural selectors do.
const (
	emailInputSelector    = `input[placeholder*="Email" i], input[type="email"]`
	passwordInputSelector = `input[placeholder*="Password" i], input[type="password"]`
	submitButtonRegex     = `/sign in|log in/i`
)

// isLoginURL detects the URL-based logout signal.
func isLoginURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.Contains(lower, "/login") || strings.Contains(lower, "signin")
}

// Fetcher is a long-lived authenticated browser session. The browser is
// launched lazily on first use and shared by all workers; each concurrent
// fetch borrows its own page from the pool, because concurrent navigation
// on a shared page is unsafe. Login and auth-state writes are serialized
// behind authMu.
type Fetcher struct {
	cfg    config.BrowserConfig
	creds  config.Credentials
	robots *robotsGate
	logger *slog.Logger

	mu      sync.Mutex // guards browser/pool lifecycle
	browser *rod.Browser
	pool    chan *rod.Page

	authMu   sync.Mutex // serializes login + auth state file writes
	loginGen uint64
}

// NewFetcher builds a Fetcher. The browser is not started until the
// first Fetch call. robots may be disabled via cfg.
func NewFetcher(cfg config.BrowserConfig, robotsCfg config.RobotsConfig, creds config.Credentials, logger *slog.Logger) *Fetcher {
	f := &Fetcher{
		cfg:    cfg,
		creds:  creds,
		logger: logger,
	}
	if robotsCfg.Respect {
		ua := robotsCfg.UserAgent
		if ua == "" {
			ua = cfg.UserAgent
		}
		f.robots = newRobotsGate(ua)
	}
	return f
}

// Fetch loads targetURL through the authenticated session and returns
// its rendered content. On a detected logout it runs the login protocol
// and retries the navigation exactly once.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*model.FetchResult, error) {
	if f.robots != nil && !f.robots.Allowed(ctx, targetURL) {
		return nil, fmt.Errorf("%w: %s", ErrRobotsDisallowed, targetURL)
	}

	if err := f.ensureBrowser(); err != nil {
		return nil, err
	}

	gen := f.generation()
	res, err := f.navigate(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	if !res.LoggedOut {
		return res, nil
	}
	metrics.RecordFetch("logged_out")

	if err := f.login(ctx, gen); err != nil {
		return nil, fmt.Errorf("re-authentication: %w", err)
	}

	res, err = f.navigate(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	if res.LoggedOut {
		return nil, ErrAuthenticationFailed
	}
	return res, nil
}

// Close shuts down pooled pages and the browser. Safe to call once at
// the end of a batch run.
func (f *Fetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.pool != nil {
		f.drainPoolLocked()
		f.pool = nil
	}
	if f.browser != nil {
		_ = f.browser.Close()
		f.browser = nil
	}
}

// ensureBrowser lazily launches (or attaches to) the browser and
// restores persisted auth state. The browser deliberately has no
// per-job context: it outlives every individual fetch.
func (f *Fetcher) ensureBrowser() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		return nil
	}

	controlURL := f.cfg.ControlURL
	if controlURL == "" {
		u, err := launcher.New().Headless(f.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect browser: %w", err)
	}

	if f.cfg.AuthStatePath != "" {
		cookies, err := loadAuthState(f.cfg.AuthStatePath)
		if err != nil {
			f.logger.Warn("ignoring unreadable auth state", "path", f.cfg.AuthStatePath, "error", err)
		} else if len(cookies) > 0 {
			if err := browser.SetCookies(cookies); err != nil {
				_ = browser.Close()
				return fmt.Errorf("restore auth state: %w", err)
			}
			f.logger.Debug("restored auth state", "path", f.cfg.AuthStatePath, "cookies", len(cookies))
		}
	}

	size := f.cfg.PagePoolSize
	if size <= 0 {
		size = 4
	}
	pool := make(chan *rod.Page, size)
	for i := 0; i < size; i++ {
		pool <- nil // lazily created on first borrow
	}

	f.browser = browser
	f.pool = pool
	return nil
}

// navigate borrows a page, loads targetURL, runs logout detection, and
// extracts content. The page is always returned to the pool.
func (f *Fetcher) navigate(ctx context.Context, targetURL string) (res *model.FetchResult, err error) {
	page, err := f.borrowPage()
	if err != nil {
		return nil, err
	}
	defer f.returnPage(page)

	work := page.Context(ctx).Timeout(f.cfg.FetchTimeout())

	if err := work.Navigate(targetURL); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", targetURL, err)
	}
	// Load event only; waiting for network idle on ad-heavy job boards
	// can stall for the full timeout.
	if err := work.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load %s: %w", targetURL, err)
	}

	if loggedOut, err := f.detectLoggedOut(work); err != nil {
		return nil, err
	} else if loggedOut {
		return &model.FetchResult{LoggedOut: true}, nil
	}

	htmlStr, err := work.HTML()
	if err != nil {
		return nil, fmt.Errorf("page html %s: %w", targetURL, err)
	}

	text, markdown := extractContent(htmlStr, targetURL)
	return &model.FetchResult{Text: text, HTML: htmlStr, Markdown: markdown}, nil
}

// detectLoggedOut applies the two independent logout signals: URL
// pattern and a visible login form. Either one is conclusive.
func (f *Fetcher) detectLoggedOut(page *rod.Page) (bool, error) {
	info, err := page.Info()
	if err != nil {
		return false, fmt.Errorf("page info: %w", err)
	}
	if isLoginURL(info.URL) {
		f.logger.Warn("navigated to login page instead of target", "url", info.URL)
		return true, nil
	}

	// Short element probe; most pages simply do not have the form.
	el, err := page.Timeout(2 * time.Second).Element(loginFormSelector)
	if err != nil {
		return false, nil
	}
	visible, err := el.Visible()
	if err != nil {
		return false, nil
	}
	if visible {
		f.logger.Warn("login form detected, auth likely expired", "url", info.URL)
	}
	return visible, nil
}

func (f *Fetcher) generation() uint64 {
	f.authMu.Lock()
	defer f.authMu.Unlock()
	return f.loginGen
}

// login runs the full login protocol: navigate to the login page, fill
// credentials located by placeholder, submit, wait for the post-login
// URL marker, persist cookies, and recycle pooled pages so no worker
// keeps using a page that rendered while logged out.
//
// gen is the login generation observed before the failed navigation; if
// another worker completed a login in the meantime this call is a no-op,
// so a burst of logged-out fetches triggers one login, not N.
func (f *Fetcher) login(ctx context.Context, gen uint64) error {
	f.authMu.Lock()
	defer f.authMu.Unlock()

	if f.loginGen != gen {
		return nil
	}

	if f.cfg.LoginURL == "" {
		return errors.New("login url is not configured")
	}

	f.logger.Info("running login protocol", "url", f.cfg.LoginURL)

	f.mu.Lock()
	browser := f.browser
	f.mu.Unlock()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	defer func() { _ = page.Close() }()

	work := page.Context(ctx).Timeout(f.cfg.LoginTimeout())

	if err := work.Navigate(f.cfg.LoginURL); err != nil {
		return fmt.Errorf("navigate login page: %w", err)
	}
	if err := work.WaitLoad(); err != nil {
		return fmt.Errorf("wait login page: %w", err)
	}

	emailInput, err := work.Element(emailInputSelector)
	if err != nil {
		return fmt.Errorf("locate email input: %w", err)
	}
	if err := emailInput.Input(f.creds.LoginEmail); err != nil {
		return fmt.Errorf("fill email: %w", err)
	}

	passwordInput, err := work.Element(passwordInputSelector)
	if err != nil {
		return fmt.Errorf("locate password input: %w", err)
	}
	if err := passwordInput.Input(f.creds.LoginPassword); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}

	submit, err := work.ElementR("button", submitButtonRegex)
	if err != nil {
		return fmt.Errorf("locate submit button: %w", err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("submit login form: %w", err)
	}

	if err := f.waitPostLogin(work); err != nil {
		return err
	}

	if f.cfg.AuthStatePath != "" {
		cookies, err := browser.GetCookies()
		if err != nil {
			return fmt.Errorf("collect cookies: %w", err)
		}
		if err := saveAuthState(f.cfg.AuthStatePath, cookies); err != nil {
			return err
		}
		f.logger.Info("saved auth state", "path", f.cfg.AuthStatePath)
	}

	// Pooled pages may still show logged-out content; start fresh.
	f.mu.Lock()
	f.drainPoolLocked()
	for i := 0; i < cap(f.pool); i++ {
		f.pool <- nil
	}
	f.mu.Unlock()

	f.loginGen++
	metrics.RecordLogin()
	return nil
}

// waitPostLogin polls the page URL until it reaches the post-login
// marker or stops looking like a login page.
func (f *Fetcher) waitPostLogin(page *rod.Page) error {
	deadline := time.Now().Add(f.cfg.LoginTimeout())
	for time.Now().Before(deadline) {
		info, err := page.Info()
		if err == nil {
			u := info.URL
			if f.cfg.PostLoginURLSubstring != "" && strings.Contains(u, f.cfg.PostLoginURLSubstring) {
				return nil
			}
			if f.cfg.PostLoginURLSubstring == "" && !isLoginURL(u) {
				return nil
			}
		}
		time.Sleep(250 * time.Millisecond)
	}
	return errors.New("post-login navigation marker never appeared")
}

// borrowPage takes a page from the pool, creating it on first use.
func (f *Fetcher) borrowPage() (*rod.Page, error) {
	f.mu.Lock()
	pool := f.pool
	browser := f.browser
	f.mu.Unlock()

	if pool == nil || browser == nil {
		return nil, errors.New("fetcher is closed")
	}

	page := <-pool
	if page != nil {
		return page, nil
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		pool <- nil
		return nil, fmt.Errorf("create page: %w", err)
	}

	if f.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: f.cfg.UserAgent}); err != nil {
			_ = page.Close()
			pool <- nil
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}

	return page, nil
}

// returnPage gives the page back to the pool, replacing it with a fresh
// slot when the pool was recycled while we held it.
func (f *Fetcher) returnPage(page *rod.Page) {
	f.mu.Lock()
	pool := f.pool
	f.mu.Unlock()

	if pool == nil {
		_ = page.Close()
		return
	}

	select {
	case pool <- page:
	default:
		// Pool was refilled during a login recycle; drop this page.
		_ = page.Close()
	}
}

// drainPoolLocked closes every pooled page. Caller holds f.mu.
func (f *Fetcher) drainPoolLocked() {
	for {
		select {
		case p := <-f.pool:
			if p != nil {
				_ = p.Close()
			}
		default:
			return
		}
	}
}
