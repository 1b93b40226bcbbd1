package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"meirbatch/internal/util"
)

// Config configures the browser session.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Bin is an explicit Chrome binary. Empty lets the launcher find or
	// download one.
	Bin string

	Headless bool

	// Stealth creates the page through go-rod/stealth.
	Stealth bool

	// DownloadDir receives every file the page downloads.
	DownloadDir string

	// NavigationTimeout bounds Navigate. Default: 60s.
	NavigationTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Session is a single Chrome tab driven through Rod. It is not safe for
// concurrent use; the export workflow is strictly sequential.
type Session struct {
	cfg     Config
	browser *rod.Browser
	page    *rod.Page
	lnch    *launcher.Launcher
}

var _ Driver = (*Session)(nil)

// Open launches Chrome (or connects to a remote instance), routes downloads
// to cfg.DownloadDir and opens the tab used for the whole run.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	cfg.defaults()
	log := cfg.Logger
	s := &Session{cfg: cfg}

	var wsURL string
	if cfg.RemoteURL != "" {
		wsURL = cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Headless(cfg.Headless)
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		s.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL, "headless", cfg.Headless)
	}

	b := rod.New().ControlURL(wsURL)
	err := util.Retry(ctx, 3, 500*time.Millisecond, func() error {
		return b.Connect()
	})
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	s.browser = b

	if cfg.DownloadDir != "" {
		dir, err := filepath.Abs(cfg.DownloadDir)
		if err != nil {
			s.cleanup()
			return nil, fmt.Errorf("browser: download dir: %w", err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.cleanup()
			return nil, fmt.Errorf("browser: download dir: %w", err)
		}
		err = proto.BrowserSetDownloadBehavior{
			Behavior:     proto.BrowserSetDownloadBehaviorBehaviorAllow,
			DownloadPath: dir,
		}.Call(b)
		if err != nil {
			s.cleanup()
			return nil, fmt.Errorf("browser: set download behavior: %w", err)
		}
		log.Debug("browser: downloads routed", "dir", dir)
	}

	var page *rod.Page
	if cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	s.page = page

	return s, nil
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()

	p := s.page.Context(navCtx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		s.cfg.Logger.Warn("browser: wait load timeout", "url", url, "error", err)
	}
	return nil
}

// Find returns the first element matching sel without waiting for it.
func (s *Session) Find(ctx context.Context, sel Selector) (Element, error) {
	p := s.page.Context(ctx)
	var (
		el  *rod.Element
		err error
	)
	switch sel.By {
	case ByText:
		els, qerr := p.ElementsByJS(rod.Eval(findByTextJS, sel.Value))
		if qerr != nil {
			return nil, fmt.Errorf("browser: find %s: %w", sel, qerr)
		}
		if els.Empty() {
			return nil, fmt.Errorf("browser: find %s: not found", sel)
		}
		el = els.First()
	default:
		var has bool
		has, el, err = p.Has(cssFor(sel))
		if err == nil && !has {
			err = errors.New("not found")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("browser: find %s: %w", sel, err)
	}
	return &element{ctx: ctx, el: el}, nil
}

// FindAll returns every element matching a CSS or ID selector.
func (s *Session) FindAll(ctx context.Context, sel Selector) ([]Element, error) {
	if sel.By == ByText {
		return nil, fmt.Errorf("browser: FindAll does not support %s", sel)
	}
	els, err := s.page.Context(ctx).Elements(cssFor(sel))
	if err != nil {
		return nil, fmt.Errorf("browser: find all %s: %w", sel, err)
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &element{ctx: ctx, el: el})
	}
	return out, nil
}

// WaitPresent retries until sel is attached to the DOM or timeout elapses.
func (s *Session) WaitPresent(ctx context.Context, sel Selector, timeout time.Duration) (Element, error) {
	el, err := s.wait(ctx, sel, timeout, nil)
	if err != nil {
		return nil, err
	}
	return &element{ctx: ctx, el: el.Context(ctx)}, nil
}

// WaitClickable waits until sel is present, visible and enabled.
func (s *Session) WaitClickable(ctx context.Context, sel Selector, timeout time.Duration) (Element, error) {
	el, err := s.wait(ctx, sel, timeout, func(el *rod.Element) error {
		if err := el.WaitVisible(); err != nil {
			return err
		}
		return el.WaitEnabled()
	})
	if err != nil {
		return nil, err
	}
	return &element{ctx: ctx, el: el.Context(ctx)}, nil
}

func (s *Session) wait(ctx context.Context, sel Selector, timeout time.Duration, ready func(*rod.Element) error) (*rod.Element, error) {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := s.page.Context(wctx)
	var (
		el  *rod.Element
		err error
	)
	if sel.By == ByText {
		el, err = p.ElementR("*", "^"+regexp.QuoteMeta(sel.Value)+"$")
	} else {
		el, err = p.Element(cssFor(sel))
	}
	if err == nil && ready != nil {
		err = ready(el)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s after %s", ErrWaitTimeout, sel, timeout)
		}
		return nil, fmt.Errorf("browser: wait %s: %w", sel, err)
	}
	return el, nil
}

// Close shuts down the tab, the browser connection and any launched Chrome.
func (s *Session) Close() error {
	s.cleanup()
	s.cfg.Logger.Info("browser: closed")
	return nil
}

func (s *Session) cleanup() {
	if s.page != nil {
		s.page.Close()
		s.page = nil
	}
	if s.browser != nil {
		s.browser.Close()
		s.browser = nil
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
		s.lnch = nil
	}
}

// cssFor turns an ID or CSS selector into a CSS expression. IDs are matched
// through an attribute selector so ASP.NET-style ids need no escaping.
func cssFor(sel Selector) string {
	if sel.By == ByID {
		return fmt.Sprintf("[id=%q]", sel.Value)
	}
	return sel.Value
}

const findByTextJS = `(text) => Array.from(document.querySelectorAll('*'))
	.filter(e => e.children.length === 0 && (e.textContent || '').trim() === text)`

// element adapts a Rod element to the Element interface.
type element struct {
	ctx context.Context
	el  *rod.Element
}

func (e *element) Click() error {
	return e.el.Context(e.ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (e *element) ForceClick() error {
	_, err := e.el.Context(e.ctx).Eval(`() => this.click()`)
	return err
}

func (e *element) ClearValue() error {
	_, err := e.el.Context(e.ctx).Eval(`() => { this.value = '' }`)
	return err
}

func (e *element) Type(text string) error {
	return e.el.Context(e.ctx).Input(text)
}

func (e *element) PressTab() error {
	return e.el.Context(e.ctx).Type(input.Tab)
}
