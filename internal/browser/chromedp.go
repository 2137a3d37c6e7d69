package browser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const defaultOpTimeout = 15 * time.Second

// ChromeConfig contains configuration for the chromedp driver.
type ChromeConfig struct {
	// OpTimeout bounds a single page operation (navigation, click, read).
	OpTimeout time.Duration
	// RemoteURL is the URL of a remote Chrome/Chromium instance (optional).
	// If empty, chromedp launches a new browser instance.
	RemoteURL string
	// Headless mode (default: true).
	Headless bool
	// NoSandbox runs Chrome without sandbox (required for Docker/root).
	NoSandbox bool
	// ViewportWidth is the page viewport width in pixels.
	ViewportWidth int
	// ViewportHeight is the page viewport height in pixels.
	ViewportHeight int
	// UserAgent overrides the browser user agent string.
	UserAgent string
	// Logger for debug output.
	Logger *zap.Logger
}

// ChromeDriver drives a headless Chrome instance over the DevTools protocol.
type ChromeDriver struct {
	config      ChromeConfig
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
	closed      bool
}

// NewChromeDriver creates a chromedp-backed driver.
func NewChromeDriver(config ChromeConfig) (*ChromeDriver, error) {
	if config.OpTimeout == 0 {
		config.OpTimeout = defaultOpTimeout
	}
	if config.ViewportWidth == 0 {
		config.ViewportWidth = 1280
	}
	if config.ViewportHeight == 0 {
		config.ViewportHeight = 720
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &ChromeDriver{
		config: config,
		logger: logger,
	}
	d.initAllocator()

	return d, nil
}

// initAllocator initializes the Chrome allocator.
func (d *ChromeDriver) initAllocator() {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", d.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true), // Important for Docker
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
	)

	if d.config.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}

	if d.config.RemoteURL != "" {
		d.allocCtx, d.allocCancel = chromedp.NewRemoteAllocator(context.Background(), d.config.RemoteURL)
	} else {
		d.allocCtx, d.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}
}

// OpenPage creates a fresh browser tab.
func (d *ChromeDriver) OpenPage(ctx context.Context) (Page, error) {
	if d.closed {
		return nil, ErrDriverClosed
	}

	pageCtx, pageCancel := chromedp.NewContext(d.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			d.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	actions := []chromedp.Action{
		chromedp.EmulateViewport(int64(d.config.ViewportWidth), int64(d.config.ViewportHeight)),
	}
	if d.config.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(d.config.UserAgent))
	}

	// Running the first action also starts the browser for this tab.
	if err := chromedp.Run(pageCtx, actions...); err != nil {
		pageCancel()
		return nil, fmt.Errorf("opening page: %w", err)
	}

	select {
	case <-ctx.Done():
		pageCancel()
		return nil, ctx.Err()
	default:
	}

	return &chromePage{
		ctx:       pageCtx,
		cancel:    pageCancel,
		opTimeout: d.config.OpTimeout,
	}, nil
}

// Close shuts down the browser.
func (d *ChromeDriver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.allocCancel != nil {
		d.allocCancel()
	}
	return nil
}

// chromePage is one chromedp tab.
type chromePage struct {
	ctx       context.Context
	cancel    context.CancelFunc
	opTimeout time.Duration
	closed    bool
}

// run executes actions against the tab under the operation timeout and the
// caller's context.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.closed {
		return ErrPageClosed
	}

	opCtx, opCancel := context.WithTimeout(p.ctx, p.opTimeout)
	defer opCancel()

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(opCtx, actions...)
	}()

	select {
	case <-ctx.Done():
		opCancel()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNavigation, url, err)
	}
	return nil
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	if err := p.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
		}
		return fmt.Errorf("clicking %s: %w", selector, err)
	}
	return nil
}

func (p *chromePage) SendKeys(ctx context.Context, selector, keys string) error {
	if err := p.run(ctx, chromedp.SendKeys(selector, keys, chromedp.ByQuery)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
		}
		return fmt.Errorf("typing into %s: %w", selector, err)
	}
	return nil
}

func (p *chromePage) Clear(ctx context.Context, selector string) error {
	if err := p.run(ctx, chromedp.SetValue(selector, "", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("clearing %s: %w", selector, err)
	}
	return nil
}

func (p *chromePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) bool {
	if p.closed {
		return false
	}

	waitCtx, waitCancel := context.WithTimeout(p.ctx, timeout)
	defer waitCancel()

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
	}()

	select {
	case <-ctx.Done():
		waitCancel()
		<-done
		return false
	case err := <-done:
		return err == nil
	}
}

func (p *chromePage) ReadText(ctx context.Context, selector string) (string, error) {
	var text string
	if err := p.run(ctx, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s", ErrElementNotFound, selector)
		}
		return "", fmt.Errorf("reading %s: %w", selector, err)
	}
	return text, nil
}

func (p *chromePage) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	expr := "document.querySelector(" + strconv.Quote(selector) + ") !== null"
	if err := p.run(ctx, chromedp.Evaluate(expr, &found)); err != nil {
		return false, fmt.Errorf("querying %s: %w", selector, err)
	}
	return found, nil
}

func (p *chromePage) Hover(ctx context.Context, selector string) error {
	expr := "(() => { const el = document.querySelector(" + strconv.Quote(selector) + "); " +
		"if (!el) return false; " +
		"el.dispatchEvent(new MouseEvent('mouseover', {bubbles: true})); return true; })()"
	var hovered bool
	if err := p.run(ctx, chromedp.Evaluate(expr, &hovered)); err != nil {
		return fmt.Errorf("hovering %s: %w", selector, err)
	}
	if !hovered {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return nil
}

func (p *chromePage) ScrollBy(ctx context.Context, deltaY int) error {
	expr := fmt.Sprintf("window.scrollBy(0, %d)", deltaY)
	if err := p.run(ctx, chromedp.Evaluate(expr, nil)); err != nil {
		return fmt.Errorf("scrolling: %w", err)
	}
	return nil
}

func (p *chromePage) GoBack(ctx context.Context) error {
	if err := p.run(ctx, chromedp.NavigateBack()); err != nil {
		return fmt.Errorf("%w: back: %v", ErrNavigation, err)
	}
	return nil
}

func (p *chromePage) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.cancel()
	return nil
}

// Ensure the chromedp types implement the capability interfaces.
var (
	_ Driver = (*ChromeDriver)(nil)
	_ Page   = (*chromePage)(nil)
)
