package browser

import (
	"context"
	"strings"
	"sync"
	"time"
)

// FakeDriver is an in-memory Driver for tests. Pages record every call and
// can be scripted to fail selectively. Safe for concurrent use.
type FakeDriver struct {
	mu    sync.Mutex
	pages []*FakePage

	// OpenErr, when set, is returned by OpenPage.
	OpenErr error

	// PageDefaults is applied to every opened page.
	PageDefaults FakePageConfig
}

// FakePageConfig scripts a fake page's behavior.
type FakePageConfig struct {
	// CallDelay suspends every call by this long, simulating a slow page.
	CallDelay time.Duration

	// NavigateErr, when non-nil, decides per URL whether Navigate fails.
	NavigateErr func(url string) error

	// ExistsFn decides which selectors exist. Nil means everything exists.
	ExistsFn func(selector string) bool

	// WaitForFn decides which selectors become visible. Nil means every
	// wait succeeds.
	WaitForFn func(selector string) bool

	// TextFn supplies ReadText results. Nil means empty text.
	TextFn func(selector string) string
}

// Call is one recorded page interaction.
type Call struct {
	Op  string
	Arg string
}

// FakePage records interactions and obeys its config.
type FakePage struct {
	mu     sync.Mutex
	config FakePageConfig
	calls  []Call
	closed bool

	// OpenedAt is when the page was created.
	OpenedAt time.Time
	// ClosedAt is when Close was first called.
	ClosedAt time.Time
}

// NewFakeDriver creates a fake driver.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{}
}

// OpenPage creates a fake page with the driver's defaults.
func (d *FakeDriver) OpenPage(ctx context.Context) (Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page := &FakePage{
		config:   d.PageDefaults,
		OpenedAt: time.Now(),
	}
	d.pages = append(d.pages, page)
	return page, nil
}

// Close is a no-op for the fake driver.
func (d *FakeDriver) Close() error { return nil }

// Pages returns every page the driver has opened, in order.
func (d *FakeDriver) Pages() []*FakePage {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*FakePage, len(d.pages))
	copy(out, d.pages)
	return out
}

// OpenCount returns how many pages have been opened.
func (d *FakeDriver) OpenCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pages)
}

func (p *FakePage) record(ctx context.Context, op, arg string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPageClosed
	}
	p.calls = append(p.calls, Call{Op: op, Arg: arg})
	delay := p.config.CallDelay
	p.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return ctx.Err()
}

// Calls returns every recorded call, in order.
func (p *FakePage) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallsFor returns the recorded calls with the given op.
func (p *FakePage) CallsFor(op string) []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Call
	for _, c := range p.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// TypedInto concatenates every SendKeys payload sent to selectors containing
// match, with backspaces applied.
func (p *FakePage) TypedInto(match string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []rune
	for _, c := range p.calls {
		if c.Op != "sendkeys" {
			continue
		}
		sel, keys, found := strings.Cut(c.Arg, "\x00")
		if !found || !strings.Contains(sel, match) {
			continue
		}
		for _, r := range keys {
			if r == '\b' {
				if len(out) > 0 {
					out = out[:len(out)-1]
				}
				continue
			}
			out = append(out, r)
		}
	}
	return string(out)
}

// Closed reports whether the page was closed.
func (p *FakePage) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *FakePage) Navigate(ctx context.Context, url string) error {
	if err := p.record(ctx, "navigate", url); err != nil {
		return err
	}
	p.mu.Lock()
	failFn := p.config.NavigateErr
	p.mu.Unlock()
	if failFn != nil {
		return failFn(url)
	}
	return nil
}

func (p *FakePage) Click(ctx context.Context, selector string) error {
	if err := p.record(ctx, "click", selector); err != nil {
		return err
	}
	if !p.selectorExists(selector) {
		return ErrElementNotFound
	}
	return nil
}

func (p *FakePage) SendKeys(ctx context.Context, selector, keys string) error {
	if err := p.record(ctx, "sendkeys", selector+"\x00"+keys); err != nil {
		return err
	}
	if !p.selectorExists(selector) {
		return ErrElementNotFound
	}
	return nil
}

func (p *FakePage) Clear(ctx context.Context, selector string) error {
	return p.record(ctx, "clear", selector)
}

func (p *FakePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) bool {
	if err := p.record(ctx, "waitfor", selector); err != nil {
		return false
	}
	p.mu.Lock()
	fn := p.config.WaitForFn
	p.mu.Unlock()
	if fn != nil {
		return fn(selector)
	}
	return true
}

func (p *FakePage) ReadText(ctx context.Context, selector string) (string, error) {
	if err := p.record(ctx, "readtext", selector); err != nil {
		return "", err
	}
	p.mu.Lock()
	fn := p.config.TextFn
	p.mu.Unlock()
	if fn != nil {
		return fn(selector), nil
	}
	return "", nil
}

func (p *FakePage) Exists(ctx context.Context, selector string) (bool, error) {
	if err := p.record(ctx, "exists", selector); err != nil {
		return false, err
	}
	return p.selectorExists(selector), nil
}

func (p *FakePage) Hover(ctx context.Context, selector string) error {
	if err := p.record(ctx, "hover", selector); err != nil {
		return err
	}
	if !p.selectorExists(selector) {
		return ErrElementNotFound
	}
	return nil
}

func (p *FakePage) ScrollBy(ctx context.Context, deltaY int) error {
	return p.record(ctx, "scroll", "")
}

func (p *FakePage) GoBack(ctx context.Context) error {
	return p.record(ctx, "goback", "")
}

func (p *FakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.ClosedAt = time.Now()
	return nil
}

func (p *FakePage) selectorExists(selector string) bool {
	p.mu.Lock()
	fn := p.config.ExistsFn
	p.mu.Unlock()
	if fn != nil {
		return fn(selector)
	}
	return true
}

// Ensure the fakes implement the capability interfaces.
var (
	_ Driver = (*FakeDriver)(nil)
	_ Page   = (*FakePage)(nil)
)
