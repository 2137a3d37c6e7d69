// Package scenario drives one simulated user through an ordered journey
// against the target application: landing, browsing, search, login, account,
// checkout, and free exploration. Phases run strictly in order; failures are
// downgraded to phase outcomes and never escape the session.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/trafficsim/internal/browser"
	"github.com/example/trafficsim/internal/persona"
	"github.com/example/trafficsim/internal/timing"
)

// Errors returned by the scenario package.
var (
	// errSkipPhase marks a phase whose precondition was not met.
	errSkipPhase = errors.New("scenario: phase precondition unmet")
)

// Phase names, in execution order.
const (
	PhaseLanding      = "landing"
	PhaseBrowse       = "browse"
	PhaseSearch       = "search"
	PhaseAuthenticate = "authenticate"
	PhaseAccount      = "account"
	PhaseCheckout     = "checkout"
	PhaseExplore      = "explore"
)

// corePhases are the phases whose completion defines session success.
var corePhases = []string{PhaseLanding, PhaseBrowse, PhaseSearch}

// Config parameterizes a scenario.
type Config struct {
	// BaseURL is the frontend base URL.
	BaseURL string

	// SessionDuration is the target wall-clock session length. The free
	// exploration phase spends whatever remains of it.
	SessionDuration time.Duration

	// WaitTimeout bounds element waits (product detail, auth signal,
	// order confirmation).
	WaitTimeout time.Duration

	// TypoProbability is the per-character typo chance for human typing.
	TypoProbability float64

	// SearchTypoProbability is the chance the search query is first typed
	// as a typo variant, then cleared and retyped.
	SearchTypoProbability float64

	// MaxExploreActions caps the free-exploration loop so a session ends
	// even when delay estimates drift.
	MaxExploreActions int
}

// ApplyDefaults applies default values to unset fields.
func (c *Config) ApplyDefaults() {
	if c.SessionDuration == 0 {
		c.SessionDuration = 30 * time.Second
	}
	if c.WaitTimeout == 0 {
		c.WaitTimeout = 10 * time.Second
	}
	if c.TypoProbability == 0 {
		c.TypoProbability = 0.10
	}
	if c.SearchTypoProbability == 0 {
		c.SearchTypoProbability = 0.70
	}
	if c.MaxExploreActions == 0 {
		c.MaxExploreActions = 10
	}
}

// phase is one step of the journey. Implementations read and update the
// shared session state and report phase-local failure through their error.
type phase interface {
	name() string
	run(ctx context.Context, st *state) error
}

// phases is the fixed execution order. Dispatch is over this list only;
// no phase runs twice and none runs before its predecessor resolves.
var phases = []phase{
	landingPhase{},
	browsePhase{},
	searchPhase{},
	authenticatePhase{},
	accountPhase{},
	checkoutPhase{},
	explorePhase{},
}

// Scenario executes the journey against a page.
type Scenario struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a scenario. A nil logger is replaced with a no-op one.
func New(cfg Config, logger *zap.Logger) *Scenario {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scenario{cfg: cfg, logger: logger}
}

// state is the mutable per-session context shared by the phases. It is
// owned by the single goroutine executing the session.
type state struct {
	cfg   Config
	page  browser.Page
	user  persona.Persona
	model *timing.Model
	start time.Time

	// productViewed records that browsing reached a product detail
	// view; checkout is skipped without it.
	productViewed bool

	// visited holds routes already seen, for free exploration.
	visited []string

	endpointSet map[string]struct{}
	endpoints   []string
}

// touch records a backend endpoint as exercised.
func (st *state) touch(endpoint string) {
	if _, ok := st.endpointSet[endpoint]; ok {
		return
	}
	st.endpointSet[endpoint] = struct{}{}
	st.endpoints = append(st.endpoints, endpoint)
}

// visit records a route for later exploration.
func (st *state) visit(route string) {
	for _, r := range st.visited {
		if r == route {
			return
		}
	}
	st.visited = append(st.visited, route)
}

// remaining returns the unspent session budget. Time lost to waits and
// timeouts counts against the budget.
func (st *state) remaining() time.Duration {
	left := st.cfg.SessionDuration - time.Since(st.start)
	if left < 0 {
		return 0
	}
	return left
}

// url joins the base URL and a route.
func (st *state) url(route string) string {
	return st.cfg.BaseURL + route
}

// Run executes every phase in order against page and returns the session
// result. Run never returns an error; failures are recorded as data.
func (s *Scenario) Run(ctx context.Context, sessionID string, page browser.Page, user persona.Persona, model *timing.Model) *Result {
	st := &state{
		cfg:         s.cfg,
		page:        page,
		user:        user,
		model:       model,
		start:       time.Now(),
		endpointSet: make(map[string]struct{}),
	}

	result := &Result{
		SessionID: sessionID,
		Persona:   user,
		StartTime: st.start,
	}

	canceled := false
	for _, ph := range phases {
		if canceled {
			result.Phases = append(result.Phases, PhaseOutcome{
				Phase:  ph.name(),
				Status: PhaseSkipped,
				Err:    context.Canceled,
			})
			continue
		}

		phaseStart := time.Now()
		err := ph.run(ctx, st)
		outcome := PhaseOutcome{
			Phase:    ph.name(),
			Duration: time.Since(phaseStart),
		}

		switch {
		case err == nil:
			outcome.Status = PhaseCompleted
		case errors.Is(err, errSkipPhase):
			outcome.Status = PhaseSkipped
		default:
			outcome.Status = PhaseFailed
			outcome.Err = err
			s.logger.Debug("phase failed",
				zap.String("session", sessionID),
				zap.String("phase", ph.name()),
				zap.Error(err))
		}
		result.Phases = append(result.Phases, outcome)

		if ctx.Err() != nil {
			canceled = true
		}
	}

	result.Endpoints = st.endpoints
	result.Duration = time.Since(st.start)
	result.Status = s.terminalStatus(result, canceled)
	if result.Status != StatusSuccess {
		for _, name := range corePhases {
			if o, ok := result.Outcome(name); ok && o.Err != nil {
				result.Err = fmt.Errorf("%s: %w", name, o.Err)
				break
			}
		}
		if result.Err == nil && canceled {
			result.Err = context.Canceled
		}
	}

	return result
}

// terminalStatus derives the session status: success when every core phase
// completed, regardless of the optional phases; canceled when shutdown cut
// the session before the core could complete; error otherwise.
func (s *Scenario) terminalStatus(result *Result, canceled bool) Status {
	coreOK := true
	for _, name := range corePhases {
		if !result.Completed(name) {
			coreOK = false
			break
		}
	}
	if coreOK {
		return StatusSuccess
	}
	if canceled {
		return StatusCanceled
	}
	return StatusError
}

// pause suspends the session for a model-sampled delay.
func (st *state) pause(ctx context.Context, d time.Duration) error {
	return timing.Sleep(ctx, d)
}

// humanType clicks the field and types text one keystroke at a time with
// human cadence, including injected typos and their corrections.
func (st *state) humanType(ctx context.Context, selector, text string, profile timing.TypingProfile) error {
	if err := st.page.Click(ctx, selector); err != nil {
		return err
	}
	if err := st.pause(ctx, st.model.Hesitate(200*time.Millisecond, 500*time.Millisecond)); err != nil {
		return err
	}

	for _, stroke := range st.model.Keystrokes(text, profile) {
		key := string(stroke.Rune)
		if stroke.Backspace {
			key = browser.Backspace
		}
		if err := st.page.SendKeys(ctx, selector, key); err != nil {
			return err
		}
		if err := st.pause(ctx, stroke.Delay); err != nil {
			return err
		}
	}
	return nil
}

// scrollRandomly scrolls the page a few times like a browsing human,
// biased toward scrolling down.
func (st *state) scrollRandomly(ctx context.Context, times int) {
	for i := 0; i < times; i++ {
		delta := st.model.Between(100, 400)
		if st.model.Chance(0.25) {
			delta = -delta
		}
		if err := st.page.ScrollBy(ctx, delta); err != nil {
			return
		}
		if st.pause(ctx, st.model.Uniform(timing.Bounds{Min: 300 * time.Millisecond, Max: time.Second})) != nil {
			return
		}
	}
}

// exploreHover hovers over one to three elements matching selector.
// Hover failures are cosmetic and ignored.
func (st *state) exploreHover(ctx context.Context, selector string) {
	count := st.model.Between(1, 3)
	for i := 0; i < count; i++ {
		if err := st.page.Hover(ctx, selector); err != nil {
			return
		}
		if st.pause(ctx, st.model.Uniform(timing.Bounds{Min: 300 * time.Millisecond, Max: 800 * time.Millisecond})) != nil {
			return
		}
	}
}

// readDelay suspends for a page-reading pause within the given bounds.
func (st *state) readDelay(ctx context.Context, min, max time.Duration) error {
	return st.pause(ctx, st.model.ReadPage(min, max))
}

// nthCard returns a selector for a specific product card, falling back to
// the first card when the index is 1.
func nthCard(idx int) string {
	if idx <= 1 {
		return selProductCard
	}
	return fmt.Sprintf("%s:nth-of-type(%d)", selProductCard, idx)
}
