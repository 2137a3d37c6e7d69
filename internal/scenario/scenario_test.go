package scenario

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/trafficsim/internal/browser"
	"github.com/example/trafficsim/internal/persona"
	"github.com/example/trafficsim/internal/timing"
)

// testScale shrinks sampled delays to microseconds so sessions finish fast.
const testScale = 1e-6

func testConfig() Config {
	return Config{
		BaseURL:               "http://localhost:3000",
		SessionDuration:       time.Hour,
		WaitTimeout:           time.Second,
		TypoProbability:       0.10,
		SearchTypoProbability: 0.70,
		MaxExploreActions:     2,
	}
}

func testPersona() persona.Persona {
	return persona.Persona{
		ID:       "usr_001",
		Name:     "Luna Darksworth",
		Email:    "luna.darksworth@example.com",
		Password: "demo123",
	}
}

func runOnFake(t *testing.T, cfg Config, pageCfg browser.FakePageConfig, seed int64) (*Result, *browser.FakePage) {
	t.Helper()

	d := browser.NewFakeDriver()
	d.PageDefaults = pageCfg
	page, err := d.OpenPage(context.Background())
	require.NoError(t, err)

	sc := New(cfg, nil)
	model := timing.NewSeeded(seed, testScale)
	result := sc.Run(context.Background(), "sess_test", page, testPersona(), model)
	return result, d.Pages()[0]
}

func TestRun_HappyPath(t *testing.T) {
	result, _ := runOnFake(t, testConfig(), browser.FakePageConfig{}, 42)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.NoError(t, result.Err)
	assert.Greater(t, result.Duration, time.Duration(0))

	// Every phase completed on a fully cooperative page.
	require.Len(t, result.Phases, len(phases))
	for _, o := range result.Phases {
		assert.Equal(t, PhaseCompleted, o.Status, "phase %s", o.Phase)
	}
}

func TestRun_PhaseOrder(t *testing.T) {
	result, _ := runOnFake(t, testConfig(), browser.FakePageConfig{}, 7)

	want := []string{
		PhaseLanding, PhaseBrowse, PhaseSearch,
		PhaseAuthenticate, PhaseAccount, PhaseCheckout, PhaseExplore,
	}
	require.Len(t, result.Phases, len(want))
	for i, o := range result.Phases {
		assert.Equal(t, want[i], o.Phase)
	}
}

func TestRun_EndpointCoverage(t *testing.T) {
	result, _ := runOnFake(t, testConfig(), browser.FakePageConfig{}, 42)

	for _, ep := range []string{
		"/api/health", "/api/products", "/api/products/<id>",
		"/api/search", "/api/login", "/api/users/<user_id>",
		"/api/dashboard", "/api/checkout",
	} {
		assert.Contains(t, result.Endpoints, ep)
	}

	// First-touch order starts at the landing health check, with no
	// duplicates.
	require.NotEmpty(t, result.Endpoints)
	assert.Equal(t, "/api/health", result.Endpoints[0])
	seen := map[string]bool{}
	for _, ep := range result.Endpoints {
		assert.False(t, seen[ep], "duplicate endpoint %s", ep)
		seen[ep] = true
	}
}

func TestRun_CheckoutSkippedWithoutCart(t *testing.T) {
	cfg := testConfig()
	pageCfg := browser.FakePageConfig{
		ExistsFn: func(sel string) bool {
			return !strings.Contains(sel, "add-to-cart")
		},
	}
	result, _ := runOnFake(t, cfg, pageCfg, 42)

	// A store without a cart still counts as a successful visit.
	assert.Equal(t, StatusSuccess, result.Status)
	o, ok := result.Outcome(PhaseCheckout)
	require.True(t, ok)
	assert.Equal(t, PhaseSkipped, o.Status)
	assert.NotContains(t, result.Endpoints, "/api/checkout")
}

func TestRun_BrowseFailureFailsSession(t *testing.T) {
	pageCfg := browser.FakePageConfig{
		ExistsFn: func(sel string) bool {
			// Hide the shop link so browse falls back to navigation.
			return !strings.Contains(sel, "shop-now")
		},
		NavigateErr: func(url string) error {
			if strings.Contains(url, "/products") {
				return browser.ErrNavigation
			}
			return nil
		},
	}
	result, _ := runOnFake(t, testConfig(), pageCfg, 42)

	assert.Equal(t, StatusError, result.Status)
	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, browser.ErrNavigation)

	o, ok := result.Outcome(PhaseBrowse)
	require.True(t, ok)
	assert.Equal(t, PhaseFailed, o.Status)

	// Later phases still ran; a phase failure is local.
	assert.True(t, result.Completed(PhaseAuthenticate))

	// With no product ever viewed, checkout is skipped, not attempted.
	co, ok := result.Outcome(PhaseCheckout)
	require.True(t, ok)
	assert.Equal(t, PhaseSkipped, co.Status)
	assert.NotContains(t, result.Endpoints, "/api/checkout")
}

func TestRun_AuthSignalTimeoutFailsPhase(t *testing.T) {
	pageCfg := browser.FakePageConfig{
		// The signed-in marker never shows up after submit.
		WaitForFn: func(sel string) bool {
			return sel != selSignedIn
		},
	}
	result, _ := runOnFake(t, testConfig(), pageCfg, 42)

	o, ok := result.Outcome(PhaseAuthenticate)
	require.True(t, ok)
	assert.Equal(t, PhaseFailed, o.Status)
	assert.ErrorIs(t, o.Err, browser.ErrElementNotFound)

	// Core browsing still succeeds; a failed login does not sink the
	// session, and later phases keep running.
	assert.Equal(t, StatusSuccess, result.Status)
	assert.True(t, result.Completed(PhaseAccount))
}

func TestRun_Canceled(t *testing.T) {
	d := browser.NewFakeDriver()
	page, err := d.OpenPage(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sc := New(testConfig(), nil)
	model := timing.NewSeeded(42, testScale)
	result := sc.Run(ctx, "sess_test", page, testPersona(), model)

	assert.Equal(t, StatusCanceled, result.Status)
	assert.Error(t, result.Err)

	// After the first phase hits the canceled context, the rest are
	// skipped rather than attempted.
	last := result.Phases[len(result.Phases)-1]
	assert.Equal(t, PhaseSkipped, last.Status)
}

func TestRun_Deterministic(t *testing.T) {
	a, pageA := runOnFake(t, testConfig(), browser.FakePageConfig{}, 1234)
	b, pageB := runOnFake(t, testConfig(), browser.FakePageConfig{}, 1234)

	assert.Equal(t, a.Status, b.Status)
	assert.Equal(t, a.Endpoints, b.Endpoints)
	require.Len(t, b.Phases, len(a.Phases))
	for i := range a.Phases {
		assert.Equal(t, a.Phases[i].Status, b.Phases[i].Status)
	}

	// Same seed, same keystrokes into the search box.
	typedA := pageA.TypedInto("search-input")
	typedB := pageB.TypedInto("search-input")
	assert.NotEmpty(t, typedA)
	assert.Equal(t, typedA, typedB)
}

func TestRun_ExploreSkippedWhenBudgetSpent(t *testing.T) {
	cfg := testConfig()
	cfg.SessionDuration = time.Millisecond
	result, _ := runOnFake(t, cfg, browser.FakePageConfig{}, 42)

	o, ok := result.Outcome(PhaseExplore)
	require.True(t, ok)
	assert.Equal(t, PhaseSkipped, o.Status)
}

func TestRun_SearchFallsBackToURL(t *testing.T) {
	pageCfg := browser.FakePageConfig{
		ExistsFn: func(sel string) bool {
			return !strings.Contains(sel, "search")
		},
	}
	result, page := runOnFake(t, testConfig(), pageCfg, 42)

	assert.True(t, result.Completed(PhaseSearch))
	assert.Contains(t, result.Endpoints, "/api/search")

	// The query went through the URL, not the keyboard, and came out
	// escaped.
	assert.Empty(t, page.TypedInto("search-input"))
	var urlSearch string
	for _, c := range page.CallsFor("navigate") {
		if strings.Contains(c.Arg, "/products?q=") {
			urlSearch = c.Arg
		}
	}
	require.NotEmpty(t, urlSearch)
	assert.NotContains(t, urlSearch, " ")
}

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, 30*time.Second, cfg.SessionDuration)
	assert.Equal(t, 10*time.Second, cfg.WaitTimeout)
	assert.InDelta(t, 0.10, cfg.TypoProbability, 1e-9)
	assert.InDelta(t, 0.70, cfg.SearchTypoProbability, 1e-9)
	assert.Equal(t, 10, cfg.MaxExploreActions)
}
