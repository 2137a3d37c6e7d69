package scenario

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/example/trafficsim/internal/browser"
	"github.com/example/trafficsim/internal/timing"
)

// landingPhase opens the homepage and looks around.
type landingPhase struct{}

func (landingPhase) name() string { return PhaseLanding }

func (landingPhase) run(ctx context.Context, st *state) error {
	if err := st.page.Navigate(ctx, st.url("/")); err != nil {
		return fmt.Errorf("open homepage: %w", err)
	}
	st.touch(epHealth)
	st.visit("/")

	if err := st.readDelay(ctx, 2*time.Second, 4*time.Second); err != nil {
		return err
	}
	st.scrollRandomly(ctx, st.model.Between(1, 2))
	st.exploreHover(ctx, selNavLinks)

	return st.pause(ctx, st.model.Hesitate(500*time.Millisecond, 1500*time.Millisecond))
}

// browsePhase visits the product list and opens one or two product details.
type browsePhase struct{}

func (browsePhase) name() string { return PhaseBrowse }

func (browsePhase) run(ctx context.Context, st *state) error {
	// Prefer clicking through from the homepage; fall back to direct
	// navigation when no shop link renders.
	hasLink, _ := st.page.Exists(ctx, selShopNow)
	if hasLink {
		if err := st.pause(ctx, st.model.Hesitate(300*time.Millisecond, time.Second)); err != nil {
			return err
		}
		if err := st.page.Click(ctx, selShopNow); err != nil {
			hasLink = false
		}
	}
	if !hasLink {
		if err := st.page.Navigate(ctx, st.url("/products")); err != nil {
			return fmt.Errorf("open products: %w", err)
		}
	}
	st.touch(epProducts)
	st.visit("/products")

	if err := st.readDelay(ctx, 2*time.Second, 4*time.Second); err != nil {
		return err
	}
	st.scrollRandomly(ctx, st.model.Between(1, 3))
	st.exploreHover(ctx, selProductCard)

	hasCards, _ := st.page.Exists(ctx, selProductCard)
	if !hasCards {
		return nil
	}

	views := st.model.Between(1, 2)
	for i := 0; i < views; i++ {
		if err := st.pause(ctx, st.model.Hesitate(500*time.Millisecond, time.Second)); err != nil {
			return err
		}
		if err := st.page.Click(ctx, nthCard(st.model.Between(1, 3))); err != nil {
			break
		}
		if !st.page.WaitFor(ctx, selProductDetail, st.cfg.WaitTimeout) {
			return fmt.Errorf("%w: %s", browser.ErrElementNotFound, selProductDetail)
		}
		st.touch(epProductDetail)
		st.productViewed = true

		if err := st.readDelay(ctx, 2*time.Second, 5*time.Second); err != nil {
			return err
		}
		st.scrollRandomly(ctx, st.model.Between(0, 2))

		if err := st.page.GoBack(ctx); err != nil {
			return fmt.Errorf("return to products: %w", err)
		}
		if err := st.pause(ctx, st.model.QuickGlance(500*time.Millisecond, 1500*time.Millisecond)); err != nil {
			return err
		}
	}
	return nil
}

// searchPhase types a query into the search box, usually misspelling it
// first, and sometimes opens a result.
type searchPhase struct{}

func (searchPhase) name() string { return PhaseSearch }

func (searchPhase) run(ctx context.Context, st *state) error {
	hasInput, _ := st.page.Exists(ctx, selSearchInput)
	q := searchQueries[st.model.Intn(len(searchQueries))]

	if !hasInput {
		// No search box rendered; hit search through the URL instead.
		if err := st.page.Navigate(ctx, st.url("/products?q="+url.QueryEscape(q.Text))); err != nil {
			return fmt.Errorf("search via url: %w", err)
		}
		st.touch(epSearch)
		return st.readDelay(ctx, time.Second, 2*time.Second)
	}

	if len(q.Typos) > 0 && st.model.Chance(st.cfg.SearchTypoProbability) {
		// Type a misspelled variant, notice it, clear, and retype.
		typo := q.Typos[st.model.Intn(len(q.Typos))]
		if err := st.humanType(ctx, selSearchInput, typo, timing.TypingProfile{WPM: 35}); err != nil {
			return fmt.Errorf("type query: %w", err)
		}
		if err := st.pause(ctx, st.model.Hesitate(800*time.Millisecond, 1500*time.Millisecond)); err != nil {
			return err
		}
		if err := st.page.Clear(ctx, selSearchInput); err != nil {
			return fmt.Errorf("clear query: %w", err)
		}
		if err := st.pause(ctx, st.model.Hesitate(300*time.Millisecond, 500*time.Millisecond)); err != nil {
			return err
		}
		if err := st.humanType(ctx, selSearchInput, q.Text, timing.TypingProfile{WPM: 50}); err != nil {
			return fmt.Errorf("retype query: %w", err)
		}
	} else {
		profile := timing.TypingProfile{WPM: 40, TypoProbability: st.cfg.TypoProbability}
		if err := st.humanType(ctx, selSearchInput, q.Text, profile); err != nil {
			return fmt.Errorf("type query: %w", err)
		}
	}

	if err := st.pause(ctx, st.model.Hesitate(300*time.Millisecond, 600*time.Millisecond)); err != nil {
		return err
	}

	if hasBtn, _ := st.page.Exists(ctx, selSearchButton); hasBtn {
		if err := st.page.Click(ctx, selSearchButton); err != nil {
			return fmt.Errorf("submit search: %w", err)
		}
	} else if err := st.page.SendKeys(ctx, selSearchInput, browser.Enter); err != nil {
		return fmt.Errorf("submit search: %w", err)
	}
	st.touch(epSearch)

	if err := st.pause(ctx, st.model.Hesitate(500*time.Millisecond, time.Second)); err != nil {
		return err
	}
	if err := st.readDelay(ctx, time.Second, 3*time.Second); err != nil {
		return err
	}

	// Sometimes open the first result.
	if st.model.Chance(0.6) {
		if hasCards, _ := st.page.Exists(ctx, selProductCard); hasCards {
			if err := st.pause(ctx, st.model.Hesitate(500*time.Millisecond, time.Second)); err != nil {
				return err
			}
			if err := st.page.Click(ctx, selProductCard); err == nil &&
				st.page.WaitFor(ctx, selProductDetail, st.cfg.WaitTimeout/2) {
				st.touch(epProductDetail)
				if err := st.readDelay(ctx, time.Second, 2*time.Second); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// authenticatePhase signs in, preferring the demo login shortcut and
// falling back to the manual form.
type authenticatePhase struct{}

func (authenticatePhase) name() string { return PhaseAuthenticate }

func (authenticatePhase) run(ctx context.Context, st *state) error {
	if err := st.page.Navigate(ctx, st.url("/login")); err != nil {
		return fmt.Errorf("open login: %w", err)
	}
	st.visit("/login")
	if err := st.readDelay(ctx, time.Second, 2*time.Second); err != nil {
		return err
	}

	personal := fmt.Sprintf(`[data-testid="demo-login-%s"], %s`, st.user.Email, selDemoLogin)
	if hasDemo, _ := st.page.Exists(ctx, personal); hasDemo {
		if err := st.pause(ctx, st.model.Hesitate(500*time.Millisecond, 1500*time.Millisecond)); err != nil {
			return err
		}
		if err := st.page.Click(ctx, personal); err != nil {
			return fmt.Errorf("demo login: %w", err)
		}
		st.touch(epLogin)
		if err := st.pause(ctx, st.model.Hesitate(time.Second, 2*time.Second)); err != nil {
			return err
		}
		return awaitSignIn(ctx, st)
	}

	hasEmail, _ := st.page.Exists(ctx, selEmailInput)
	hasPassword, _ := st.page.Exists(ctx, selPasswordInput)
	if !hasEmail || !hasPassword {
		return fmt.Errorf("%w: login form", browser.ErrElementNotFound)
	}

	emailProfile := timing.TypingProfile{WPM: 35, TypoProbability: st.cfg.TypoProbability}
	if err := st.humanType(ctx, selEmailInput, st.user.Email, emailProfile); err != nil {
		return fmt.Errorf("type email: %w", err)
	}
	if err := st.pause(ctx, st.model.Hesitate(500*time.Millisecond, time.Second)); err != nil {
		return err
	}

	// Passwords go faster, muscle memory.
	if err := st.humanType(ctx, selPasswordInput, st.user.Password, timing.TypingProfile{WPM: 60}); err != nil {
		return fmt.Errorf("type password: %w", err)
	}
	if err := st.pause(ctx, st.model.Hesitate(300*time.Millisecond, 700*time.Millisecond)); err != nil {
		return err
	}

	if err := st.page.Click(ctx, selLoginButton); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	st.touch(epLogin)
	if err := st.pause(ctx, st.model.Hesitate(time.Second, 2*time.Second)); err != nil {
		return err
	}
	return awaitSignIn(ctx, st)
}

// awaitSignIn waits for a signed-in marker to confirm the login landed.
// A page that never shows one fails the phase.
func awaitSignIn(ctx context.Context, st *state) error {
	if !st.page.WaitFor(ctx, selSignedIn, st.cfg.WaitTimeout) {
		return fmt.Errorf("%w: signed-in marker", browser.ErrElementNotFound)
	}
	return nil
}

// accountPhase visits the account, dashboard, and orders views.
type accountPhase struct{}

func (accountPhase) name() string { return PhaseAccount }

func (accountPhase) run(ctx context.Context, st *state) error {
	if err := st.page.Navigate(ctx, st.url("/account")); err != nil {
		return fmt.Errorf("open account: %w", err)
	}
	st.touch(epUser)
	st.visit("/account")
	if err := st.readDelay(ctx, 2*time.Second, 4*time.Second); err != nil {
		return err
	}
	st.scrollRandomly(ctx, st.model.Between(0, 2))

	// Dashboard, via link when present.
	if hasLink, _ := st.page.Exists(ctx, selDashboardLink); hasLink {
		if err := st.pause(ctx, st.model.Hesitate(300*time.Millisecond, time.Second)); err != nil {
			return err
		}
		if err := st.page.Click(ctx, selDashboardLink); err != nil {
			return fmt.Errorf("open dashboard: %w", err)
		}
	} else if err := st.page.Navigate(ctx, st.url("/dashboard")); err != nil {
		return fmt.Errorf("open dashboard: %w", err)
	}
	st.touch(epDashboard)
	st.visit("/dashboard")
	if err := st.readDelay(ctx, 2*time.Second, 3*time.Second); err != nil {
		return err
	}

	// Orders view is optional.
	if hasOrders, _ := st.page.Exists(ctx, selOrdersLink); hasOrders {
		if err := st.pause(ctx, st.model.Hesitate(300*time.Millisecond, time.Second)); err != nil {
			return err
		}
		if err := st.page.Click(ctx, selOrdersLink); err == nil {
			st.touch(epOrders)
			if err := st.readDelay(ctx, time.Second, 2*time.Second); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkoutPhase puts a product in the cart and walks the full checkout,
// shipping and payment forms included.
type checkoutPhase struct{}

func (checkoutPhase) name() string { return PhaseCheckout }

func (checkoutPhase) run(ctx context.Context, st *state) error {
	// Nobody buys without having seen a product first.
	if !st.productViewed {
		return errSkipPhase
	}

	if err := st.page.Navigate(ctx, st.url("/products")); err != nil {
		return fmt.Errorf("open products: %w", err)
	}
	if err := st.pause(ctx, st.model.QuickGlance(500*time.Millisecond, 1500*time.Millisecond)); err != nil {
		return err
	}

	hasCards, _ := st.page.Exists(ctx, selProductCard)
	if !hasCards {
		return errSkipPhase
	}

	if err := st.pause(ctx, st.model.Hesitate(500*time.Millisecond, time.Second)); err != nil {
		return err
	}
	if err := st.page.Click(ctx, nthCard(st.model.Between(1, 3))); err != nil {
		return errSkipPhase
	}
	if !st.page.WaitFor(ctx, selProductDetail, st.cfg.WaitTimeout) {
		return errSkipPhase
	}
	if err := st.readDelay(ctx, time.Second, 2*time.Second); err != nil {
		return err
	}

	hasAdd, _ := st.page.Exists(ctx, selAddToCart)
	if !hasAdd {
		return errSkipPhase
	}
	if err := st.pause(ctx, st.model.Hesitate(300*time.Millisecond, time.Second)); err != nil {
		return err
	}
	if err := st.page.Click(ctx, selAddToCart); err != nil {
		return fmt.Errorf("add to cart: %w", err)
	}
	if err := st.pause(ctx, st.model.Hesitate(500*time.Millisecond, time.Second)); err != nil {
		return err
	}

	// Cart.
	if hasCart, _ := st.page.Exists(ctx, selCartIcon); hasCart {
		if err := st.page.Click(ctx, selCartIcon); err != nil {
			return fmt.Errorf("open cart: %w", err)
		}
	} else if err := st.page.Navigate(ctx, st.url("/cart")); err != nil {
		return fmt.Errorf("open cart: %w", err)
	}
	st.visit("/cart")
	if err := st.readDelay(ctx, time.Second, 2*time.Second); err != nil {
		return err
	}
	st.scrollRandomly(ctx, st.model.Between(0, 1))

	hasCheckout, _ := st.page.Exists(ctx, selCheckout)
	if !hasCheckout {
		return errSkipPhase
	}
	if err := st.pause(ctx, st.model.Hesitate(500*time.Millisecond, 1500*time.Millisecond)); err != nil {
		return err
	}
	if err := st.page.Click(ctx, selCheckout); err != nil {
		return fmt.Errorf("start checkout: %w", err)
	}
	if err := st.readDelay(ctx, time.Second, 2*time.Second); err != nil {
		return err
	}

	if err := fillForm(ctx, st, shippingFields(st.user.Email), true); err != nil {
		return err
	}
	if hasContinue, _ := st.page.Exists(ctx, selContinuePay); hasContinue {
		if err := st.pause(ctx, st.model.Hesitate(500*time.Millisecond, time.Second)); err != nil {
			return err
		}
		if err := st.page.Click(ctx, selContinuePay); err != nil {
			return fmt.Errorf("continue to payment: %w", err)
		}
		if err := st.pause(ctx, st.model.Hesitate(500*time.Millisecond, time.Second)); err != nil {
			return err
		}
	}
	if err := fillForm(ctx, st, paymentFields(st.user.Name), false); err != nil {
		return err
	}

	hasOrder, _ := st.page.Exists(ctx, selPlaceOrder)
	if !hasOrder {
		return errSkipPhase
	}
	// Think before committing.
	if err := st.pause(ctx, st.model.Hesitate(time.Second, 2*time.Second)); err != nil {
		return err
	}
	if err := st.page.Click(ctx, selPlaceOrder); err != nil {
		return fmt.Errorf("place order: %w", err)
	}
	st.touch(epCheckout)
	if err := st.pause(ctx, st.model.Hesitate(2*time.Second, 4*time.Second)); err != nil {
		return err
	}

	if st.page.WaitFor(ctx, selConfirmation, st.cfg.WaitTimeout/2) {
		st.touch(epOrders)
		return st.readDelay(ctx, 2*time.Second, 3*time.Second)
	}
	return nil
}

// fillForm types each present field with its own speed. Shipping fields
// occasionally get typos; payment fields never do.
func fillForm(ctx context.Context, st *state, fields []formField, allowTypos bool) error {
	for _, f := range fields {
		present, _ := st.page.Exists(ctx, f.selector)
		if !present {
			continue
		}
		profile := timing.TypingProfile{WPM: f.wpm}
		if allowTypos && st.model.Chance(0.15) {
			profile.TypoProbability = st.cfg.TypoProbability
		}
		if err := st.humanType(ctx, f.selector, f.value, profile); err != nil {
			return fmt.Errorf("fill %s: %w", f.selector, err)
		}
		if err := st.pause(ctx, st.model.Hesitate(200*time.Millisecond, 500*time.Millisecond)); err != nil {
			return err
		}
	}
	return nil
}

// explorePhase spends whatever remains of the session budget wandering
// around the site.
type explorePhase struct{}

func (explorePhase) name() string { return PhaseExplore }

func (explorePhase) run(ctx context.Context, st *state) error {
	remaining := st.remaining()
	if remaining < 3*time.Second {
		return errSkipPhase
	}

	// Roughly three seconds per action.
	budget := int(remaining / (3 * time.Second))
	if budget > st.cfg.MaxExploreActions {
		budget = st.cfg.MaxExploreActions
	}

	// Wander back through routes the session already knows about.
	routes := st.visited
	if len(routes) == 0 {
		routes = []string{"/", "/products", "/cart", "/account"}
	}
	for done := 0; done < budget && st.remaining() > 0; done++ {
		switch st.model.Intn(3) {
		case 0: // browse
			if err := st.page.Navigate(ctx, st.url("/products")); err != nil {
				return fmt.Errorf("explore browse: %w", err)
			}
			if err := st.readDelay(ctx, time.Second, 2*time.Second); err != nil {
				return err
			}
			st.scrollRandomly(ctx, st.model.Between(1, 3))
		case 1: // scroll in place
			st.scrollRandomly(ctx, st.model.Between(2, 4))
			if err := st.readDelay(ctx, 500*time.Millisecond, 1500*time.Millisecond); err != nil {
				return err
			}
		case 2: // navigate elsewhere
			route := routes[st.model.Intn(len(routes))]
			if err := st.page.Navigate(ctx, st.url(route)); err != nil {
				return fmt.Errorf("explore navigate: %w", err)
			}
			st.visit(route)
			if err := st.readDelay(ctx, time.Second, 2*time.Second); err != nil {
				return err
			}
		}
	}
	return nil
}
