package scenario

// SearchQuery is a catalog entry: the intended query plus misspelled
// variants a hurried typist might produce first.
type SearchQuery struct {
	Text  string
	Typos []string
}

// searchQueries is the built-in query catalog.
var searchQueries = []SearchQuery{
	{"feature flags", []string{"featuer flags", "featur flags", "feature falgs"}},
	{"rollout", []string{"rolout", "rollotu", "roolout"}},
	{"testing", []string{"testnig", "testign", "tesitng"}},
	{"targeting", []string{"targteing", "targetign", "targetting"}},
	{"sdk", []string{"skd", "sdd", "sdk"}},
	{"experiment", []string{"experiemnt", "expirement", "experimetn"}},
	{"deployment", []string{"deploymnet", "deplyoment", "deployemnt"}},
	{"configuration", []string{"configuraiton", "configration", "configuraton"}},
}

// Element selectors for the target frontend. Comma-separated alternatives
// are tried by the browser in document order.
const (
	selNavLinks      = `nav a, [data-testid*="nav"]`
	selShopNow       = `[data-testid="shop-now-button"], a[href*="products"]`
	selProductCard   = `[data-testid="product-card"]`
	selProductDetail = `[data-testid="product-detail"]`
	selSearchInput   = `[data-testid="search-input"], input[type="search"], input[placeholder*="earch"]`
	selSearchButton  = `[data-testid="search-button"]`
	selDemoLogin     = `[data-testid^="demo-login"]`
	selEmailInput    = `[data-testid="email-input"], input[type="email"], input[name="email"]`
	selPasswordInput = `[data-testid="password-input"], input[type="password"], input[name="password"]`
	selLoginButton   = `[data-testid="login-button"], button[type="submit"]`
	selSignedIn      = `[data-testid="user-menu"], [data-testid="logout-button"], a[href*="account"]`
	selDashboardLink = `[data-testid="dashboard-link"], a[href*="dashboard"]`
	selOrdersLink    = `[data-testid="orders-link"], a[href*="orders"]`
	selAddToCart     = `[data-testid="add-to-cart"]`
	selCartIcon      = `[data-testid="cart-icon"], a[href*="cart"]`
	selCheckout      = `[data-testid="checkout-button"]`
	selContinuePay   = `[data-testid="continue-to-payment"]`
	selPlaceOrder    = `[data-testid="place-order"]`
	selConfirmation  = `[data-testid="order-confirmation"]`
)

// Backend endpoints attributed to frontend actions.
const (
	epHealth        = "/api/health"
	epProducts      = "/api/products"
	epProductDetail = "/api/products/<id>"
	epSearch        = "/api/search"
	epLogin         = "/api/login"
	epUser          = "/api/users/<user_id>"
	epDashboard     = "/api/dashboard"
	epOrders        = "/api/orders"
	epCheckout      = "/api/checkout"
)

// formField pairs a selector with the value to type and the typing speed
// used for it.
type formField struct {
	selector string
	value    string
	wpm      int
}

// shippingFields returns the shipping form plan. The email field uses the
// persona's address.
func shippingFields(email string) []formField {
	return []formField{
		{`[data-testid="first-name-input"], input[name="firstName"]`, "Demo", 30},
		{`[data-testid="last-name-input"], input[name="lastName"]`, "User", 35},
		{`[data-testid="shipping-email-input"], input[name="email"]`, email, 40},
		{`[data-testid="address-input"], input[name="address"]`, "123 Demo Street", 45},
		{`[data-testid="city-input"], input[name="city"]`, "San Francisco", 50},
		{`[data-testid="state-input"], input[name="state"]`, "CA", 60},
		{`[data-testid="zip-input"], input[name="zip"]`, "94105", 55},
	}
}

// paymentFields returns the payment form plan with the demo test card.
func paymentFields(cardholder string) []formField {
	return []formField{
		{`[data-testid="card-number"], input[name="cardNumber"]`, "4242 4242 4242 4242", 35},
		{`[data-testid="card-name"], input[name="cardName"]`, cardholder, 45},
		{`[data-testid="card-expiry"], input[name="expiry"]`, "12/25", 50},
		{`[data-testid="card-cvv"], input[name="cvv"]`, "123", 60},
	}
}
