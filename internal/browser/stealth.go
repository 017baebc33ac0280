package browser

import (
	"github.com/go-rod/rod"
)

// stealthScript runs before any page script and masks the most common
// headless fingerprints. Consent platforms behave differently when they
// detect automation, which would skew what cookies get set.
const stealthScript = `() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	Object.defineProperty(navigator, 'plugins', {
		get: () => [
			{ name: 'Chrome PDF Plugin' },
			{ name: 'Chrome PDF Viewer' },
			{ name: 'Native Client' },
		],
	});
	Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
	if (!window.chrome) {
		window.chrome = { runtime: {} };
	}
	const originalQuery = window.navigator.permissions && window.navigator.permissions.query;
	if (originalQuery) {
		window.navigator.permissions.query = (parameters) => (
			parameters.name === 'notifications'
				? Promise.resolve({ state: Notification.permission })
				: originalQuery(parameters)
		);
	}
}`

// ApplyStealth installs the fingerprint masking script so it executes on
// every document the page loads, including same-site navigations.
func ApplyStealth(page *rod.Page) error {
	_, err := page.EvalOnNewDocument(stealthScript)
	return err
}
