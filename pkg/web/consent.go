package web

import (
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

const consentLookupTimeout = 3 * time.Second

// ClickConsent finds the accept button by selector and clicks it. Consent
// banners vary wildly, so every failure here is swallowed; the return value
// only reports whether a click happened.
func ClickConsent(page *rod.Page, selector string) bool {
	if selector == "" {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			log.Debug().Interface("panic", r).Str("selector", selector).Msg("Consent click panicked")
		}
	}()

	element, err := page.Timeout(consentLookupTimeout).Element(selector)
	if err != nil {
		log.Debug().Err(err).Str("selector", selector).Msg("Consent element not found")
		return false
	}
	visible, err := element.Visible()
	if err != nil || !visible {
		log.Debug().Str("selector", selector).Msg("Consent element not visible")
		return false
	}
	if err := element.Click(proto.InputMouseButtonLeft, 1); err != nil {
		log.Debug().Err(err).Str("selector", selector).Msg("Consent click failed")
		return false
	}
	log.Debug().Str("selector", selector).Msg("Consent banner accepted")
	return true
}
