package classify

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Classifier runs the classification cascade. The stages are strictly
// ordered; the first stage producing a verdict wins, with ML evidence able
// to promote the IAB and rules stages.
type Classifier struct {
	overrides *OverrideCache
	rules     []*Rule
	gvl       *GVL
	ml        MLClient
}

func NewClassifier(overrides *OverrideCache, rules []*Rule, gvl *GVL, ml MLClient) *Classifier {
	return &Classifier{
		overrides: overrides,
		rules:     rules,
		gvl:       gvl,
		ml:        ml,
	}
}

// NewClassifierFromSettings wires the cascade from configuration: rules
// document, vendor list and optional ML endpoint.
func NewClassifierFromSettings(store OverrideLister) (*Classifier, error) {
	rules, err := LoadRules()
	if err != nil {
		return nil, err
	}
	return NewClassifier(NewOverrideCache(store), rules, LoadGVL(), NewMLClient()), nil
}

// Classify assigns category, vendor and source to one cookie.
func (c *Classifier) Classify(domainConfigID, cookieName, cookieDomain string) Classification {
	var ml *MLPrediction
	if c.ml != nil {
		ml = c.ml.Predict(cookieName, cookieDomain)
	}

	result := c.resolve(domainConfigID, cookieName, cookieDomain, ml)

	// an ML prediction overridden by a stronger signal it weakly disagrees
	// with flags the cookie for review
	if ml != nil && result.Source != SourceMLHigh && result.Source != SourceMLLow {
		if ml.Category != result.Category && ml.Confidence < mlAgreeConfidence {
			result.RequiresReview = true
		}
	}
	return result
}

func (c *Classifier) resolve(domainConfigID, cookieName, cookieDomain string, ml *MLPrediction) Classification {
	if override := c.overrides.Lookup(domainConfigID, cookieName); override != nil {
		return Classification{
			Category:    override.Category,
			Vendor:      override.Vendor,
			Description: override.Description,
			Source:      SourceDB,
		}
	}

	if ml != nil && ml.Confidence >= mlHighConfidence {
		return Classification{
			Category:     ml.Category,
			Vendor:       CategoryUnknown,
			Source:       SourceMLHigh,
			MLConfidence: &ml.Confidence,
		}
	}

	if verdict, ok := c.classifyIAB(cookieName, cookieDomain, ml); ok {
		return verdict
	}

	if verdict, ok := c.classifyRules(cookieName, cookieDomain, ml); ok {
		return verdict
	}

	if ml != nil {
		return Classification{
			Category:       ml.Category,
			Vendor:         CategoryUnknown,
			Source:         SourceMLLow,
			MLConfidence:   &ml.Confidence,
			RequiresReview: true,
		}
	}

	return Classification{
		Category:       CategoryUnknown,
		Vendor:         CategoryUnknown,
		Source:         SourceFallback,
		RequiresReview: true,
	}
}

// classifyIAB resolves matching rules that carry an iab_id through the
// Global Vendor List. Skipped entirely when no vendor list is loaded.
func (c *Classifier) classifyIAB(cookieName, cookieDomain string, ml *MLPrediction) (Classification, bool) {
	if c.gvl == nil {
		return Classification{}, false
	}
	for _, rule := range c.rules {
		if rule.IABID == 0 || !rule.Matches(cookieName, cookieDomain) {
			continue
		}
		vendor, ok := c.gvl.Vendor(rule.IABID)
		if !ok {
			log.Debug().Int("iab_id", rule.IABID).Str("cookie", cookieName).Msg("Vendor id not in vendor list")
			continue
		}
		category, ok := CategoryForPurposes(vendor.Purposes)
		if !ok {
			continue
		}
		verdict := Classification{
			Category:    category,
			Vendor:      vendor.Name,
			Description: rule.Description,
			IABPurposes: vendor.Purposes,
			Source:      SourceIAB,
		}
		if ml != nil && ml.Confidence >= mlAgreeConfidence && ml.Category == category {
			verdict.Source = SourceIABMLBlend
			verdict.MLConfidence = &ml.Confidence
		}
		return verdict, true
	}
	return Classification{}, false
}

func (c *Classifier) classifyRules(cookieName, cookieDomain string, ml *MLPrediction) (Classification, bool) {
	for _, rule := range c.rules {
		// rules carrying only an iab_id have no category of their own;
		// they resolve through the vendor list stage or not at all
		if rule.Category == "" || !rule.Matches(cookieName, cookieDomain) {
			continue
		}
		verdict := Classification{
			Category:    rule.Category,
			Vendor:      rule.Vendor,
			Description: rule.Description,
			IABPurposes: rule.IABPurposes,
			Source:      SourceRulesJSON,
		}
		if verdict.Vendor == "" {
			verdict.Vendor = CategoryUnknown
		}
		if ml != nil && ml.Confidence >= mlAgreeConfidence && ml.Category == rule.Category {
			verdict.Source = SourceRulesMLAgree
			verdict.MLConfidence = &ml.Confidence
			verdict.Description = fmt.Sprintf("ML agreement (confidence %.2f). %s", ml.Confidence, verdict.Description)
		}
		return verdict, true
	}
	return Classification{}, false
}
