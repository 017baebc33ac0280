package classify

import (
	"testing"

	"github.com/consentry/consentry/db"
	"github.com/stretchr/testify/assert"
)

type fakeOverrideStore struct {
	items map[string][]*db.DomainOverride
	loads int
}

func (f *fakeOverrideStore) ListDomainOverrides(domainConfigID string) ([]*db.DomainOverride, error) {
	f.loads++
	return f.items[domainConfigID], nil
}

type fixedML struct {
	prediction *MLPrediction
}

func (f fixedML) Predict(cookieName, cookieDomain string) *MLPrediction {
	return f.prediction
}

func testRules(t *testing.T) []*Rule {
	rules, err := parseRules(defaultRulesDocument)
	assert.Nil(t, err)
	return rules
}

func testGVL() *GVL {
	return &GVL{
		VendorListVersion: 100,
		Vendors: map[string]GVLVendor{
			"755": {ID: 755, Name: "Google Advertising Products", Purposes: []int{1, 4, 7}},
			"891": {ID: 891, Name: "Meta Platforms", Purposes: []int{4, 5}},
		},
	}
}

func newTestClassifier(store *fakeOverrideStore, rules []*Rule, gvl *GVL, ml MLClient) *Classifier {
	if store == nil {
		store = &fakeOverrideStore{}
	}
	return NewClassifier(NewOverrideCache(store), rules, gvl, ml)
}

func TestOverrideWinsOverEverything(t *testing.T) {
	store := &fakeOverrideStore{items: map[string][]*db.DomainOverride{
		"cfg-1": {{DomainConfigID: "cfg-1", CookieName: "_ga", Category: CategoryNecessary, Vendor: "Internal"}},
	}}
	ml := fixedML{prediction: &MLPrediction{Category: CategoryAdvertising, Confidence: 0.99}}
	c := newTestClassifier(store, testRules(t), testGVL(), ml)

	verdict := c.Classify("cfg-1", "_ga", ".example.com")
	assert.Equal(t, SourceDB, verdict.Source)
	assert.Equal(t, CategoryNecessary, verdict.Category)
	assert.Equal(t, "Internal", verdict.Vendor)
}

func TestMLHighConfidenceBeatsRules(t *testing.T) {
	// _hj matches an Analytics regex rule, the model is confident it is
	// Advertising
	ml := fixedML{prediction: &MLPrediction{Category: CategoryAdvertising, Confidence: 0.82}}
	c := newTestClassifier(nil, testRules(t), nil, ml)

	verdict := c.Classify("cfg-1", "_hjSessionUser", ".example.com")
	assert.Equal(t, SourceMLHigh, verdict.Source)
	assert.Equal(t, CategoryAdvertising, verdict.Category)
	assert.Equal(t, 0.82, *verdict.MLConfidence)
	assert.False(t, verdict.RequiresReview)
}

func TestIABVendorResolution(t *testing.T) {
	c := newTestClassifier(nil, testRules(t), testGVL(), nil)

	verdict := c.Classify("cfg-1", "_ga", ".example.com")
	assert.Equal(t, SourceIAB, verdict.Source)
	// purposes {1,4,7} collapse to Necessary by priority
	assert.Equal(t, CategoryNecessary, verdict.Category)
	assert.Equal(t, "Google Advertising Products", verdict.Vendor)
	assert.Equal(t, []int{1, 4, 7}, verdict.IABPurposes)
}

func TestIABMLBlendPromotion(t *testing.T) {
	ml := fixedML{prediction: &MLPrediction{Category: CategoryNecessary, Confidence: 0.6}}
	c := newTestClassifier(nil, testRules(t), testGVL(), ml)

	verdict := c.Classify("cfg-1", "_ga", ".example.com")
	assert.Equal(t, SourceIABMLBlend, verdict.Source)
	assert.Equal(t, 0.6, *verdict.MLConfidence)
}

func TestRegexRulesWithoutGVL(t *testing.T) {
	c := newTestClassifier(nil, testRules(t), nil, nil)

	verdict := c.Classify("cfg-1", "_ga", ".example.com")
	assert.Equal(t, SourceRulesJSON, verdict.Source)
	assert.Equal(t, CategoryAnalytics, verdict.Category)
	assert.Equal(t, "Google Analytics", verdict.Vendor)
}

func TestIABOnlyRuleFallsThroughWithoutGVL(t *testing.T) {
	// a rule with an iab_id but no category of its own resolves through the
	// vendor list or not at all
	rules, err := parseRules([]byte(`[{"pattern": "^vendor_cookie$", "iab_id": 755}]`))
	assert.Nil(t, err)

	c := newTestClassifier(nil, rules, nil, nil)
	verdict := c.Classify("cfg-1", "vendor_cookie", ".example.com")
	assert.Equal(t, SourceFallback, verdict.Source)
	assert.Equal(t, CategoryUnknown, verdict.Category)
	assert.True(t, verdict.RequiresReview)

	withGVL := newTestClassifier(nil, rules, testGVL(), nil)
	verdict = withGVL.Classify("cfg-1", "vendor_cookie", ".example.com")
	assert.Equal(t, SourceIAB, verdict.Source)
	assert.Equal(t, "Google Advertising Products", verdict.Vendor)
}

func TestRulesMLAgreePromotion(t *testing.T) {
	ml := fixedML{prediction: &MLPrediction{Category: CategoryAnalytics, Confidence: 0.6}}
	c := newTestClassifier(nil, testRules(t), nil, ml)

	verdict := c.Classify("cfg-1", "hubspotutk", ".example.com")
	assert.Equal(t, SourceRulesMLAgree, verdict.Source)
	assert.Contains(t, verdict.Description, "ML agreement")
}

func TestMLLowConfidenceRequiresReview(t *testing.T) {
	ml := fixedML{prediction: &MLPrediction{Category: CategoryFunctional, Confidence: 0.55}}
	c := newTestClassifier(nil, testRules(t), nil, ml)

	verdict := c.Classify("cfg-1", "totally_unknown_cookie", ".example.com")
	assert.Equal(t, SourceMLLow, verdict.Source)
	assert.Equal(t, CategoryFunctional, verdict.Category)
	assert.True(t, verdict.RequiresReview)
}

func TestFallbackRequiresReview(t *testing.T) {
	c := newTestClassifier(nil, testRules(t), nil, nil)

	verdict := c.Classify("cfg-1", "totally_unknown_cookie", ".example.com")
	assert.Equal(t, SourceFallback, verdict.Source)
	assert.Equal(t, CategoryUnknown, verdict.Category)
	assert.Equal(t, CategoryUnknown, verdict.Vendor)
	assert.True(t, verdict.RequiresReview)
}

func TestWeakOverriddenDisagreementFlagsReview(t *testing.T) {
	// the rule classifies Analytics, the model weakly says Advertising
	ml := fixedML{prediction: &MLPrediction{Category: CategoryAdvertising, Confidence: 0.3}}
	c := newTestClassifier(nil, testRules(t), nil, ml)

	verdict := c.Classify("cfg-1", "_ga", ".example.com")
	assert.Equal(t, SourceRulesJSON, verdict.Source)
	assert.True(t, verdict.RequiresReview)
}

func TestStrongOverriddenDisagreementDoesNotFlag(t *testing.T) {
	store := &fakeOverrideStore{items: map[string][]*db.DomainOverride{
		"cfg-1": {{DomainConfigID: "cfg-1", CookieName: "_ga", Category: CategoryNecessary, Vendor: "Internal"}},
	}}
	ml := fixedML{prediction: &MLPrediction{Category: CategoryAdvertising, Confidence: 0.6}}
	c := newTestClassifier(store, testRules(t), nil, ml)

	verdict := c.Classify("cfg-1", "_ga", ".example.com")
	assert.Equal(t, SourceDB, verdict.Source)
	assert.False(t, verdict.RequiresReview)
}

func TestRuleDomainRestriction(t *testing.T) {
	c := newTestClassifier(nil, testRules(t), nil, nil)

	onFacebook := c.Classify("cfg-1", "fr", ".facebook.com")
	assert.Equal(t, CategoryAdvertising, onFacebook.Category)

	elsewhere := c.Classify("cfg-1", "fr", ".example.com")
	assert.Equal(t, SourceFallback, elsewhere.Source)
}

func TestOverrideCacheLoadsOncePerDomain(t *testing.T) {
	store := &fakeOverrideStore{items: map[string][]*db.DomainOverride{}}
	cache := NewOverrideCache(store)

	cache.Lookup("cfg-1", "a")
	cache.Lookup("cfg-1", "b")
	cache.Lookup("cfg-2", "a")
	assert.Equal(t, 2, store.loads)
}

func TestCategoryForPurposesPriority(t *testing.T) {
	category, ok := CategoryForPurposes([]int{4, 7})
	assert.True(t, ok)
	assert.Equal(t, CategoryAnalytics, category)

	category, ok = CategoryForPurposes([]int{4, 5})
	assert.True(t, ok)
	assert.Equal(t, CategoryAdvertising, category)

	_, ok = CategoryForPurposes([]int{99})
	assert.False(t, ok)
}
