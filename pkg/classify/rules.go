package classify

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

//go:embed rules.json
var defaultRulesDocument []byte

// Rule matches cookie names by regex and carries the annotation applied on
// a match.
type Rule struct {
	Pattern        string   `json:"pattern"`
	Category       string   `json:"category"`
	IABID          int      `json:"iab_id,omitempty"`
	Vendor         string   `json:"vendor,omitempty"`
	Description    string   `json:"description,omitempty"`
	IABPurposes    []int    `json:"iab_purposes,omitempty"`
	AllowedDomains []string `json:"allowed_domains,omitempty"`

	compiled *regexp.Regexp
}

// Matches reports whether the rule applies to a cookie. Rules with
// allowed_domains only match cookies on those domains.
func (r *Rule) Matches(cookieName, cookieDomain string) bool {
	if !r.compiled.MatchString(cookieName) {
		return false
	}
	if len(r.AllowedDomains) == 0 {
		return true
	}
	domain := strings.ToLower(strings.TrimPrefix(cookieDomain, "."))
	for _, allowed := range r.AllowedDomains {
		if strings.HasSuffix(domain, strings.ToLower(allowed)) {
			return true
		}
	}
	return false
}

// LoadRules reads the rules document configured under
// classifier.rules.path, falling back to the embedded default document.
func LoadRules() ([]*Rule, error) {
	raw := defaultRulesDocument
	path := viper.GetString("classifier.rules.path")
	if path != "" {
		fileRaw, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Could not read rules document, using embedded rules")
		} else {
			raw = fileRaw
		}
	}
	return parseRules(raw)
}

func parseRules(raw []byte) ([]*Rule, error) {
	var rules []*Rule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("invalid rules document: %w", err)
	}
	valid := make([]*Rule, 0, len(rules))
	for _, rule := range rules {
		compiled, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			log.Warn().Err(err).Str("pattern", rule.Pattern).Msg("Skipping rule with invalid pattern")
			continue
		}
		rule.compiled = compiled
		valid = append(valid, rule)
	}
	log.Info().Int("rules", len(valid)).Msg("Classification rules loaded")
	return valid, nil
}
