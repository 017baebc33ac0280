package classify

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// purposeCategory collapses IAB TCF purpose ids into CMP categories.
var purposeCategory = map[int]string{
	1:  CategoryNecessary,
	2:  CategoryNecessary,
	3:  CategoryFunctional,
	8:  CategoryFunctional,
	9:  CategoryFunctional,
	6:  CategoryAnalytics,
	7:  CategoryAnalytics,
	10: CategoryAnalytics,
	4:  CategoryAdvertising,
	5:  CategoryAdvertising,
}

// categoryPriority orders categories when a vendor declares purposes that
// map to more than one.
var categoryPriority = []string{CategoryNecessary, CategoryFunctional, CategoryAnalytics, CategoryAdvertising}

type GVLVendor struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Purposes []int  `json:"purposes"`
}

type GVL struct {
	VendorListVersion int                  `json:"vendorListVersion"`
	Vendors           map[string]GVLVendor `json:"vendors"`
}

// Vendor looks a vendor up by numeric id.
func (g *GVL) Vendor(id int) (GVLVendor, bool) {
	vendor, ok := g.Vendors[fmt.Sprintf("%d", id)]
	return vendor, ok
}

// CategoryForPurposes collapses a purpose set into one category, preferring
// the stricter category when several apply.
func CategoryForPurposes(purposes []int) (string, bool) {
	present := make(map[string]bool)
	for _, purpose := range purposes {
		if category, ok := purposeCategory[purpose]; ok {
			present[category] = true
		}
	}
	for _, category := range categoryPriority {
		if present[category] {
			return category, true
		}
	}
	return "", false
}

// LoadGVL fetches the Global Vendor List once at startup. On network
// failure the local cache from a previous run is used; when both fail the
// IAB stage of the cascade is skipped.
func LoadGVL() *GVL {
	url := viper.GetString("classifier.gvl.url")
	cachePath := viper.GetString("classifier.gvl.cache")
	if url == "" && cachePath == "" {
		return nil
	}

	if url != "" {
		gvl, raw, err := fetchGVL(url)
		if err == nil {
			if cachePath != "" {
				if writeErr := os.WriteFile(cachePath, raw, 0644); writeErr != nil {
					log.Warn().Err(writeErr).Str("path", cachePath).Msg("Could not cache vendor list")
				}
			}
			log.Info().Int("version", gvl.VendorListVersion).Int("vendors", len(gvl.Vendors)).Msg("IAB vendor list loaded")
			return gvl
		}
		log.Warn().Err(err).Str("url", url).Msg("Could not fetch vendor list, trying local cache")
	}

	if cachePath != "" {
		raw, err := os.ReadFile(cachePath)
		if err == nil {
			var gvl GVL
			if err := json.Unmarshal(raw, &gvl); err == nil {
				log.Info().Int("version", gvl.VendorListVersion).Msg("IAB vendor list loaded from cache")
				return &gvl
			}
		}
	}

	log.Warn().Msg("IAB vendor list unavailable, vendor lookups disabled")
	return nil
}

func fetchGVL(url string) (*GVL, []byte, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("vendor list returned %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	var gvl GVL
	if err := json.Unmarshal(raw, &gvl); err != nil {
		return nil, nil, err
	}
	return &gvl, raw, nil
}
