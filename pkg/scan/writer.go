package scan

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/consentry/consentry/db"
	"github.com/consentry/consentry/lib"
	"github.com/consentry/consentry/pkg/classify"
	"github.com/consentry/consentry/pkg/web"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

// cookieClassifier is the cascade surface the writer needs; tests stub it.
type cookieClassifier interface {
	Classify(domainConfigID, cookieName, cookieDomain string) classify.Classification
}

// writeResult classifies the collected cookies and persists the final scan
// row plus its cookie batch.
func writeResult(store ResultStore, classifier cookieClassifier, result *db.ScanResult, req Request, out collected, duration float64) error {
	siteHost := hostOf(req.Domain)

	final := out.cookies.Final()
	rows := make([]db.Cookie, 0, len(final))
	now := time.Now()
	for _, cookie := range final {
		rows = append(rows, buildCookieRow(result.ID, req.DomainConfigID, cookie, classifier, siteHost, now))
	}

	pagesJSON, err := json.Marshal(out.visited)
	if err != nil {
		return err
	}
	storagesJSON, err := json.Marshal(out.storages)
	if err != nil {
		return err
	}
	paramsJSON, err := req.Params.ToJSON()
	if err != nil {
		return err
	}

	result.Status = db.ScanStatusSuccess
	result.DurationSeconds = duration
	result.PagesVisited = datatypes.JSON(pagesJSON)
	result.Storages = datatypes.JSON(storagesJSON)
	result.Params = datatypes.JSON(paramsJSON)
	result.TotalCookies = len(rows)
	result.PageCount = len(out.visited)

	if err := store.UpdateScanResult(result); err != nil {
		return err
	}
	if err := store.CreateCookies(rows); err != nil {
		log.Error().Err(err).Str("scan", result.ID.String()).Msg("Cookie persistence failed")
		return err
	}
	return nil
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}

func buildCookieRow(scanID uuid.UUID, domainConfigID string, cookie web.FinalCookie, classifier cookieClassifier, siteHost string, now time.Time) db.Cookie {
	cookieType := "Third Party"
	if lib.IsFirstPartyCookieDomain(cookie.Domain, siteHost) {
		cookieType = "First Party"
	}

	row := db.Cookie{
		ScanResultID:   scanID,
		Name:           cookie.Name,
		Domain:         cookie.Domain,
		Path:           cookie.Path,
		HashedValue:    cookie.HashedValue,
		CookieDuration: lib.FormatCookieDuration(cookie.Expires, now),
		Size:           cookie.Size,
		HTTPOnly:       cookie.HTTPOnly,
		Secure:         cookie.Secure,
		SameSite:       cookie.SameSite,
		CookieType:     cookieType,
		SetAfterAccept: cookie.SetAfterAccept,
	}

	if classifier != nil {
		verdict := classifier.Classify(domainConfigID, cookie.Name, cookie.Domain)
		row.Category = verdict.Category
		row.Vendor = verdict.Vendor
		row.Description = verdict.Description
		row.Source = verdict.Source
		row.MLConfidence = verdict.MLConfidence
		row.RequiresReview = verdict.RequiresReview
		if len(verdict.IABPurposes) > 0 {
			if purposes, err := json.Marshal(verdict.IABPurposes); err == nil {
				row.IABPurposes = datatypes.JSON(purposes)
			}
		}
	}
	return row
}
