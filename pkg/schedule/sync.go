package schedule

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/consentry/consentry/db"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ExternalRecord is one entry of the external schedule source payload.
type ExternalRecord struct {
	DomainConfigID string `json:"domain_config_id"`
	Data           struct {
		Domain   string `json:"domain"`
		Schedule struct {
			Frequency db.ScheduleFrequency `json:"frequency"`
			Time      TimeConfig           `json:"time"`
		} `json:"schedule"`
		MaxPages      *int     `json:"maxPages,omitempty"`
		ScanDepth     *int     `json:"scanDepth,omitempty"`
		MaxRetries    *int     `json:"maxRetries,omitempty"`
		CustomPages   []string `json:"customPages,omitempty"`
		AllowDeepScan bool     `json:"allow_deep_scan"`
	} `json:"data"`
}

type SyncResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// ScheduleSyncStore is the repository surface the sync needs.
type ScheduleSyncStore interface {
	GetScheduleByDomainConfigID(domainConfigID string) (*db.Schedule, error)
	CreateSchedule(item *db.Schedule) (*db.Schedule, error)
	UpdateSchedule(id uint, fields map[string]interface{}) (bool, error)
}

// SyncFromExternal upserts external records by domain_config_id. Records
// absent from the payload are left alone; deletion is not this operation's
// job. Records with allow_deep_scan=false or invalid scheduling data are
// skipped.
func SyncFromExternal(store ScheduleSyncStore, records []ExternalRecord) (SyncResult, error) {
	var result SyncResult
	for _, record := range records {
		if record.DomainConfigID == "" || record.Data.Domain == "" {
			result.Skipped++
			continue
		}
		if !record.Data.AllowDeepScan {
			result.Skipped++
			continue
		}
		if err := record.Data.Schedule.Time.Validate(record.Data.Schedule.Frequency); err != nil {
			log.Warn().Err(err).Str("domain_config_id", record.DomainConfigID).Msg("Skipping external record with invalid schedule")
			result.Skipped++
			continue
		}

		timeConfigJSON, err := json.Marshal(record.Data.Schedule.Time)
		if err != nil {
			result.Skipped++
			continue
		}
		params := buildParams(record)
		paramsJSON, err := params.ToJSON()
		if err != nil {
			result.Skipped++
			continue
		}

		existing, err := store.GetScheduleByDomainConfigID(record.DomainConfigID)
		if err != nil {
			if err != gorm.ErrRecordNotFound {
				return result, err
			}
			_, err := store.CreateSchedule(&db.Schedule{
				DomainConfigID: record.DomainConfigID,
				Domain:         record.Data.Domain,
				ScanType:       db.ScanTypeDeep,
				ScanParams:     datatypes.JSON(paramsJSON),
				Frequency:      record.Data.Schedule.Frequency,
				TimeConfig:     datatypes.JSON(timeConfigJSON),
				Enabled:        true,
			})
			if err != nil {
				return result, err
			}
			result.Created++
			continue
		}

		if externalRecordMatches(existing, record, timeConfigJSON, paramsJSON) {
			result.Skipped++
			continue
		}
		_, err = store.UpdateSchedule(existing.ID, map[string]interface{}{
			"domain":      record.Data.Domain,
			"frequency":   record.Data.Schedule.Frequency,
			"time_config": datatypes.JSON(timeConfigJSON),
			"scan_params": datatypes.JSON(paramsJSON),
		})
		if err != nil {
			return result, err
		}
		result.Updated++
	}
	log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Msg("External schedule sync finished")
	return result, nil
}

func buildParams(record ExternalRecord) db.ScanParams {
	params := db.DefaultScanParams()
	if record.Data.MaxPages != nil {
		params.MaxPages = record.Data.MaxPages
	}
	if record.Data.ScanDepth != nil {
		params.ScanDepth = *record.Data.ScanDepth
	}
	if record.Data.MaxRetries != nil {
		params.MaxRetries = record.Data.MaxRetries
	}
	params.CustomPages = record.Data.CustomPages
	return params
}

func externalRecordMatches(existing *db.Schedule, record ExternalRecord, timeConfigJSON, paramsJSON []byte) bool {
	return existing.Domain == record.Data.Domain &&
		existing.Frequency == record.Data.Schedule.Frequency &&
		jsonEqual(existing.TimeConfig, timeConfigJSON) &&
		jsonEqual(existing.ScanParams, paramsJSON)
}

func jsonEqual(a, b []byte) bool {
	var av, bv interface{}
	if err := json.Unmarshal(a, &av); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false
	}
	ra, err := json.Marshal(av)
	if err != nil {
		return false
	}
	rb, err := json.Marshal(bv)
	if err != nil {
		return false
	}
	return string(ra) == string(rb)
}

// FetchExternalRecords pulls the external schedule source configured under
// sync.source.url.
func FetchExternalRecords() ([]ExternalRecord, error) {
	sourceURL := viper.GetString("sync.source.url")
	if sourceURL == "" {
		return nil, fmt.Errorf("sync.source.url is not configured")
	}
	client := &http.Client{Timeout: time.Duration(viper.GetInt("sync.source.timeout")) * time.Second}
	resp, err := client.Get(sourceURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("external schedule source returned %d", resp.StatusCode)
	}
	var records []ExternalRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}
