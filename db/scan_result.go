package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gorm.io/datatypes"
)

type ScanStatus string

const (
	ScanStatusPending   ScanStatus = "pending"
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusSuccess   ScanStatus = "success"
	ScanStatusFailed    ScanStatus = "failed"
	ScanStatusCancelled ScanStatus = "cancelled"
)

// IsTerminal reports whether the status is final. Terminal results never
// mutate again.
func (s ScanStatus) IsTerminal() bool {
	return s == ScanStatusSuccess || s == ScanStatusFailed || s == ScanStatusCancelled
}

// ScanResult is the persisted outcome of one scan run.
type ScanResult struct {
	BaseUUIDModel
	DomainConfigID  string         `gorm:"index" json:"domain_config_id"`
	Domain          string         `gorm:"index" json:"domain"`
	ScanMode        string         `json:"scan_mode"`
	Status          ScanStatus     `gorm:"index" json:"status"`
	TimestampUTC    time.Time      `json:"timestamp_utc"`
	DurationSeconds float64        `json:"duration_seconds"`
	PagesVisited    datatypes.JSON `json:"pages_visited"`
	Storages        datatypes.JSON `json:"storages"`
	TotalCookies    int            `json:"total_cookies"`
	PageCount       int            `json:"page_count"`
	Error           *string        `json:"error"`
	Params          datatypes.JSON `json:"params"`
	Cookies         []Cookie       `json:"cookies" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// Cookie is one observed cookie within a scan result. Only the SHA-256 digest
// of the value is stored.
type Cookie struct {
	BaseModel
	ScanResultID   uuid.UUID      `gorm:"type:uuid;index" json:"scan_id"`
	Name           string         `json:"name"`
	Domain         string         `json:"domain"`
	Path           string         `json:"path"`
	HashedValue    string         `json:"hashed_value"`
	CookieDuration string         `json:"cookie_duration"`
	Size           int            `json:"size"`
	HTTPOnly       bool           `json:"http_only"`
	Secure         bool           `json:"secure"`
	SameSite       string         `json:"same_site"`
	CookieType     string         `json:"cookie_type"`
	SetAfterAccept bool           `json:"set_after_accept"`
	Category       string         `gorm:"index" json:"category"`
	Vendor         string         `json:"vendor"`
	Description    string         `json:"description"`
	IABPurposes    datatypes.JSON `json:"iab_purposes"`
	Source         string         `json:"source"`
	MLConfidence   *float64       `json:"ml_confidence"`
	Metadata       datatypes.JSON `json:"metadata"`
	RequiresReview bool           `json:"requires_review"`
}

type ScanResultFilter struct {
	DomainConfigID string   `json:"domain_config_id" validate:"omitempty,ascii"`
	Domain         string   `json:"domain" validate:"omitempty,ascii"`
	Statuses       []string `json:"statuses" validate:"omitempty,dive,oneof=pending running success failed cancelled"`
	Pagination     Pagination
}

func (d *DatabaseConnection) CreateScanResult(item *ScanResult) (*ScanResult, error) {
	result := d.db.Create(&item)
	if result.Error != nil {
		log.Error().Err(result.Error).Str("domain", item.Domain).Msg("Scan result creation failed")
	}
	return item, result.Error
}

func (d *DatabaseConnection) GetScanResultByID(id uuid.UUID) (*ScanResult, error) {
	var item ScanResult
	err := d.db.Where("id = ?", id).First(&item).Error
	return &item, err
}

func (d *DatabaseConnection) ListScanResults(filter ScanResultFilter) (items []*ScanResult, count int64, err error) {
	query := d.db.Model(&ScanResult{})
	if filter.DomainConfigID != "" {
		query = query.Where("domain_config_id = ?", filter.DomainConfigID)
	}
	if filter.Domain != "" {
		query = query.Where("domain = ?", filter.Domain)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	query.Count(&count)
	err = query.Order("created_at desc").Scopes(Paginate(&filter.Pagination)).Find(&items).Error
	return items, count, err
}

// UpdateScanResult writes the final state of a run. Results already terminal
// are left untouched so a late writer cannot resurrect a cancelled scan.
func (d *DatabaseConnection) UpdateScanResult(item *ScanResult) error {
	result := d.db.Model(&ScanResult{}).
		Where("id = ? AND status NOT IN ?", item.ID, []ScanStatus{ScanStatusSuccess, ScanStatusFailed, ScanStatusCancelled}).
		Updates(item)
	if result.Error != nil {
		log.Error().Err(result.Error).Str("scan", item.ID.String()).Msg("Scan result update failed")
	}
	return result.Error
}

// MarkScanCancelled flips a pending or running scan to cancelled.
func (d *DatabaseConnection) MarkScanCancelled(id uuid.UUID) (bool, error) {
	result := d.db.Model(&ScanResult{}).
		Where("id = ? AND status IN ?", id, []ScanStatus{ScanStatusPending, ScanStatusRunning}).
		Update("status", ScanStatusCancelled)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RecordScanCancellation writes the elapsed duration onto an already
// cancelled row. UpdateScanResult refuses terminal rows, so the executor
// reports how long a cancelled run took through this path.
func (d *DatabaseConnection) RecordScanCancellation(id uuid.UUID, durationSeconds float64) error {
	result := d.db.Model(&ScanResult{}).
		Where("id = ? AND status = ?", id, ScanStatusCancelled).
		Update("duration_seconds", durationSeconds)
	if result.Error != nil {
		log.Error().Err(result.Error).Str("scan", id.String()).Msg("Cancellation duration update failed")
	}
	return result.Error
}

func (d *DatabaseConnection) DeleteScanResult(id uuid.UUID) (bool, error) {
	result := d.db.Unscoped().Select("Cookies").Delete(&ScanResult{BaseUUIDModel: BaseUUIDModel{ID: id}})
	if result.Error != nil {
		log.Error().Err(result.Error).Str("scan", id.String()).Msg("Scan result deletion failed")
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CreateCookies persists the classified cookies of one scan in batches, one
// transaction per batch.
func (d *DatabaseConnection) CreateCookies(items []Cookie) error {
	if len(items) == 0 {
		return nil
	}
	batchSize := viper.GetInt("scan.batch_size")
	if batchSize <= 0 || batchSize > 1000 {
		batchSize = 1000
	}
	result := d.db.CreateInBatches(&items, batchSize)
	if result.Error != nil {
		log.Error().Err(result.Error).Int("cookies", len(items)).Msg("Cookie batch insert failed")
	}
	return result.Error
}

func (d *DatabaseConnection) ListCookiesByScanID(scanID uuid.UUID, pagination Pagination) (items []*Cookie, count int64, err error) {
	query := d.db.Model(&Cookie{}).Where("scan_result_id = ?", scanID)
	query.Count(&count)
	err = query.Order("name asc").Scopes(Paginate(&pagination)).Find(&items).Error
	return items, count, err
}
