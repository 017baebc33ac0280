package db

// DomainOverride prescribes the classification of a cookie name for one
// customer domain, taking precedence over every other classification
// signal.
type DomainOverride struct {
	BaseModel
	DomainConfigID string `json:"domain_config_id" gorm:"index"`
	CookieName     string `json:"cookie_name"`
	Category       string `json:"category"`
	Vendor         string `json:"vendor"`
	Description    string `json:"description"`
}

func (d *DatabaseConnection) ListDomainOverrides(domainConfigID string) (items []*DomainOverride, err error) {
	err = d.db.Where("domain_config_id = ?", domainConfigID).Find(&items).Error
	return items, err
}

func (d *DatabaseConnection) CreateDomainOverride(item *DomainOverride) (*DomainOverride, error) {
	result := d.db.Create(item)
	return item, result.Error
}
