package db

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type WaitStrategy string

const (
	WaitStrategyTimeout          WaitStrategy = "timeout"
	WaitStrategyNetworkIdle      WaitStrategy = "networkidle"
	WaitStrategyDOMContentLoaded WaitStrategy = "domcontentloaded"
	WaitStrategyLoad             WaitStrategy = "load"
	WaitStrategyCombined         WaitStrategy = "combined"
)

type Viewport struct {
	Width  int `json:"width" validate:"omitempty,min=1"`
	Height int `json:"height" validate:"omitempty,min=1"`
}

// ScanParams is the per-scan tuning snapshot. It is stored as JSON both on
// schedules and on scan results, so a result always records the parameters
// it actually ran with.
type ScanParams struct {
	MaxPages              *int         `json:"max_pages,omitempty" validate:"omitempty,min=1"`
	ScanDepth             int          `json:"scan_depth" validate:"min=0,max=10"`
	MaxRetries            *int         `json:"max_retries,omitempty" validate:"omitempty,min=0,max=5"`
	CustomPages           []string     `json:"custom_pages,omitempty" validate:"max=50,dive,min=1"`
	AcceptSelector        string       `json:"accept_selector,omitempty"`
	WaitForDynamicContent int          `json:"wait_for_dynamic_content" validate:"min=5,max=60"`
	WaitStrategy          WaitStrategy `json:"wait_strategy" validate:"oneof=timeout networkidle domcontentloaded load combined"`
	Viewport              *Viewport    `json:"viewport,omitempty"`
	UserAgent             string       `json:"user_agent,omitempty"`
}

// DefaultScanParams returns params that pass validation without any caller
// input.
func DefaultScanParams() ScanParams {
	return ScanParams{
		ScanDepth:             0,
		WaitForDynamicContent: 10,
		WaitStrategy:          WaitStrategyCombined,
	}
}

func (p *ScanParams) Validate() error {
	return validate.Struct(p)
}

func (p *ScanParams) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

func ParseScanParams(raw []byte) (ScanParams, error) {
	params := DefaultScanParams()
	if len(raw) == 0 {
		return params, nil
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return params, err
	}
	if params.WaitStrategy == "" {
		params.WaitStrategy = WaitStrategyCombined
	}
	if params.WaitForDynamicContent == 0 {
		params.WaitForDynamicContent = 10
	}
	return params, params.Validate()
}
