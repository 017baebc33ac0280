package classify

// CMP categories cookies collapse into.
const (
	CategoryNecessary   = "Necessary"
	CategoryFunctional  = "Functional"
	CategoryAnalytics   = "Analytics"
	CategoryAdvertising = "Advertising"
	CategoryUnknown     = "Unknown"
)

// Classification sources, ordered by the cascade's priority.
const (
	SourceDB           = "DB"
	SourceMLHigh       = "ML_High"
	SourceIAB          = "IAB"
	SourceIABMLBlend   = "IAB_ML_Blend"
	SourceRulesJSON    = "RulesJSON"
	SourceRulesMLAgree = "Rules_ML_Agree"
	SourceMLLow        = "ML_Low"
	SourceFallback     = "Fallback"
)

// ML confidence thresholds. At or above high the prediction stands on its
// own; at or above agree it can corroborate a rule or vendor match.
const (
	mlHighConfidence  = 0.75
	mlAgreeConfidence = 0.50
)

// Classification is the cascade's verdict for one cookie.
type Classification struct {
	Category       string   `json:"category"`
	Vendor         string   `json:"vendor"`
	Description    string   `json:"description,omitempty"`
	IABPurposes    []int    `json:"iab_purposes,omitempty"`
	Source         string   `json:"source"`
	MLConfidence   *float64 `json:"ml_confidence,omitempty"`
	RequiresReview bool     `json:"requires_review"`
}

// MLPrediction is one model inference for a cookie name.
type MLPrediction struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}
