package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// MaxRecordBytes caps the serialized size of one insert payload.
// Satellite feature maps are open-ended; without a cap a misbehaving
// engine could grow single records without bound.
const MaxRecordBytes = 64 << 10

// AnalysisResult is one stored crop recommendation. Immutable after
// insert except for deletion; ID and Timestamp are assigned by the
// store, never by the caller.
type AnalysisResult struct {
	ID              string                  `json:"id"`
	Timestamp       time.Time               `json:"timestamp"`
	LocationName    string                  `json:"location_name"`
	Latitude        float64                 `json:"latitude"`
	Longitude       float64                 `json:"longitude"`
	RecommendedCrop string                  `json:"recommended_crop"`
	ConfidenceScore float64                 `json:"confidence_score"`
	Features        map[string]FeatureValue `json:"satellite_features,omitempty"`

	// Advice maps a language code (en/am/om) to free-text advice.
	// An absent key means "not generated", which is distinct from an
	// empty string; both cause a dispatch skip for that language.
	Advice map[string]string `json:"farmer_advice,omitempty"`

	Alternatives []AlternativeCrop `json:"alternative_crops,omitempty"`
}

// Summary is the list-view projection of a result. Full records are not
// returned in bulk to bound response size.
type Summary struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	LocationName    string    `json:"location_name"`
	RecommendedCrop string    `json:"recommended_crop"`
	ConfidenceScore float64   `json:"confidence_score"`
}

// AlternativeCrop is a runner-up recommendation.
type AlternativeCrop struct {
	Crop       string  `json:"crop"`
	Confidence float64 `json:"confidence"`
}

// FeatureValue is a single satellite feature: either a number or a
// categorical label. It marshals back to the same scalar JSON the
// engine produced.
type FeatureValue struct {
	IsNumber bool
	Number   float64
	Label    string
}

func NumberFeature(v float64) FeatureValue { return FeatureValue{IsNumber: true, Number: v} }
func LabelFeature(s string) FeatureValue   { return FeatureValue{Label: s} }

func (v FeatureValue) MarshalJSON() ([]byte, error) {
	if v.IsNumber {
		return []byte(strconv.FormatFloat(v.Number, 'g', -1, 64)), nil
	}
	return json.Marshal(v.Label)
}

func (v *FeatureValue) UnmarshalJSON(b []byte) error {
	var num float64
	if err := json.Unmarshal(b, &num); err == nil {
		*v = FeatureValue{IsNumber: true, Number: num}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = FeatureValue{Label: s}
		return nil
	}
	return fmt.Errorf("feature value must be a number or a string, got %s", string(b))
}

// InsertPayload is what the recommendation engine hands to the store:
// an AnalysisResult minus the store-assigned identity fields.
type InsertPayload struct {
	LocationName    string                  `json:"location_name"`
	Latitude        float64                 `json:"latitude"`
	Longitude       float64                 `json:"longitude"`
	RecommendedCrop string                  `json:"recommended_crop"`
	ConfidenceScore float64                 `json:"confidence_score"`
	Features        map[string]FeatureValue `json:"satellite_features,omitempty"`
	Advice          map[string]string       `json:"farmer_advice,omitempty"`
	Alternatives    []AlternativeCrop       `json:"alternative_crops,omitempty"`
}

// ValidationError describes a malformed insert payload. It is returned
// before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid payload: " + e.Field + ": " + e.Reason
}

// Validate checks an insert payload against the record schema.
// Out-of-range coordinates are accepted (downstream dispatch simply
// finds no recipients there), but the rest of the schema is closed.
func (p *InsertPayload) Validate() error {
	if p.RecommendedCrop == "" {
		return &ValidationError{Field: "recommended_crop", Reason: "must not be empty"}
	}
	if p.ConfidenceScore < 0 || p.ConfidenceScore > 1 {
		return &ValidationError{Field: "confidence_score", Reason: "must be in [0,1]"}
	}
	for lang := range p.Advice {
		if _, ok := NormalizeLanguage(lang); !ok {
			return &ValidationError{Field: "farmer_advice", Reason: "unknown language code " + strconv.Quote(lang)}
		}
	}
	for i, alt := range p.Alternatives {
		if alt.Crop == "" {
			return &ValidationError{Field: "alternative_crops", Reason: "entry " + strconv.Itoa(i) + ": crop must not be empty"}
		}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return &ValidationError{Field: "payload", Reason: "not serializable: " + err.Error()}
	}
	if len(b) > MaxRecordBytes {
		return &ValidationError{Field: "payload", Reason: fmt.Sprintf("record too large (%d bytes, max %d)", len(b), MaxRecordBytes)}
	}
	return nil
}

// Normalized returns a copy with language keys mapped to canonical
// codes. Call after Validate; unknown keys would have been rejected.
func (p *InsertPayload) Normalized() InsertPayload {
	cp := *p
	if len(p.Advice) > 0 {
		cp.Advice = make(map[string]string, len(p.Advice))
		for lang, text := range p.Advice {
			code, _ := NormalizeLanguage(lang)
			cp.Advice[code] = text
		}
	}
	return cp
}

// Summary projects the list-view fields of a result.
func (r *AnalysisResult) Summary() Summary {
	return Summary{
		ID:              r.ID,
		Timestamp:       r.Timestamp,
		LocationName:    r.LocationName,
		RecommendedCrop: r.RecommendedCrop,
		ConfidenceScore: r.ConfidenceScore,
	}
}

// Clone returns a deep copy so callers can hold a result across
// concurrent store mutations.
func (r *AnalysisResult) Clone() AnalysisResult {
	cp := *r
	if r.Features != nil {
		cp.Features = make(map[string]FeatureValue, len(r.Features))
		for k, v := range r.Features {
			cp.Features[k] = v
		}
	}
	if r.Advice != nil {
		cp.Advice = make(map[string]string, len(r.Advice))
		for k, v := range r.Advice {
			cp.Advice[k] = v
		}
	}
	if r.Alternatives != nil {
		cp.Alternatives = append([]AlternativeCrop(nil), r.Alternatives...)
	}
	return cp
}
