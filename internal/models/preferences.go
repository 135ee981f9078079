package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// RequesterPreferences are per-requester defaults for request fields the
// client leaves empty. An empty field means no preference.
type RequesterPreferences struct {
	RequesterID   string      `json:"requesterId" db:"requester_id"`
	TargetVariant string      `json:"targetVariant,omitempty" db:"target_variant"`
	RenderStyle   RenderStyle `json:"renderStyle,omitempty" db:"render_style"`
	QualityTier   QualityTier `json:"qualityTier,omitempty" db:"quality_tier"`
	UpdatedAt     time.Time   `json:"updatedAt" db:"updated_at"`
}

// Normalize trims and lower-cases every field.
func (p RequesterPreferences) Normalize() RequesterPreferences {
	out := p
	out.RequesterID = strings.TrimSpace(p.RequesterID)
	out.TargetVariant = strings.ToLower(strings.TrimSpace(p.TargetVariant))
	out.RenderStyle = RenderStyle(strings.ToLower(strings.TrimSpace(string(p.RenderStyle))))
	out.QualityTier = QualityTier(strings.ToLower(strings.TrimSpace(string(p.QualityTier))))
	return out
}

// Validate checks normalized preferences with the same rules as requests.
func (p RequesterPreferences) Validate(supportedVariants []string) error {
	if p.RequesterID == "" {
		return NewValidationError("requesterId", "requester id is required")
	}
	if p.TargetVariant != "" {
		if !variantPattern.MatchString(p.TargetVariant) {
			return NewValidationError("targetVariant", fmt.Sprintf("malformed target variant %q", p.TargetVariant))
		}
		if len(supportedVariants) > 0 && !slices.Contains(supportedVariants, p.TargetVariant) {
			return NewValidationError("targetVariant", fmt.Sprintf("unsupported target variant %q", p.TargetVariant))
		}
	}
	if p.RenderStyle != "" && !p.RenderStyle.IsValid() {
		return NewValidationError("renderStyle", fmt.Sprintf("unknown render style %q", p.RenderStyle))
	}
	if p.QualityTier != "" && !p.QualityTier.IsValid() {
		return NewValidationError("qualityTier", fmt.Sprintf("unknown quality tier %q", p.QualityTier))
	}
	return nil
}

// WithPreferences fills the fields r leaves blank from p. Fields r sets
// always win. Call it before Normalize so service defaults only cover what
// neither side set.
func (r GenerationRequest) WithPreferences(p *RequesterPreferences) GenerationRequest {
	if p == nil {
		return r
	}
	out := r
	if strings.TrimSpace(out.TargetVariant) == "" {
		out.TargetVariant = p.TargetVariant
	}
	if strings.TrimSpace(string(out.RenderStyle)) == "" {
		out.RenderStyle = p.RenderStyle
	}
	if strings.TrimSpace(string(out.QualityTier)) == "" {
		out.QualityTier = p.QualityTier
	}
	return out
}
