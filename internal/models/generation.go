package models

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// RenderStyle is the avatar style used for the generated video.
type RenderStyle string

const (
	RenderStyleRealistic RenderStyle = "realistic"
	RenderStyleCartoon   RenderStyle = "cartoon"
	RenderStyleMinimal   RenderStyle = "minimal"
)

// QualityTier controls output resolution and queue priority.
type QualityTier string

const (
	QualityStandard QualityTier = "standard"
	QualityHigh     QualityTier = "high"
	QualityPremium  QualityTier = "premium"
)

// Well-known sign-language dialects. TargetVariant is an open set; these are
// the values the service ships with.
const (
	VariantASL   = "asl"
	VariantBSL   = "bsl"
	VariantISL   = "isl"
	VariantOther = "other"
)

// Defaults applied to empty request fields.
const (
	DefaultTargetVariant = VariantASL
	DefaultRenderStyle   = RenderStyleRealistic
	DefaultQualityTier   = QualityStandard

	MaxTextLength = 5000
)

// PriorityTier orders the queue: lower value is claimed first.
type PriorityTier int

const (
	TierPremium  PriorityTier = 0
	TierHigh     PriorityTier = 1
	TierStandard PriorityTier = 2

	// MaxPriorityTier is the lowest-priority tier.
	MaxPriorityTier = TierStandard
)

var variantPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)

// GenerationRequest is a client request for a sign-language video.
type GenerationRequest struct {
	Text          string      `json:"text"`
	TargetVariant string      `json:"targetVariant"`
	RenderStyle   RenderStyle `json:"renderStyle"`
	QualityTier   QualityTier `json:"qualityTier"`
	RequesterID   string      `json:"requesterId,omitempty"`
}

// Normalize returns a copy with defaults applied and enum fields lower-cased.
// Text is left untouched; fingerprinting canonicalizes it separately.
func (r GenerationRequest) Normalize() GenerationRequest {
	out := r
	out.TargetVariant = strings.ToLower(strings.TrimSpace(r.TargetVariant))
	if out.TargetVariant == "" {
		out.TargetVariant = DefaultTargetVariant
	}
	out.RenderStyle = RenderStyle(strings.ToLower(strings.TrimSpace(string(r.RenderStyle))))
	if out.RenderStyle == "" {
		out.RenderStyle = DefaultRenderStyle
	}
	out.QualityTier = QualityTier(strings.ToLower(strings.TrimSpace(string(r.QualityTier))))
	if out.QualityTier == "" {
		out.QualityTier = DefaultQualityTier
	}
	out.RequesterID = strings.TrimSpace(r.RequesterID)
	return out
}

// Validate checks a normalized request. supportedVariants restricts
// TargetVariant when non-empty.
func (r GenerationRequest) Validate(supportedVariants []string) error {
	text := strings.TrimSpace(r.Text)
	if text == "" {
		return NewValidationError("text", "text is required")
	}
	if n := utf8.RuneCountInString(text); n > MaxTextLength {
		return NewValidationError("text", fmt.Sprintf("text must be at most %d characters, got %d", MaxTextLength, n))
	}
	if !variantPattern.MatchString(r.TargetVariant) {
		return NewValidationError("targetVariant", fmt.Sprintf("malformed target variant %q", r.TargetVariant))
	}
	if len(supportedVariants) > 0 && !slices.Contains(supportedVariants, r.TargetVariant) {
		return NewValidationError("targetVariant", fmt.Sprintf("unsupported target variant %q", r.TargetVariant))
	}
	if !r.RenderStyle.IsValid() {
		return NewValidationError("renderStyle", fmt.Sprintf("unknown render style %q", r.RenderStyle))
	}
	if !r.QualityTier.IsValid() {
		return NewValidationError("qualityTier", fmt.Sprintf("unknown quality tier %q", r.QualityTier))
	}
	return nil
}

// IsValid reports whether s is a known render style.
func (s RenderStyle) IsValid() bool {
	switch s {
	case RenderStyleRealistic, RenderStyleCartoon, RenderStyleMinimal:
		return true
	}
	return false
}

// IsValid reports whether q is a known quality tier.
func (q QualityTier) IsValid() bool {
	switch q {
	case QualityStandard, QualityHigh, QualityPremium:
		return true
	}
	return false
}

// PriorityTier maps the quality tier onto a queue tier. Unknown tiers are
// treated as standard.
func (q QualityTier) PriorityTier() PriorityTier {
	switch q {
	case QualityPremium:
		return TierPremium
	case QualityHigh:
		return TierHigh
	default:
		return TierStandard
	}
}

// EstimateSeconds returns the rough processing estimate shown to clients:
// three seconds per five characters, never less than thirty seconds.
func EstimateSeconds(text string) int {
	est := utf8.RuneCountInString(text) / 5 * 3
	if est < 30 {
		return 30
	}
	return est
}
