package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"pinksync/internal/fingerprint"
	"pinksync/internal/models"
)

const (
	framesPerSecond = 30
	glossDurationMs = 1000
)

var (
	sentenceBoundary = regexp.MustCompile(`[^.!?]+[.!?]*`)

	ErrNoSignableContent = errors.New("text contains no signable words")
)

var _ Backend = (*LocalBackend)(nil)

// LocalBackend is a deterministic in-process backend: word-level glossing,
// fixed timing per gloss and quality-driven output parameters. Artifact refs
// are derived from the fingerprint so equal requests produce equal refs.
type LocalBackend struct {
	artifactBaseURL string
}

func NewLocalBackend(artifactBaseURL string) *LocalBackend {
	return &LocalBackend{artifactBaseURL: strings.TrimRight(artifactBaseURL, "/")}
}

func (b *LocalBackend) Analyze(ctx context.Context, job Job) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := fingerprint.CanonicalText(job.Request.Text)

	analysis := &Analysis{}
	for _, chunk := range sentenceBoundary.FindAllString(text, -1) {
		body := strings.TrimRight(strings.TrimSpace(chunk), ".!?")
		words := signableWords(body)
		if len(words) == 0 {
			continue
		}
		analysis.Sentences = append(analysis.Sentences, Sentence{
			Text:  strings.TrimSpace(body),
			Kind:  sentenceKind(chunk),
			Words: words,
		})
		analysis.WordCount += len(words)
	}
	if analysis.WordCount == 0 {
		return nil, ErrNoSignableContent
	}
	return analysis, nil
}

func (b *LocalBackend) Transform(ctx context.Context, job Job, analysis *Analysis) (*SignSequence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seq := &SignSequence{Variant: job.Request.TargetVariant}
	var cursor int64
	for i, sentence := range analysis.Sentences {
		facial, head := nonManualMarkers(sentence.Kind)
		for _, word := range sentence.Words {
			seq.Glosses = append(seq.Glosses, Gloss{
				Sign:           strings.ToUpper(word),
				StartMs:        cursor,
				DurationMs:     glossDurationMs,
				FacialMarker:   facial,
				HeadMovement:   head,
				SentenceNumber: i,
			})
			cursor += glossDurationMs
		}
	}
	seq.DurationMs = cursor
	return seq, nil
}

func (b *LocalBackend) Synthesize(ctx context.Context, job Job, seq *SignSequence) (*Animation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(seq.Glosses) == 0 {
		return nil, fmt.Errorf("empty sign sequence")
	}
	framesPerGloss := framesPerSecond * glossDurationMs / 1000
	anim := &Animation{
		Style:      job.Request.RenderStyle,
		FPS:        framesPerSecond,
		Frames:     len(seq.Glosses) * framesPerGloss,
		DurationMs: seq.DurationMs,
	}
	for i := range seq.Glosses {
		anim.Keyframes = append(anim.Keyframes, i*framesPerGloss)
	}
	return anim, nil
}

func (b *LocalBackend) Render(ctx context.Context, job Job, anim *Animation) (*RenderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resolution, kbPerSecond := outputProfile(job.Request.QualityTier)
	name := fingerprint.Short(job.Fingerprint)
	return &RenderResult{
		ArtifactRef:  fmt.Sprintf("%s/%s.mp4", b.artifactBaseURL, name),
		ThumbnailRef: fmt.Sprintf("%s/%s_thumb.jpg", b.artifactBaseURL, name),
		Resolution:   resolution,
		FPS:          anim.FPS,
		DurationMs:   anim.DurationMs,
		FileSizeKB:   anim.DurationMs / 1000 * kbPerSecond,
	}, nil
}

func outputProfile(q models.QualityTier) (resolution string, kbPerSecond int64) {
	switch q {
	case models.QualityPremium:
		return "1080p", 2000
	case models.QualityHigh:
		return "720p", 1000
	default:
		return "480p", 500
	}
}

func sentenceKind(chunk string) SentenceKind {
	trimmed := strings.TrimSpace(chunk)
	terminators := trimmed[len(strings.TrimRight(trimmed, ".!?")):]
	switch {
	case strings.Contains(terminators, "?"):
		return SentenceQuestion
	case strings.Contains(terminators, "!"):
		return SentenceExclamation
	default:
		return SentenceStatement
	}
}

func nonManualMarkers(kind SentenceKind) (facial, head string) {
	switch kind {
	case SentenceQuestion:
		return "questioning", "tilt"
	case SentenceExclamation:
		return "emphatic", "nod"
	default:
		return "neutral", "neutral"
	}
}

func signableWords(s string) []string {
	var words []string
	for _, field := range strings.Fields(s) {
		w := strings.TrimFunc(field, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}
