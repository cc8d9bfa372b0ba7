package transcriber

import (
	"fmt"
	"strings"
)

// Kind selects the recognition engine variant.
type Kind string

const (
	KindStreaming Kind = "streaming"
	KindBatch     Kind = "batch"
)

// Tier sizes the batch model, trading latency for accuracy.
type Tier string

const (
	TierBase   Tier = "base"
	TierSmall  Tier = "small"
	TierMedium Tier = "medium"
	TierLarge  Tier = "large"
)

// DefaultTier is used when a batch selector names no tier.
const DefaultTier = TierSmall

// Tiers lists the batch tiers from fastest to most accurate.
var Tiers = []Tier{TierBase, TierSmall, TierMedium, TierLarge}

// Advisory returns the resource note shown before a job starts, or "".
func (t Tier) Advisory() string {
	switch t {
	case TierMedium:
		return "medium model needs about 2.5 GB of memory and is noticeably slower"
	case TierLarge:
		return "large model needs about 5 GB of memory and a fast CPU or GPU; transcription may take much longer than the audio"
	}
	return ""
}

// RequiresConfirmation reports whether callers must ask the user before
// starting a job with this tier.
func (t Tier) RequiresConfirmation() bool {
	return t == TierLarge
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	for _, known := range Tiers {
		if t == known {
			return true
		}
	}
	return false
}

// Selector picks the engine for a job. Tier is empty for streaming.
type Selector struct {
	Kind Kind `json:"engine"`
	Tier Tier `json:"tier,omitempty"`
}

// Streaming returns the streaming selector.
func Streaming() Selector {
	return Selector{Kind: KindStreaming}
}

// Batch returns a batch selector for tier.
func Batch(tier Tier) Selector {
	return Selector{Kind: KindBatch, Tier: tier}
}

// ParseSelector builds a selector from user input. An empty engine means
// batch; an empty tier means DefaultTier.
func ParseSelector(engine, tier string) (Selector, error) {
	engine = strings.ToLower(strings.TrimSpace(engine))
	tier = strings.ToLower(strings.TrimSpace(tier))

	switch Kind(engine) {
	case KindStreaming:
		if tier != "" {
			return Selector{}, fmt.Errorf("streaming engine takes no tier (got %q)", tier)
		}
		return Streaming(), nil
	case KindBatch, "":
		if tier == "" {
			return Batch(DefaultTier), nil
		}
		t := Tier(tier)
		if !t.Valid() {
			return Selector{}, fmt.Errorf("unknown tier %q (want base, small, medium or large)", tier)
		}
		return Batch(t), nil
	default:
		return Selector{}, fmt.Errorf("unknown engine %q (want streaming or batch)", engine)
	}
}

// Normalize validates a selector built by hand and fills in defaults.
func (s Selector) Normalize() (Selector, error) {
	return ParseSelector(string(s.Kind), string(s.Tier))
}

// Advisory returns the tier advisory for batch selectors.
func (s Selector) Advisory() string {
	if s.Kind != KindBatch {
		return ""
	}
	return s.Tier.Advisory()
}

// RequiresConfirmation reports whether the selector needs user consent.
func (s Selector) RequiresConfirmation() bool {
	return s.Kind == KindBatch && s.Tier.RequiresConfirmation()
}

func (s Selector) String() string {
	if s.Kind == KindBatch {
		return string(s.Kind) + "/" + string(s.Tier)
	}
	return string(s.Kind)
}
