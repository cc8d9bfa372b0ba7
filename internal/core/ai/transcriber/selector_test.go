package transcriber

import "testing"

func TestParseSelector(t *testing.T) {
	tests := []struct {
		engine, tier string
		want         Selector
		wantErr      bool
	}{
		{"streaming", "", Streaming(), false},
		{"Streaming", "", Streaming(), false},
		{"batch", "", Batch(TierSmall), false},
		{"", "", Batch(TierSmall), false},
		{"batch", "base", Batch(TierBase), false},
		{"batch", " LARGE ", Batch(TierLarge), false},
		{"", "medium", Batch(TierMedium), false},
		{"batch", "huge", Selector{}, true},
		{"streaming", "small", Selector{}, true},
		{"vosk", "", Selector{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.engine+"/"+tt.tier, func(t *testing.T) {
			got, err := ParseSelector(tt.engine, tt.tier)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTierAdvisory(t *testing.T) {
	for _, tier := range Tiers {
		wantConfirm := tier == TierLarge
		if got := tier.RequiresConfirmation(); got != wantConfirm {
			t.Errorf("%s.RequiresConfirmation() = %v", tier, got)
		}
	}
	if TierLarge.Advisory() == "" {
		t.Error("large tier has no advisory")
	}
	if TierSmall.Advisory() != "" {
		t.Error("small tier should have no advisory")
	}
	if Streaming().RequiresConfirmation() || Streaming().Advisory() != "" {
		t.Error("streaming selector should carry no advisory")
	}
	if !Batch(TierLarge).RequiresConfirmation() {
		t.Error("batch/large should require confirmation")
	}
}

func TestSelectorNormalize(t *testing.T) {
	got, err := Selector{Kind: KindBatch}.Normalize()
	if err != nil {
		t.Fatal(err)
	}
	if got.Tier != DefaultTier {
		t.Errorf("Tier = %q, want %q", got.Tier, DefaultTier)
	}
	if got.String() != "batch/small" {
		t.Errorf("String() = %q", got.String())
	}
}
