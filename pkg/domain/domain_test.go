package domain

import (
	"testing"
	"time"
)

func TestMatchLanguage(t *testing.T) {
	tests := []struct {
		raw  string
		want LanguageCode
	}{
		{raw: "de", want: LangGerman},
		{raw: "de-AT", want: LangGerman},
		{raw: "hr-HR", want: LangCroatian},
		{raw: "fr-CH, en;q=0.8", want: LangFrench},
		{raw: "zh-Hans", want: LangChinese},
		{raw: "", want: LangEnglish},
		{raw: "klingon???", want: LangEnglish},
		{raw: "ja", want: LangEnglish},
	}
	for _, tc := range tests {
		if got := MatchLanguage(tc.raw); got != tc.want {
			t.Fatalf("MatchLanguage(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestNativeName(t *testing.T) {
	if got := LangGerman.NativeName(); got != "Deutsch" {
		t.Fatalf("native name for de = %q", got)
	}
	if !LangArabic.Supported() || LanguageCode("ja").Supported() {
		t.Fatalf("unexpected Supported result")
	}
}

func TestNewStoredResultIDsStayUnique(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	first := NewStoredResult(nil, now, "a", KarmaDiagnostic{})
	second := NewStoredResult([]StoredResult{first}, now, "b", KarmaDiagnostic{})
	if first.ID == second.ID {
		t.Fatalf("expected distinct ids, both %q", first.ID)
	}
	if second.ID != "1700000000001" {
		t.Fatalf("unexpected bumped id %q", second.ID)
	}
}

func TestAppendResultDoesNotMutateReceiver(t *testing.T) {
	p := UserProfile{Email: "a@b.c"}
	r := NewStoredResult(nil, time.Now(), "s", KarmaDiagnostic{})
	next := p.AppendResult(r)
	if len(p.History) != 0 || p.LastReflectionAt != nil {
		t.Fatalf("receiver mutated: %+v", p)
	}
	if len(next.History) != 1 || next.LastReflectionAt == nil {
		t.Fatalf("expected appended history, got %+v", next)
	}
}

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	empty := Summarize(UserProfile{}, now)
	if empty.GardenStage != GardenSeed || empty.ReflectionsToUnlock != FullDiagnosticThreshold || empty.SinceLastReflection != nil {
		t.Fatalf("unexpected empty summary: %+v", empty)
	}

	p := UserProfile{}
	for _, growth := range []float64{7, 8, 9.5} {
		d := KarmaDiagnostic{Scores: KarmaScores{SpiritualGrowth: growth}}
		p = p.AppendResult(NewStoredResult(p.History, now.Add(-2*time.Hour), "x", d))
	}
	s := Summarize(p, now)
	if s.ReflectionCount != 3 || !s.FullDiagnosticUnlocked || s.ReflectionsToUnlock != 0 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if s.AverageGrowth != 8.2 {
		t.Fatalf("average growth = %v, want 8.2", s.AverageGrowth)
	}
	if s.GardenStage != GardenFlowering {
		t.Fatalf("garden stage = %q", s.GardenStage)
	}
	if s.SinceLastReflection == nil || *s.SinceLastReflection != 2*time.Hour {
		t.Fatalf("since last = %v", s.SinceLastReflection)
	}
}
