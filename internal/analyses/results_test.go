package analyses

import (
	"math"
	"testing"
)

func TestBuildSummaryEmpty(t *testing.T) {
	got := buildSummary(nil)
	if got.TotalKeywords != 0 || got.AvgSearchVolume != 0 || got.AvgPosition != 0 {
		t.Fatalf("expected zero summary, got %+v", got)
	}
}

func TestBuildSummaryAggregates(t *testing.T) {
	pos3, pos7 := 3, 7
	keywords := []Keyword{
		{Type: KeywordTypeRanked, SearchVolume: 1000, CPC: 2.0, Position: &pos3},
		{Type: KeywordTypeRanked, SearchVolume: 500, CPC: 1.0, Position: &pos7},
		{Type: KeywordTypeSuggestion, SearchVolume: 300, CPC: 0.5},
	}

	got := buildSummary(keywords)
	if got.TotalKeywords != 3 || got.RankedCount != 2 || got.SuggestionCount != 1 {
		t.Fatalf("unexpected counts: %+v", got)
	}
	if got.AvgSearchVolume != 600 {
		t.Fatalf("expected avg volume 600, got %f", got.AvgSearchVolume)
	}
	if math.Abs(got.AvgCPC-3.5/3) > 1e-9 {
		t.Fatalf("expected avg cpc %f, got %f", 3.5/3, got.AvgCPC)
	}
	if got.AvgPosition != 5 {
		t.Fatalf("expected avg position 5, got %f", got.AvgPosition)
	}
	wantTraffic := 1000*2.0 + 500*1.0 + 300*0.5
	if math.Abs(got.EstimatedTrafficValue-wantTraffic) > 1e-9 {
		t.Fatalf("expected traffic value %f, got %f", wantTraffic, got.EstimatedTrafficValue)
	}
}

func TestBuildSummaryIgnoresUnpositionedRanked(t *testing.T) {
	keywords := []Keyword{
		{Type: KeywordTypeRanked, SearchVolume: 100},
		{Type: KeywordTypeSuggestion, SearchVolume: 100},
	}
	got := buildSummary(keywords)
	if got.AvgPosition != 0 {
		t.Fatalf("expected avg position 0 without positioned records, got %f", got.AvgPosition)
	}
}
