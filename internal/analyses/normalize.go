package analyses

import (
	"time"

	"github.com/google/uuid"

	"keyword-backend/internal/provider"
	"keyword-backend/internal/shared/telemetry"
)

// normalizeKeywords converts provider batches into canonical keyword records.
// Ranked records come first, suggestions after, both in provider order. A
// keyword appearing in both inputs yields two records, one per type: ranking
// status and suggestion status are tracked independently. Items without a
// resolvable keyword string are skipped; missing metrics default to zero.
func normalizeKeywords(analysisID string, ranked, suggested []provider.ResultBatch) []Keyword {
	now := time.Now().UTC()
	var keywords []Keyword
	for _, batch := range ranked {
		for _, item := range batch.Items {
			kw, ok := normalizeItem(analysisID, item, KeywordTypeRanked, now)
			if !ok {
				continue
			}
			keywords = append(keywords, kw)
		}
	}
	for _, batch := range suggested {
		for _, item := range batch.Items {
			kw, ok := normalizeItem(analysisID, item, KeywordTypeSuggestion, now)
			if !ok {
				continue
			}
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

func normalizeItem(analysisID string, item provider.Item, keywordType string, now time.Time) (Keyword, bool) {
	text, ok := item.Keyword()
	if !ok {
		telemetry.Info("analysis.item_skipped", map[string]any{
			"analysis_id": analysisID,
			"type":        keywordType,
			"reason":      "missing keyword string",
		})
		return Keyword{}, false
	}

	kw := Keyword{
		ID:           uuid.NewString(),
		AnalysisID:   analysisID,
		Keyword:      text,
		Type:         keywordType,
		SearchVolume: item.SearchVolume(),
		CPC:          item.CPC(),
		Competition:  item.Competition(),
		Difficulty:   item.Difficulty(),
		CreatedAt:    now,
	}
	if keywordType == KeywordTypeRanked {
		kw.Position = item.SERPPosition()
		kw.URL = item.SERPURL()
		kw.Domain = item.SERPDomain()
	}
	return kw, true
}

// seedKeywords flattens ranked keyword strings in provider order and keeps
// one slot free below the provider's hard request cap.
func seedKeywords(ranked []provider.ResultBatch) []string {
	var seeds []string
	for _, batch := range ranked {
		for _, item := range batch.Items {
			kw, ok := item.Keyword()
			if !ok {
				continue
			}
			seeds = append(seeds, kw)
			if len(seeds) >= provider.MaxSuggestionSeeds-1 {
				return seeds
			}
		}
	}
	return seeds
}
