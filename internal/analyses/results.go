package analyses

// ResultSummary aggregates a completed analysis' keyword set.
type ResultSummary struct {
	TotalKeywords         int     `json:"totalKeywords"`
	RankedCount           int     `json:"rankedCount"`
	SuggestionCount       int     `json:"suggestionCount"`
	AvgSearchVolume       float64 `json:"avgSearchVolume"`
	AvgCPC                float64 `json:"avgCpc"`
	AvgPosition           float64 `json:"avgPosition"`
	EstimatedTrafficValue float64 `json:"estimatedTrafficValue"`
}

// buildSummary computes the aggregates returned alongside a completed
// analysis. AvgPosition covers only ranked records with a known position.
func buildSummary(keywords []Keyword) ResultSummary {
	summary := ResultSummary{TotalKeywords: len(keywords)}
	if len(keywords) == 0 {
		return summary
	}

	var (
		volumeSum   float64
		cpcSum      float64
		positionSum float64
		positioned  int
	)
	for _, kw := range keywords {
		switch kw.Type {
		case KeywordTypeRanked:
			summary.RankedCount++
		case KeywordTypeSuggestion:
			summary.SuggestionCount++
		}
		volumeSum += float64(kw.SearchVolume)
		cpcSum += kw.CPC
		summary.EstimatedTrafficValue += float64(kw.SearchVolume) * kw.CPC
		if kw.Type == KeywordTypeRanked && kw.Position != nil {
			positionSum += float64(*kw.Position)
			positioned++
		}
	}

	summary.AvgSearchVolume = volumeSum / float64(len(keywords))
	summary.AvgCPC = cpcSum / float64(len(keywords))
	if positioned > 0 {
		summary.AvgPosition = positionSum / float64(positioned)
	}
	return summary
}
