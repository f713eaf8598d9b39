package providers

import (
	"context"
	"strings"

	"teammate/server/modules/analysis/domain/entities"
)

// Mock analyzers stand in for the five external scoring services during
// local development and tests: deterministic, in-process, no network
// calls.

type MockPronunciationAnalyzer struct{}

func (MockPronunciationAnalyzer) Analyze(ctx context.Context, wavPath, transcript string) (map[string]interface{}, []entities.WordDetail, error) {
	words := strings.Fields(transcript)
	details := make([]entities.WordDetail, 0, len(words))
	for i, w := range words {
		details = append(details, entities.WordDetail{
			Word:       w,
			StartTime:  float64(i),
			EndTime:    float64(i) + 0.8,
			Confidence: 0.9,
		})
	}
	return map[string]interface{}{
		"grade":  82,
		"issues": []string{},
	}, details, nil
}

type MockTextAnalyzer struct {
	Label string
}

func (a MockTextAnalyzer) Analyze(ctx context.Context, transcript string) (map[string]interface{}, error) {
	return map[string]interface{}{
		"grade":  75,
		"issues": []string{},
		"stage":  a.Label,
	}, nil
}

type MockFluencyAnalyzer struct{}

func (MockFluencyAnalyzer) Analyze(ctx context.Context, transcript string, detail entities.FluencyDetail) (map[string]interface{}, error) {
	return map[string]interface{}{
		"grade":      78,
		"word_count": len(detail.Words),
	}, nil
}
