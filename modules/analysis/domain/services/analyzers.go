package services

import (
	"context"

	"teammate/server/modules/analysis/domain/entities"
)

// PronunciationAnalyzer scores a recording against its transcript using
// the local transcoded audio file ("consumes the local WAV").
type PronunciationAnalyzer interface {
	Analyze(ctx context.Context, wavPath, transcript string) (map[string]interface{}, []entities.WordDetail, error)
}

// TextAnalyzer is the shape shared by the grammar, lexical and
// vocabulary stages: text-in, grade/issues-out.
type TextAnalyzer interface {
	Analyze(ctx context.Context, transcript string) (map[string]interface{}, error)
}

// FluencyAnalyzer consumes pronunciation's word-level detail plus the
// transcript; it never touches the audio file directly.
type FluencyAnalyzer interface {
	Analyze(ctx context.Context, transcript string, detail entities.FluencyDetail) (map[string]interface{}, error)
}
