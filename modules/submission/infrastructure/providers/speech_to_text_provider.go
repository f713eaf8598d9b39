package providers

import (
	"context"
	"fmt"

	"teammate/server/modules/submission/domain/services"

	assemblyai "github.com/therealchrisrock/assemblyai-go"
)

// AssemblyAISpeechToText backs the speech-to-text external collaborator
// with the AssemblyAI transcription API.
type AssemblyAISpeechToText struct {
	client *assemblyai.Client
}

var _ services.SpeechToText = (*AssemblyAISpeechToText)(nil)

func NewAssemblyAISpeechToText(apiKey string) *AssemblyAISpeechToText {
	return &AssemblyAISpeechToText{client: assemblyai.NewClient(apiKey)}
}

func (p *AssemblyAISpeechToText) Transcribe(ctx context.Context, audioURL string) (string, []services.WordDetail, error) {
	transcript, err := p.client.TranscribeFromURL(ctx, audioURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("assemblyai transcribe: %w", err)
	}

	words := make([]services.WordDetail, 0, len(transcript.Words))
	for _, w := range transcript.Words {
		words = append(words, services.WordDetail{
			Word:       w.Text,
			StartTime:  float64(w.Start) / 1000.0,
			EndTime:    float64(w.End) / 1000.0,
			Confidence: w.Confidence,
		})
	}

	text := ""
	if transcript.Text != nil {
		text = *transcript.Text
	}
	return text, words, nil
}
