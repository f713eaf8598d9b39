package providers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"teammate/server/modules/submission/domain/services"
)

// MockAudioTranscoder stands in for the real transcoding tool: it writes
// a placeholder file holding only the bytes "RIFF" under os.TempDir and
// reports a fixed duration.
type MockAudioTranscoder struct{}

var _ services.AudioTranscoder = MockAudioTranscoder{}

func (MockAudioTranscoder) Transcode(ctx context.Context, audioURL string) (string, float64, error) {
	path := fmt.Sprintf("%s/mock-%d.wav", os.TempDir(), time.Now().UnixNano())
	if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
		return "", 0, err
	}
	return path, 30.0, nil
}

// MockSpeechToText returns the same canned transcript and word timings
// for every recording, without a real ASR call; the audio URL is not
// used.
type MockSpeechToText struct{}

var _ services.SpeechToText = MockSpeechToText{}

func (MockSpeechToText) Transcribe(ctx context.Context, audioURL string) (string, []services.WordDetail, error) {
	text := "hello world this is a mock transcript"
	words := strings.Fields(text)
	details := make([]services.WordDetail, 0, len(words))
	for i, w := range words {
		details = append(details, services.WordDetail{
			Word: w, StartTime: float64(i), EndTime: float64(i) + 0.5, Confidence: 0.9,
		})
	}
	return text, details, nil
}

// PassthroughAudioURLResolver returns audio references unchanged. Used
// when no storage bucket is configured, or in tests that submit
// directly-fetchable URLs.
type PassthroughAudioURLResolver struct{}

var _ services.AudioURLResolver = PassthroughAudioURLResolver{}

func (PassthroughAudioURLResolver) Resolve(ctx context.Context, raw string) (string, error) {
	return raw, nil
}
