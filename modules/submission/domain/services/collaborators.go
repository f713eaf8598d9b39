package services

import "context"

// WordDetail is one word's timing detail as produced by the speech
// recognizer.
type WordDetail struct {
	Word       string  `json:"word"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Confidence float64 `json:"confidence"`
}

// AudioTranscoder converts an arbitrary source audio URL to 16 kHz mono
// PCM WAV on local disk and reports its duration.
type AudioTranscoder interface {
	Transcode(ctx context.Context, audioURL string) (wavPath string, durationSeconds float64, err error)
}

// SpeechToText returns transcript text and word-level timing for a
// recording. It runs independently of the audio-conversion step,
// against the same source audio URL.
type SpeechToText interface {
	Transcribe(ctx context.Context, audioURL string) (transcript string, words []WordDetail, err error)
}

// AudioURLResolver turns a submitted audio reference (a storage object
// path, typically) into a URL the transcoder and speech-to-text
// collaborators can fetch directly. Submit calls this once per
// recording before fanning out STUDENT_SUBMISSION.
type AudioURLResolver interface {
	Resolve(ctx context.Context, raw string) (string, error)
}
