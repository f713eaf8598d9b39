package services

import (
	"context"
	"log"

	filesession "teammate/server/modules/filesession/application/services"
	submissionServices "teammate/server/modules/submission/domain/services"
	"teammate/server/seedwork/infrastructure/events"
)

// SubmissionIngestService owns the ingest half of the pipeline:
// /submit fans a submission's audio URLs out as one STUDENT_SUBMISSION
// per recording, and
// /webhooks/student-submission runs the audio-conversion and
// speech-to-text steps for one recording in parallel, publishing
// AUDIO_CONVERSION_DONE and TRANSCRIPTION_DONE so the Analysis
// Coordinator can fan them back in.
type SubmissionIngestService struct {
	transcoder   submissionServices.AudioTranscoder
	speechToText submissionServices.SpeechToText
	resolver     submissionServices.AudioURLResolver
	fileSessions *filesession.FileSessionManager
	publisher    events.Publisher
	resultsStore *ResultsStore
}

func NewSubmissionIngestService(transcoder submissionServices.AudioTranscoder, speechToText submissionServices.SpeechToText, resolver submissionServices.AudioURLResolver, fileSessions *filesession.FileSessionManager, publisher events.Publisher, resultsStore *ResultsStore) *SubmissionIngestService {
	return &SubmissionIngestService{
		transcoder:   transcoder,
		speechToText: speechToText,
		resolver:     resolver,
		fileSessions: fileSessions,
		publisher:    publisher,
		resultsStore: resultsStore,
	}
}

// Submit publishes one STUDENT_SUBMISSION per audio URL (`/submit`),
// resolving each reference through the storage collaborator first so
// downstream stages always see a directly-fetchable URL.
func (s *SubmissionIngestService) Submit(ctx context.Context, submissionKey string, audioURLs []string) {
	totalQuestions := len(audioURLs)
	s.resultsStore.EnsureTotalQuestions(submissionKey, totalQuestions)

	for i, url := range audioURLs {
		resolved, err := s.resolver.Resolve(ctx, url)
		if err != nil {
			log.Printf("submission %s q%d: failed to resolve audio url: %v", submissionKey, i+1, err)
			resolved = url
		}
		s.publisher.Publish(events.TopicStudentSubmission, map[string]interface{}{
			"submission_url":  submissionKey,
			"question_number": i + 1,
			"total_questions": totalQuestions,
			"audio_url":       resolved,
		})
	}
}

// OnStudentSubmission handles one recording: it runs audio-conversion
// and speech-to-text in parallel, registers the transcoded file with
// the File Session Manager, and publishes both completion events
// ("duplicated into an audio-conversion job and a transcript job").
func (s *SubmissionIngestService) OnStudentSubmission(ctx context.Context, submissionKey string, questionNumber, totalQuestions int, audioURL string) {
	type audioResult struct {
		wavPath  string
		duration float64
		err      error
	}
	type transcriptResult struct {
		text  string
		words []submissionServices.WordDetail
		err   error
	}

	audioCh := make(chan audioResult, 1)
	transcriptCh := make(chan transcriptResult, 1)

	go func() {
		path, dur, err := s.transcoder.Transcode(ctx, audioURL)
		audioCh <- audioResult{path, dur, err}
	}()
	go func() {
		text, words, err := s.speechToText.Transcribe(ctx, audioURL)
		transcriptCh <- transcriptResult{text, words, err}
	}()

	ar := <-audioCh
	tr := <-transcriptCh

	var sessionID string
	audioErr := ""
	if ar.err != nil {
		audioErr = ar.err.Error()
		log.Printf("submission %s q%d: audio conversion failed: %v", submissionKey, questionNumber, ar.err)
	} else {
		sessionID = s.fileSessions.GenerateSessionID(submissionKey, questionNumber)
		if err := s.fileSessions.Register(sessionID, ar.wavPath, []string{"pronunciation"}, 30); err != nil {
			audioErr = err.Error()
		}
	}

	s.publisher.Publish(events.TopicAudioConversionDone, map[string]interface{}{
		"submission_url":  submissionKey,
		"question_number": questionNumber,
		"total_questions": totalQuestions,
		"session_id":      sessionID,
		"wav_path":        ar.wavPath,
		"audio_url":       audioURL,
		"audio_duration":  ar.duration,
		"error":           audioErr,
	})

	transcriptErr := ""
	if tr.err != nil {
		transcriptErr = tr.err.Error()
		log.Printf("submission %s q%d: transcription failed: %v", submissionKey, questionNumber, tr.err)
	}
	if tr.words == nil {
		tr.words = []submissionServices.WordDetail{}
	}

	s.publisher.Publish(events.TopicTranscriptionDone, map[string]interface{}{
		"submission_url":  submissionKey,
		"question_number": questionNumber,
		"total_questions": totalQuestions,
		"transcript":      tr.text,
		"word_details":    tr.words,
		"error":           transcriptErr,
	})
}
