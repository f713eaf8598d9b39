package entities

// QuestionResult is the per-question output produced once all five
// analysis stages for a QuestionKey are done. Each analysis field
// is always a success-or-error map, never nil.
type QuestionResult struct {
	SubmissionKey  string                 `json:"submission_key"`
	QuestionNumber int                    `json:"question_number"`
	Pronunciation  map[string]interface{} `json:"pronunciation"`
	Grammar        map[string]interface{} `json:"grammar"`
	Lexical        map[string]interface{} `json:"lexical"`
	Vocabulary     map[string]interface{} `json:"vocabulary"`
	Fluency        map[string]interface{} `json:"fluency"`
	Transcript     string                 `json:"transcript"`
	AudioDuration  float64                `json:"audio_duration"`

	// DurationFeedback is computed later by the Submission Aggregator
	// once the per-question time limit is known; absent until then.
	DurationFeedback map[string]interface{} `json:"duration_feedback,omitempty"`
}

// HasError reports whether any of the five sub-results is an error
// shape, for the aggregator's partial-failure logging.
func (r QuestionResult) HasError() bool {
	for _, m := range []map[string]interface{}{r.Pronunciation, r.Grammar, r.Lexical, r.Vocabulary, r.Fluency} {
		if m == nil {
			continue
		}
		if _, ok := m["error"]; ok {
			return true
		}
	}
	return false
}
