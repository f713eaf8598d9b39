package entities

import "time"

// StageStatus is the pending/running/done state machine for one analysis
// stage. No state backtracks.
type StageStatus string

const (
	StagePending StageStatus = "pending"
	StageRunning StageStatus = "running"
	StageDone    StageStatus = "done"
)

// StageResult is the outcome of one analysis stage: either a success
// shape (grade/issues/detail, left generic here as a raw map so each
// analyzer can carry its own component-specific detail) or an error
// shape. Exactly one of Result/ErrorMessage is set once Status is done.
type StageResult struct {
	Status       StageStatus
	Result       map[string]interface{}
	ErrorMessage string
	StartedAt    time.Time
	CompletedAt  time.Time
}

func (r StageResult) Done() bool {
	return r.Status == StageDone
}

// ToResultMap normalizes a stage result to the success-or-error shape
// persisted in a QuestionResult: a missing/unset stage is coerced to an
// error shape rather than left nil.
func (r StageResult) ToResultMap() map[string]interface{} {
	if r.Status != StageDone {
		return map[string]interface{}{"error": "not_completed"}
	}
	if r.ErrorMessage != "" {
		return map[string]interface{}{"error": r.ErrorMessage}
	}
	if r.Result != nil {
		return r.Result
	}
	return map[string]interface{}{"error": "empty_result"}
}

// AnalysisState is the per-QuestionKey fan-out/fan-in record owned by the
// Analysis Orchestrator. It snapshots the inputs from
// QUESTION_ANALYSIS_READY and tracks the five analysis stages to
// completion, gating fluency on pronunciation.
type AnalysisState struct {
	SubmissionKey  string
	QuestionNumber int
	TotalQuestions int

	WavPath       string
	Transcript    string
	AudioURL      string
	SessionID     string
	AudioDuration float64
	WordDetails   []WordDetail

	Pronunciation StageResult
	Grammar       StageResult
	Lexical       StageResult
	Vocabulary    StageResult
	Fluency       StageResult

	EmittedComplete bool

	CreatedAt time.Time
}

// WordDetail mirrors the coordination module's word-timing payload so
// this package has no dependency on it.
type WordDetail struct {
	Word       string  `json:"word"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Confidence float64 `json:"confidence"`
}

func NewAnalysisState(submissionKey string, questionNumber, totalQuestions int) *AnalysisState {
	return &AnalysisState{
		SubmissionKey:  submissionKey,
		QuestionNumber: questionNumber,
		TotalQuestions: totalQuestions,
		CreatedAt:      time.Now(),
	}
}

// AllDone reports whether all five stages have reached a terminal state.
func (s *AnalysisState) AllDone() bool {
	return s.Pronunciation.Done() && s.Grammar.Done() && s.Lexical.Done() &&
		s.Vocabulary.Done() && s.Fluency.Done()
}

// FluencyDetail is the pronunciation word-level detail handed to the
// fluency stage once pronunciation completes. An empty Words slice with
// NoDetail=true signals "no_pronunciation_detail".
type FluencyDetail struct {
	Words    []WordDetail
	NoDetail bool
}
