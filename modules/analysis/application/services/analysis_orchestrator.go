package services

import (
	"context"
	"sync"
	"time"

	analysisEntities "teammate/server/modules/analysis/domain/entities"
	analyzerServices "teammate/server/modules/analysis/domain/services"
	filesession "teammate/server/modules/filesession/application/services"
	"teammate/server/seedwork/infrastructure/events"
)

// QuestionReadyPayload is the inbound union payload handed off by the
// Analysis Coordinator.
type QuestionReadyPayload struct {
	SubmissionKey  string
	QuestionNumber int
	TotalQuestions int

	SessionID     string
	WavPath       string
	AudioURL      string
	AudioDuration float64
	AudioError    string

	TranscriptText  string
	WordDetails     []analysisEntities.WordDetail
	TranscriptError string
}

// AnalysisOrchestrator runs the four-way analysis fan-out (pronunciation,
// grammar, lexical, vocabulary) with a gated fluency stage, fans their
// completions back in, and emits ANALYSIS_COMPLETE exactly once per
// QuestionKey.
type AnalysisOrchestrator struct {
	publisher    events.Publisher
	fileSessions *filesession.FileSessionManager
	resultsStore ResultsStore
	callTimeout  time.Duration

	pronunciation analyzerServices.PronunciationAnalyzer
	grammar       analyzerServices.TextAnalyzer
	lexical       analyzerServices.TextAnalyzer
	vocabulary    analyzerServices.TextAnalyzer
	fluency       analyzerServices.FluencyAnalyzer

	fluencyConsumesAudio bool

	mu     sync.Mutex
	states map[questionKey]*lockedState
}

type questionKey struct {
	submissionKey  string
	questionNumber int
}

type lockedState struct {
	mu    sync.Mutex
	state *analysisEntities.AnalysisState
}

type AnalyzerSet struct {
	Pronunciation analyzerServices.PronunciationAnalyzer
	Grammar       analyzerServices.TextAnalyzer
	Lexical       analyzerServices.TextAnalyzer
	Vocabulary    analyzerServices.TextAnalyzer
	Fluency       analyzerServices.FluencyAnalyzer
	// FluencyConsumesAudio defaults to false: fluency is text-only and
	// the File Session Manager's dependency set stays {pronunciation}.
	// Set true to also require fluency complete before the audio file
	// is released.
	FluencyConsumesAudio bool
}

func NewAnalysisOrchestrator(publisher events.Publisher, fileSessions *filesession.FileSessionManager, resultsStore ResultsStore, callTimeout time.Duration, analyzers AnalyzerSet) *AnalysisOrchestrator {
	return &AnalysisOrchestrator{
		publisher:            publisher,
		fileSessions:         fileSessions,
		resultsStore:         resultsStore,
		callTimeout:          callTimeout,
		pronunciation:        analyzers.Pronunciation,
		grammar:              analyzers.Grammar,
		lexical:              analyzers.Lexical,
		vocabulary:           analyzers.Vocabulary,
		fluency:              analyzers.Fluency,
		fluencyConsumesAudio: analyzers.FluencyConsumesAudio,
		states:               make(map[questionKey]*lockedState),
	}
}

func (o *AnalysisOrchestrator) loadOrCreate(key questionKey, payload QuestionReadyPayload) *lockedState {
	o.mu.Lock()
	defer o.mu.Unlock()
	ls, ok := o.states[key]
	if !ok {
		st := analysisEntities.NewAnalysisState(payload.SubmissionKey, payload.QuestionNumber, payload.TotalQuestions)
		st.WavPath = payload.WavPath
		st.Transcript = payload.TranscriptText
		st.AudioURL = payload.AudioURL
		st.SessionID = payload.SessionID
		st.AudioDuration = payload.AudioDuration
		st.WordDetails = payload.WordDetails
		ls = &lockedState{state: st}
		o.states[key] = ls
	}
	return ls
}

// OnAnalysisReady launches the four-way fan-out for one question. Each
// stage runs in its own goroutine; the wait group gates the grammar,
// lexical and vocabulary calls, while pronunciation additionally gates
// fluency.
func (o *AnalysisOrchestrator) OnAnalysisReady(ctx context.Context, payload QuestionReadyPayload) {
	key := questionKey{payload.SubmissionKey, payload.QuestionNumber}
	ls := o.loadOrCreate(key, payload)

	var wg sync.WaitGroup
	wg.Add(4)

	go func() { defer wg.Done(); o.runPronunciation(ctx, ls, payload) }()
	go func() { defer wg.Done(); o.runGrammar(ctx, ls, payload) }()
	go func() { defer wg.Done(); o.runLexical(ctx, ls, payload) }()
	go func() { defer wg.Done(); o.runVocabulary(ctx, ls, payload) }()

	wg.Wait()
}

func (o *AnalysisOrchestrator) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.callTimeout)
}

func (o *AnalysisOrchestrator) runPronunciation(ctx context.Context, ls *lockedState, payload QuestionReadyPayload) {
	cctx, cancel := o.callCtx(ctx)
	defer cancel()

	result := analysisEntities.StageResult{Status: analysisEntities.StageRunning, StartedAt: time.Now()}
	var words []analysisEntities.WordDetail

	if payload.AudioError != "" {
		result.ErrorMessage = payload.AudioError
	} else {
		r, w, err := o.pronunciation.Analyze(cctx, payload.WavPath, payload.TranscriptText)
		if err != nil {
			result.ErrorMessage = classifyErr(cctx, err)
		} else {
			result.Result = r
			words = w
		}
	}
	result.Status = analysisEntities.StageDone
	result.CompletedAt = time.Now()

	ls.mu.Lock()
	ls.state.Pronunciation = result
	ls.mu.Unlock()

	o.emitStageDone(events.TopicPronunciationDone, payload, result)
	o.fileSessions.MarkServiceComplete(payload.SessionID, "pronunciation")

	o.runFluency(ctx, ls, payload, words, result)
	o.maybeFinalize(ls)
}

func (o *AnalysisOrchestrator) runFluency(ctx context.Context, ls *lockedState, payload QuestionReadyPayload, words []analysisEntities.WordDetail, pronunciation analysisEntities.StageResult) {
	cctx, cancel := o.callCtx(ctx)
	defer cancel()

	result := analysisEntities.StageResult{Status: analysisEntities.StageRunning, StartedAt: time.Now()}

	detail := analysisEntities.FluencyDetail{Words: words, NoDetail: len(words) == 0}
	if detail.NoDetail {
		result.ErrorMessage = "no_pronunciation_detail"
	} else {
		r, err := o.fluency.Analyze(cctx, payload.TranscriptText, detail)
		if err != nil {
			result.ErrorMessage = classifyErr(cctx, err)
		} else {
			result.Result = r
		}
	}
	result.Status = analysisEntities.StageDone
	result.CompletedAt = time.Now()

	ls.mu.Lock()
	ls.state.Fluency = result
	ls.mu.Unlock()

	o.emitStageDone(events.TopicFluencyDone, payload, result)
	if o.fluencyConsumesAudio {
		o.fileSessions.MarkServiceComplete(payload.SessionID, "fluency")
	}
}

func (o *AnalysisOrchestrator) runGrammar(ctx context.Context, ls *lockedState, payload QuestionReadyPayload) {
	cctx, cancel := o.callCtx(ctx)
	defer cancel()

	result := analysisEntities.StageResult{Status: analysisEntities.StageRunning, StartedAt: time.Now()}
	if payload.TranscriptError != "" {
		result.ErrorMessage = payload.TranscriptError
	} else {
		r, err := o.grammar.Analyze(cctx, payload.TranscriptText)
		if err != nil {
			result.ErrorMessage = classifyErr(cctx, err)
		} else {
			result.Result = r
		}
	}
	result.Status = analysisEntities.StageDone
	result.CompletedAt = time.Now()

	ls.mu.Lock()
	ls.state.Grammar = result
	ls.mu.Unlock()

	o.emitStageDone(events.TopicGrammarDone, payload, result)
	o.maybeFinalize(ls)
}

func (o *AnalysisOrchestrator) runLexical(ctx context.Context, ls *lockedState, payload QuestionReadyPayload) {
	cctx, cancel := o.callCtx(ctx)
	defer cancel()

	result := analysisEntities.StageResult{Status: analysisEntities.StageRunning, StartedAt: time.Now()}
	if payload.TranscriptError != "" {
		result.ErrorMessage = payload.TranscriptError
	} else {
		r, err := o.lexical.Analyze(cctx, payload.TranscriptText)
		if err != nil {
			result.ErrorMessage = classifyErr(cctx, err)
		} else {
			result.Result = r
		}
	}
	result.Status = analysisEntities.StageDone
	result.CompletedAt = time.Now()

	ls.mu.Lock()
	ls.state.Lexical = result
	ls.mu.Unlock()

	o.emitStageDone(events.TopicLexicalDone, payload, result)
	o.maybeFinalize(ls)
}

func (o *AnalysisOrchestrator) runVocabulary(ctx context.Context, ls *lockedState, payload QuestionReadyPayload) {
	cctx, cancel := o.callCtx(ctx)
	defer cancel()

	result := analysisEntities.StageResult{Status: analysisEntities.StageRunning, StartedAt: time.Now()}
	if payload.TranscriptError != "" {
		result.ErrorMessage = payload.TranscriptError
	} else {
		r, err := o.vocabulary.Analyze(cctx, payload.TranscriptText)
		if err != nil {
			result.ErrorMessage = classifyErr(cctx, err)
		} else {
			result.Result = r
		}
	}
	result.Status = analysisEntities.StageDone
	result.CompletedAt = time.Now()

	ls.mu.Lock()
	ls.state.Vocabulary = result
	ls.mu.Unlock()

	o.emitStageDone(events.TopicVocabularyDone, payload, result)
	o.maybeFinalize(ls)
}

func classifyErr(ctx context.Context, err error) string {
	if ctx.Err() == context.DeadlineExceeded {
		return "timeout"
	}
	return err.Error()
}

func (o *AnalysisOrchestrator) emitStageDone(topic events.Topic, payload QuestionReadyPayload, result analysisEntities.StageResult) {
	o.publisher.Publish(topic, map[string]interface{}{
		"submission_url":  payload.SubmissionKey,
		"question_number": payload.QuestionNumber,
		"total_questions": payload.TotalQuestions,
		"result":          result.ToResultMap(),
	})
}

// maybeFinalize checks whether all five stages are done; if so and
// ANALYSIS_COMPLETE has not yet been emitted for this AnalysisState, it
// builds the QuestionResult, stores it, and emits exactly once.
func (o *AnalysisOrchestrator) maybeFinalize(ls *lockedState) {
	var toEmit *analysisEntities.QuestionResult
	var submissionKey string
	var questionNumber, totalQuestions int

	ls.mu.Lock()
	if !ls.state.EmittedComplete && ls.state.AllDone() {
		ls.state.EmittedComplete = true
		qr := analysisEntities.QuestionResult{
			SubmissionKey:  ls.state.SubmissionKey,
			QuestionNumber: ls.state.QuestionNumber,
			Pronunciation:  ls.state.Pronunciation.ToResultMap(),
			Grammar:        ls.state.Grammar.ToResultMap(),
			Lexical:        ls.state.Lexical.ToResultMap(),
			Vocabulary:     ls.state.Vocabulary.ToResultMap(),
			Fluency:        ls.state.Fluency.ToResultMap(),
			Transcript:     ls.state.Transcript,
			AudioDuration:  ls.state.AudioDuration,
		}
		toEmit = &qr
		submissionKey = ls.state.SubmissionKey
		questionNumber = ls.state.QuestionNumber
		totalQuestions = ls.state.TotalQuestions
	}
	ls.mu.Unlock()

	if toEmit == nil {
		return
	}

	o.resultsStore.Store(submissionKey, questionNumber, *toEmit)
	o.publisher.Publish(events.TopicAnalysisComplete, map[string]interface{}{
		"submission_url":  submissionKey,
		"question_number": questionNumber,
		"total_questions": totalQuestions,
		"result":          toEmit,
	})
}
