package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	analysisEntities "teammate/server/modules/analysis/domain/entities"
	filesession "teammate/server/modules/filesession/application/services"
	"teammate/server/seedwork/infrastructure/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingPublisher struct {
	mu        sync.Mutex
	published []struct {
		topic   events.Topic
		payload any
	}
}

func (p *capturingPublisher) Publish(topic events.Topic, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, struct {
		topic   events.Topic
		payload any
	}{topic, payload})
	return nil
}

func (p *capturingPublisher) countOf(topic events.Topic) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.published {
		if e.topic == topic {
			n++
		}
	}
	return n
}

type fakeResultsStore struct {
	mu     sync.Mutex
	stored []analysisEntities.QuestionResult
}

func (s *fakeResultsStore) Store(submissionKey string, questionNumber int, result analysisEntities.QuestionResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = append(s.stored, result)
	return true
}

func (s *fakeResultsStore) last(t *testing.T) analysisEntities.QuestionResult {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.stored, "expected at least one stored QuestionResult")
	return s.stored[len(s.stored)-1]
}

type fakePronunciationAnalyzer struct {
	delay time.Duration
	words []analysisEntities.WordDetail
	err   error

	mu         sync.Mutex
	calls      int
	returnedAt time.Time
}

func (f *fakePronunciationAnalyzer) Analyze(ctx context.Context, wavPath, transcript string) (map[string]interface{}, []analysisEntities.WordDetail, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	f.calls++
	f.returnedAt = time.Now()
	f.mu.Unlock()
	if f.err != nil {
		return nil, nil, f.err
	}
	return map[string]interface{}{"grade": 82}, f.words, nil
}

type fakeTextAnalyzer struct {
	delay time.Duration
	err   error

	mu    sync.Mutex
	calls int
}

func (f *fakeTextAnalyzer) Analyze(ctx context.Context, transcript string) (map[string]interface{}, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return map[string]interface{}{"grade": 75}, nil
}

type fakeFluencyAnalyzer struct {
	mu       sync.Mutex
	calls    int
	calledAt time.Time
}

func (f *fakeFluencyAnalyzer) Analyze(ctx context.Context, transcript string, detail analysisEntities.FluencyDetail) (map[string]interface{}, error) {
	f.mu.Lock()
	f.calls++
	f.calledAt = time.Now()
	f.mu.Unlock()
	return map[string]interface{}{"grade": 78, "word_count": len(detail.Words)}, nil
}

func someWords() []analysisEntities.WordDetail {
	return []analysisEntities.WordDetail{
		{Word: "hello", StartTime: 0, EndTime: 0.4, Confidence: 0.95},
		{Word: "world", StartTime: 0.5, EndTime: 0.9, Confidence: 0.92},
	}
}

func readyPayload() QuestionReadyPayload {
	return QuestionReadyPayload{
		SubmissionKey:  "sub-1",
		QuestionNumber: 1,
		TotalQuestions: 1,
		SessionID:      "sess-1",
		WavPath:        "/tmp/q1.wav",
		AudioDuration:  30,
		TranscriptText: "hello world",
	}
}

func newTestOrchestrator(pub events.Publisher, store ResultsStore, fs *filesession.FileSessionManager, set AnalyzerSet) *AnalysisOrchestrator {
	if fs == nil {
		fs = filesession.NewFileSessionManager(time.Hour)
	}
	return NewAnalysisOrchestrator(pub, fs, store, time.Minute, set)
}

func TestAnalysisOrchestrator_HappyPathEmitsEveryStageAndCompleteOnce(t *testing.T) {
	pub := &capturingPublisher{}
	store := &fakeResultsStore{}
	o := newTestOrchestrator(pub, store, nil, AnalyzerSet{
		Pronunciation: &fakePronunciationAnalyzer{words: someWords()},
		Grammar:       &fakeTextAnalyzer{},
		Lexical:       &fakeTextAnalyzer{},
		Vocabulary:    &fakeTextAnalyzer{},
		Fluency:       &fakeFluencyAnalyzer{},
	})

	o.OnAnalysisReady(context.Background(), readyPayload())

	for _, topic := range []events.Topic{
		events.TopicPronunciationDone,
		events.TopicGrammarDone,
		events.TopicLexicalDone,
		events.TopicVocabularyDone,
		events.TopicFluencyDone,
	} {
		assert.Equal(t, 1, pub.countOf(topic), "expected exactly 1 %s", topic)
	}
	require.Equal(t, 1, pub.countOf(events.TopicAnalysisComplete))

	r := store.last(t)
	for name, m := range map[string]map[string]interface{}{
		"pronunciation": r.Pronunciation,
		"grammar":       r.Grammar,
		"lexical":       r.Lexical,
		"vocabulary":    r.Vocabulary,
		"fluency":       r.Fluency,
	} {
		assert.NotContains(t, m, "error", "expected %s to be a success shape", name)
	}
}

func TestAnalysisOrchestrator_OutOfOrderStageCompletion(t *testing.T) {
	pub := &capturingPublisher{}
	store := &fakeResultsStore{}
	// Lexical first, then vocabulary, then grammar, pronunciation last.
	o := newTestOrchestrator(pub, store, nil, AnalyzerSet{
		Pronunciation: &fakePronunciationAnalyzer{delay: 40 * time.Millisecond, words: someWords()},
		Grammar:       &fakeTextAnalyzer{delay: 30 * time.Millisecond},
		Lexical:       &fakeTextAnalyzer{},
		Vocabulary:    &fakeTextAnalyzer{delay: 10 * time.Millisecond},
		Fluency:       &fakeFluencyAnalyzer{},
	})

	o.OnAnalysisReady(context.Background(), readyPayload())

	require.Equal(t, 1, pub.countOf(events.TopicAnalysisComplete),
		"exactly 1 ANALYSIS_COMPLETE regardless of stage order")
	r := store.last(t)
	assert.NotNil(t, r.Pronunciation)
	assert.NotNil(t, r.Grammar)
	assert.NotNil(t, r.Lexical)
	assert.NotNil(t, r.Vocabulary)
	assert.NotNil(t, r.Fluency)
}

func TestAnalysisOrchestrator_FluencyStartsAfterPronunciationCompletes(t *testing.T) {
	pron := &fakePronunciationAnalyzer{delay: 20 * time.Millisecond, words: someWords()}
	fluency := &fakeFluencyAnalyzer{}
	o := newTestOrchestrator(&capturingPublisher{}, &fakeResultsStore{}, nil, AnalyzerSet{
		Pronunciation: pron,
		Grammar:       &fakeTextAnalyzer{},
		Lexical:       &fakeTextAnalyzer{},
		Vocabulary:    &fakeTextAnalyzer{},
		Fluency:       fluency,
	})

	o.OnAnalysisReady(context.Background(), readyPayload())

	require.Equal(t, 1, fluency.calls, "fluency should run exactly once")
	assert.False(t, fluency.calledAt.Before(pron.returnedAt),
		"fluency should start only after pronunciation returned")
}

func TestAnalysisOrchestrator_DuplicateDeliveryCompletesOnce(t *testing.T) {
	pub := &capturingPublisher{}
	store := &fakeResultsStore{}
	o := newTestOrchestrator(pub, store, nil, AnalyzerSet{
		Pronunciation: &fakePronunciationAnalyzer{words: someWords()},
		Grammar:       &fakeTextAnalyzer{},
		Lexical:       &fakeTextAnalyzer{},
		Vocabulary:    &fakeTextAnalyzer{},
		Fluency:       &fakeFluencyAnalyzer{},
	})

	ctx := context.Background()
	o.OnAnalysisReady(ctx, readyPayload())
	o.OnAnalysisReady(ctx, readyPayload())

	require.Equal(t, 1, pub.countOf(events.TopicAnalysisComplete),
		"exactly 1 ANALYSIS_COMPLETE across redelivery")
	store.mu.Lock()
	stored := len(store.stored)
	store.mu.Unlock()
	assert.Equal(t, 1, stored, "exactly 1 Store call across redelivery")
}

func TestAnalysisOrchestrator_StageErrorRecordedAsErrorShape(t *testing.T) {
	pub := &capturingPublisher{}
	store := &fakeResultsStore{}
	o := newTestOrchestrator(pub, store, nil, AnalyzerSet{
		Pronunciation: &fakePronunciationAnalyzer{words: someWords()},
		Grammar:       &fakeTextAnalyzer{err: errors.New("upstream unavailable")},
		Lexical:       &fakeTextAnalyzer{},
		Vocabulary:    &fakeTextAnalyzer{},
		Fluency:       &fakeFluencyAnalyzer{},
	})

	o.OnAnalysisReady(context.Background(), readyPayload())

	require.Equal(t, 1, pub.countOf(events.TopicAnalysisComplete),
		"ANALYSIS_COMPLETE should fire despite a failed stage")
	r := store.last(t)
	assert.Equal(t, "upstream unavailable", r.Grammar["error"])
	assert.NotContains(t, r.Lexical, "error", "lexical should still succeed")
}

func TestAnalysisOrchestrator_MissingWordDetailFailsFluency(t *testing.T) {
	fluency := &fakeFluencyAnalyzer{}
	store := &fakeResultsStore{}
	o := newTestOrchestrator(&capturingPublisher{}, store, nil, AnalyzerSet{
		Pronunciation: &fakePronunciationAnalyzer{words: nil},
		Grammar:       &fakeTextAnalyzer{},
		Lexical:       &fakeTextAnalyzer{},
		Vocabulary:    &fakeTextAnalyzer{},
		Fluency:       fluency,
	})

	o.OnAnalysisReady(context.Background(), readyPayload())

	assert.Equal(t, 0, fluency.calls, "the fluency analyzer should be skipped with no word detail")
	r := store.last(t)
	assert.Equal(t, "no_pronunciation_detail", r.Fluency["error"])
}

func TestAnalysisOrchestrator_AudioErrorShortCircuitsPronunciation(t *testing.T) {
	pron := &fakePronunciationAnalyzer{words: someWords()}
	pub := &capturingPublisher{}
	store := &fakeResultsStore{}
	o := newTestOrchestrator(pub, store, nil, AnalyzerSet{
		Pronunciation: pron,
		Grammar:       &fakeTextAnalyzer{},
		Lexical:       &fakeTextAnalyzer{},
		Vocabulary:    &fakeTextAnalyzer{},
		Fluency:       &fakeFluencyAnalyzer{},
	})

	payload := readyPayload()
	payload.AudioError = "conversion failed"
	o.OnAnalysisReady(context.Background(), payload)

	assert.Equal(t, 0, pron.calls, "the pronunciation analyzer should be skipped on an audio error")
	require.Equal(t, 1, pub.countOf(events.TopicAnalysisComplete),
		"ANALYSIS_COMPLETE should fire despite the audio error")
	r := store.last(t)
	assert.Equal(t, "conversion failed", r.Pronunciation["error"])
}

func TestAnalysisOrchestrator_ReleasesAudioFileAfterPronunciation(t *testing.T) {
	dir := t.TempDir()
	wavPath := filepath.Join(dir, "q1.wav")
	require.NoError(t, os.WriteFile(wavPath, []byte("fake audio"), 0o644))

	fs := filesession.NewFileSessionManager(time.Hour)
	require.NoError(t, fs.Register("sess-1", wavPath, []string{"pronunciation"}, 0))

	o := newTestOrchestrator(&capturingPublisher{}, &fakeResultsStore{}, fs, AnalyzerSet{
		Pronunciation: &fakePronunciationAnalyzer{words: someWords()},
		Grammar:       &fakeTextAnalyzer{},
		Lexical:       &fakeTextAnalyzer{},
		Vocabulary:    &fakeTextAnalyzer{},
		Fluency:       &fakeFluencyAnalyzer{},
	})

	payload := readyPayload()
	payload.WavPath = wavPath
	o.OnAnalysisReady(context.Background(), payload)

	_, err := os.Stat(wavPath)
	assert.True(t, os.IsNotExist(err),
		"the audio file should be deleted once pronunciation reported complete")
	_, tracked := fs.GetSessionInfo("sess-1")
	assert.False(t, tracked, "the file session should be retired")
}
