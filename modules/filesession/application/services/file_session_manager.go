package services

import (
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"teammate/server/modules/filesession/domain/entities"
	"teammate/server/seedwork/domain"
)

// FileSessionManager tracks every transcoded audio file between the
// moment the audio service finishes conversion and the moment every
// downstream service that needs local access has reported completion.
// Its index is guarded by a single mutex; file deletions always
// happen outside that lock.
type FileSessionManager struct {
	mu       sync.Mutex
	sessions map[string]*entities.FileSession
	counter  uint64

	defaultTimeout time.Duration
}

func NewFileSessionManager(defaultTimeout time.Duration) *FileSessionManager {
	return &FileSessionManager{
		sessions:       make(map[string]*entities.FileSession),
		defaultTimeout: defaultTimeout,
	}
}

// GenerateSessionID returns a session id derived from the QuestionKey
// plus a monotonically increasing in-process counter and a timestamp, so
// that two calls for the same (submissionKey, questionNumber) — as
// happens on retry — never collide.
func (m *FileSessionManager) GenerateSessionID(submissionKey string, questionNumber int) string {
	n := atomic.AddUint64(&m.counter, 1)
	return fmt.Sprintf("%s-q%d-%d-%d", submissionKey, questionNumber, n, time.Now().UnixNano())
}

// Register records a new session. Registration is monotonic: a second
// call with the same sessionID is rejected with InvariantViolation. The
// file at filePath must already exist.
func (m *FileSessionManager) Register(sessionID, filePath string, dependencies []string, cleanupTimeoutMinutes float64) error {
	if _, err := os.Stat(filePath); err != nil {
		return domain.NewDomainError(domain.CodeInvariantViolation, "cannot register session: file does not exist", err)
	}

	timeout := m.defaultTimeout
	if cleanupTimeoutMinutes > 0 {
		timeout = time.Duration(cleanupTimeoutMinutes * float64(time.Minute))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sessionID]; exists {
		return domain.NewDomainError(domain.CodeInvariantViolation, "session already registered: "+sessionID, nil)
	}

	m.sessions[sessionID] = entities.NewFileSession(sessionID, filePath, dependencies, timeout)
	return nil
}

// MarkServiceComplete removes serviceName from the session's pending
// dependency set. When the set becomes empty the file is deleted and
// the session is retired. Returns whether the call was accepted; an
// unknown sessionID returns false without raising.
func (m *FileSessionManager) MarkServiceComplete(sessionID, serviceName string) bool {
	m.mu.Lock()
	session, exists := m.sessions[sessionID]
	if !exists {
		m.mu.Unlock()
		return false
	}
	empty := session.MarkServiceComplete(serviceName)
	if empty {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()

	if empty {
		m.cleanupFile(session)
	}
	return true
}

// ForceCleanup performs the terminal cleanup step immediately,
// regardless of outstanding dependencies. Its caller is the operator
// debug endpoint; the submission aggregator does not call it.
func (m *FileSessionManager) ForceCleanup(sessionID string) bool {
	m.mu.Lock()
	session, exists := m.sessions[sessionID]
	if exists {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()

	if !exists {
		return false
	}
	m.cleanupFile(session)
	return true
}

// PeriodicCleanup scans active sessions and force-cleans any whose
// CreatedAt+CleanupTimeout has elapsed. Intended to run on a coarse
// timer.
func (m *FileSessionManager) PeriodicCleanup() int {
	now := time.Now()

	m.mu.Lock()
	var expired []*entities.FileSession
	for id, s := range m.sessions {
		if s.Expired(now) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		m.cleanupFile(s)
	}
	return len(expired)
}

// cleanupFile deletes the session's file, tolerating a missing file,
// and marks cleanup complete. Runs outside the manager's mutex.
func (m *FileSessionManager) cleanupFile(session *entities.FileSession) {
	if err := os.Remove(session.FilePath); err != nil && !os.IsNotExist(err) {
		log.Printf("filesession: failed to delete %s for session %s: %v", session.FilePath, session.SessionID, err)
	}
	session.CleanupCompleted = true
}

// GetSessionInfo returns a snapshot of a session for observability.
func (m *FileSessionManager) GetSessionInfo(sessionID string) (*entities.FileSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	snapshot := *s
	snapshot.Dependencies = make(map[string]struct{}, len(s.Dependencies))
	for d := range s.Dependencies {
		snapshot.Dependencies[d] = struct{}{}
	}
	return &snapshot, true
}

// GetActiveSessions lists every session currently tracked.
func (m *FileSessionManager) GetActiveSessions() []*entities.FileSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entities.FileSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}
