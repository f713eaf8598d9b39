package entities

import "time"

// FileSession tracks the lifetime of one transcoded audio file on local
// disk, from registration by the audio-conversion step to deletion once
// every dependent service has reported completion.
type FileSession struct {
	SessionID        string
	FilePath         string
	CreatedAt        time.Time
	CleanupTimeout   time.Duration
	Dependencies     map[string]struct{}
	CleanupCompleted bool
}

// NewFileSession constructs a session with the given dependency set and
// cleanup timeout. The caller (File Session Manager) still owns file
// existence preconditions; this constructor only builds the value.
func NewFileSession(sessionID, filePath string, dependencies []string, cleanupTimeout time.Duration) *FileSession {
	deps := make(map[string]struct{}, len(dependencies))
	for _, d := range dependencies {
		deps[d] = struct{}{}
	}
	return &FileSession{
		SessionID:        sessionID,
		FilePath:         filePath,
		CreatedAt:        time.Now(),
		CleanupTimeout:   cleanupTimeout,
		Dependencies:     deps,
		CleanupCompleted: false,
	}
}

// MarkServiceComplete removes serviceName from the pending dependency
// set. Returns true if the set is now empty (the caller should proceed
// to delete the file and mark the session complete).
func (s *FileSession) MarkServiceComplete(serviceName string) (empty bool) {
	delete(s.Dependencies, serviceName)
	return len(s.Dependencies) == 0
}

// Expired reports whether the session's cleanup timeout has elapsed as
// of now.
func (s *FileSession) Expired(now time.Time) bool {
	return now.After(s.CreatedAt.Add(s.CleanupTimeout))
}

// PendingDependencies returns a snapshot of the still-outstanding
// dependency names, for observability.
func (s *FileSession) PendingDependencies() []string {
	out := make([]string, 0, len(s.Dependencies))
	for d := range s.Dependencies {
		out = append(out, d)
	}
	return out
}
