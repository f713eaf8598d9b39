package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempAudioFile(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "question.wav")
	require.NoError(t, os.WriteFile(path, []byte("fake audio"), 0o644))
	return path
}

func TestFileSessionManager_RegisterRejectsMissingFile(t *testing.T) {
	m := NewFileSessionManager(time.Hour)
	err := m.Register("sess-1", filepath.Join(t.TempDir(), "missing.wav"), []string{"pronunciation"}, 0)
	assert.Error(t, err, "Register should reject a nonexistent file")
}

func TestFileSessionManager_RegisterRejectsDuplicateID(t *testing.T) {
	m := NewFileSessionManager(time.Hour)
	path := tempAudioFile(t)

	require.NoError(t, m.Register("sess-1", path, []string{"pronunciation"}, 0))
	assert.Error(t, m.Register("sess-1", path, []string{"pronunciation"}, 0),
		"a second Register with the same sessionID should fail")
}

func TestFileSessionManager_MarkServiceCompleteDeletesFileWhenDependenciesDrain(t *testing.T) {
	m := NewFileSessionManager(time.Hour)
	path := tempAudioFile(t)

	require.NoError(t, m.Register("sess-1", path, []string{"pronunciation", "fluency"}, 0))

	require.True(t, m.MarkServiceComplete("sess-1", "pronunciation"))
	_, err := os.Stat(path)
	require.NoError(t, err, "the file should still exist with one dependency outstanding")
	_, tracked := m.GetSessionInfo("sess-1")
	assert.True(t, tracked, "the session should still be tracked")

	require.True(t, m.MarkServiceComplete("sess-1", "fluency"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "the file should be deleted once every dependency reported in")
	_, tracked = m.GetSessionInfo("sess-1")
	assert.False(t, tracked, "the session should be retired after cleanup")
}

func TestFileSessionManager_MarkServiceCompleteUnknownSession(t *testing.T) {
	m := NewFileSessionManager(time.Hour)
	assert.False(t, m.MarkServiceComplete("nope", "pronunciation"),
		"an unknown sessionID should be rejected, not raise")
}

func TestFileSessionManager_ForceCleanup(t *testing.T) {
	m := NewFileSessionManager(time.Hour)
	path := tempAudioFile(t)

	require.NoError(t, m.Register("sess-1", path, []string{"pronunciation"}, 0))
	require.True(t, m.ForceCleanup("sess-1"))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "ForceCleanup should delete the file despite outstanding dependencies")
	assert.False(t, m.ForceCleanup("sess-1"),
		"a second ForceCleanup on a retired session should be rejected")
}

func TestFileSessionManager_PeriodicCleanupExpiresStaleSessions(t *testing.T) {
	m := NewFileSessionManager(time.Hour)
	path := tempAudioFile(t)

	// A near-zero per-session timeout so the sweep finds it expired almost
	// immediately, without waiting on the manager-wide default.
	require.NoError(t, m.Register("sess-1", path, []string{"pronunciation"}, 1.0/60/1000))
	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, 1, m.PeriodicCleanup(), "PeriodicCleanup should expire 1 session")
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "the expired session's file should be deleted")
	_, tracked := m.GetSessionInfo("sess-1")
	assert.False(t, tracked, "the expired session should no longer be tracked")
}

func TestFileSessionManager_GetActiveSessions(t *testing.T) {
	m := NewFileSessionManager(time.Hour)
	path1 := tempAudioFile(t)
	path2 := tempAudioFile(t)

	require.NoError(t, m.Register("sess-1", path1, []string{"pronunciation"}, 0))
	require.NoError(t, m.Register("sess-2", path2, []string{"fluency"}, 0))

	assert.Len(t, m.GetActiveSessions(), 2)
}
