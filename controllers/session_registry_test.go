package controllers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErfanAalam/MyFootFirst2-sub000/capture"
	"github.com/ErfanAalam/MyFootFirst2-sub000/services"
)

func newRegistryEntry(t *testing.T, id, userID string) *scanSession {
	t.Helper()
	session, err := capture.NewSession(capture.SessionOptions{
		Camera:     &uploadCamera{available: true},
		Validator:  services.NewMockSheetDetector(),
		Thresholds: capture.DefaultThresholds(),
	})
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), id)
	require.NoError(t, os.MkdirAll(dir, 0755))
	return &scanSession{id: id, userID: userID, customerID: "C1", dir: dir, session: session}
}

func TestSessionRegistry_GetChecksOwner(t *testing.T) {
	r := NewSessionRegistry()
	r.add(newRegistryEntry(t, "s1", "u1"))

	_, ok := r.get("s1", "u1")
	assert.True(t, ok)
	_, ok = r.get("s1", "u2")
	assert.False(t, ok)
	_, ok = r.get("missing", "u1")
	assert.False(t, ok)
}

func TestSessionRegistry_Sweep(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewSessionRegistry()
	r.now = func() time.Time { return now }

	idle := newRegistryEntry(t, "idle", "u1")
	uploading := newRegistryEntry(t, "uploading", "u1")
	r.add(idle)
	r.add(uploading)
	uploading.uploading = true

	now = now.Add(10 * time.Minute)
	fresh := newRegistryEntry(t, "fresh", "u1")
	r.add(fresh)

	closed := r.Sweep(5 * time.Minute)

	assert.Equal(t, 1, closed)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, capture.StateClosed, idle.session.Snapshot().State)
	_, err := os.Stat(idle.dir)
	assert.True(t, os.IsNotExist(err))

	_, ok := r.get("fresh", "u1")
	assert.True(t, ok)
}

func TestSessionRegistry_GetKeepsSessionAlive(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewSessionRegistry()
	r.now = func() time.Time { return now }
	r.add(newRegistryEntry(t, "s1", "u1"))

	now = now.Add(4 * time.Minute)
	_, ok := r.get("s1", "u1")
	require.True(t, ok)

	now = now.Add(4 * time.Minute)
	assert.Equal(t, 0, r.Sweep(5*time.Minute))
	assert.Equal(t, 1, r.Len())
}

func TestSessionRegistry_CloseAll(t *testing.T) {
	r := NewSessionRegistry()
	a := newRegistryEntry(t, "a", "u1")
	b := newRegistryEntry(t, "b", "u2")
	r.add(a)
	r.add(b)

	r.CloseAll()

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, capture.StateClosed, a.session.Snapshot().State)
	assert.Equal(t, capture.StateClosed, b.session.Snapshot().State)
}

func TestScanSession_UploadBlocksRestartAndStop(t *testing.T) {
	s := newRegistryEntry(t, "s1", "u1")

	_, err := s.beginUpload()
	assert.ErrorIs(t, err, capture.ErrSessionIncomplete, "an unfinished session cannot upload")

	s.uploading = true
	assert.ErrorIs(t, s.restart(), errUploadRunning)
	assert.ErrorIs(t, s.stop(), errUploadRunning)
	_, err = s.beginUpload()
	assert.ErrorIs(t, err, errUploadRunning)
	assert.Equal(t, capture.StateIdle, s.session.Snapshot().State)

	s.endUpload()
	assert.NoError(t, s.restart())
	assert.NoError(t, s.stop())
	assert.Equal(t, capture.StateClosed, s.session.Snapshot().State)

	_, err = s.beginUpload()
	assert.ErrorIs(t, err, capture.ErrSessionClosed, "a stopped session cannot start an upload")
}

func TestUploadCamera_WithoutPhoto(t *testing.T) {
	cam := &uploadCamera{available: true, photos: services.NewMockPhotoService()}
	_, err := cam.TakePhoto(t.Context())
	assert.ErrorIs(t, err, errNoPhoto)
}
