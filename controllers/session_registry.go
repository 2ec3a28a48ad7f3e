package controllers

import (
	"context"
	"errors"
	"log"
	"mime/multipart"
	"os"
	"sync"
	"time"

	"github.com/ErfanAalam/MyFootFirst2-sub000/capture"
	"github.com/ErfanAalam/MyFootFirst2-sub000/services"
)

var (
	errNoPhoto       = errors.New("no photo uploaded")
	errUploadRunning = errors.New("scan upload in progress")
)

// scanSession is one capture session owned by a signed-in user
type scanSession struct {
	id         string
	userID     string
	retailerID string
	customerID string
	dir        string
	session    *capture.Session

	mu        sync.Mutex
	lastSeen  time.Time
	uploading bool
	progress  float64
}

func (s *scanSession) setProgress(percent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = percent
}

func (s *scanSession) uploadState() (bool, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploading, s.progress
}

// beginUpload claims the session for an upload and returns its photos.
// Restart and close are refused until endUpload.
func (s *scanSession) beginUpload() ([]capture.CapturedImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploading {
		return nil, errUploadRunning
	}
	images, err := s.session.AcceptedImages()
	if err != nil {
		return nil, err
	}
	s.uploading = true
	s.progress = 0
	return images, nil
}

func (s *scanSession) endUpload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploading = false
}

// restart resets the capture session unless an upload holds it
func (s *scanSession) restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploading {
		return errUploadRunning
	}
	return s.session.Restart()
}

// stop closes the capture session unless an upload holds it
func (s *scanSession) stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploading {
		return errUploadRunning
	}
	s.session.Close()
	return nil
}

// stopIfIdle closes the capture session if it was last used before cutoff
// and no upload holds it
func (s *scanSession) stopIfIdle(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploading || !s.lastSeen.Before(cutoff) {
		return false
	}
	s.session.Close()
	return true
}

// close tears the session down and removes its local photos
func (s *scanSession) close() {
	s.session.Close()
	if err := os.RemoveAll(s.dir); err != nil {
		log.Printf("warning: failed to remove capture directory %s: %v", s.dir, err)
	}
}

// uploadCamera is the camera of a client that sends its photos over HTTP.
// Each capture request carries the photo and the device's camera state.
type uploadCamera struct {
	available bool
	photos    services.PhotoService
	file      *multipart.FileHeader
	dir       string
}

var _ capture.Camera = (*uploadCamera)(nil)

func (u *uploadCamera) Available() bool {
	return u.available
}

func (u *uploadCamera) TakePhoto(ctx context.Context) (string, error) {
	if u.file == nil {
		return "", errNoPhoto
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return u.photos.StorePhoto(u.file, u.dir)
}

// SessionRegistry keeps the live capture sessions in memory
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*scanSession
	now      func() time.Time
}

// NewSessionRegistry creates an empty registry
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*scanSession),
		now:      time.Now,
	}
}

func (r *SessionRegistry) add(s *scanSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.lastSeen = r.now()
	r.sessions[s.id] = s
}

// get returns the session if it exists and belongs to userID
func (r *SessionRegistry) get(id, userID string) (*scanSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || s.userID != userID {
		return nil, false
	}
	s.mu.Lock()
	s.lastSeen = r.now()
	s.mu.Unlock()
	return s, true
}

func (r *SessionRegistry) remove(id string) *scanSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	delete(r.sessions, id)
	return s
}

// Len returns the number of live sessions
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions that have been idle longer than maxIdle.
// Sessions with an upload running are left alone.
func (r *SessionRegistry) Sweep(maxIdle time.Duration) int {
	r.mu.Lock()
	cutoff := r.now().Add(-maxIdle)
	var stale []*scanSession
	for id, s := range r.sessions {
		if s.stopIfIdle(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		log.Printf("Closing idle capture session %s for customer %s", s.id, s.customerID)
		s.close()
	}
	return len(stale)
}

// RunSweeper sweeps idle sessions every interval until ctx is done
func (r *SessionRegistry) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(maxIdle)
		}
	}
}

// CloseAll closes every session, used on shutdown
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*scanSession)
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}
