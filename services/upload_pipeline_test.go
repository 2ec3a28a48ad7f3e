package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErfanAalam/MyFootFirst2-sub000/capture"
	appConfig "github.com/ErfanAalam/MyFootFirst2-sub000/config"
	"github.com/ErfanAalam/MyFootFirst2-sub000/models"
)

// spyScanStore wraps a ScanStore and counts calls
type spyScanStore struct {
	inner    ScanStore
	gets     atomic.Int32
	merges   atomic.Int32
	mergeErr error
}

func (s *spyScanStore) GetScan(ctx context.Context, retailerID, customerID string) (*models.ScanMetadata, error) {
	s.gets.Add(1)
	return s.inner.GetScan(ctx, retailerID, customerID)
}

func (s *spyScanStore) MergeScan(ctx context.Context, scan *models.ScanMetadata) error {
	s.merges.Add(1)
	if s.mergeErr != nil {
		return s.mergeErr
	}
	return s.inner.MergeScan(ctx, scan)
}

// stepClock hands out strictly increasing times, one second apart
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type pipelineFixture struct {
	blobs    *MockBlobStore
	scans    *spyScanStore
	identity *StaticIdentity
	pipeline *UploadPipeline
}

func newPipelineFixture(t *testing.T, purgeOrder string) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		blobs:    NewMockBlobStore(),
		scans:    &spyScanStore{inner: newTestScanStore(t)},
		identity: &StaticIdentity{User: &User{ID: "auth0|staff", RetailerID: "R1"}},
	}
	clock := &stepClock{now: time.UnixMilli(1_700_000_000_000)}
	f.pipeline = NewUploadPipeline(UploadPipelineOptions{
		Blobs:      f.blobs,
		Scans:      f.scans,
		Next:       &QuestionnaireHandoff{BaseURL: "/insoles/questionnaire"},
		PurgeOrder: purgeOrder,
		Now:        clock.Now,
	})
	return f
}

// writeSessionPhotos creates the six photos of a completed session
func writeSessionPhotos(t *testing.T) []capture.CapturedImage {
	t.Helper()
	dir := t.TempDir()

	var images []capture.CapturedImage
	for i, step := range capture.Steps() {
		path := filepath.Join(dir, fmt.Sprintf("photo_%d.jpg", i))
		require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("j", 512+i)), 0644))
		images = append(images, capture.CapturedImage{LocalPath: path, Foot: step.Foot, View: step.View})
	}
	return images
}

func (f *pipelineFixture) request(images []capture.CapturedImage) UploadRequest {
	return UploadRequest{
		Identity:   f.identity,
		RetailerID: "R1",
		CustomerID: "C123",
		Images:     images,
	}
}

func requireUploadCode(t *testing.T, err error, code string) {
	t.Helper()
	var uploadErr *UploadError
	require.True(t, errors.As(err, &uploadErr), "expected *UploadError, got %v", err)
	assert.Equal(t, code, uploadErr.Code)
	assert.NotEmpty(t, uploadErr.Message)
}

func TestUploadPipeline_DoubleRunReplacesScan(t *testing.T) {
	f := newPipelineFixture(t, appConfig.PurgeBeforeUpload)
	ctx := context.Background()
	images := writeSessionPhotos(t)

	first, err := f.pipeline.Run(ctx, f.request(images))
	require.NoError(t, err)
	require.Len(t, first.Scan.Images, 6)
	assert.Equal(t, 0, first.Purged)
	assert.Equal(t, models.ScanStatusCompleted, first.Scan.Status)

	firstKeys := f.blobs.KeysWithPrefix("C123/")
	require.Len(t, firstKeys, 6, "probe objects must not remain")

	second, err := f.pipeline.Run(ctx, f.request(images))
	require.NoError(t, err)
	assert.Equal(t, 6, second.Purged)

	for _, key := range firstKeys {
		assert.False(t, f.blobs.FileExists(key), "superseded photo %s must be deleted", key)
	}
	assert.Len(t, f.blobs.KeysWithPrefix("C123/"), 6)

	stored, err := f.scans.GetScan(ctx, "R1", "C123")
	require.NoError(t, err)
	require.Len(t, stored.Images, 6)
	for i, img := range stored.Images {
		step := capture.Steps()[i]
		assert.Equal(t, string(step.Foot), img.Foot)
		assert.Equal(t, string(step.View), img.View)
		assert.Equal(t, second.Scan.Images[0].Timestamp, img.Timestamp)
		assert.True(t, f.blobs.FileExists(img.ObjectKey("C123")))
	}

	require.NotNil(t, second.Next)
	assert.Contains(t, second.Next.URL, "customer_id=C123")
	assert.Equal(t, 2, f.identity.Refreshes)
}

func TestUploadPipeline_KeyFormat(t *testing.T) {
	f := newPipelineFixture(t, appConfig.PurgeBeforeUpload)
	result, err := f.pipeline.Run(context.Background(), f.request(writeSessionPhotos(t)))
	require.NoError(t, err)

	ts := result.Scan.Images[0].Timestamp
	assert.True(t, f.blobs.FileExists(fmt.Sprintf("C123/%d_left_left.jpg", ts)))
	assert.True(t, f.blobs.FileExists(fmt.Sprintf("C123/%d_right_top.jpg", ts)))
	assert.Equal(t, "https://blobs.test/"+fmt.Sprintf("C123/%d_left_left.jpg", ts), result.Scan.Images[0].RemoteURL)
}

func TestUploadPipeline_PreconditionsHaveNoSideEffects(t *testing.T) {
	images := writeSessionPhotos(t)

	tests := []struct {
		name   string
		mutate func(f *pipelineFixture, req *UploadRequest)
		code   string
	}{
		{"no identity", func(f *pipelineFixture, req *UploadRequest) { req.Identity = nil }, CodeAuthRequired},
		{"signed out", func(f *pipelineFixture, req *UploadRequest) { f.identity.User = nil }, CodeAuthRequired},
		{"missing retailer", func(f *pipelineFixture, req *UploadRequest) { req.RetailerID = "" }, CodeRetailerRequired},
		{"missing customer", func(f *pipelineFixture, req *UploadRequest) { req.CustomerID = " " }, CodeCustomerRequired},
		{"no images", func(f *pipelineFixture, req *UploadRequest) { req.Images = nil }, CodeNoImages},
		{"duplicate step", func(f *pipelineFixture, req *UploadRequest) {
			req.Images = []capture.CapturedImage{images[0], images[0]}
		}, CodeInvalidImages},
		{"missing file", func(f *pipelineFixture, req *UploadRequest) {
			req.Images = []capture.CapturedImage{{LocalPath: "/nonexistent/photo.jpg", Foot: capture.FootLeft, View: capture.ViewLeft}}
		}, CodeInvalidImages},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t, appConfig.PurgeBeforeUpload)
			req := f.request(images)
			tt.mutate(f, &req)

			_, err := f.pipeline.Run(context.Background(), req)
			requireUploadCode(t, err, tt.code)

			assert.Empty(t, f.blobs.Calls(), "no storage calls")
			assert.Zero(t, f.scans.gets.Load(), "no store reads")
			assert.Zero(t, f.scans.merges.Load(), "no store writes")
			assert.Zero(t, f.identity.Refreshes)
		})
	}
}

func TestUploadPipeline_RefreshFailure(t *testing.T) {
	f := newPipelineFixture(t, appConfig.PurgeBeforeUpload)
	f.identity.RefreshErr = errors.New("token revoked")

	_, err := f.pipeline.Run(context.Background(), f.request(writeSessionPhotos(t)))
	requireUploadCode(t, err, CodeAuthError)
	assert.Empty(t, f.blobs.Calls())
}

func TestUploadPipeline_ProbeFailureTouchesNothing(t *testing.T) {
	f := newPipelineFixture(t, appConfig.PurgeBeforeUpload)
	ctx := context.Background()
	images := writeSessionPhotos(t)

	_, err := f.pipeline.Run(ctx, f.request(images))
	require.NoError(t, err)
	existing := f.blobs.KeysWithPrefix("C123/")
	f.blobs.Clear()
	for _, key := range existing {
		f.blobs.Seed(key, []byte("old"))
	}
	mergesBefore := f.scans.merges.Load()

	f.blobs.PutErr = func(key string) error {
		if strings.Contains(key, "/.probe_") {
			return fmt.Errorf("%w: rules denied write", ErrStorageUnauthorized)
		}
		return nil
	}

	_, err = f.pipeline.Run(ctx, f.request(images))
	requireUploadCode(t, err, CodeStoragePermissionDenied)

	calls := f.blobs.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "put", calls[0].Op)
	assert.Equal(t, existing, f.blobs.KeysWithPrefix("C123/"), "previous photos must survive")
	assert.Equal(t, mergesBefore, f.scans.merges.Load())
}

func TestUploadPipeline_StorageErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"unauthorized", fmt.Errorf("%w: 403", ErrStorageUnauthorized), CodeStorageUnauthorized},
		{"canceled", context.Canceled, CodeStorageCanceled},
		{"network", errors.New("connection reset by peer"), CodeStorageNetworkError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t, appConfig.PurgeBeforeUpload)
			f.blobs.PutErr = func(key string) error {
				if strings.HasSuffix(key, "_right_top.jpg") {
					return tt.err
				}
				return nil
			}

			_, err := f.pipeline.Run(context.Background(), f.request(writeSessionPhotos(t)))
			requireUploadCode(t, err, tt.code)
			assert.Zero(t, f.scans.merges.Load(), "metadata is only written after every upload succeeded")
		})
	}
}

func TestUploadPipeline_MetadataErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"permission", fmt.Errorf("%w: insufficient privilege", ErrMetadataPermission), CodeMetadataPermissionDenied},
		{"write", errors.New("database is locked"), CodeMetadataWriteFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t, appConfig.PurgeBeforeUpload)
			f.scans.mergeErr = tt.err

			_, err := f.pipeline.Run(context.Background(), f.request(writeSessionPhotos(t)))
			requireUploadCode(t, err, tt.code)
		})
	}
}

func TestUploadPipeline_AfterCommitPurgesLast(t *testing.T) {
	f := newPipelineFixture(t, appConfig.PurgeAfterCommit)
	ctx := context.Background()
	images := writeSessionPhotos(t)

	_, err := f.pipeline.Run(ctx, f.request(images))
	require.NoError(t, err)
	oldKeys := f.blobs.KeysWithPrefix("C123/")
	f.blobs.Clear()
	for _, key := range oldKeys {
		f.blobs.Seed(key, []byte("old"))
	}

	result, err := f.pipeline.Run(ctx, f.request(images))
	require.NoError(t, err)
	assert.Equal(t, 6, result.Purged)

	calls := f.blobs.Calls()
	lastPut := -1
	firstOldDelete := len(calls)
	for i, call := range calls {
		if call.Op == "put" {
			lastPut = i
		}
		if call.Op == "delete" && !strings.Contains(call.Key, "/.probe_") && i < firstOldDelete {
			firstOldDelete = i
		}
	}
	assert.Less(t, lastPut, firstOldDelete, "superseded photos are deleted only after the new ones are stored")

	for _, key := range oldKeys {
		assert.False(t, f.blobs.FileExists(key))
	}
	assert.Len(t, f.blobs.KeysWithPrefix("C123/"), 6)
}

func TestUploadPipeline_PurgeFailuresAreIgnored(t *testing.T) {
	f := newPipelineFixture(t, appConfig.PurgeBeforeUpload)
	ctx := context.Background()
	images := writeSessionPhotos(t)

	_, err := f.pipeline.Run(ctx, f.request(images))
	require.NoError(t, err)

	f.blobs.DeleteErr = func(key string) error {
		if strings.Contains(key, "/.probe_") {
			return nil
		}
		return errors.New("delete failed")
	}

	result, err := f.pipeline.Run(ctx, f.request(images))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Purged)
	assert.Len(t, result.Scan.Images, 6)
}

func TestUploadPipeline_RejectsConcurrentRunForSameCustomer(t *testing.T) {
	f := newPipelineFixture(t, appConfig.PurgeBeforeUpload)
	images := writeSessionPhotos(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var blocked atomic.Bool
	f.blobs.PutErr = func(key string) error {
		if strings.HasPrefix(key, "C123/.probe_") && blocked.CompareAndSwap(false, true) {
			close(entered)
			<-release
		}
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.pipeline.Run(context.Background(), f.request(images))
		done <- err
	}()
	<-entered

	_, err := f.pipeline.Run(context.Background(), f.request(images))
	requireUploadCode(t, err, CodeUploadInProgress)

	// another customer is not blocked
	other := f.request(images)
	other.CustomerID = "C456"
	_, err = f.pipeline.Run(context.Background(), other)
	require.NoError(t, err)

	close(release)
	require.NoError(t, <-done)

	// the lock is released once the first run finishes
	_, err = f.pipeline.Run(context.Background(), f.request(images))
	require.NoError(t, err)
}

func TestUploadPipeline_FailedRunReleasesCustomer(t *testing.T) {
	f := newPipelineFixture(t, appConfig.PurgeBeforeUpload)
	images := writeSessionPhotos(t)

	f.blobs.PutErr = func(key string) error { return ErrStorageUnauthorized }
	_, err := f.pipeline.Run(context.Background(), f.request(images))
	requireUploadCode(t, err, CodeStoragePermissionDenied)

	f.blobs.PutErr = nil
	_, err = f.pipeline.Run(context.Background(), f.request(images))
	require.NoError(t, err)
}

func TestUploadPipeline_ReportsProgress(t *testing.T) {
	f := newPipelineFixture(t, appConfig.PurgeBeforeUpload)
	log := &progressLog{}

	req := f.request(writeSessionPhotos(t))
	req.OnProgress = log.record

	_, err := f.pipeline.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 100.0, log.last())

	log.mu.Lock()
	defer log.mu.Unlock()
	for _, v := range log.values {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestUploadError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := newUploadError(CodeStorageNetworkError, cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), CodeStorageNetworkError)
	assert.Equal(t, uploadMessages[CodeStorageNetworkError], err.Message)
}
