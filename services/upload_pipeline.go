package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ErfanAalam/MyFootFirst2-sub000/capture"
	appConfig "github.com/ErfanAalam/MyFootFirst2-sub000/config"
	"github.com/ErfanAalam/MyFootFirst2-sub000/metrics"
	"github.com/ErfanAalam/MyFootFirst2-sub000/models"
)

// Upload failure codes
const (
	CodeAuthRequired             = "AUTH_REQUIRED"
	CodeRetailerRequired         = "RETAILER_REQUIRED"
	CodeCustomerRequired         = "CUSTOMER_REQUIRED"
	CodeNoImages                 = "NO_IMAGES"
	CodeInvalidImages            = "INVALID_IMAGES"
	CodeAuthError                = "AUTH_ERROR"
	CodeStoragePermissionDenied  = "STORAGE_PERMISSION_DENIED"
	CodeStorageUnauthorized      = "STORAGE_UNAUTHORIZED"
	CodeStorageCanceled          = "STORAGE_CANCELED"
	CodeStorageNetworkError      = "STORAGE_NETWORK_ERROR"
	CodeMetadataPermissionDenied = "METADATA_PERMISSION_DENIED"
	CodeMetadataWriteFailed      = "METADATA_WRITE_FAILED"
	CodeUploadInProgress         = "UPLOAD_IN_PROGRESS"
)

var uploadMessages = map[string]string{
	CodeAuthRequired:             "Please sign in again before uploading the scan.",
	CodeRetailerRequired:         "No retailer is linked to your account.",
	CodeCustomerRequired:         "Select a customer before uploading the scan.",
	CodeNoImages:                 "There are no photos to upload.",
	CodeInvalidImages:            "Some photos are missing or duplicated. Please restart the scan.",
	CodeAuthError:                "Your session has expired. Please sign in again.",
	CodeStoragePermissionDenied:  "You do not have permission to upload scans.",
	CodeStorageUnauthorized:      "Storage rejected the upload. Please sign in again.",
	CodeStorageCanceled:          "The upload was cancelled.",
	CodeStorageNetworkError:      "Network error while uploading. Please try again.",
	CodeMetadataPermissionDenied: "You do not have permission to save this scan.",
	CodeMetadataWriteFailed:      "The photos were uploaded but the scan could not be saved. Please try again.",
	CodeUploadInProgress:         "An upload for this customer is already running.",
}

const photoContentType = "image/jpeg"

// UploadError is a failed upload, with a code the client can act on
type UploadError struct {
	Code    string
	Message string
	Err     error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

func newUploadError(code string, err error) *UploadError {
	return &UploadError{Code: code, Message: uploadMessages[code], Err: err}
}

// UploadRequest is one upload of a completed capture session
type UploadRequest struct {
	Identity   Identity
	RetailerID string
	CustomerID string
	Images     []capture.CapturedImage
	OnProgress ProgressFunc
}

// UploadResult is what a successful upload produced
type UploadResult struct {
	Scan   *models.ScanMetadata
	Next   *Handoff
	Purged int
}

// UploadPipelineOptions configures an UploadPipeline
type UploadPipelineOptions struct {
	Blobs      BlobStore
	Scans      ScanStore
	Next       NextStep
	PurgeOrder string
	Now        func() time.Time
}

// UploadPipeline moves a session's photos into blob storage and records the scan
type UploadPipeline struct {
	blobs      BlobStore
	scans      ScanStore
	next       NextStep
	purgeOrder string
	now        func() time.Time

	mu      sync.Mutex
	running map[string]struct{}
}

// NewUploadPipeline creates a pipeline. PurgeOrder defaults to before_upload.
func NewUploadPipeline(opts UploadPipelineOptions) *UploadPipeline {
	p := &UploadPipeline{
		blobs:      opts.Blobs,
		scans:      opts.Scans,
		next:       opts.Next,
		purgeOrder: opts.PurgeOrder,
		now:        opts.Now,
		running:    make(map[string]struct{}),
	}
	if p.purgeOrder == "" {
		p.purgeOrder = appConfig.PurgeBeforeUpload
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Run uploads the images and commits the scan metadata. Precondition
// failures return before any storage or database call.
func (p *UploadPipeline) Run(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if err := p.checkRequest(ctx, req); err != nil {
		metrics.IncUploadFailed(err.Code)
		return nil, err
	}

	lockKey := req.RetailerID + "/" + req.CustomerID
	if !p.acquire(lockKey) {
		metrics.IncUploadFailed(CodeUploadInProgress)
		return nil, newUploadError(CodeUploadInProgress, nil)
	}
	defer p.release(lockKey)

	metrics.IncUploadStarted()
	start := time.Now()

	result, err := p.run(ctx, req)
	metrics.ObserveUploadDurationMs(float64(time.Since(start).Milliseconds()))
	if err != nil {
		log.Printf("Scan upload failed for customer %s (retailer %s): %v", req.CustomerID, req.RetailerID, err)
		metrics.IncUploadFailed(err.Code)
		return nil, err
	}

	metrics.IncUploadCompleted()
	log.Printf("Scan upload completed for customer %s (retailer %s): %d photos, %d superseded photos deleted",
		req.CustomerID, req.RetailerID, len(result.Scan.Images), result.Purged)
	return result, nil
}

// acquire marks the customer's upload as running. It reports false when
// another run for the same key has not finished.
func (p *UploadPipeline) acquire(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.running[key]; busy {
		return false
	}
	p.running[key] = struct{}{}
	return true
}

func (p *UploadPipeline) release(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.running, key)
}

func (p *UploadPipeline) checkRequest(ctx context.Context, req UploadRequest) *UploadError {
	if req.Identity == nil {
		return newUploadError(CodeAuthRequired, ErrNotAuthenticated)
	}
	if _, err := req.Identity.CurrentUser(ctx); err != nil {
		return newUploadError(CodeAuthRequired, err)
	}
	if strings.TrimSpace(req.RetailerID) == "" {
		return newUploadError(CodeRetailerRequired, nil)
	}
	if strings.TrimSpace(req.CustomerID) == "" {
		return newUploadError(CodeCustomerRequired, nil)
	}
	if len(req.Images) == 0 {
		return newUploadError(CodeNoImages, nil)
	}

	seen := make(map[capture.Step]bool, len(req.Images))
	for _, img := range req.Images {
		step := img.Step()
		if !step.Valid() {
			return newUploadError(CodeInvalidImages, fmt.Errorf("invalid step %s", step))
		}
		if seen[step] {
			return newUploadError(CodeInvalidImages, fmt.Errorf("duplicate photo for %s", step))
		}
		seen[step] = true

		if _, err := os.Stat(img.LocalPath); err != nil {
			return newUploadError(CodeInvalidImages, fmt.Errorf("photo for %s: %w", step, err))
		}
	}
	return nil
}

func (p *UploadPipeline) run(ctx context.Context, req UploadRequest) (*UploadResult, *UploadError) {
	if err := req.Identity.RefreshToken(ctx); err != nil {
		return nil, newUploadError(CodeAuthError, err)
	}

	if err := p.probe(ctx, req.CustomerID); err != nil {
		return nil, newUploadError(CodeStoragePermissionDenied, err)
	}

	previous := p.previousImages(ctx, req.RetailerID, req.CustomerID)

	result := &UploadResult{}
	if p.purgeOrder == appConfig.PurgeBeforeUpload {
		result.Purged = p.purge(ctx, req.CustomerID, previous, nil)
	}

	timestamp := p.now().UnixMilli()
	records, err := p.uploadAll(ctx, req, timestamp)
	if err != nil {
		return nil, err
	}

	scan := &models.ScanMetadata{
		RetailerID: req.RetailerID,
		CustomerID: req.CustomerID,
		Status:     models.ScanStatusCompleted,
		Images:     records,
		UpdatedAt:  time.UnixMilli(timestamp),
	}
	if err := p.scans.MergeScan(ctx, scan); err != nil {
		if errors.Is(err, ErrMetadataPermission) {
			return nil, newUploadError(CodeMetadataPermissionDenied, err)
		}
		return nil, newUploadError(CodeMetadataWriteFailed, err)
	}
	result.Scan = scan

	if p.purgeOrder == appConfig.PurgeAfterCommit {
		keep := make(map[string]bool, len(records))
		for _, r := range records {
			keep[r.ObjectKey(req.CustomerID)] = true
		}
		result.Purged = p.purge(ctx, req.CustomerID, previous, keep)
	}

	if p.next != nil {
		handoff, err := p.next.Proceed(ctx, req.CustomerID, req.RetailerID)
		if err != nil {
			log.Printf("warning: next step after scan upload failed for customer %s: %v", req.CustomerID, err)
		} else {
			result.Next = handoff
		}
	}

	return result, nil
}

// probe checks that the caller may write under the customer's prefix
func (p *UploadPipeline) probe(ctx context.Context, customerID string) error {
	key := fmt.Sprintf("%s/.probe_%d", customerID, p.now().UnixMilli())

	if err := p.blobs.Put(ctx, key, strings.NewReader("probe"), int64(len("probe")), "text/plain"); err != nil {
		return fmt.Errorf("probe write: %w", err)
	}
	if err := p.blobs.Delete(ctx, key); err != nil {
		return fmt.Errorf("probe delete: %w", err)
	}
	return nil
}

// previousImages returns the images of the stored scan, or nil if there is
// none or it cannot be read
func (p *UploadPipeline) previousImages(ctx context.Context, retailerID, customerID string) []models.ScanImage {
	existing, err := p.scans.GetScan(ctx, retailerID, customerID)
	if err != nil {
		if !errors.Is(err, ErrScanNotFound) {
			log.Printf("warning: could not read previous scan for customer %s: %v", customerID, err)
		}
		return nil
	}
	return existing.Images
}

// purge deletes the photos of a superseded scan. Failures are logged and skipped.
func (p *UploadPipeline) purge(ctx context.Context, customerID string, images []models.ScanImage, keep map[string]bool) int {
	deleted := 0
	for _, img := range images {
		key := img.ObjectKey(customerID)
		if keep[key] {
			continue
		}
		if err := p.blobs.Delete(ctx, key); err != nil {
			log.Printf("warning: failed to delete superseded photo %s: %v", key, err)
			metrics.IncPurgeFailure()
			continue
		}
		deleted++
	}
	metrics.AddBlobsPurged(deleted)
	return deleted
}

func (p *UploadPipeline) uploadAll(ctx context.Context, req UploadRequest, timestamp int64) ([]models.ScanImage, *UploadError) {
	tracker := newProgressTracker(len(req.Images), req.OnProgress)
	records := make([]models.ScanImage, len(req.Images))

	g, gctx := errgroup.WithContext(ctx)
	for i, img := range req.Images {
		g.Go(func() error {
			record, err := p.uploadOne(gctx, req.CustomerID, img, timestamp, i, tracker)
			if err != nil {
				return err
			}
			records[i] = record
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var uploadErr *UploadError
		if errors.As(err, &uploadErr) {
			return nil, uploadErr
		}
		return nil, classifyStorageError(ctx, err)
	}

	sort.SliceStable(records, func(a, b int) bool {
		return stepIndex(records[a]) < stepIndex(records[b])
	})
	return records, nil
}

func (p *UploadPipeline) uploadOne(ctx context.Context, customerID string, img capture.CapturedImage, timestamp int64, index int, tracker *progressTracker) (models.ScanImage, error) {
	key := models.ScanObjectKey(customerID, timestamp, string(img.Foot), string(img.View))

	file, err := os.Open(img.LocalPath)
	if err != nil {
		return models.ScanImage{}, newUploadError(CodeInvalidImages, fmt.Errorf("open %s: %w", img.LocalPath, err))
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return models.ScanImage{}, newUploadError(CodeInvalidImages, fmt.Errorf("stat %s: %w", img.LocalPath, err))
	}

	tracker.update(index, 0, info.Size())
	body := &progressReader{r: file, total: info.Size(), index: index, tracker: tracker}

	if err := p.blobs.Put(ctx, key, body, info.Size(), photoContentType); err != nil {
		return models.ScanImage{}, err
	}
	tracker.update(index, info.Size(), info.Size())

	url, err := p.blobs.URL(ctx, key)
	if err != nil {
		return models.ScanImage{}, err
	}

	return models.ScanImage{
		Foot:      string(img.Foot),
		View:      string(img.View),
		RemoteURL: url,
		Timestamp: timestamp,
	}, nil
}

// classifyStorageError maps a blob store failure onto an upload error code
func classifyStorageError(ctx context.Context, err error) *UploadError {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		return newUploadError(CodeStorageCanceled, err)
	case errors.Is(err, ErrStorageUnauthorized):
		return newUploadError(CodeStorageUnauthorized, err)
	default:
		return newUploadError(CodeStorageNetworkError, err)
	}
}

func stepIndex(img models.ScanImage) int {
	return capture.Step{Foot: capture.Foot(img.Foot), View: capture.View(img.View)}.Index()
}
