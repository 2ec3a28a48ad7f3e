package controllers

import (
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ErfanAalam/MyFootFirst2-sub000/capture"
	"github.com/ErfanAalam/MyFootFirst2-sub000/metrics"
	"github.com/ErfanAalam/MyFootFirst2-sub000/middleware"
	"github.com/ErfanAalam/MyFootFirst2-sub000/services"
	"github.com/ErfanAalam/MyFootFirst2-sub000/utils"
)

// SessionControllerOptions holds the dependencies of the capture session endpoints
type SessionControllerOptions struct {
	Registry   *SessionRegistry
	Validator  capture.SheetValidator
	Photos     services.PhotoService
	Pipeline   *services.UploadPipeline
	Verifier   services.TokenVerifier
	Thresholds capture.Thresholds
	CaptureDir string
}

// SessionController serves the guided capture flow over HTTP
type SessionController struct {
	registry   *SessionRegistry
	validator  capture.SheetValidator
	photos     services.PhotoService
	pipeline   *services.UploadPipeline
	verifier   services.TokenVerifier
	thresholds capture.Thresholds
	captureDir string
}

// NewSessionController creates a SessionController
func NewSessionController(opts SessionControllerOptions) *SessionController {
	registry := opts.Registry
	if registry == nil {
		registry = NewSessionRegistry()
	}
	captureDir := opts.CaptureDir
	if captureDir == "" {
		captureDir = utils.CaptureDir
	}
	return &SessionController{
		registry:   registry,
		validator:  opts.Validator,
		photos:     opts.Photos,
		pipeline:   opts.Pipeline,
		verifier:   opts.Verifier,
		thresholds: opts.Thresholds,
		captureDir: captureDir,
	}
}

// RegisterRoutes mounts the session endpoints under rg
func (sc *SessionController) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/scan-sessions")
	sessions.POST("", sc.StartSession)
	sessions.GET("/:id", sc.GetSession)
	sessions.DELETE("/:id", sc.CloseSession)
	sessions.POST("/:id/orientation", sc.ReportOrientation)
	sessions.POST("/:id/capture", sc.Capture)
	sessions.POST("/:id/save", sc.SavePhoto)
	sessions.POST("/:id/retake", sc.Retake)
	sessions.POST("/:id/restart", sc.Restart)
	sessions.POST("/:id/upload", sc.Upload)
	sessions.GET("/:id/photos/:filename", sc.GetSessionPhoto)
}

// StartSessionRequest represents the request body for starting a capture session
type StartSessionRequest struct {
	CustomerID      string `json:"customer_id" binding:"required"`
	CameraAvailable *bool  `json:"camera_available"`
}

// OrientationRequest is one accelerometer sample in m/s²
type OrientationRequest struct {
	X *float64 `json:"x" binding:"required"`
	Y *float64 `json:"y" binding:"required"`
	Z *float64 `json:"z" binding:"required"`
}

type photoResponse struct {
	Foot capture.Foot `json:"foot"`
	View capture.View `json:"view"`
	URL  string       `json:"url"`
}

type sessionResponse struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	capture.Snapshot
	PreviewURL     string          `json:"preview_url,omitempty"`
	Photos         []photoResponse `json:"photos"`
	Uploading      bool            `json:"uploading"`
	UploadProgress float64         `json:"upload_progress"`
}

// StartSession handles POST /api/v1/scan-sessions - starts a guided capture for a customer
func (sc *SessionController) StartSession(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return
	}
	retailerID, _ := middleware.GetRetailerID(c)

	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	available := req.CameraAvailable == nil || *req.CameraAvailable
	id := uuid.NewString()
	sess := &scanSession{
		id:         id,
		userID:     userID,
		retailerID: retailerID,
		customerID: req.CustomerID,
		dir:        filepath.Join(sc.captureDir, id),
	}

	session, err := capture.NewSession(capture.SessionOptions{
		Camera:     &uploadCamera{available: available},
		Validator:  sc.validator,
		Thresholds: sc.thresholds,
		Discard:    sc.photos.DiscardPhoto,
	})
	if err != nil {
		if errors.Is(err, capture.ErrCameraUnavailable) {
			session.Close()
			respondCaptureError(c, err)
			return
		}
		log.Printf("Failed to start capture session: %v", err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start scan session")
		return
	}
	sess.session = session
	sc.registry.add(sess)
	metrics.IncSessionsStarted()

	log.Printf("Capture session %s started for customer %s by user %s", id, req.CustomerID, userID)
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    sc.describe(sess),
	})
}

// GetSession handles GET /api/v1/scan-sessions/:id
func (sc *SessionController) GetSession(c *gin.Context) {
	sess, ok := sc.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    sc.describe(sess),
	})
}

// CloseSession handles DELETE /api/v1/scan-sessions/:id - abandons the session and its photos
func (sc *SessionController) CloseSession(c *gin.Context) {
	sess, ok := sc.lookup(c)
	if !ok {
		return
	}
	if err := sess.stop(); err != nil {
		respondCaptureError(c, err)
		return
	}

	sc.registry.remove(sess.id)
	sess.close()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Scan session closed",
	})
}

// ReportOrientation handles POST /api/v1/scan-sessions/:id/orientation - feeds one accelerometer sample
func (sc *SessionController) ReportOrientation(c *gin.Context) {
	sess, ok := sc.lookup(c)
	if !ok {
		return
	}

	var req OrientationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	result, err := sess.session.Observe(capture.Sample{
		X:         *req.X,
		Y:         *req.Y,
		Z:         *req.Z,
		Timestamp: time.Now(),
	})
	if err != nil {
		respondCaptureError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"step":      sess.session.Snapshot().Step,
			"alignment": result,
		},
	})
}

// Capture handles POST /api/v1/scan-sessions/:id/capture - takes the uploaded photo and validates it
func (sc *SessionController) Capture(c *gin.Context) {
	sess, ok := sc.lookup(c)
	if !ok {
		return
	}

	available := c.PostForm("camera_available") != "false"
	file, err := c.FormFile("image")
	if err != nil && available {
		respondError(c, http.StatusBadRequest, "MISSING_IMAGE", "A photo is required in the 'image' field")
		return
	}

	camera := &uploadCamera{
		available: available,
		photos:    sc.photos,
		file:      file,
		dir:       sess.dir,
	}
	result, err := sess.session.CaptureWith(c.Request.Context(), camera)
	if err != nil {
		switch {
		case errors.Is(err, capture.ErrNoSheetDetected):
			metrics.IncCaptureRejected()
		case errors.Is(err, capture.ErrValidationService):
			metrics.IncDetectorError()
			log.Printf("Sheet validation failed for session %s: %v", sess.id, err)
		}
		respondCaptureError(c, err)
		return
	}
	metrics.IncCaptureAccepted()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"step":        result.Step,
			"preview_url": utils.GetPhotoURL(sess.id, filepath.Base(result.PhotoPath)),
			"session":     sc.describe(sess),
		},
	})
}

// SavePhoto handles POST /api/v1/scan-sessions/:id/save - keeps the previewed photo
func (sc *SessionController) SavePhoto(c *gin.Context) {
	sess, ok := sc.lookup(c)
	if !ok {
		return
	}

	img, err := sess.session.Save()
	if err != nil {
		respondCaptureError(c, err)
		return
	}
	metrics.IncPhotoSaved()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"image":   sc.photo(sess, img),
			"session": sc.describe(sess),
		},
	})
}

// Retake handles POST /api/v1/scan-sessions/:id/retake - discards the previewed photo
func (sc *SessionController) Retake(c *gin.Context) {
	sess, ok := sc.lookup(c)
	if !ok {
		return
	}
	if err := sess.session.Retake(); err != nil {
		respondCaptureError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    sc.describe(sess),
	})
}

// Restart handles POST /api/v1/scan-sessions/:id/restart - discards every photo and starts over
func (sc *SessionController) Restart(c *gin.Context) {
	sess, ok := sc.lookup(c)
	if !ok {
		return
	}
	if err := sess.restart(); err != nil {
		respondCaptureError(c, err)
		return
	}
	metrics.IncSessionsRestarted()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    sc.describe(sess),
	})
}

// Upload handles POST /api/v1/scan-sessions/:id/upload - stores the six photos and the scan record
func (sc *SessionController) Upload(c *gin.Context) {
	sess, ok := sc.lookup(c)
	if !ok {
		return
	}

	images, err := sess.beginUpload()
	if err != nil {
		respondCaptureError(c, err)
		return
	}

	accessToken, _ := middleware.GetAccessToken(c)
	identity := &services.RequestIdentity{
		UserID:      sess.userID,
		RetailerID:  sess.retailerID,
		AccessToken: accessToken,
		Verifier:    sc.verifier,
	}

	result, err := sc.pipeline.Run(c.Request.Context(), services.UploadRequest{
		Identity:   identity,
		RetailerID: sess.retailerID,
		CustomerID: sess.customerID,
		Images:     images,
		OnProgress: sess.setProgress,
	})
	sess.endUpload()
	if err != nil {
		respondUploadError(c, err)
		return
	}

	sc.registry.remove(sess.id)
	sess.close()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"scan":   result.Scan,
			"next":   result.Next,
			"purged": result.Purged,
		},
	})
}

// lookup finds the session named in the path, writing a 404 when it is missing or not the caller's
func (sc *SessionController) lookup(c *gin.Context) (*scanSession, bool) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return nil, false
	}

	sess, ok := sc.registry.get(c.Param("id"), userID)
	if !ok {
		respondError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Scan session not found")
		return nil, false
	}
	return sess, true
}

func (sc *SessionController) describe(sess *scanSession) sessionResponse {
	snap := sess.session.Snapshot()
	uploading, progress := sess.uploadState()

	resp := sessionResponse{
		ID:             sess.id,
		CustomerID:     sess.customerID,
		Snapshot:       snap,
		Photos:         make([]photoResponse, 0, len(snap.Images)),
		Uploading:      uploading,
		UploadProgress: progress,
	}
	if snap.PreviewPath != "" {
		resp.PreviewURL = utils.GetPhotoURL(sess.id, filepath.Base(snap.PreviewPath))
	}
	for _, img := range snap.Images {
		resp.Photos = append(resp.Photos, sc.photo(sess, img))
	}
	return resp
}

func (sc *SessionController) photo(sess *scanSession, img capture.CapturedImage) photoResponse {
	return photoResponse{
		Foot: img.Foot,
		View: img.View,
		URL:  utils.GetPhotoURL(sess.id, filepath.Base(img.LocalPath)),
	}
}
