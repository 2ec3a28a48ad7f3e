package controllers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ErfanAalam/MyFootFirst2-sub000/capture"
	"github.com/ErfanAalam/MyFootFirst2-sub000/services"
	"github.com/ErfanAalam/MyFootFirst2-sub000/utils"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

type captureFailure struct {
	err    error
	status int
	code   string
}

var captureFailures = []captureFailure{
	{capture.ErrSessionClosed, http.StatusGone, "SESSION_CLOSED"},
	{capture.ErrCameraUnavailable, http.StatusConflict, "CAMERA_UNAVAILABLE"},
	{capture.ErrNotAligned, http.StatusConflict, "NOT_ALIGNED"},
	{capture.ErrCaptureInFlight, http.StatusConflict, "CAPTURE_IN_PROGRESS"},
	{capture.ErrSessionComplete, http.StatusConflict, "SESSION_COMPLETE"},
	{capture.ErrSessionIncomplete, http.StatusConflict, "SESSION_INCOMPLETE"},
	{capture.ErrSessionReset, http.StatusConflict, "SESSION_RESET"},
	{capture.ErrInvalidState, http.StatusConflict, "INVALID_STATE"},
	{capture.ErrNoSheetDetected, http.StatusUnprocessableEntity, "NO_SHEET_DETECTED"},
	{capture.ErrValidationService, http.StatusBadGateway, "VALIDATION_SERVICE_ERROR"},
}

// respondCaptureError maps a capture session error to a response
func respondCaptureError(c *gin.Context, err error) {
	var fileErr *utils.FileUploadError
	if errors.As(err, &fileErr) {
		respondError(c, http.StatusBadRequest, fileErr.Code, fileErr.Message)
		return
	}

	if errors.Is(err, errUploadRunning) {
		respondError(c, http.StatusConflict, services.CodeUploadInProgress, "The scan is being uploaded")
		return
	}

	for _, f := range captureFailures {
		if errors.Is(err, f.err) {
			respondError(c, f.status, f.code, capture.UserMessage(err))
			return
		}
	}

	log.Printf("Capture session error: %v", err)
	respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", capture.UserMessage(err))
}

var uploadStatus = map[string]int{
	services.CodeAuthRequired:             http.StatusUnauthorized,
	services.CodeAuthError:                http.StatusUnauthorized,
	services.CodeRetailerRequired:         http.StatusForbidden,
	services.CodeCustomerRequired:         http.StatusBadRequest,
	services.CodeNoImages:                 http.StatusBadRequest,
	services.CodeInvalidImages:            http.StatusUnprocessableEntity,
	services.CodeStoragePermissionDenied:  http.StatusForbidden,
	services.CodeStorageUnauthorized:      http.StatusUnauthorized,
	services.CodeStorageCanceled:          http.StatusRequestTimeout,
	services.CodeStorageNetworkError:      http.StatusBadGateway,
	services.CodeMetadataPermissionDenied: http.StatusForbidden,
	services.CodeMetadataWriteFailed:      http.StatusInternalServerError,
	services.CodeUploadInProgress:         http.StatusConflict,
}

// respondUploadError maps an upload pipeline error to a response
func respondUploadError(c *gin.Context, err error) {
	var uploadErr *services.UploadError
	if !errors.As(err, &uploadErr) {
		log.Printf("Scan upload error: %v", err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to upload scan")
		return
	}

	status, ok := uploadStatus[uploadErr.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	respondError(c, status, uploadErr.Code, uploadErr.Message)
}
