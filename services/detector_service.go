package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ErfanAalam/MyFootFirst2-sub000/capture"
)

// DetectSheetPath is the detector endpoint, relative to its base URL
const DetectSheetPath = "/detect-sheet"

// DetectorError is a failure to get a verdict from the sheet detector.
// It is always retryable and is never treated as an acceptance.
type DetectorError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *DetectorError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("sheet detector returned status %d: %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("sheet detector: %s: %v", e.Message, e.Err)
	}
	return "sheet detector: " + e.Message
}

func (e *DetectorError) Unwrap() error {
	return e.Err
}

// detectSheetResponse is the detector's JSON body. The flag is a pointer so a
// missing field is reported as malformed instead of silently reading false.
type detectSheetResponse struct {
	A4Detected *bool `json:"a4_detected"`
}

// SheetDetector is the client for the remote A4 reference-sheet detector
type SheetDetector struct {
	baseURL    string
	httpClient *http.Client
}

var _ capture.SheetValidator = (*SheetDetector)(nil)

// NewSheetDetector creates a detector client. A zero timeout means the request
// is bounded only by the caller's context.
func NewSheetDetector(baseURL string, timeout time.Duration) *SheetDetector {
	return &SheetDetector{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Validate uploads the photo and reports whether the reference sheet is visible
func (d *SheetDetector) Validate(ctx context.Context, photoPath string) (bool, error) {
	body, contentType, err := buildDetectBody(photoPath)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+DetectSheetPath, body)
	if err != nil {
		return false, &DetectorError{Message: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return false, &DetectorError{Message: "failed to call detector", Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Printf("warning: failed to close detector response: %v", closeErr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, &DetectorError{Message: "failed to read response body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, &DetectorError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	var result detectSheetResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return false, &DetectorError{Message: "malformed response", Err: err}
	}
	if result.A4Detected == nil {
		return false, &DetectorError{Message: "response missing a4_detected"}
	}

	return *result.A4Detected, nil
}

func buildDetectBody(photoPath string) (io.Reader, string, error) {
	file, err := os.Open(photoPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open photo: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", filepath.Base(photoPath))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("failed to read photo: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize form: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}
