package services

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/ErfanAalam/MyFootFirst2-sub000/utils"
)

// PhotoService stores photos coming off the device camera
type PhotoService interface {
	// StorePhoto validates the upload and writes it into dir as a JPEG.
	// It returns the local path of the stored photo.
	StorePhoto(fileHeader *multipart.FileHeader, dir string) (string, error)

	// DiscardPhoto removes a stored photo
	DiscardPhoto(path string)
}

// LocalPhotoService keeps photos on local disk, auto-oriented and bounded in size
type LocalPhotoService struct {
	maxEdge int
	quality int
}

// NewLocalPhotoService creates a photo service writing JPEGs at quality 90.
// A maxEdge of 0 keeps the original resolution.
func NewLocalPhotoService(maxEdge int) *LocalPhotoService {
	return &LocalPhotoService{maxEdge: maxEdge, quality: 90}
}

// StorePhoto saves the upload, then rewrites it as an upright JPEG no larger than maxEdge
func (s *LocalPhotoService) StorePhoto(fileHeader *multipart.FileHeader, dir string) (string, error) {
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return "", err
	}

	filename, err := utils.SaveUploadedFile(fileHeader, dir)
	if err != nil {
		return "", err
	}
	original := filepath.Join(dir, filename)

	img, err := imaging.Open(original, imaging.AutoOrientation(true))
	if err != nil {
		utils.RemoveFile(original)
		return "", &utils.FileUploadError{
			Code:    "INVALID_IMAGE",
			Message: "Photo could not be decoded",
		}
	}

	bounds := img.Bounds()
	if s.maxEdge > 0 && (bounds.Dx() > s.maxEdge || bounds.Dy() > s.maxEdge) {
		img = imaging.Fit(img, s.maxEdge, s.maxEdge, imaging.Lanczos)
	}

	jpgPath := strings.TrimSuffix(original, filepath.Ext(original)) + ".jpg"
	if err := imaging.Save(img, jpgPath, imaging.JPEGQuality(s.quality)); err != nil {
		utils.RemoveFile(original)
		return "", fmt.Errorf("failed to write photo: %w", err)
	}
	if jpgPath != original {
		utils.RemoveFile(original)
	}

	return jpgPath, nil
}

// DiscardPhoto deletes the photo from disk
func (s *LocalPhotoService) DiscardPhoto(path string) {
	utils.RemoveFile(path)
}
