package utils

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestFileHeader creates a multipart.FileHeader for testing
func createTestFileHeader(filename string, size int64, content []byte) *multipart.FileHeader {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="`+filename+`"`)
	h.Set("Content-Type", "image/jpeg")
	part, _ := writer.CreatePart(h)
	part.Write(content)
	writer.Close()

	reader := multipart.NewReader(body, writer.Boundary())
	form, _ := reader.ReadForm(int64(len(content)) + 1024)

	if len(form.File["image"]) > 0 {
		fileHeader := form.File["image"][0]
		// Override size for testing purposes
		fileHeader.Size = size
		return fileHeader
	}

	return nil
}

func TestValidateImageFile_Success(t *testing.T) {
	for _, name := range []string{"photo.jpg", "photo.jpeg", "photo.png", "PHOTO.JPG"} {
		t.Run(name, func(t *testing.T) {
			content := []byte("fake image content")
			fileHeader := createTestFileHeader(name, int64(len(content)), content)
			require.NotNil(t, fileHeader)

			assert.NoError(t, ValidateImageFile(fileHeader))
		})
	}
}

func TestValidateImageFile_FileTooLarge(t *testing.T) {
	content := []byte("fake jpg content")
	fileHeader := createTestFileHeader("large.jpg", MaxFileSize+1, content)
	require.NotNil(t, fileHeader)

	err := ValidateImageFile(fileHeader)
	assert.Error(t, err)

	fileErr, ok := err.(*FileUploadError)
	require.True(t, ok, "Error should be of type FileUploadError")
	assert.Equal(t, "FILE_TOO_LARGE", fileErr.Code)
	assert.Contains(t, fileErr.Message, "File size exceeds maximum allowed size")
}

func TestValidateImageFile_Empty(t *testing.T) {
	fileHeader := createTestFileHeader("empty.jpg", 0, []byte("x"))
	require.NotNil(t, fileHeader)

	err := ValidateImageFile(fileHeader)
	fileErr, ok := err.(*FileUploadError)
	require.True(t, ok)
	assert.Equal(t, "EMPTY_FILE", fileErr.Code)
}

func TestValidateImageFile_InvalidFormat(t *testing.T) {
	for _, name := range []string{"test.gif", "test.heic", "testfile"} {
		t.Run(name, func(t *testing.T) {
			content := []byte("fake content")
			fileHeader := createTestFileHeader(name, int64(len(content)), content)
			require.NotNil(t, fileHeader)

			err := ValidateImageFile(fileHeader)
			fileErr, ok := err.(*FileUploadError)
			require.True(t, ok, "Error should be of type FileUploadError")
			assert.Equal(t, "INVALID_FILE_FORMAT", fileErr.Code)
		})
	}
}

func TestSaveUploadedFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "session")
	content := []byte("jpeg bytes")
	fileHeader := createTestFileHeader("shot.jpg", int64(len(content)), content)
	require.NotNil(t, fileHeader)

	filename, err := SaveUploadedFile(fileHeader, dir)
	require.NoError(t, err)
	assert.Contains(t, filename, "_shot.jpg")

	saved, err := os.ReadFile(filepath.Join(dir, filename))
	require.NoError(t, err)
	assert.Equal(t, content, saved)
}

func TestRemoveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	RemoveFile(path)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// removing again is a no-op
	RemoveFile(path)
	RemoveFile("")
}

func TestResolveInDir(t *testing.T) {
	path, err := ResolveInDir("/captures/s1", "photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/captures/s1", "photo.jpg"), path)

	for _, bad := range []string{"", ".", "..", "../secret", "a/b.jpg", `a\b.jpg`} {
		_, err := ResolveInDir("/captures/s1", bad)
		assert.Error(t, err, bad)
	}
}

func TestGetPhotoURL(t *testing.T) {
	assert.Equal(t, "/api/v1/scan-sessions/abc/photos/p.jpg", GetPhotoURL("abc", "p.jpg"))
	assert.Equal(t, "", GetPhotoURL("abc", ""))
}

func TestFileUploadError_Error(t *testing.T) {
	err := &FileUploadError{
		Code:    "TEST_CODE",
		Message: "Test error message",
	}

	assert.Equal(t, "Test error message", err.Error())
}
