package controllers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ErfanAalam/MyFootFirst2-sub000/utils"
)

var photoContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// GetSessionPhoto handles GET /api/v1/scan-sessions/:id/photos/:filename - serves a captured photo for preview
func (sc *SessionController) GetSessionPhoto(c *gin.Context) {
	sess, ok := sc.lookup(c)
	if !ok {
		return
	}

	filePath, err := utils.ResolveInDir(sess.dir, c.Param("filename"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_FILENAME", "Invalid filename")
		return
	}

	contentType, ok := photoContentTypes[strings.ToLower(filepath.Ext(filePath))]
	if !ok {
		respondError(c, http.StatusBadRequest, "INVALID_FILE_TYPE", "Only JPEG and PNG photos are supported")
		return
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		respondError(c, http.StatusNotFound, "FILE_NOT_FOUND", "Photo not found")
		return
	}

	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "private, no-store")
	c.File(filePath)
}
