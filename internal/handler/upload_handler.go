package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"curalink/internal/middleware"
	"curalink/pkg/cloudinary"

	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	cloud cloudinary.Client
}

func NewUploadHandler(cloud cloudinary.Client) *UploadHandler {
	return &UploadHandler{cloud: cloud}
}

// UploadAttachment uploads a chat attachment and returns its URL. The URL
// goes into a file message afterwards.
func (h *UploadHandler) UploadAttachment(c *gin.Context) {
	if h.cloud == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "uploads not configured"})
		return
	}
	userID := middleware.GetUserID(c)
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	folder := "curalink/attachments/" + strconv.FormatUint(uint64(userID), 10)
	publicID := "att_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer f.Close()

	upload := h.cloud.UploadFile
	if strings.HasPrefix(file.Header.Get("Content-Type"), "image/") {
		upload = h.cloud.UploadImage
	}
	url, err := upload(c.Request.Context(), f, folder, publicID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "file_name": file.Filename})
}
