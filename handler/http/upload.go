package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"wordbridge/src/queue"
	"wordbridge/src/storage/minioctrl"
	"wordbridge/src/storage/postgres/recommendationctrl"
	"wordbridge/src/storage/postgres/uploadctrl"
)

var allowedExtensions = map[string]bool{
	".txt":  true,
	".docx": true,
	".pdf":  true,
	".csv":  true,
}

type UploadHandler struct {
	minioService          *minioctrl.MinioService
	bucketName            string
	uploadService         *uploadctrl.UploadService
	recommendationService *recommendationctrl.RecommendationService
	jobQueue              queue.Queue
}

func NewUploadHandler(
	minioService *minioctrl.MinioService,
	bucketName string,
	uploadService *uploadctrl.UploadService,
	recommendationService *recommendationctrl.RecommendationService,
	jobQueue queue.Queue,
) (*UploadHandler, error) {
	// Ensure bucket exists
	err := minioService.EnsureBucketExists(context.Background(), bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %v", err)
	}

	return &UploadHandler{
		minioService:          minioService,
		bucketName:            bucketName,
		uploadService:         uploadService,
		recommendationService: recommendationService,
		jobQueue:              jobQueue,
	}, nil
}

// Submit stores the file, creates the upload record in pending, and enqueues
// a processing job. When the enqueue fails the record stays pending and the
// error is surfaced; the worker's recovery sweep will pick the upload up.
func (h *UploadHandler) Submit(c *gin.Context) {
	studentID, err := strconv.ParseInt(c.PostForm("student_id"), 10, 64)
	if err != nil || studentID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid student_id"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file type"})
		return
	}

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}

	objectName := fmt.Sprintf("%s%s", uuid.New().String(), ext)
	err = h.minioService.PutObject(c.Request.Context(), h.bucketName, objectName, fileBytes)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}

	upload, err := h.uploadService.Create(
		c.Request.Context(),
		studentID,
		header.Filename,
		fmt.Sprintf("%s/%s", h.bucketName, objectName),
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record upload"})
		return
	}

	if err := h.jobQueue.Enqueue(c.Request.Context(), upload.ID); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "Upload stored but could not be queued for processing",
			"upload_id": upload.ID,
			"status":    upload.Status,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"upload": upload})
}

func (h *UploadHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid upload id"})
		return
	}

	upload, err := h.uploadService.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get upload"})
		return
	}
	if upload == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Upload not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"upload": upload})
}

func (h *UploadHandler) Recommendations(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid upload id"})
		return
	}

	rows, err := h.recommendationService.GetByUploadID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get recommendations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"recommendations": rows})
}
