package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/italosilva18/cte-mdfe-api-sub000/internal/cache"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/service"
)

// BatchHandler handles XML batch uploads and report lookups
type BatchHandler struct {
	svc            service.Service
	maxUploadBytes int64
	log            *logrus.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(svc service.Service, maxUploadBytes int64, log *logrus.Logger) *BatchHandler {
	return &BatchHandler{svc: svc, maxUploadBytes: maxUploadBytes, log: log}
}

// UploadBatch accepts a multipart form of XML files under the "files"
// field and processes them as one batch. The response is always 200 with
// a per-file report; individual failures are entries, not HTTP errors.
func (h *BatchHandler) UploadBatch(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form: " + err.Error()})
		return
	}

	uploads := form.File["files"]
	if len(uploads) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided under field 'files'"})
		return
	}

	files := make([]service.FileInput, 0, len(uploads))
	for _, header := range uploads {
		f, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open " + header.Filename + ": " + err.Error()})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read " + header.Filename + ": " + err.Error()})
			return
		}
		files = append(files, service.FileInput{Filename: header.Filename, Data: data})
	}

	report := h.svc.ProcessBatch(c.Request.Context(), files)
	c.JSON(http.StatusOK, report)
}

// GetBatchReport returns a recent batch report by its ID
func (h *BatchHandler) GetBatchReport(c *gin.Context) {
	batchID := c.Param("id")

	report, err := h.svc.GetBatchReport(c.Request.Context(), batchID)
	if err != nil {
		if err == cache.ErrCacheMiss {
			c.JSON(http.StatusNotFound, gin.H{"error": "batch report not found"})
			return
		}
		h.log.WithError(err).WithField("batch_id", batchID).Error("Failed to fetch batch report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch batch report"})
		return
	}

	c.JSON(http.StatusOK, report)
}
