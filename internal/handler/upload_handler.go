package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragchat/internal/model"
	"github.com/xxxsen/ragchat/internal/pkg/errcode"
	"github.com/xxxsen/ragchat/internal/pkg/response"
	"github.com/xxxsen/ragchat/internal/service"
)

type UploadHandler struct {
	documents *service.DocumentService
}

func NewUploadHandler(documents *service.DocumentService) *UploadHandler {
	return &UploadHandler{documents: documents}
}

type uploadResult struct {
	ID       string `json:"id,omitempty"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

func (h *UploadHandler) Upload(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	up, err := h.saveOne(c, userID, fh)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, uploadResult{
		ID:       up.ID,
		Filename: up.Filename,
		Status:   up.Status,
		Message:  fmt.Sprintf("Document '%s' uploaded successfully, processing in background", up.Filename),
	})
}

func (h *UploadHandler) UploadMultiple(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "files are required")
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		response.Error(c, errcode.ErrInvalidFile, "files are required")
		return
	}
	if len(files) > h.documents.MaxBatchFiles() {
		response.Error(c, errcode.ErrTooManyFiles, fmt.Sprintf("maximum %d files per batch", h.documents.MaxBatchFiles()))
		return
	}
	results := make([]uploadResult, 0, len(files))
	for _, fh := range files {
		up, err := h.saveOne(c, userID, fh)
		if err != nil {
			results = append(results, uploadResult{
				Filename: fh.Filename,
				Status:   model.UploadStatusFailed,
				Message:  err.Error(),
			})
			continue
		}
		results = append(results, uploadResult{
			ID:       up.ID,
			Filename: up.Filename,
			Status:   up.Status,
		})
	}
	response.Success(c, results)
}

func (h *UploadHandler) saveOne(c *gin.Context, userID string, fh *multipart.FileHeader) (*model.Upload, error) {
	if err := h.documents.ValidateFile(fh.Filename, fh.Size); err != nil {
		return nil, err
	}
	file, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return h.documents.Upload(c.Request.Context(), userID, fh.Filename, fh.Header.Get("Content-Type"), content)
}

func (h *UploadHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	items, err := h.documents.ListUploads(c.Request.Context(), userID, limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, items)
}

func (h *UploadHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	up, err := h.documents.GetUpload(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, up)
}

func (h *UploadHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if err := h.documents.DeleteUpload(c.Request.Context(), userID, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
