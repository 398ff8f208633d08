package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/panjf2000/ants/v2"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/ragchat/internal/ai"
	"github.com/xxxsen/ragchat/internal/filestore"
	"github.com/xxxsen/ragchat/internal/model"
	"github.com/xxxsen/ragchat/internal/pkg/errs"
	"github.com/xxxsen/ragchat/internal/rag"
	"go.uber.org/zap"
)

type uploadRecordStore interface {
	Create(ctx context.Context, up *model.Upload) error
	UpdateStatus(ctx context.Context, userID string, id string, status string, chunksProcessed int, errMsg string, mtime int64) error
	Get(ctx context.Context, userID string, id string) (*model.Upload, error)
	List(ctx context.Context, userID string, limit, offset int) ([]*model.Upload, error)
	Delete(ctx context.Context, userID string, id string) error
}

const imageDescribePrompt = "Describe this image in detail, including any text, objects, people, and context you can see."

var extChunkTypes = map[string]model.ChunkType{
	".txt":  model.ChunkTypeText,
	".md":   model.ChunkTypeMarkdown,
	".pdf":  model.ChunkTypePDF,
	".jpg":  model.ChunkTypeImage,
	".jpeg": model.ChunkTypeImage,
	".png":  model.ChunkTypeImage,
	".bmp":  model.ChunkTypeImage,
	".gif":  model.ChunkTypeImage,
}

type DocumentServiceConfig struct {
	MaxFileSize   int64
	MaxBatchFiles int
	Workers       int
}

// DocumentService handles document uploads: validation, file persistence,
// decoding and background ingestion into the per-user indexes.
type DocumentService struct {
	uploads   uploadRecordStore
	files     filestore.Store
	chunker   *rag.Chunker
	store     *rag.IndexStore
	describer ai.IDescriber
	pool      *ants.Pool
	cfg       DocumentServiceConfig
}

func NewDocumentService(uploads uploadRecordStore, files filestore.Store, chunker *rag.Chunker, store *rag.IndexStore, describer ai.IDescriber, cfg DocumentServiceConfig) (*DocumentService, error) {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 50 * 1024 * 1024
	}
	if cfg.MaxBatchFiles <= 0 {
		cfg.MaxBatchFiles = 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, err
	}
	return &DocumentService{
		uploads:   uploads,
		files:     files,
		chunker:   chunker,
		store:     store,
		describer: describer,
		pool:      pool,
		cfg:       cfg,
	}, nil
}

func (s *DocumentService) Close() {
	s.pool.Release()
}

func (s *DocumentService) MaxBatchFiles() int {
	return s.cfg.MaxBatchFiles
}

// ValidateFile rejects unsupported extensions and oversized files before any
// state is created.
func (s *DocumentService) ValidateFile(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := extChunkTypes[ext]; !ok {
		return fmt.Errorf("%w: unsupported file type: %s", errs.ErrInvalid, ext)
	}
	if size <= 0 {
		return fmt.Errorf("%w: empty file", errs.ErrInvalid)
	}
	if size > s.cfg.MaxFileSize {
		return fmt.Errorf("%w: file exceeds %d bytes", errs.ErrInvalid, s.cfg.MaxFileSize)
	}
	return nil
}

// Upload records the upload, persists the raw file and schedules background
// ingestion. It returns as soon as the file is saved; processing status is
// tracked on the upload row.
func (s *DocumentService) Upload(ctx context.Context, userID string, filename string, contentType string, content []byte) (*model.Upload, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", errs.ErrInvalid)
	}
	if err := s.ValidateFile(filename, int64(len(content))); err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	up := &model.Upload{
		ID:          newID(),
		UserID:      userID,
		Filename:    filename,
		ContentType: contentType,
		FileSize:    int64(len(content)),
		Status:      model.UploadStatusProcessing,
		Ctime:       now,
		Mtime:       now,
	}
	up.FileKey = up.ID + strings.ToLower(filepath.Ext(filename))
	if err := s.uploads.Create(ctx, up); err != nil {
		return nil, err
	}
	if err := s.files.Save(ctx, up.FileKey, readSeekCloser{bytes.NewReader(content)}, up.FileSize); err != nil {
		s.markFailed(ctx, up, fmt.Sprintf("save file: %v", err))
		return nil, err
	}

	task := *up
	if err := s.pool.Submit(func() {
		s.process(context.Background(), &task, content)
	}); err != nil {
		s.markFailed(ctx, up, fmt.Sprintf("schedule processing: %v", err))
		return nil, err
	}
	return up, nil
}

// process decodes, chunks and ingests one uploaded file, then records the
// outcome on the upload row. Failures leave the index untouched.
func (s *DocumentService) process(ctx context.Context, up *model.Upload, content []byte) {
	logger := logutil.GetLogger(ctx).With(
		zap.String("user_id", up.UserID),
		zap.String("upload_id", up.ID),
		zap.String("filename", up.Filename))

	chunks, err := s.buildChunks(ctx, up, content)
	if err != nil {
		logger.Error("document processing failed", zap.Error(err))
		s.markFailed(ctx, up, err.Error())
		return
	}
	if err := s.store.Ingest(ctx, up.UserID, chunks); err != nil {
		logger.Error("document ingestion failed", zap.Error(err))
		s.markFailed(ctx, up, err.Error())
		return
	}
	if err := s.uploads.UpdateStatus(ctx, up.UserID, up.ID, model.UploadStatusProcessed, len(chunks), "", time.Now().Unix()); err != nil {
		logger.Warn("failed to update upload status", zap.Error(err))
		return
	}
	logger.Info("document processed", zap.Int("chunks", len(chunks)))
}

func (s *DocumentService) buildChunks(ctx context.Context, up *model.Upload, content []byte) ([]*model.Chunk, error) {
	ext := strings.ToLower(filepath.Ext(up.Filename))
	typ := extChunkTypes[ext]
	now := time.Now().Unix()

	if typ == model.ChunkTypeImage {
		if s.describer == nil {
			return nil, fmt.Errorf("%w: no vision model configured", errs.ErrAIUnavailable)
		}
		description, err := s.describer.Describe(ctx, content, imageMIMEType(ext, up.ContentType), imageDescribePrompt)
		if err != nil {
			return nil, fmt.Errorf("describe image: %w", err)
		}
		if strings.TrimSpace(description) == "" {
			return nil, fmt.Errorf("empty image description")
		}
		return []*model.Chunk{{
			Source:  up.Filename,
			ChunkID: fmt.Sprintf("%s_%s_img_0", up.UserID, up.Filename),
			Type:    model.ChunkTypeImage,
			UserID:  up.UserID,
			Text:    description,
			Ctime:   now,
		}}, nil
	}

	text, err := decodeText(content, typ)
	if err != nil {
		return nil, err
	}
	parts := s.chunker.Split(text, typ)
	if len(parts) == 0 {
		return nil, fmt.Errorf("no text content extracted")
	}
	chunks := make([]*model.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, &model.Chunk{
			Source:  up.Filename,
			ChunkID: fmt.Sprintf("%s_%s_%d", up.UserID, up.Filename, i),
			Type:    typ,
			UserID:  up.UserID,
			Text:    part,
			Ctime:   now,
		})
	}
	return chunks, nil
}

func decodeText(content []byte, typ model.ChunkType) (string, error) {
	if typ != model.ChunkTypePDF {
		return string(content), nil
	}
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	data, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func imageMIMEType(ext string, contentType string) string {
	if contentType != "" && strings.HasPrefix(contentType, "image/") {
		return contentType
	}
	switch ext {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	default:
		return "image/jpeg"
	}
}

func (s *DocumentService) markFailed(ctx context.Context, up *model.Upload, msg string) {
	if err := s.uploads.UpdateStatus(ctx, up.UserID, up.ID, model.UploadStatusFailed, 0, msg, time.Now().Unix()); err != nil {
		logutil.GetLogger(ctx).Warn("failed to mark upload failed", zap.Error(err))
	}
}

func (s *DocumentService) GetUpload(ctx context.Context, userID, id string) (*model.Upload, error) {
	return s.uploads.Get(ctx, userID, id)
}

func (s *DocumentService) ListUploads(ctx context.Context, userID string, limit, offset int) ([]*model.Upload, error) {
	return s.uploads.List(ctx, userID, limit, offset)
}

// DeleteUpload removes the upload record and its stored file. Chunks already
// ingested stay in the index; only a full per-user clear drops them.
func (s *DocumentService) DeleteUpload(ctx context.Context, userID, id string) error {
	up, err := s.uploads.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.uploads.Delete(ctx, userID, id); err != nil {
		return err
	}
	if up.FileKey != "" {
		if err := s.files.Delete(ctx, up.FileKey); err != nil {
			logutil.GetLogger(ctx).Warn("failed to delete stored file", zap.Error(err), zap.String("file_key", up.FileKey))
		}
	}
	return nil
}

func (s *DocumentService) Stats(userID string) *model.UserIndexStats {
	return s.store.Stats(userID)
}

func (s *DocumentService) HasDocuments(userID string) bool {
	return s.store.HasDocuments(userID)
}

// ClearDocuments drops the user's in-memory indexes.
func (s *DocumentService) ClearDocuments(userID string) {
	s.store.Clear(userID)
}

type readSeekCloser struct {
	*bytes.Reader
}

func (readSeekCloser) Close() error {
	return nil
}
