package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragchat/internal/model"
	"github.com/xxxsen/ragchat/internal/pkg/errs"
	"github.com/xxxsen/ragchat/internal/rag"
)

func newDocumentFixture(t *testing.T, cfg DocumentServiceConfig) (*DocumentService, *fakeUploadRepo, *memFileStore, *rag.IndexStore) {
	t.Helper()
	uploads := newFakeUploadRepo()
	files := newMemFileStore()
	store := rag.NewIndexStore(&fakeEmbedder{})
	svc, err := NewDocumentService(uploads, files, rag.NewChunker(0, 0), store, nil, cfg)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc, uploads, files, store
}

func TestUploadProcessesTextDocument(t *testing.T) {
	ctx := context.Background()
	svc, uploads, files, store := newDocumentFixture(t, DocumentServiceConfig{Workers: 1})

	up, err := svc.Upload(ctx, "u1", "notes.txt", "text/plain", []byte("go is a statically typed language"))
	require.NoError(t, err)
	assert.Equal(t, model.UploadStatusProcessing, up.Status)
	assert.True(t, files.has(up.FileKey))

	require.Eventually(t, func() bool {
		return uploads.status(up.ID) == model.UploadStatusProcessed
	}, 2*time.Second, 10*time.Millisecond)

	processed, err := svc.GetUpload(ctx, "u1", up.ID)
	require.NoError(t, err)
	assert.Greater(t, processed.ChunksProcessed, 0)
	assert.True(t, store.HasDocuments("u1"))
}

func TestUploadRejectsInvalidFiles(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newDocumentFixture(t, DocumentServiceConfig{MaxFileSize: 16, Workers: 1})

	assert.ErrorIs(t, svc.ValidateFile("malware.exe", 4), errs.ErrInvalid)
	assert.ErrorIs(t, svc.ValidateFile("empty.txt", 0), errs.ErrInvalid)
	assert.ErrorIs(t, svc.ValidateFile("big.txt", 17), errs.ErrInvalid)

	_, err := svc.Upload(ctx, "", "notes.txt", "text/plain", []byte("hi"))
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestDeleteUploadRemovesRowAndFile(t *testing.T) {
	ctx := context.Background()
	svc, uploads, files, _ := newDocumentFixture(t, DocumentServiceConfig{Workers: 1})

	up, err := svc.Upload(ctx, "u1", "notes.txt", "text/plain", []byte("short lived"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return uploads.status(up.ID) == model.UploadStatusProcessed
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, svc.DeleteUpload(ctx, "u1", up.ID))
	_, err = svc.GetUpload(ctx, "u1", up.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.False(t, files.has(up.FileKey))
}

func TestUploadFailureMarksRecord(t *testing.T) {
	ctx := context.Background()
	svc, uploads, _, store := newDocumentFixture(t, DocumentServiceConfig{Workers: 1})

	// An image without a configured vision model cannot be processed.
	up, err := svc.Upload(ctx, "u1", "photo.jpg", "image/jpeg", []byte{0xff, 0xd8, 0xff})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return uploads.status(up.ID) == model.UploadStatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	failed, err := svc.GetUpload(ctx, "u1", up.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, failed.Error)
	assert.False(t, store.HasDocuments("u1"))
}
