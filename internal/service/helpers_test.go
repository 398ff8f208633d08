package service

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/xxxsen/ragchat/internal/ai"
	"github.com/xxxsen/ragchat/internal/filestore"
	"github.com/xxxsen/ragchat/internal/model"
	"github.com/xxxsen/ragchat/internal/pkg/errs"
)

type fakeConversationRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*model.Conversation
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{rows: make(map[int64]*model.Conversation)}
}

func (f *fakeConversationRepo) Create(ctx context.Context, conv *model.Conversation) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	stored := *conv
	stored.ID = f.nextID
	f.rows[stored.ID] = &stored
	return stored.ID, nil
}

func (f *fakeConversationRepo) Get(ctx context.Context, userID string, id int64) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.UserID != userID {
		return nil, errs.ErrNotFound
	}
	conv := *row
	return &conv, nil
}

func (f *fakeConversationRepo) List(ctx context.Context, userID string, limit, offset int) ([]*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.Conversation, 0, len(f.rows))
	for _, row := range f.rows {
		if row.UserID == userID {
			conv := *row
			out = append(out, &conv)
		}
	}
	return out, nil
}

func (f *fakeConversationRepo) UpdateTitle(ctx context.Context, userID string, id int64, title string, mtime int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.UserID != userID {
		return errs.ErrNotFound
	}
	row.Title = title
	row.Mtime = mtime
	return nil
}

func (f *fakeConversationRepo) Touch(ctx context.Context, userID string, id int64, mtime int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.UserID != userID {
		return errs.ErrNotFound
	}
	row.Mtime = mtime
	return nil
}

func (f *fakeConversationRepo) Delete(ctx context.Context, userID string, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.UserID != userID {
		return errs.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	nextID    int64
	rows      []*model.Message
	listCalls int
}

func (f *fakeMessageRepo) Append(ctx context.Context, msg *model.Message) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	stored := *msg
	stored.ID = f.nextID
	f.rows = append(f.rows, &stored)
	return stored.ID, nil
}

// ListRecent returns the conversation tail oldest first, like the real repo.
func (f *fakeMessageRepo) ListRecent(ctx context.Context, userID string, conversationID int64, limit int) ([]*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	matched := make([]*model.Message, 0, len(f.rows))
	for _, row := range f.rows {
		if row.UserID == userID && row.ConversationID == conversationID {
			msg := *row
			matched = append(matched, &msg)
		}
	}
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

func (f *fakeMessageRepo) CountByConversation(ctx context.Context, userID string, conversationID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, row := range f.rows {
		if row.UserID == userID && row.ConversationID == conversationID {
			count++
		}
	}
	return count, nil
}

type fakeUploadRepo struct {
	mu   sync.Mutex
	rows map[string]*model.Upload
}

func newFakeUploadRepo() *fakeUploadRepo {
	return &fakeUploadRepo{rows: make(map[string]*model.Upload)}
}

func (f *fakeUploadRepo) Create(ctx context.Context, up *model.Upload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[up.ID]; ok {
		return errs.ErrConflict
	}
	stored := *up
	f.rows[up.ID] = &stored
	return nil
}

func (f *fakeUploadRepo) UpdateStatus(ctx context.Context, userID string, id string, status string, chunksProcessed int, errMsg string, mtime int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.UserID != userID {
		return errs.ErrNotFound
	}
	row.Status = status
	row.ChunksProcessed = chunksProcessed
	row.Error = errMsg
	row.Mtime = mtime
	return nil
}

func (f *fakeUploadRepo) Get(ctx context.Context, userID string, id string) (*model.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.UserID != userID {
		return nil, errs.ErrNotFound
	}
	up := *row
	return &up, nil
}

func (f *fakeUploadRepo) List(ctx context.Context, userID string, limit, offset int) ([]*model.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.Upload, 0, len(f.rows))
	for _, row := range f.rows {
		if row.UserID == userID {
			up := *row
			out = append(out, &up)
		}
	}
	return out, nil
}

func (f *fakeUploadRepo) Delete(ctx context.Context, userID string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.UserID != userID {
		return errs.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeUploadRepo) status(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return ""
	}
	return row.Status
}

type fakeEmbedder struct{}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for range texts {
		out = append(out, []float32{1, 0})
	}
	return out, nil
}

func (f *fakeEmbedder) ModelName() string {
	return "fake-embed"
}

type fakeGenerator struct {
	completion string
	fragments  []string
}

func (f *fakeGenerator) Complete(ctx context.Context, msgs []ai.Message) (string, error) {
	return f.completion, nil
}

func (f *fakeGenerator) Stream(ctx context.Context, msgs []ai.Message, onFragment func(string) error) error {
	for _, fragment := range f.fragments {
		if err := onFragment(fragment); err != nil {
			return err
		}
	}
	return nil
}

type memFileStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemFileStore() *memFileStore {
	return &memFileStore{files: make(map[string][]byte)}
}

func (m *memFileStore) Save(ctx context.Context, key string, r filestore.ReadSeekCloser, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = data
	return nil
}

func (m *memFileStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("not implemented: %s", key)
}

func (m *memFileStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
	return nil
}

func (m *memFileStore) Type() string {
	return "memory"
}

func (m *memFileStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[key]
	return ok
}
