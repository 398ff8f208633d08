package model

const (
	UploadStatusProcessing = "processing"
	UploadStatusProcessed  = "processed"
	UploadStatusFailed     = "failed"
)

// Upload tracks one uploaded document file and its processing outcome.
type Upload struct {
	ID              string `json:"id" db:"id"`
	UserID          string `json:"user_id" db:"user_id"`
	Filename        string `json:"filename" db:"filename"`
	ContentType     string `json:"content_type" db:"content_type"`
	FileSize        int64  `json:"file_size" db:"file_size"`
	FileKey         string `json:"file_key" db:"file_key"`
	ChunksProcessed int    `json:"chunks_processed" db:"chunks_processed"`
	Status          string `json:"status" db:"status"`
	Error           string `json:"error,omitempty" db:"error"`
	Ctime           int64  `json:"ctime" db:"ctime"`
	Mtime           int64  `json:"mtime" db:"mtime"`
}
