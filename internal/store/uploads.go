package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alexvazquez-beep/video-transcriber-backend/constants"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/common"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/entity"
)

// UploadStore keeps uploaded files pending job creation. Records live in
// memory only; the backing files sit under dir until a sweep or a pipeline
// cleanup removes them.
type UploadStore struct {
	dir    string
	ttl    time.Duration
	logger *slog.Logger

	mu      sync.RWMutex
	uploads map[uuid.UUID]entity.Upload

	now func() time.Time
}

func NewUploadStore(dir string, ttl time.Duration, logger *slog.Logger) (*UploadStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, common.WrapError(err, "create upload dir")
	}
	return &UploadStore{
		dir:     dir,
		ttl:     ttl,
		logger:  logger,
		uploads: make(map[uuid.UUID]entity.Upload),
		now:     time.Now,
	}, nil
}

// Put relocates the payload from the transient inbound stream to the upload
// directory and registers the record. The stored name is the upload id plus
// the original extension so concurrent uploads never collide.
func (s *UploadStore) Put(src io.Reader, originalName string) (entity.Upload, error) {
	if src == nil {
		return entity.Upload{}, common.NewAppError("UPLOAD_EMPTY", "no file payload supplied", common.ErrInvalidInput)
	}

	id := uuid.New()
	name := id.String()
	if ext := constants.ExtOf(originalName); ext != "" {
		name += "." + ext
	}
	path := filepath.Join(s.dir, name)

	dst, err := os.Create(path)
	if err != nil {
		return entity.Upload{}, common.WrapError(err, "create upload file")
	}
	written, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return entity.Upload{}, common.WrapError(err, "store upload payload")
	}

	up := entity.Upload{
		ID:           id,
		Path:         path,
		OriginalName: originalName,
		CreatedAt:    s.now(),
	}

	s.mu.Lock()
	s.uploads[id] = up
	s.mu.Unlock()

	s.logger.Info("upload.stored", "upload_id", id, "original_name", originalName, "bytes", written)
	return up, nil
}

// Resolve returns the record for id. Unknown and already-swept identifiers
// are a not-found condition. Resolve does not consume the record; the file
// is deleted by pipeline cleanup or by the sweep, whichever comes first.
func (s *UploadStore) Resolve(id uuid.UUID) (entity.Upload, error) {
	s.mu.RLock()
	up, ok := s.uploads[id]
	s.mu.RUnlock()
	if !ok {
		return entity.Upload{}, common.NewAppError("UPLOAD_NOT_FOUND", fmt.Sprintf("upload %s", id), common.ErrNotFound)
	}
	return up, nil
}

// Sweep drops every record older than the TTL and deletes its backing file.
// File deletion is best-effort: the pipeline may already have removed it.
func (s *UploadStore) Sweep() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	var expired []entity.Upload
	for id, up := range s.uploads {
		if up.CreatedAt.Before(cutoff) {
			expired = append(expired, up)
			delete(s.uploads, id)
		}
	}
	s.mu.Unlock()

	for _, up := range expired {
		if err := os.Remove(up.Path); err != nil && !os.IsNotExist(err) {
			s.logger.Debug("upload.sweep.remove_failed", "upload_id", up.ID, "path", up.Path, "error", err)
		}
	}
	if len(expired) > 0 {
		s.logger.Info("upload.sweep", "removed", len(expired))
	}
	return len(expired)
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (s *UploadStore) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Len reports the number of live records.
func (s *UploadStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.uploads)
}
