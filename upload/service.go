package upload

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/skillsenselab/dialtone/errors"
	"github.com/skillsenselab/dialtone/logger"
	"github.com/skillsenselab/dialtone/util"
)

// Upload describes a stored asset.
type Upload struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	Path     string    `json:"-"`
	Size     int64     `json:"size"`
	MimeType string    `json:"mime_type"`
	StoredAt time.Time `json:"stored_at"`
}

// Service stores and resolves uploads. Safe for concurrent use; each upload
// lives in its own directory so there is no shared mutable state.
type Service struct {
	cfg Config
	log *logger.Logger
}

// NewService builds a Service and ensures the storage root exists.
func NewService(cfg Config, log *logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.NewDefault("upload")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	return &Service{cfg: cfg, log: log.WithComponent("upload.service")}, nil
}

// Save validates and stores one uploaded file, returning its generated id.
// declaredSize may be zero when the transport does not know the length up
// front; the size limit is still enforced while copying.
func (s *Service) Save(filename, mimeType string, declaredSize int64, r io.Reader) (*Upload, error) {
	if filename == "" {
		return nil, apperrors.MissingFile()
	}
	maxSize := s.cfg.MaxSizeBytes()
	if declaredSize > maxSize {
		return nil, apperrors.FileTooLarge(declaredSize, maxSize)
	}
	if !s.typeAllowed(mimeType) {
		return nil, apperrors.UnsupportedFormat(mimeType, s.cfg.AllowedTypes)
	}

	id := uuid.NewString()
	dir := filepath.Join(s.cfg.Dir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.Internal(err)
	}

	name := util.SanitizeFilename(filename)
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		os.RemoveAll(dir)
		return nil, apperrors.Internal(err)
	}

	// Copy one byte past the limit so oversized streams are detected even
	// without a declared size.
	written, copyErr := io.Copy(f, io.LimitReader(r, maxSize+1))
	closeErr := f.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.RemoveAll(dir)
		return nil, apperrors.Internal(copyErr)
	}
	if written > maxSize {
		os.RemoveAll(dir)
		return nil, apperrors.FileTooLarge(written, maxSize)
	}

	up := &Upload{
		ID:       id,
		Filename: name,
		Path:     path,
		Size:     written,
		MimeType: mimeType,
		StoredAt: time.Now(),
	}
	s.log.Info("upload stored", map[string]interface{}{
		logger.FieldUploadID: id,
		"filename":           name,
		"size":               written,
	})
	return up, nil
}

// Resolve returns the stored asset path for uploadID. Exactly one file is
// expected per upload directory; a missing directory yields UploadNotFound
// and an empty one AudioFileNotFound.
func (s *Service) Resolve(uploadID string) (string, error) {
	// Reject ids that could escape the storage root.
	if uploadID == "" || uploadID != filepath.Base(uploadID) {
		return "", apperrors.UploadNotFound(uploadID)
	}
	dir := filepath.Join(s.cfg.Dir, uploadID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", apperrors.UploadNotFound(uploadID)
	}
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), "converted_") {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", apperrors.AudioFileNotFound(uploadID)
}

// Delete removes an upload and everything stored under it.
func (s *Service) Delete(uploadID string) error {
	if uploadID == "" || uploadID != filepath.Base(uploadID) {
		return apperrors.UploadNotFound(uploadID)
	}
	dir := filepath.Join(s.cfg.Dir, uploadID)
	if _, err := os.Stat(dir); err != nil {
		return apperrors.UploadNotFound(uploadID)
	}
	return os.RemoveAll(dir)
}

// CleanupStale removes uploads older than the configured age and returns
// how many were removed. A zero max age disables the sweep.
func (s *Service) CleanupStale() (int, error) {
	if s.cfg.MaxAgeHours <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-time.Duration(s.cfg.MaxAgeHours) * time.Hour)

	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.cfg.Dir, e.Name())); err != nil {
			s.log.Warn("failed to remove stale upload", map[string]interface{}{
				logger.FieldUploadID: e.Name(),
				logger.FieldError:    err.Error(),
			})
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info("stale uploads removed", map[string]interface{}{
			"count": removed,
		})
	}
	return removed, nil
}

func (s *Service) typeAllowed(mimeType string) bool {
	if mimeType == "" {
		return true // sniffed downstream by the probe
	}
	mt := strings.ToLower(mimeType)
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	for _, allowed := range s.cfg.AllowedTypes {
		if strings.HasPrefix(mt, strings.ToLower(allowed)) {
			return true
		}
	}
	return false
}
