package drive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/fastygo/taskdesk/domain"
	"github.com/fastygo/taskdesk/internal/config"
	"github.com/fastygo/taskdesk/usecase"
)

// Store keeps task documents in a Google Drive folder and shares them
// publicly read-only.
type Store struct {
	files    *driveapi.Service
	folderID string
	timeout  time.Duration
	logger   *zap.Logger
}

// New authenticates with the configured service account.
func New(ctx context.Context, cfg config.DriveConfig, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Credentials) == "" {
		return nil, errors.New("drive credentials are not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []option.ClientOption{option.WithScopes(driveapi.DriveFileScope)}
	if strings.HasPrefix(strings.TrimSpace(cfg.Credentials), "{") {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.Credentials)))
	} else {
		opts = append(opts, option.WithCredentialsFile(cfg.Credentials))
	}

	svc, err := driveapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive client: %w", err)
	}
	return NewWithService(svc, cfg.FolderID, cfg.Timeout, logger), nil
}

// NewWithService wraps an existing Drive client.
func NewWithService(svc *driveapi.Service, folderID string, timeout time.Duration, logger *zap.Logger) *Store {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{files: svc, folderID: folderID, timeout: timeout, logger: logger}
}

// Upload creates the file, grants anyone read access and returns its id
// and view link.
func (s *Store) Upload(ctx context.Context, up usecase.Upload) (domain.Attachment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	meta := &driveapi.File{Name: up.Name}
	if s.folderID != "" {
		meta.Parents = []string{s.folderID}
	}

	var media []googleapi.MediaOption
	if up.ContentType != "" {
		meta.MimeType = up.ContentType
		media = append(media, googleapi.ContentType(up.ContentType))
	}

	created, err := s.files.Files.Create(meta).
		Media(up.Content, media...).
		Fields("id", "webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("create file: %w", err)
	}

	_, err = s.files.Permissions.Create(created.Id, &driveapi.Permission{
		Type: "anyone",
		Role: "reader",
	}).Context(ctx).Do()
	if err != nil {
		if delErr := s.files.Files.Delete(created.Id).Context(ctx).Do(); delErr != nil {
			s.logger.Warn("failed to remove unshared file", zap.String("file_id", created.Id), zap.Error(delErr))
		}
		return domain.Attachment{}, fmt.Errorf("share file: %w", err)
	}

	s.logger.Debug("document uploaded", zap.String("file_id", created.Id), zap.String("name", up.Name))
	return domain.Attachment{ID: created.Id, URL: created.WebViewLink, Name: up.Name}, nil
}

// Delete removes a file. A file that no longer exists counts as deleted.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.files.Files.Delete(id).Context(ctx).Do()
	if err == nil || googleapi.IsNotModified(err) {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 404 {
		return nil
	}
	return fmt.Errorf("delete file %s: %w", id, err)
}

var _ usecase.AttachmentStore = (*Store)(nil)
