package export

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"imgcat/internal/config"
	"imgcat/internal/fileutil"
)

// Sink stores index objects by name. Objects are immutable once written.
type Sink interface {
	Exists(ctx context.Context, name string) (bool, error)
	Put(ctx context.Context, name string, data []byte) error
	Close() error
	// Location describes where objects land, for logs.
	Location() string
}

// OpenSink builds the sink selected by export.sink.
func OpenSink(ctx context.Context, cfg *config.Config) (Sink, error) {
	switch cfg.Export.Sink {
	case config.ExportSinkDir:
		return NewDirSink(cfg.Export.Dir, cfg.Export.Prefix)
	case config.ExportSinkGCS:
		return NewGCSSink(ctx, cfg.Export.Bucket, cfg.Export.Prefix, cfg.Export.CredentialsFile)
	default:
		return nil, fmt.Errorf("export: unsupported sink %q", cfg.Export.Sink)
	}
}

// DirSink writes objects as files below a directory.
type DirSink struct {
	root string
}

// NewDirSink creates dir/prefix if needed.
func NewDirSink(dir, prefix string) (*DirSink, error) {
	root := filepath.Join(dir, filepath.FromSlash(prefix))
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("export: ensure directory: %w", err)
	}
	return &DirSink{root: root}, nil
}

func (s *DirSink) Exists(_ context.Context, name string) (bool, error) {
	return fileutil.Exists(filepath.Join(s.root, name))
}

// Put writes through a temp file so a crash never leaves a partial object
// under the final name.
func (s *DirSink) Put(_ context.Context, name string, data []byte) error {
	if err := fileutil.WriteVerified(filepath.Join(s.root, name), data, 0o644); err != nil {
		return fmt.Errorf("export: write %s: %w", name, err)
	}
	return nil
}

func (s *DirSink) Close() error { return nil }

func (s *DirSink) Location() string { return s.root }

// GCSSink writes objects to a Cloud Storage bucket.
type GCSSink struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSSink connects with the service account key at credentialsFile, or
// with application default credentials when it is empty.
func NewGCSSink(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSSink, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("export: service account key %s: %w", credentialsFile, err)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("export: create storage client: %w", err)
	}
	return &GCSSink{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *GCSSink) object(name string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(path.Join(s.prefix, name))
}

func (s *GCSSink) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.object(name).Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrObjectNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("export: stat gs://%s/%s: %w", s.bucket, path.Join(s.prefix, name), err)
	}
}

func (s *GCSSink) Put(ctx context.Context, name string, data []byte) error {
	writer := s.object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.CacheControl = "public, max-age=31536000, immutable"
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("export: upload %s: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			// Another exporter published the same object first.
			return nil
		}
		return fmt.Errorf("export: finish upload %s: %w", name, err)
	}
	return nil
}

func (s *GCSSink) Close() error { return s.client.Close() }

func (s *GCSSink) Location() string { return "gs://" + path.Join(s.bucket, s.prefix) }
