// Package archive copies rendered reports to Google Cloud Storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"fintrack/internal/log"
)

// objectWriter opens a writer for one object. It is the seam between the
// archive and the GCS client.
type objectWriter func(ctx context.Context, bucket, object, contentType string) io.WriteCloser

// GCS uploads documents to one bucket.
type GCS struct {
	bucket string
	client *storage.Client
	open   objectWriter
	logger *log.Logger
}

// NewGCS creates a client from credentialsJSON, or from application
// default credentials when it is empty.
func NewGCS(ctx context.Context, bucket, credentialsJSON string, logger *log.Logger) (*GCS, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("archive: bucket is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: create storage client: %w", err)
	}
	g := &GCS{bucket: bucket, client: client, logger: logger.WithComponent(log.ComponentArchive)}
	g.open = func(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
		w := client.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ContentType = contentType
		w.Metadata = map[string]string{"uploaded-by": "fintrack"}
		return w
	}
	return g, nil
}

// Upload streams the file at path to gs://<bucket>/<objectName>.
func (g *GCS) Upload(ctx context.Context, path, objectName string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	start := time.Now()
	w := g.open(ctx, g.bucket, objectName, contentType)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("upload %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", objectName, err)
	}
	g.logger.InfoContext(ctx, "Report archived",
		log.FieldOperation, log.OpUpload,
		"object", objectName,
		"bucket", g.bucket,
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

func (g *GCS) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
