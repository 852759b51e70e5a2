package gcp

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/yungbote/pythagon-backend/internal/domain"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
)

// objectWriter opens a writer for bucket/key. Swapped out in tests.
type objectWriter func(ctx context.Context, bucket, key string) io.WriteCloser

// DocumentArchive keeps a copy of every uploaded PDF in a GCS bucket under
// documents/<owner hash>/<document id>.pdf.
type DocumentArchive struct {
	log     *logger.Logger
	client  *storage.Client
	bucket  string
	open    objectWriter
	timeout time.Duration
}

func NewDocumentArchive(ctx context.Context, log *logger.Logger, bucket string, ep ArchiveEndpoint) (*DocumentArchive, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket required")
	}
	var opts []option.ClientOption
	if ep.Emulated() {
		// The storage client only honours emulators through the environment.
		_ = os.Setenv("STORAGE_EMULATOR_HOST", ep.EmulatorURL)
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(credentialsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	a := &DocumentArchive{
		log:     log.With("service", "gcp.DocumentArchive"),
		client:  client,
		bucket:  bucket,
		timeout: 2 * time.Minute,
	}
	a.open = func(ctx context.Context, bucket, key string) io.WriteCloser {
		w := client.Bucket(bucket).Object(key).NewWriter(ctx)
		w.ContentType = domain.MimeTypePDF
		return w
	}
	a.log.Info("Document archive ready", "endpoint", ep.String(), "implied", ep.Implied, "bucket", bucket)
	return a, nil
}

func (a *DocumentArchive) Archive(ctx context.Context, owner string, documentID uuid.UUID, doc domain.Document) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	key := ArchiveKey(owner, documentID)
	w := a.open(ctx, a.bucket, key)
	if _, err := io.Copy(w, bytes.NewReader(doc.Data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("archive %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("archive %s: close: %w", key, err)
	}
	a.log.Debug("document archived", "owner_id", owner, "document_id", documentID, "key", key, "bytes", len(doc.Data))
	return nil
}

func (a *DocumentArchive) Close() error {
	if a == nil || a.client == nil {
		return nil
	}
	return a.client.Close()
}

// ArchiveKey never embeds the raw caller id in object names.
func ArchiveKey(owner string, documentID uuid.UUID) string {
	sum := sha256.Sum256([]byte(owner))
	return fmt.Sprintf("documents/%s/%s.pdf", hex.EncodeToString(sum[:])[:16], documentID)
}
