package storage

import (
	"context"
	"fmt"

	"github.com/llmify/llmstxt-service/common/urlsource"

	"github.com/rs/zerolog/log"
)

// signedURLExpiry is how long artifact download links stay valid, in seconds
const signedURLExpiry = int64(3600)

// ArtifactStore persists finished llms.txt documents as objects. The
// database keeps the canonical copy; object storage serves downloads.
type ArtifactStore struct {
	service StorageService
	bucket  string
}

// NewArtifactStore creates an artifact store over a storage backend
func NewArtifactStore(service StorageService, bucket string) *ArtifactStore {
	return &ArtifactStore{service: service, bucket: bucket}
}

// ObjectName returns the canonical object path for one generation artifact
func ObjectName(hostname, provider string, generationID int64) string {
	return fmt.Sprintf("llms/%s/%s/%d/llms.txt", urlsource.NormalizeHostname(hostname), provider, generationID)
}

// Save uploads one generation's llms.txt document
func (s *ArtifactStore) Save(ctx context.Context, hostname, provider string, generationID int64, document string) (string, error) {
	objectName := ObjectName(hostname, provider, generationID)
	name, err := s.service.Upload(ctx, s.bucket, objectName, []byte(document), "text/plain; charset=utf-8")
	if err != nil {
		return "", fmt.Errorf("saving artifact %s: %w", objectName, err)
	}

	log.Info().
		Str("object", name).
		Int64("generationID", generationID).
		Msg("Stored llms.txt artifact")
	return name, nil
}

// DownloadURL returns a time-limited link to one artifact
func (s *ArtifactStore) DownloadURL(ctx context.Context, hostname, provider string, generationID int64) (string, error) {
	objectName := ObjectName(hostname, provider, generationID)
	url, err := s.service.GetSignedURL(ctx, s.bucket, objectName, signedURLExpiry)
	if err != nil {
		return "", fmt.Errorf("signing artifact URL %s: %w", objectName, err)
	}
	return url, nil
}
