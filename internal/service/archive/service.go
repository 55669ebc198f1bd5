package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/minio/minio-go/v7"

	"agenda-eventos/internal/service/cascade"
)

// Service stores a JSON snapshot of every deleted event in object storage.
type Service struct {
	client *minio.Client
	bucket string
}

func NewService(client *minio.Client, bucket string) *Service {
	return &Service{client: client, bucket: bucket}
}

func ObjectKey(snap cascade.Snapshot) string {
	return fmt.Sprintf("events/%s/%s.json", snap.Event.ID, snap.DeletedAt.UTC().Format("20060102T150405Z"))
}

func (s *Service) ArchiveEvent(ctx context.Context, snap cascade.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, ObjectKey(snap), bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot: %w", err)
	}
	return nil
}
