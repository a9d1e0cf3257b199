package store

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/supabase-community/supabase-go"
)

// SupabaseConfig holds the storage connection settings.
type SupabaseConfig struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
}

// SupabaseStorage uploads synthesized audio objects and hands back public
// URLs for audio_ready notifications.
type SupabaseStorage struct {
	client  *supabase.Client
	baseURL string
	bucket  string
}

func NewSupabaseStorage(cfg SupabaseConfig) (*SupabaseStorage, error) {
	client, err := supabase.NewClient(cfg.URL, cfg.ServiceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &SupabaseStorage{
		client:  client,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		bucket:  cfg.Bucket,
	}, nil
}

// Upload stores the object and returns its public URL.
func (s *SupabaseStorage) Upload(key string, data []byte) (string, error) {
	if _, err := s.client.Storage.UploadFile(s.bucket, key, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("upload to supabase: %w", err)
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, key), nil
}
