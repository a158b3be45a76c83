package client

import (
	"context"
	"fmt"
	"log"
)

// MockStorageClient is the development fallback used when R2 is not
// configured. Artifacts are dropped and fake public URLs returned.
type MockStorageClient struct {
	baseURL string
}

// NewMockStorageClient creates the fallback storage client.
func NewMockStorageClient() *MockStorageClient {
	return &MockStorageClient{baseURL: "https://storage.podforge.local"}
}

func (c *MockStorageClient) UploadBytes(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	log.Printf("[MockStorage] dropped %d bytes for key %s", len(data), key)
	return c.GetPublicURL(key), nil
}

func (c *MockStorageClient) Delete(ctx context.Context, key string) error {
	return nil
}

func (c *MockStorageClient) GetPublicURL(key string) string {
	return fmt.Sprintf("%s/%s", c.baseURL, key)
}
