// Package storage provides an abstraction layer for the CDN mirror.
//
// It wraps the MinIO Go client to provide a simplified interface for the
// operations the asset mirror needs: checking bucket existence, uploading
// objects, and removing objects for deleted records. This abstraction
// supports both AWS S3 and self-hosted MinIO instances.
//
// # Client Interface
//
// The Client interface abstracts the underlying storage provider, making it
// easier to mock storage interactions for unit testing (as seen in
// core/storage/mocks).
//
// # Usage
//
//	client, err := storage.NewClient(config)
//	exists, err := client.BucketExists(ctx, "portfolio")
package storage
