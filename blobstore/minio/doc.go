// Package minio implements blobstore.BlobStore for MinIO and other
// S3-compatible object stores using the native MinIO client.
//
//	client, err := minio.New("localhost:9000", &miniogo.Options{...})
//	if err != nil { ... }
//	store := minio.NewStore(client, "my-bucket", "archives/")
package minio
