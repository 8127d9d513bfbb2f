// Package s3 implements blobstore.BlobStore for Amazon S3.
//
// Reads use ranged GETs so partial fetches do not transfer whole objects.
// Writes stream through the SDK's parallel multipart uploader, so archives
// larger than memory upload without buffering.
//
//	client, err := s3.NewDefaultClient(ctx)
//	if err != nil { ... }
//	store := s3.NewStore(client, "my-bucket", "archives/")
package s3
