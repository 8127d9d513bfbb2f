package minio

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mmapio/blobstore"
)

// newTestStore connects to the MinIO instance named by MINIO_ENDPOINT
// (e.g. "localhost:9000"). Without one the integration tests are skipped.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set")
	}

	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	if accessKey == "" {
		accessKey = "minioadmin"
	}
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	if secretKey == "" {
		secretKey = "minioadmin"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
	})
	require.NoError(t, err)

	ctx := context.Background()
	bucket := fmt.Sprintf("mmapio-test-%d", time.Now().UnixNano())
	require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	t.Cleanup(func() {
		_ = client.RemoveBucketWithOptions(ctx, bucket, minio.RemoveBucketOptions{ForceDelete: true})
	})

	return NewStore(client, bucket, "archives")
}

func TestStore_PutOpen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	content := []byte("minio blob payload")
	require.NoError(t, store.Put(ctx, "img", content))

	blob, err := store.Open(ctx, "img")
	require.NoError(t, err)
	defer blob.Close()

	assert.Equal(t, int64(len(content)), blob.Size())

	buf := make([]byte, len(content))
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(content), n)
	assert.Equal(t, content, buf)
}

func TestStore_OpenMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Open(context.Background(), "absent")
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestStore_CreateRangedList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	w, err := store.Create(ctx, "x/streamed")
	require.NoError(t, err)
	_, err = w.Write([]byte("0123456789"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	blob, err := store.Open(ctx, "x/streamed")
	require.NoError(t, err)
	defer blob.Close()

	rc, err := blob.ReadRange(ctx, 3, 4)
	require.NoError(t, err)
	defer rc.Close()

	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("3456"), content)

	names, err := store.List(ctx, "x/")
	require.NoError(t, err)
	assert.Equal(t, []string{"x/streamed"}, names)

	require.NoError(t, store.Delete(ctx, "x/streamed"))
	_, err = store.Open(ctx, "x/streamed")
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}
