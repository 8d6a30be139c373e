package imagestore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewLocalStore(dir, "/static/uploads")
	require.NoError(t, err)

	url, err := store.Save(context.Background(), "../evil/result_a.jpg", []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	require.Equal(t, "/static/uploads/result_a.jpg", url)

	data, err := os.ReadFile(filepath.Join(dir, "result_a.jpg"))
	require.NoError(t, err)
	require.Equal(t, []byte("jpeg"), data)
}

func TestLocalStore_CancelledContext(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/static")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Save(ctx, "a.jpg", nil, "image/jpeg")
	require.ErrorIs(t, err, context.Canceled)
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store_Save(t *testing.T) {
	client := &fakeS3{}
	store := NewS3StoreWithClient(client, S3Options{Bucket: "meals", Region: "ap-east-1", Prefix: "/uploads/"})

	url, err := store.Save(context.Background(), "result_a.jpg", []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	require.Equal(t, "https://meals.s3.ap-east-1.amazonaws.com/uploads/result_a.jpg", url)
	require.Equal(t, "meals", aws.ToString(client.input.Bucket))
	require.Equal(t, "uploads/result_a.jpg", aws.ToString(client.input.Key))
	require.Equal(t, "image/jpeg", aws.ToString(client.input.ContentType))
	require.Equal(t, []byte("jpeg"), client.body)
}

func TestS3Store_PublicURL(t *testing.T) {
	store := NewS3StoreWithClient(&fakeS3{}, S3Options{Bucket: "meals", PublicURL: "https://cdn.example.com/"})

	url, err := store.Save(context.Background(), "x.png", nil, "image/png")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/x.png", url)
}

func TestS3Store_Error(t *testing.T) {
	store := NewS3StoreWithClient(&fakeS3{err: errors.New("denied")}, S3Options{Bucket: "meals"})

	_, err := store.Save(context.Background(), "x.png", nil, "image/png")
	require.ErrorContains(t, err, "denied")
}
