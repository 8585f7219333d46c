package s3

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/FranksOps/reliefscope/internal/sink"
)

type fakeClient struct {
	key         string
	contentType string
	body        string
	err         error
}

func (f *fakeClient) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.key = aws.ToString(in.Key)
	f.contentType = aws.ToString(in.ContentType)
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, nil
}

func TestPut(t *testing.T) {
	fc := &fakeClient{}
	s := NewWithClient(fc, "reports", "scrapes/")

	loc, err := s.Put(context.Background(), "noticias.csv", []byte("Title\nA\n"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if loc != "s3://reports/scrapes/noticias.csv" {
		t.Errorf("unexpected location %s", loc)
	}
	if fc.key != "scrapes/noticias.csv" {
		t.Errorf("unexpected key %s", fc.key)
	}
	if !strings.HasPrefix(fc.contentType, "text/csv") {
		t.Errorf("unexpected content type %s", fc.contentType)
	}
	if fc.body != "Title\nA\n" {
		t.Errorf("unexpected body %q", fc.body)
	}
}

func TestPut_Errors(t *testing.T) {
	s := NewWithClient(&fakeClient{err: errors.New("access denied")}, "reports", "")
	if _, err := s.Put(context.Background(), "artigos.txt", []byte("x")); err == nil {
		t.Fatalf("expected upload error")
	}
	if _, err := s.Put(context.Background(), "../x", nil); !errors.Is(err, sink.ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
}

func TestNew_RequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Fatalf("expected error without bucket")
	}
}

func TestS3Live(t *testing.T) {
	bucket := os.Getenv("RELIEFSCOPE_TEST_S3_BUCKET")
	endpoint := os.Getenv("RELIEFSCOPE_TEST_S3_ENDPOINT")
	if bucket == "" || endpoint == "" {
		t.Skip("Skipping S3 sink test: RELIEFSCOPE_TEST_S3_BUCKET and RELIEFSCOPE_TEST_S3_ENDPOINT must be set (e.g. with MinIO)")
	}

	s, err := New(context.Background(), Options{
		Bucket:   bucket,
		Region:   "us-east-1",
		Prefix:   "test-" + t.Name() + "/",
		Endpoint: endpoint,
	})
	if err != nil {
		t.Fatalf("s3.New: %v", err)
	}
	if _, err := s.Put(context.Background(), "artigos.txt", []byte("line\n")); err != nil {
		t.Fatalf("put: %v", err)
	}
}
