package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]map[string]string
	putErr  error
}

func newMemS3() *memS3 {
	return &memS3{objects: map[string][]byte{}, meta: map[string]map[string]string{}}
}

func (m *memS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Bucket+"/"+*in.Key] = data
	m.meta[*in.Bucket+"/"+*in.Key] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

type fakePresigner struct{}

func (fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &v4.PresignedHTTPRequest{URL: "https://s3.local/" + *in.Bucket + "/" + *in.Key + "?X-Amz-Expires=" + opts.Expires.String()}, nil
}

func hashOf(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func TestS3Store_PutGet(t *testing.T) {
	mem := newMemS3()
	store := NewS3StoreWithClient(mem, fakePresigner{}, "ordvault", "blobs")

	payload := []byte(strings.Repeat("long article body ", 200))
	hash := hashOf(payload)

	key, err := store.Put(context.Background(), hash, payload)
	require.NoError(t, err)
	assert.Equal(t, "blobs/inscriptions/"+hash[:2]+"/"+hash+".br", key)

	stored := mem.objects["ordvault/"+key]
	assert.Less(t, len(stored), len(payload), "payload must be compressed")
	assert.Equal(t, hash, mem.meta["ordvault/"+key]["sha256"])

	got, err := store.Get(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestS3Store_Get_Errors(t *testing.T) {
	mem := newMemS3()
	store := NewS3StoreWithClient(mem, nil, "b", "")

	_, err := store.Get(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, common.ErrNotFound)

	payload := []byte("original")
	_, err = store.Put(context.Background(), hashOf(payload), payload)
	require.NoError(t, err)

	// stored under the wrong hash
	wrong := hashOf([]byte("other"))
	mem.objects["b/"+store.Key(wrong)] = mem.objects["b/"+store.Key(hashOf(payload))]
	_, err = store.Get(context.Background(), wrong)
	assert.ErrorIs(t, err, common.ErrCorruptData)

	mem.objects["b/"+store.Key("garbage")] = []byte("not brotli at all")
	_, err = store.Get(context.Background(), "garbage")
	assert.ErrorIs(t, err, common.ErrCorruptData)
}

func TestS3Store_Put_Errors(t *testing.T) {
	mem := newMemS3()
	mem.putErr = errors.New("access denied")
	store := NewS3StoreWithClient(mem, nil, "b", "")

	_, err := store.Put(context.Background(), "", []byte("x"))
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = store.Put(context.Background(), "abcd", []byte("x"))
	assert.ErrorIs(t, err, common.ErrStore)
	assert.ErrorContains(t, err, "access denied")
}

func TestS3Store_PresignGet(t *testing.T) {
	store := NewS3StoreWithClient(newMemS3(), fakePresigner{}, "b", "")

	url, err := store.PresignGet(context.Background(), "abcdef", 0)
	require.NoError(t, err)
	assert.Contains(t, url, "inscriptions/ab/abcdef.br")
	assert.Contains(t, url, "15m0s")

	_, err = NewS3StoreWithClient(newMemS3(), nil, "b", "").PresignGet(context.Background(), "abcdef", time.Minute)
	assert.Error(t, err)
}

func TestNewS3Store_Config(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origNewPre := newS3PresignClient
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				t.Fatalf("load options fn error: %v", err)
			}
		}
		if lo.Region != "us-east-1" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		if lo.Credentials == nil {
			t.Fatalf("static credentials not applied")
		}
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) Presigner { return fakePresigner{} }

	store, err := NewS3Store(context.Background(), Config{
		Region:    "us-east-1",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Endpoint:  "http://127.0.0.1:9000",
		Bucket:    "ordvault",
	})
	require.NoError(t, err)
	require.NotNil(t, store)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)

	_, err = NewS3Store(context.Background(), Config{})
	assert.ErrorIs(t, err, common.ErrValidation)

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}
	_, err = NewS3Store(context.Background(), Config{Bucket: "b"})
	assert.ErrorContains(t, err, "no config")
}
