package devices

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/brettbedarf/filenode/config"
	"github.com/brettbedarf/filenode/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var s3Time = time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)

// fakeS3 keeps objects of a single bucket in memory
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	copies  int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) put(key, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = []byte(body)
}

func (f *fakeS3) get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[key]
	return string(b), ok
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	body, ok := f.get(aws.ToString(in.Key))
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(body))),
		LastModified:  aws.Time(s3Time),
	}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.get(aws.ToString(in.Key))
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.put(aws.ToString(in.Key), string(b))
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	_, src, _ := strings.Cut(aws.ToString(in.CopySource), "/")
	body, ok := f.get(src)
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	f.put(aws.ToString(in.Key), body)
	f.mu.Lock()
	f.copies++
	f.mu.Unlock()
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix, delim := aws.ToString(in.Prefix), aws.ToString(in.Delimiter)
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	seen := map[string]bool{}
	for _, k := range keys {
		rest := strings.TrimPrefix(k, prefix)
		if delim != "" {
			if i := strings.Index(rest, delim); i >= 0 {
				cp := prefix + rest[:i+len(delim)]
				if !seen[cp] {
					seen[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(cp)})
				}
				continue
			}
		}
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(f.objects[k]))),
			LastModified: aws.Time(s3Time),
		})
		if in.MaxKeys != nil && int32(len(out.Contents)) >= *in.MaxKeys {
			break
		}
	}
	return out, nil
}

func TestS3Device_StatAndList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fake := newFakeS3()
	fake.put("root/docs/a.txt", "aaa")
	fake.put("root/docs/sub/b.txt", "b")
	fake.put("root/top.txt", "top")
	fake.put("other/x", "ignored")
	dev := newS3Device("bucket", "/root/", fake)

	file, err := dev.Stat(ctx, "/docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(3), file.Size)
	assert.True(t, file.ModTime.Equal(s3Time))

	dir, err := dev.Stat(ctx, "/docs")
	require.NoError(t, err)
	assert.True(t, dir.IsDir(), "a common prefix is a directory")

	_, err = dev.Stat(ctx, "/nope")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	entries, err := dev.List(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs", "top.txt"}, propNames(entries))

	entries, err = dev.List(ctx, "/docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "sub"}, propNames(entries))

	_, err = dev.List(ctx, "/nope")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestS3Device_WriteReadDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fake := newFakeS3()
	dev := newS3Device("bucket", "", fake)

	w, err := dev.OpenWrite(ctx, "/dir/f.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("payload"))
	require.NoError(t, err)
	_, ok := fake.get("dir/f.txt")
	assert.False(t, ok, "uploaded on close")
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Close(), fs.ErrClosed)

	body, ok := fake.get("dir/f.txt")
	require.True(t, ok)
	assert.Equal(t, "payload", body)

	r, err := dev.OpenRead(ctx, "/dir/f.txt")
	require.NoError(t, err)
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(b))

	require.NoError(t, dev.Delete(ctx, "/dir/f.txt"))
	_, err = dev.OpenRead(ctx, "/dir/f.txt")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestS3Device_MkdirMarker(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fake := newFakeS3()
	dev := newS3Device("bucket", "p", fake)

	require.NoError(t, dev.Mkdir(ctx, "/empty", true))

	_, ok := fake.get("p/empty/")
	assert.True(t, ok)
	props, err := dev.Stat(ctx, "/empty")
	require.NoError(t, err)
	assert.True(t, props.IsDir())
	entries, err := dev.List(ctx, "/empty")
	require.NoError(t, err)
	assert.Empty(t, entries, "the marker is not an entry")

	require.NoError(t, dev.Delete(ctx, "/empty"))
	_, ok = fake.get("p/empty/")
	assert.False(t, ok)
}

func TestS3Device_RawCopyThroughRegistry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fake := newFakeS3()
	fake.put("src/a.txt", "alpha")
	fake.put("src/nested/b.txt", "beta")
	reg := filesystem.NewRegistry(config.NewDefaultConfig(), NewMemoryDevice("root"))
	t.Cleanup(reg.Close)
	reg.Mount("/s3", newS3Device("bucket", "", fake))

	cmd := filesystem.NewCommand(filesystem.CmdCopyTree, reg.Get("/s3/src"), reg.Get("/s3/dst"))
	cmd.Copy.Exist = filesystem.ExistOverwrite
	p, err := reg.Execute(ctx, cmd, true, nil)

	require.NoError(t, err)
	assert.Equal(t, int64(2), p.Snapshot().Files)
	body, ok := fake.get("dst/nested/b.txt")
	require.True(t, ok)
	assert.Equal(t, "beta", body)
	assert.Equal(t, 2, fake.copies, "objects are copied server side")
}

func TestS3Device_UploadFromMemory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fake := newFakeS3()
	mem := NewMemoryDevice("root")
	w, err := mem.OpenWrite(ctx, "/up.txt")
	require.NoError(t, err)
	_, err = io.Copy(w, bytes.NewBufferString("uploaded"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	reg := filesystem.NewRegistry(config.NewDefaultConfig(), mem)
	t.Cleanup(reg.Close)
	reg.Mount("/s3", newS3Device("bucket", "backup", fake))

	_, err = reg.Execute(ctx, filesystem.NewCommand(filesystem.CmdCopyTree, reg.Get("/up.txt"), reg.Get("/s3/up.txt")), true, nil)

	require.NoError(t, err)
	body, ok := fake.get("backup/up.txt")
	require.True(t, ok)
	assert.Equal(t, "uploaded", body)
}
