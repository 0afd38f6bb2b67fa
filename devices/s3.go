package devices

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/brettbedarf/filenode/filesystem"
	"github.com/brettbedarf/filenode/internal/util"
	"github.com/rs/zerolog"
)

// s3API is the subset of the S3 client used by [S3Device]
type s3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Options configure an [S3Device]
type S3Options struct {
	Bucket string
	// Prefix is the key prefix the device root maps to
	Prefix    string
	Region    string
	Endpoint  string // custom endpoint, e.g. MinIO or LocalStack
	AccessKey string
	SecretKey string
}

// S3Device maps a bucket key prefix to a directory tree. Directories are
// common key prefixes; Mkdir writes an empty "dir/" marker object.
type S3Device struct {
	name   string
	bucket string
	prefix string
	client s3API
	logger zerolog.Logger
}

// NewS3Device creates a device for opts.Bucket using the default AWS
// credential chain unless static keys are given
func NewS3Device(ctx context.Context, opts S3Options) (*S3Device, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 device requires a bucket")
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Device(opts.Bucket, opts.Prefix, client), nil
}

func newS3Device(bucket, prefix string, client s3API) *S3Device {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	name := "s3:" + bucket
	return &S3Device{
		name:   name,
		bucket: bucket,
		prefix: prefix,
		client: client,
		logger: util.GetLogger("Device").With().Str("device", name).Logger(),
	}
}

// key returns the object key of device path p
func (d *S3Device) key(p string) string {
	return d.prefix + strings.TrimPrefix(path.Clean("/"+p), "/")
}

// dirKey returns the key prefix of the directory p, ending with "/" unless root
func (d *S3Device) dirKey(p string) string {
	k := d.key(p)
	if k == "" || strings.HasSuffix(k, "/") {
		return k
	}
	return k + "/"
}

func isS3NotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return stderrors.As(err, &nf) || stderrors.As(err, &nsk)
}

func notExist(op, p string) error {
	return &fs.PathError{Op: op, Path: p, Err: fs.ErrNotExist}
}

func (d *S3Device) Name() string {
	return d.name
}

func (d *S3Device) Capabilities() filesystem.Capabilities {
	return filesystem.Capabilities{
		Writable: true,
		RawCopy:  true,
	}
}

func (d *S3Device) Stat(ctx context.Context, p string) (filesystem.Props, error) {
	name := path.Base(path.Clean("/" + p))
	dirProps := filesystem.Props{Name: name, Mode: fs.ModeDir | defaultDirMode}
	if path.Clean("/"+p) == "/" {
		return dirProps, nil
	}

	out, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.key(p)),
	})
	if err == nil {
		props := filesystem.Props{Name: name, Mode: defaultFileMode}
		if out.ContentLength != nil {
			props.Size = *out.ContentLength
		}
		if out.LastModified != nil {
			props.ModTime = *out.LastModified
		}
		return props, nil
	}
	if !isS3NotFound(err) {
		return filesystem.Props{}, fmt.Errorf("head object %s: %w", d.key(p), err)
	}

	// no object: a directory exists when any key lives below it
	list, err := d.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(d.bucket),
		Prefix:  aws.String(d.dirKey(p)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return filesystem.Props{}, fmt.Errorf("list objects %s: %w", d.dirKey(p), err)
	}
	if len(list.Contents) == 0 && len(list.CommonPrefixes) == 0 {
		return filesystem.Props{}, notExist("stat", p)
	}
	return dirProps, nil
}

func (d *S3Device) List(ctx context.Context, p string) ([]filesystem.Props, error) {
	prefix := d.dirKey(p)
	paginator := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(d.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var out []filesystem.Props
	found := false
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects %s: %w", prefix, err)
		}
		for _, cp := range page.CommonPrefixes {
			found = true
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name == "" {
				continue
			}
			out = append(out, filesystem.Props{Name: name, Mode: fs.ModeDir | defaultDirMode})
		}
		for _, obj := range page.Contents {
			found = true
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" {
				// directory marker
				continue
			}
			props := filesystem.Props{Name: name, Mode: defaultFileMode}
			if obj.Size != nil {
				props.Size = *obj.Size
			}
			if obj.LastModified != nil {
				props.ModTime = *obj.LastModified
			}
			out = append(out, props)
		}
	}
	if !found && path.Clean("/"+p) != "/" {
		return nil, notExist("list", p)
	}
	return out, nil
}

func (d *S3Device) OpenRead(ctx context.Context, p string) (io.ReadCloser, error) {
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.key(p)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, notExist("open", p)
		}
		return nil, fmt.Errorf("get object %s: %w", d.key(p), err)
	}
	return out.Body, nil
}

// OpenWrite buffers the content and uploads it on Close
func (d *S3Device) OpenWrite(ctx context.Context, p string) (io.WriteCloser, error) {
	return &s3Writer{ctx: ctx, d: d, key: d.key(p)}, nil
}

type s3Writer struct {
	ctx    context.Context
	d      *S3Device
	key    string
	buf    bytes.Buffer
	closed bool
}

func (w *s3Writer) Write(b []byte) (int, error) {
	if w.closed {
		return 0, fs.ErrClosed
	}
	return w.buf.Write(b)
}

func (w *s3Writer) Close() error {
	if w.closed {
		return fs.ErrClosed
	}
	w.closed = true
	_, err := w.d.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket:        aws.String(w.d.bucket),
		Key:           aws.String(w.key),
		Body:          bytes.NewReader(w.buf.Bytes()),
		ContentLength: aws.Int64(int64(w.buf.Len())),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", w.key, err)
	}
	w.d.logger.Debug().Str("key", w.key).Int("size", w.buf.Len()).Msg("S3 put object")
	return nil
}

func (d *S3Device) Delete(ctx context.Context, p string) error {
	props, err := d.Stat(ctx, p)
	if err != nil {
		return err
	}
	key := d.key(p)
	if props.IsDir() {
		key = d.dirKey(p)
	}
	if _, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// Mkdir writes a directory marker. Parents need no markers since S3 has no
// real directories, so recursive makes no difference.
func (d *S3Device) Mkdir(ctx context.Context, p string, _ bool) error {
	key := d.dirKey(p)
	if key == "" {
		return nil
	}
	if _, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	}); err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (d *S3Device) Rename(context.Context, string, string) error {
	return filesystem.ErrNotSupported
}

func (d *S3Device) Copy(ctx context.Context, src, dst string) error {
	if _, err := d.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(d.bucket),
		Key:        aws.String(d.key(dst)),
		CopySource: aws.String(d.bucket + "/" + d.key(src)),
	}); err != nil {
		if isS3NotFound(err) {
			return notExist("copy", src)
		}
		return fmt.Errorf("copy %s -> %s: %w", d.key(src), d.key(dst), err)
	}
	d.logger.Debug().Str("src", src).Str("dst", dst).Msg("S3 copy object")
	return nil
}

func (d *S3Device) SetModTime(context.Context, string, time.Time) error {
	return filesystem.ErrNotSupported
}

func (d *S3Device) Chmod(context.Context, string, fs.FileMode) error {
	return filesystem.ErrNotSupported
}
