package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

// objectClient is the subset of the MinIO client the store relies on.
type objectClient interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	CopyObject(ctx context.Context, dst minio.CopyDestOptions, src minio.CopySrcOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	BucketExists(ctx context.Context, bucketName string) (bool, error)
}

// minioClient narrows GetObject to an io.ReadCloser so fakes can stand in for it.
type minioClient struct {
	*minio.Client
}

func (c minioClient) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return c.Client.GetObject(ctx, bucketName, objectName, opts)
}

// MinIOStore keeps blobs as objects in a single bucket, keyed by storage path.
// PutObject only makes an object visible once fully uploaded, so no temp area is needed.
type MinIOStore struct {
	client objectClient
	bucket string
	now    func() time.Time
}

// NewMinIOStore constructs a store on top of an existing bucket.
func NewMinIOStore(client *minio.Client, bucket string) *MinIOStore {
	return newMinIOStore(minioClient{Client: client}, bucket)
}

func newMinIOStore(client objectClient, bucket string) *MinIOStore {
	return &MinIOStore{client: client, bucket: bucket, now: time.Now}
}

func (s *MinIOStore) GeneratePath(tenant string) (string, error) {
	return generatePath(tenant)
}

func (s *MinIOStore) Write(ctx context.Context, p string, r io.Reader) (int64, error) {
	_, area, _, err := splitPath(p)
	if err != nil {
		return 0, err
	}
	if area == areaTemp {
		return 0, fmt.Errorf("%w: cannot write into temp area", ErrInvalidPath)
	}
	if _, err := s.client.StatObject(ctx, s.bucket, p, minio.StatObjectOptions{}); err == nil {
		return 0, fmt.Errorf("%w: %s", ErrBlobExists, p)
	} else if !isNoSuchKey(err) {
		return 0, storageError("stat", p, err)
	}

	info, err := s.client.PutObject(ctx, s.bucket, p, &contextReader{ctx: ctx, r: r}, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return 0, storageError("put", p, err)
	}
	return info.Size, nil
}

func (s *MinIOStore) Open(ctx context.Context, p string) (io.ReadCloser, int64, error) {
	if _, _, _, err := splitPath(p); err != nil {
		return nil, 0, err
	}
	stat, err := s.client.StatObject(ctx, s.bucket, p, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, 0, fmt.Errorf("%w: %s", ErrBlobNotFound, p)
		}
		return nil, 0, storageError("stat", p, err)
	}
	object, err := s.client.GetObject(ctx, s.bucket, p, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, storageError("get", p, err)
	}
	return object, stat.Size, nil
}

func (s *MinIOStore) Read(ctx context.Context, p string) ([]byte, error) {
	rc, _, err := s.Open(ctx, p)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, storageError("read", p, err)
	}
	return data, nil
}

func (s *MinIOStore) RelocateToDeleted(ctx context.Context, p, tenant string) (string, error) {
	owner, area, _, err := splitPath(p)
	if err != nil {
		return "", err
	}
	if owner != tenant || area != areaActive {
		return "", fmt.Errorf("%w: %s is not an active blob of %s", ErrInvalidPath, p, tenant)
	}
	dst := deletedPath(tenant, p, s.now())
	if err := s.Move(ctx, p, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func (s *MinIOStore) Move(ctx context.Context, src, dst string) error {
	if _, _, _, err := splitPath(src); err != nil {
		return err
	}
	if _, _, _, err := splitPath(dst); err != nil {
		return err
	}
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: dst},
		minio.CopySrcOptions{Bucket: s.bucket, Object: src},
	)
	if err != nil {
		if isNoSuchKey(err) {
			return fmt.Errorf("%w: %s", ErrBlobNotFound, src)
		}
		return storageError("copy", src, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, src, minio.RemoveObjectOptions{}); err != nil {
		return storageError("remove", src, err)
	}
	return nil
}

func (s *MinIOStore) Remove(ctx context.Context, p string) error {
	if _, _, _, err := splitPath(p); err != nil {
		return err
	}
	// RemoveObject succeeds for absent keys, so existence is checked first.
	if _, err := s.client.StatObject(ctx, s.bucket, p, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return fmt.Errorf("%w: %s", ErrBlobNotFound, p)
		}
		return storageError("stat", p, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, p, minio.RemoveObjectOptions{}); err != nil {
		return storageError("remove", p, err)
	}
	return nil
}

func (s *MinIOStore) FolderSize(ctx context.Context, prefix string) (int64, error) {
	objects, err := s.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, obj := range objects {
		total += obj.Size
	}
	return total, nil
}

func (s *MinIOStore) List(ctx context.Context, prefix string) ([]Object, error) {
	if err := validatePrefix(prefix); err != nil {
		return nil, err
	}
	var objects []Object
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix + "/", Recursive: true}) {
		if info.Err != nil {
			return nil, storageError("list", prefix, info.Err)
		}
		objects = append(objects, Object{Path: info.Key, Size: info.Size, ModTime: info.LastModified})
	}
	return objects, nil
}

func (s *MinIOStore) Tenants(ctx context.Context) ([]string, error) {
	var tenants []string
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: false}) {
		if info.Err != nil {
			return nil, storageError("list tenants in", s.bucket, info.Err)
		}
		name := strings.TrimSuffix(info.Key, "/")
		if strings.HasSuffix(info.Key, "/") && ValidateTenant(name) == nil {
			tenants = append(tenants, name)
		}
	}
	sort.Strings(tenants)
	return tenants, nil
}

// EnsureTenant only validates the name; object prefixes need no provisioning.
func (s *MinIOStore) EnsureTenant(ctx context.Context, tenant string) error {
	return ValidateTenant(tenant)
}

func (s *MinIOStore) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return storageError("check bucket", s.bucket, err)
	}
	if !ok {
		return fmt.Errorf("%w: bucket %s does not exist", ErrStorageIO, s.bucket)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
