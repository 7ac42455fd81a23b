package storage

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/sirupsen/logrus"
)

const csvContentType = "text/csv; charset=utf-8"

// AzureStorage keeps CSV exports as block blobs in one container
type AzureStorage struct {
	client    *azblob.Client
	container string
}

var _ StorageInterface = (*AzureStorage)(nil)

// NewAzureStorage authenticates with the default Azure credential chain and
// creates the export container when it is missing
func NewAzureStorage(ctx context.Context, account, containerName string) (*AzureStorage, error) {
	if account == "" {
		return nil, fmt.Errorf("storage account name is required")
	}

	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	client, err := azblob.NewClient(fmt.Sprintf("https://%s.blob.core.windows.net/", account), credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
	}

	s := newAzureStorage(client, containerName)
	if err := s.ensureContainer(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func newAzureStorage(client *azblob.Client, containerName string) *AzureStorage {
	return &AzureStorage{client: client, container: containerName}
}

func (s *AzureStorage) ensureContainer(ctx context.Context) error {
	_, err := s.client.CreateContainer(ctx, s.container, nil)
	switch {
	case err == nil:
		logrus.Infof("Created export container %s", s.container)
	case bloberror.HasCode(err, bloberror.ContainerAlreadyExists):
		logrus.Debugf("Export container %s already exists", s.container)
	default:
		return fmt.Errorf("failed to create container %s: %w", s.container, err)
	}
	return nil
}

// Store uploads an export as CSV, replacing any blob of the same name
func (s *AzureStorage) Store(ctx context.Context, name string, data []byte) error {
	contentType := csvContentType
	_, err := s.client.UploadBuffer(ctx, s.container, name, data, &azblob.UploadBufferOptions{
		BlockSize:   1024 * 1024,
		Concurrency: 3,
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return fmt.Errorf("failed to upload export %s: %w", name, err)
	}

	logrus.Infof("Stored export %s (%d bytes) in container %s", name, len(data), s.container)
	return nil
}

// Retrieve downloads an export
func (s *AzureStorage) Retrieve(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, name, nil)
	if err != nil {
		return nil, blobError("download", name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read export %s: %w", name, err)
	}
	return data, nil
}

// List returns the exports whose name starts with prefix, sorted by name
func (s *AzureStorage) List(ctx context.Context, prefix string) ([]Object, error) {
	opts := &container.ListBlobsFlatOptions{}
	if prefix != "" {
		opts.Prefix = &prefix
	}

	var objects []Object
	pager := s.client.NewListBlobsFlatPager(s.container, opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list exports under %q: %w", prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if obj, ok := blobObject(item); ok {
				objects = append(objects, obj)
			}
		}
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

// Delete removes an export
func (s *AzureStorage) Delete(ctx context.Context, name string) error {
	if _, err := s.client.DeleteBlob(ctx, s.container, name, nil); err != nil {
		return blobError("delete", name, err)
	}
	logrus.Debugf("Deleted export %s from container %s", name, s.container)
	return nil
}

func blobObject(item *container.BlobItem) (Object, bool) {
	if item == nil || item.Name == nil {
		return Object{}, false
	}
	obj := Object{Name: *item.Name}
	if p := item.Properties; p != nil {
		if p.ContentLength != nil {
			obj.Size = *p.ContentLength
		}
		if p.LastModified != nil {
			obj.ModifiedAt = p.LastModified.UTC()
		}
	}
	return obj, true
}

func blobError(op, name string, err error) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return fmt.Errorf("%s %s: %w", op, name, ErrNotFound)
	}
	return fmt.Errorf("failed to %s export %s: %w", op, name, err)
}
