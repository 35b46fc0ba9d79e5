package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/rs/zerolog/log"
)

// AzureBackend keeps assets as blobs in one container, prefixed
// "originals/" and "thumbnails/".
type AzureBackend struct {
	client    *azblob.Client
	container string
}

// NewAzureBackend connects with a shared key. serviceURL may be empty to use
// the account's public endpoint.
func NewAzureBackend(accountName, accountKey, container, serviceURL string) (*AzureBackend, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}
	return &AzureBackend{client: client, container: container}, nil
}

// EnsureContainer creates the container if it does not exist yet.
func (b *AzureBackend) EnsureContainer(ctx context.Context) error {
	_, err := b.client.CreateContainer(ctx, b.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("failed to create container %s: %w", b.container, err)
	}
	return nil
}

func (b *AzureBackend) Put(ctx context.Context, kind Kind, name string, data []byte) error {
	if _, err := b.client.UploadBuffer(ctx, b.container, blobPath(kind, name), data, nil); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	return nil
}

func (b *AzureBackend) Get(ctx context.Context, kind Kind, name string) ([]byte, error) {
	resp, err := b.client.DownloadStream(ctx, b.container, blobPath(kind, name), nil)
	if isBlobNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}

	retryReader := resp.Body
	defer retryReader.Close()

	data, err := io.ReadAll(retryReader)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	return data, nil
}

func (b *AzureBackend) Remove(ctx context.Context, kind Kind, name string) error {
	_, err := b.client.DeleteBlob(ctx, b.container, blobPath(kind, name), nil)
	if err != nil && !isBlobNotFound(err) {
		return fmt.Errorf("delete failed: %w", err)
	}
	if err != nil {
		log.Debug().Str("blob", blobPath(kind, name)).Msg("blob already deleted")
	}
	return nil
}

func isBlobNotFound(err error) bool {
	if err == nil {
		return false
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return true
	}
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}
