package azure

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"go.uber.org/zap"
)

const importPrefix = "imports"

// BlobStorageClient archives raw tracking imports in Azure Blob Storage
type BlobStorageClient struct {
	client        *azblob.Client
	containerName string
	logger        *zap.Logger
}

// NewBlobStorageClient creates a client authenticated with a shared account key.
// An empty endpoint selects the public Azure endpoint of the account.
func NewBlobStorageClient(accountName, accountKey, endpoint, containerName string, logger *zap.Logger) (*BlobStorageClient, error) {
	if accountName == "" || accountKey == "" || containerName == "" {
		return nil, fmt.Errorf("accountName, accountKey, and containerName are required")
	}

	serviceURL := endpoint
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)
	}

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared key credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	return &BlobStorageClient{
		client:        client,
		containerName: containerName,
		logger:        logger,
	}, nil
}

// NewBlobStorageClientFromConnectionString creates a client from a storage connection string
func NewBlobStorageClientFromConnectionString(connectionString, containerName string, logger *zap.Logger) (*BlobStorageClient, error) {
	if connectionString == "" || containerName == "" {
		return nil, fmt.Errorf("connectionString and containerName are required")
	}

	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	return &BlobStorageClient{
		client:        client,
		containerName: containerName,
		logger:        logger,
	}, nil
}

// EnsureContainer creates the archive container if it does not exist yet
func (c *BlobStorageClient) EnsureContainer(ctx context.Context) error {
	_, err := c.client.CreateContainer(ctx, c.containerName, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("failed to create container %s: %w", c.containerName, err)
	}
	return nil
}

// ImportBlobName returns the archive name of a raw import
func ImportBlobName(patientID, condition, filename string, at time.Time) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		name = "import.json"
	}
	name = strings.ReplaceAll(name, " ", "_")
	return fmt.Sprintf("%s/%s/%s/%d-%s", importPrefix, patientID, condition, at.UnixMilli(), name)
}

func patientImportPrefix(patientID string) string {
	return fmt.Sprintf("%s/%s/", importPrefix, patientID)
}

// UploadImport stores the raw payload of a tracking import and returns its blob name
func (c *BlobStorageClient) UploadImport(ctx context.Context, patientID, condition, filename string, data []byte) (string, error) {
	blobName := ImportBlobName(patientID, condition, filename, time.Now().UTC())

	c.logger.Info("uploading import to blob storage",
		zap.String("blob_name", blobName),
		zap.Int("size_bytes", len(data)),
	)

	blobClient := c.client.ServiceClient().NewContainerClient(c.containerName).NewBlockBlobClient(blobName)

	_, err := blobClient.UploadBuffer(ctx, data, &azblob.UploadBufferOptions{
		Metadata: map[string]*string{
			"contenttype": toPtr("application/json"),
			"condition":   toPtr(condition),
		},
	})
	if err != nil {
		c.logger.Error("failed to upload import",
			zap.String("blob_name", blobName),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to upload import: %w", err)
	}

	return blobName, nil
}

// DownloadImport returns the raw payload of an archived import
func (c *BlobStorageClient) DownloadImport(ctx context.Context, blobName string) ([]byte, error) {
	blobClient := c.client.ServiceClient().NewContainerClient(c.containerName).NewBlockBlobClient(blobName)

	downloadResponse, err := blobClient.DownloadStream(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, blobName)
		}
		c.logger.Error("failed to download import",
			zap.String("blob_name", blobName),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to download import: %w", err)
	}
	defer downloadResponse.Body.Close()

	data, err := io.ReadAll(downloadResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read import data: %w", err)
	}

	return data, nil
}

// DeletePatientImports removes every archived import of a patient
func (c *BlobStorageClient) DeletePatientImports(ctx context.Context, patientID string) (int, error) {
	prefix := patientImportPrefix(patientID)
	pager := c.client.NewListBlobsFlatPager(c.containerName, &azblob.ListBlobsFlatOptions{Prefix: &prefix})

	deleted := 0
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("failed to list imports: %w", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			if _, err := c.client.DeleteBlob(ctx, c.containerName, *item.Name, nil); err != nil {
				if bloberror.HasCode(err, bloberror.BlobNotFound) {
					continue
				}
				return deleted, fmt.Errorf("failed to delete import %s: %w", *item.Name, err)
			}
			deleted++
		}
	}

	c.logger.Info("deleted archived imports",
		zap.String("patient_id", patientID),
		zap.Int("count", deleted),
	)
	return deleted, nil
}

func toPtr(s string) *string {
	return &s
}
