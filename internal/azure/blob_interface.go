package azure

import (
	"context"
	"errors"
)

// ErrBlobNotFound is returned when an archived blob does not exist
var ErrBlobNotFound = errors.New("blob not found")

// ImportArchive stores raw tracking import payloads
type ImportArchive interface {
	UploadImport(ctx context.Context, patientID, condition, filename string, data []byte) (string, error)
	DownloadImport(ctx context.Context, blobName string) ([]byte, error)
	DeletePatientImports(ctx context.Context, patientID string) (int, error)
}

var (
	_ ImportArchive = (*BlobStorageClient)(nil)
	_ ImportArchive = (*MemoryArchive)(nil)
)
