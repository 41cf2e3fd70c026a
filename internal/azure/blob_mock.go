package azure

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryArchive is an in-memory ImportArchive used in tests and when no storage account is configured
type MemoryArchive struct {
	Storage map[string][]byte
	mu      sync.RWMutex
	now     func() time.Time
	logger  *zap.Logger
}

// NewMemoryArchive creates an empty in-memory archive
func NewMemoryArchive(logger *zap.Logger) *MemoryArchive {
	return &MemoryArchive{
		Storage: make(map[string][]byte),
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
}

// UploadImport stores a copy of data under a unique import name
func (a *MemoryArchive) UploadImport(ctx context.Context, patientID, condition, filename string, data []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	at := a.now()
	blobName := ImportBlobName(patientID, condition, filename, at)
	for _, exists := a.Storage[blobName]; exists; _, exists = a.Storage[blobName] {
		at = at.Add(time.Millisecond)
		blobName = ImportBlobName(patientID, condition, filename, at)
	}
	a.Storage[blobName] = bytes.Clone(data)

	if a.logger != nil {
		a.logger.Debug("memory archive: import stored",
			zap.String("blob_name", blobName),
			zap.Int("size_bytes", len(data)),
		)
	}

	return blobName, nil
}

// DownloadImport returns a copy of a stored import
func (a *MemoryArchive) DownloadImport(ctx context.Context, blobName string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	data, exists := a.Storage[blobName]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, blobName)
	}
	return bytes.Clone(data), nil
}

// DeletePatientImports removes all imports stored for a patient
func (a *MemoryArchive) DeletePatientImports(ctx context.Context, patientID string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	prefix := patientImportPrefix(patientID)
	deleted := 0
	for name := range a.Storage {
		if strings.HasPrefix(name, prefix) {
			delete(a.Storage, name)
			deleted++
		}
	}
	return deleted, nil
}

// ListBlobs returns all blob names in sorted order
func (a *MemoryArchive) ListBlobs() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	blobs := make([]string, 0, len(a.Storage))
	for name := range a.Storage {
		blobs = append(blobs, name)
	}
	sort.Strings(blobs)
	return blobs
}
