package waybill

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/waybill-tracker/internal/province"
	"github.com/zombor/waybill-tracker/internal/scanning"
)

// ErrDuplicateImage is returned when an upload duplicates an already-known
// image. The caller decides how to surface it; the upload is not stored.
var ErrDuplicateImage = errors.New("duplicate image")

// IDGenerator generates unique IDs for images and batches
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// UploadFile is one file received from the upload pipeline
type UploadFile struct {
	Filename     string
	ContentType  string
	Data         []byte
	LastModified int64 // Epoch milliseconds as reported by the client, 0 if unknown
}

// Service handles waybill image operations
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	detector    *Detector
	corrector   *province.Corrector
	detectOpts  DetectOptions
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, storage Storage, detectOpts DetectOptions) *Service {
	return NewServiceWithDeps(db, scanner, storage, detectOpts, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, detectOpts DetectOptions, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		detector:    NewDetector(),
		corrector:   province.NewCorrector(),
		detectOpts:  detectOpts,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// WarmDetector seeds the duplicate detector's fingerprint cache from the
// stored collection so resubmissions of already-processed files are caught
// immediately after startup.
func (s *Service) WarmDetector() error {
	images, err := s.db.ListImages()
	if err != nil {
		return fmt.Errorf("listing images for cache warm-up: %w", err)
	}
	added := s.detector.WarmCache(images)
	slog.Info("Warmed duplicate detector cache", "fingerprints", added)
	return nil
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	// Get the extension
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	// Remove special characters, keep only alphanumeric, spaces, hyphens, and underscores
	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	// Replace multiple spaces with single space
	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	// Trim spaces
	base = strings.TrimSpace(base)

	// Truncate to reasonable length (50 chars for base, plus extension)
	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	// If base is empty after sanitization, use a default
	if base == "" {
		base = "waybill"
	}

	return base + ext
}

// ProcessImage stores an uploaded waybill image, runs field extraction and
// saves the record. Duplicates are rejected with ErrDuplicateImage before
// anything is stored. When extraction fails the record is kept with
// StatusError and empty fields so it can be reviewed and corrected later.
func (s *Service) ProcessImage(ownerID, batchID string, file UploadFile) (*Image, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	img := &Image{
		ID:           id,
		FileName:     file.Filename,
		FileSize:     int64(len(file.Data)),
		ContentType:  file.ContentType,
		LastModified: file.LastModified,
		OwnerID:      ownerID,
		BatchID:      batchID,
		Status:       StatusPending,
		AddedAt:      now,
		UpdatedAt:    now,
	}

	// The duplicate check fails open: a database fault here must not block
	// the upload, so scan against whatever could be listed
	known, err := s.db.ListImages()
	if err != nil {
		slog.Error("Listing images for duplicate check", "error", err)
		known = nil
	}
	if s.detector.IsDuplicate(img, known, s.detectOpts) {
		return nil, ErrDuplicateImage
	}

	// Sanitize filename to clean up phone-generated long filenames
	cleanFilename := sanitizeFilename(file.Filename)

	// Save file to storage
	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, cleanFilename), file.Data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}
	img.StoredPath = savedPath

	// Scan the waybill
	img.Status = StatusProcessing
	waybillData, err := s.scanner.ScanWaybill(file.Data, file.ContentType)
	if err != nil {
		// Keep the record for manual review; a scan failure must not lose
		// the upload
		slog.Error("Failed to scan waybill",
			"filename", file.Filename,
			"content_type", file.ContentType,
			"file_size", len(file.Data),
			"error", err,
		)
		img.Status = StatusError
	} else {
		img.Code = waybillData.Code
		img.SenderName = waybillData.SenderName
		img.Phone = waybillData.Phone
		img.Province = s.corrector.CorrectName(waybillData.Province)
		img.Price = int64(waybillData.Price)
		img.Company = waybillData.Company
		img.Status = StatusCompleted
	}
	img.UpdatedAt = s.timeSource.Now()

	// Check again now that the identity key carries the extracted code.
	// The intake check cannot match a stored completed record because its
	// key includes the code extraction has not produced yet. A clean
	// completed candidate also seeds the fingerprint cache here.
	if img.Status == StatusCompleted && s.detector.IsDuplicate(img, known, s.detectOpts) {
		s.storage.Delete(savedPath)
		return nil, ErrDuplicateImage
	}

	// Save to database
	if err := s.db.SaveImage(img); err != nil {
		// Clean up file if database save fails
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving image to database: %w", err)
	}

	return img, nil
}

// ProcessBatch processes a group of uploaded files as one batch. Duplicates
// and failed files are skipped with a log entry; the batch continues.
func (s *Service) ProcessBatch(ownerID string, files []UploadFile) (*Batch, []*Image, error) {
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("at least one file is required")
	}

	batchID := s.idGenerator.Generate()
	now := s.timeSource.Now()

	images := make([]*Image, 0, len(files))
	imageIDs := make([]string, 0, len(files))
	var totalPrice int64

	for _, file := range files {
		img, err := s.ProcessImage(ownerID, batchID, file)
		if errors.Is(err, ErrDuplicateImage) {
			slog.Info("Skipping duplicate image in batch", "filename", file.Filename, "batch", batchID)
			continue
		}
		if err != nil {
			slog.Error("Skipping failed image in batch", "filename", file.Filename, "batch", batchID, "error", err)
			continue
		}
		images = append(images, img)
		imageIDs = append(imageIDs, img.ID)
		totalPrice += img.Price
	}

	batch := &Batch{
		ID:         batchID,
		ImageIDs:   imageIDs,
		TotalPrice: totalPrice,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.db.SaveBatch(batch); err != nil {
		return nil, nil, fmt.Errorf("saving batch: %w", err)
	}

	return batch, images, nil
}

// GetImage retrieves an image record by ID
func (s *Service) GetImage(id string) (*Image, error) {
	img, err := s.db.GetImage(id)
	if err != nil {
		return nil, fmt.Errorf("getting image: %w", err)
	}
	return img, nil
}

// ListImages returns all image records
func (s *Service) ListImages() ([]*Image, error) {
	images, err := s.db.ListImages()
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	return images, nil
}

// DeleteImage removes an image record and its file
func (s *Service) DeleteImage(id string) error {
	img, err := s.db.GetImage(id)
	if err != nil {
		return fmt.Errorf("getting image for deletion: %w", err)
	}

	// Delete file
	if err := s.storage.Delete(img.StoredPath); err != nil {
		// Log error but continue with database deletion
		slog.Warn("Failed to delete file", "path", img.StoredPath, "error", err)
	}

	// Delete from database
	if err := s.db.DeleteImage(id); err != nil {
		return fmt.Errorf("deleting image from database: %w", err)
	}
	return nil
}

// GetImageFile retrieves the file data for an image
func (s *Service) GetImageFile(id string) ([]byte, string, error) {
	img, err := s.db.GetImage(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting image: %w", err)
	}

	data, err := s.storage.Get(img.StoredPath)
	if err != nil {
		return nil, "", fmt.Errorf("getting image file: %w", err)
	}

	return data, img.ContentType, nil
}

// DeduplicateImages collapses the stored collection to one representative
// per identity key, deleting dropped records and their files. Images are
// ranked in ingestion order so the replacement policy sees them the way
// they arrived. Returns the survivors and the number of records removed.
func (s *Service) DeduplicateImages() ([]*Image, int, error) {
	images, err := s.db.ListImages()
	if err != nil {
		return nil, 0, fmt.Errorf("listing images: %w", err)
	}

	sort.SliceStable(images, func(i, j int) bool {
		return images[i].AddedAt.Before(images[j].AddedAt)
	})

	survivors, removed := Deduplicate(images)

	kept := make(map[string]bool, len(survivors))
	for _, img := range survivors {
		kept[img.ID] = true
	}

	for _, img := range images {
		if kept[img.ID] {
			continue
		}
		if img.StoredPath != "" {
			if err := s.storage.Delete(img.StoredPath); err != nil {
				slog.Warn("Failed to delete duplicate file", "path", img.StoredPath, "error", err)
			}
		}
		if err := s.db.DeleteImage(img.ID); err != nil {
			return nil, 0, fmt.Errorf("deleting duplicate image %s: %w", img.ID, err)
		}
	}

	slog.Info("Deduplicated image collection", "kept", len(survivors), "removed", removed)
	return survivors, removed, nil
}

// FindSimilarImages reports groups of stored images that look perceptually
// alike. Advisory only; nothing is deleted.
func (s *Service) FindSimilarImages() ([]SimilarGroup, error) {
	images, err := s.db.ListImages()
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}

	sort.SliceStable(images, func(i, j int) bool {
		return images[i].AddedAt.Before(images[j].AddedAt)
	})

	return FindSimilar(images, s.storage.Get), nil
}

// GetBatch retrieves a batch by ID
func (s *Service) GetBatch(id string) (*Batch, error) {
	batch, err := s.db.GetBatch(id)
	if err != nil {
		return nil, fmt.Errorf("getting batch: %w", err)
	}
	return batch, nil
}

// GetBatchWithImages retrieves a batch with its associated image records
func (s *Service) GetBatchWithImages(id string) (*Batch, []*Image, error) {
	batch, err := s.db.GetBatch(id)
	if err != nil {
		return nil, nil, fmt.Errorf("getting batch: %w", err)
	}

	images := make([]*Image, 0, len(batch.ImageIDs))
	for _, imageID := range batch.ImageIDs {
		img, err := s.db.GetImage(imageID)
		if err != nil {
			return nil, nil, fmt.Errorf("getting image %s: %w", imageID, err)
		}
		images = append(images, img)
	}

	return batch, images, nil
}

// ListBatches returns all batches
func (s *Service) ListBatches() ([]*Batch, error) {
	batches, err := s.db.ListBatches()
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	return batches, nil
}

// ClearCaches empties the duplicate-detection fingerprint cache and the
// province-correction memo cache. Escape hatch for suspected stale state.
func (s *Service) ClearCaches() {
	s.detector.ClearCache()
	s.corrector.ClearCache()
}

// Detector exposes the duplicate detector. Used by tests to inspect cache
// state.
func (s *Service) Detector() *Detector {
	return s.detector
}
