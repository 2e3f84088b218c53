package waybill

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// jsonError writes a JSON error body with the given status
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// contentTypeFor determines the content type from the header or the file
// extension when the client did not send one
func contentTypeFor(header *multipart.FileHeader) string {
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		ext := strings.ToLower(filepath.Ext(header.Filename))
		switch ext {
		case ".jpg", ".jpeg":
			contentType = "image/jpeg"
		case ".png":
			contentType = "image/png"
		case ".webp":
			contentType = "image/webp"
		case ".pdf":
			contentType = "application/pdf"
		case ".heic":
			contentType = "image/heic"
		case ".heif":
			contentType = "image/heif"
		default:
			contentType = "application/octet-stream"
		}
	}

	// Normalize content type for common phone formats
	// Preserve HEIC/HEIF MIME types so conversion logic can detect them
	return strings.ToLower(strings.TrimSpace(contentType))
}

// readUploadFile reads one multipart file into an UploadFile
func readUploadFile(header *multipart.FileHeader, lastModified int64) (UploadFile, error) {
	f, err := header.Open()
	if err != nil {
		return UploadFile{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return UploadFile{}, err
	}

	return UploadFile{
		Filename:     header.Filename,
		ContentType:  contentTypeFor(header),
		Data:         data,
		LastModified: lastModified,
	}, nil
}

// handleListImages returns a list of all image records
func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	images, err := s.service.ListImages()
	if err != nil {
		slog.Error("Error listing images", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(images); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleUploadImage handles a single waybill image upload
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	// Parse multipart form (max 50MB to handle high-resolution phone photos)
	maxFormSize := int64(50 << 20) // 50MB
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}

	_, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if err.Error() == "http: no such file" {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}

	// Check file size before reading
	if header.Size > maxFormSize {
		jsonError(w, "File is too large. Maximum size is 50MB. Please compress or resize your image.", http.StatusBadRequest)
		return
	}

	lastModified, _ := strconv.ParseInt(r.FormValue("last_modified"), 10, 64)
	file, err := readUploadFile(header, lastModified)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	ownerID := r.FormValue("owner")
	batchID := r.FormValue("batch")

	// Process image
	img, err := s.service.ProcessImage(ownerID, batchID, file)
	if errors.Is(err, ErrDuplicateImage) {
		slog.Info("Rejected duplicate upload", "filename", header.Filename, "owner", ownerID)
		jsonError(w, "This image has already been uploaded", http.StatusConflict)
		return
	}
	if err != nil {
		slog.Error("Error processing image", "filename", header.Filename, "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(img); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetImage returns a single image record
func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Image ID required", http.StatusBadRequest)
		return
	}
	img, err := s.service.GetImage(id)
	if err != nil {
		corsError(w, "Image not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(img); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetImageFile returns the stored file for an image
func (s *Server) handleGetImageFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Image ID required", http.StatusBadRequest)
		return
	}
	data, contentType, err := s.service.GetImageFile(id)
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteImage deletes an image record and its file
func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Image ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteImage(id); err != nil {
		corsError(w, "Error deleting image", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDeduplicateImages collapses the stored collection, deleting
// duplicate records
func (s *Server) handleDeduplicateImages(w http.ResponseWriter, r *http.Request) {
	survivors, removed, err := s.service.DeduplicateImages()
	if err != nil {
		slog.Error("Error deduplicating images", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"images":  survivors,
		"removed": removed,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleSimilarImages reports perceptually similar stored images
func (s *Server) handleSimilarImages(w http.ResponseWriter, r *http.Request) {
	groups, err := s.service.FindSimilarImages()
	if err != nil {
		slog.Error("Error finding similar images", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if groups == nil {
		groups = []SimilarGroup{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(groups); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleClearCaches empties the detector and correction caches
func (s *Server) handleClearCaches(w http.ResponseWriter, r *http.Request) {
	s.service.ClearCaches()
	w.WriteHeader(http.StatusNoContent)
}

// handleListBatches returns a list of all batches
func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.service.ListBatches()
	if err != nil {
		slog.Error("Error listing batches", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if batches == nil {
		batches = []*Batch{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(batches); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleCreateBatch handles a multi-file batch upload
func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	maxFormSize := int64(200 << 20) // 200MB across the batch
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		jsonError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		jsonError(w, "No files were selected. Please choose files to upload.", http.StatusBadRequest)
		return
	}

	ownerID := r.FormValue("owner")

	files := make([]UploadFile, 0, len(r.MultipartForm.File["files"]))
	for _, header := range r.MultipartForm.File["files"] {
		file, err := readUploadFile(header, 0)
		if err != nil {
			slog.Error("Error reading file data", "error", err, "filename", header.Filename)
			jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
			return
		}
		files = append(files, file)
	}

	batch, images, err := s.service.ProcessBatch(ownerID, files)
	if err != nil {
		slog.Error("Error processing batch", "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	response := map[string]interface{}{
		"batch":  batch,
		"images": images,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetBatch returns a batch with its image records
func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Batch ID required", http.StatusBadRequest)
		return
	}
	batch, images, err := s.service.GetBatchWithImages(id)
	if err != nil {
		corsError(w, "Batch not found", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"batch":  batch,
		"images": images,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}
