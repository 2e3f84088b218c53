package waybill

import "time"

// Status is the processing state of an uploaded image
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Image represents an uploaded waybill image with its extracted fields
type Image struct {
	ID           string `json:"id"`
	FileName     string `json:"file_name"`
	FileSize     int64  `json:"file_size"`
	ContentType  string `json:"content_type"`
	LastModified int64  `json:"last_modified"` // Client-side modification time, epoch milliseconds
	StoredPath   string `json:"stored_path"`

	Code       string `json:"code"`
	SenderName string `json:"sender_name"`
	Phone      string `json:"phone"`
	Province   string `json:"province"`
	Price      int64  `json:"price"` // Collection amount in Iraqi dinars
	Company    string `json:"company"`

	OwnerID      string `json:"owner_id"`
	BatchID      string `json:"batch_id"`
	ProcessingID string `json:"processing_id,omitempty"`

	Status    Status    `json:"status"`
	AddedAt   time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Transient bool      `json:"transient"` // Session-only upload, not yet confirmed by the user
}

// Valid reports whether the image carries the identity fields every
// duplicate check and cache entry requires. Invalid images are skipped
// silently throughout the package.
func (i *Image) Valid() bool {
	return i != nil && i.ID != "" && i.FileName != ""
}

// Batch represents one upload batch and its associated images
type Batch struct {
	ID         string    `json:"id"`
	ImageIDs   []string  `json:"image_ids"`
	TotalPrice int64     `json:"total_price"` // Sum of collection amounts in Iraqi dinars
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
