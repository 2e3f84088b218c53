package scanning

// WaybillData contains extracted information from a waybill or shipment receipt
type WaybillData struct {
	Code       string  `json:"code"`
	SenderName string  `json:"sender_name"`
	Phone      string  `json:"phone"`
	Province   string  `json:"province"`
	Price      float64 `json:"price"`
	Company    string  `json:"company"`
}

// Scanner defines the interface for waybill scanning operations
type Scanner interface {
	// ScanWaybill analyzes a waybill image/PDF and extracts its fields
	ScanWaybill(imageData []byte, contentType string) (*WaybillData, error)
	// Close closes the scanner and releases resources
	Close() error
}
