package waybill

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
)

// InvalidImageHash is the sentinel returned by ContentHash for images that
// lack the identity fields needed to build a fingerprint.
const InvalidImageHash = "invalid-image-hash"

// keyDelimiter separates the components of an identity key.
const keyDelimiter = "|"

// IdentityKey derives a stable comparison key from an image's file metadata
// and processing context. Missing optional fields fall back to fixed
// defaults so the key shape never varies. Two logical copies of the same
// upload always produce the same key.
func IdentityKey(img *Image) string {
	if img == nil {
		return ""
	}

	parts := []string{
		orDefault(img.FileName, "unknown"),
		img.Code,
		orDefault(img.OwnerID, "anonymous"),
		orDefault(img.BatchID, "default"),
		img.ProcessingID,
		strconv.FormatInt(img.FileSize, 10),
		orDefault(img.ContentType, "unknown"),
	}

	return strings.Join(parts, keyDelimiter)
}

// ContentHash derives a non-reversible fingerprint for the fast cache path.
// The hash covers file metadata plus owner, batch and record identity,
// skipping components that are absent. Invalid images yield
// InvalidImageHash rather than an error.
func ContentHash(img *Image) string {
	if !img.Valid() {
		return InvalidImageHash
	}

	var parts []string
	parts = append(parts, img.FileName)
	if img.FileSize > 0 {
		parts = append(parts, strconv.FormatInt(img.FileSize, 10))
	}
	if img.LastModified > 0 {
		parts = append(parts, strconv.FormatInt(img.LastModified, 10))
	}
	if img.OwnerID != "" {
		parts = append(parts, img.OwnerID)
	}
	if img.BatchID != "" {
		parts = append(parts, img.BatchID)
	}
	parts = append(parts, img.ID)

	sum := md5.Sum([]byte(strings.Join(parts, "-")))
	return hex.EncodeToString(sum[:])
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
