package waybill

import (
	"log/slog"
	"sync"
)

// DetectOptions configures a duplicate check
type DetectOptions struct {
	// Enabled turns detection on. When false every check reports
	// not-a-duplicate.
	Enabled bool
	// IgnoreTransient is accepted for configuration compatibility.
	// Transient images still count as duplicate sources during the scan;
	// transience only influences which copy the batch reducer keeps.
	IgnoreTransient bool
}

// DefaultDetectOptions returns the standard detection configuration
func DefaultDetectOptions() DetectOptions {
	return DetectOptions{
		Enabled:         true,
		IgnoreTransient: true,
	}
}

// Detector decides whether an uploaded image duplicates one already seen.
// It keeps a fingerprint cache of confirmed duplicates and completed
// uploads so repeated checks short-circuit without scanning. Safe for
// concurrent use; the check-then-insert sequence runs under one lock so two
// identical concurrent uploads cannot both pass.
type Detector struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewDetector creates a Detector with an empty fingerprint cache
func NewDetector() *Detector {
	return &Detector{
		seen: make(map[string]bool),
	}
}

// IsDuplicate reports whether candidate duplicates any image in known.
// The fingerprint cache is consulted first; on a miss the known list is
// scanned by record ID and identity key. A confirmed duplicate is cached,
// and a clean completed non-transient candidate is cached too so a literal
// resubmission of the same file is caught without a scan. Detection fails
// open: any internal fault is logged and reported as not-a-duplicate so an
// upload is never blocked by a detector fault.
func (d *Detector) IsDuplicate(candidate *Image, known []*Image, opts DetectOptions) (dup bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Duplicate check failed, treating as not duplicate", "panic", r)
			dup = false
		}
	}()

	if !opts.Enabled || !candidate.Valid() {
		return false
	}

	// Errored images carry unreliable fingerprints; never flag or cache them
	if candidate.Status == StatusError {
		return false
	}

	hash := ContentHash(candidate)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.seen[hash] {
		return true
	}

	key := IdentityKey(candidate)
	for _, img := range known {
		if !img.Valid() {
			continue
		}
		if img.ID == candidate.ID || IdentityKey(img) == key {
			d.seen[hash] = true
			return true
		}
	}

	if !candidate.Transient && candidate.Status == StatusCompleted {
		d.seen[hash] = true
	}

	return false
}

// WarmCache seeds the fingerprint cache from completed non-transient
// images, typically the stored collection at startup. Returns the number of
// fingerprints added.
func (d *Detector) WarmCache(images []*Image) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	added := 0
	for _, img := range images {
		if !img.Valid() || img.Transient || img.Status != StatusCompleted {
			continue
		}
		hash := ContentHash(img)
		if !d.seen[hash] {
			d.seen[hash] = true
			added++
		}
	}
	return added
}

// ClearCache empties the fingerprint cache. Escape hatch for when the
// cache is suspected stale.
func (d *Detector) ClearCache() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = make(map[string]bool)
}

// CacheSize returns the number of cached fingerprints. Used by tests.
func (d *Detector) CacheSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
