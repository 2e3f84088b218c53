package waybill

// Deduplicate collapses a collection of images to one representative per
// identity key, preserving first-key-seen order. Images lacking identity
// fields are dropped silently. Returns the survivors and the number of
// images removed. The operation is idempotent: running it on its own output
// removes nothing.
func Deduplicate(images []*Image) ([]*Image, int) {
	retained := make(map[string]*Image)
	var order []string

	for _, img := range images {
		if !img.Valid() {
			continue
		}

		key := IdentityKey(img)
		current, ok := retained[key]
		if !ok {
			retained[key] = img
			order = append(order, key)
			continue
		}

		if replaces(img, current) {
			retained[key] = img
		}
	}

	result := make([]*Image, 0, len(order))
	for _, key := range order {
		result = append(result, retained[key])
	}

	return result, len(images) - len(result)
}

// replaces decides whether a newly seen image displaces the currently
// retained copy sharing its key. Any one condition suffices:
// the new copy is strictly more recent (both timestamps present), the
// retained copy errored and the new one did not, the new copy completed and
// the retained one did not, or the new copy carries all three core fields
// while the retained one is missing at least one.
func replaces(newImg, current *Image) bool {
	if !newImg.AddedAt.IsZero() && !current.AddedAt.IsZero() && newImg.AddedAt.After(current.AddedAt) {
		return true
	}
	if current.Status == StatusError && newImg.Status != StatusError {
		return true
	}
	if newImg.Status == StatusCompleted && current.Status != StatusCompleted {
		return true
	}
	if hasCoreFields(newImg) && !hasCoreFields(current) {
		return true
	}
	return false
}

// hasCoreFields reports whether the image carries a code, sender name and
// phone number. Presence only; field validity is not weighed.
func hasCoreFields(img *Image) bool {
	return img.Code != "" && img.SenderName != "" && img.Phone != ""
}
