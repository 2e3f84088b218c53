package waybill

import (
	"bytes"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"log/slog"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// similarDistanceThreshold is the maximum Hamming distance between two
// dHash values below which images are considered perceptually alike.
const similarDistanceThreshold = 10

// SimilarGroup is a set of stored images that look perceptually alike.
// Advisory only; grouping never deletes anything.
type SimilarGroup struct {
	Images []*Image `json:"images"`
}

// FileLoader retrieves the stored bytes for an image path
type FileLoader func(path string) ([]byte, error)

// FindSimilar groups images whose stored bytes hash within
// similarDistanceThreshold of each other using a difference hash. Images
// whose bytes cannot be loaded, decoded or hashed are skipped with a log
// entry; a perceptual-scan fault never fails the report. Only groups with
// at least two members are returned.
func FindSimilar(images []*Image, load FileLoader) []SimilarGroup {
	type hashed struct {
		img  *Image
		hash *goimagehash.ImageHash
	}

	var hashes []hashed
	for _, img := range images {
		if !img.Valid() || img.StoredPath == "" {
			continue
		}

		data, err := load(img.StoredPath)
		if err != nil {
			slog.Warn("Skipping image in similarity scan", "id", img.ID, "error", err)
			continue
		}

		decoded, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			slog.Warn("Skipping undecodable image in similarity scan", "id", img.ID, "error", err)
			continue
		}

		h, err := goimagehash.DifferenceHash(decoded)
		if err != nil {
			slog.Warn("Skipping unhashable image in similarity scan", "id", img.ID, "error", err)
			continue
		}

		hashes = append(hashes, hashed{img: img, hash: h})
	}

	// Greedy clustering against each cluster's first member. Input order
	// determines cluster anchors, so results are deterministic for a given
	// image order.
	var clusters [][]hashed
	for _, h := range hashes {
		placed := false
		for i, cluster := range clusters {
			dist, err := h.hash.Distance(cluster[0].hash)
			if err == nil && dist < similarDistanceThreshold {
				clusters[i] = append(cluster, h)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []hashed{h})
		}
	}

	var groups []SimilarGroup
	for _, cluster := range clusters {
		if len(cluster) < 2 {
			continue
		}
		group := SimilarGroup{Images: make([]*Image, 0, len(cluster))}
		for _, h := range cluster {
			group.Images = append(group.Images, h.img)
		}
		groups = append(groups, group)
	}

	return groups
}
