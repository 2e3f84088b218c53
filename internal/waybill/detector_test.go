package waybill

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Detector", func() {
	var (
		detector *Detector
		opts     DetectOptions
	)

	sameFile := func(id string) *Image {
		return &Image{
			ID:          id,
			FileName:    "waybill.jpg",
			FileSize:    1024,
			ContentType: "image/jpeg",
			OwnerID:     "user-1",
			BatchID:     "batch-1",
			Status:      StatusPending,
			AddedAt:     time.Now(),
		}
	}

	BeforeEach(func() {
		detector = NewDetector()
		opts = DefaultDetectOptions()
	})

	Describe("IsDuplicate", func() {
		When("a known image shares the identity key", func() {
			It("should report a duplicate even though the IDs differ", func() {
				known := []*Image{sameFile("id-1")}
				Expect(detector.IsDuplicate(sameFile("id-2"), known, opts)).To(BeTrue())
			})

			It("should cache the confirmed duplicate fingerprint", func() {
				known := []*Image{sameFile("id-1")}
				Expect(detector.IsDuplicate(sameFile("id-2"), known, opts)).To(BeTrue())
				Expect(detector.CacheSize()).To(Equal(1))
			})
		})

		When("a known image shares the record ID", func() {
			It("should report a duplicate", func() {
				known := []*Image{{ID: "id-1", FileName: "other.jpg", FileSize: 7}}
				candidate := sameFile("id-1")
				Expect(detector.IsDuplicate(candidate, known, opts)).To(BeTrue())
			})
		})

		When("no known image matches", func() {
			It("should report not-a-duplicate", func() {
				known := []*Image{{ID: "id-1", FileName: "other.jpg", FileSize: 7}}
				Expect(detector.IsDuplicate(sameFile("id-2"), known, opts)).To(BeFalse())
			})

			It("should not cache a pending candidate", func() {
				Expect(detector.IsDuplicate(sameFile("id-2"), nil, opts)).To(BeFalse())
				Expect(detector.CacheSize()).To(BeZero())
			})

			It("should cache a completed non-transient candidate", func() {
				candidate := sameFile("id-2")
				candidate.Status = StatusCompleted
				Expect(detector.IsDuplicate(candidate, nil, opts)).To(BeFalse())
				Expect(detector.CacheSize()).To(Equal(1))
			})

			It("should catch a literal resubmission via the cache", func() {
				candidate := sameFile("id-2")
				candidate.Status = StatusCompleted
				Expect(detector.IsDuplicate(candidate, nil, opts)).To(BeFalse())
				Expect(detector.IsDuplicate(candidate, nil, opts)).To(BeTrue())
			})

			It("should not cache a transient candidate", func() {
				candidate := sameFile("id-2")
				candidate.Status = StatusCompleted
				candidate.Transient = true
				Expect(detector.IsDuplicate(candidate, nil, opts)).To(BeFalse())
				Expect(detector.CacheSize()).To(BeZero())
			})
		})

		When("the candidate has error status", func() {
			It("should report not-a-duplicate even against an identical known image", func() {
				known := []*Image{sameFile("id-1")}
				candidate := sameFile("id-2")
				candidate.Status = StatusError
				Expect(detector.IsDuplicate(candidate, known, opts)).To(BeFalse())
			})
		})

		When("detection is disabled", func() {
			It("should report not-a-duplicate", func() {
				opts.Enabled = false
				known := []*Image{sameFile("id-1")}
				Expect(detector.IsDuplicate(sameFile("id-2"), known, opts)).To(BeFalse())
			})
		})

		When("the candidate is invalid", func() {
			It("should report not-a-duplicate for a nil candidate", func() {
				Expect(detector.IsDuplicate(nil, nil, opts)).To(BeFalse())
			})

			It("should report not-a-duplicate without an ID", func() {
				candidate := sameFile("")
				Expect(detector.IsDuplicate(candidate, []*Image{sameFile("id-1")}, opts)).To(BeFalse())
			})

			It("should report not-a-duplicate without file metadata", func() {
				candidate := &Image{ID: "id-2"}
				Expect(detector.IsDuplicate(candidate, nil, opts)).To(BeFalse())
			})
		})

		When("a known image is transient", func() {
			It("should still count it as a duplicate source", func() {
				known := []*Image{sameFile("id-1")}
				known[0].Transient = true
				Expect(detector.IsDuplicate(sameFile("id-2"), known, opts)).To(BeTrue())
			})
		})

		When("invalid images appear in the known list", func() {
			It("should skip them silently", func() {
				known := []*Image{nil, {FileName: "waybill.jpg"}, sameFile("id-1")}
				Expect(detector.IsDuplicate(sameFile("id-2"), known, opts)).To(BeTrue())
			})
		})

		When("checked concurrently for the same candidate", func() {
			It("should serialize cache writes without racing", func() {
				candidate := sameFile("id-2")
				candidate.Status = StatusCompleted

				var wg sync.WaitGroup
				results := make([]bool, 8)
				for i := range results {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						results[i] = detector.IsDuplicate(candidate, nil, opts)
					}(i)
				}
				wg.Wait()

				// Exactly one goroutine can have seen an empty cache
				falses := 0
				for _, dup := range results {
					if !dup {
						falses++
					}
				}
				Expect(falses).To(Equal(1))
				Expect(detector.CacheSize()).To(Equal(1))
			})
		})
	})

	Describe("WarmCache", func() {
		It("should seed completed non-transient images only", func() {
			completed := sameFile("id-1")
			completed.Status = StatusCompleted
			transient := sameFile("id-2")
			transient.Status = StatusCompleted
			transient.Transient = true
			pending := sameFile("id-3")

			added := detector.WarmCache([]*Image{completed, transient, pending, nil})
			Expect(added).To(Equal(1))
			Expect(detector.CacheSize()).To(Equal(1))
		})

		It("should not double-count fingerprints already cached", func() {
			completed := sameFile("id-1")
			completed.Status = StatusCompleted
			Expect(detector.WarmCache([]*Image{completed})).To(Equal(1))
			Expect(detector.WarmCache([]*Image{completed})).To(BeZero())
		})
	})

	Describe("ClearCache", func() {
		It("should forget every fingerprint", func() {
			candidate := sameFile("id-1")
			candidate.Status = StatusCompleted
			detector.IsDuplicate(candidate, nil, opts)
			Expect(detector.CacheSize()).To(Equal(1))

			detector.ClearCache()
			Expect(detector.CacheSize()).To(BeZero())
			Expect(detector.IsDuplicate(candidate, nil, opts)).To(BeFalse())
		})
	})
})
