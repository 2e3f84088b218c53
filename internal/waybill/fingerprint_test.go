package waybill

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("IdentityKey", func() {
	When("all fields are present", func() {
		It("should join them in fixed order", func() {
			img := &Image{
				ID:           "id-1",
				FileName:     "waybill.jpg",
				FileSize:     1024,
				ContentType:  "image/jpeg",
				Code:         "884512",
				OwnerID:      "user-1",
				BatchID:      "batch-1",
				ProcessingID: "proc-1",
			}
			Expect(IdentityKey(img)).To(Equal("waybill.jpg|884512|user-1|batch-1|proc-1|1024|image/jpeg"))
		})
	})

	When("optional fields are absent", func() {
		It("should substitute the fixed defaults", func() {
			img := &Image{ID: "id-1"}
			Expect(IdentityKey(img)).To(Equal("unknown||anonymous|default||0|unknown"))
		})
	})

	It("should be deterministic", func() {
		img := &Image{ID: "id-1", FileName: "a.jpg", FileSize: 5, OwnerID: "u"}
		Expect(IdentityKey(img)).To(Equal(IdentityKey(img)))
	})

	It("should not depend on the record ID", func() {
		a := &Image{ID: "id-a", FileName: "a.jpg", FileSize: 5}
		b := &Image{ID: "id-b", FileName: "a.jpg", FileSize: 5}
		Expect(IdentityKey(a)).To(Equal(IdentityKey(b)))
	})

	It("should return empty for a nil image", func() {
		Expect(IdentityKey(nil)).To(Equal(""))
	})
})

var _ = Describe("ContentHash", func() {
	When("the image is valid", func() {
		It("should return a stable hex digest", func() {
			img := &Image{
				ID:           "id-1",
				FileName:     "waybill.jpg",
				FileSize:     1024,
				LastModified: 1717200000000,
				OwnerID:      "user-1",
				BatchID:      "batch-1",
			}
			hash := ContentHash(img)
			Expect(hash).To(HaveLen(32))
			Expect(ContentHash(img)).To(Equal(hash))
		})

		It("should differ when the record ID differs", func() {
			a := &Image{ID: "id-a", FileName: "a.jpg", FileSize: 5}
			b := &Image{ID: "id-b", FileName: "a.jpg", FileSize: 5}
			Expect(ContentHash(a)).NotTo(Equal(ContentHash(b)))
		})
	})

	When("the image lacks an ID", func() {
		It("should return the sentinel, not panic", func() {
			img := &Image{FileName: "waybill.jpg", FileSize: 1024}
			Expect(ContentHash(img)).To(Equal(InvalidImageHash))
		})
	})

	When("the image lacks file metadata", func() {
		It("should return the sentinel", func() {
			Expect(ContentHash(&Image{ID: "id-1"})).To(Equal(InvalidImageHash))
		})
	})

	When("the image is nil", func() {
		It("should return the sentinel", func() {
			Expect(ContentHash(nil)).To(Equal(InvalidImageHash))
		})
	})
})
