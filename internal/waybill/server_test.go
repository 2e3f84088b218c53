package waybill

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/waybill-tracker/internal/scanning"
)

// multipartBody builds a multipart form with the named file fields
func multipartBody(field string, files map[string][]byte, values map[string]string) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, data := range files {
		part, err := writer.CreateFormFile(field, name)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).NotTo(HaveOccurred())
	}
	for key, value := range values {
		Expect(writer.WriteField(key, value)).To(Succeed())
	}
	Expect(writer.Close()).To(Succeed())
	return body, writer.FormDataContentType()
}

var _ = Describe("Server", func() {
	var (
		db      *mockDB
		storage *mockStorage
		scanner *mockScanner
		service *Service
		server  *Server
		rec     *httptest.ResponseRecorder
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		scanner = &mockScanner{
			data: &scanning.WaybillData{
				Code:       "884512",
				SenderName: "محمد علي",
				Phone:      "07701234567",
				Province:   "بغداد",
				Price:      25000,
				Company:    "النسر",
			},
		}
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		service = NewServiceWithDeps(db, scanner, storage, DefaultDetectOptions(),
			&seqIDGenerator{prefix: "img-"}, &fixedTimeSource{now: now})
		server = NewServer(service, BasicAuth{})
		rec = httptest.NewRecorder()
	})

	Describe("POST /api/images", func() {
		It("should upload and return the processed image", func() {
			body, contentType := multipartBody("file", map[string][]byte{"waybill.jpg": []byte("image bytes")}, map[string]string{"owner": "user-1"})
			req := httptest.NewRequest("POST", "/api/images", body)
			req.Header.Set("Content-Type", contentType)

			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusCreated))
			var img Image
			Expect(json.Unmarshal(rec.Body.Bytes(), &img)).To(Succeed())
			Expect(img.Code).To(Equal("884512"))
			Expect(img.Status).To(Equal(StatusCompleted))
			Expect(img.OwnerID).To(Equal("user-1"))
		})

		It("should reject a duplicate upload with 409", func() {
			body, contentType := multipartBody("file", map[string][]byte{"waybill.jpg": []byte("image bytes")}, map[string]string{"owner": "user-1"})
			req := httptest.NewRequest("POST", "/api/images", body)
			req.Header.Set("Content-Type", contentType)
			server.ServeHTTP(httptest.NewRecorder(), req)

			body, contentType = multipartBody("file", map[string][]byte{"waybill.jpg": []byte("image bytes")}, map[string]string{"owner": "user-1"})
			req = httptest.NewRequest("POST", "/api/images", body)
			req.Header.Set("Content-Type", contentType)
			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusConflict))
		})

		It("should return 400 when no file is provided", func() {
			body, contentType := multipartBody("file", nil, map[string]string{"owner": "user-1"})
			req := httptest.NewRequest("POST", "/api/images", body)
			req.Header.Set("Content-Type", contentType)

			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/images", func() {
		It("should list stored records", func() {
			Expect(db.SaveImage(&Image{ID: "a", FileName: "a.jpg"})).To(Succeed())

			req := httptest.NewRequest("GET", "/api/images", nil)
			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var images []*Image
			Expect(json.Unmarshal(rec.Body.Bytes(), &images)).To(Succeed())
			Expect(images).To(HaveLen(1))
		})
	})

	Describe("GET /api/images/{id}", func() {
		It("should return the record", func() {
			Expect(db.SaveImage(&Image{ID: "a", FileName: "a.jpg", Code: "42"})).To(Succeed())

			req := httptest.NewRequest("GET", "/api/images/a", nil)
			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var img Image
			Expect(json.Unmarshal(rec.Body.Bytes(), &img)).To(Succeed())
			Expect(img.Code).To(Equal("42"))
		})

		It("should return 404 for a missing record", func() {
			req := httptest.NewRequest("GET", "/api/images/missing", nil)
			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /api/images/{id}/file", func() {
		It("should return the stored bytes with the content type", func() {
			Expect(db.SaveImage(&Image{ID: "a", FileName: "a.jpg", StoredPath: "a_a.jpg", ContentType: "image/jpeg"})).To(Succeed())
			storage.files["a_a.jpg"] = []byte("image bytes")

			req := httptest.NewRequest("GET", "/api/images/a/file", nil)
			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("image/jpeg"))
			Expect(rec.Body.Bytes()).To(Equal([]byte("image bytes")))
		})
	})

	Describe("DELETE /api/images/{id}", func() {
		It("should delete the record", func() {
			Expect(db.SaveImage(&Image{ID: "a", FileName: "a.jpg", StoredPath: "a_a.jpg"})).To(Succeed())
			storage.files["a_a.jpg"] = []byte("x")

			req := httptest.NewRequest("DELETE", "/api/images/a", nil)
			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(db.images).NotTo(HaveKey("a"))
		})
	})

	Describe("POST /api/images/deduplicate", func() {
		It("should collapse duplicates and report the removed count", func() {
			shared := func(id string, added time.Time) *Image {
				return &Image{
					ID: id, FileName: "same.jpg", FileSize: 10, ContentType: "image/jpeg",
					OwnerID: "user-1", BatchID: "batch-1", Status: StatusPending, AddedAt: added,
				}
			}
			base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
			Expect(db.SaveImage(shared("dup-1", base))).To(Succeed())
			Expect(db.SaveImage(shared("dup-2", base.Add(time.Minute)))).To(Succeed())

			req := httptest.NewRequest("POST", "/api/images/deduplicate", nil)
			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var resp struct {
				Images  []*Image `json:"images"`
				Removed int      `json:"removed"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Removed).To(Equal(1))
			Expect(resp.Images).To(HaveLen(1))
			Expect(resp.Images[0].ID).To(Equal("dup-2"))
		})
	})

	Describe("GET /api/images/similar", func() {
		It("should return an empty array for an empty collection", func() {
			req := httptest.NewRequest("GET", "/api/images/similar", nil)
			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON("[]"))
		})
	})

	Describe("POST /api/batches", func() {
		It("should process all files as one batch", func() {
			body, contentType := multipartBody("files", map[string][]byte{
				"a.jpg": []byte("first"),
				"b.jpg": []byte("second"),
			}, map[string]string{"owner": "user-1"})
			req := httptest.NewRequest("POST", "/api/batches", body)
			req.Header.Set("Content-Type", contentType)

			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusCreated))
			var resp struct {
				Batch  *Batch   `json:"batch"`
				Images []*Image `json:"images"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Images).To(HaveLen(2))
			Expect(resp.Batch.TotalPrice).To(Equal(int64(50000)))
		})

		It("should return 400 when no files are selected", func() {
			body, contentType := multipartBody("files", nil, map[string]string{"owner": "user-1"})
			req := httptest.NewRequest("POST", "/api/batches", body)
			req.Header.Set("Content-Type", contentType)

			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/batches/{id}", func() {
		It("should return the batch with its images", func() {
			Expect(db.SaveImage(&Image{ID: "i1", FileName: "a.jpg"})).To(Succeed())
			Expect(db.SaveBatch(&Batch{ID: "b1", ImageIDs: []string{"i1"}})).To(Succeed())

			req := httptest.NewRequest("GET", "/api/batches/b1", nil)
			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var resp struct {
				Batch  *Batch   `json:"batch"`
				Images []*Image `json:"images"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Batch.ID).To(Equal("b1"))
			Expect(resp.Images).To(HaveLen(1))
		})
	})

	Describe("POST /api/caches/clear", func() {
		It("should clear the detector cache", func() {
			completed := &Image{
				ID: "a", FileName: "a.jpg", FileSize: 1, ContentType: "image/jpeg", Status: StatusCompleted,
			}
			service.Detector().WarmCache([]*Image{completed})
			Expect(service.Detector().CacheSize()).To(Equal(1))

			req := httptest.NewRequest("POST", "/api/caches/clear", nil)
			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(service.Detector().CacheSize()).To(BeZero())
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			server = NewServer(service, BasicAuth{Username: "admin", Password: "secret"})
		})

		It("should reject requests without credentials", func() {
			req := httptest.NewRequest("GET", "/api/images", nil)
			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(rec.Header().Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("should reject requests with wrong credentials", func() {
			req := httptest.NewRequest("GET", "/api/images", nil)
			req.SetBasicAuth("admin", "wrong")
			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("should accept requests with valid credentials", func() {
			req := httptest.NewRequest("GET", "/api/images", nil)
			req.SetBasicAuth("admin", "secret")
			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
		})
	})
})
