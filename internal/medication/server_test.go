package medication

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/med-tracker/internal/scanning"
)

var anyPath = regexp.MustCompile(`.*`)

// multipartUpload builds a multipart body with one file field
func multipartUpload(filename string, data []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())
	Expect(writer.Close()).To(Succeed())
	return body, writer.FormDataContentType()
}

func decodeError(resp *http.Response) string {
	var body map[string]string
	Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
	return body["error"]
}

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		scanner     *mockScanner
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		scanner = newMockScanner()
		auth = BasicAuth{}
	})

	JustBeforeEach(func() {
		service = NewServiceWithDeps(db, scanner, storage, &mockIDGenerator{id: "test-id-123"}, &mockTimeSource{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)})
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions} {
			ghttpServer.RouteToHandler(method, anyPath, server.ServeHTTP)
		}
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	do := func(method, path string, body io.Reader, contentType string) *http.Response {
		req, err := http.NewRequest(method, ghttpServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	Describe("authentication", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "alice", Password: "secret"}
			db.put(&Medication{ID: "m1", UserID: "alice", Name: "Aspirin"})
			db.put(&Medication{ID: "m2", UserID: "bob", Name: "Metformin"})
		})

		It("should reject requests without credentials", func() {
			resp := do(http.MethodGet, "/api/medications", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("should reject wrong credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/medications", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("alice", "wrong")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("should scope data to the authenticated user", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/medications", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("alice:secret")))
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var meds []*Medication
			Expect(json.NewDecoder(resp.Body).Decode(&meds)).To(Succeed())
			Expect(meds).To(HaveLen(1))
			Expect(meds[0].ID).To(Equal("m1"))
		})
	})

	Describe("CORS", func() {
		It("should answer preflight requests", func() {
			resp := do(http.MethodOptions, "/api/medications", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("PUT"))
		})
	})

	Describe("handleScanLabel", func() {
		var resp *http.Response

		upload := func(filename string, data []byte) {
			body, contentType := multipartUpload(filename, data)
			resp = do(http.MethodPost, "/api/scan", body, contentType)
		}

		AfterEach(func() {
			if resp != nil {
				resp.Body.Close()
			}
		})

		When("the scan succeeds", func() {
			JustBeforeEach(func() {
				upload("label.jpg", []byte("jpeg bytes"))
			})

			It("should return the draft and stored image", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var result ScanResult
				Expect(json.NewDecoder(resp.Body).Decode(&result)).To(Succeed())
				Expect(result.Draft.Name).To(Equal("Amoxicillin"))
				Expect(result.LabelImage).To(Equal("test-id-123.png"))
			})

			It("should derive the content type from the extension", func() {
				cam := scanner.lastCam.(*scanning.UploadCamera)
				Expect(cam.ContentType).To(Equal("image/jpeg"))
			})
		})

		When("no file is sent", func() {
			JustBeforeEach(func() {
				body := &bytes.Buffer{}
				writer := multipart.NewWriter(body)
				Expect(writer.WriteField("note", "x")).To(Succeed())
				Expect(writer.Close()).To(Succeed())
				resp = do(http.MethodPost, "/api/scan", body, writer.FormDataContentType())
			})

			It("should return Bad Request", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decodeError(resp)).To(ContainSubstring("No photo was selected"))
			})
		})

		When("the user cancels", func() {
			BeforeEach(func() {
				scanner.scanErr = scanning.ErrUserCancelled
			})

			JustBeforeEach(func() {
				upload("label.jpg", []byte{})
			})

			It("should return No Content", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			})
		})

		When("permission is denied", func() {
			BeforeEach(func() {
				scanner.scanErr = scanning.ErrPermissionDenied
			})

			JustBeforeEach(func() {
				upload("label.jpg", []byte("jpeg bytes"))
			})

			It("should return Forbidden with the permission message", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
				Expect(decodeError(resp)).To(Equal("Camera access is required."))
			})
		})

		When("the image cannot be read", func() {
			BeforeEach(func() {
				scanner.scanErr = scanning.ErrUnreadableImage
			})

			JustBeforeEach(func() {
				upload("label.jpg", []byte("jpeg bytes"))
			})

			It("should return Bad Request", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("a remote service fails", func() {
			BeforeEach(func() {
				scanner.scanErr = &scanning.InterpretationServiceError{Err: errors.New("openai API error (status 429): rate limited")}
			})

			JustBeforeEach(func() {
				upload("label.jpg", []byte("jpeg bytes"))
			})

			It("should return Bad Gateway with the generic message", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
				Expect(decodeError(resp)).To(Equal("Failed to process image text."))
			})
		})
	})

	Describe("handleCreateMedication", func() {
		var resp *http.Response

		create := func(body string) {
			resp = do(http.MethodPost, "/api/medications", strings.NewReader(body), "application/json")
		}

		AfterEach(func() {
			resp.Body.Close()
		})

		It("should create the medication", func() {
			create(`{"name": "Amoxicillin", "dosageAmount": "500 mg", "dosageForm": "Capsule"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var m Medication
			Expect(json.NewDecoder(resp.Body).Decode(&m)).To(Succeed())
			Expect(m.ID).To(Equal("test-id-123"))
			Expect(m.UserID).To(Equal(LocalUser))
			Expect(m.Color).NotTo(BeEmpty())
			Expect(db.medications[LocalUser]).To(HaveKey("test-id-123"))
		})

		It("should reject incomplete forms", func() {
			create(`{"name": "Amoxicillin", "dosageAmount": "", "dosageForm": "Capsule"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decodeError(resp)).To(ContainSubstring("please complete all required fields"))
		})

		It("should reject bodies that fail the schema", func() {
			create(`{"name": "Amoxicillin"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(db.medications).To(BeEmpty())
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.saveErr = errors.New("database error")
			})

			It("should return Internal Server Error", func() {
				create(`{"name": "Amoxicillin", "dosageAmount": "500 mg", "dosageForm": "Capsule"}`)
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			})
		})
	})

	Describe("handleListMedications", func() {
		When("no medications exist", func() {
			It("should return an empty array", func() {
				resp := do(http.MethodGet, "/api/medications", nil, "")
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(MatchJSON(`[]`))
			})
		})

		When("the service returns an error", func() {
			BeforeEach(func() {
				db.listErr = errors.New("database error")
			})

			It("should return Internal Server Error", func() {
				resp := do(http.MethodGet, "/api/medications", nil, "")
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			})
		})
	})

	Describe("handleGetMedication", func() {
		BeforeEach(func() {
			db.put(&Medication{ID: "m1", UserID: LocalUser, Name: "Aspirin"})
		})

		It("should return the medication", func() {
			resp := do(http.MethodGet, "/api/medications/m1", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var m Medication
			Expect(json.NewDecoder(resp.Body).Decode(&m)).To(Succeed())
			Expect(m.Name).To(Equal("Aspirin"))
		})

		It("should return Not Found for an unknown ID", func() {
			resp := do(http.MethodGet, "/api/medications/missing", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleGetLabelImage", func() {
		BeforeEach(func() {
			db.put(&Medication{ID: "m1", UserID: LocalUser, LabelImage: "m1.png"})
			storage.files["m1.png"] = []byte("png bytes")
		})

		It("should return the image", func() {
			resp := do(http.MethodGet, "/api/medications/m1/label", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal([]byte("png bytes")))
		})

		It("should return Not Found when the image is gone", func() {
			delete(storage.files, "m1.png")
			resp := do(http.MethodGet, "/api/medications/m1/label", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleDeleteMedication", func() {
		BeforeEach(func() {
			db.put(&Medication{ID: "m1", UserID: LocalUser, Name: "Aspirin"})
		})

		It("should delete the medication", func() {
			resp := do(http.MethodDelete, "/api/medications/m1", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.medications[LocalUser]).NotTo(HaveKey("m1"))
		})

		It("should return Not Found for an unknown ID", func() {
			resp := do(http.MethodDelete, "/api/medications/missing", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleExport", func() {
		It("should return a spreadsheet attachment", func() {
			resp := do(http.MethodGet, "/api/medications/export.xlsx", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal(xlsxMimeType))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("medications.xlsx"))
		})
	})

	Describe("handleUpcomingReminders", func() {
		BeforeEach(func() {
			db.put(&Medication{
				ID: "m1", UserID: LocalUser, Name: "Aspirin",
				DailyReminder: true, ReminderTime: timePtr(time.Date(2024, 1, 15, 18, 0, 0, 0, time.UTC)),
			})
		})

		It("should return the pending reminders", func() {
			resp := do(http.MethodGet, "/api/reminders", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var reminders []Reminder
			Expect(json.NewDecoder(resp.Body).Decode(&reminders)).To(Succeed())
			Expect(reminders).To(HaveLen(1))
			Expect(reminders[0].Message).To(Equal("Time to take Aspirin!"))
		})
	})

	Describe("profile", func() {
		It("should save and return the first name", func() {
			resp := do(http.MethodPut, "/api/profile", strings.NewReader(`{"firstName": "Alice"}`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			resp.Body.Close()

			resp = do(http.MethodGet, "/api/profile", nil, "")
			defer resp.Body.Close()
			var p Profile
			Expect(json.NewDecoder(resp.Body).Decode(&p)).To(Succeed())
			Expect(p.FirstName).To(Equal("Alice"))
		})

		It("should reject a malformed body", func() {
			resp := do(http.MethodPut, "/api/profile", strings.NewReader(`{`), "application/json")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("handleOptions", func() {
		It("should list dosage forms and frequencies", func() {
			resp := do(http.MethodGet, "/api/options", nil, "")
			defer resp.Body.Close()
			var options map[string][]string
			Expect(json.NewDecoder(resp.Body).Decode(&options)).To(Succeed())
			Expect(options["dosageForms"]).To(Equal(DosageForms))
			Expect(options["frequencies"]).To(Equal(Frequencies))
		})
	})
})

var _ = Describe("uploadContentType", func() {
	DescribeTable("resolving the content type",
		func(declared, filename, expected string) {
			Expect(uploadContentType(declared, filename)).To(Equal(expected))
		},
		Entry("declared type wins", "image/png", "label.jpg", "image/png"),
		Entry("declared type is normalized", " Image/JPEG ", "label", "image/jpeg"),
		Entry("octet-stream falls back to the extension", "application/octet-stream", "IMG_0001.HEIC", "image/heic"),
		Entry("missing type falls back to the extension", "", "scan.pdf", "application/pdf"),
		Entry("unknown extension is left for sniffing", "", "label.bin", ""),
	)
})
