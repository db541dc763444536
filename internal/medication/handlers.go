package medication

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/med-tracker/internal/scanning"
)

const (
	maxUploadSize = int64(50 << 20)
	maxBodySize   = int64(1 << 20)
	xlsxMimeType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// corsError writes a plain text error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes a JSON error response with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// writeJSON writes v as a JSON response
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// uploadContentType returns the declared content type of an upload, falling back to its extension
func uploadContentType(declared, filename string) string {
	contentType := strings.ToLower(strings.TrimSpace(declared))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return contentType
}

// handleScanLabel runs an uploaded label photo through the scan pipeline
func (s *Server) handleScanLabel(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No photo was selected. Please take or choose a photo of the label."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Size > maxUploadSize {
		jsonError(w, "File is too large. Maximum size is 50MB. Please compress or resize your image.", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := uploadContentType(header.Header.Get("Content-Type"), header.Filename)
	result, err := s.service.ScanLabel(r.Context(), userID(r), header.Filename, data, contentType)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, scanning.ErrUserCancelled):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, scanning.ErrPermissionDenied):
		jsonError(w, scanning.UserMessage(err), http.StatusForbidden)
	case errors.Is(err, scanning.ErrUnreadableImage):
		jsonError(w, "Unsupported or unreadable image. Please try another photo.", http.StatusBadRequest)
	default:
		slog.Error("Error scanning label", "filename", header.Filename, "error", err)
		jsonError(w, scanning.UserMessage(err), http.StatusBadGateway)
	}
}

// handleCreateMedication saves a user-confirmed medication
func (s *Server) handleCreateMedication(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	in, err := DecodeNewMedication(body)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	m, err := s.service.CreateMedication(userID(r), in)
	if errors.Is(err, ErrValidation) {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Error("Error creating medication", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

// handleListMedications returns the user's medications, newest first
func (s *Server) handleListMedications(w http.ResponseWriter, r *http.Request) {
	meds, err := s.service.ListMedications(userID(r))
	if err != nil {
		slog.Error("Error listing medications", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, meds)
}

// handleGetMedication returns a single medication
func (s *Server) handleGetMedication(w http.ResponseWriter, r *http.Request) {
	m, err := s.service.GetMedication(userID(r), r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		corsError(w, "Medication not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Error getting medication", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// handleGetLabelImage returns the label photo of a medication
func (s *Server) handleGetLabelImage(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.GetLabelImage(userID(r), r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		corsError(w, "Label image not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Error getting label image", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
}

// handleDeleteMedication deletes a medication
func (s *Server) handleDeleteMedication(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteMedication(userID(r), r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		corsError(w, "Medication not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Error deleting medication", "error", err)
		corsError(w, "Error deleting medication", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleExport returns the user's medications as a spreadsheet
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.ExportXLSX(userID(r))
	if err != nil {
		slog.Error("Error exporting medications", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", xlsxMimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="medications.xlsx"`)
	w.Write(data)
}

// handleUpcomingReminders returns the user's pending reminders
func (s *Server) handleUpcomingReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := s.service.UpcomingReminders(userID(r))
	if err != nil {
		slog.Error("Error listing reminders", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, reminders)
}

// handleGetProfile returns the user's profile
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.GetProfile(userID(r))
	if err != nil {
		slog.Error("Error getting profile", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// handleUpdateProfile saves the user's first name
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName string `json:"firstName"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	p, err := s.service.UpdateProfile(userID(r), req.FirstName)
	if err != nil {
		slog.Error("Error updating profile", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// handleOptions returns the choices offered by the add-medication form
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"dosageForms": DosageForms,
		"frequencies": Frequencies,
	})
}
