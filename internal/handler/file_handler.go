package handler

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"willcloud/internal/domain"
	"willcloud/internal/service"
	"willcloud/internal/storage"
)

const confirmHeader = "X-Confirm-Filename"

type FileHandler struct {
	sessions  sessionLookup
	maxMemory int64
}

func NewFileHandler(sessions *service.Sessions, maxMemory int64) *FileHandler {
	return &FileHandler{sessions: tokenSessions{sessions: sessions}, maxMemory: maxMemory}
}

type listResponse struct {
	Files []domain.FileSummary `json:"files"`
	Error string               `json:"error,omitempty"`
}

// ListFiles re-fetches the listing. A failed fetch still answers with the
// previously displayed list.
func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(h.sessions, w, r)
	if !ok {
		return
	}

	resp := listResponse{}
	if err := d.FetchFiles(r.Context()); err != nil {
		resp.Error = fmt.Sprintf("Error fetching files: %v", err)
	}
	resp.Files = d.View().Files

	writeJSON(w, http.StatusOK, resp)
}

// UploadFiles stores every part of the "files" form field, in order.
func (h *FileHandler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(h.sessions, w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		http.Error(w, "No files uploaded", http.StatusBadRequest)
		return
	}

	files := make([]domain.LocalFile, 0, len(headers))
	for _, fh := range headers {
		fh := fh
		files = append(files, domain.LocalFile{
			Name:     fh.Filename,
			Size:     fh.Size,
			MIMEType: fh.Header.Get("Content-Type"),
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}

	result, err := d.Upload(r.Context(), files)
	if err != nil {
		log.Printf("[Upload] batch rejected: %v", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// DownloadFile streams the blob as an attachment.
func (h *FileHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(h.sessions, w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid file ID", http.StatusBadRequest)
		return
	}

	written := false
	_, err = d.Download(r.Context(), id, func(file *domain.File, blob storage.Object) error {
		w.Header().Set("Content-Type", file.MIMEType)
		w.Header().Set("Content-Disposition", contentDisposition(file.Filename))
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		if n := blob.ContentLength(); n > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(n, 10))
		}
		written = true
		_, err := io.Copy(w, blob)
		return err
	})
	if err != nil {
		log.Printf("[Download] %v", err)
		if !written {
			http.Error(w, err.Error(), statusFor(err))
		}
	}
}

// DeleteFile requires the filename to be repeated in the X-Confirm-Filename
// header or the confirm query parameter.
func (h *FileHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(h.sessions, w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid file ID", http.StatusBadRequest)
		return
	}

	confirmation := r.Header.Get(confirmHeader)
	if confirmation == "" {
		confirmation = r.URL.Query().Get("confirm")
	}

	file, err := d.Delete(r.Context(), id, confirmation)
	if err != nil {
		log.Printf("[Delete] %v", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, file)
}

func contentDisposition(name string) string {
	if isASCII(name) {
		return fmt.Sprintf(`attachment; filename="%s"`, strings.ReplaceAll(name, `"`, `\"`))
	}
	return fmt.Sprintf(`attachment; filename="download"; filename*=UTF-8''%s`, url.PathEscape(name))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}
