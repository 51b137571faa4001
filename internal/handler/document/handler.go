package document

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	docmodel "github.com/mviana/docchat/backend/internal/model/document"
	"github.com/mviana/docchat/backend/internal/service/ingest"
	"github.com/mviana/docchat/backend/pkg/utils"
)

// maxUploadBytes caps one multipart upload held in memory.
const maxUploadBytes = 32 << 20

// Handler exposes the live document set and file ingestion over HTTP.
type Handler struct {
	store     *docmodel.Store
	ingestSvc *ingest.Service
}

// New creates the document handler.
func New(store *docmodel.Store, ingestSvc *ingest.Service) *Handler {
	return &Handler{store: store, ingestSvc: ingestSvc}
}

// RegisterRoutes mounts the document endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/documents", h.handleList)
	r.Post("/documents", h.handleUpload)
	r.Delete("/documents/{id}", h.handleRemove)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"documents": h.store.List(),
	})
}

// handleUpload accepts one or more files under the "files" form field.
// Each file decodes independently; failures are reported per file and
// never block the others.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "no files provided")
		return
	}

	files := make([]ingest.File, 0, len(headers))
	failed := make([]ingest.Failure, 0)
	for _, header := range headers {
		src, err := header.Open()
		if err != nil {
			failed = append(failed, ingest.Failure{Name: header.Filename, Reason: err.Error()})
			continue
		}
		data, err := io.ReadAll(src)
		_ = src.Close()
		if err != nil {
			failed = append(failed, ingest.Failure{Name: header.Filename, Reason: err.Error()})
			continue
		}
		files = append(files, ingest.File{Name: header.Filename, Data: data})
	}

	added, decodeFailed := h.ingestSvc.IngestAll(r.Context(), files)
	failed = append(failed, decodeFailed...)

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"added":  added,
		"failed": failed,
	})
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	h.store.Remove(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}
