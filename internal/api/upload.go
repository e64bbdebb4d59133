package api

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/starford/cogninote/internal/noteservice"
	"github.com/starford/cogninote/internal/parser"
)

const maxUploadBytes = 5 << 20 // 5 MB

// UploadCapture handles POST /api/captures/upload (multipart/form-data,
// field "file"). The file is read like an inbox capture file: frontmatter
// "seed: true" requests a seed note and [[wikilinks]] become context.
func (h *Handler) UploadCapture(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".md", ".txt":
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("only .md and .txt files can be captured"))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}
	note, err := h.svc.Capture(r.Context(), noteservice.FileRequest(parser.Parse(data)))
	if err != nil {
		writeError(w, "upload capture", err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}
