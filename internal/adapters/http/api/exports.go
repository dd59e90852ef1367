package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/tally/internal/export"
)

// ExportHandler serves the exports of the current view.
type ExportHandler struct {
	deps    Dependencies
	notices notices
}

// NewExportHandler creates a new export handler.
func NewExportHandler(deps Dependencies, n notices) *ExportHandler {
	return &ExportHandler{deps: deps, notices: n}
}

// HandlePages handles GET /export/pages[?precinct=NAME][&format=json]. The
// default is plain text with form feeds between pages.
func (h *ExportHandler) HandlePages(w http.ResponseWriter, r *http.Request) {
	const op = "api.export_pages"
	if !h.notices.allow(w, r, op, http.MethodGet) {
		return
	}
	pages, err := h.deps.Pages(r.URL.Query().Get("precinct"))
	if err != nil {
		h.notices.fail(w, op, err)
		return
	}
	switch r.URL.Query().Get("format") {
	case "json":
		writeJSON(w, http.StatusOK, pages)
	case "", "text":
		var buf bytes.Buffer
		if err := export.WriteText(&buf, pages); err != nil {
			h.notices.fail(w, op, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	default:
		h.notices.fail(w, op, NewKind(op, ErrBadRequest))
	}
}

// HandlePrint handles GET /export/print[?format=json|table]. The default is
// a print-ready HTML page.
func (h *ExportHandler) HandlePrint(w http.ResponseWriter, r *http.Request) {
	const op = "api.export_print"
	if !h.notices.allow(w, r, op, http.MethodGet) {
		return
	}
	doc, err := h.deps.PrintDocument()
	if err != nil {
		h.notices.fail(w, op, err)
		return
	}
	var (
		buf         bytes.Buffer
		contentType string
	)
	switch r.URL.Query().Get("format") {
	case "json":
		writeJSON(w, http.StatusOK, doc)
		return
	case "table":
		err = doc.WriteTable(&buf)
		contentType = "text/plain; charset=utf-8"
	case "", "html":
		err = doc.WriteHTML(&buf)
		contentType = "text/html; charset=utf-8"
	default:
		h.notices.fail(w, op, NewKind(op, ErrBadRequest))
		return
	}
	if err != nil {
		h.notices.fail(w, op, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(buf.Bytes())
}

// DigestHeader carries the BLAKE3 digest of an archive response.
const DigestHeader = "X-Content-Blake3"

// HandleArchive handles GET /export/archive: the view as zstd-compressed JSON.
func (h *ExportHandler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	const op = "api.export_archive"
	if !h.notices.allow(w, r, op, http.MethodGet) {
		return
	}
	var buf bytes.Buffer
	digest, n, err := h.deps.Archive(&buf, r.Host)
	if err != nil {
		h.notices.fail(w, op, err)
		return
	}
	name := fmt.Sprintf("tally-%s.json.zst", time.Now().UTC().Format("20060102T150405Z"))
	w.Header().Set("Content-Type", "application/zstd")
	w.Header().Set("Content-Length", strconv.Itoa(n))
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set(DigestHeader, digest.String())
	_, _ = w.Write(buf.Bytes())
}
