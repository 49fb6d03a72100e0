package server

import (
	"bytes"
	"net/http"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/ranking"
	"github.com/ricesearch/rice-eval/internal/store"
)

// StoreHandler exposes stored runs and qrels over HTTP.
type StoreHandler struct {
	svc *store.Service
}

// NewStoreHandler creates a new store handler.
func NewStoreHandler(svc *store.Service) *StoreHandler {
	return &StoreHandler{svc: svc}
}

// RegisterRoutes registers /v1/runs and /v1/qrels routes.
func (h *StoreHandler) RegisterRoutes(mux *http.ServeMux) {
	for _, kind := range []store.Kind{store.KindRun, store.KindQrels} {
		base := "/v1/" + collection(kind)
		mux.HandleFunc("GET "+base, h.handleList(kind))
		mux.HandleFunc("PUT "+base+"/{name}", h.handlePut(kind))
		mux.HandleFunc("GET "+base+"/{name}", h.handleGet(kind))
		mux.HandleFunc("DELETE "+base+"/{name}", h.handleDelete(kind))
	}
}

func collection(kind store.Kind) string {
	if kind == store.KindRun {
		return "runs"
	}
	return "qrels"
}

// requestFormat reads ?format=, defaulting to json.
func requestFormat(r *http.Request) (ranking.Format, error) {
	f := r.URL.Query().Get("format")
	if f == "" {
		return ranking.FormatJSON, nil
	}
	return ranking.ParseFormat(f)
}

// handleList handles GET /v1/{runs,qrels}
func (h *StoreHandler) handleList(kind store.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := h.svc.List(r.Context(), kind)
		if err != nil {
			apperrors.WriteError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			collection(kind): summaries,
		})
	}
}

// handlePut handles PUT /v1/{runs,qrels}/{name}. The body is a
// {query: {doc: score}} object, or TREC lines with ?format=trec.
func (h *StoreHandler) handlePut(kind store.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if err := store.ValidateName(name); err != nil {
			apperrors.WriteError(w, err)
			return
		}
		format, err := requestFormat(r)
		if err != nil {
			apperrors.WriteError(w, err)
			return
		}

		var doc *store.Document
		switch kind {
		case store.KindRun:
			run, err := ranking.ReadRun(r.Body, format)
			if err != nil {
				apperrors.WriteError(w, err)
				return
			}
			if tag := r.URL.Query().Get("run_name"); tag != "" {
				run.Name = tag
			}
			doc = store.NewRunDocument(name, run)
		default:
			qrels, err := ranking.ReadQrels(r.Body, format)
			if err != nil {
				apperrors.WriteError(w, err)
				return
			}
			doc = store.NewQrelsDocument(name, qrels)
		}

		if err := h.svc.Put(r.Context(), doc); err != nil {
			apperrors.WriteError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, doc.Summarize())
	}
}

// handleGet handles GET /v1/{runs,qrels}/{name}. ?format=trec returns TREC
// lines instead of the JSON document.
func (h *StoreHandler) handleGet(kind store.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format, err := requestFormat(r)
		if err != nil {
			apperrors.WriteError(w, err)
			return
		}

		doc, err := h.svc.Get(r.Context(), kind, r.PathValue("name"))
		if err != nil {
			apperrors.WriteError(w, err)
			return
		}

		if format == ranking.FormatJSON {
			writeJSON(w, http.StatusOK, doc)
			return
		}

		var buf bytes.Buffer
		switch kind {
		case store.KindRun:
			run, err := doc.Run()
			if err == nil {
				err = run.Write(&buf, format)
			}
			if err != nil {
				apperrors.WriteError(w, err)
				return
			}
		default:
			qrels, err := doc.Qrels()
			if err == nil {
				err = qrels.Write(&buf, format)
			}
			if err != nil {
				apperrors.WriteError(w, err)
				return
			}
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}

// handleDelete handles DELETE /v1/{runs,qrels}/{name}
func (h *StoreHandler) handleDelete(kind store.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.svc.Delete(r.Context(), kind, r.PathValue("name")); err != nil {
			apperrors.WriteError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
