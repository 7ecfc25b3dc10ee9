package api

import (
	"encoding/json"
	"net/http"

	"github.com/dgallion1/epubhtml/internal/book"
	"github.com/dgallion1/epubhtml/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

type failureView struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

type summaryView struct {
	RunID       string              `json:"run_id"`
	Sources     int                 `json:"sources"`
	Chapters    int                 `json:"chapters"`
	Failed      []failureView       `json:"failed"`
	WordCount   int                 `json:"word_count"`
	HTMLDigest  string              `json:"html_sha256"`
	IndexDigest string              `json:"index_sha256"`
	Index       book.StructureIndex `json:"index"`
}

func summarize(res *pipeline.Result) summaryView {
	failed := make([]failureView, 0, len(res.Failures))
	for _, f := range res.Failures {
		failed = append(failed, failureView{File: f.File, Error: f.Err.Error()})
	}
	return summaryView{
		RunID:       res.RunID,
		Sources:     res.Sources,
		Chapters:    len(res.Chapters),
		Failed:      failed,
		WordCount:   res.WordCount,
		HTMLDigest:  res.HTMLDigest,
		IndexDigest: res.IndexDigest,
		Index:       res.Index,
	}
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	res := s.current()
	if res == nil {
		jsonError(w, "no build available", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(res.HTML)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	res := s.current()
	if res == nil {
		jsonError(w, "no build available", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(res.IndexJSON)
}

func (s *Server) handleListChapters(w http.ResponseWriter, r *http.Request) {
	res := s.current()
	if res == nil {
		jsonError(w, "no build available", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, summarize(res))
}

// handleGetChapter returns one chapter including its content fragment.
func (s *Server) handleGetChapter(w http.ResponseWriter, r *http.Request) {
	res := s.current()
	if res == nil {
		jsonError(w, "no build available", http.StatusServiceUnavailable)
		return
	}
	ch, ok := res.Chapter(chi.URLParam(r, "chapterID"))
	if !ok {
		jsonError(w, "chapter not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      ch.ID,
		"title":   ch.Title,
		"order":   ch.Order,
		"content": ch.Content,
	})
}

// handleRebuild re-runs the conversion and swaps in the new result.
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	res, err := pipeline.Run(s.cfg, s.log)
	if err != nil {
		s.log.Error("rebuild failed", "error", err)
		jsonError(w, "rebuild failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.setResult(res)
	writeJSON(w, http.StatusOK, summarize(res))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
