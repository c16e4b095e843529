package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hyperjump/docindex/internal/keyword"
	"github.com/hyperjump/docindex/internal/models"
)

type contextRequest struct {
	Query     string `json:"query"`
	MaxTokens int    `json:"max_tokens"`
}

type upsertRequest struct {
	URI      string          `json:"uri"`
	Text     string          `json:"text"`
	DocType  string          `json:"doc_type"`
	Metadata models.Metadata `json:"metadata"`
}

type documentInfo struct {
	URI    string `json:"uri"`
	ID     string `json:"id"`
	Chunks int    `json:"chunks"`
}

type documentDetail struct {
	URI      string          `json:"uri"`
	ID       string          `json:"id"`
	Length   int             `json:"length"`
	Metadata models.Metadata `json:"metadata,omitempty"`
	Text     string          `json:"text"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("query request", zap.String("query", query.Query), zap.Int("max_documents", query.MaxDocuments))
	response, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		s.fail(w, "query failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = s.contextTokens
	}
	out, err := s.builder.Build(r.Context(), req.Query, req.MaxTokens)
	if err != nil {
		s.fail(w, "context failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDocuments(w http.ResponseWriter, r *http.Request) {
	if uri := r.URL.Query().Get("uri"); uri != "" {
		s.handleGetDocument(w, uri)
		return
	}
	docs, err := s.index.ListDocuments()
	if err != nil {
		s.fail(w, "list documents failed", err)
		return
	}
	out := make([]documentInfo, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentInfo{URI: d.URI, ID: d.ID, Chunks: len(d.Chunks)})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": out, "total": len(out)})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, uri string) {
	doc, err := s.index.GetDocument(uri)
	if err != nil {
		s.fail(w, "get document failed", err)
		return
	}
	text, err := doc.LoadText()
	if err != nil {
		s.fail(w, "get document failed", err)
		return
	}
	md, err := doc.LoadMetadata()
	if err != nil {
		s.fail(w, "get document failed", err)
		return
	}
	length, err := doc.Length()
	if err != nil {
		s.fail(w, "get document failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, documentDetail{URI: doc.URI, ID: doc.ID, Length: length, Metadata: md, Text: text})
}

func (s *Server) handleUpsertDocument(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URI == "" {
		s.respondError(w, http.StatusBadRequest, "uri is required")
		return
	}
	s.logger.Debug("upsert document request", zap.String("uri", req.URI), zap.Int("bytes", len(req.Text)))
	doc, err := s.index.UpsertDocument(r.Context(), req.URI, req.Text, req.DocType, req.Metadata)
	if err != nil {
		s.fail(w, "upsert failed", err)
		return
	}
	if s.keywords != nil {
		if err := s.keywords.Upsert(r.Context(), doc.URI, req.Text); err != nil {
			s.fail(w, "keyword index failed", err)
			return
		}
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"uri": doc.URI, "id": doc.ID, "status": "indexed"})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		s.respondError(w, http.StatusBadRequest, "uri is required")
		return
	}
	if _, ok, err := s.index.GetDocumentID(uri); err != nil {
		s.fail(w, "delete failed", err)
		return
	} else if !ok {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.logger.Debug("delete document request", zap.String("uri", uri))
	if err := s.index.DeleteDocument(r.Context(), uri); err != nil {
		s.fail(w, "delete failed", err)
		return
	}
	if s.keywords != nil {
		if err := s.keywords.Delete(r.Context(), uri); err != nil {
			s.fail(w, "delete failed", err)
			return
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"uri": uri, "status": "deleted"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.index.Stats()
	if err != nil {
		s.fail(w, "stats failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		s.respondError(w, http.StatusNotImplemented, "sync not enabled")
		return
	}
	report, err := s.syncer.Sync(r.Context())
	if err != nil {
		s.fail(w, "sync failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	if s.keywords == nil {
		s.respondError(w, http.StatusNotImplemented, "keyword index not enabled")
		return
	}
	q := r.URL.Query()
	opts := keyword.SearchOptions{}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = n
	}
	if v := q.Get("fuzzy"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid fuzzy")
			return
		}
		opts.Fuzzy = b
	}
	if v := q.Get("fuzziness"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "invalid fuzziness")
			return
		}
		opts.Fuzziness = n
	}
	res, err := s.keywords.Find(r.Context(), q.Get("q"), opts)
	if err != nil {
		s.fail(w, "find failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrConfig):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
