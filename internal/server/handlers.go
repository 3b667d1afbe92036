package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"talktocode/internal/domain"
	"talktocode/internal/usecase"
)

type parseRepoRequest struct {
	Username string `json:"username"`
	Repo     string `json:"repo"`
}

type queryRequest struct {
	Question string `json:"question"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type queryResponse struct {
	Message string               `json:"message"`
	Results []domain.QueryResult `json:"results"`
}

func (s *Server) handleParseRepo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
		return
	}

	var req parseRepoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	// Validated before any external call.
	if req.Username == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Username is required"})
		return
	}
	if req.Repo == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Repository name is required"})
		return
	}

	result, err := s.ingestor.Ingest(r.Context(), req.Username, req.Repo, nil)
	if err != nil {
		s.log.Error("ingestion failed", "owner", req.Username, "repo", req.Repo, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: "Failed to process repository. Please check the provided parameters and try again.",
		})
		return
	}

	// Partial success is success; per-chunk failures are logged server-side.
	for _, e := range result.Errors {
		s.log.Warn("ingestion item failed", "detail", e)
	}
	writeJSON(w, http.StatusOK, messageResponse{
		Message: "Repository contents processed and embeddings stored!",
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}
	if req.Question == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Question is required"})
		return
	}

	results, err := s.answerer.Answer(r.Context(), req.Question, s.topK)
	if err != nil {
		if errors.Is(err, usecase.ErrNoMatches) {
			// Not a failure: the namespace is simply empty for this query.
			writeJSON(w, http.StatusOK, errorResponse{Error: "No matches found."})
			return
		}
		s.log.Error("query failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: "Failed to query embeddings. Please try again.",
		})
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Message: "Query successful!",
		Results: results,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
