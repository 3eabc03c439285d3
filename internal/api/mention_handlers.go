package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/muniwatch/muniwatch/internal/monitor"
	"github.com/muniwatch/muniwatch/internal/repository"
)

func (s *Server) listMentions(w http.ResponseWriter, r *http.Request) {
	filter := repository.Filter{
		Status:   r.URL.Query().Get("status"),
		Location: r.URL.Query().Get("location"),
		Priority: r.URL.Query().Get("priority"),
	}
	mentions, err := s.repo.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, mentions)
}

func (s *Server) getMention(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "mention_id")
	mention, err := s.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, monitor.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Mention not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, mention)
}

func (s *Server) updateMention(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "mention_id")
	var patch monitor.MentionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	mention, err := s.repo.Update(r.Context(), id, patch)
	if err != nil {
		if errors.Is(err, monitor.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Mention not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, mention)
}

func (s *Server) deleteMention(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "mention_id")
	if err := s.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, monitor.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Mention not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Mention deleted successfully"})
}

type crawlRequest struct {
	Queries            []string `json:"queries"`
	MaxResultsPerQuery int      `json:"max_results_per_query"`
}

func (s *Server) triggerCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	summary, err := s.orch.Run(r.Context(), req.Queries, req.MaxResultsPerQuery)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, summary)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.repo.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) getCrawlLog(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	entries, err := s.log.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []monitor.CrawlLogEntry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

type exportResponse struct {
	ExportedAt string            `json:"exported_at"`
	Count      int               `json:"count"`
	Mentions   []monitor.Mention `json:"mentions"`
}

func (s *Server) exportMentions(w http.ResponseWriter, r *http.Request) {
	mentions, err := s.repo.List(r.Context(), repository.Filter{
		Status: r.URL.Query().Get("status"),
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, exportResponse{
		ExportedAt: s.clock.Now().Format(time.RFC3339),
		Count:      len(mentions),
		Mentions:   mentions,
	})
}
