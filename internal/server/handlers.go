package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/zzatang/tongue-twisters-challenge/internal/auth"
	"github.com/zzatang/tongue-twisters-challenge/internal/badges"
	"github.com/zzatang/tongue-twisters-challenge/internal/practice"
	"github.com/zzatang/tongue-twisters-challenge/internal/progress"
	"github.com/zzatang/tongue-twisters-challenge/internal/store"
)

// ── Speech analysis ─────────────────────────────────────────────────────────

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req practice.AnalyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	userID := auth.UserID(r.Context())
	resp, err := s.analyzer.Analyze(r.Context(), userID, req)
	if err != nil {
		switch {
		case practice.IsValidationError(err):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, practice.ErrPhraseNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, practice.ErrTranscription):
			// Provider details stay in the logs.
			s.logger.Error("analysis failed", "user_id", userID, "error", err)
			writeError(w, http.StatusBadGateway, "speech recognition is temporarily unavailable")
		default:
			s.logger.Error("analysis failed", "user_id", userID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ── Phrase catalog ──────────────────────────────────────────────────────────

// phraseList is the catalog response shape.
type phraseList struct {
	Twisters []store.Phrase `json:"twisters"`
}

func (s *Server) handleListPhrases(w http.ResponseWriter, r *http.Request) {
	phrases, err := s.store.ListPhrases(r.Context())
	if err != nil {
		s.logger.Error("list phrases failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if phrases == nil {
		phrases = []store.Phrase{}
	}
	writeJSON(w, http.StatusOK, phraseList{Twisters: phrases})
}

func (s *Server) handleGetPhrase(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, err := s.store.GetPhrase(r.Context(), id)
	if err != nil {
		s.logger.Error("get phrase failed", "phrase_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "tongue twister not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreatePhrase(w http.ResponseWriter, r *http.Request) {
	var p store.Phrase
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.CreatePhrase(r.Context(), &p); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("create phrase failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, &p)
}

func (s *Server) handleUpdatePhrase(w http.ResponseWriter, r *http.Request) {
	var p store.Phrase
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	p.ID = r.PathValue("id")
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.UpdatePhrase(r.Context(), &p); err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("update phrase failed", "phrase_id", p.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, &p)
}

func (s *Server) handleDeletePhrase(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeletePhrase(r.Context(), id); err != nil {
		s.logger.Error("delete phrase failed", "phrase_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Progress ────────────────────────────────────────────────────────────────

// progressResponse mirrors the persisted progress row in camelCase.
type progressResponse struct {
	UserID            string             `json:"userId"`
	PracticeStreak    int                `json:"practiceStreak"`
	TotalPracticeTime int                `json:"totalPracticeTime"`
	TotalSessions     int                `json:"totalSessions"`
	ClarityScore      int                `json:"clarityScore"`
	BestClarityScore  int                `json:"bestClarityScore"`
	PracticeFrequency progress.Frequency `json:"practiceFrequency"`
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	p, err := s.store.GetProgress(r.Context(), userID)
	if err != nil {
		s.logger.Error("get progress failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	// Users who have not practiced yet get a zeroed row, not a 404.
	if p == nil {
		p = progress.New(userID)
	}
	writeJSON(w, http.StatusOK, progressResponse{
		UserID:            p.UserID,
		PracticeStreak:    p.PracticeStreak,
		TotalPracticeTime: p.TotalPracticeTime,
		TotalSessions:     p.TotalSessions,
		ClarityScore:      p.ClarityScore,
		BestClarityScore:  p.BestClarityScore,
		PracticeFrequency: p.Frequency,
	})
}

// ── Badges ──────────────────────────────────────────────────────────────────

type badgeList struct {
	Badges []badges.Badge `json:"badges"`
}

func (s *Server) handleListBadges(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.store.ListBadges(r.Context())
	if err != nil {
		s.logger.Error("list badges failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if catalog == nil {
		catalog = []badges.Badge{}
	}
	writeJSON(w, http.StatusOK, badgeList{Badges: catalog})
}

type earnedList struct {
	Badges []badges.Earned `json:"badges"`
}

func (s *Server) handleUserBadges(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	earned, err := s.store.EarnedBadges(r.Context(), userID)
	if err != nil {
		s.logger.Error("list earned badges failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if earned == nil {
		earned = []badges.Earned{}
	}
	writeJSON(w, http.StatusOK, earnedList{Badges: earned})
}

func (s *Server) handleCreateBadge(w http.ResponseWriter, r *http.Request) {
	var b badges.Badge
	if err := decodeJSON(r, &b); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := b.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.CreateBadge(r.Context(), &b); err != nil {
		s.logger.Error("create badge failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, &b)
}

// ── Sessions ────────────────────────────────────────────────────────────────

type sessionList struct {
	Sessions []store.Session `json:"sessions"`
}

func (s *Server) handleUserSessions(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	sessions, err := s.store.RecentSessions(r.Context(), userID, limit)
	if err != nil {
		s.logger.Error("list sessions failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	writeJSON(w, http.StatusOK, sessionList{Sessions: sessions})
}
