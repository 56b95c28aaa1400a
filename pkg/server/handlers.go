package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shouni/go-parasha-kit/pkg/asset"
	"github.com/shouni/go-parasha-kit/pkg/review"
	"github.com/shouni/go-parasha-kit/pkg/state"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "parasha-pack-api",
	})
}

// deckInfo はデッキ一覧の1エントリです。
type deckInfo struct {
	Name         string `json:"name"`
	HasDeckJSON  bool   `json:"has_deck_json"`
	HasPipeline  bool   `json:"has_pipeline"`
	CurrentStage string `json:"current_stage,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
	ImageCount   int    `json:"image_count"`
}

func (s *Server) handleDeckList(w http.ResponseWriter, _ *http.Request) {
	entries, err := os.ReadDir(s.decksDir)
	if err != nil {
		// デッキディレクトリがまだ無いだけなら空一覧を返します
		s.writeJSON(w, http.StatusOK, map[string]any{"decks": []deckInfo{}})
		return
	}

	decks := make([]deckInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		deckDir := filepath.Join(s.decksDir, entry.Name())

		info := deckInfo{
			Name:        entry.Name(),
			HasDeckJSON: fileExists(filepath.Join(deckDir, "deck.json")),
			HasPipeline: dirExists(filepath.Join(deckDir, asset.PipelineDirName)),
			ImageCount:  countPNGs(filepath.Join(deckDir, asset.DefaultImageDir)),
		}
		if st, err := state.NewStore(deckDir).Load(); err == nil {
			info.CurrentStage = st.CurrentStage
			info.UpdatedAt = st.UpdatedAt
		}
		decks = append(decks, info)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"decks": decks})
}

func (s *Server) handleDeckStatus(w http.ResponseWriter, r *http.Request) {
	deckName := strings.ToLower(chi.URLParam(r, "deck"))
	deckDir := filepath.Join(s.decksDir, deckName)

	st, err := state.NewStore(deckDir).Load()
	if err != nil {
		if !errors.Is(err, state.ErrNoState) {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if dirExists(deckDir) {
			s.writeJSON(w, http.StatusOK, map[string]any{
				"exists":       true,
				"has_pipeline": false,
				"status":       "no_pipeline",
				"message":      "Deck exists but no pipeline state found",
			})
			return
		}
		s.writeJSON(w, http.StatusNotFound, map[string]any{
			"exists":  false,
			"status":  "not_found",
			"message": fmt.Sprintf("Deck '%s' not found", deckName),
		})
		return
	}

	status := map[string]any{
		"exists":             true,
		"has_pipeline":       true,
		"parasha":            st.Parasha,
		"content_type":       st.ContentType,
		"current_stage":      st.CurrentStage,
		"completed_stages":   st.CompletedStages,
		"checkpoints":        st.Checkpoints,
		"needs_human_review": st.NeedsHumanReview,
		"created_at":         st.CreatedAt,
		"updated_at":         st.UpdatedAt,
		"status":             st.Status(),
	}
	if pending := st.PendingCheckpoints(); len(pending) > 0 {
		status["pending_checkpoints"] = pending
	}
	s.writeJSON(w, http.StatusOK, status)
}

// approveRequest は承認リクエストのボディです。ボディ無しも許容します。
type approveRequest struct {
	Notes  string `json:"notes"`
	Resume bool   `json:"resume"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	deckName := strings.ToLower(chi.URLParam(r, "deck"))
	checkpoint := chi.URLParam(r, "checkpoint")

	var req approveRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	store := state.NewStore(filepath.Join(s.decksDir, deckName))
	if err := store.ApproveCheckpoint(checkpoint, req.Notes); err != nil {
		switch {
		case errors.Is(err, state.ErrNoState):
			s.writeError(w, http.StatusNotFound,
				fmt.Sprintf("Deck '%s' not found or has no pipeline", deckName))
		case errors.Is(err, state.ErrNotPending):
			s.writeError(w, http.StatusConflict, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	result := map[string]any{
		"success":    true,
		"message":    fmt.Sprintf("Checkpoint '%s' approved for %s", checkpoint, deckName),
		"checkpoint": checkpoint,
		"notes":      req.Notes,
	}

	if req.Resume && s.resumer != nil {
		if err := s.resumer.Resume(r.Context(), deckName); err != nil {
			result["resume"] = map[string]any{"success": false, "error": err.Error()}
		} else {
			result["resume"] = map[string]any{"success": true}
		}
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	if s.regenerator == nil {
		s.writeError(w, http.StatusServiceUnavailable, "再生成はこのサーバーでは無効です")
		return
	}

	deckName := strings.ToLower(chi.URLParam(r, "deck"))
	cardID := chi.URLParam(r, "cardID")
	deckPath := filepath.Join(s.decksDir, deckName, "deck.json")

	if !fileExists(deckPath) {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("Deck '%s' not found", deckName))
		return
	}

	if err := s.regenerator.RegenerateCard(r.Context(), deckPath, cardID); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"card_id": cardID,
			"error":   err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "card_id": cardID})
}

func (s *Server) handleAllReviews(w http.ResponseWriter, r *http.Request) {
	deckName := strings.ToLower(chi.URLParam(r, "deck"))
	deckDir := filepath.Join(s.decksDir, deckName)

	reviews := map[string]json.RawMessage{}
	reviewsDir := filepath.Join(deckDir, asset.ReviewsDirName)
	entries, err := os.ReadDir(reviewsDir)
	if err == nil {
		for _, entry := range entries {
			name := entry.Name()
			if !strings.HasSuffix(name, "_review.json") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(reviewsDir, name))
			if err != nil {
				continue
			}
			cardID := strings.TrimSuffix(name, "_review.json")
			reviews[cardID] = json.RawMessage(data)
		}
	}

	response := map[string]any{
		"deck":    deckName,
		"reviews": reviews,
	}
	if summary, err := review.NewStore(deckDir).LoadSummary(); err == nil {
		response["summary"] = summary
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleCardReview(w http.ResponseWriter, r *http.Request) {
	deckName := strings.ToLower(chi.URLParam(r, "deck"))
	cardID := chi.URLParam(r, "cardID")

	rev, err := review.NewStore(filepath.Join(s.decksDir, deckName)).LoadReview(cardID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rev == nil {
		s.writeError(w, http.StatusNotFound,
			fmt.Sprintf("No review found for card '%s'", cardID))
		return
	}
	s.writeJSON(w, http.StatusOK, rev)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if s.resumer == nil {
		s.writeError(w, http.StatusServiceUnavailable, "再開はこのサーバーでは無効です")
		return
	}

	deckName := strings.ToLower(chi.URLParam(r, "deck"))
	if err := s.resumer.Resume(r.Context(), deckName); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Orchestrator resumed for %s", deckName),
	})
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func countPNGs(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".png") {
			count++
		}
	}
	return count
}
