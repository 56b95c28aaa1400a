// Package server はレビュー・承認用のHTTP APIを提供します。
// 人間のレビュアーがブラウザからデッキの進行確認、チェックポイント承認、
// カードの再生成指示を行うための面です。
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// CardRegenerator は単一カードの再生成surfaceです。
type CardRegenerator interface {
	RegenerateCard(ctx context.Context, deckPath, cardID string) error
}

// PipelineResumer は承認後にパイプラインを再開するsurfaceです。
type PipelineResumer interface {
	Resume(ctx context.Context, deckName string) error
}

// Server はレビューAPIのHTTPハンドラ群です。
type Server struct {
	decksDir    string
	regenerator CardRegenerator
	resumer     PipelineResumer
	logger      *slog.Logger
}

// Option は Server の設定変更関数です。
type Option func(*Server)

// WithRegenerator はカード再生成の実装を差し込みます。
func WithRegenerator(r CardRegenerator) Option {
	return func(s *Server) { s.regenerator = r }
}

// WithResumer はパイプライン再開の実装を差し込みます。
func WithResumer(r PipelineResumer) Option {
	return func(s *Server) { s.resumer = r }
}

// New は Server を初期化します。decksDir はデッキ格納ディレクトリです。
func New(decksDir string, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{decksDir: decksDir, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router はAPIルーターを組み立てます。ローカルのレビューサイトから
// 叩かれる前提でCORSを緩めに許可しています。
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/decks", s.handleDeckList)
		r.Get("/status/{deck}", s.handleDeckStatus)
		r.Post("/approve/{deck}/{checkpoint}", s.handleApprove)
		r.Post("/regenerate/{deck}/{cardID}", s.handleRegenerate)
		r.Get("/reviews/{deck}", s.handleAllReviews)
		r.Get("/reviews/{deck}/{cardID}", s.handleCardReview)
		r.Post("/resume/{deck}", s.handleResume)
	})
	return r
}

// writeJSON はヘブライ語を含むレスポンスをエスケープせずに返します。
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		s.logger.Error("レスポンスのエンコードに失敗しました", slog.Any("error", err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
