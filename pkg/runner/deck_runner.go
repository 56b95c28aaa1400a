package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/shouni/go-parasha-kit/pkg/asset"
	"github.com/shouni/go-parasha-kit/pkg/domain"
	"github.com/shouni/go-parasha-kit/pkg/sefaria"
	"github.com/shouni/go-parasha-kit/pkg/state"
)

// ParashaResearcher は今週のパラシャ情報の取得surfaceです。
type ParashaResearcher interface {
	FetchCurrentParasha(ctx context.Context) (*sefaria.Parasha, error)
}

// DeckOptions はデッキテンプレート作成の実行オプションです。
type DeckOptions struct {
	ParashaName string // 空ならカレンダーAPIから今週のパラシャを取得します
	DecksDir    string // デッキ格納先（既定 "decks"）
	Force       bool   // 既存の deck.json があっても上書きします
}

// DeckRunner はパラシャのリサーチとデッキ雛形の作成を行います。
// 雛形のカード本文は空のプレースホルダで、内容は人間が deck.json を
// 編集して埋めます。
type DeckRunner struct {
	research ParashaResearcher
	logger   *slog.Logger
}

// NewDeckRunner は依存関係を注入して初期化します。
// research はオフライン運用（パラシャ名を明示指定）なら nil で構いません。
func NewDeckRunner(research ParashaResearcher, logger *slog.Logger) *DeckRunner {
	return &DeckRunner{research: research, logger: logger}
}

// Run はデッキディレクトリ一式を作成し、作成先のパスを返します。
func (r *DeckRunner) Run(ctx context.Context, opts DeckOptions) (string, error) {
	if opts.DecksDir == "" {
		opts.DecksDir = "decks"
	}

	parasha, err := r.resolveParasha(ctx, opts.ParashaName)
	if err != nil {
		return "", err
	}

	deck := newDeckTemplate(parasha)
	deckDir := filepath.Join(opts.DecksDir, deck.Slug())
	deckPath := filepath.Join(deckDir, "deck.json")

	if !opts.Force && fileExists(deckPath) {
		return "", fmt.Errorf("デッキは既に存在します: %s (--force で上書きできます)", deckPath)
	}

	for _, sub := range []string{
		asset.DefaultImageDir,
		asset.ReferencesDirName,
		"backs",
		asset.PipelineDirName,
	} {
		if err := os.MkdirAll(filepath.Join(deckDir, sub), 0o755); err != nil {
			return "", fmt.Errorf("デッキディレクトリの作成に失敗しました: %w", err)
		}
	}

	if err := domain.SaveDeck(deckPath, deck); err != nil {
		return "", err
	}
	if err := r.writeFeedback(deckDir, parasha.TitleEn); err != nil {
		return "", err
	}
	if err := r.writeResearch(deckDir, parasha); err != nil {
		return "", err
	}
	if err := r.initState(deckDir, parasha.TitleEn); err != nil {
		return "", err
	}

	fmt.Printf("%s %s (%s)\n", color.GreenString("[DECK]"), parasha.TitleEn, parasha.TitleHe)
	fmt.Printf("  Theme: %s, Border: %s\n", deck.Theme, deck.BorderColor)
	fmt.Printf("  Created: %s (%d placeholder cards)\n", deckPath, deck.CardCount)
	return deckDir, nil
}

// resolveParasha は明示指定があれば静的テーブルから、なければ
// カレンダーAPIからパラシャ情報を組み立てます。
func (r *DeckRunner) resolveParasha(ctx context.Context, name string) (*sefaria.Parasha, error) {
	if name != "" {
		// ヘブライ語名と参照範囲はAPIなしでは引けないため空のままにします
		return &sefaria.Parasha{TitleEn: name}, nil
	}
	if r.research == nil {
		return nil, fmt.Errorf("パラシャ名が未指定で、リサーチクライアントもありません")
	}

	parasha, err := r.research.FetchCurrentParasha(ctx)
	if err != nil {
		return nil, fmt.Errorf("今週のパラシャの取得に失敗しました: %w", err)
	}
	return parasha, nil
}

// newDeckTemplate はプレースホルダカード入りのデッキ雛形を組み立てます。
// 構成は アンカー1・スポットライト2・ストーリー5・コネクション2・
// パワーワード2 の計12枚です。
func newDeckTemplate(p *sefaria.Parasha) *domain.Deck {
	deck := &domain.Deck{
		ParashaEn:   p.TitleEn,
		ParashaHe:   p.TitleHe,
		Ref:         p.Ref,
		BorderColor: sefaria.BorderColor(p.TitleEn, p.Book),
		Theme:       sefaria.Theme(p.TitleEn, p.Book),
		Version:     domain.DeckVersion,
		TargetAge:   "4-6",
	}

	deck.AddCard(domain.Card{
		CardID:   "anchor_1",
		CardType: domain.CardTypeAnchor,
		Front: domain.CardFront{
			TitleEn: p.TitleEn,
			TitleHe: p.TitleHe,
		},
	})
	for i := 1; i <= 2; i++ {
		deck.AddCard(domain.Card{
			CardID:   fmt.Sprintf("spotlight_%d", i),
			CardType: domain.CardTypeSpotlight,
			Front: domain.CardFront{
				EnglishName: fmt.Sprintf("[CHARACTER %d NAME]", i),
			},
		})
	}
	for i := 1; i <= 5; i++ {
		deck.AddCard(domain.Card{
			CardID:   fmt.Sprintf("story_%d", i),
			CardType: domain.CardTypeStory,
			Front: domain.CardFront{
				TitleEn: fmt.Sprintf("[SCENE %d TITLE]", i),
			},
		})
	}
	for i := 1; i <= 2; i++ {
		deck.AddCard(domain.Card{
			CardID:   fmt.Sprintf("connection_%d", i),
			CardType: domain.CardTypeConnection,
			Front: domain.CardFront{
				QuestionEn: "How do you think [character] felt when...?",
			},
		})
	}
	for i := 1; i <= 2; i++ {
		deck.AddCard(domain.Card{
			CardID:   fmt.Sprintf("power_word_%d", i),
			CardType: domain.CardTypePowerWord,
			Front: domain.CardFront{
				WordEn: fmt.Sprintf("[WORD %d]", i),
			},
		})
	}
	return deck
}

// writeFeedback は空のフィードバックファイルを作成します。
func (r *DeckRunner) writeFeedback(deckDir, parashaName string) error {
	feedback := map[string]any{
		"parasha":         parashaName,
		"deck_version":    domain.DeckVersion,
		"review_date":     nil,
		"cards":           []any{},
		"global_feedback": "",
	}
	return writePrettyJSON(filepath.Join(deckDir, "feedback.json"), feedback)
}

// writeResearch はリサーチ結果を参照用に保存します。
func (r *DeckRunner) writeResearch(deckDir string, p *sefaria.Parasha) error {
	return writePrettyJSON(filepath.Join(deckDir, "parasha_research.json"), p)
}

// initState は template ステージを完了させ、構成承認の
// チェックポイントを開いた初期状態を保存します。
func (r *DeckRunner) initState(deckDir, parashaName string) error {
	store := state.NewStore(deckDir)
	if err := store.Save(state.NewPipelineState(parashaName)); err != nil {
		return err
	}
	if err := store.CompleteStage(state.StageTemplate, state.StageReferences); err != nil {
		return err
	}
	return store.OpenCheckpoint(state.CheckpointStructure)
}

// writePrettyJSON はヘブライ語をエスケープしないインデント付きJSONを書き出します。
func writePrettyJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("JSONのエンコードに失敗しました: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("JSONの書き込みに失敗しました: %w", err)
	}
	return nil
}
