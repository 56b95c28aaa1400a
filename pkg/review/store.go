package review

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/shouni/go-parasha-kit/pkg/asset"
	"github.com/shouni/go-parasha-kit/pkg/domain"
)

// LearningsFileName はプロジェクトルート直下の学習ファイル名です。
const LearningsFileName = "learnings.json"

// SummaryFileName はデッキごとのレビューサマリーのファイル名です。
const SummaryFileName = "summary.json"

// Summary はデッキ1つ分のレビュー結果の集計です。
type Summary struct {
	Deck      string                  `json:"deck"`
	UpdatedAt time.Time               `json:"updated_at"`
	Cards     map[string]SummaryEntry `json:"cards"`
}

// SummaryEntry はカード1枚分の最終レビュー状況です。
type SummaryEntry struct {
	ReviewID       string                `json:"review_id"`
	OverallScore   int                   `json:"overall_score"`
	Recommendation domain.Recommendation `json:"recommendation"`
	Attempts       int                   `json:"attempts"`
}

// Store はレビュー結果と学習データのファイル永続化を担います。
// 学習の畳み込み自体は純粋関数 Merge が行い、Store は読み書きだけを行います。
type Store struct {
	deckDir     string
	projectRoot string
}

// NewStore はデッキディレクトリを起点にストアを初期化します。
// 学習ファイルはプロジェクトルート（デッキの2階層上）に置かれ、
// デッキを跨いで共有されます。
func NewStore(deckDir string) *Store {
	return &Store{
		deckDir:     deckDir,
		projectRoot: filepath.Dir(filepath.Dir(deckDir)),
	}
}

// SaveReview はカード1枚のレビュー結果を reviews/<card_id>_review.json へ
// 保存します。ReviewID が未採番なら採番します。
func (s *Store) SaveReview(rev *domain.ReviewResult) error {
	if rev.ReviewID == "" {
		rev.ReviewID = uuid.NewString()
	}

	dir := filepath.Join(s.deckDir, asset.ReviewsDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("レビューディレクトリの作成に失敗しました: %w", err)
	}
	path := filepath.Join(dir, rev.CardID+"_review.json")
	return writeJSON(path, rev)
}

// LoadReview は保存済みのレビュー結果を読み込みます。
// 未レビューのカードは (nil, nil) です。
func (s *Store) LoadReview(cardID string) (*domain.ReviewResult, error) {
	path := filepath.Join(s.deckDir, asset.ReviewsDirName, cardID+"_review.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("レビュー結果の読み込みに失敗しました: %w", err)
	}

	var rev domain.ReviewResult
	if err := json.Unmarshal(data, &rev); err != nil {
		return nil, fmt.Errorf("レビュー結果 '%s' のデコードに失敗しました: %w", path, err)
	}
	return &rev, nil
}

// UpdateSummary はサマリーにカードの最終結果を反映して書き戻します。
func (s *Store) UpdateSummary(deckSlug string, rev *domain.ReviewResult, attempts int) error {
	path := filepath.Join(s.deckDir, asset.ReviewsDirName, SummaryFileName)

	summary := Summary{Deck: deckSlug, Cards: map[string]SummaryEntry{}}
	if data, err := os.ReadFile(path); err == nil {
		// 壊れたサマリーは作り直します
		_ = json.Unmarshal(data, &summary)
		if summary.Cards == nil {
			summary.Cards = map[string]SummaryEntry{}
		}
	}

	summary.Deck = deckSlug
	summary.UpdatedAt = time.Now().UTC()
	summary.Cards[rev.CardID] = SummaryEntry{
		ReviewID:       rev.ReviewID,
		OverallScore:   rev.OverallScore,
		Recommendation: rev.Recommendation,
		Attempts:       attempts,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("レビューディレクトリの作成に失敗しました: %w", err)
	}
	return writeJSON(path, summary)
}

// LoadSummary はデッキのレビューサマリーを読み込みます。未作成なら空を返します。
func (s *Store) LoadSummary() (Summary, error) {
	path := filepath.Join(s.deckDir, asset.ReviewsDirName, SummaryFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Summary{Cards: map[string]SummaryEntry{}}, nil
		}
		return Summary{}, fmt.Errorf("サマリーの読み込みに失敗しました: %w", err)
	}

	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return Summary{}, fmt.Errorf("サマリー '%s' のデコードに失敗しました: %w", path, err)
	}
	if summary.Cards == nil {
		summary.Cards = map[string]SummaryEntry{}
	}
	return summary, nil
}

// LoadLearnings はプロジェクト共有の学習データを読み込みます。
// ファイルがまだなければ空の学習データを返します。
func (s *Store) LoadLearnings() (Learnings, error) {
	path := filepath.Join(s.projectRoot, LearningsFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewLearnings(), nil
		}
		return Learnings{}, fmt.Errorf("学習ファイルの読み込みに失敗しました: %w", err)
	}

	var l Learnings
	if err := json.Unmarshal(data, &l); err != nil {
		return Learnings{}, fmt.Errorf("学習ファイル '%s' のデコードに失敗しました: %w", path, err)
	}
	if l.GlobalPatterns.RecommendedReinforcements == nil {
		l.GlobalPatterns.RecommendedReinforcements = map[string]Reinforcement{}
	}
	return l, nil
}

// SaveLearnings は学習データを書き戻します。
func (s *Store) SaveLearnings(l Learnings) error {
	return writeJSON(filepath.Join(s.projectRoot, LearningsFileName), l)
}

// writeJSON はヘブライ語などの非ASCII文字をエスケープせずにJSONを書き出します。
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("JSONのエンコードに失敗しました: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("'%s' の書き込みに失敗しました: %w", path, err)
	}
	return nil
}
