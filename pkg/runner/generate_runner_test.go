package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/time/rate"

	"github.com/shouni/go-parasha-kit/pkg/domain"
	"github.com/shouni/go-parasha-kit/pkg/generator"
	"github.com/shouni/go-parasha-kit/pkg/review"
	"github.com/shouni/go-parasha-kit/pkg/state"
)

// fakeImageGen は呼び出しごとに台本どおりの結果を返すのだ。
// 台本が尽きたら成功を返し続けるのだ。
type fakeImageGen struct {
	calls   int
	scripts []error
}

func (f *fakeImageGen) GenerateImage(_ context.Context, _ generator.ImageRequest) (*generator.ImageResult, error) {
	f.calls++
	if f.calls <= len(f.scripts) && f.scripts[f.calls-1] != nil {
		return nil, f.scripts[f.calls-1]
	}
	return &generator.ImageResult{Data: []byte(fmt.Sprintf("image-%d", f.calls)), MIMEType: "image/png"}, nil
}

// fakeReviewer は呼び出しごとに台本どおりのスコアを返すのだ。
type fakeReviewer struct {
	calls   int
	scores  []int
	noChars bool
	err     error
}

func (f *fakeReviewer) Review(_ context.Context, _ string, card domain.Card, _ []domain.Character) (*domain.ReviewResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.noChars {
		return nil, nil
	}
	score := 95
	if f.calls <= len(f.scores) {
		score = f.scores[f.calls-1]
	}
	rec := domain.DefaultThresholds().Recommend(score)
	return &domain.ReviewResult{
		CardID:         card.CardID,
		OverallScore:   score,
		Recommendation: rec,
		Characters: []domain.CharacterAssessment{
			{Name: "Moses", Attributes: map[string]domain.AttributeScore{
				"face": {Score: score, Note: "test note"},
			}},
		},
	}, nil
}

type fakeResolver struct{}

func (fakeResolver) Resolve(_, _ string) ([]domain.ImagePart, error) { return nil, nil }

func writeTestDeck(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	deckDir := filepath.Join(root, "decks", "yitro")
	if err := os.MkdirAll(deckDir, 0o755); err != nil {
		t.Fatalf("ディレクトリ作成失敗なのだ: %v", err)
	}

	deck := &domain.Deck{ParashaEn: "Yitro", Version: domain.DeckVersion}
	deck.AddCard(domain.Card{
		CardID:      "card_01",
		CardType:    domain.CardTypeStory,
		ImagePrompt: "Moses listens to Yitro's advice at the camp",
		Front:       domain.CardFront{TitleEn: "Good Advice"},
	})

	deckPath := filepath.Join(deckDir, "deck.json")
	if err := domain.SaveDeck(deckPath, deck); err != nil {
		t.Fatalf("デッキ保存失敗なのだ: %v", err)
	}
	return deckPath, deckDir
}

func newTestRunner(gen ImageGenerator, rev CardReviewer) *CardImageRunner {
	chars := domain.CharactersMap{"moses": {Key: "moses", NameEn: "Moses"}}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewCardImageRunner(gen, rev, fakeResolver{}, chars, rate.NewLimiter(rate.Inf, 1), 70, logger)
}

func TestCardImageRunner_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("一発合格なら1回の生成と1回のレビューで受理なのだ", func(t *testing.T) {
		deckPath, deckDir := writeTestDeck(t)
		gen := &fakeImageGen{}
		rev := &fakeReviewer{scores: []int{92}}

		summary, err := newTestRunner(gen, rev).Run(ctx, deckPath, GenerateOptions{
			Review: true, MaxAttempts: 3, MinScore: 70,
		})
		if err != nil {
			t.Fatalf("実行失敗なのだ: %v", err)
		}
		if summary.Succeeded != 1 || summary.Failed != 0 {
			t.Errorf("集計が違うのだ: %+v", summary)
		}
		if gen.calls != 1 || rev.calls != 1 {
			t.Errorf("呼び出し回数が違うのだ: gen=%d rev=%d", gen.calls, rev.calls)
		}

		deck, _ := domain.LoadDeck(deckPath)
		if deck.Cards[0].ImagePath != "images/card_01.png" {
			t.Errorf("image_path が書き戻されていないのだ: %q", deck.Cards[0].ImagePath)
		}
		if _, err := os.Stat(filepath.Join(deckDir, "images", "card_01.png")); err != nil {
			t.Error("画像ファイルがないのだ")
		}
	})

	t.Run("1回の不合格から再試行で回復するのだ", func(t *testing.T) {
		deckPath, deckDir := writeTestDeck(t)
		gen := &fakeImageGen{}
		rev := &fakeReviewer{scores: []int{55, 90}}

		summary, err := newTestRunner(gen, rev).Run(ctx, deckPath, GenerateOptions{
			Review: true, MaxAttempts: 3, MinScore: 70,
		})
		if err != nil {
			t.Fatalf("実行失敗なのだ: %v", err)
		}
		if summary.Succeeded != 1 || len(summary.Flagged) != 0 {
			t.Errorf("集計が違うのだ: %+v", summary)
		}
		if gen.calls != 2 || rev.calls != 2 {
			t.Errorf("呼び出し回数が違うのだ: gen=%d rev=%d", gen.calls, rev.calls)
		}

		// 不合格分が rejected/ に退避されていること
		if _, err := os.Stat(filepath.Join(deckDir, "rejected", "card_01_v1.png")); err != nil {
			t.Error("不合格画像が退避されていないのだ")
		}
		if _, err := os.Stat(filepath.Join(deckDir, "rejected", "card_01_v1_review.json")); err != nil {
			t.Error("不合格レビューが退避されていないのだ")
		}
	})

	t.Run("予算切れは最終再生成して強制受理、要レビュー印付きなのだ", func(t *testing.T) {
		deckPath, deckDir := writeTestDeck(t)
		gen := &fakeImageGen{}
		rev := &fakeReviewer{scores: []int{50, 45, 48}}

		summary, err := newTestRunner(gen, rev).Run(ctx, deckPath, GenerateOptions{
			Review: true, MaxAttempts: 3, MinScore: 70,
		})
		if err != nil {
			t.Fatalf("実行失敗なのだ: %v", err)
		}
		if summary.Succeeded != 1 || summary.Failed != 0 {
			t.Errorf("強制受理のはずなのだ: %+v", summary)
		}
		if len(summary.Flagged) != 1 || summary.Flagged[0] != "card_01" {
			t.Errorf("要レビュー印がないのだ: %+v", summary.Flagged)
		}
		// 採点付き3回 + 未採点の最終再生成1回
		if gen.calls != 4 {
			t.Errorf("生成は4回のはずなのだ: %d", gen.calls)
		}
		if rev.calls != 3 {
			t.Errorf("レビューは3回のはずなのだ: %d", rev.calls)
		}
		// 最終画像は残っていること
		if _, err := os.Stat(filepath.Join(deckDir, "images", "card_01.png")); err != nil {
			t.Error("最終画像がないのだ")
		}

		deck, _ := domain.LoadDeck(deckPath)
		if deck.Cards[0].ImagePath == "" {
			t.Error("image_path が空のままなのだ")
		}
	})

	t.Run("生成自体の失敗は全種別リトライ対象なのだ", func(t *testing.T) {
		deckPath, _ := writeTestDeck(t)
		transport := &generator.GenerationError{Kind: generator.KindTransport, Err: fmt.Errorf("boom")}
		empty := &generator.GenerationError{Kind: generator.KindEmptyResponse, Err: fmt.Errorf("no image")}
		gen := &fakeImageGen{scripts: []error{transport, empty, nil}}
		rev := &fakeReviewer{scores: []int{95}}

		summary, err := newTestRunner(gen, rev).Run(ctx, deckPath, GenerateOptions{
			Review: true, MaxAttempts: 3, MinScore: 70,
		})
		if err != nil {
			t.Fatalf("実行失敗なのだ: %v", err)
		}
		if summary.Succeeded != 1 || gen.calls != 3 {
			t.Errorf("3回目で成功のはずなのだ: %+v gen=%d", summary, gen.calls)
		}
	})

	t.Run("生成が失敗し続けたら失敗として数えるのだ", func(t *testing.T) {
		deckPath, _ := writeTestDeck(t)
		boom := &generator.GenerationError{Kind: generator.KindTransport, Err: fmt.Errorf("down")}
		gen := &fakeImageGen{scripts: []error{boom, boom}}

		summary, err := newTestRunner(gen, &fakeReviewer{}).Run(ctx, deckPath, GenerateOptions{
			Review: true, MaxAttempts: 2, MinScore: 70,
		})
		if err != nil {
			t.Fatalf("実行失敗なのだ: %v", err)
		}
		if summary.Failed != 1 || summary.Succeeded != 0 {
			t.Errorf("失敗1のはずなのだ: %+v", summary)
		}

		deck, _ := domain.LoadDeck(deckPath)
		if deck.Cards[0].ImagePath != "" {
			t.Errorf("失敗カードに image_path が付いたのだ: %q", deck.Cards[0].ImagePath)
		}
	})

	t.Run("レビュー無効なら生成成功で即受理なのだ", func(t *testing.T) {
		deckPath, _ := writeTestDeck(t)
		gen := &fakeImageGen{}
		rev := &fakeReviewer{}

		summary, err := newTestRunner(gen, rev).Run(ctx, deckPath, GenerateOptions{MaxAttempts: 3})
		if err != nil {
			t.Fatalf("実行失敗なのだ: %v", err)
		}
		if summary.Succeeded != 1 || rev.calls != 0 {
			t.Errorf("レビューが呼ばれたのだ: %+v rev=%d", summary, rev.calls)
		}
	})

	t.Run("既知キャラクター不在のカードは未採点で受理なのだ", func(t *testing.T) {
		deckPath, _ := writeTestDeck(t)
		gen := &fakeImageGen{}
		rev := &fakeReviewer{noChars: true}

		summary, err := newTestRunner(gen, rev).Run(ctx, deckPath, GenerateOptions{
			Review: true, MaxAttempts: 3, MinScore: 70,
		})
		if err != nil {
			t.Fatalf("実行失敗なのだ: %v", err)
		}
		if summary.Succeeded != 1 || gen.calls != 1 {
			t.Errorf("1回で受理のはずなのだ: %+v", summary)
		}
	})

	t.Run("レビュー機構の故障では画像を捨てないのだ", func(t *testing.T) {
		deckPath, _ := writeTestDeck(t)
		gen := &fakeImageGen{}
		rev := &fakeReviewer{err: fmt.Errorf("vision model down")}

		summary, err := newTestRunner(gen, rev).Run(ctx, deckPath, GenerateOptions{
			Review: true, MaxAttempts: 3, MinScore: 70,
		})
		if err != nil {
			t.Fatalf("実行失敗なのだ: %v", err)
		}
		if summary.Succeeded != 1 {
			t.Errorf("未採点受理のはずなのだ: %+v", summary)
		}
	})

	t.Run("skip-existing で既存画像のカードを飛ばすのだ", func(t *testing.T) {
		deckPath, deckDir := writeTestDeck(t)
		imagesDir := filepath.Join(deckDir, "images")
		if err := os.MkdirAll(imagesDir, 0o755); err != nil {
			t.Fatalf("ディレクトリ作成失敗なのだ: %v", err)
		}
		if err := os.WriteFile(filepath.Join(imagesDir, "card_01.png"), []byte("old"), 0o644); err != nil {
			t.Fatalf("書き込み失敗なのだ: %v", err)
		}

		gen := &fakeImageGen{}
		summary, err := newTestRunner(gen, &fakeReviewer{}).Run(ctx, deckPath, GenerateOptions{
			SkipExisting: true, MaxAttempts: 1,
		})
		if err != nil {
			t.Fatalf("実行失敗なのだ: %v", err)
		}
		if summary.Skipped != 1 || gen.calls != 0 {
			t.Errorf("スキップされていないのだ: %+v gen=%d", summary, gen.calls)
		}
	})

	t.Run("不合格カードはパイプライン状態の要レビュー一覧に載るのだ", func(t *testing.T) {
		deckPath, deckDir := writeTestDeck(t)
		stateStore := state.NewStore(deckDir)
		if err := stateStore.Save(state.NewPipelineState("Yitro")); err != nil {
			t.Fatalf("状態初期化失敗なのだ: %v", err)
		}

		gen := &fakeImageGen{}
		rev := &fakeReviewer{scores: []int{40, 40}}
		_, err := newTestRunner(gen, rev).Run(ctx, deckPath, GenerateOptions{
			Review: true, MaxAttempts: 2, MinScore: 70,
		})
		if err != nil {
			t.Fatalf("実行失敗なのだ: %v", err)
		}

		st, err := stateStore.Load()
		if err != nil {
			t.Fatalf("状態読み込み失敗なのだ: %v", err)
		}
		if len(st.NeedsHumanReview) != 1 || st.NeedsHumanReview[0] != "card_01" {
			t.Errorf("要レビュー一覧が違うのだ: %v", st.NeedsHumanReview)
		}
	})

	t.Run("学習ファイルにレビューが畳み込まれるのだ", func(t *testing.T) {
		deckPath, deckDir := writeTestDeck(t)
		gen := &fakeImageGen{}
		rev := &fakeReviewer{scores: []int{40, 90}}

		_, err := newTestRunner(gen, rev).Run(ctx, deckPath, GenerateOptions{
			Review: true, MaxAttempts: 3, MinScore: 70,
		})
		if err != nil {
			t.Fatalf("実行失敗なのだ: %v", err)
		}

		store := review.NewStore(deckDir)
		learnings, err := store.LoadLearnings()
		if err != nil {
			t.Fatalf("学習読み込み失敗なのだ: %v", err)
		}
		rec, ok := learnings.GlobalPatterns.RecommendedReinforcements["moses.face"]
		if !ok || rec.Samples != 2 || rec.Failures != 1 {
			t.Errorf("学習統計が違うのだ: %+v", rec)
		}
	})
}
