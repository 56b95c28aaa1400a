package runner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "image/jpeg"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/shouni/go-parasha-kit/pkg/asset"
	"github.com/shouni/go-parasha-kit/pkg/domain"
	"github.com/shouni/go-parasha-kit/pkg/state"
)

// FrontRenderer はカード表面のオーバーレイ描画surfaceです。
type FrontRenderer interface {
	RenderFront(img image.Image, card domain.Card, deckBorder string) (image.Image, error)
}

// OverlayOptions はオーバーレイ適用の実行オプションです。
type OverlayOptions struct {
	CardID      string // 空でなければこのカードだけを対象にします
	Concurrency int    // 並列描画数（0 以下は既定値 4）
}

// OverlaySummary は1回の実行の集計です。
type OverlaySummary struct {
	Succeeded int
	Skipped   int
	Failed    int
}

// OverlayRunner は生成済みカード画像に文字と枠を描き込み、
// cards/ に出力します。画像生成と違いAPIクォータの制約がない
// ローカルCPU処理なので、カード間は並列で描画します。
type OverlayRunner struct {
	renderer FrontRenderer
	logger   *slog.Logger
}

// NewOverlayRunner は依存関係を注入して初期化します。
func NewOverlayRunner(renderer FrontRenderer, logger *slog.Logger) *OverlayRunner {
	return &OverlayRunner{renderer: renderer, logger: logger}
}

// Run はデッキ全カードへオーバーレイを適用します。完了後に overlay
// ステージを閉じ、最終承認のチェックポイントを開きます。
func (r *OverlayRunner) Run(ctx context.Context, deckPath string, opts OverlayOptions) (*OverlaySummary, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	deck, err := domain.LoadDeck(deckPath)
	if err != nil {
		return nil, err
	}

	deckDir := filepath.Dir(deckPath)
	imagesDir := filepath.Join(deckDir, asset.DefaultImageDir)
	cardsDir := filepath.Join(deckDir, asset.CardsDirName)
	if err := os.MkdirAll(cardsDir, 0o755); err != nil {
		return nil, fmt.Errorf("出力ディレクトリの作成に失敗しました: %w", err)
	}

	summary := &OverlaySummary{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i := range deck.Cards {
		card := deck.Cards[i]
		if opts.CardID != "" && card.CardID != opts.CardID {
			continue
		}

		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			outcome := r.overlayCard(card, deck.BorderColor, imagesDir, cardsDir)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case overlayDone:
				summary.Succeeded++
			case overlaySkipped:
				summary.Skipped++
			default:
				summary.Failed++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	fmt.Printf("Complete! Success: %d, Skipped: %d, Failed: %d\n",
		summary.Succeeded, summary.Skipped, summary.Failed)

	// カード単位の失敗でステージ全体は止めません。全滅時のみ異常です。
	if summary.Succeeded == 0 && summary.Failed > 0 {
		return summary, fmt.Errorf("オーバーレイが1枚も成功しませんでした")
	}

	if opts.CardID == "" && summary.Succeeded > 0 {
		if err := r.advanceStage(deckDir); err != nil {
			r.logger.Warn("パイプライン状態の更新に失敗しました", slog.Any("error", err))
		}
	}
	return summary, nil
}

type overlayOutcome int

const (
	overlayDone overlayOutcome = iota
	overlaySkipped
	overlayFailed
)

func (r *OverlayRunner) overlayCard(card domain.Card, deckBorder, imagesDir, cardsDir string) overlayOutcome {
	imagePath := filepath.Join(imagesDir, card.CardID+".png")
	if !fileExists(imagePath) {
		fmt.Printf("%s %s - image not found\n", color.CyanString("[SKIP]"), card.CardID)
		return overlaySkipped
	}

	img, err := loadImage(imagePath)
	if err != nil {
		r.logger.Error("画像の読み込みに失敗しました",
			slog.String("card", card.CardID), slog.Any("error", err))
		return overlayFailed
	}

	rendered, err := r.renderer.RenderFront(img, card, deckBorder)
	if err != nil {
		r.logger.Error("オーバーレイ描画に失敗しました",
			slog.String("card", card.CardID), slog.Any("error", err))
		return overlayFailed
	}

	outputPath := filepath.Join(cardsDir, card.CardID+".png")
	if err := savePNG(outputPath, rendered); err != nil {
		r.logger.Error("描画結果の保存に失敗しました",
			slog.String("card", card.CardID), slog.Any("error", err))
		return overlayFailed
	}

	fmt.Printf("%s %s: %s\n", color.WhiteString("[OVERLAY]"), card.CardID, card.CardType)
	return overlayDone
}

// advanceStage は overlay ステージを完了し、final チェックポイントを開きます。
func (r *OverlayRunner) advanceStage(deckDir string) error {
	store := state.NewStore(deckDir)
	if err := store.CompleteStage(state.StageOverlay, state.StagePublish); err != nil {
		if errors.Is(err, state.ErrNoState) {
			// パイプライン管理外のデッキはそのまま見送ります
			return nil
		}
		return err
	}
	return store.OpenCheckpoint(state.CheckpointFinal)
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("画像を開けません: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("画像のデコードに失敗しました: %w", err)
	}
	return img, nil
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("出力ファイルを作成できません: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("PNGのエンコードに失敗しました: %w", err)
	}
	return nil
}
