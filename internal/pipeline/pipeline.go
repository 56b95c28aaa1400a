package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/shouni/go-parasha-kit/internal/builder"
	"github.com/shouni/go-parasha-kit/internal/config"
	"github.com/shouni/go-parasha-kit/pkg/domain"
	"github.com/shouni/go-parasha-kit/pkg/publisher"
	"github.com/shouni/go-parasha-kit/pkg/runner"
	"github.com/shouni/go-parasha-kit/pkg/state"

	"github.com/shouni/go-http-kit/httpkit"
	"github.com/shouni/go-remote-io/pkg/gcsfactory"
)

// ExecuteDeck は、パラシャのリサーチとデッキ雛形の作成（Stage 1）を実行するのだ。
func ExecuteDeck(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	deckRunner := builder.BuildDeckRunner(appCtx)
	deckDir, err := deckRunner.Run(ctx, runner.DeckOptions{
		ParashaName: cfg.Options.ParashaName,
		DecksDir:    cfg.Options.DecksDir,
		Force:       cfg.Options.Force,
	})
	if err != nil {
		return fmt.Errorf("デッキ雛形の作成に失敗したのだ: %w", err)
	}

	slog.Info("デッキ雛形の作成が完了したのだ！", "deck_dir", deckDir)
	slog.Info("deck.json のカード本文を埋めたら、structure チェックポイントを承認して次へ進むのだ。")
	return nil
}

// ExecuteReferences は、キャラクター参照シートの生成（Stage 2）を実行するのだ。
// charKeys が空ならデッキに登場する既知キャラクター全員が対象なのだ。
func ExecuteReferences(ctx context.Context, cfg *config.Config, charKeys []string) error {
	deckPath, err := resolveDeckPath(cfg)
	if err != nil {
		return err
	}

	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	refRunner, err := builder.BuildReferenceRunner(appCtx)
	if err != nil {
		return fmt.Errorf("ReferenceRunnerの構築に失敗したのだ: %w", err)
	}

	if err := refRunner.Run(ctx, deckPath, charKeys); err != nil {
		return fmt.Errorf("参照シートの生成に失敗したのだ: %w", err)
	}

	slog.Info("参照シートの生成が完了したのだ！", "deck", deckPath)
	return nil
}

// ExecuteGenerate は、カード画像の生成とレビュー（Stage 3）を実行するのだ。
// 低スコアのカードがあっても実行自体は成功扱いで、集計だけが残るのだよ。
func ExecuteGenerate(ctx context.Context, cfg *config.Config) error {
	deckPath, err := resolveDeckPath(cfg)
	if err != nil {
		return err
	}

	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	cardRunner, err := builder.BuildCardImageRunner(appCtx)
	if err != nil {
		return fmt.Errorf("CardImageRunnerの構築に失敗したのだ: %w", err)
	}

	summary, err := cardRunner.Run(ctx, deckPath, runner.GenerateOptions{
		CardID:        cfg.Options.CardID,
		SkipExisting:  cfg.Options.SkipExisting,
		Review:        cfg.Options.Review,
		MaxAttempts:   cfg.Options.MaxAttempts,
		MinScore:      cfg.Options.MinScore,
		NoRefs:        cfg.Options.NoRefs,
		ReviewVerbose: cfg.Options.ReviewVerbose,
	})
	if err != nil {
		return fmt.Errorf("カード画像の生成に失敗したのだ: %w", err)
	}

	// 全カード対象で失敗ゼロならステージを先へ進めるのだ
	if cfg.Options.CardID == "" && summary.Failed == 0 {
		if err := completeStage(filepath.Dir(deckPath), state.StageImages, state.StageOverlay, ""); err != nil {
			slog.Warn("パイプライン状態の更新に失敗したのだ", "error", err)
		}
	}
	if len(summary.Flagged) > 0 {
		slog.Warn("最低スコア未満のまま受理されたカードがあるのだ。人間のレビューが必要なのだよ。",
			"cards", summary.Flagged)
	}
	return nil
}

// ExecuteOverlay は、カード表面へのテキストオーバーレイ（Stage 4）を実行するのだ。
func ExecuteOverlay(ctx context.Context, cfg *config.Config) error {
	deckPath, err := resolveDeckPath(cfg)
	if err != nil {
		return err
	}

	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	overlayRunner := builder.BuildOverlayRunner(appCtx)
	if _, err := overlayRunner.Run(ctx, deckPath, runner.OverlayOptions{
		CardID: cfg.Options.CardID,
	}); err != nil {
		return fmt.Errorf("オーバーレイの適用に失敗したのだ: %w", err)
	}
	return nil
}

// ExecutePublish は、印刷用エクスポート（Stage 5）を実行するのだ。
// デッキシートのMarkdown、HTML、カード画像のコピーを print/ に出力するのだよ。
func ExecutePublish(ctx context.Context, cfg *config.Config) error {
	deckPath, err := resolveDeckPath(cfg)
	if err != nil {
		return err
	}

	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	deckPublisher, err := builder.BuildDeckPublisher(appCtx)
	if err != nil {
		return fmt.Errorf("DeckPublisherの構築に失敗したのだ: %w", err)
	}

	deck, err := domain.LoadDeck(deckPath)
	if err != nil {
		return err
	}

	deckDir := filepath.Dir(deckPath)
	result, err := deckPublisher.Publish(ctx, deck, deckDir, publisher.Options{
		OutputDir: cfg.Options.OutputDir,
	})
	if err != nil {
		return fmt.Errorf("印刷用エクスポートに失敗したのだ: %w", err)
	}

	if err := completeStage(deckDir, state.StagePublish, state.StageComplete, ""); err != nil {
		slog.Warn("パイプライン状態の更新に失敗したのだ", "error", err)
	}

	slog.Info("印刷用エクスポートが完了したのだ！",
		"markdown", result.MarkdownPath,
		"html", result.HTMLPath,
		"images", len(result.ImagePaths))
	return nil
}

// resolveDeckPath は --deck フラグから対象の deck.json パスを確定するのだ。
func resolveDeckPath(cfg *config.Config) (string, error) {
	if cfg.Options.DeckFile == "" {
		return "", fmt.Errorf("エラー: デッキファイルが指定されていません。--deck で deck.json のパスを指定するのだ")
	}
	return cfg.Options.DeckFile, nil
}

// completeStage はステージを完了し、必要ならチェックポイントを開くのだ。
// パイプライン管理外のデッキ（状態ファイルなし）は黙って見送るのだよ。
func completeStage(deckDir, stage, nextStage, checkpoint string) error {
	store := state.NewStore(deckDir)
	if err := store.CompleteStage(stage, nextStage); err != nil {
		if errors.Is(err, state.ErrNoState) {
			return nil
		}
		return err
	}
	if checkpoint == "" {
		return nil
	}
	return store.OpenCheckpoint(checkpoint)
}

// setupAppContext は、提供された設定と共有コンポーネントを使用して、アプリケーションコンテキストを初期化して返すのだ。
// ライフサイクル管理用の context と設定オブジェクトを受け取るのだ。
// 初期化中にエラーが発生した場合は、AppContext のポインタとエラーを返すのだ。
func setupAppContext(ctx context.Context, cfg *config.Config) (*builder.AppContext, error) {
	timeout := cfg.Options.HTTPTimeout
	if timeout <= 0 {
		timeout = config.DefaultHTTPTimeout
	}
	httpClient := httpkit.New(timeout)

	gcsFactory, err := gcsfactory.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client factory: %w", err)
	}

	reader, err := gcsFactory.InputReader()
	if err != nil {
		return nil, err
	}
	writer, err := gcsFactory.OutputWriter()
	if err != nil {
		return nil, err
	}

	appCtx := builder.NewAppContext(cfg, httpClient, reader, writer)
	return &appCtx, nil
}
