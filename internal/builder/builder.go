package builder

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-parasha-kit/internal/config"
	"github.com/shouni/go-parasha-kit/pkg/asset"
	"github.com/shouni/go-parasha-kit/pkg/domain"
	"github.com/shouni/go-parasha-kit/pkg/generator"
	"github.com/shouni/go-parasha-kit/pkg/overlay"
	"github.com/shouni/go-parasha-kit/pkg/publisher"
	"github.com/shouni/go-parasha-kit/pkg/review"
	"github.com/shouni/go-parasha-kit/pkg/runner"
	"github.com/shouni/go-parasha-kit/pkg/sefaria"

	textbuilder "github.com/shouni/go-text-format/pkg/builder"
	"golang.org/x/time/rate"
)

// BuildDeckRunner はデッキテンプレートの作成を担当する Runner を構築します。
func BuildDeckRunner(appCtx *AppContext) *runner.DeckRunner {
	var opts []sefaria.Option
	if appCtx.Config.SefariaBaseURL != "" {
		opts = append(opts, sefaria.WithBaseURL(appCtx.Config.SefariaBaseURL))
	}
	research := sefaria.NewClient(appCtx.httpClient, slog.Default(), opts...)
	return runner.NewDeckRunner(research, slog.Default())
}

// BuildReferenceRunner はキャラクター参照シートの生成を担当する Runner を構築します。
func BuildReferenceRunner(appCtx *AppContext) (*runner.ReferenceRunner, error) {
	imgClient, err := initializeImageClient(appCtx)
	if err != nil {
		return nil, err
	}

	chars, err := domain.LoadCharacters(appCtx.Options.CharacterConfig)
	if err != nil {
		return nil, fmt.Errorf("キャラクター情報の取得に失敗しました: %w", err)
	}

	return runner.NewReferenceRunner(imgClient, chars, newLimiter(), slog.Default()), nil
}

// BuildCardImageRunner はカード画像の生成・レビュー・リトライを担当する
// オーケストレータを構築します。レビューが無効なら reviewer は注入しません。
func BuildCardImageRunner(appCtx *AppContext) (*runner.CardImageRunner, error) {
	imgClient, err := initializeImageClient(appCtx)
	if err != nil {
		return nil, err
	}

	chars, err := domain.LoadCharacters(appCtx.Options.CharacterConfig)
	if err != nil {
		return nil, fmt.Errorf("キャラクター情報の取得に失敗しました: %w", err)
	}

	var reviewer runner.CardReviewer
	if appCtx.Options.Review {
		r, err := review.NewReviewer(imgClient, domain.DefaultThresholds(), slog.Default())
		if err != nil {
			return nil, fmt.Errorf("レビュアーの初期化に失敗しました: %w", err)
		}
		reviewer = r
	}

	return runner.NewCardImageRunner(
		imgClient,
		reviewer,
		asset.NewResolver(slog.Default()),
		chars,
		newLimiter(),
		config.DefaultFailThreshold,
		slog.Default(),
	), nil
}

// BuildOverlayRunner はテキストオーバーレイの描画を担当する Runner を構築します。
// フォントが1つも見つからない環境では枠線のみの描画で続行します。
func BuildOverlayRunner(appCtx *AppContext) *runner.OverlayRunner {
	fonts, err := overlay.LoadFonts()
	if err != nil {
		slog.Warn("フォントが見つからないため、枠線のみのオーバーレイになります", "error", err)
		fonts = nil
	}
	return runner.NewOverlayRunner(overlay.NewRenderer(fonts, slog.Default()), slog.Default())
}

// BuildDeckPublisher は印刷用エクスポート（Markdown → HTML）を担当する
// パブリッシャーを構築します。
func BuildDeckPublisher(appCtx *AppContext) (*publisher.DeckPublisher, error) {
	builderConfig := textbuilder.BuilderConfig{
		EnableHardWraps: true,
	}
	appBuilder, err := textbuilder.NewBuilder(builderConfig)
	if err != nil {
		return nil, fmt.Errorf("アプリケーションビルダーの初期化に失敗しました: %w", err)
	}

	md2htmlRunner, err := appBuilder.BuildRunner()
	if err != nil {
		return nil, fmt.Errorf("MarkdownToHtmlRunnerの初期化に失敗しました: %w", err)
	}

	return publisher.NewDeckPublisher(appCtx.Writer, md2htmlRunner, slog.Default()), nil
}

// initializeImageClient は generativelanguage API クライアントを初期化します。
func initializeImageClient(appCtx *AppContext) (*generator.Client, error) {
	var opts []generator.Option
	if appCtx.Options.ImageModel != "" {
		opts = append(opts, generator.WithImageModel(appCtx.Options.ImageModel))
	} else if appCtx.Config.GeminiImageModel != "" {
		opts = append(opts, generator.WithImageModel(appCtx.Config.GeminiImageModel))
	}
	if appCtx.Options.VisionModel != "" {
		opts = append(opts, generator.WithVisionModel(appCtx.Options.VisionModel))
	} else if appCtx.Config.VisionModel != "" {
		opts = append(opts, generator.WithVisionModel(appCtx.Config.VisionModel))
	}

	imgClient, err := generator.NewClient(appCtx.httpClient, appCtx.Config.GeminiAPIKey, slog.Default(), opts...)
	if err != nil {
		return nil, fmt.Errorf("画像生成クライアントの初期化に失敗したのだ: %w", err)
	}
	return imgClient, nil
}

// newLimiter はAPI呼び出しの間隔を固定レートで抑えるリミッターを返します。
func newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(config.DefaultRateLimit), 1)
}
