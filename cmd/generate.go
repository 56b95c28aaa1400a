package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-parasha-kit/internal/config"
	"github.com/shouni/go-parasha-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// generateCmd は、カード画像の生成とレビューを実行するのだ。
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "デッキ全カードの画像をAIに生成させるのだ。",
	Long: `デッキの各カードのプロンプトから画像を生成するのだ。--review を付けると
生成のたびにキャラクター一貫性を採点し、最低スコアに届くまで
プロンプトを強化しながらリトライするのだよ。`,
	RunE: generateCommand,
}

func init() {
}

func generateCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg := config.LoadConfig()
	cfg.GeminiImageModel = opts.ImageModel
	cfg.Options = opts

	slog.Info("カード画像の生成を開始するのだ！",
		"deck", opts.DeckFile,
		"image_model", cfg.GeminiImageModel,
		"review", opts.Review,
		"max_attempts", opts.MaxAttempts)

	if err := pipeline.ExecuteGenerate(ctx, cfg); err != nil {
		return fmt.Errorf("画像生成中にエラーが発生したのだ: %w", err)
	}

	slog.Info("すべての生成工程が完了したのだ！")
	return nil
}
