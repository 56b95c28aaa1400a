package cmd

import (
	"fmt"

	"github.com/shouni/go-parasha-kit/internal/config"
	"github.com/shouni/go-parasha-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// publishCmd は、印刷用エクスポートを実行するのだ。
var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "デッキシート（Markdown/HTML）とカード画像を書き出すのだ。",
	Long: `デッキの全カードをまとめたデッキシートをMarkdownとHTMLで書き出し、
最終カード画像を print/ に（ローカル or gs://...）コピーするのだ。`,
	RunE: publishCommand,
}

func init() {
}

func publishCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg := config.LoadConfig()
	cfg.Options = opts

	if err := pipeline.ExecutePublish(ctx, cfg); err != nil {
		return fmt.Errorf("エクスポート中にエラーが発生したのだ: %w", err)
	}
	return nil
}
