package cmd

import (
	"fmt"

	"github.com/shouni/go-parasha-kit/internal/config"
	"github.com/shouni/go-parasha-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// serveCmd は、レビュー・承認用のHTTP APIサーバーを起動するのだ。
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "レビュー・承認用のHTTP APIサーバーを起動するのだ。",
	Long: `デッキの一覧・進行状況の確認、チェックポイントの承認、カード単位の
再生成、パイプラインの再開をHTTP API経由で行えるサーバーなのだ。
再生成には GEMINI_API_KEY が必要なのだよ。`,
	RunE: serveCommand,
}

func init() {
}

func serveCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg := config.LoadConfig()
	cfg.Options = opts

	if err := pipeline.ExecuteServe(ctx, cfg); err != nil {
		return fmt.Errorf("サーバー実行中にエラーが発生したのだ: %w", err)
	}
	return nil
}
