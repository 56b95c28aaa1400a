package cmd

import (
	"fmt"

	"github.com/shouni/go-parasha-kit/internal/config"
	"github.com/shouni/go-parasha-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// overlayCmd は、カード表面へのテキストオーバーレイを実行するのだ。
var overlayCmd = &cobra.Command{
	Use:   "overlay",
	Short: "生成画像にヘブライ語テキストと枠線を重ねるのだ。",
	Long: `生成されたカード画像の上に、カード種別ごとのレイアウトで
ヘブライ語タイトルや語彙、感情バッジ、枠線を描画して
印刷用の cards/ ディレクトリに出力するのだ。`,
	RunE: overlayCommand,
}

func init() {
}

func overlayCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg := config.LoadConfig()
	cfg.Options = opts

	if err := pipeline.ExecuteOverlay(ctx, cfg); err != nil {
		return fmt.Errorf("オーバーレイ適用中にエラーが発生したのだ: %w", err)
	}
	return nil
}
