package cmd

import (
	"fmt"

	"github.com/shouni/go-parasha-kit/internal/config"
	"github.com/shouni/go-parasha-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// referencesCmd は、キャラクター参照シートの生成を実行するのだ。
var referencesCmd = &cobra.Command{
	Use:   "references [character-key...]",
	Short: "キャラクター参照シート（identity/expressions/turnaround）を生成するのだ。",
	Long: `デッキのプロンプトに登場するキャラクターごとに、カード画像の一貫性の
拠り所となる参照シートを3種類生成するのだ。引数でキャラクターキーを
指定すればそのキャラクターだけが対象になるのだよ。`,
	RunE: referencesCommand,
}

func init() {
}

func referencesCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg := config.LoadConfig()
	cfg.Options = opts

	if err := pipeline.ExecuteReferences(ctx, cfg, args); err != nil {
		return fmt.Errorf("参照シート生成中にエラーが発生したのだ: %w", err)
	}
	return nil
}
