package cmd

import (
	"fmt"

	"github.com/shouni/go-parasha-kit/internal/config"
	"github.com/shouni/go-parasha-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// deckCmd は、パラシャのリサーチとデッキ雛形の作成を実行するのだ。
var deckCmd = &cobra.Command{
	Use:   "deck",
	Short: "今週のパラシャを調べてデッキの雛形を作るのだ。",
	Long: `Sefaria API から今週のパラシャ（トーラーの週間朗読箇所）を取得し、
12枚構成のデッキ雛形（deck.json）とパイプライン状態を作成するのだ。
--parasha で任意のパラシャ名を明示指定することもできるのだよ。`,
	RunE: deckCommand,
}

func init() {
}

func deckCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg := config.LoadConfig()
	cfg.Options = opts

	if err := pipeline.ExecuteDeck(ctx, cfg); err != nil {
		return fmt.Errorf("デッキ作成中にエラーが発生したのだ: %w", err)
	}
	return nil
}
