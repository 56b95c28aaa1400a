package cmd

import (
	"fmt"

	"github.com/shouni/go-parasha-kit/internal/config"
	"github.com/shouni/go-parasha-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// statusCmd は、デッキのパイプライン進行状況を表示するのだ。
var statusCmd = &cobra.Command{
	Use:   "status <deck>",
	Short: "デッキのパイプライン進行状況を表示するのだ。",
	Args:  cobra.ExactArgs(1),
	RunE:  statusCommand,
}

func init() {
}

func statusCommand(cmd *cobra.Command, args []string) error {
	cfg := config.LoadConfig()
	cfg.Options = opts

	if err := pipeline.ExecuteStatus(cfg, args[0]); err != nil {
		return fmt.Errorf("状況の取得中にエラーが発生したのだ: %w", err)
	}
	return nil
}
