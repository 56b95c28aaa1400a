package cmd

import (
	"fmt"

	"github.com/shouni/go-parasha-kit/internal/config"
	"github.com/shouni/go-parasha-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// approveNotes は --notes フラグの値なのだ。
var approveNotes string

// approveCmd は、パイプラインのチェックポイントを承認するのだ。
var approveCmd = &cobra.Command{
	Use:   "approve <deck> <checkpoint>",
	Short: "デッキのチェックポイント（structure/identity/final）を承認するのだ。",
	Long: `人間のレビューを経たチェックポイントを承認して、パイプラインを
次のステージへ進められるようにするのだ。承認は一方向で、
取り消しはできないのだよ。`,
	Args: cobra.ExactArgs(2),
	RunE: approveCommand,
}

func init() {
	approveCmd.Flags().StringVar(&approveNotes, "notes", "", "承認に添えるメモなのだ。")
}

func approveCommand(cmd *cobra.Command, args []string) error {
	cfg := config.LoadConfig()
	cfg.Options = opts

	if err := pipeline.ExecuteApprove(cfg, args[0], args[1], approveNotes); err != nil {
		return fmt.Errorf("承認中にエラーが発生したのだ: %w", err)
	}
	return nil
}
