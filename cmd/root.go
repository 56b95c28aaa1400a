package cmd

import (
	"fmt"
	"os"

	"github.com/shouni/go-parasha-kit/internal/config"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
)

// opts は addAppFlags で各フラグに紐付けられる実行時オプションなのだ。
var opts config.GenerateOptions

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	// --- デッキ関連 ---
	rootCmd.PersistentFlags().StringVarP(&opts.DeckFile, "deck", "d", "", "対象デッキの deck.json パスなのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.DecksDir, "decks-dir", config.DefaultDecksDir, "デッキ置き場のルートディレクトリなのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.CharacterConfig, "char-config", "c", config.DefaultCharactersFile, "キャラクターの視覚情報（DNA）を定義したJSONパスなのだ。")

	// --- 生成結果の出力設定 ---
	rootCmd.PersistentFlags().StringVarP(&opts.OutputDir, "output-dir", "o", "", "印刷用エクスポートの出力先（ローカル or gs://...）なのだ。空ならデッキ直下の print/ なのだ。")

	// --- AIモデル・挙動設定 ---
	rootCmd.PersistentFlags().StringVar(&opts.ImageModel, "image-model", config.DefaultImageModel, "画像生成に使う Gemini モデル名なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.VisionModel, "vision-model", config.DefaultVisionModel, "レビュー（画像採点）に使う Gemini モデル名なのだ。")
	rootCmd.PersistentFlags().DurationVar(&opts.HTTPTimeout, "http-timeout", config.DefaultHTTPTimeout, "外部APIリクエストのタイムアウトなのだ。")

	// --- deck コマンド固有設定 ---
	deckCmd.Flags().StringVar(&opts.ParashaName, "parasha", "", "パラシャ名を明示指定するのだ（省略時は今週分を取得するのだ）。")
	deckCmd.Flags().BoolVar(&opts.Force, "force", false, "既存の deck.json があっても上書きするのだ。")

	// --- generate コマンド固有設定 ---
	generateCmd.Flags().StringVar(&opts.CardID, "card", "", "このカードIDだけを対象にするのだ。")
	generateCmd.Flags().BoolVar(&opts.SkipExisting, "skip-existing", false, "画像が既にあるカードを飛ばすのだ（中断からの再開用なのだ）。")
	generateCmd.Flags().BoolVar(&opts.Review, "review", false, "生成後にキャラクター一貫性レビューを行うのだ。")
	generateCmd.Flags().IntVar(&opts.MaxAttempts, "max-attempts", config.DefaultMaxAttempts, "カード1枚あたりの最大試行回数なのだ。")
	generateCmd.Flags().IntVar(&opts.MinScore, "min-score", config.DefaultMinScore, "受理に必要な最低レビュースコアなのだ。")
	generateCmd.Flags().BoolVar(&opts.NoRefs, "no-refs", false, "キャラクター参照画像を添付しないのだ。")
	generateCmd.Flags().BoolVar(&opts.ReviewVerbose, "review-verbose", false, "属性別スコアの詳細を表示するのだ。")

	// --- overlay コマンド固有設定 ---
	overlayCmd.Flags().StringVar(&opts.CardID, "card", "", "このカードIDだけを対象にするのだ。")

	// --- serve コマンド固有設定 ---
	serveCmd.Flags().IntVarP(&opts.Port, "port", "p", config.DefaultServerPort, "レビューサーバーの待ち受けポートなのだ。")
}

// preRunAppE は、コマンド実行前に環境変数などの必須チェックを行うのだ。
// 画像生成系のコマンドだけ GEMINI_API_KEY を必須にするのだよ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	switch cmd.Name() {
	case "references", "generate":
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("エラー: 環境変数 GEMINI_API_KEY が設定されていません。Gemini APIの利用には必須なのだ")
		}
	}
	return nil
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	clibase.Execute(
		"ap-parasha-go",
		addAppFlags,
		preRunAppE,
		deckCmd,
		referencesCmd,
		generateCmd,
		overlayCmd,
		publishCmd,
		approveCmd,
		statusCmd,
		serveCmd,
	)
}
