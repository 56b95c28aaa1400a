package builder

import (
	"github.com/shouni/go-parasha-kit/internal/config"

	"github.com/shouni/go-http-kit/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// AppContext は、アプリケーション実行に必要な共通コンテキストを保持する
// これを各Build関数に渡すことで、依存関係の注入を簡素化します。
type AppContext struct {
	Config     *config.Config          // Configは、環境変数から読み込まれたグローバルな設定です（APIキー、モデル名など）。
	Options    config.GenerateOptions  // Optionsは、コマンドラインから渡された実行時の設定です（デッキ、スコア閾値など）。
	Reader     remoteio.InputReader    // Readerは、外部データの読み込みに使用する入力元です。
	Writer     remoteio.OutputWriter   // Writerは、生成された成果物を保存するための出力先です。
	httpClient httpkit.HTTPClient // httpClient は外部APIとの通信に使う共通クライアント
}

// NewAppContext は AppContext の新しいインスタンスを生成する
func NewAppContext(
	cfg *config.Config,
	httpClient httpkit.HTTPClient,
	reader remoteio.InputReader,
	writer remoteio.OutputWriter,
) AppContext {
	return AppContext{
		Config:     cfg,
		Options:    cfg.Options,
		httpClient: httpClient,
		Reader:     reader,
		Writer:     writer,
	}
}
