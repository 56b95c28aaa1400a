package config

import (
	"time"

	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義なのだ
const (
	DefaultImageModel  = "nano-banana-pro-preview"
	DefaultVisionModel = "gemini-2.5-flash"
	// 画像生成の応答は遅いので、タイムアウトは長めに取るのだ。
	DefaultHTTPTimeout    = 120 * time.Second
	DefaultRateLimit      = 3 * time.Second // API呼び出しの間隔なのだ
	DefaultMaxAttempts    = 3
	DefaultMinScore       = 70
	DefaultFailThreshold  = 70 // この値未満の属性スコアは学習帳に記録されるのだ
	DefaultDecksDir       = "decks"
	DefaultCharactersFile = "examples/characters.json" // キャラクターの視覚情報（DNA）を定義したJSONパス
	DefaultServerPort     = 5000
)

// Config はアプリケーション全体の環境設定（APIキーやモデル設定）を保持する構造体なのだ。
type Config struct {
	GeminiAPIKey     string
	GeminiImageModel string
	VisionModel      string
	SefariaBaseURL   string

	Options GenerateOptions
}

// LoadConfig は環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	cfg := &Config{
		GeminiAPIKey:     envutil.GetEnv("GEMINI_API_KEY", ""),
		GeminiImageModel: envutil.GetEnv("IMAGE_GEMINI_MODEL", DefaultImageModel),
		VisionModel:      envutil.GetEnv("VISION_GEMINI_MODEL", DefaultVisionModel),
		SefariaBaseURL:   envutil.GetEnv("SEFARIA_BASE_URL", ""),
	}
	return cfg
}

// GenerateOptions は CLI フラグから渡される実行時のパラメータなのだ。
type GenerateOptions struct {
	// デッキ関連
	DeckFile        string // --deck: 対象デッキの deck.json パス
	DecksDir        string // --decks-dir: デッキ置き場のルート
	ParashaName     string // --parasha: 明示的なパラシャ名（省略時は今週分を取得）
	Force           bool   // --force: 既存デッキの上書きを許可
	CharacterConfig string // --char-config

	// 画像生成関連
	CardID        string // --card: 1枚だけ対象にするカードID
	SkipExisting  bool   // --skip-existing
	Review        bool   // --review: 生成後の一貫性レビューを有効化
	MaxAttempts   int    // --max-attempts
	MinScore      int    // --min-score
	NoRefs        bool   // --no-refs: キャラクター参照画像を添付しない
	ReviewVerbose bool   // --review-verbose

	// AI挙動設定
	ImageModel  string // --image-model
	VisionModel string // --vision-model

	// 出力関連
	OutputDir string // --output-dir: 印刷用エクスポートの出力先（ローカル or gs://...）

	// 実行制御
	HTTPTimeout time.Duration // --http-timeout
	Port        int           // --port: serve コマンドの待ち受けポート
}
