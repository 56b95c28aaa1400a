package asset

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/shouni/go-parasha-kit/pkg/domain"
)

const (
	// referenceCacheTTL は参照画像バイト列のキャッシュ保持期間です。
	// 参照画像はリトライループ中に同じカードへ何度も添付されるため、
	// 毎回のファイル読み込みを避けます。
	referenceCacheTTL     = 30 * time.Minute
	referenceCacheCleanup = 10 * time.Minute
)

// Resolver はプロンプトに登場するキャラクターの参照画像を解決します。
// パスの解決は3段階のフォールバックです:
//  1. プロジェクトルート起点の正準ライブラリ形式 (characters/...)
//  2. プロジェクトルート起点の旧デッキ相対形式 (decks/...)
//  3. デッキローカルの references/ ディレクトリ（ファイル名のみ）
type Resolver struct {
	logger *slog.Logger
	cache  *cache.Cache
}

// NewResolver は参照画像リゾルバを生成します。
func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{
		logger: logger,
		cache:  cache.New(referenceCacheTTL, referenceCacheCleanup),
	}
}

// Resolve はデッキディレクトリのマニフェストを読み、プロンプト文字列に
// キーが（大文字小文字を無視して）含まれるキャラクターの参照画像を返します。
// ファイルが見つからないキャラクターは警告ログを出してスキップします。
// マニフェスト自体の欠如はエラーではありません。
func (r *Resolver) Resolve(deckDir, prompt string) ([]domain.ImagePart, error) {
	manifest, err := LoadManifest(deckDir)
	if err != nil {
		return nil, err
	}
	if len(manifest) == 0 {
		return nil, nil
	}

	// プロジェクトルートはデッキディレクトリの2階層上です
	// (<root>/decks/<slug> → <root>)。
	projectRoot := filepath.Dir(filepath.Dir(deckDir))
	referencesDir := filepath.Join(deckDir, "references")
	promptLower := strings.ToLower(prompt)

	// マップの走査順に依存しないよう、キーの辞書順で処理します。
	keys := make([]string, 0, len(manifest))
	for key := range manifest {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var parts []domain.ImagePart
	for _, key := range keys {
		if !strings.Contains(promptLower, strings.ToLower(key)) {
			continue
		}

		entry := manifest[key]
		path := r.resolveIdentityPath(projectRoot, referencesDir, entry.Identity)
		if path == "" {
			r.logger.Warn("参照画像が見つかりません。スキップします。",
				slog.String("character", key), slog.String("identity", entry.Identity))
			continue
		}

		data, err := r.readCached(path)
		if err != nil {
			r.logger.Warn("参照画像の読み込みに失敗しました。スキップします。",
				slog.String("character", key), slog.String("path", path), slog.Any("error", err))
			continue
		}

		r.logger.Info("参照画像を添付します",
			slog.String("character", key), slog.String("stage", entry.Stage))
		parts = append(parts, domain.ImagePart{
			MIMEType: mimeTypeFor(path),
			Data:     data,
			Label:    key,
		})
	}
	return parts, nil
}

// resolveIdentityPath は3段階のフォールバックで参照画像の実パスを返します。
// どの候補も存在しなければ空文字列を返します。
func (r *Resolver) resolveIdentityPath(projectRoot, referencesDir, identity string) string {
	if identity == "" {
		return ""
	}

	if strings.HasPrefix(identity, "characters/") {
		if candidate := filepath.Join(projectRoot, filepath.FromSlash(identity)); fileExists(candidate) {
			return candidate
		}
	}
	if strings.HasPrefix(identity, "decks/") {
		if candidate := filepath.Join(projectRoot, filepath.FromSlash(identity)); fileExists(candidate) {
			return candidate
		}
	}
	if candidate := filepath.Join(referencesDir, filepath.Base(filepath.FromSlash(identity))); fileExists(candidate) {
		return candidate
	}
	return ""
}

// readCached は参照画像のバイト列をキャッシュ経由で読み込みます。
func (r *Resolver) readCached(path string) ([]byte, error) {
	if cached, ok := r.cache.Get(path); ok {
		if data, ok := cached.([]byte); ok {
			return data, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("参照画像の読み込みに失敗しました: %w", err)
	}
	r.cache.Set(path, data, cache.DefaultExpiration)
	return data, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
