package asset

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// writeTestManifest はテスト用のデッキ構造を組み立てるヘルパーなのだ。
func writeTestManifest(t *testing.T, deckDir, content string) {
	t.Helper()
	refsDir := filepath.Join(deckDir, "references")
	if err := os.MkdirAll(refsDir, 0o755); err != nil {
		t.Fatalf("ディレクトリ作成失敗なのだ: %v", err)
	}
	if err := os.WriteFile(filepath.Join(refsDir, ManifestFileName), []byte(content), 0o644); err != nil {
		t.Fatalf("マニフェスト書き込み失敗なのだ: %v", err)
	}
}

func writeFakeImage(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("ディレクトリ作成失敗なのだ: %v", err)
	}
	if err := os.WriteFile(path, []byte("fake-png-bytes"), 0o644); err != nil {
		t.Fatalf("画像書き込み失敗なのだ: %v", err)
	}
}

func newTestResolver() *Resolver {
	return NewResolver(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func TestResolver_Resolve(t *testing.T) {
	t.Run("マニフェストがなければ空で正常なのだ", func(t *testing.T) {
		parts, err := newTestResolver().Resolve(t.TempDir(), "Moses on a mountain")
		if err != nil {
			t.Fatalf("エラーが出たのだ: %v", err)
		}
		if len(parts) != 0 {
			t.Errorf("空が期待されるのだ: %d", len(parts))
		}
	})

	t.Run("正準ライブラリパスが最優先なのだ", func(t *testing.T) {
		root := t.TempDir()
		deckDir := filepath.Join(root, "decks", "yitro")
		writeTestManifest(t, deckDir, `{"moses": {"identity": "characters/moses/middle_identity.png", "stage": "middle"}}`)
		writeFakeImage(t, filepath.Join(root, "characters", "moses", "middle_identity.png"))

		parts, err := newTestResolver().Resolve(deckDir, "MOSES raises his staff")
		if err != nil {
			t.Fatalf("解決失敗なのだ: %v", err)
		}
		if len(parts) != 1 || parts[0].Label != "moses" {
			t.Fatalf("moses の参照が1件返るはずなのだ: %+v", parts)
		}
		if parts[0].MIMEType != "image/png" {
			t.Errorf("MIMEタイプが違うのだ: %s", parts[0].MIMEType)
		}
	})

	t.Run("ライブラリになければローカル references/ に落ちるのだ", func(t *testing.T) {
		root := t.TempDir()
		deckDir := filepath.Join(root, "decks", "yitro")
		writeTestManifest(t, deckDir, `{"yitro": {"identity": "characters/yitro/identity.png"}}`)
		// ライブラリ側は置かず、ローカルにファイル名だけで置くのだ
		writeFakeImage(t, filepath.Join(deckDir, "references", "identity.png"))

		parts, err := newTestResolver().Resolve(deckDir, "Yitro arrives at the camp")
		if err != nil {
			t.Fatalf("解決失敗なのだ: %v", err)
		}
		if len(parts) != 1 {
			t.Fatalf("フォールバックが効いていないのだ: %+v", parts)
		}
	})

	t.Run("プロンプトに登場しないキャラクターは添付されないのだ", func(t *testing.T) {
		root := t.TempDir()
		deckDir := filepath.Join(root, "decks", "yitro")
		writeTestManifest(t, deckDir, `{
			"moses": {"identity": "characters/moses/identity.png"},
			"miriam": {"identity": "characters/miriam/identity.png"}
		}`)
		writeFakeImage(t, filepath.Join(root, "characters", "moses", "identity.png"))
		writeFakeImage(t, filepath.Join(root, "characters", "miriam", "identity.png"))

		parts, err := newTestResolver().Resolve(deckDir, "Miriam dances by the sea")
		if err != nil {
			t.Fatalf("解決失敗なのだ: %v", err)
		}
		if len(parts) != 1 || parts[0].Label != "miriam" {
			t.Fatalf("miriam だけが添付されるはずなのだ: %+v", parts)
		}
	})

	t.Run("ファイル欠損は警告スキップでエラーにしないのだ", func(t *testing.T) {
		root := t.TempDir()
		deckDir := filepath.Join(root, "decks", "yitro")
		writeTestManifest(t, deckDir, `{"moses": {"identity": "characters/moses/identity.png"}}`)

		parts, err := newTestResolver().Resolve(deckDir, "Moses speaks")
		if err != nil {
			t.Fatalf("欠損でエラーになったのだ: %v", err)
		}
		if len(parts) != 0 {
			t.Errorf("空が期待されるのだ: %+v", parts)
		}
	})

	t.Run("壊れたマニフェストはエラーなのだ", func(t *testing.T) {
		deckDir := filepath.Join(t.TempDir(), "decks", "yitro")
		writeTestManifest(t, deckDir, `{"moses": `)

		if _, err := newTestResolver().Resolve(deckDir, "Moses"); err == nil {
			t.Error("エラーが期待されるのだ")
		}
	})
}
