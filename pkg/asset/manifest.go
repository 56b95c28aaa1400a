package asset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ManifestFileName はデッキの references/ ディレクトリ内のマニフェスト名です。
const ManifestFileName = "manifest.json"

// ReferenceEntry はキャラクター1人分の参照画像の登録情報です。
type ReferenceEntry struct {
	Identity string `json:"identity"`        // 正準参照画像への相対パス
	Stage    string `json:"stage,omitempty"` // ライフステージ（young / middle / elder 等）
}

// Manifest はキャラクターキー → 参照登録のマップです。
type Manifest map[string]ReferenceEntry

// LoadManifest はデッキディレクトリから references/manifest.json を読み込みます。
// マニフェストが存在しないデッキは「参照なし」として正常に扱い、空を返します。
func LoadManifest(deckDir string) (Manifest, error) {
	path := filepath.Join(deckDir, "references", ManifestFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, nil
		}
		return nil, fmt.Errorf("マニフェストの読み込みに失敗しました: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("マニフェスト '%s' のデコードに失敗しました: %w", path, err)
	}
	return m, nil
}
