package domain

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
)

// Character は視覚的一貫性の基準となるキャラクター定義を保持します。
// 正準参照画像1枚と、プロンプト構築およびレビュー採点基準の両方に使う
// 外見上の特徴を持ちます。
type Character struct {
	Key           string   `json:"key"`
	NameEn        string   `json:"name_en"`
	NameHe        string   `json:"name_he"`
	VisualTraits  []string `json:"visual_traits"`
	StylePrompt   string   `json:"style_prompt"`
	ReferencePath string   `json:"reference_path,omitempty"`
}

// String はキャラクターの情報を文字列で返すのだ。
func (c Character) String() string {
	return fmt.Sprintf("%s (%s)", c.NameEn, c.Key)
}

// CharactersMap はキーをキャラクターキー（小文字）としたキャラクターの検索用マップです。
type CharactersMap map[string]Character

// MentionedIn はプロンプト文字列に登場する（キーが大文字小文字を無視した
// 部分一致で含まれる）キャラクターを、キーの辞書順で返します。
func (m CharactersMap) MentionedIn(prompt string) []Character {
	lower := strings.ToLower(prompt)

	var keys []string
	for key := range m {
		if strings.Contains(lower, strings.ToLower(key)) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)

	chars := make([]Character, 0, len(keys))
	for _, key := range keys {
		chars = append(chars, m[key])
	}
	return chars
}

// LoadCharacters は指定されたJSONファイルからキャラクターマップを読み込みます。
// キーは小文字に正規化されます。
func LoadCharacters(path string) (CharactersMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("キャラクターファイルの読み込みに失敗しました: %w", err)
	}
	return ParseCharacters(data)
}

// ParseCharacters はJSONバイト列からキャラクターマップをパースして返します。
func ParseCharacters(data []byte) (CharactersMap, error) {
	var raw map[string]Character
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("キャラクター設定のデコードに失敗しました: %w", err)
	}

	chars := make(CharactersMap, len(raw))
	for key, c := range raw {
		normalized := strings.ToLower(key)
		if c.Key == "" {
			c.Key = normalized
		}
		chars[normalized] = c
	}
	return chars, nil
}
