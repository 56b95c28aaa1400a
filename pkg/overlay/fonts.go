package overlay

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

// ヘブライ語（ニクド付き）を描画できるフォントの優先順です。
var hebrewFontNames = []string{
	"NotoSansHebrew-Bold.ttf",
	"NotoSansHebrew-Regular.ttf",
	"David-Bold.ttf",
	"FrankRuhlLibre-Bold.ttf",
}

var englishFontNames = []string{
	"NotoSans-Bold.ttf",
	"NotoSans-Regular.ttf",
	"DejaVuSans-Bold.ttf",
	"DejaVuSans.ttf",
}

// フォントの検索ディレクトリです。環境変数 PARASHA_FONT_DIR が
// 設定されていれば最優先で参照します。
var fontDirs = []string{
	"fonts",
	"/usr/share/fonts",
	"/usr/local/share/fonts",
	"/Library/Fonts",
	"/System/Library/Fonts",
}

// FontSet はカード描画に使うフォント一式です。truetype.Font を保持し、
// 描画サイズごとに Face を切り出します。
type FontSet struct {
	hebrew  *truetype.Font
	english *truetype.Font
}

// LoadFonts はシステムからヘブライ語・英語フォントを探して読み込みます。
// 片方でも見つかれば描画は成立するため、両方とも無い場合のみエラーです。
func LoadFonts() (*FontSet, error) {
	set := &FontSet{
		hebrew:  findFont(hebrewFontNames),
		english: findFont(englishFontNames),
	}
	if set.hebrew == nil && set.english == nil {
		return nil, fmt.Errorf("描画に使えるフォントが見つかりません")
	}
	return set, nil
}

// HebrewFace は指定サイズのヘブライ語フォントフェイスを返します。
// ヘブライ語フォントが無い場合は英語フォントで代用します。
func (s *FontSet) HebrewFace(size float64) font.Face {
	if s.hebrew != nil {
		return newFace(s.hebrew, size)
	}
	return newFace(s.english, size)
}

// EnglishFace は指定サイズの英語フォントフェイスを返します。
func (s *FontSet) EnglishFace(size float64) font.Face {
	if s.english != nil {
		return newFace(s.english, size)
	}
	return newFace(s.hebrew, size)
}

func newFace(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

func findFont(names []string) *truetype.Font {
	dirs := fontDirs
	if env := os.Getenv("PARASHA_FONT_DIR"); env != "" {
		dirs = append([]string{env}, dirs...)
	}
	for _, name := range names {
		for _, dir := range dirs {
			path := filepath.Join(dir, name)
			// ディレクトリ直下だけでなく1階層下のファミリーディレクトリも見ます
			for _, candidate := range []string{path, filepath.Join(dir, "truetype", "noto", name)} {
				data, err := os.ReadFile(candidate)
				if err != nil {
					continue
				}
				parsed, err := truetype.Parse(data)
				if err != nil {
					continue
				}
				return parsed
			}
		}
	}
	return nil
}
