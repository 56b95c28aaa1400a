package overlay

import (
	"encoding/hex"
	"fmt"
	"image/color"
	"strings"

	"github.com/shouni/go-parasha-kit/pkg/domain"
)

// カードタイプごとの枠色です。デッキ全体のテーマ色とは別に、
// タイプの識別子として枠に使用します。
var cardTypeBorders = map[domain.CardType]string{
	domain.CardTypeAnchor:     "#5C2D91",
	domain.CardTypeSpotlight:  "#D4A84B",
	domain.CardTypeStory:      "#FF4136",
	domain.CardTypeConnection: "#0074D9",
	domain.CardTypePowerWord:  "#2ECC40",
	domain.CardTypeTradition:  "#D4A84B",
}

// BorderColorFor はカードタイプの枠色を返します。未知のタイプは
// デッキのテーマ色にフォールバックします。
func BorderColorFor(cardType domain.CardType, deckBorder string) string {
	if c, ok := cardTypeBorders[cardType]; ok {
		return c
	}
	return deckBorder
}

var (
	textWhite = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	shadow    = color.NRGBA{R: 0, G: 0, B: 0, A: 80}
	badgeGold = color.NRGBA{R: 212, G: 168, B: 75, A: 255}
)

// ParseHexColor は "#RRGGBB" 形式の色をデコードします。
func ParseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("色は #RRGGBB 形式で指定してください: %q", s)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("色のデコードに失敗しました: %w", err)
	}
	return color.NRGBA{R: raw[0], G: raw[1], B: raw[2], A: 255}, nil
}
