// Package overlay は生成済みのカード画像にタイトル・バッジ・枠線を
// 描き込みます。描画はローカルCPU処理のみで、APIには触れません。
package overlay

import (
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/fogleman/gg"

	"github.com/shouni/go-parasha-kit/pkg/domain"
)

// カードの標準寸法（5x7インチ・300DPI相当の比率）です。
// 入力画像の実寸に合わせてレイアウトはスケールします。
const (
	baseCardWidth  = 1500.0
	baseCardHeight = 2100.0
)

// Renderer はカード表面の文字・枠オーバーレイを描画します。
// FontSet が nil の場合は文字描画をスキップし、枠だけを描きます。
type Renderer struct {
	fonts  *FontSet
	logger *slog.Logger
}

// NewRenderer は Renderer を初期化します。fonts は nil を許容します。
func NewRenderer(fonts *FontSet, logger *slog.Logger) *Renderer {
	return &Renderer{fonts: fonts, logger: logger}
}

// RenderFront はカードタイプに応じたオーバーレイを適用した画像を返します。
// 元画像は変更しません。
func (r *Renderer) RenderFront(img image.Image, card domain.Card, deckBorder string) (image.Image, error) {
	dc := gg.NewContextForImage(img)
	w := float64(dc.Width())
	h := float64(dc.Height())

	if err := r.drawBorder(dc, card.CardType, deckBorder, w, h); err != nil {
		return nil, err
	}

	if r.fonts == nil {
		r.logger.Warn("フォント未設定のため文字オーバーレイをスキップします",
			slog.String("card", card.CardID))
		return dc.Image(), nil
	}

	// レイアウトは標準寸法で設計し、実寸に比例して拡縮します
	scale := w / baseCardWidth

	switch card.CardType {
	case domain.CardTypeAnchor:
		r.drawCenteredPair(dc, card.Front.TitleHe, "", 120, 0, h*0.08, w, scale)
	case domain.CardTypeSpotlight:
		r.drawSpotlight(dc, card.Front, w, h, scale)
	case domain.CardTypeStory:
		// ストーリーカードは構図指示で左下を空けてあり、文字は印刷
		// レイアウト側で組むため、画像には枠以外を描きません
	case domain.CardTypeConnection, domain.CardTypeTradition:
		r.drawCenteredPair(dc, card.Front.TitleHe, card.Front.TitleEn, 80, 44, h*0.06, w, scale)
	case domain.CardTypePowerWord:
		r.drawCenteredPair(dc, card.Front.WordHe, card.Front.MeaningEn, 140, 56, h*0.06, w, scale)
	default:
		return nil, fmt.Errorf("未知のカードタイプです: %q", card.CardType)
	}

	return dc.Image(), nil
}

// drawBorder はカードタイプの識別色で内側に角丸の枠を描きます。
func (r *Renderer) drawBorder(dc *gg.Context, cardType domain.CardType, deckBorder string, w, h float64) error {
	hex := BorderColorFor(cardType, deckBorder)
	c, err := ParseHexColor(hex)
	if err != nil {
		return fmt.Errorf("枠色が不正です: %w", err)
	}

	inset := w * 0.012
	lineWidth := w * 0.016
	dc.SetColor(c)
	dc.SetLineWidth(lineWidth)
	dc.DrawRoundedRectangle(inset, inset, w-inset*2, h-inset*2, w*0.02)
	dc.Stroke()
	return nil
}

// drawCenteredPair はヘブライ語（上段・大）と英語（下段・中）を
// 中央揃えで描きます。どちらかが空なら残りだけを描きます。
func (r *Renderer) drawCenteredPair(dc *gg.Context, hebrew, english string, hebSize, engSize float64, y, w, scale float64) {
	if hebrew != "" {
		dc.SetFontFace(r.fonts.HebrewFace(hebSize * scale))
		y += r.drawShadowedCentered(dc, hebrew, w, y)
		y += 15 * scale
	}
	if english != "" {
		dc.SetFontFace(r.fonts.EnglishFace(engSize * scale))
		r.drawShadowedCentered(dc, english, w, y)
	}
}

// drawSpotlight は人物名の二段表示と感情バッジを描きます。
func (r *Renderer) drawSpotlight(dc *gg.Context, front domain.CardFront, w, h, scale float64) {
	y := h * 0.05
	if front.HebrewName != "" {
		dc.SetFontFace(r.fonts.HebrewFace(100 * scale))
		y += r.drawShadowedCentered(dc, front.HebrewName, w, y)
		y += 10 * scale
	}
	if front.EnglishName != "" {
		dc.SetFontFace(r.fonts.EnglishFace(48 * scale))
		r.drawShadowedCentered(dc, front.EnglishName, w, y)
	}

	emotion := front.EmotionWordEn
	if emotion == "" {
		emotion = front.EmotionWordHe
	} else {
		emotion = strings.ToUpper(emotion)
	}
	if emotion == "" {
		return
	}

	// 右上の感情バッジ
	dc.SetFontFace(r.fonts.EnglishFace(36 * scale))
	textW, textH := dc.MeasureString(emotion)
	padding := 15 * scale
	badgeX := w - 200*scale
	badgeY := h * 0.05

	dc.SetColor(badgeGold)
	dc.DrawRoundedRectangle(badgeX, badgeY, textW+padding*2, textH+padding*2, 10*scale)
	dc.Fill()
	dc.SetColor(textWhite)
	dc.DrawString(emotion, badgeX+padding, badgeY+padding+textH)
}

// drawShadowedCentered は薄い影付きの中央揃えテキストを描き、
// 描画した高さを返します。
func (r *Renderer) drawShadowedCentered(dc *gg.Context, text string, w, y float64) float64 {
	textW, textH := dc.MeasureString(text)
	x := (w - textW) / 2

	dc.SetColor(shadow)
	dc.DrawString(text, x+2, y+textH+2)
	dc.SetColor(textWhite)
	dc.DrawString(text, x, y+textH)
	return textH
}
