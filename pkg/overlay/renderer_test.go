package overlay

import (
	"image"
	"image/color"
	"io"
	"log/slog"
	"testing"

	"github.com/shouni/go-parasha-kit/pkg/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func solidImage(w, h int, c color.NRGBA) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestParseHexColor(t *testing.T) {
	t.Run("正しい16進カラーを分解できるのだ", func(t *testing.T) {
		c, err := ParseHexColor("#FF4136")
		if err != nil {
			t.Fatalf("予期せぬエラー: %v", err)
		}
		if c.R != 0xFF || c.G != 0x41 || c.B != 0x36 || c.A != 0xFF {
			t.Errorf("c = %+v", c)
		}
	})

	t.Run("小文字と前後の空白も受け付けるのだ", func(t *testing.T) {
		c, err := ParseHexColor("  #5c2d91 ")
		if err != nil {
			t.Fatalf("予期せぬエラー: %v", err)
		}
		if c.R != 0x5C || c.G != 0x2D || c.B != 0x91 {
			t.Errorf("c = %+v", c)
		}
	})

	t.Run("短い形式や壊れた値はエラーになるのだ", func(t *testing.T) {
		for _, bad := range []string{"", "#FFF", "#GGGGGG", "red"} {
			if _, err := ParseHexColor(bad); err == nil {
				t.Errorf("ParseHexColor(%q) がエラーを返さないのだ", bad)
			}
		}
	})
}

func TestBorderColorFor(t *testing.T) {
	t.Run("全カードタイプに枠色が定義されているのだ", func(t *testing.T) {
		for _, ct := range domain.AllCardTypes() {
			hex := BorderColorFor(ct, "#000000")
			if hex == "#000000" {
				t.Errorf("タイプ %s の枠色がフォールバックになっているのだ", ct)
			}
			if _, err := ParseHexColor(hex); err != nil {
				t.Errorf("タイプ %s の枠色が不正なのだ: %v", ct, err)
			}
		}
	})

	t.Run("未知のタイプはデッキのテーマ色に落ちるのだ", func(t *testing.T) {
		if got := BorderColorFor(domain.CardType("mystery"), "#123456"); got != "#123456" {
			t.Errorf("got %q", got)
		}
	})
}

func TestRenderFront(t *testing.T) {
	base := solidImage(150, 210, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	t.Run("枠がタイプの色で描かれるのだ", func(t *testing.T) {
		r := NewRenderer(nil, testLogger())
		card := domain.Card{CardID: "story_1", CardType: domain.CardTypeStory}

		out, err := r.RenderFront(base, card, "#5c2d91")
		if err != nil {
			t.Fatalf("予期せぬエラー: %v", err)
		}
		if out.Bounds() != base.Bounds() {
			t.Errorf("出力サイズが変わっているのだ: %v", out.Bounds())
		}

		// 枠線の通り道 (inset+線幅の中心付近) はストーリーの赤になっているのだ
		edge := out.At(2, 105)
		r8, g8, b8, _ := edge.RGBA()
		if uint8(r8>>8) < 200 || uint8(g8>>8) > 120 || uint8(b8>>8) > 120 {
			t.Errorf("枠色が赤系ではないのだ: %v", edge)
		}

		// 中央の画像領域は元のままなのだ
		center := out.At(75, 105)
		cr, cg, cb, _ := center.RGBA()
		if uint8(cr>>8) != 10 || uint8(cg>>8) != 20 || uint8(cb>>8) != 30 {
			t.Errorf("中央のピクセルが書き換わっているのだ: %v", center)
		}
	})

	t.Run("フォントが無くても枠描画だけで成功するのだ", func(t *testing.T) {
		r := NewRenderer(nil, testLogger())
		card := domain.Card{
			CardID:   "anchor_1",
			CardType: domain.CardTypeAnchor,
			Front:    domain.CardFront{TitleHe: "יתרו"},
		}
		if _, err := r.RenderFront(base, card, "#5c2d91"); err != nil {
			t.Fatalf("予期せぬエラー: %v", err)
		}
	})

	t.Run("未知のカードタイプはエラーになるのだ", func(t *testing.T) {
		fonts, err := LoadFonts()
		if err != nil {
			t.Skip("フォントが無い環境ではスキップするのだ")
		}
		r := NewRenderer(fonts, testLogger())
		card := domain.Card{CardID: "x", CardType: domain.CardType("mystery")}
		if _, err := r.RenderFront(base, card, "#5c2d91"); err == nil {
			t.Fatal("エラーを期待したが nil だったのだ")
		}
	})

	t.Run("不正なテーマ色は枠描画の段階でエラーになるのだ", func(t *testing.T) {
		r := NewRenderer(nil, testLogger())
		card := domain.Card{CardID: "x", CardType: domain.CardType("mystery")}
		if _, err := r.RenderFront(base, card, "not-a-color"); err == nil {
			t.Fatal("エラーを期待したが nil だったのだ")
		}
	})
}
