package prompts

import (
	_ "embed"

	"github.com/shouni/go-parasha-kit/pkg/domain"
)

var (
	//go:embed style.md
	StyleBlock string
	//go:embed safety.md
	SafetyBlock string
)

// CompositionSuffix はすべての生成プロンプトの末尾に付ける禁則ブロックです。
// テキストと枠線はオーバーレイレンダラーが後段で描画するため、
// 画像そのものには絶対に含めさせません。
const CompositionSuffix = `=== CRITICAL RULES ===
DO NOT include any border, frame, or rounded corners in the image.
DO NOT render any text, titles, labels, Hebrew letters, or words anywhere in the image.
The image should be PURELY visual - all text and borders are added separately by software.`

// ReinforcementHeader は過去の失敗から学習した補強行の見出しです。
const ReinforcementHeader = "=== CONSISTENCY FIXES REQUIRED ==="

// compositionGuidance はカードタイプ別の構図指示です。
// 「テキスト用の余白を空けろ」ではなく撮影用語で被写体配置を指示します。
// モデルはその方が構図を理解するためです。
var compositionGuidance = map[domain.CardType]string{
	domain.CardTypeAnchor: `=== COMPOSITION ===
Subject (symbol/object) positioned in the center-to-lower portion of the frame.
Generous headroom above - atmospheric space, sky, ceiling glow, or gradient above the subject.
The upper portion of the frame should be visually calm: soft gradient, ambient light, or simple environment.
Think of this as a movie poster where the title would sit at the top - give it that kind of open, cinematic space above.`,

	domain.CardTypeSpotlight: `=== COMPOSITION ===
Character portrait framed from chest up, face centered in the middle of the frame.
Generous headroom - palace ceiling, archways, sky, or atmospheric haze visible above the character's head.
The top of the frame should feel open and calm: architectural detail fading into shadow, or sky.
Lower-left corner should be darker or in shadow - ground, dark fabric, or shadow pooling there.
Character looks slightly right of center, creating natural breathing room on the left side.`,

	domain.CardTypeStory: `=== COMPOSITION ===
Scene action positioned in the center and right side of the frame.
Generous headroom - ceiling, sky, or atmospheric space above the characters' heads.
The top of the frame should be visually calm: architecture fading up, sky, or warm ambient light.
Lower-left corner should be darker or simpler - ground shadow, dark foreground element, or negative space.
Think of a film still where the action is center-right and the lower-left has a moody shadow.`,

	domain.CardTypeConnection: `=== COMPOSITION ===
Characters positioned in the upper two-thirds of the frame.
The bottom of the frame should be simple and calm - a soft floor, rug edge, or gentle gradient.
Think of a photo taken from slightly above, looking down at children sitting, with floor visible at the bottom.
Warm, even lighting throughout. No busy details in the lower 20% of the image.`,

	domain.CardTypePowerWord: `=== COMPOSITION ===
Character or concept positioned in the center-to-lower portion of the frame.
Generous headroom - bright sky, warm glow, or atmospheric space above.
The top of the frame should be open and luminous: bright light, sky, or soft radiance.
Think of a heroic low-angle shot looking slightly up at the subject, with sky/light above.`,

	domain.CardTypeTradition: `=== COMPOSITION ===
Scene grounded in the center-to-lower portion of the frame.
Generous headroom - warm golden glow, ceiling, hanging decorations, or ambient light above.
The top of the frame should glow warmly but be visually simple: golden light, soft bokeh, or warm haze.
Think of a photo shot at a warm holiday gathering where you see the ceiling lights above the scene.`,
}

// CompositionHint は指定タイプの構図指示を返します。
// 未知のタイプは空文字列で、エラーにはしません（構図指示は任意の追加層です）。
func CompositionHint(cardType domain.CardType) string {
	return compositionGuidance[cardType]
}
