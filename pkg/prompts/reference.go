package prompts

import (
	"fmt"
	"strings"

	"github.com/shouni/go-parasha-kit/pkg/domain"
)

// referenceStyleBlock は参照シート共通のスタイル指示です。
// カード本体と違い背景は白固定で、シートである以上ラベルも禁止します。
const referenceStyleBlock = `=== STYLE ===
Vivid, high-contrast cartoon style for ages 4-6.
- Rounded, friendly shapes
- Large expressive eyes (20% of face)
- Thick, clean black outlines (2-3px)
- Bold primary colors
- Simple, memorable design
- NO text or labels in the image`

// expressionGrid は表情シートの6感情です。順序は固定です。
var expressionGrid = []struct{ name, description string }{
	{"HAPPY", "big warm smile, eyes crinkled with joy, eyebrows raised"},
	{"SAD", "downturned mouth, droopy eyes, slight frown, eyebrows angled down"},
	{"SCARED", "wide eyes, raised eyebrows, mouth open in worry, leaning back slightly"},
	{"SURPRISED", "very wide eyes, raised eyebrows high, mouth open in 'O' shape"},
	{"PROUD", "slight smile, chin up, chest out, confident knowing expression"},
	{"CONFUSED", "tilted head, one eyebrow raised, slight frown, puzzled look"},
}

// characterBlock はキャラクター定義のプロンプト断片を組み立てます。
func characterBlock(char domain.Character) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Children's book cartoon character %s:\n", strings.ToUpper(char.NameEn))
	for _, trait := range char.VisualTraits {
		b.WriteString("- " + trait + "\n")
	}
	if char.StylePrompt != "" {
		b.WriteString(char.StylePrompt + "\n")
	}
	b.WriteString("- Rounded, friendly cartoon style\n")
	b.WriteString("- Thick clean black outlines\n")
	b.WriteString("- Bold colors, simple shapes")
	return b.String()
}

// IdentitySheet はポートレート＋全身の基本参照シート用プロンプトです。
// 生成後の画像がカード生成時の一貫性参照として使われます。
func IdentitySheet(char domain.Character) string {
	return fmt.Sprintf(`Create a CHARACTER IDENTITY REFERENCE SHEET for a children's book.

%s

=== CHARACTER ===
%s

=== LAYOUT ===
Side-by-side panels on clean white background:

LEFT (50%%): CLOSE-UP PORTRAIT
- Head and shoulders
- Neutral friendly expression
- Clear view of face, eyes, and head covering
- Looking slightly toward viewer

RIGHT (50%%): FULL BODY STANDING
- Complete figure head to toe
- Same outfit and features
- Standing in relaxed pose
- Same character, same style

Both panels must show the EXACT SAME CHARACTER with identical features, colors, and style.
Clean white background, no environment.`, referenceStyleBlock, characterBlock(char))
}

// ExpressionSheet は6感情の表情参照シート用プロンプトです。
func ExpressionSheet(char domain.Character) string {
	var grid strings.Builder
	for _, emo := range expressionGrid {
		fmt.Fprintf(&grid, "- %s: %s\n", emo.name, emo.description)
	}

	return fmt.Sprintf(`Create an EXPRESSION REFERENCE SHEET for a children's book character.

%s

=== CHARACTER ===
%s

=== LAYOUT ===
A 3x2 GRID of the SAME CHARACTER showing 6 DIFFERENT EMOTIONS.
Each cell shows head and shoulders only, same angle, same character.

The 6 expressions (in order, left to right, top to bottom):
%s
CRITICAL: Every cell must show the EXACT SAME CHARACTER (same face shape, same clothing colors, same style) - ONLY the facial expression changes.

Clean white background for each cell.
Grid layout with thin dividing lines between cells.
Each expression must be DRAMATICALLY CLEAR - a child should instantly recognize the emotion.`,
		referenceStyleBlock, characterBlock(char), grid.String())
}

// TurnaroundSheet は4方向ターンアラウンド参照シート用プロンプトです。
func TurnaroundSheet(char domain.Character) string {
	return fmt.Sprintf(`Create a CHARACTER TURNAROUND REFERENCE SHEET for a children's book.

%s

=== CHARACTER ===
%s

=== LAYOUT ===
4 VIEWS of the SAME CHARACTER in a horizontal row:

1. FRONT VIEW - facing viewer directly, neutral pose
2. 3/4 VIEW - turned 45 degrees to the right
3. SIDE VIEW (PROFILE) - facing right, full profile
4. BACK VIEW - facing away from viewer

All 4 views must show:
- The EXACT SAME CHARACTER
- Same height/proportions
- Same outfit colors and details
- Standing in similar neutral pose
- Clean white background

This is a turnaround reference for maintaining consistency from any angle.`,
		referenceStyleBlock, characterBlock(char))
}
