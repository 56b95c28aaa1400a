package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shouni/go-parasha-kit/pkg/domain"
)

// Assemble はシーン記述から完全な生成プロンプトを組み立てます。
// 層の順序は固定です: スタイル → 安全規則 → シーン（そのまま）→
// カードタイプ別の構図指示 → 禁則サフィックス。
// 同じ入力からは必ず同じ文字列が得られます。
func Assemble(scenePrompt string, cardType domain.CardType) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(StyleBlock))
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(SafetyBlock))
	b.WriteString("\n\n=== SCENE ===\n")
	b.WriteString(scenePrompt)

	if hint := CompositionHint(cardType); hint != "" {
		b.WriteString("\n\n")
		b.WriteString(hint)
	}

	b.WriteString("\n\n")
	b.WriteString(CompositionSuffix)
	return b.String()
}

// ReferencePreamble は参照画像を添付するときにパーツ列の先頭へ置く指示文です。
// n は添付する参照画像の枚数です。
func ReferencePreamble(n int) string {
	noun := "reference images"
	if n == 1 {
		noun = "reference image"
	}
	return fmt.Sprintf("Use these %d character %s to maintain visual consistency. "+
		"The characters in the generated image should match these references exactly "+
		"(same clothing, facial features, colors):\n", n, noun)
}

// ReferenceBridge は参照画像パーツ列と本体プロンプトの間に挟む接続文です。
const ReferenceBridge = "\n\nNow generate this card image:\n\n"

// Strengthen は前回のレビュー結果から矯正行を生成し、シーン記述に追記します。
// failBelow 未満のスコアが付いた属性ごとに1行、キャラクター名→属性名の
// 辞書順で並べます。失格属性がなければシーンをそのまま返します。
func Strengthen(scene string, rev *domain.ReviewResult, failBelow int) string {
	if rev == nil {
		return scene
	}

	var lines []string
	for _, char := range rev.Characters {
		failed := char.FailingAttributes(failBelow)

		attrNames := make([]string, 0, len(failed))
		for name := range failed {
			attrNames = append(attrNames, name)
		}
		sort.Strings(attrNames)

		for _, name := range attrNames {
			attr := failed[name]
			lines = append(lines, fmt.Sprintf(
				"CRITICAL FIX NEEDED - %s %s: Previous attempt scored %d/100. Issue: %s. "+
					"This MUST be corrected in the new image.",
				strings.ToUpper(char.Name), strings.ToUpper(name), attr.Score, attr.Note))
		}
	}
	if len(lines) == 0 {
		return scene
	}

	return scene + "\n\n" + ReinforcementHeader + "\n" + strings.Join(lines, "\n")
}

// WithReinforcements は学習ストア由来の補強行をシーン記述に追記します。
// 行が空なら何も変えません。
func WithReinforcements(scene string, reinforcements []string) string {
	var lines []string
	for _, r := range reinforcements {
		if s := strings.TrimSpace(r); s != "" {
			lines = append(lines, s)
		}
	}
	if len(lines) == 0 {
		return scene
	}
	return scene + "\n\n" + ReinforcementHeader + "\n" + strings.Join(lines, "\n")
}
