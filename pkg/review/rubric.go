package review

import (
	"fmt"
	"strings"

	"github.com/shouni/go-parasha-kit/pkg/domain"
)

// rubricAttributes は全キャラクター共通の採点軸です。
var rubricAttributes = []string{"face", "hair_or_headwear", "clothing", "colors", "proportions"}

// buildRubric はレビューモデルに渡す採点指示を組み立てます。
// 1枚目がカード画像、2枚目以降がキャラクター参照画像である前提の文面です。
func buildRubric(card domain.Card, chars []domain.Character) string {
	var b strings.Builder

	b.WriteString("You are a visual consistency reviewer for a children's educational card series.\n")
	b.WriteString("The FIRST image is a newly generated card illustration. ")
	b.WriteString("The remaining images are official character reference sheets.\n\n")
	b.WriteString("Score how faithfully each character in the card matches their reference. ")
	b.WriteString("Score each attribute from 0 to 100, where 100 is a perfect match.\n\n")

	b.WriteString("Characters to assess:\n")
	for _, char := range chars {
		b.WriteString(fmt.Sprintf("- %s", char.NameEn))
		if len(char.VisualTraits) > 0 {
			b.WriteString(": " + strings.Join(char.VisualTraits, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nAttributes to score per character: ")
	b.WriteString(strings.Join(rubricAttributes, ", "))
	b.WriteString("\n\nRespond with ONLY a JSON object in this exact shape:\n")
	b.WriteString("```json\n")
	b.WriteString(`{
  "characters": [
    {
      "name": "<character name>",
      "attributes": {
        "face": {"score": 0, "note": "<what differs, empty if perfect>"},
        "hair_or_headwear": {"score": 0, "note": ""},
        "clothing": {"score": 0, "note": ""},
        "colors": {"score": 0, "note": ""},
        "proportions": {"score": 0, "note": ""}
      }
    }
  ],
  "notes": "<overall impression, one sentence>"
}`)
	b.WriteString("\n```\n")
	b.WriteString("If a character from the list does not appear in the card image at all, ")
	b.WriteString("score every attribute 0 with the note \"character missing from image\".")
	return b.String()
}
