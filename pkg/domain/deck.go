package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// DeckVersion は現行の正準スキーマ（front/back 分離型）のバージョンです。
const DeckVersion = "2.0"

// Deck は1つのパラシャ（または祝日）に対応するカードデッキ全体です。
// ライフサイクルはファイルベースで、各カードの結果が確定するたびに
// load → mutate → Save で丸ごと書き戻します（トランザクションはありません）。
type Deck struct {
	ParashaEn   string `json:"parasha_en"`
	ParashaHe   string `json:"parasha_he"`
	Ref         string `json:"ref"`
	BorderColor string `json:"border_color"`
	Theme       string `json:"theme"`
	Version     string `json:"version"`
	TargetAge   string `json:"target_age"`
	CardCount   int    `json:"card_count"`
	Cards       []Card `json:"cards"`
}

// Slug はデッキの識別子（ディレクトリ名）を返します。
// 英語名を小文字化し、空白をアンダースコアに置換したものです。
func (d *Deck) Slug() string {
	s := strings.ToLower(d.ParashaEn)
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

// AddCard はカードを末尾に追加し、カード数を同期します。
func (d *Deck) AddCard(c Card) {
	d.Cards = append(d.Cards, c)
	d.CardCount = len(d.Cards)
}

// FindCard は card_id でカードを検索し、見つからなければ nil を返します。
func (d *Deck) FindCard(cardID string) *Card {
	for i := range d.Cards {
		if d.Cards[i].CardID == cardID {
			return &d.Cards[i]
		}
	}
	return nil
}

// LoadDeck は deck.json を読み込んでデッキを復元します。
// ファイルが存在しない場合は呼び出し元が操作ミスとして扱えるようエラーを返します。
func LoadDeck(path string) (*Deck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("デッキファイルの読み込みに失敗しました: %w", err)
	}

	var deck Deck
	if err := json.Unmarshal(data, &deck); err != nil {
		return nil, fmt.Errorf("デッキファイル '%s' のデコードに失敗しました: %w", path, err)
	}
	deck.CardCount = len(deck.Cards)
	return &deck, nil
}

// SaveDeck はデッキを deck.json に書き戻します。
// ヘブライ語をエスケープせずに保存するため、HTMLエスケープを無効化した
// エンコーダを使用します。キー順は構造体定義順で安定しています。
func SaveDeck(path string, deck *Deck) error {
	deck.CardCount = len(deck.Cards)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(deck); err != nil {
		return fmt.Errorf("デッキのエンコードに失敗しました: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("デッキファイルの書き込みに失敗しました: %w", err)
	}
	return nil
}

// MigrateLegacyCard は旧式の単一ブロック構造のカードを正準の front/back
// 分離スキーマへ一度だけ変換します。実行時に「front キーがあるかどうか」で
// 分岐し続けるのではなく、読み込み時にこの関数で正規化してしまう方針です。
func MigrateLegacyCard(legacy map[string]any) (Card, error) {
	str := func(key string) string {
		if v, ok := legacy[key].(string); ok {
			return v
		}
		return ""
	}

	card := Card{
		CardID:      str("card_id"),
		CardType:    CardType(str("card_type")),
		ImagePrompt: str("image_prompt"),
		ImagePath:   str("image_path"),
	}
	if err := card.Validate(); err != nil {
		return Card{}, fmt.Errorf("旧形式カードの変換に失敗しました: %w", err)
	}

	switch card.CardType {
	case CardTypeAnchor:
		card.Front.TitleHe = str("title_he")
		card.Front.TitleEn = str("title_en")
	case CardTypeSpotlight:
		card.Front.HebrewName = str("character_name_he")
		card.Front.EnglishName = str("character_name_en")
		card.Front.EmotionWordEn = str("emotion_word_en")
		card.Front.EmotionWordHe = str("emotion_word_he")
		card.Back.DescriptionEn = str("english_description")
	case CardTypeStory:
		card.Front.TitleEn = str("title_en")
		card.Front.TitleHe = str("title_he")
		card.Back.DescriptionEn = str("english_description")
	case CardTypeConnection:
		card.Front.QuestionEn = str("question_en")
	case CardTypePowerWord:
		card.Front.WordHe = str("hebrew_word")
		card.Front.WordEn = str("word_en")
		card.Front.MeaningEn = str("english_meaning")
	case CardTypeTradition:
		card.Front.TitleEn = str("title_en")
		card.Front.TitleHe = str("title_he")
	}
	card.Back.TeacherScript = str("teacher_script")

	return card, nil
}
