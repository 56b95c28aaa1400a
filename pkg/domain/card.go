package domain

import "fmt"

// CardType はデッキ内のカードの教育的役割を表す閉じた列挙型です。
// 新しいタイプの追加は、switch を網羅する各所の修正を強制するために
// 文字列の自由入力ではなくこの型を経由させます。
type CardType string

const (
	// CardTypeAnchor はパラシャ導入カード（中央シンボル）です。
	CardTypeAnchor CardType = "anchor"
	// CardTypeSpotlight は登場人物のポートレートカードです。
	CardTypeSpotlight CardType = "spotlight"
	// CardTypeStory は物語の場面（アクション）カードです。
	CardTypeStory CardType = "story"
	// CardTypeConnection は感情・対話のディスカッションカードです。
	CardTypeConnection CardType = "connection"
	// CardTypePowerWord はヘブライ語ボキャブラリーカードです。
	CardTypePowerWord CardType = "power_word"
	// CardTypeTradition は祝日の慣習カードです。
	CardTypeTradition CardType = "tradition"
)

// AllCardTypes は既知のカードタイプを定義順で返します。
func AllCardTypes() []CardType {
	return []CardType{
		CardTypeAnchor,
		CardTypeSpotlight,
		CardTypeStory,
		CardTypeConnection,
		CardTypePowerWord,
		CardTypeTradition,
	}
}

// Valid は t が既知のカードタイプかどうかを返します。
func (t CardType) Valid() bool {
	switch t {
	case CardTypeAnchor, CardTypeSpotlight, CardTypeStory,
		CardTypeConnection, CardTypePowerWord, CardTypeTradition:
		return true
	}
	return false
}

// CardFront はオーバーレイレンダラーがカード表面に描画するテキスト要素です。
// タイプごとに使用されるフィールドが異なるため omitempty の合併型にしています。
type CardFront struct {
	// anchor / story / tradition
	TitleEn string `json:"title_en,omitempty"`
	TitleHe string `json:"title_he,omitempty"`
	// spotlight
	HebrewName    string `json:"hebrew_name,omitempty"`
	EnglishName   string `json:"english_name,omitempty"`
	EmotionWordEn string `json:"emotion_word_en,omitempty"`
	EmotionWordHe string `json:"emotion_word_he,omitempty"`
	// connection
	QuestionEn string `json:"question_en,omitempty"`
	// power_word
	WordHe    string `json:"word_he,omitempty"`
	WordEn    string `json:"word_en,omitempty"`
	MeaningEn string `json:"meaning_en,omitempty"`
}

// CardBack は先生が読み上げる裏面コンテンツです。印刷エクスポートでのみ使用します。
type CardBack struct {
	TeacherScript    string   `json:"teacher_script,omitempty"`
	DescriptionEn    string   `json:"description_en,omitempty"`
	DescriptionHe    string   `json:"description_he,omitempty"`
	DiscussionPoints []string `json:"discussion_points,omitempty"`
	TeachingMoment   string   `json:"teaching_moment,omitempty"`
}

// Card はデッキ内の1枚の図版ユニットです。
// ImagePrompt はシーン記述のみを保持し、スタイル・安全規則・構図の指示は
// 生成時にプロンプトアセンブラが注入します（デッキデータには決して保存しません）。
type Card struct {
	CardID      string    `json:"card_id"`
	CardType    CardType  `json:"card_type"`
	ImagePrompt string    `json:"image_prompt"`
	ImagePath   string    `json:"image_path,omitempty"`
	Front       CardFront `json:"front"`
	Back        CardBack  `json:"back"`
}

// DisplayTitle はログや進捗表示に使う英語タイトルを返します。
func (c Card) DisplayTitle() string {
	switch c.CardType {
	case CardTypeSpotlight:
		if c.Front.EnglishName != "" {
			return c.Front.EnglishName
		}
	case CardTypePowerWord:
		if c.Front.WordEn != "" {
			return c.Front.WordEn
		}
	}
	if c.Front.TitleEn != "" {
		return c.Front.TitleEn
	}
	return c.CardID
}

// Validate はカードとして最低限成立しているかを検査します。
func (c Card) Validate() error {
	if c.CardID == "" {
		return fmt.Errorf("card_id が空です")
	}
	if !c.CardType.Valid() {
		return fmt.Errorf("未知の card_type です: %q", c.CardType)
	}
	return nil
}
