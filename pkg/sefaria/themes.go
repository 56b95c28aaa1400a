package sefaria

// テーマ別のデッキ枠色です。パラシャの物語的テーマから決まります。
var themeColors = map[string]string{
	"creation":   "#1e3a5f", // 創造 - 深い青
	"desert":     "#c9a227", // 荒野 - 砂金色
	"water":      "#2d8a8a", // 水の物語 - ティール
	"family":     "#d4a84b", // 家族の物語 - 温かい琥珀
	"covenant":   "#5c2d91", // 契約と律法 - 王の紫
	"redemption": "#a52a2a", // 救済 - 深紅
}

// parashaThemes は各パラシャのテーマ割り当てです。
var parashaThemes = map[string]string{
	// 創世記
	"Bereshit":    "creation",
	"Noach":       "water",
	"Lech Lecha":  "family",
	"Vayera":      "family",
	"Chayei Sara": "family",
	"Toldot":      "family",
	"Vayetzei":    "family",
	"Vayishlach":  "family",
	"Vayeshev":    "family",
	"Miketz":      "family",
	"Vayigash":    "family",
	"Vayechi":     "family",
	// 出エジプト記
	"Shemot":    "redemption",
	"Vaera":     "redemption",
	"Bo":        "redemption",
	"Beshalach": "water",
	"Yitro":     "covenant",
	"Mishpatim": "covenant",
	"Terumah":   "covenant",
	"Tetzaveh":  "covenant",
	"Ki Tisa":   "covenant",
	"Vayakhel":  "covenant",
	"Pekudei":   "covenant",
	// レビ記
	"Vayikra":    "covenant",
	"Tzav":       "covenant",
	"Shmini":     "covenant",
	"Tazria":     "covenant",
	"Metzora":    "covenant",
	"Achrei Mot": "covenant",
	"Kedoshim":   "covenant",
	"Emor":       "covenant",
	"Behar":      "covenant",
	"Bechukotai": "covenant",
	// 民数記
	"Bamidbar":     "desert",
	"Nasso":        "desert",
	"Beha'alotcha": "desert",
	"Sh'lach":      "desert",
	"Korach":       "desert",
	"Chukat":       "desert",
	"Balak":        "desert",
	"Pinchas":      "desert",
	"Matot":        "desert",
	"Masei":        "desert",
	// 申命記
	"Devarim":          "desert",
	"Vaetchanan":       "covenant",
	"Eikev":            "covenant",
	"Re'eh":            "covenant",
	"Shoftim":          "covenant",
	"Ki Teitzei":       "covenant",
	"Ki Tavo":          "covenant",
	"Nitzavim":         "covenant",
	"Vayeilech":        "covenant",
	"Ha'Azinu":         "covenant",
	"V'Zot HaBerachah": "covenant",
}

// bookThemes はパラシャ名で引けなかったときの書名フォールバックです。
var bookThemes = map[string]string{
	"Genesis":     "family",
	"Exodus":      "redemption",
	"Leviticus":   "covenant",
	"Numbers":     "desert",
	"Deuteronomy": "covenant",
}

// BorderColor はパラシャのテーマ枠色（16進数カラー）を返します。
// パラシャ名 → 書名 → covenant の順でフォールバックします。
// APIに依存しない静的テーブルなので、オフラインでも必ず色が決まります。
func BorderColor(parashaName, book string) string {
	theme, ok := parashaThemes[parashaName]
	if !ok {
		theme, ok = bookThemes[book]
		if !ok {
			theme = "covenant"
		}
	}
	if color, ok := themeColors[theme]; ok {
		return color
	}
	return themeColors["covenant"]
}

// Theme はパラシャのテーマ名を返します。枠色と同じ規則で決まります。
func Theme(parashaName, book string) string {
	if theme, ok := parashaThemes[parashaName]; ok {
		return theme
	}
	if theme, ok := bookThemes[book]; ok {
		return theme
	}
	return "covenant"
}
