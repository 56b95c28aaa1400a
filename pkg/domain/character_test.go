package domain

import (
	"reflect"
	"testing"
)

func TestParseCharacters(t *testing.T) {
	t.Run("キーが小文字に正規化されるのだ", func(t *testing.T) {
		data := []byte(`{
			"Moses": {"name_en": "Moses", "name_he": "מֹשֶׁה", "visual_traits": ["short gray-streaked beard", "blue and cream robes"]},
			"yitro": {"name_en": "Yitro", "name_he": "יִתְרוֹ"}
		}`)

		chars, err := ParseCharacters(data)
		if err != nil {
			t.Fatalf("パース失敗なのだ: %v", err)
		}
		if _, ok := chars["moses"]; !ok {
			t.Error("moses キーが小文字で引けないのだ")
		}
		if chars["moses"].Key != "moses" {
			t.Errorf("Key フィールドが補完されていないのだ: %q", chars["moses"].Key)
		}
	})

	t.Run("壊れたJSONはエラーなのだ", func(t *testing.T) {
		if _, err := ParseCharacters([]byte(`{"moses": `)); err == nil {
			t.Error("エラーが期待されるのだ")
		}
	})
}

func TestCharactersMap_MentionedIn(t *testing.T) {
	chars := CharactersMap{
		"moses":  {Key: "moses", NameEn: "Moses"},
		"yitro":  {Key: "yitro", NameEn: "Yitro"},
		"miriam": {Key: "miriam", NameEn: "Miriam"},
	}

	t.Run("大文字小文字を無視して検出するのだ", func(t *testing.T) {
		got := chars.MentionedIn("MOSES listens carefully to Yitro's advice")
		want := []string{"moses", "yitro"}

		var keys []string
		for _, c := range got {
			keys = append(keys, c.Key)
		}
		if !reflect.DeepEqual(keys, want) {
			t.Errorf("期待 %v, 実際 %v", want, keys)
		}
	})

	t.Run("誰も登場しなければ空なのだ", func(t *testing.T) {
		if got := chars.MentionedIn("A mountain under a starry sky"); len(got) != 0 {
			t.Errorf("空が期待されるのだ: %+v", got)
		}
	})

	t.Run("結果はキーの辞書順で安定するのだ", func(t *testing.T) {
		prompt := "Yitro greets Miriam while Moses watches"
		first := chars.MentionedIn(prompt)
		for i := 0; i < 5; i++ {
			if !reflect.DeepEqual(first, chars.MentionedIn(prompt)) {
				t.Fatal("呼び出しごとに順序が変わるのだ")
			}
		}
	})
}
