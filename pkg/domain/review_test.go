package domain

import "testing"

func TestComputeOverallScore(t *testing.T) {
	t.Run("全属性の算術平均になるのだ", func(t *testing.T) {
		assessments := []CharacterAssessment{
			{Name: "Moses", Attributes: map[string]AttributeScore{
				"face": {Score: 90}, "clothing": {Score: 80},
			}},
			{Name: "Yitro", Attributes: map[string]AttributeScore{
				"face": {Score: 70},
			}},
		}
		got, ok := ComputeOverallScore(assessments)
		if !ok {
			t.Fatal("スコアが計算されないのだ")
		}
		if got != 80 {
			t.Errorf("期待 80, 実際 %d", got)
		}
	})

	t.Run("端数は四捨五入なのだ", func(t *testing.T) {
		assessments := []CharacterAssessment{
			{Name: "Moses", Attributes: map[string]AttributeScore{
				"face": {Score: 85}, "clothing": {Score: 70},
			}},
		}
		got, _ := ComputeOverallScore(assessments)
		if got != 78 { // 77.5 -> 78
			t.Errorf("期待 78, 実際 %d", got)
		}
	})

	t.Run("属性ゼロなら false なのだ", func(t *testing.T) {
		if _, ok := ComputeOverallScore(nil); ok {
			t.Error("false が期待されるのだ")
		}
	})
}

func TestThresholds_Recommend(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		score int
		want  Recommendation
	}{
		{100, RecommendationPass},
		{85, RecommendationPass},
		{84, RecommendationReview},
		{70, RecommendationReview},
		{69, RecommendationRegenerate},
		{50, RecommendationRegenerate},
		{49, RecommendationReject},
		{0, RecommendationReject},
	}
	for _, tt := range tests {
		if got := th.Recommend(tt.score); got != tt.want {
			t.Errorf("score=%d: 期待 %s, 実際 %s", tt.score, tt.want, got)
		}
	}
}

func TestThresholds_Validate(t *testing.T) {
	t.Run("既定値は整合しているのだ", func(t *testing.T) {
		if err := DefaultThresholds().Validate(); err != nil {
			t.Errorf("既定値でエラーなのだ: %v", err)
		}
	})
	t.Run("逆転したしきい値はエラーなのだ", func(t *testing.T) {
		if err := (Thresholds{Pass: 50, Review: 70, Regenerate: 85}).Validate(); err == nil {
			t.Error("エラーが期待されるのだ")
		}
	})
}

func TestRecommendation_Accepted(t *testing.T) {
	accepted := map[Recommendation]bool{
		RecommendationPass:       true,
		RecommendationReview:     true,
		RecommendationRegenerate: false,
		RecommendationReject:     false,
	}
	for rec, want := range accepted {
		if rec.Accepted() != want {
			t.Errorf("%s.Accepted() = %v, 期待 %v", rec, rec.Accepted(), want)
		}
	}
}

func TestCharacterAssessment_FailingAttributes(t *testing.T) {
	a := CharacterAssessment{
		Name: "Moses",
		Attributes: map[string]AttributeScore{
			"face":     {Score: 90},
			"clothing": {Score: 60, Note: "robes are green instead of blue"},
			"beard":    {Score: 40, Note: "no beard at all"},
		},
	}
	failed := a.FailingAttributes(70)
	if len(failed) != 2 {
		t.Fatalf("失格属性は2つのはずなのだ: %+v", failed)
	}
	if _, ok := failed["face"]; ok {
		t.Error("face は合格のはずなのだ")
	}
}
