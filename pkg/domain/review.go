package domain

import (
	"fmt"
	"math"
)

// Recommendation はレビュー結果の最終判定を表します。
type Recommendation string

const (
	RecommendationPass       Recommendation = "PASS"
	RecommendationReview     Recommendation = "REVIEW"
	RecommendationRegenerate Recommendation = "REGENERATE"
	RecommendationReject     Recommendation = "REJECT"
)

// AttributeScore は単一の視覚属性（例: face, clothing）に対する採点です。
type AttributeScore struct {
	Score int    `json:"score"`
	Note  string `json:"note,omitempty"`
}

// CharacterAssessment は1キャラクター分の属性別採点をまとめたものです。
type CharacterAssessment struct {
	Name       string                    `json:"name"`
	Attributes map[string]AttributeScore `json:"attributes"`
}

// FailingAttributes は閾値を下回った属性名を返します。順序は不定です。
func (a CharacterAssessment) FailingAttributes(below int) map[string]AttributeScore {
	failed := make(map[string]AttributeScore)
	for name, attr := range a.Attributes {
		if attr.Score < below {
			failed[name] = attr
		}
	}
	return failed
}

// ReviewResult はカード画像1枚に対する一貫性レビューの結果です。
// OverallScore は全属性スコアの算術平均（四捨五入）です。
type ReviewResult struct {
	ReviewID       string                `json:"review_id,omitempty"`
	CardID         string                `json:"card_id"`
	Attempt        int                   `json:"attempt"`
	Characters     []CharacterAssessment `json:"characters"`
	OverallScore   int                   `json:"overall_score"`
	Recommendation Recommendation        `json:"recommendation"`
	Notes          string                `json:"notes,omitempty"`
}

// ComputeOverallScore は全キャラクター・全属性のスコアを算術平均して返します。
// 属性が1つもない場合は 0 と false を返します。
func ComputeOverallScore(assessments []CharacterAssessment) (int, bool) {
	var sum, n int
	for _, a := range assessments {
		for _, attr := range a.Attributes {
			sum += attr.Score
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return int(math.Round(float64(sum) / float64(n))), true
}

// Thresholds はスコアから判定への変換境界です。値はすべて 0-100 です。
type Thresholds struct {
	Pass       int // これ以上なら PASS
	Review     int // これ以上なら REVIEW
	Regenerate int // これ以上なら REGENERATE、未満は REJECT
}

// DefaultThresholds は元の運用実績に合わせた既定値を返します。
func DefaultThresholds() Thresholds {
	return Thresholds{Pass: 85, Review: 70, Regenerate: 50}
}

// Validate は境界値の整合性（Pass >= Review >= Regenerate）を確認します。
func (t Thresholds) Validate() error {
	if t.Pass < t.Review || t.Review < t.Regenerate {
		return fmt.Errorf("しきい値の大小関係が不正です: pass=%d review=%d regenerate=%d", t.Pass, t.Review, t.Regenerate)
	}
	return nil
}

// Recommend はスコアを判定に変換します。
func (t Thresholds) Recommend(score int) Recommendation {
	switch {
	case score >= t.Pass:
		return RecommendationPass
	case score >= t.Review:
		return RecommendationReview
	case score >= t.Regenerate:
		return RecommendationRegenerate
	default:
		return RecommendationReject
	}
}

// Accepted は再生成を要求しない判定かどうかを返します。
func (r Recommendation) Accepted() bool {
	return r == RecommendationPass || r == RecommendationReview
}
