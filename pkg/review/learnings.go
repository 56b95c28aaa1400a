package review

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shouni/go-parasha-kit/pkg/domain"
)

// LearningsVersion は学習ファイルの現行スキーマバージョンです。
const LearningsVersion = "1.0"

// Learnings はデッキ横断で蓄積する失敗パターンの集計です。
// キーは "<character>.<attribute>"（すべて小文字）です。
type Learnings struct {
	Version        string         `json:"version"`
	UpdatedAt      time.Time      `json:"updated_at"`
	GlobalPatterns GlobalPatterns `json:"global_patterns"`
}

// GlobalPatterns は全デッキ共通の補強推奨です。
type GlobalPatterns struct {
	RecommendedReinforcements map[string]Reinforcement `json:"recommended_reinforcements"`
}

// Reinforcement は1属性分の失敗統計と推奨補強文です。
type Reinforcement struct {
	Failures      int     `json:"failures"`
	Samples       int     `json:"samples"`
	FailureRate   float64 `json:"failure_rate"`
	Priority      string  `json:"priority"` // high / medium / low
	Reinforcement string  `json:"recommended_reinforcement"`
}

// NewLearnings は空の学習データを返します。
func NewLearnings() Learnings {
	return Learnings{
		Version: LearningsVersion,
		GlobalPatterns: GlobalPatterns{
			RecommendedReinforcements: map[string]Reinforcement{},
		},
	}
}

// Merge はレビュー結果を学習データへ畳み込んだ新しい値を返します。
// 引数の l は変更しません（純粋関数）。採点された全属性をサンプルとして数え、
// failBelow 未満の属性を失敗として数えます。統計は単調に増えるだけで、
// 過去の失敗が消えることはありません。
func Merge(l Learnings, rev *domain.ReviewResult, failBelow int) Learnings {
	if rev == nil {
		return l
	}

	merged := Learnings{
		Version:   LearningsVersion,
		UpdatedAt: time.Now().UTC(),
		GlobalPatterns: GlobalPatterns{
			RecommendedReinforcements: make(map[string]Reinforcement, len(l.GlobalPatterns.RecommendedReinforcements)),
		},
	}
	for key, rec := range l.GlobalPatterns.RecommendedReinforcements {
		merged.GlobalPatterns.RecommendedReinforcements[key] = rec
	}

	for _, char := range rev.Characters {
		charKey := strings.ToLower(char.Name)
		for attrName, attr := range char.Attributes {
			key := charKey + "." + strings.ToLower(attrName)
			rec := merged.GlobalPatterns.RecommendedReinforcements[key]

			rec.Samples++
			if attr.Score < failBelow {
				rec.Failures++
				rec.Reinforcement = reinforcementText(char.Name, attrName, attr.Note)
			}
			rec.FailureRate = float64(rec.Failures) / float64(rec.Samples)
			rec.Priority = priorityFor(rec.FailureRate)

			merged.GlobalPatterns.RecommendedReinforcements[key] = rec
		}
	}
	return merged
}

// ReinforcementsFor は指定キャラクターの補強文を失敗率の降順で返します。
// 失敗実績のない属性と low 優先度は含めません。
func (l Learnings) ReinforcementsFor(characterKeys []string) []string {
	wanted := make(map[string]bool, len(characterKeys))
	for _, key := range characterKeys {
		wanted[strings.ToLower(key)] = true
	}

	type entry struct {
		rate float64
		key  string
		text string
	}
	var entries []entry
	for key, rec := range l.GlobalPatterns.RecommendedReinforcements {
		charKey, _, found := strings.Cut(key, ".")
		if !found || !wanted[charKey] {
			continue
		}
		if rec.Failures == 0 || rec.Priority == "low" || rec.Reinforcement == "" {
			continue
		}
		entries = append(entries, entry{rate: rec.FailureRate, key: key, text: rec.Reinforcement})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].rate != entries[j].rate {
			return entries[i].rate > entries[j].rate
		}
		return entries[i].key < entries[j].key
	})

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.text)
	}
	return lines
}

func reinforcementText(charName, attrName, note string) string {
	text := fmt.Sprintf("EXTRA ATTENTION - %s %s: this attribute has failed in recent generations.",
		strings.ToUpper(charName), strings.ToUpper(attrName))
	if note != "" {
		text += " Last issue: " + note + "."
	}
	return text
}

func priorityFor(rate float64) string {
	switch {
	case rate >= 0.5:
		return "high"
	case rate >= 0.25:
		return "medium"
	default:
		return "low"
	}
}
