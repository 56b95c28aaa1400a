package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/shouni/go-parasha-kit/pkg/domain"
	"github.com/shouni/go-parasha-kit/pkg/generator"
)

var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*\\S)\\s*```")

// VisionClient はレビューに必要なマルチモーダル呼び出しの最小surfaceです。
type VisionClient interface {
	GenerateVision(ctx context.Context, req generator.VisionRequest) (string, error)
}

// Reviewer は生成画像とキャラクター参照を突き合わせて採点します。
type Reviewer struct {
	vision     VisionClient
	thresholds domain.Thresholds
	logger     *slog.Logger
}

// NewReviewer はレビュアーを初期化します。しきい値の大小関係は事前に検証します。
func NewReviewer(vision VisionClient, thresholds domain.Thresholds, logger *slog.Logger) (*Reviewer, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Reviewer{vision: vision, thresholds: thresholds, logger: logger}, nil
}

// Review はカード画像を採点します。
// プロンプトに既知のキャラクターが1人も登場しないカードは採点対象外で、
// (nil, nil) を返します。呼び出し側は nil を「レビューなし・無条件受理」と
// 解釈します。
func (r *Reviewer) Review(ctx context.Context, imagePath string, card domain.Card, chars []domain.Character) (*domain.ReviewResult, error) {
	if len(chars) == 0 {
		return nil, nil
	}

	cardImage, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("レビュー対象画像の読み込みに失敗しました: %w", err)
	}

	images := []domain.ImagePart{{MIMEType: "image/png", Data: cardImage, Label: card.CardID}}
	for _, char := range chars {
		if char.ReferencePath == "" {
			continue
		}
		refData, err := os.ReadFile(char.ReferencePath)
		if err != nil {
			r.logger.Warn("キャラクター参照画像が読めないため、特徴記述のみで採点します",
				slog.String("character", char.Key), slog.Any("error", err))
			continue
		}
		images = append(images, domain.ImagePart{MIMEType: "image/png", Data: refData, Label: char.Key})
	}

	raw, err := r.vision.GenerateVision(ctx, generator.VisionRequest{
		Prompt: buildRubric(card, chars),
		Images: images,
	})
	if err != nil {
		return nil, fmt.Errorf("レビューモデルの呼び出しに失敗しました: %w", err)
	}

	result, err := parseReviewResponse(raw)
	if err != nil {
		return nil, err
	}

	result.CardID = card.CardID
	score, ok := domain.ComputeOverallScore(result.Characters)
	if !ok {
		return nil, fmt.Errorf("レビュー応答に採点可能な属性が1つもありません")
	}
	result.OverallScore = score
	result.Recommendation = r.thresholds.Recommend(score)
	return result, nil
}

// parseReviewResponse はモデル応答からスコアJSONを取り出します。
// フェンス付きコードブロックを最優先し、なければ最外の中括弧、
// それもなければ応答全体をJSONとして解釈します。
func parseReviewResponse(raw string) (*domain.ReviewResult, error) {
	raw = strings.TrimSpace(raw)
	var rawJSON string

	matches := jsonBlockRegex.FindStringSubmatch(raw)
	if len(matches) > 1 {
		rawJSON = matches[1]
	} else {
		firstBracket := strings.Index(raw, "{")
		lastBracket := strings.LastIndex(raw, "}")
		if firstBracket != -1 && lastBracket != -1 && lastBracket > firstBracket {
			rawJSON = raw[firstBracket : lastBracket+1]
		} else {
			rawJSON = raw
		}
	}

	var result domain.ReviewResult
	if err := json.Unmarshal([]byte(rawJSON), &result); err != nil {
		return nil, fmt.Errorf("レビュー応答に含まれるJSONの解析に失敗しました (応答抜粋: %q): %w", truncateString(raw, 200), err)
	}
	return &result, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
