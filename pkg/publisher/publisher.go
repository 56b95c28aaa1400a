// Package publisher はデッキの最終成果物（印刷用のMarkdown/HTMLシートと
// カード画像一式）を書き出します。
package publisher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/shouni/go-parasha-kit/pkg/asset"
	"github.com/shouni/go-parasha-kit/pkg/domain"
)

// Options はパブリッシュ動作を制御する設定項目です。
type Options struct {
	OutputDir string // 空ならデッキ直下の print/ に出力します
}

// PublishResult は生成されたファイルの情報を保持します。
type PublishResult struct {
	MarkdownPath string   // 生成されたデッキシートMarkdownのパス
	HTMLPath     string   // 変換されたHTMLのパス
	ImagePaths   []string // コピーされたカード画像のパスリスト
}

const (
	deckSheetName = "deck_sheet.md"
	imageDirName  = "images"
)

// ArtifactWriter は成果物の書き込みsurfaceです。ローカル・GCSの両対応の
// ライターがこれを満たします。
type ArtifactWriter interface {
	Write(ctx context.Context, path string, r io.Reader, contentType string) error
}

// HTMLConverter はMarkdownからHTMLへの変換surfaceです。
type HTMLConverter interface {
	Run(ctx context.Context, title string, content []byte) (*bytes.Buffer, error)
}

// DeckPublisher は成果物の永続化とフォーマット変換を担います。
type DeckPublisher struct {
	writer    ArtifactWriter
	converter HTMLConverter
	logger    *slog.Logger
}

// NewDeckPublisher は依存関係を注入して初期化します。
// converter が nil の場合はMarkdownのみを出力します。
func NewDeckPublisher(writer ArtifactWriter, converter HTMLConverter, logger *slog.Logger) *DeckPublisher {
	return &DeckPublisher{writer: writer, converter: converter, logger: logger}
}

// Publish はカード画像のコピー、Markdownの構築、HTML変換を一括して実行します。
func (p *DeckPublisher) Publish(ctx context.Context, deck *domain.Deck, deckDir string, opts Options) (PublishResult, error) {
	result := PublishResult{}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(deckDir, asset.PrintDirName)
	}

	markdownPath, err := asset.ResolveOutputPath(outputDir, deckSheetName)
	if err != nil {
		return result, err
	}
	result.MarkdownPath = markdownPath

	imgDir, err := asset.ResolveOutputPath(outputDir, imageDirName)
	if err != nil {
		return result, err
	}

	savedPaths, err := p.copyCardImages(ctx, deck, deckDir, imgDir)
	if err != nil {
		return result, fmt.Errorf("カード画像のコピーに失敗しました: %w", err)
	}
	result.ImagePaths = savedPaths

	content := p.buildMarkdown(deck)

	if err := p.writer.Write(ctx, markdownPath, strings.NewReader(content), "text/markdown; charset=utf-8"); err != nil {
		return result, fmt.Errorf("Markdownの書き込みに失敗しました: %w", err)
	}

	if p.converter != nil {
		title := fmt.Sprintf("Parasha Pack: %s", deck.ParashaEn)
		p.logger.Info("印刷用HTMLへ変換します", slog.String("parasha", deck.ParashaEn))
		htmlBuffer, err := p.converter.Run(ctx, title, []byte(content))
		if err != nil {
			return result, fmt.Errorf("HTMLへの変換に失敗しました: %w", err)
		}

		htmlPath := strings.TrimSuffix(markdownPath, filepath.Ext(markdownPath)) + ".html"
		if err := p.writer.Write(ctx, htmlPath, htmlBuffer, "text/html; charset=utf-8"); err != nil {
			return result, fmt.Errorf("HTMLの書き込みに失敗しました: %w", err)
		}
		result.HTMLPath = htmlPath
	}

	return result, nil
}

// copyCardImages はオーバーレイ済みカード（無ければ生成画像）を
// 出力先の images/ にコピーします。画像の無いカードは飛ばします。
func (p *DeckPublisher) copyCardImages(ctx context.Context, deck *domain.Deck, deckDir, imgDir string) ([]string, error) {
	var paths []string
	for _, card := range deck.Cards {
		source := filepath.Join(deckDir, asset.CardsDirName, card.CardID+".png")
		if _, err := os.Stat(source); err != nil {
			source = filepath.Join(deckDir, asset.DefaultImageDir, card.CardID+".png")
		}

		data, err := os.ReadFile(source)
		if err != nil {
			p.logger.Warn("カード画像が見つからないため飛ばします",
				slog.String("card", card.CardID))
			continue
		}

		fullPath, err := asset.ResolveOutputPath(imgDir, card.CardID+".png")
		if err != nil {
			return nil, err
		}
		if err := p.writer.Write(ctx, fullPath, bytes.NewReader(data), "image/png"); err != nil {
			return nil, fmt.Errorf("画像の書き込みに失敗しました %s: %w", fullPath, err)
		}
		paths = append(paths, fullPath)
	}
	return paths, nil
}

// buildMarkdown はデッキ1つ分の印刷用シートMarkdownを組み立てます。
func (p *DeckPublisher) buildMarkdown(deck *domain.Deck) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s (%s)\n\n", deck.ParashaEn, deck.ParashaHe))
	if deck.Ref != "" {
		sb.WriteString(fmt.Sprintf("**%s** | Ages %s | %d cards\n\n", deck.Ref, deck.TargetAge, deck.CardCount))
	}

	for _, card := range deck.Cards {
		sb.WriteString(fmt.Sprintf("## %s\n\n", card.DisplayTitle()))
		sb.WriteString(fmt.Sprintf("![%s](%s)\n\n", card.CardID, path.Join(imageDirName, card.CardID+".png")))

		if line := frontLine(card); line != "" {
			sb.WriteString(line + "\n\n")
		}
		if card.Back.TeacherScript != "" {
			sb.WriteString(fmt.Sprintf("> %s\n\n", card.Back.TeacherScript))
		}
		for _, point := range card.Back.DiscussionPoints {
			sb.WriteString(fmt.Sprintf("- %s\n", point))
		}
		if len(card.Back.DiscussionPoints) > 0 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// frontLine はカード表面の要点を1行にまとめます。
func frontLine(card domain.Card) string {
	switch card.CardType {
	case domain.CardTypeSpotlight:
		if card.Front.EmotionWordEn != "" {
			return fmt.Sprintf("*%s* — %s", card.Front.HebrewName, card.Front.EmotionWordEn)
		}
		return fmt.Sprintf("*%s*", card.Front.HebrewName)
	case domain.CardTypePowerWord:
		return fmt.Sprintf("**%s** = %s", card.Front.WordHe, card.Front.MeaningEn)
	case domain.CardTypeConnection:
		return card.Front.QuestionEn
	default:
		if card.Front.TitleHe != "" {
			return fmt.Sprintf("*%s*", card.Front.TitleHe)
		}
	}
	return ""
}
