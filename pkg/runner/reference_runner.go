package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"golang.org/x/time/rate"

	"github.com/shouni/go-parasha-kit/pkg/asset"
	"github.com/shouni/go-parasha-kit/pkg/domain"
	"github.com/shouni/go-parasha-kit/pkg/generator"
	"github.com/shouni/go-parasha-kit/pkg/prompts"
	"github.com/shouni/go-parasha-kit/pkg/state"
)

// referenceSheet は生成する参照シート1種類分の定義です。
type referenceSheet struct {
	suffix      string
	aspectRatio string
	prompt      func(domain.Character) string
}

// 参照シートは identity → expressions → turnaround の順で生成します。
// identity はカード生成の一貫性参照として必須で、残りは補助資料です。
var referenceSheets = []referenceSheet{
	{suffix: "identity", aspectRatio: generator.AspectRatioIdentity, prompt: prompts.IdentitySheet},
	{suffix: "expressions", aspectRatio: "3:2", prompt: prompts.ExpressionSheet},
	{suffix: "turnaround", aspectRatio: generator.AspectRatioIdentity, prompt: prompts.TurnaroundSheet},
}

// ReferenceRunner はキャラクター参照シートを生成し、デッキの
// references/manifest.json を更新します。
type ReferenceRunner struct {
	gen     ImageGenerator
	chars   domain.CharactersMap
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewReferenceRunner は依存関係を注入して初期化します。
func NewReferenceRunner(gen ImageGenerator, chars domain.CharactersMap, limiter *rate.Limiter, logger *slog.Logger) *ReferenceRunner {
	return &ReferenceRunner{gen: gen, chars: chars, limiter: limiter, logger: logger}
}

// Run は指定キャラクターの参照シートを生成します。charKeys が空なら
// デッキの全プロンプトに登場する既知キャラクター全員が対象です。
// identity シートの生成失敗はエラー、補助シートの失敗は警告止まりです。
func (r *ReferenceRunner) Run(ctx context.Context, deckPath string, charKeys []string) error {
	deckDir := filepath.Dir(deckPath)
	refsDir := filepath.Join(deckDir, asset.ReferencesDirName)
	if err := os.MkdirAll(refsDir, 0o755); err != nil {
		return fmt.Errorf("参照ディレクトリの作成に失敗しました: %w", err)
	}

	targets, err := r.resolveTargets(deckPath, charKeys)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("参照シートを生成するキャラクターが見つかりません")
	}

	manifest, err := asset.LoadManifest(deckDir)
	if err != nil {
		return err
	}

	for _, char := range targets {
		fmt.Printf("%s Generating references for: %s\n", color.WhiteString("[REF]"), char.NameEn)

		for i, sheet := range referenceSheets {
			fileName := fmt.Sprintf("%s_%s.png", char.Key, sheet.suffix)
			fmt.Printf("  [%d/%d] %s sheet...\n", i+1, len(referenceSheets), sheet.suffix)

			if fileExists(filepath.Join(refsDir, fileName)) {
				fmt.Printf("    -> Exists, skipping: %s\n", fileName)
				if sheet.suffix == "identity" {
					manifest[char.Key] = asset.ReferenceEntry{Identity: fileName}
				}
				continue
			}

			if err := r.generateSheet(ctx, sheet, char, filepath.Join(refsDir, fileName)); err != nil {
				if sheet.suffix == "identity" {
					return fmt.Errorf("%s の identity シート生成に失敗しました: %w", char.Key, err)
				}
				r.logger.Warn("補助シートの生成に失敗しました。続行します。",
					slog.String("character", char.Key), slog.String("sheet", sheet.suffix), slog.Any("error", err))
				continue
			}
			fmt.Printf("    -> Saved: %s\n", fileName)

			if sheet.suffix == "identity" {
				// マニフェストはファイル名のみで登録します。リゾルバの
				// ローカルフォールバックがこの形式を解決します。
				manifest[char.Key] = asset.ReferenceEntry{Identity: fileName}
			}
		}
	}

	if err := saveManifest(deckDir, manifest); err != nil {
		return err
	}

	if err := r.advanceStage(deckDir); err != nil {
		r.logger.Warn("パイプライン状態の更新に失敗しました", slog.Any("error", err))
	}
	return nil
}

// advanceStage は references ステージを完了し、identity チェックポイントを開きます。
func (r *ReferenceRunner) advanceStage(deckDir string) error {
	store := state.NewStore(deckDir)
	if err := store.CompleteStage(state.StageReferences, state.StageImages); err != nil {
		if errors.Is(err, state.ErrNoState) {
			// パイプライン管理外のデッキはそのまま見送ります
			return nil
		}
		return err
	}
	return store.OpenCheckpoint(state.CheckpointIdentity)
}

// resolveTargets は生成対象キャラクターを確定します。
func (r *ReferenceRunner) resolveTargets(deckPath string, charKeys []string) ([]domain.Character, error) {
	if len(charKeys) > 0 {
		targets := make([]domain.Character, 0, len(charKeys))
		for _, key := range charKeys {
			char, ok := r.chars[key]
			if !ok {
				return nil, fmt.Errorf("未知のキャラクターです: %q", key)
			}
			targets = append(targets, char)
		}
		return targets, nil
	}

	deck, err := domain.LoadDeck(deckPath)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var targets []domain.Character
	for _, card := range deck.Cards {
		for _, char := range r.chars.MentionedIn(card.ImagePrompt) {
			if !seen[char.Key] {
				seen[char.Key] = true
				targets = append(targets, char)
			}
		}
	}
	return targets, nil
}

func (r *ReferenceRunner) generateSheet(ctx context.Context, sheet referenceSheet, char domain.Character, outputPath string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	result, err := r.gen.GenerateImage(ctx, generator.ImageRequest{
		Prompt:      sheet.prompt(char),
		AspectRatio: sheet.aspectRatio,
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, result.Data, 0o644); err != nil {
		return fmt.Errorf("シートの書き込みに失敗しました: %w", err)
	}
	return nil
}

func saveManifest(deckDir string, manifest asset.Manifest) error {
	path := filepath.Join(deckDir, asset.ReferencesDirName, asset.ManifestFileName)
	return writePrettyJSON(path, manifest)
}
