package runner

import (
	"bytes"
	"context"
	"encoding/json"
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
	"github.com/shouni/go-parasha-kit/pkg/review"
	"github.com/shouni/go-parasha-kit/pkg/state"
)

// ImageGenerator は1回の画像生成試行のsurfaceです。
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req generator.ImageRequest) (*generator.ImageResult, error)
}

// CardReviewer はカード画像の一貫性採点のsurfaceです。
type CardReviewer interface {
	Review(ctx context.Context, imagePath string, card domain.Card, chars []domain.Character) (*domain.ReviewResult, error)
}

// ReferenceResolver はプロンプトに応じた参照画像の解決のsurfaceです。
type ReferenceResolver interface {
	Resolve(deckDir, prompt string) ([]domain.ImagePart, error)
}

// GenerateOptions はカード画像生成の実行オプションです。
type GenerateOptions struct {
	CardID        string // 空でなければこのカードだけを対象にします
	SkipExisting  bool   // 画像が既にあるカードを飛ばします
	Review        bool   // 生成後に一貫性レビューを行います
	MaxAttempts   int    // カード1枚あたりの最大試行回数
	MinScore      int    // 受理に必要な最低スコア
	NoRefs        bool   // キャラクター参照画像を無効化します
	ReviewVerbose bool   // 属性別スコアの詳細を表示します
}

// GenerateSummary は1回の実行の集計です。
type GenerateSummary struct {
	Succeeded int
	Skipped   int
	Failed    int
	Flagged   []string // 最低スコア未満のまま受理され、要人間レビューのカード
}

// CardImageRunner はデッキ全カードの画像生成・レビュー・リトライを
// 駆動するオーケストレータです。カードはデッキ順、試行は厳密に逐次で、
// API呼び出しの間隔は固定レートのリミッターで抑えます。
type CardImageRunner struct {
	gen           ImageGenerator
	reviewer      CardReviewer
	resolver      ReferenceResolver
	chars         domain.CharactersMap
	limiter       *rate.Limiter
	logger        *slog.Logger
	failThreshold int // この値未満の属性スコアを「失格」として矯正・学習に回します
}

// NewCardImageRunner は依存関係を注入して初期化します。
// reviewer はレビュー無効運用なら nil で構いません。
func NewCardImageRunner(
	gen ImageGenerator,
	reviewer CardReviewer,
	resolver ReferenceResolver,
	chars domain.CharactersMap,
	limiter *rate.Limiter,
	failThreshold int,
	logger *slog.Logger,
) *CardImageRunner {
	return &CardImageRunner{
		gen:           gen,
		reviewer:      reviewer,
		resolver:      resolver,
		chars:         chars,
		limiter:       limiter,
		logger:        logger,
		failThreshold: failThreshold,
	}
}

// Run はデッキの全カード画像を生成し、deck.json に image_path を書き戻します。
func (r *CardImageRunner) Run(ctx context.Context, deckPath string, opts GenerateOptions) (*GenerateSummary, error) {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Review && r.reviewer == nil {
		return nil, fmt.Errorf("レビューが有効ですがレビュアーが注入されていません")
	}

	deck, err := domain.LoadDeck(deckPath)
	if err != nil {
		return nil, err
	}

	deckDir := filepath.Dir(deckPath)
	imagesDir := filepath.Join(deckDir, asset.DefaultImageDir)
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return nil, fmt.Errorf("画像ディレクトリの作成に失敗しました: %w", err)
	}

	reviewStore := review.NewStore(deckDir)
	stateStore := state.NewStore(deckDir)

	summary := &GenerateSummary{}
	for i := range deck.Cards {
		card := &deck.Cards[i]
		if opts.CardID != "" && card.CardID != opts.CardID {
			continue
		}

		outcome, err := r.runCard(ctx, deck, card, deckDir, reviewStore, opts)
		if err != nil {
			return nil, err
		}

		switch outcome.state {
		case CardAccepted:
			summary.Succeeded++
			if outcome.flagged {
				summary.Flagged = append(summary.Flagged, card.CardID)
				if err := flagCard(stateStore, card.CardID); err != nil {
					r.logger.Warn("要レビュー一覧の更新に失敗しました",
						slog.String("card", card.CardID), slog.Any("error", err))
				}
			}
		case CardExhausted:
			summary.Failed++
		default: // skip
			summary.Skipped++
		}
	}

	if err := domain.SaveDeck(deckPath, deck); err != nil {
		return nil, err
	}

	fmt.Printf("Complete! Success: %d, Skipped: %d, Failed: %d\n",
		summary.Succeeded, summary.Skipped, summary.Failed)
	return summary, nil
}

type cardOutcome struct {
	state   CardState
	flagged bool
}

// runCard はカード1枚の生成ループを駆動します。戻りの state は
// ACCEPTED / EXHAUSTED / PENDING（スキップ）のいずれかです。
func (r *CardImageRunner) runCard(
	ctx context.Context,
	deck *domain.Deck,
	card *domain.Card,
	deckDir string,
	reviewStore *review.Store,
	opts GenerateOptions,
) (cardOutcome, error) {
	outputPath := filepath.Join(deckDir, asset.DefaultImageDir, card.CardID+".png")

	if opts.SkipExisting && fileExists(outputPath) {
		fmt.Printf("%s %s - image exists\n", color.CyanString("[SKIP]"), card.CardID)
		return cardOutcome{state: CardPending}, nil
	}
	if card.ImagePrompt == "" {
		fmt.Printf("%s %s - no prompt\n", color.CyanString("[SKIP]"), card.CardID)
		return cardOutcome{state: CardPending}, nil
	}

	// 学習済みの補強行を注入したシーン記述。リトライ時の矯正は
	// 毎回この元の記述からやり直します（矯正行の累積を防ぐため）。
	scene := r.reinforcedScene(card, reviewStore, opts)
	fmt.Printf("%s %s: %s\n", color.WhiteString("[GEN]"), card.CardID, truncateTitle(card.DisplayTitle(), 30))

	cardState := CardPending
	prompt := scene
	var lastReview *domain.ReviewResult
	flagged := false

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			fmt.Printf("  %s Attempt %d/%d\n", color.YellowString("[RETRY]"), attempt, opts.MaxAttempts)
		}

		var err error
		if cardState, err = nextCardState(cardState, EventGenerate); err != nil {
			return cardOutcome{}, err
		}

		genErr := r.generateOnce(ctx, deckDir, prompt, card.CardType, outputPath, opts)
		if genErr != nil {
			// 失敗種別（transport / decode / empty）は問わず再試行します
			fmt.Printf("  %s Generation failed: %v\n", color.RedString("[FAIL]"), genErr)
			ev := EventRetry
			if attempt == opts.MaxAttempts {
				ev = EventExhaust
			}
			if cardState, err = nextCardState(cardState, ev); err != nil {
				return cardOutcome{}, err
			}
			continue
		}

		if !opts.Review {
			if cardState, err = nextCardState(cardState, EventAccept); err != nil {
				return cardOutcome{}, err
			}
			break
		}

		if cardState, err = nextCardState(cardState, EventImageReady); err != nil {
			return cardOutcome{}, err
		}

		mentioned := r.chars.MentionedIn(card.ImagePrompt)
		rev, revErr := r.reviewer.Review(ctx, outputPath, *card, mentioned)
		if revErr != nil {
			// レビュー機構自体の故障で生成画像を捨てることはしません
			r.logger.Warn("レビューに失敗したため、このカードは未採点のまま受理します",
				slog.String("card", card.CardID), slog.Any("error", revErr))
			if cardState, err = nextCardState(cardState, EventAccept); err != nil {
				return cardOutcome{}, err
			}
			break
		}
		if rev == nil {
			// 既知キャラクターが登場しないカードは採点対象外です
			if cardState, err = nextCardState(cardState, EventAccept); err != nil {
				return cardOutcome{}, err
			}
			break
		}

		rev.Attempt = attempt
		lastReview = rev
		r.persistReview(deck, reviewStore, rev, attempt)
		r.printScore(rev, opts.ReviewVerbose)

		if rev.OverallScore >= opts.MinScore {
			if cardState, err = nextCardState(cardState, EventAccept); err != nil {
				return cardOutcome{}, err
			}
			break
		}

		// 不合格。画像とレビューを rejected/ に退避します。
		if archiveErr := archiveRejected(outputPath, rev, attempt); archiveErr != nil {
			r.logger.Warn("不合格画像の退避に失敗しました", slog.Any("error", archiveErr))
		}

		if attempt < opts.MaxAttempts {
			prompt = prompts.Strengthen(scene, rev, r.failThreshold)
			if cardState, err = nextCardState(cardState, EventRetry); err != nil {
				return cardOutcome{}, err
			}
			continue
		}

		// 予算切れ。最後にもう1回だけ未採点で再生成し、結果がどうであれ
		// 受理します。スコアは低いまま記録に残り、人間レビューに回ります。
		fmt.Printf("  %s Max attempts reached, keeping last image\n", color.YellowString("[WARN]"))
		if cardState, err = nextCardState(cardState, EventExhaust); err != nil {
			return cardOutcome{}, err
		}
		if finalErr := r.generateOnce(ctx, deckDir, prompt, card.CardType, outputPath, opts); finalErr != nil {
			r.logger.Warn("最終再生成に失敗したため、直前の画像を保持します",
				slog.String("card", card.CardID), slog.Any("error", finalErr))
		}
		if cardState, err = nextCardState(cardState, EventAccept); err != nil {
			return cardOutcome{}, err
		}
		flagged = true
	}

	if cardState == CardAccepted {
		card.ImagePath = asset.DefaultImageDir + "/" + card.CardID + ".png"
		fmt.Printf("  -> Saved: %s.png\n", card.CardID)
		if lastReview != nil && lastReview.OverallScore < opts.MinScore {
			flagged = true
		}
		return cardOutcome{state: CardAccepted, flagged: flagged}, nil
	}
	return cardOutcome{state: CardExhausted}, nil
}

// generateOnce はレートリミッターを挟んで1回だけ生成を試み、
// 成功したら画像を outputPath に書き出します。
func (r *CardImageRunner) generateOnce(ctx context.Context, deckDir, scene string, cardType domain.CardType, outputPath string, opts GenerateOptions) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	req := generator.ImageRequest{
		Prompt:      prompts.Assemble(scene, cardType),
		AspectRatio: generator.AspectRatioCard,
	}
	if !opts.NoRefs {
		refs, err := r.resolver.Resolve(deckDir, scene)
		if err != nil {
			return err
		}
		if len(refs) > 0 {
			req.References = refs
			req.Preamble = prompts.ReferencePreamble(len(refs))
			req.Bridge = prompts.ReferenceBridge
		}
	}

	result, err := r.gen.GenerateImage(ctx, req)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, result.Data, 0o644); err != nil {
		return fmt.Errorf("画像の書き込みに失敗しました: %w", err)
	}
	return nil
}

// reinforcedScene は学習ストアの補強行を織り込んだシーン記述を返します。
func (r *CardImageRunner) reinforcedScene(card *domain.Card, reviewStore *review.Store, opts GenerateOptions) string {
	if !opts.Review || opts.NoRefs {
		return card.ImagePrompt
	}

	learnings, err := reviewStore.LoadLearnings()
	if err != nil {
		r.logger.Warn("学習ファイルが読めないため、補強なしで生成します", slog.Any("error", err))
		return card.ImagePrompt
	}

	var keys []string
	for _, char := range r.chars.MentionedIn(card.ImagePrompt) {
		keys = append(keys, char.Key)
	}
	lines := learnings.ReinforcementsFor(keys)
	if len(lines) > 0 {
		fmt.Printf("  (+%d learned reinforcements)\n", len(lines))
	}
	return prompts.WithReinforcements(card.ImagePrompt, lines)
}

// persistReview はレビュー結果の保存・サマリー更新・学習の畳み込みを行います。
// どれも失敗は警告にとどめ、生成ループは止めません。
func (r *CardImageRunner) persistReview(deck *domain.Deck, reviewStore *review.Store, rev *domain.ReviewResult, attempt int) {
	if err := reviewStore.SaveReview(rev); err != nil {
		r.logger.Warn("レビュー結果の保存に失敗しました", slog.Any("error", err))
	}
	if err := reviewStore.UpdateSummary(deck.Slug(), rev, attempt); err != nil {
		r.logger.Warn("サマリーの更新に失敗しました", slog.Any("error", err))
	}

	learnings, err := reviewStore.LoadLearnings()
	if err != nil {
		r.logger.Warn("学習ファイルが読めないため、学習をスキップします", slog.Any("error", err))
		return
	}
	if err := reviewStore.SaveLearnings(review.Merge(learnings, rev, r.failThreshold)); err != nil {
		r.logger.Warn("学習ファイルの保存に失敗しました", slog.Any("error", err))
	}
}

// printScore は判定ごとに色分けしたスコア行を表示します。
func (r *CardImageRunner) printScore(rev *domain.ReviewResult, verbose bool) {
	label := fmt.Sprintf("[%s]", rev.Recommendation)
	switch rev.Recommendation {
	case domain.RecommendationPass:
		label = color.GreenString(label)
	case domain.RecommendationReview:
		label = color.YellowString(label)
	default:
		label = color.RedString(label)
	}
	fmt.Printf("  %s Score: %d/100\n", label, rev.OverallScore)

	if verbose {
		for _, char := range rev.Characters {
			for name, attr := range char.FailingAttributes(r.failThreshold) {
				fmt.Printf("    %s %s: %d/100 (%s)\n", char.Name, name, attr.Score, attr.Note)
			}
		}
	}
}

// archiveRejected は不合格画像とそのレビューを rejected/ に退避します。
// 画像は <card_id>_v<attempt>.png として移動します。
func archiveRejected(outputPath string, rev *domain.ReviewResult, attempt int) error {
	rejectedDir := filepath.Join(filepath.Dir(filepath.Dir(outputPath)), asset.RejectedDirName)
	if err := os.MkdirAll(rejectedDir, 0o755); err != nil {
		return fmt.Errorf("退避ディレクトリの作成に失敗しました: %w", err)
	}

	cardID := rev.CardID
	imageName := fmt.Sprintf("%s_v%d.png", cardID, attempt)
	if fileExists(outputPath) {
		if err := os.Rename(outputPath, filepath.Join(rejectedDir, imageName)); err != nil {
			return fmt.Errorf("不合格画像の移動に失敗しました: %w", err)
		}
		fmt.Printf("  -> Rejected image saved: %s\n", imageName)
	}

	reviewData, err := reviewJSON(rev)
	if err != nil {
		return err
	}
	reviewName := fmt.Sprintf("%s_v%d_review.json", cardID, attempt)
	if err := os.WriteFile(filepath.Join(rejectedDir, reviewName), reviewData, 0o644); err != nil {
		return fmt.Errorf("不合格レビューの書き込みに失敗しました: %w", err)
	}
	return nil
}

func flagCard(store *state.Store, cardID string) error {
	err := store.FlagForReview(cardID)
	if errors.Is(err, state.ErrNoState) {
		// パイプライン管理外のデッキ（手作業デッキ）は黙って見送ります
		return nil
	}
	return err
}

// reviewJSON はヘブライ語を含む注記をエスケープせずにエンコードします。
func reviewJSON(rev *domain.ReviewResult) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rev); err != nil {
		return nil, fmt.Errorf("レビューのエンコードに失敗しました: %w", err)
	}
	return buf.Bytes(), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func truncateTitle(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
