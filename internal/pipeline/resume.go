package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/shouni/go-parasha-kit/internal/config"
	"github.com/shouni/go-parasha-kit/pkg/server"
	"github.com/shouni/go-parasha-kit/pkg/state"
)

// Driver は、HTTPレビューサーバーからの再生成・再開要求を
// パイプラインの実行に橋渡しするアダプタなのだ。
type Driver struct {
	cfg *config.Config
}

// NewDriver は Driver を初期化するのだ。
func NewDriver(cfg *config.Config) *Driver {
	return &Driver{cfg: cfg}
}

// RegenerateCard は指定カード1枚だけをレビュー付きで再生成するのだ。
// 1枚対象の実行なのでパイプラインのステージは進まないのだよ。
func (d *Driver) RegenerateCard(ctx context.Context, deckPath, cardID string) error {
	c := *d.cfg
	c.Options.DeckFile = deckPath
	c.Options.CardID = cardID
	c.Options.Review = true
	return ExecuteGenerate(ctx, &c)
}

// Resume は、パイプライン状態の current_stage に応じて次のステージを実行するのだ。
// 承認待ちのチェックポイントが残っている間は先へ進めないのだ。
func (d *Driver) Resume(ctx context.Context, deckName string) error {
	decksDir := d.cfg.Options.DecksDir
	if decksDir == "" {
		decksDir = config.DefaultDecksDir
	}
	deckDir := filepath.Join(decksDir, deckName)

	st, err := state.NewStore(deckDir).Load()
	if err != nil {
		return fmt.Errorf("パイプライン状態の読み込みに失敗したのだ: %w", err)
	}
	if pending := st.PendingCheckpoints(); len(pending) > 0 {
		return fmt.Errorf("承認待ちのチェックポイントがあるのだ: %v。先に approve するのだよ", pending)
	}

	c := *d.cfg
	c.Options.DeckFile = filepath.Join(deckDir, "deck.json")
	c.Options.CardID = ""

	switch st.CurrentStage {
	case state.StageTemplate:
		return fmt.Errorf("デッキ雛形がまだ仕上がっていないのだ。deck.json を埋めてから structure を承認するのだ")
	case state.StageReferences:
		return ExecuteReferences(ctx, &c, nil)
	case state.StageImages:
		return ExecuteGenerate(ctx, &c)
	case state.StageOverlay:
		return ExecuteOverlay(ctx, &c)
	case state.StagePublish:
		return ExecutePublish(ctx, &c)
	case state.StageComplete:
		slog.Info("このデッキはもう完成しているのだ！", "deck", deckName)
		return nil
	default:
		return fmt.Errorf("未知のステージなのだ: %q", st.CurrentStage)
	}
}

// ExecuteApprove は、指定デッキのチェックポイントを承認するのだ。
func ExecuteApprove(cfg *config.Config, deckName, checkpoint, notes string) error {
	decksDir := cfg.Options.DecksDir
	if decksDir == "" {
		decksDir = config.DefaultDecksDir
	}
	deckDir := filepath.Join(decksDir, deckName)

	if err := state.NewStore(deckDir).ApproveCheckpoint(checkpoint, notes); err != nil {
		return fmt.Errorf("チェックポイントの承認に失敗したのだ: %w", err)
	}

	fmt.Printf("%s %s の %s チェックポイントを承認したのだ\n",
		color.GreenString("[OK]"), deckName, checkpoint)
	return nil
}

// ExecuteStatus は、指定デッキのパイプライン進行状況を表示するのだ。
func ExecuteStatus(cfg *config.Config, deckName string) error {
	decksDir := cfg.Options.DecksDir
	if decksDir == "" {
		decksDir = config.DefaultDecksDir
	}
	deckDir := filepath.Join(decksDir, deckName)

	st, err := state.NewStore(deckDir).Load()
	if err != nil {
		return fmt.Errorf("パイプライン状態の読み込みに失敗したのだ: %w", err)
	}

	fmt.Printf("Deck:      %s (%s)\n", deckName, st.Parasha)
	fmt.Printf("Status:    %s\n", st.Status())
	fmt.Printf("Stage:     %s\n", st.CurrentStage)
	fmt.Printf("Completed: %v\n", st.CompletedStages)
	for name, cp := range st.Checkpoints {
		mark := color.YellowString("pending")
		if cp.Status == state.CheckpointApproved {
			mark = color.GreenString("approved")
		}
		fmt.Printf("  checkpoint %-10s %s\n", name, mark)
	}
	if len(st.NeedsHumanReview) > 0 {
		fmt.Printf("%s 要レビューのカードがあるのだ: %v\n",
			color.RedString("[REVIEW]"), st.NeedsHumanReview)
	}
	return nil
}

// ExecuteServe は、レビュー・承認用のHTTP APIサーバーを起動するのだ。
func ExecuteServe(ctx context.Context, cfg *config.Config) error {
	decksDir := cfg.Options.DecksDir
	if decksDir == "" {
		decksDir = config.DefaultDecksDir
	}
	port := cfg.Options.Port
	if port <= 0 {
		port = config.DefaultServerPort
	}

	driver := NewDriver(cfg)
	srv := server.New(decksDir, slog.Default(),
		server.WithRegenerator(driver),
		server.WithResumer(driver),
	)

	addr := fmt.Sprintf(":%d", port)
	slog.Info("レビューサーバーを起動するのだ！", "addr", addr, "decks_dir", decksDir)

	httpServer := &http.Server{Addr: addr, Handler: srv.Router()}
	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("サーバーの起動に失敗したのだ: %w", err)
	}
	return nil
}
