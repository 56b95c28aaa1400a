package runner

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/shouni/go-parasha-kit/pkg/asset"
	"github.com/shouni/go-parasha-kit/pkg/domain"
	"github.com/shouni/go-parasha-kit/pkg/state"
)

type fakeFrontRenderer struct {
	calls atomic.Int32
	err   error
}

func (f *fakeFrontRenderer) RenderFront(img image.Image, _ domain.Card, _ string) (image.Image, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return img, nil
}

func writeCardImage(t *testing.T, deckDir, cardID string) {
	t.Helper()
	imagesDir := filepath.Join(deckDir, asset.DefaultImageDir)
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	img := image.NewNRGBA(image.Rect(0, 0, 10, 14))
	img.SetNRGBA(5, 7, color.NRGBA{R: 200, A: 255})

	f, err := os.Create(filepath.Join(imagesDir, cardID+".png"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestOverlayRunner_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("画像のあるカードは描画されてcardsに保存されるのだ", func(t *testing.T) {
		deckPath, deckDir := writeTestDeck(t)
		writeCardImage(t, deckDir, "card_01")
		renderer := &fakeFrontRenderer{}

		summary, err := NewOverlayRunner(renderer, testLogger()).Run(ctx, deckPath, OverlayOptions{})
		if err != nil {
			t.Fatalf("実行失敗なのだ: %v", err)
		}
		if summary.Succeeded != 1 || summary.Skipped != 0 || summary.Failed != 0 {
			t.Errorf("集計が違うのだ: %+v", summary)
		}
		if renderer.calls.Load() != 1 {
			t.Errorf("描画回数 = %d", renderer.calls.Load())
		}
		if !fileExists(filepath.Join(deckDir, asset.CardsDirName, "card_01.png")) {
			t.Error("出力ファイルが無いのだ")
		}
	})

	t.Run("画像の無いカードはスキップになるのだ", func(t *testing.T) {
		deckPath, _ := writeTestDeck(t)
		renderer := &fakeFrontRenderer{}

		summary, err := NewOverlayRunner(renderer, testLogger()).Run(ctx, deckPath, OverlayOptions{})
		if err != nil {
			t.Fatalf("実行失敗なのだ: %v", err)
		}
		if summary.Skipped != 1 || summary.Succeeded != 0 {
			t.Errorf("集計が違うのだ: %+v", summary)
		}
		if renderer.calls.Load() != 0 {
			t.Error("スキップのはずが描画されているのだ")
		}
	})

	t.Run("描画失敗はカード単位のFailedに数えられるのだ", func(t *testing.T) {
		deckPath, deckDir := writeTestDeck(t)
		writeCardImage(t, deckDir, "card_01")
		renderer := &fakeFrontRenderer{err: fmt.Errorf("フォントが無いのだ")}

		summary, err := NewOverlayRunner(renderer, testLogger()).Run(ctx, deckPath, OverlayOptions{})
		if err == nil {
			t.Fatal("全滅時はエラーを期待したのだ")
		}
		if summary == nil || summary.Failed != 1 {
			t.Errorf("集計が違うのだ: %+v", summary)
		}
	})

	t.Run("全カード処理の成功でoverlayステージが進むのだ", func(t *testing.T) {
		deckPath, deckDir := writeTestDeck(t)
		writeCardImage(t, deckDir, "card_01")

		store := state.NewStore(deckDir)
		st := state.NewPipelineState("Yitro")
		st.CurrentStage = state.StageOverlay
		if err := store.Save(st); err != nil {
			t.Fatal(err)
		}

		if _, err := NewOverlayRunner(&fakeFrontRenderer{}, testLogger()).Run(ctx, deckPath, OverlayOptions{}); err != nil {
			t.Fatalf("実行失敗なのだ: %v", err)
		}

		loaded, err := store.Load()
		if err != nil {
			t.Fatal(err)
		}
		if !loaded.StageCompleted(state.StageOverlay) {
			t.Error("overlay ステージが完了していないのだ")
		}
		if loaded.CurrentStage != state.StagePublish {
			t.Errorf("CurrentStage = %q", loaded.CurrentStage)
		}
		pending := loaded.PendingCheckpoints()
		if len(pending) != 1 || pending[0] != state.CheckpointFinal {
			t.Errorf("PendingCheckpoints = %v", pending)
		}
	})

	t.Run("単一カード指定ではステージを進めないのだ", func(t *testing.T) {
		deckPath, deckDir := writeTestDeck(t)
		writeCardImage(t, deckDir, "card_01")

		store := state.NewStore(deckDir)
		if err := store.Save(state.NewPipelineState("Yitro")); err != nil {
			t.Fatal(err)
		}

		if _, err := NewOverlayRunner(&fakeFrontRenderer{}, testLogger()).Run(ctx, deckPath, OverlayOptions{CardID: "card_01"}); err != nil {
			t.Fatalf("実行失敗なのだ: %v", err)
		}

		loaded, err := store.Load()
		if err != nil {
			t.Fatal(err)
		}
		if loaded.StageCompleted(state.StageOverlay) {
			t.Error("単一カード指定なのにステージが進んでいるのだ")
		}
	})
}
