package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/time/rate"

	"github.com/shouni/go-parasha-kit/pkg/asset"
	"github.com/shouni/go-parasha-kit/pkg/domain"
	"github.com/shouni/go-parasha-kit/pkg/state"
)

func newTestReferenceRunner(gen ImageGenerator) *ReferenceRunner {
	chars := domain.CharactersMap{
		"moses": {Key: "moses", NameEn: "Moses", VisualTraits: []string{"long white beard", "wooden staff"}},
		"yitro": {Key: "yitro", NameEn: "Yitro", VisualTraits: []string{"desert robes"}},
	}
	return NewReferenceRunner(gen, chars, rate.NewLimiter(rate.Inf, 1), testLogger())
}

func TestReferenceRunner_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("キャラクター1人につき3種のシートが生成されるのだ", func(t *testing.T) {
		deckPath, deckDir := writeTestDeck(t)
		gen := &fakeImageGen{}

		if err := newTestReferenceRunner(gen).Run(ctx, deckPath, []string{"moses"}); err != nil {
			t.Fatalf("実行失敗なのだ: %v", err)
		}
		if gen.calls != 3 {
			t.Errorf("生成回数 = %d, want 3", gen.calls)
		}
		for _, name := range []string{"moses_identity.png", "moses_expressions.png", "moses_turnaround.png"} {
			if !fileExists(filepath.Join(deckDir, asset.ReferencesDirName, name)) {
				t.Errorf("シート %s が無いのだ", name)
			}
		}

		manifest, err := asset.LoadManifest(deckDir)
		if err != nil {
			t.Fatal(err)
		}
		if manifest["moses"].Identity != "moses_identity.png" {
			t.Errorf("マニフェスト = %+v", manifest)
		}
	})

	t.Run("キー省略時はデッキのプロンプトに登場する全員が対象なのだ", func(t *testing.T) {
		deckPath, _ := writeTestDeck(t) // プロンプトに Moses と Yitro の両方が登場するのだ
		gen := &fakeImageGen{}

		if err := newTestReferenceRunner(gen).Run(ctx, deckPath, nil); err != nil {
			t.Fatalf("実行失敗なのだ: %v", err)
		}
		if gen.calls != 6 {
			t.Errorf("生成回数 = %d, want 6 (2人 × 3シート)", gen.calls)
		}
	})

	t.Run("既存シートはスキップされるがマニフェストには載るのだ", func(t *testing.T) {
		deckPath, deckDir := writeTestDeck(t)
		refsDir := filepath.Join(deckDir, asset.ReferencesDirName)
		if err := os.MkdirAll(refsDir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(refsDir, "moses_identity.png"), []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}

		gen := &fakeImageGen{}
		if err := newTestReferenceRunner(gen).Run(ctx, deckPath, []string{"moses"}); err != nil {
			t.Fatalf("実行失敗なのだ: %v", err)
		}
		if gen.calls != 2 {
			t.Errorf("生成回数 = %d, want 2 (identity はスキップ)", gen.calls)
		}

		manifest, err := asset.LoadManifest(deckDir)
		if err != nil {
			t.Fatal(err)
		}
		if manifest["moses"].Identity != "moses_identity.png" {
			t.Errorf("マニフェスト = %+v", manifest)
		}
	})

	t.Run("identityシートの失敗は実行全体のエラーになるのだ", func(t *testing.T) {
		deckPath, _ := writeTestDeck(t)
		gen := &fakeImageGen{scripts: []error{fmt.Errorf("接続できません")}}

		if err := newTestReferenceRunner(gen).Run(ctx, deckPath, []string{"moses"}); err == nil {
			t.Fatal("エラーを期待したが nil だったのだ")
		}
	})

	t.Run("補助シートの失敗は警告止まりで続行するのだ", func(t *testing.T) {
		deckPath, deckDir := writeTestDeck(t)
		// 2回目 (expressions) だけ失敗させるのだ
		gen := &fakeImageGen{scripts: []error{nil, fmt.Errorf("接続できません")}}

		if err := newTestReferenceRunner(gen).Run(ctx, deckPath, []string{"moses"}); err != nil {
			t.Fatalf("実行失敗なのだ: %v", err)
		}
		if !fileExists(filepath.Join(deckDir, asset.ReferencesDirName, "moses_turnaround.png")) {
			t.Error("3番目のシートまで到達していないのだ")
		}
	})

	t.Run("完走すると references ステージが完了して identity 承認待ちになるのだ", func(t *testing.T) {
		deckPath, deckDir := writeTestDeck(t)
		store := state.NewStore(deckDir)
		st := state.NewPipelineState("Yitro")
		st.CurrentStage = state.StageReferences
		st.CompletedStages = []string{state.StageTemplate}
		if err := store.Save(st); err != nil {
			t.Fatal(err)
		}

		if err := newTestReferenceRunner(&fakeImageGen{}).Run(ctx, deckPath, []string{"moses"}); err != nil {
			t.Fatalf("実行失敗なのだ: %v", err)
		}

		got, err := store.Load()
		if err != nil {
			t.Fatal(err)
		}
		if !got.StageCompleted(state.StageReferences) {
			t.Error("references ステージが完了していないのだ")
		}
		if got.CurrentStage != state.StageImages {
			t.Errorf("CurrentStage = %q, want %q", got.CurrentStage, state.StageImages)
		}
		if pending := got.PendingCheckpoints(); len(pending) != 1 || pending[0] != state.CheckpointIdentity {
			t.Errorf("承認待ち = %v, want [identity]", pending)
		}
	})

	t.Run("パイプライン管理外のデッキでもエラーにならないのだ", func(t *testing.T) {
		deckPath, deckDir := writeTestDeck(t)
		if err := newTestReferenceRunner(&fakeImageGen{}).Run(ctx, deckPath, []string{"moses"}); err != nil {
			t.Fatalf("実行失敗なのだ: %v", err)
		}
		if _, err := state.NewStore(deckDir).Load(); !errors.Is(err, state.ErrNoState) {
			t.Errorf("状態は作られないはずなのだ: %v", err)
		}
	})

	t.Run("未知のキャラクターキーはエラーになるのだ", func(t *testing.T) {
		deckPath, _ := writeTestDeck(t)
		if err := newTestReferenceRunner(&fakeImageGen{}).Run(ctx, deckPath, []string{"pharaoh"}); err == nil {
			t.Fatal("エラーを期待したが nil だったのだ")
		}
	})
}
