package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir())
}

func TestStore_Load_Save(t *testing.T) {
	t.Run("状態がなければ ErrNoState なのだ", func(t *testing.T) {
		if _, err := newTestStore(t).Load(); !errors.Is(err, ErrNoState) {
			t.Errorf("ErrNoState が期待されるのだ: %v", err)
		}
	})

	t.Run("保存と読み込みで往復するのだ", func(t *testing.T) {
		store := newTestStore(t)
		st := NewPipelineState("Yitro")

		if err := store.Save(st); err != nil {
			t.Fatalf("保存失敗なのだ: %v", err)
		}
		if st.UpdatedAt == "" {
			t.Error("updated_at が刻印されていないのだ")
		}

		loaded, err := store.Load()
		if err != nil {
			t.Fatalf("読み込み失敗なのだ: %v", err)
		}
		if loaded.Parasha != "Yitro" || loaded.CurrentStage != StageTemplate {
			t.Errorf("内容が往復しないのだ: %+v", loaded)
		}
	})

	t.Run("旧JSON形式も読めるのだ", func(t *testing.T) {
		dir := t.TempDir()
		pipelineDir := filepath.Join(dir, "pipeline")
		if err := os.MkdirAll(pipelineDir, 0o755); err != nil {
			t.Fatalf("ディレクトリ作成失敗なのだ: %v", err)
		}
		legacy := `{"parasha": "Purim", "current_stage": "images", "completed_stages": ["template", "references"]}`
		if err := os.WriteFile(filepath.Join(pipelineDir, "state.json"), []byte(legacy), 0o644); err != nil {
			t.Fatalf("書き込み失敗なのだ: %v", err)
		}

		store := NewStore(dir)
		st, err := store.Load()
		if err != nil {
			t.Fatalf("JSON読み込み失敗なのだ: %v", err)
		}
		if st.Parasha != "Purim" || !st.StageCompleted(StageReferences) {
			t.Errorf("旧形式の内容が読めていないのだ: %+v", st)
		}

		// 保存するとYAMLへ移行すること
		if err := store.Save(st); err != nil {
			t.Fatalf("保存失敗なのだ: %v", err)
		}
		if _, err := os.Stat(filepath.Join(pipelineDir, "state.yaml")); err != nil {
			t.Error("YAMLへ移行されていないのだ")
		}
	})
}

func TestStore_CompleteStage(t *testing.T) {
	store := newTestStore(t)
	if err := store.Save(NewPipelineState("Yitro")); err != nil {
		t.Fatalf("初期化失敗なのだ: %v", err)
	}

	t.Run("完了ステージが積まれ現在ステージが進むのだ", func(t *testing.T) {
		if err := store.CompleteStage(StageTemplate, StageReferences); err != nil {
			t.Fatalf("失敗なのだ: %v", err)
		}
		st, _ := store.Load()
		if !st.StageCompleted(StageTemplate) || st.CurrentStage != StageReferences {
			t.Errorf("状態が進んでいないのだ: %+v", st)
		}
	})

	t.Run("二重完了は冪等なのだ", func(t *testing.T) {
		_ = store.CompleteStage(StageTemplate, StageReferences)
		_ = store.CompleteStage(StageTemplate, StageReferences)
		st, _ := store.Load()

		count := 0
		for _, s := range st.CompletedStages {
			if s == StageTemplate {
				count++
			}
		}
		if count != 1 {
			t.Errorf("重複記録されたのだ: %v", st.CompletedStages)
		}
	})
}

func TestStore_ApproveCheckpoint(t *testing.T) {
	setup := func(t *testing.T) *Store {
		store := newTestStore(t)
		if err := store.Save(NewPipelineState("Yitro")); err != nil {
			t.Fatalf("初期化失敗なのだ: %v", err)
		}
		return store
	}

	t.Run("pending は承認できるのだ", func(t *testing.T) {
		store := setup(t)
		if err := store.OpenCheckpoint(CheckpointStructure); err != nil {
			t.Fatalf("オープン失敗なのだ: %v", err)
		}
		if err := store.ApproveCheckpoint(CheckpointStructure, "looks good"); err != nil {
			t.Fatalf("承認失敗なのだ: %v", err)
		}

		st, _ := store.Load()
		cp := st.Checkpoints[CheckpointStructure]
		if cp.Status != CheckpointApproved || cp.ApprovedAt == "" || cp.Notes != "looks good" {
			t.Errorf("承認記録が不完全なのだ: %+v", cp)
		}
	})

	t.Run("未作成のチェックポイントは承認できないのだ", func(t *testing.T) {
		store := setup(t)
		if err := store.ApproveCheckpoint(CheckpointFinal, ""); !errors.Is(err, ErrNotPending) {
			t.Errorf("ErrNotPending が期待されるのだ: %v", err)
		}
	})

	t.Run("承認は一方向で二重承認はエラーなのだ", func(t *testing.T) {
		store := setup(t)
		_ = store.OpenCheckpoint(CheckpointIdentity)
		if err := store.ApproveCheckpoint(CheckpointIdentity, ""); err != nil {
			t.Fatalf("1回目の承認失敗なのだ: %v", err)
		}
		if err := store.ApproveCheckpoint(CheckpointIdentity, ""); !errors.Is(err, ErrNotPending) {
			t.Errorf("二重承認が通ったのだ: %v", err)
		}
	})

	t.Run("承認済みを再オープンしても pending には戻らないのだ", func(t *testing.T) {
		store := setup(t)
		_ = store.OpenCheckpoint(CheckpointIdentity)
		_ = store.ApproveCheckpoint(CheckpointIdentity, "")
		if err := store.OpenCheckpoint(CheckpointIdentity); err != nil {
			t.Fatalf("再オープン失敗なのだ: %v", err)
		}
		st, _ := store.Load()
		if st.Checkpoints[CheckpointIdentity].Status != CheckpointApproved {
			t.Error("承認が巻き戻ったのだ")
		}
	})
}

func TestStore_FlagForReview(t *testing.T) {
	store := newTestStore(t)
	if err := store.Save(NewPipelineState("Yitro")); err != nil {
		t.Fatalf("初期化失敗なのだ: %v", err)
	}

	t.Run("要レビュー一覧に追加され重複しないのだ", func(t *testing.T) {
		_ = store.FlagForReview("card_03")
		_ = store.FlagForReview("card_03")
		_ = store.FlagForReview("card_05")

		st, _ := store.Load()
		if len(st.NeedsHumanReview) != 2 {
			t.Errorf("2件のはずなのだ: %v", st.NeedsHumanReview)
		}
	})
}

func TestPipelineState_Status(t *testing.T) {
	tests := []struct {
		name string
		st   *PipelineState
		want string
	}{
		{
			name: "complete ステージなら complete なのだ",
			st:   &PipelineState{CurrentStage: StageComplete},
			want: "complete",
		},
		{
			name: "pending チェックポイントがあれば承認待ちなのだ",
			st: &PipelineState{
				CurrentStage: StageImages,
				Checkpoints:  map[string]Checkpoint{CheckpointStructure: {Status: CheckpointPending}},
			},
			want: "awaiting_approval",
		},
		{
			name: "要レビューのカードがあれば needs_review なのだ",
			st: &PipelineState{
				CurrentStage:     StageImages,
				NeedsHumanReview: []string{"card_03"},
			},
			want: "needs_review",
		},
		{
			name: "それ以外は進行中なのだ",
			st:   &PipelineState{CurrentStage: StageImages},
			want: "in_progress",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.st.Status(); got != tt.want {
				t.Errorf("期待 %q, 実際 %q", tt.want, got)
			}
		})
	}
}
