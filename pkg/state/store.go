package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNoState はパイプライン状態がまだ存在しないことを示します。
	ErrNoState = errors.New("パイプライン状態が見つかりません")
	// ErrNotPending は承認対象のチェックポイントが pending でないことを示します。
	ErrNotPending = errors.New("チェックポイントが承認待ちではありません")
)

// Store はデッキディレクトリ配下の pipeline/state.yaml を読み書きします。
// 旧形式の state.json も読み込みだけはサポートし、次回保存時にYAMLへ
// 移行します。
type Store struct {
	deckDir string
}

// NewStore はデッキディレクトリを起点にストアを初期化します。
func NewStore(deckDir string) *Store {
	return &Store{deckDir: deckDir}
}

func (s *Store) yamlPath() string {
	return filepath.Join(s.deckDir, "pipeline", "state.yaml")
}

func (s *Store) jsonPath() string {
	return filepath.Join(s.deckDir, "pipeline", "state.json")
}

// Load はパイプライン状態を読み込みます。YAMLを優先し、なければJSONに
// フォールバックします。どちらもなければ ErrNoState です。
func (s *Store) Load() (*PipelineState, error) {
	if data, err := os.ReadFile(s.yamlPath()); err == nil {
		var st PipelineState
		if err := yaml.Unmarshal(data, &st); err != nil {
			return nil, fmt.Errorf("state.yaml のデコードに失敗しました: %w", err)
		}
		normalize(&st)
		return &st, nil
	}

	if data, err := os.ReadFile(s.jsonPath()); err == nil {
		var st PipelineState
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, fmt.Errorf("state.json のデコードに失敗しました: %w", err)
		}
		normalize(&st)
		return &st, nil
	}

	return nil, ErrNoState
}

// Save は状態をYAMLで書き戻し、updated_at を刻印します。
func (s *Store) Save(st *PipelineState) error {
	st.UpdatedAt = time.Now().Format(time.RFC3339)

	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("状態のエンコードに失敗しました: %w", err)
	}

	dir := filepath.Dir(s.yamlPath())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("パイプラインディレクトリの作成に失敗しました: %w", err)
	}
	if err := os.WriteFile(s.yamlPath(), data, 0o644); err != nil {
		return fmt.Errorf("state.yaml の書き込みに失敗しました: %w", err)
	}
	return nil
}

// CompleteStage はステージを完了として記録します。冪等で、二重記録は
// しません。current_stage は次に進むべきステージ名に更新します。
func (s *Store) CompleteStage(stage, nextStage string) error {
	st, err := s.Load()
	if err != nil {
		return err
	}
	if !slices.Contains(st.CompletedStages, stage) {
		st.CompletedStages = append(st.CompletedStages, stage)
	}
	st.CurrentStage = nextStage
	return s.Save(st)
}

// OpenCheckpoint はチェックポイントを承認待ちとして開きます。
// 既に承認済みのチェックポイントを pending に戻すことはありません。
func (s *Store) OpenCheckpoint(name string) error {
	st, err := s.Load()
	if err != nil {
		return err
	}
	if cp, ok := st.Checkpoints[name]; ok && cp.Status == CheckpointApproved {
		return nil
	}
	st.Checkpoints[name] = Checkpoint{Status: CheckpointPending}
	return s.Save(st)
}

// ApproveCheckpoint は承認待ちのチェックポイントを承認します。
// pending 以外の状態（未作成・承認済み）からの承認は ErrNotPending です。
// 承認は一方向で、取り消す操作はありません。
func (s *Store) ApproveCheckpoint(name, notes string) error {
	st, err := s.Load()
	if err != nil {
		return err
	}

	cp, ok := st.Checkpoints[name]
	if !ok || cp.Status != CheckpointPending {
		return fmt.Errorf("%w: '%s' (status: %s)", ErrNotPending, name, checkpointStatus(cp, ok))
	}

	st.Checkpoints[name] = Checkpoint{
		Status:     CheckpointApproved,
		ApprovedAt: time.Now().Format(time.RFC3339),
		Notes:      notes,
	}
	return s.Save(st)
}

// FlagForReview はカードを要人間レビュー一覧に追加します。重複は除きます。
func (s *Store) FlagForReview(cardID string) error {
	st, err := s.Load()
	if err != nil {
		return err
	}
	if !slices.Contains(st.NeedsHumanReview, cardID) {
		st.NeedsHumanReview = append(st.NeedsHumanReview, cardID)
	}
	return s.Save(st)
}

func normalize(st *PipelineState) {
	if st.Checkpoints == nil {
		st.Checkpoints = map[string]Checkpoint{}
	}
	if st.ContentType == "" {
		st.ContentType = "parasha"
	}
}

func checkpointStatus(cp Checkpoint, exists bool) string {
	if !exists {
		return "none"
	}
	return cp.Status
}
