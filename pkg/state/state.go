package state

import (
	"slices"
	"time"
)

// パイプラインのステージ名です。completed_stages にはこの順で積まれます。
const (
	StageTemplate   = "template"
	StageReferences = "references"
	StageImages     = "images"
	StageOverlay    = "overlay"
	StagePublish    = "publish"
	StageComplete   = "complete"
)

// 人間の承認を要するチェックポイント名です。
const (
	CheckpointStructure = "structure" // デッキ構成の確定後
	CheckpointIdentity  = "identity"  // キャラクター参照シートの確定後
	CheckpointFinal     = "final"     // オーバーレイ済み最終画像の確定後
)

// チェックポイントの状態です。pending → approved の一方向にしか進みません。
const (
	CheckpointPending  = "pending"
	CheckpointApproved = "approved"
)

// Checkpoint は承認ゲート1つ分の記録です。
type Checkpoint struct {
	Status     string `yaml:"status" json:"status"`
	ApprovedAt string `yaml:"approved_at,omitempty" json:"approved_at,omitempty"`
	Notes      string `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// PipelineState はデッキ1つ分のパイプライン進行状況です。
// decks/<slug>/pipeline/state.yaml に保存されます。
// 書き込みは単一プロセス前提で、ロックは行いません。
type PipelineState struct {
	Parasha          string                `yaml:"parasha" json:"parasha"`
	ContentType      string                `yaml:"content_type" json:"content_type"`
	CurrentStage     string                `yaml:"current_stage" json:"current_stage"`
	CompletedStages  []string              `yaml:"completed_stages" json:"completed_stages"`
	Checkpoints      map[string]Checkpoint `yaml:"checkpoints" json:"checkpoints"`
	NeedsHumanReview []string              `yaml:"needs_human_review,omitempty" json:"needs_human_review,omitempty"`
	CreatedAt        string                `yaml:"created_at" json:"created_at"`
	UpdatedAt        string                `yaml:"updated_at" json:"updated_at"`
}

// NewPipelineState はデッキ作成直後の初期状態を返します。
func NewPipelineState(parasha string) *PipelineState {
	now := time.Now().Format(time.RFC3339)
	return &PipelineState{
		Parasha:      parasha,
		ContentType:  "parasha",
		CurrentStage: StageTemplate,
		Checkpoints:  map[string]Checkpoint{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// StageCompleted は指定ステージが完了済みかを返します。
func (s *PipelineState) StageCompleted(stage string) bool {
	return slices.Contains(s.CompletedStages, stage)
}

// PendingCheckpoints は承認待ちのチェックポイント名を辞書順で返します。
func (s *PipelineState) PendingCheckpoints() []string {
	var pending []string
	for name, cp := range s.Checkpoints {
		if cp.Status == CheckpointPending {
			pending = append(pending, name)
		}
	}
	slices.Sort(pending)
	return pending
}

// Status は人間向けの進行状況ラベルを返します。
// complete → 承認待ち → 要レビュー → 進行中 の優先順で判定します。
func (s *PipelineState) Status() string {
	switch {
	case s.CurrentStage == StageComplete:
		return "complete"
	case len(s.PendingCheckpoints()) > 0:
		return "awaiting_approval"
	case len(s.NeedsHumanReview) > 0:
		return "needs_review"
	default:
		return "in_progress"
	}
}
