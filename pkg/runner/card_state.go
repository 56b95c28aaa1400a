package runner

import "fmt"

// CardState はカード1枚の生成ライフサイクルの状態です。
type CardState string

const (
	CardPending    CardState = "PENDING"
	CardGenerating CardState = "GENERATING"
	CardReviewing  CardState = "REVIEWING"
	CardAccepted   CardState = "ACCEPTED"
	CardRetrying   CardState = "RETRYING"
	CardExhausted  CardState = "EXHAUSTED"
)

// CardEvent は状態遷移を引き起こす出来事です。
type CardEvent string

const (
	// EventGenerate は生成試行の開始です。
	EventGenerate CardEvent = "generate"
	// EventImageReady は画像が得られ、レビューに進むことを示します。
	EventImageReady CardEvent = "image_ready"
	// EventAccept は受理です。レビュー合格、レビュー対象外、または
	// 打ち切り後の最終再生成の強制受理がこれに当たります。
	EventAccept CardEvent = "accept"
	// EventRetry は失敗（生成失敗または採点不合格）で、試行予算が
	// 残っている場合です。
	EventRetry CardEvent = "retry"
	// EventExhaust は失敗で試行予算を使い切った場合です。
	EventExhaust CardEvent = "exhaust"
)

// nextCardState は純粋な状態遷移関数です。副作用を持たず、
// 不正な遷移にはエラーを返します。試行回数の管理や予算判定は
// 呼び出し側の責務で、この関数は形だけを検査します。
func nextCardState(s CardState, ev CardEvent) (CardState, error) {
	switch ev {
	case EventGenerate:
		if s == CardPending || s == CardRetrying {
			return CardGenerating, nil
		}
	case EventImageReady:
		if s == CardGenerating {
			return CardReviewing, nil
		}
	case EventAccept:
		if s == CardGenerating || s == CardReviewing || s == CardExhausted {
			return CardAccepted, nil
		}
	case EventRetry:
		if s == CardGenerating || s == CardReviewing {
			return CardRetrying, nil
		}
	case EventExhaust:
		if s == CardGenerating || s == CardReviewing {
			return CardExhausted, nil
		}
	default:
		return s, fmt.Errorf("未知のイベントです: %q", ev)
	}
	return s, fmt.Errorf("不正な遷移です: %s で %s は発生しません", s, ev)
}

// Terminal は終端状態（これ以上遷移しない状態）かどうかを返します。
// EXHAUSTED は最終再生成を経て ACCEPTED に進むため終端ではありません。
func (s CardState) Terminal() bool {
	return s == CardAccepted
}
