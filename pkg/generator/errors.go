package generator

import "fmt"

// FailureKind は生成失敗の分類です。オーケストレータはどの種別も
// リトライ対象として同じに扱いますが、ログと統計のために区別します。
type FailureKind string

const (
	// KindTransport はHTTPレベルの失敗（接続断、タイムアウト、非2xx）です。
	KindTransport FailureKind = "transport"
	// KindDecode はレスポンス本体のデコード失敗（JSON破損、Base64破損）です。
	KindDecode FailureKind = "decode"
	// KindEmptyResponse は正常応答だが画像パーツが含まれない場合です。
	KindEmptyResponse FailureKind = "empty_response"
)

// GenerationError は1回の生成試行の失敗を種別付きで表します。
type GenerationError struct {
	Kind       FailureKind
	StatusCode int // KindTransport でHTTP応答があった場合のみ非ゼロ
	Err        error
}

func (e *GenerationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("画像生成に失敗しました (%s, status=%d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("画像生成に失敗しました (%s): %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func newGenerationError(kind FailureKind, err error) *GenerationError {
	return &GenerationError{Kind: kind, Err: err}
}
