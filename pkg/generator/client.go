package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shouni/go-parasha-kit/pkg/domain"
)

const (
	// DefaultBaseURL は generativelanguage API のベースURLです。
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultImageModel はカード画像生成に使う既定モデルです。
	// imagen や flash ではなく常にこのモデルを使います（運用実績による固定）。
	DefaultImageModel = "nano-banana-pro-preview"
	// DefaultVisionModel はレビュー（画像入力→テキスト出力）に使うモデルです。
	DefaultVisionModel = "gemini-2.5-flash"

	// AspectRatioCard はカード表面の縦長比率です。
	AspectRatioCard = "3:4"
	// AspectRatioIdentity はキャラクター参照シートの横長比率です。
	AspectRatioIdentity = "16:9"
)

// HTTPDoer はHTTPリクエストを実行する最小のインターフェースです。
// 本番では go-http-kit のクライアントを、テストではフェイクを渡します。
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ImageRequest は1回の画像生成試行の入力です。
type ImageRequest struct {
	Prompt      string
	AspectRatio string             // 空なら AspectRatioCard
	References  []domain.ImagePart // キャラクター参照画像（先頭に添付されます）
	Preamble    string             // 参照画像がある場合にパーツ列の先頭へ置く指示文
	Bridge      string             // 参照画像と本体プロンプトの間の接続文
}

// ImageResult は生成された画像データです。
type ImageResult struct {
	Data     []byte
	MIMEType string
}

// VisionRequest はレビュー用のマルチモーダル入力です。
type VisionRequest struct {
	Prompt string
	Images []domain.ImagePart
}

// Client は generativelanguage REST API の薄いクライアントです。
// リトライは行いません。失敗はすべて *GenerationError で返し、
// 再試行の判断は呼び出し側（オーケストレータ）に委ねます。
type Client struct {
	http        HTTPDoer
	logger      *slog.Logger
	apiKey      string
	baseURL     string
	imageModel  string
	visionModel string
}

// Option は Client の構成オプションです。
type Option func(*Client)

// WithBaseURL はAPIのベースURLを差し替えます（テスト用）。
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithImageModel は画像生成モデルを差し替えます。
func WithImageModel(model string) Option {
	return func(c *Client) { c.imageModel = model }
}

// WithVisionModel はレビュー用モデルを差し替えます。
func WithVisionModel(model string) Option {
	return func(c *Client) { c.visionModel = model }
}

// NewClient は生成クライアントを初期化します。
func NewClient(httpClient HTTPDoer, apiKey string, logger *slog.Logger, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("APIキーが空です")
	}
	c := &Client{
		http:        httpClient,
		logger:      logger,
		apiKey:      apiKey,
		baseURL:     DefaultBaseURL,
		imageModel:  DefaultImageModel,
		visionModel: DefaultVisionModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GenerateImage は1回だけ画像生成を試みます。
// 参照画像があればプリアンブル → 参照パーツ列 → 接続文+プロンプトの順で
// パーツを並べます。応答に画像が含まれなければ KindEmptyResponse です。
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	aspect := req.AspectRatio
	if aspect == "" {
		aspect = AspectRatioCard
	}

	var parts []wirePart
	if len(req.References) > 0 {
		parts = append(parts, wirePart{Text: req.Preamble})
		for _, ref := range req.References {
			parts = append(parts, wirePart{InlineData: &wireInlineData{
				MIMEType: ref.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(ref.Data),
			}})
		}
		parts = append(parts, wirePart{Text: req.Bridge + req.Prompt})
	} else {
		parts = append(parts, wirePart{Text: req.Prompt})
	}

	payload := generateContentRequest{
		Contents: []wireContent{{Parts: parts}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
			ImageConfig:        &imageConfig{AspectRatio: aspect},
		},
	}

	resp, err := c.post(ctx, c.imageModel, payload)
	if err != nil {
		return nil, err
	}

	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, newGenerationError(KindDecode, fmt.Errorf("画像データのBase64デコードに失敗しました: %w", err))
			}
			mimeType := part.InlineData.MIMEType
			if mimeType == "" {
				mimeType = "image/png"
			}
			return &ImageResult{Data: data, MIMEType: mimeType}, nil
		}
	}
	return nil, newGenerationError(KindEmptyResponse, fmt.Errorf("応答に画像パーツが含まれていません"))
}

// GenerateVision は画像パーツとテキストを送り、モデルのテキスト応答を返します。
// レビュー採点（ルーブリック → スコアJSON）に使用します。
func (c *Client) GenerateVision(ctx context.Context, req VisionRequest) (string, error) {
	var parts []wirePart
	for _, img := range req.Images {
		parts = append(parts, wirePart{InlineData: &wireInlineData{
			MIMEType: img.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}
	parts = append(parts, wirePart{Text: req.Prompt})

	payload := generateContentRequest{Contents: []wireContent{{Parts: parts}}}

	resp, err := c.post(ctx, c.visionModel, payload)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return "", newGenerationError(KindEmptyResponse, fmt.Errorf("応答にテキストが含まれていません"))
	}
	return b.String(), nil
}

// post は :generateContent を呼び、デコード済みレスポンスを返します。
func (c *Client) post(ctx context.Context, model string, payload generateContentRequest) (*generateContentResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, newGenerationError(KindDecode, fmt.Errorf("リクエストのエンコードに失敗しました: %w", err))
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, newGenerationError(KindTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	// キーはURLではなくヘッダで渡します（ログへのキー漏洩防止）。
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	c.logger.Debug("generateContent を呼び出します", slog.String("model", model))

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, newGenerationError(KindTransport, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, newGenerationError(KindTransport, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		genErr := &GenerationError{
			Kind:       KindTransport,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("APIが非2xxを返しました: %s", truncate(string(respBody), 200)),
		}
		return nil, genErr
	}

	var resp generateContentResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, newGenerationError(KindDecode, fmt.Errorf("レスポンスのデコードに失敗しました: %w", err))
	}
	if resp.Error != nil {
		return nil, newGenerationError(KindTransport, fmt.Errorf("APIエラー: %s (%s)", resp.Error.Message, resp.Error.Status))
	}
	return &resp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
