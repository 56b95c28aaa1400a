package sefaria

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// DefaultBaseURL は Sefaria 公開APIのベースURLです。
const DefaultBaseURL = "https://www.sefaria.org/api"

// HTTPDoer はHTTPリクエストを実行する最小のインターフェースです。
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Parasha は今週の読誦箇所（パラシャ）のメタデータです。
type Parasha struct {
	TitleEn     string `json:"title_en"`
	TitleHe     string `json:"title_he"`
	Ref         string `json:"ref"`
	Description string `json:"description,omitempty"`
	Aliyot      int    `json:"aliyot,omitempty"`
	Book        string `json:"book"`
}

// ParashaText は参照範囲の本文です。ヘブライ語と英訳の両方を持ちます。
type ParashaText struct {
	Ref     string
	Hebrew  []string
	English []string
}

// Client は Sefaria API のクライアントです。
type Client struct {
	httpClient HTTPDoer
	baseURL    string
	logger     *slog.Logger
}

// Option は Client の設定変更関数です。
type Option func(*Client)

// WithBaseURL はAPIのベースURLを差し替えます（主にテスト用）。
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// NewClient は Sefaria クライアントを生成します。
func NewClient(httpClient HTTPDoer, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: httpClient,
		baseURL:    DefaultBaseURL,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// calendarsResponse は /api/calendars の必要な部分だけを写した構造です。
type calendarsResponse struct {
	CalendarItems []calendarItem `json:"calendar_items"`
}

type calendarItem struct {
	Title        localizedText `json:"title"`
	DisplayValue localizedText `json:"displayValue"`
	Ref          string        `json:"ref"`
	Description  localizedText `json:"description"`
	ExtraDetails struct {
		Aliyot []string `json:"aliyot"`
	} `json:"extraDetails"`
}

type localizedText struct {
	En string `json:"en"`
	He string `json:"he"`
}

// FetchCurrentParasha は今週のパラシャをカレンダーAPIから取得します。
// APIが落ちている場合でもテーマ表は静的なので、呼び出し側は
// パラシャ名さえあれば BorderColor / Theme で枠色を決められます。
func (c *Client) FetchCurrentParasha(ctx context.Context) (*Parasha, error) {
	var payload calendarsResponse
	if err := c.getJSON(ctx, c.baseURL+"/calendars", &payload); err != nil {
		return nil, fmt.Errorf("カレンダーの取得に失敗しました: %w", err)
	}

	for _, item := range payload.CalendarItems {
		if item.Title.En != "Parashat Hashavua" {
			continue
		}
		p := &Parasha{
			TitleEn:     item.DisplayValue.En,
			TitleHe:     item.DisplayValue.He,
			Ref:         item.Ref,
			Description: item.Description.En,
			Aliyot:      len(item.ExtraDetails.Aliyot),
			Book:        bookOf(item.Ref),
		}
		c.logger.Info("今週のパラシャを取得しました",
			"parasha", p.TitleEn, "ref", p.Ref, "book", p.Book)
		return p, nil
	}
	return nil, fmt.Errorf("カレンダーに Parashat Hashavua が見つかりません")
}

// textsResponse は /api/texts/{ref} の必要な部分です。本文は章立ての
// 都合で文字列にも文字列配列にもなるため、柔軟にデコードします。
type textsResponse struct {
	Ref  string          `json:"ref"`
	He   json.RawMessage `json:"he"`
	Text json.RawMessage `json:"text"`
}

// FetchParashaText は参照範囲の本文（ヘブライ語と英訳）を取得します。
func (c *Client) FetchParashaText(ctx context.Context, ref string) (*ParashaText, error) {
	endpoint := c.baseURL + "/texts/" + url.PathEscape(ref)
	var payload textsResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("本文の取得に失敗しました (ref=%s): %w", ref, err)
	}

	text := &ParashaText{Ref: payload.Ref}
	if text.Ref == "" {
		text.Ref = ref
	}
	text.Hebrew = flattenVerses(payload.He)
	text.English = flattenVerses(payload.Text)
	return text, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("APIへの接続に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスの読み取りに失敗しました: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("APIがエラーを返しました (status=%d)", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("レスポンスの解析に失敗しました: %w", err)
	}
	return nil
}

// bookOf は "Exodus 18:1-20:23" のような参照から書名を取り出します。
func bookOf(ref string) string {
	fields := strings.Fields(ref)
	if len(fields) == 0 {
		return ""
	}
	// "Chayei Sara" のような複数語の書名は聖書参照には現れないため、
	// 先頭の語が数字でなければそれが書名になります。
	return fields[0]
}

// flattenVerses は章ごとにネストした本文を節の平坦なリストにします。
// Sefaria は範囲が1章に収まるときは []string、複数章なら [][]string を
// 返すので、両方を受け付けます。
func flattenVerses(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var flat []string
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat
	}
	var nested [][]string
	if err := json.Unmarshal(raw, &nested); err == nil {
		var out []string
		for _, chapter := range nested {
			out = append(out, chapter...)
		}
		return out
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}
