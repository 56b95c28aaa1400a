package domain

// ImagePart は生成・レビューのリクエストに添付するインライン画像です。
// Data は生のバイト列で、Base64エンコードはワイヤ層で行います。
type ImagePart struct {
	MIMEType string
	Data     []byte
	Label    string // ログ用の識別子（キャラクターキーやファイル名）
}
