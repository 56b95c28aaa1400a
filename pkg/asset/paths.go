package asset

import (
	"github.com/shouni/go-utils/urlpath"
)

const (
	// DefaultImageDir は生成された画像を格納するディレクトリ名です。
	DefaultImageDir = "images"
	// RejectedDirName は不合格画像のアーカイブ先ディレクトリ名です。
	RejectedDirName = "rejected"
	// ReviewsDirName はレビュー結果JSONの格納先ディレクトリ名です。
	ReviewsDirName = "reviews"
	// PipelineDirName はパイプライン状態の格納先ディレクトリ名です。
	PipelineDirName = "pipeline"
	// ReferencesDirName はキャラクター参照画像の格納先ディレクトリ名です。
	ReferencesDirName = "references"
	// CardsDirName はオーバーレイ適用済みカードの出力先ディレクトリ名です。
	CardsDirName = "cards"
	// PrintDirName は印刷用エクスポートの出力先ディレクトリ名です。
	PrintDirName = "print"
)

// ResolveOutputPath は、ベースとなるディレクトリパスとファイル名から、
// GCS/ローカルを考慮した最終的な出力パスを生成します。
func ResolveOutputPath(baseDir, fileName string) (string, error) {
	return urlpath.ResolvePath(baseDir, fileName)
}

// ResolveBaseURL は、入力パス（URLまたはローカルパス）から
// 親ディレクトリのパスを解決し、末尾がセパレータで終わるように正規化します。
func ResolveBaseURL(rawPath string) string {
	return urlpath.ResolveBaseDir(rawPath)
}

// GenerateIndexedPath は、拡張子の前に連番を挿入した新しいパスを返します。
// 不合格画像のアーカイブ名 (card_03_v2.png 等) に使用します。
func GenerateIndexedPath(basePath string, index int) (string, error) {
	return urlpath.GenerateIndexedPath(basePath, index)
}
