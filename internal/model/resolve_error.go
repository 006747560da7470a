package model

import "fmt"

// ResolveErrorKind はスレッド参加者解決の失敗分類を表す。
type ResolveErrorKind string

const (
	// ResolveErrorNetwork はタイムアウト・接続失敗などのネットワークエラー。
	ResolveErrorNetwork ResolveErrorKind = "network"
	// ResolveErrorNotFound は参照先の投稿・スレッドが存在しないエラー。
	ResolveErrorNotFound ResolveErrorKind = "not_found"
	// ResolveErrorDecode はAPIペイロードが不正な場合のエラー。
	ResolveErrorDecode ResolveErrorKind = "decode"
)

// ResolveError はスレッド参加者解決の失敗を表す。
// フィルタ調整役の境界でフェイルオープン（表示する側に倒す）に変換され、
// タイムラインアセンブラには伝播しない。
type ResolveError struct {
	Kind ResolveErrorKind
	Err  error
}

// Error はerrorインターフェースを実装する。
func (e *ResolveError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("スレッド解決に失敗しました (%s)", e.Kind)
	}
	return fmt.Sprintf("スレッド解決に失敗しました (%s): %v", e.Kind, e.Err)
}

// Unwrap はラップされたエラーを返す。
func (e *ResolveError) Unwrap() error {
	return e.Err
}

// NewResolveError はResolveErrorを生成する。
func NewResolveError(kind ResolveErrorKind, err error) *ResolveError {
	return &ResolveError{Kind: kind, Err: err}
}
