package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, account, source, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidURL       = "INVALID_URL"
	ErrCodeSSRFBlocked      = "SSRF_BLOCKED"
	ErrCodeInvalidPlatform  = "INVALID_PLATFORM"
	ErrCodeAccountNotFound  = "ACCOUNT_NOT_FOUND"
	ErrCodeDuplicateAccount = "DUPLICATE_ACCOUNT"
	ErrCodeSourceNotFound   = "SOURCE_NOT_FOUND"
	ErrCodeDuplicateSource  = "DUPLICATE_SOURCE"
	ErrCodeFeedNotDetected  = "FEED_NOT_DETECTED"
	ErrCodeNoLinkedAccounts = "NO_LINKED_ACCOUNTS"
)

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているサーバーのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewInvalidPlatformError は未対応プラットフォームエラーを生成する。
func NewInvalidPlatformError(platform string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPlatform,
		Message:  fmt.Sprintf("未対応のプラットフォームです: %s", platform),
		Category: "validation",
		Action:   "プラットフォームには mastodon または bluesky を指定してください。",
	}
}

// NewAccountNotFoundError は連携アカウント未検出エラーを生成する。
func NewAccountNotFoundError(accountID string) *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  fmt.Sprintf("指定された連携アカウントが見つかりません: %s", accountID),
		Category: "account",
		Action:   "アカウントIDを確認してください。",
	}
}

// NewDuplicateAccountError は連携アカウント重複エラーを生成する。
func NewDuplicateAccountError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateAccount,
		Message:  "このアカウントは既に連携されています。",
		Category: "account",
		Action:   "連携アカウント一覧から該当アカウントを確認してください。",
	}
}

// NewSourceNotFoundError はRSSソース未検出エラーを生成する。
func NewSourceNotFoundError(sourceID string) *APIError {
	return &APIError{
		Code:     ErrCodeSourceNotFound,
		Message:  fmt.Sprintf("指定されたRSSソースが見つかりません: %s", sourceID),
		Category: "source",
		Action:   "ソースIDを確認してください。",
	}
}

// NewDuplicateSourceError はRSSソース重複エラーを生成する。
func NewDuplicateSourceError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateSource,
		Message:  "このフィードは既に登録されています。",
		Category: "source",
		Action:   "ソース一覧から該当フィードを確認してください。",
	}
}

// NewNoLinkedAccountsError は連携アカウント未登録エラーを生成する。
func NewNoLinkedAccountsError() *APIError {
	return &APIError{
		Code:     ErrCodeNoLinkedAccounts,
		Message:  "連携アカウントもRSSソースも登録されていません。",
		Category: "account",
		Action:   "タイムラインを表示するには、少なくとも1つのアカウントまたはRSSソースを登録してください。",
	}
}

// NewFeedNotDetectedError はフィード未検出エラーを生成する。
func NewFeedNotDetectedError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotDetected,
		Message:  fmt.Sprintf("指定されたURLからRSS/Atomフィードを検出できませんでした: %s", url),
		Category: "source",
		Action:   "RSS/AtomフィードのURLを直接入力するか、フィードが公開されているページのURLを確認してください。",
	}
}
