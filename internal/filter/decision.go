// Package filter はリプライフィルタの判定ロジックを提供する。
// スレッド参加者のうちフォロー中のアカウントが一定数以上いる会話だけを
// タイムラインに残し、無関係な他人同士の会話を除外する。
package filter

// Reason はフィルタ判定の理由を表す。可観測性のために使用され、永続化はしない。
type Reason string

const (
	// ReasonTopLevel はトップレベル投稿（またはフィルタ無効時）の無条件包含。
	ReasonTopLevel Reason = "top_level"
	// ReasonSelfReplyFromFollowed はフォロー中アカウントのセルフリプライ（スレッド継続）。
	ReasonSelfReplyFromFollowed Reason = "self_reply_from_followed"
	// ReasonThreadHasEnoughFollowedParticipants はスレッド参加者に
	// フォロー中アカウントが閾値以上含まれる場合の包含。
	ReasonThreadHasEnoughFollowedParticipants Reason = "thread_has_enough_followed_participants"
	// ReasonFilteredOut はフィルタ条件を満たさず除外された場合。
	ReasonFilteredOut Reason = "filtered_out"
	// ReasonErrorFailOpen は解決失敗時のフェイルオープン包含。
	// フィルタのエラーでコンテンツを隠すことは決してしない。
	ReasonErrorFailOpen Reason = "error_fail_open"
)

// Decision は1投稿に対するフィルタ判定結果を表す。
type Decision struct {
	Include bool
	Reason  Reason
}
