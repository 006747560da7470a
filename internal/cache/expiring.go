// Package cache はTTL付きインメモリキャッシュを提供する。
// スレッド参加者キャッシュとフォロー集合キャッシュの2箇所で使用される。
// プロセスローカルであり、永続化は行わない。
package cache

import (
	"sync"
	"time"
)

// Clock は現在時刻の取得関数。テストで固定クロックを注入するために使用する。
type Clock func() time.Time

// entry は値と有効期限の組。
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Expiring はTTL付きの並行安全なキー値キャッシュ。
// 期限切れエントリは存在しないものとして扱われ、アクセス時に刈り取られる
// （stale-but-usableな提供は行わない）。
// Putは同一キーの既存エントリを常に上書きする（last-write-wins）。
// サイズ上限は設けない（1セッション中に見えるスレッド・アカウント数で自然に抑えられる）。
type Expiring[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]entry[V]
	now     Clock
}

// NewExpiring は新しいExpiringキャッシュを生成する。
// clockがnilの場合はtime.Nowを使用する。
func NewExpiring[K comparable, V any](clock Clock) *Expiring[K, V] {
	if clock == nil {
		clock = time.Now
	}
	return &Expiring[K, V]{
		entries: make(map[K]entry[V]),
		now:     clock,
	}
}

// Get はキーに対応する値を返す。
// キーが存在しない、または期限切れの場合は第2戻り値がfalseになる。
// 期限切れエントリはこの時点で削除される。
func (c *Expiring[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put は値をTTL付きで格納する。同一キーの既存エントリは上書きされる。
// ttlが0以下の場合は格納しない（即時期限切れと同義）。
func (c *Expiring[K, V]) Put(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
}

// Delete はキーのエントリを削除する。存在しないキーは何もしない。
func (c *Expiring[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Purge は期限切れエントリをすべて削除し、削除した件数を返す。
// 定期スイープから呼ばれることを想定しているが、正しさには必須でない
// （期限切れはGet時にも検出される）。
func (c *Expiring[K, V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	purged := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			purged++
		}
	}
	return purged
}

// Len は期限切れを含む現在のエントリ数を返す。テスト・監視用。
func (c *Expiring[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
