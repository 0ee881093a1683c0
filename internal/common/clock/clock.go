// Package clock は現在時刻の取得を抽象化する。
// セッションの有効期限判定をテストで固定時刻に差し替えるために使う。
package clock

import "time"

//go:generate mockgen -package=mocks -destination=mocks/mock_clock.go github.com/hitoshi/quora/internal/common/clock Clock

// Clock は現在時刻を返すインターフェース。
type Clock interface {
	Now() time.Time
}

// SystemClock はシステム時刻を返すClock実装。
type SystemClock struct{}

// Now は現在時刻を返す。
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Fixed は常に同じ時刻を返すClock実装。
type Fixed time.Time

// Now は固定時刻を返す。
func (f Fixed) Now() time.Time {
	return time.Time(f)
}
