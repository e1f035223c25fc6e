package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	sqlite3 "modernc.org/sqlite/lib"
)

// contention bounds how long a transaction waits when another process holds
// the database, typically a capture station committing while a board reads.
type contention struct {
	attempts int
	first    time.Duration
	ceiling  time.Duration
}

var defaultContention = contention{
	attempts: 4,
	first:    50 * time.Millisecond,
	ceiling:  500 * time.Millisecond,
}

// coded matches driver errors that carry an SQLite result code.
type coded interface {
	Code() int
}

// busy reports whether err is a lock conflict worth trying again. Extended
// codes keep the primary code in their low byte.
func busy(err error) bool {
	var c coded
	if !errors.As(err, &c) {
		return false
	}
	code := c.Code()
	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return code == sqlite3.SQLITE_IOERR_SHORT_READ
}

// wait returns the pause before attempt n+1: doubling from first, capped at
// ceiling, with up to first of jitter so competing stations spread out.
func (c contention) wait(n int) time.Duration {
	d := c.first << uint(n)
	if d <= 0 || d > c.ceiling {
		d = c.ceiling
	}
	return d + rand.N(c.first)
}

// run calls fn until it succeeds, fails with a non-lock error, the attempts
// are spent or ctx ends.
func (c contention) run(ctx context.Context, fn func() error) error {
	for n := 0; ; n++ {
		err := fn()
		if err == nil || !busy(err) {
			return err
		}
		if n+1 >= c.attempts {
			return fmt.Errorf("database still locked after %d attempts: %w", c.attempts, err)
		}
		timer := time.NewTimer(c.wait(n))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}
