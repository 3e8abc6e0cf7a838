// Package leaselock provides expiring, renewed locks stored in Postgres.
// Workers use them to keep two deliveries of the same e-mail transaction
// from being written at the same time.
package leaselock

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	// ErrBusy is returned when another holder owns an unexpired lease.
	ErrBusy = errors.New("lease busy")
	// ErrLost cancels the lease context when renewal finds the lease taken.
	ErrLost = errors.New("lease lost")
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Locker hands out leases from the leases table.
//
// A Locker should be created using NewLocker.
type Locker struct {
	conn  pgxIConn
	ttl   time.Duration
	renew time.Duration
	owner string

	wait       bool
	waitJitter time.Duration
}

// NewLockerParams configures NewLocker. TTL defaults to one minute and
// RenewEvery to half of it. With Wait set, Acquire polls until the lease is
// free instead of returning ErrBusy. Owner prefixes the holder token.
type NewLockerParams struct {
	TTL        time.Duration
	RenewEvery time.Duration
	Wait       bool
	Owner      string
}

func NewLocker(conn pgxIConn, params NewLockerParams) *Locker {
	ttl := params.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	renew := params.RenewEvery
	if renew <= 0 || renew >= ttl {
		renew = max(ttl/2, time.Second)
	}
	return &Locker{
		conn:       conn,
		ttl:        ttl,
		renew:      renew,
		owner:      params.Owner,
		wait:       params.Wait,
		waitJitter: 250 * time.Millisecond,
	}
}

// Lease is a held lock. Context is cancelled when the lease is released or
// lost.
type Lease struct {
	Key     string
	Token   string
	Context context.Context

	locker *Locker
	cancel context.CancelCauseFunc
	once   sync.Once
	done   chan struct{}
}

// WithLease runs fn while holding the lease on key. fn receives the lease
// context and should stop when it is cancelled.
func (l *Locker) WithLease(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lease, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		_ = lease.Release(context.Background())
	}()
	if err := fn(lease.Context); err != nil {
		return err
	}
	if cause := context.Cause(lease.Context); errors.Is(cause, ErrLost) {
		return cause
	}
	return nil
}

// Acquire takes the lease on key and renews it in the background until
// Release.
func (l *Locker) Acquire(ctx context.Context, key string) (*Lease, error) {
	if key == "" {
		return nil, errors.New("lease key is empty")
	}
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("generate lease token: %w", err)
	}
	token := l.owner + id

	for {
		ok, err := l.claim(ctx, tryAcquireSQL, key, token)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if !l.wait {
			return nil, ErrBusy
		}
		if err := sleep(ctx, l.renew/4+time.Duration(rand.Int64N(int64(l.waitJitter)+1))); err != nil {
			return nil, err
		}
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	lease := &Lease{
		Key:     key,
		Token:   token,
		Context: leaseCtx,
		locker:  l,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go lease.keepAlive()
	return lease, nil
}

// claim runs an acquire or renew statement and reports whether it returned
// the key.
func (l *Locker) claim(ctx context.Context, sql, key, token string) (bool, error) {
	var got string
	err := l.conn.QueryRow(ctx, sql, key, token, l.ttl.Milliseconds()).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lease %s: %w", key, err)
	}
	return got == key, nil
}

// Release stops renewal and deletes the lease if it is still held.
func (ls *Lease) Release(ctx context.Context) error {
	ls.once.Do(func() {
		close(ls.done)
		ls.cancel(context.Canceled)
	})
	_, err := ls.locker.conn.Exec(ctx, releaseSQL, ls.Key, ls.Token)
	return err
}

func (ls *Lease) keepAlive() {
	t := time.NewTicker(ls.locker.renew)
	defer t.Stop()
	for {
		select {
		case <-ls.done:
			return
		case <-ls.Context.Done():
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(ls.Context, ls.locker.renew)
			ok, err := ls.locker.claim(ctx, renewSQL, ls.Key, ls.Token)
			cancel()
			switch {
			case err != nil && ls.Context.Err() == nil:
				ls.cancel(err)
				return
			case err == nil && !ok:
				ls.cancel(ErrLost)
				return
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const tryAcquireSQL = `
INSERT INTO leases (lease_key, holder, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (lease_key) DO UPDATE
SET holder     = EXCLUDED.holder,
    expires_at = EXCLUDED.expires_at
WHERE leases.expires_at < now()
   OR leases.holder = EXCLUDED.holder
RETURNING lease_key;
`

const renewSQL = `
UPDATE leases
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE lease_key = $1 AND holder = $2
RETURNING lease_key;
`

const releaseSQL = `
DELETE FROM leases
WHERE lease_key = $1 AND holder = $2;
`
