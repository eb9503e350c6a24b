// Package marketplace aggregates ticket and sale state read from the contracts.
//
// Every listing walks the sequential id space of one contract and keeps the
// records a predicate accepts. A record that cannot be read is logged and left
// out; only failing to learn the size of the id space fails the whole call.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xyths/ticket-market/chain"
	"github.com/xyths/ticket-market/metrics"
)

var (
	// ErrUnavailable means the chain could not be read at all.
	ErrUnavailable = errors.New("chain unavailable")
	// ErrNoActiveSale is a valid answer, not a failure.
	ErrNoActiveSale = errors.New("no active sale")
)

// Images rewrites picture references before they leave the service.
type Images interface {
	Sanitize(raw string) string
}

type Scanner struct {
	gw     chain.Gateway
	images Images
	now    func() time.Time

	Sugar *zap.SugaredLogger
}

func NewScanner(gw chain.Gateway, images Images, sugar *zap.SugaredLogger) *Scanner {
	return &Scanner{
		gw:     gw,
		images: images,
		now:    time.Now,
		Sugar:  sugar,
	}
}

// scan walks ids 1..total in ascending order. fetch failures and project
// failures drop the id; keep decides which fetched items get projected.
type scan[T, R any] struct {
	name    string
	fetch   func(ctx context.Context, id uint64) (T, error)
	keep    func(id uint64, item T) bool
	project func(ctx context.Context, id uint64, item T) (R, error)
	// stop after this many results, 0 means no limit
	limit int
}

func (sc scan[T, R]) run(ctx context.Context, sugar *zap.SugaredLogger, total uint64) ([]R, error) {
	defer metrics.ScanDone(sc.name, time.Now())
	out := make([]R, 0)
	for id := uint64(1); id <= total; id++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		item, err := sc.fetch(ctx, id)
		if err != nil {
			sugar.Errorf("%s: fetch %d error: %s", sc.name, id, err)
			metrics.ScanItem(sc.name, metrics.OutcomeFailed)
			continue
		}
		if !sc.keep(id, item) {
			metrics.ScanItem(sc.name, metrics.OutcomeSkipped)
			continue
		}
		r, err := sc.project(ctx, id, item)
		if err != nil {
			sugar.Errorf("%s: project %d error: %s", sc.name, id, err)
			metrics.ScanItem(sc.name, metrics.OutcomeFailed)
			continue
		}
		metrics.ScanItem(sc.name, metrics.OutcomeKept)
		out = append(out, r)
		if sc.limit > 0 && len(out) >= sc.limit {
			break
		}
	}
	sugar.Debugf("%s: %d of %d kept", sc.name, len(out), total)
	return out, nil
}

func (s *Scanner) saleCount(ctx context.Context) (uint64, error) {
	next, err := s.gw.NextSaleID(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: nextSaleId: %v", ErrUnavailable, err)
	}
	if next == 0 {
		return 0, nil
	}
	return next - 1, nil
}

func (s *Scanner) tokenCount(ctx context.Context) (uint64, error) {
	n, err := s.gw.TotalSupply(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: totalSupply: %v", ErrUnavailable, err)
	}
	return n, nil
}

// lookupErr keeps "not found" as is and turns anything else into ErrUnavailable.
func lookupErr(what string, err error) error {
	if errors.Is(err, chain.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, what, err)
}
