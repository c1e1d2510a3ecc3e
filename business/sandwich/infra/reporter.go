// Package infra contains infrastructure adapters for the sandwich context.
package infra

import (
	"context"
	"errors"

	chainDomain "github.com/fd1az/sandwich-bot/business/chain/domain"
	"github.com/fd1az/sandwich-bot/business/sandwich/app"
	"github.com/fd1az/sandwich-bot/business/sandwich/domain"
)

var _ app.Reporter = (MultiReporter)(nil)

// MultiReporter fans results out to every reporter in order.
type MultiReporter []app.Reporter

// NewMultiReporter drops nil entries.
func NewMultiReporter(reporters ...app.Reporter) MultiReporter {
	m := make(MultiReporter, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

// Start starts every reporter, stopping the ones already started on failure.
func (m MultiReporter) Start(ctx context.Context) error {
	for i, r := range m {
		if err := r.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = m[j].Stop()
			}
			return err
		}
	}
	return nil
}

func (m MultiReporter) ReportBlock(ctx context.Context, block chainDomain.NewBlock) {
	for _, r := range m {
		r.ReportBlock(ctx, block)
	}
}

func (m MultiReporter) ReportSwaps(ctx context.Context, info *domain.PendingTxInfo) {
	for _, r := range m {
		r.ReportSwaps(ctx, info)
	}
}

// Stop stops every reporter in reverse order.
func (m MultiReporter) Stop() error {
	var errs []error
	for i := len(m) - 1; i >= 0; i-- {
		if err := m[i].Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
