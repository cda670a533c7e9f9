package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"libmgmt/pkg/domain"
)

const (
	defaultStatsDays = 7
	maxStatsDays     = 90
	topBooksWindow   = 30 * 24 * time.Hour
	topBooksLimit    = 5
)

// Summary returns the counters of the reader home screen. Overdue is derived
// from the due date; no stored record is ever marked overdue.
func (a *App) Summary(ctx context.Context, actor domain.User) (domain.ReaderSummary, error) {
	reader, err := a.readerOf(ctx, a.store, actor)
	if err != nil {
		return domain.ReaderSummary{}, err
	}
	now := a.now()
	var sum domain.ReaderSummary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := a.store.CountOpenBorrows(gctx, reader.ID)
		if err != nil {
			return fmt.Errorf("count borrows: %w", err)
		}
		sum.Borrowed = n
		return nil
	})
	g.Go(func() error {
		n, err := a.store.CountOpenBorrowsDue(gctx, reader.ID, now, now.Add(domain.SoonOverdueWindow))
		if err != nil {
			return fmt.Errorf("count soon overdue: %w", err)
		}
		sum.SoonOverdue = n
		return nil
	})
	g.Go(func() error {
		n, err := a.store.CountOpenBorrowsDue(gctx, reader.ID, time.Time{}, now)
		if err != nil {
			return fmt.Errorf("count overdue: %w", err)
		}
		sum.Overdue = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.ReaderSummary{}, err
	}
	sum.RemainingQuota = int64(reader.MaxBorrowLimit) - sum.Borrowed
	return sum, nil
}

// BorrowStats counts the actor's borrows per UTC day over the last days
// days, today included. Days without borrows are reported as zero.
func (a *App) BorrowStats(ctx context.Context, actor domain.User, days int) ([]domain.DailyCount, error) {
	if days <= 0 {
		days = defaultStatsDays
	}
	if days > maxStatsDays {
		days = maxStatsDays
	}
	reader, err := a.readerOf(ctx, a.store, actor)
	if err != nil {
		return nil, err
	}
	today := a.now().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -(days - 1))
	dates, err := a.store.ListBorrowDates(ctx, reader.ID, start)
	if err != nil {
		return nil, fmt.Errorf("list borrow dates: %w", err)
	}
	perDay := make(map[string]int64, days)
	for _, d := range dates {
		perDay[d.Format(time.DateOnly)]++
	}
	stats := make([]domain.DailyCount, 0, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i).Format(time.DateOnly)
		stats = append(stats, domain.DailyCount{Date: day, Count: perDay[day]})
	}
	return stats, nil
}

// TopBooks ranks titles by borrows over the last 30 days.
func (a *App) TopBooks(ctx context.Context) ([]domain.BookBorrowCount, error) {
	books, err := a.store.TopBorrowedBooks(ctx, a.now().Add(-topBooksWindow), topBooksLimit)
	if err != nil {
		return nil, fmt.Errorf("top borrowed books: %w", err)
	}
	return books, nil
}
