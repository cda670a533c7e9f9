package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libmgmt/pkg/domain"
)

func TestSummaryCounters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reader := f.addReader(t, "gina", 4)
	book := f.addBook(t, "Emma", "Austen", "AU-1")
	for i := 0; i < 2; i++ {
		_, err := f.app.Borrow(ctx, reader.User, f.addCopy(t, book.ID, domain.InventoryInLibrary).ID)
		require.NoError(t, err)
	}

	sum, err := f.app.Summary(ctx, reader.User)
	require.NoError(t, err)
	assert.Equal(t, domain.ReaderSummary{Borrowed: 2, SoonOverdue: 0, Overdue: 0, RemainingQuota: 2}, sum)

	f.clock.Advance(25 * 24 * time.Hour)
	sum, err = f.app.Summary(ctx, reader.User)
	require.NoError(t, err)
	assert.EqualValues(t, 2, sum.SoonOverdue)
	assert.EqualValues(t, 0, sum.Overdue)

	f.clock.Advance(6 * 24 * time.Hour)
	sum, err = f.app.Summary(ctx, reader.User)
	require.NoError(t, err)
	assert.EqualValues(t, 0, sum.SoonOverdue)
	assert.EqualValues(t, 2, sum.Overdue)
	assert.EqualValues(t, 2, sum.RemainingQuota)
}

func TestBorrowStatsPerDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reader := f.addReader(t, "hank", 10)
	book := f.addBook(t, "Emma", "Austen", "AU-1")

	f.clock.Advance(-2 * 24 * time.Hour)
	_, err := f.app.Borrow(ctx, reader.User, f.addCopy(t, book.ID, domain.InventoryInLibrary).ID)
	require.NoError(t, err)
	f.clock.Advance(2 * 24 * time.Hour)
	for i := 0; i < 2; i++ {
		_, err := f.app.Borrow(ctx, reader.User, f.addCopy(t, book.ID, domain.InventoryInLibrary).ID)
		require.NoError(t, err)
	}

	stats, err := f.app.BorrowStats(ctx, reader.User, 0)
	require.NoError(t, err)
	require.Len(t, stats, 7)
	today := f.clock.Now().UTC().Format(time.DateOnly)
	twoDaysAgo := f.clock.Now().UTC().AddDate(0, 0, -2).Format(time.DateOnly)
	assert.Equal(t, domain.DailyCount{Date: today, Count: 2}, stats[6])
	assert.Equal(t, domain.DailyCount{Date: twoDaysAgo, Count: 1}, stats[4])
	assert.EqualValues(t, 0, stats[5].Count)

	stats, err = f.app.BorrowStats(ctx, reader.User, 365)
	require.NoError(t, err)
	assert.Len(t, stats, 90)
}

func TestTopBooks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reader := f.addReader(t, "iris", 10)
	emma := f.addBook(t, "Emma", "Austen", "AU-1")
	dune := f.addBook(t, "Dune", "Herbert", "HB-1")

	for i := 0; i < 2; i++ {
		_, err := f.app.Borrow(ctx, reader.User, f.addCopy(t, emma.ID, domain.InventoryInLibrary).ID)
		require.NoError(t, err)
	}
	_, err := f.app.Borrow(ctx, reader.User, f.addCopy(t, dune.ID, domain.InventoryInLibrary).ID)
	require.NoError(t, err)

	top, err := f.app.TopBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.BookBorrowCount{{Title: "Emma", Count: 2}, {Title: "Dune", Count: 1}}, top)
}
