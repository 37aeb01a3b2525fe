package indexer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"marketledger/core/events"
	"marketledger/core/types"
)

type wrappedEvent struct{ evt *types.Event }

func (w wrappedEvent) EventType() string { return w.evt.Type }
func (w wrappedEvent) Event() *types.Event { return w.evt }

type bareEvent string

func (b bareEvent) EventType() string { return string(b) }

func newTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	ix, err := New(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func TestEmitJournalsPayload(t *testing.T) {
	ix := newTestIndexer(t)
	var emitter events.Emitter = ix
	emitter.Emit(wrappedEvent{evt: &types.Event{
		Type:       "market.order.settled",
		Attributes: map[string]string{"order": "0xABCD", "listing": "0x01", "fee": "25"},
	}})
	emitter.Emit(bareEvent("market.config.updated"))

	records, err := ix.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "market.order.settled", records[0].Type)
	require.Equal(t, "0xabcd", records[0].Subject)
	require.NotEqual(t, records[0].EventID, records[1].EventID)

	evt, err := records[0].Event()
	require.NoError(t, err)
	require.Equal(t, "25", evt.Attributes["fee"])

	bare, err := records[1].Event()
	require.NoError(t, err)
	require.Empty(t, bare.Attributes)
}

func TestListFilters(t *testing.T) {
	ix := newTestIndexer(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		typ := "market.listing.created"
		if i%2 == 1 {
			typ = "market.order.created"
		}
		require.NoError(t, ix.Record(ctx, &types.Event{
			Type:       typ,
			Attributes: map[string]string{"listing": fmt.Sprintf("0x%02d", i%3)},
		}))
	}

	orders, err := ix.List(ctx, Filter{Type: "market.order.created"})
	require.NoError(t, err)
	require.Len(t, orders, 2)

	bySubject, err := ix.List(ctx, Filter{Subject: "0x00"})
	require.NoError(t, err)
	require.Len(t, bySubject, 2)

	page, err := ix.List(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	next, err := ix.List(ctx, Filter{AfterID: page[1].ID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, next, 3)
	require.Greater(t, next[0].ID, page[1].ID)
}

func TestRecordRejectsNil(t *testing.T) {
	ix := newTestIndexer(t)
	require.Error(t, ix.Record(context.Background(), nil))
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestOpenSQLiteFile(t *testing.T) {
	path := t.TempDir() + "/journal/events.db"
	db, err := Open(path)
	require.NoError(t, err)
	ix, err := New(db, nil)
	require.NoError(t, err)
	require.NoError(t, ix.Record(context.Background(), &types.Event{Type: "native.transferred"}))
	require.NoError(t, ix.Close())
}
