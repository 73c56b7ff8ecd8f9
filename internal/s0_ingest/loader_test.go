package s0_ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/dqpipe/backend/internal/contracts"
)

func writePartition(t *testing.T, dir, date string, files map[contracts.Entity]string) {
	t.Helper()
	pdir := filepath.Join(dir, "ingest_date="+date)
	require.NoError(t, os.MkdirAll(pdir, 0o755))
	for entity, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(pdir, entity.RawFileName()), []byte(body), 0o644))
	}
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	writePartition(t, dir, "2025-12-10", map[contracts.Entity]string{
		contracts.EntityOrders: "\ufefforder_id, customer_id ,amount\n" +
			"o1,c00001,10.5\n" +
			"o2,,\n" +
			"o3,c00003\n" + // short row
			"o4,c00004,1,extra\n" + // long row
			`o5,"c0000""5",2` + "\n",
	})

	batch, err := NewLoader(dir).Load(context.Background(), "2025-12-10", contracts.EntityOrders)
	require.NoError(t, err)

	assert.Equal(t, contracts.EntityOrders, batch.Entity)
	assert.Equal(t, []string{"order_id", "customer_id", "amount"}, batch.Columns)
	require.Equal(t, 5, batch.Len())

	assert.Equal(t, "10.5", batch.Records[0]["amount"])

	_, ok := batch.Records[1].Get("customer_id")
	assert.False(t, ok, "empty cell is null")

	_, ok = batch.Records[2].Get("amount")
	assert.False(t, ok, "short row pads with null")

	assert.Len(t, batch.Records[3], 3)
	assert.Equal(t, `c0000"5`, batch.Records[4]["customer_id"])
}

func TestLoader_MissingPartition(t *testing.T) {
	_, err := NewLoader(t.TempDir()).Load(context.Background(), "2025-12-10", contracts.EntityCustomers)
	assert.ErrorIs(t, err, contracts.ErrPartitionNotFound)
}

func TestLoader_InvalidDate(t *testing.T) {
	_, err := NewLoader(t.TempDir()).Load(context.Background(), "../etc", contracts.EntityCustomers)
	assert.ErrorIs(t, err, contracts.ErrInvalidDate)
}

func TestLoader_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	writePartition(t, dir, "2025-12-10", map[contracts.Entity]string{contracts.EntityCustomers: ""})

	batch, err := NewLoader(dir).Load(context.Background(), "2025-12-10", contracts.EntityCustomers)
	require.NoError(t, err)
	assert.Empty(t, batch.Columns)
	assert.Zero(t, batch.Len())
}

func TestLoader_ChunkedEventsMatchSinglePass(t *testing.T) {
	var b strings.Builder
	b.WriteString("event_id,customer_id,event_time\n")
	for i := 0; i < 103; i++ {
		fmt.Fprintf(&b, "e%d,c%05d,2025-12-10T%02d:00:00Z\n", i, i, i%24)
	}

	dir := t.TempDir()
	writePartition(t, dir, "2025-12-10", map[contracts.Entity]string{contracts.EntityEvents: b.String()})

	whole, err := NewLoader(dir).Load(context.Background(), "2025-12-10", contracts.EntityEvents)
	require.NoError(t, err)

	chunked, err := NewLoader(dir, WithChunkSize(10)).Load(context.Background(), "2025-12-10", contracts.EntityEvents)
	require.NoError(t, err)

	assert.Equal(t, 103, chunked.Len())
	assert.Equal(t, whole, chunked)
}

func TestLoader_ChunkedRespectsCancel(t *testing.T) {
	var b strings.Builder
	b.WriteString("event_id\n")
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, "e%d\n", i)
	}
	dir := t.TempDir()
	writePartition(t, dir, "2025-12-10", map[contracts.Entity]string{contracts.EntityEvents: b.String()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(dir, WithChunkSize(5)).Load(ctx, "2025-12-10", contracts.EntityEvents)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoader_Partitions(t *testing.T) {
	dir := t.TempDir()
	writePartition(t, dir, "2025-12-11", nil)
	writePartition(t, dir, "2025-12-09", nil)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ingest_date=garbage"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "other"), 0o755))

	dates, err := NewLoader(dir).Partitions()
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-12-09", "2025-12-11"}, dates)
}
