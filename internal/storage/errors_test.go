package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

func TestStorageErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "op only",
			err:  WrapConnectionError("Ping", errors.New("refused")),
			want: "storage.Ping: storage: connection failed: refused",
		},
		{
			name: "op and table",
			err:  WrapQueryError("Runs", "findings", errors.New("timeout")),
			want: "storage.Runs(findings): storage: query failed: timeout",
		},
		{
			name: "retries included",
			err:  WrapBatchError("findings", errors.New("broken pipe"), 3),
			want: "storage.InsertBatch(findings): storage: batch insert failed: broken pipe (after 3 retries)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrappedErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"connection", WrapConnectionError("Open", errors.New("refused")), ErrConnectionFailed},
		{"query", WrapQueryError("Recent", "findings", errors.New("bad query")), ErrQueryFailed},
		{"batch", WrapBatchError("findings", errors.New("broken pipe"), 2), ErrBatchInsertFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, sentinel) = false", tt.err)
			}

			var storageErr *StorageError
			if !errors.As(tt.err, &storageErr) {
				t.Fatalf("errors.As failed for %v", tt.err)
			}
			if storageErr.Op == "" {
				t.Error("StorageError.Op is empty")
			}
		})
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	err := WrapQueryError("Recent", "findings", errors.New("boom"))
	if errors.Is(err, ErrConnectionFailed) {
		t.Error("query failure must not match the connection sentinel")
	}
	if errors.Is(err, ErrBatchInsertFailed) {
		t.Error("query failure must not match the batch sentinel")
	}
}

func TestBatchWriterClosedError(t *testing.T) {
	bw := NewBatchWriter(newMockClient(&mockConn{}), DefaultBatchWriterConfig())
	if err := bw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	err := bw.Write(newTestFinding(), testRunTime)
	if !errors.Is(err, ErrWriterClosed) {
		t.Errorf("Write after Close = %v, want ErrWriterClosed", err)
	}
	if !strings.Contains(err.Error(), "closed") {
		t.Errorf("error message %q should mention the writer is closed", err)
	}
}

func TestBatchWriterFlushErrorMatchesSentinel(t *testing.T) {
	cfg := BatchWriterConfig{
		BatchSize:     1, // first write triggers the flush
		FlushInterval: time.Hour,
		MaxRetries:    1,
		RetryDelay:    time.Millisecond,
	}
	conn := &mockConn{
		prepareBatchFunc: func(_ context.Context, _ string, _ ...driver.PrepareBatchOption) (driver.Batch, error) {
			return nil, fmt.Errorf("connection refused")
		},
	}
	bw := NewBatchWriter(newMockClient(conn), cfg)
	defer bw.Close()

	err := bw.Write(newTestFinding(), testRunTime)
	if !errors.Is(err, ErrBatchInsertFailed) {
		t.Fatalf("exhausted flush = %v, want ErrBatchInsertFailed", err)
	}

	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatal("exhausted flush should carry a StorageError")
	}
	if storageErr.Retries != cfg.MaxRetries {
		t.Errorf("Retries = %d, want %d", storageErr.Retries, cfg.MaxRetries)
	}
	if storageErr.Table != "findings" {
		t.Errorf("Table = %q, want findings", storageErr.Table)
	}
}
