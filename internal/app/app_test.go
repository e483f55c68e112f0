package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mymmrac/telego"

	"github.com/dmakov/tg-update-store/internal/domain"
	"github.com/dmakov/tg-update-store/internal/repo"
)

func TestNew_FromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "store.db"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LIMITER_RETENTION", "1ms")

	a, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	ctx := context.Background()

	// A full round trip through the assembled pipeline.
	from := telego.User{ID: 3, FirstName: "Eve"}
	res, err := a.Ingest.Ingest(ctx, telego.Update{
		UpdateID: 1,
		Message: &telego.Message{
			MessageID: 5,
			From:      &from,
			Chat:      telego.Chat{ID: 3, Type: "private", FirstName: "Eve"},
			Date:      1700000000,
			Text:      "hi",
		},
	})
	if err != nil || !res.Stored {
		t.Fatalf("ingest through app = %+v, %v", res, err)
	}
	if _, err := repo.GetUpdate(ctx, a.DB, 1); err != nil {
		t.Fatalf("dispatch row missing: %v", err)
	}

	// Retention-based pruning of the request log.
	if err := repo.LogRequest(ctx, a.DB, nil, nil, "sendMessage"); err != nil {
		t.Fatalf("log request: %v", err)
	}
	time.Sleep(5 * time.Millisecond) // let the row age past the 1ms retention
	pruned, err := a.PruneRequestLog(ctx)
	if err != nil || pruned != 1 {
		t.Fatalf("pruned = %d, %v; want 1", pruned, err)
	}
	var n int64
	if err := a.DB.Model(&domain.RequestLimiterEntry{}).Count(&n).Error; err != nil || n != 0 {
		t.Fatalf("request_limiter rows = %d, %v; want 0", n, err)
	}
}

func TestNew_WithTracingEnabled(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "traced.db"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")

	a, err := New()
	if err != nil {
		t.Fatalf("New with tracing: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	// The instrumented handle must behave exactly like the plain one.
	from := telego.User{ID: 4, FirstName: "Tia"}
	res, err := a.Ingest.Ingest(context.Background(), telego.Update{
		UpdateID: 2,
		Message: &telego.Message{
			MessageID: 1,
			From:      &from,
			Chat:      telego.Chat{ID: 4, Type: "private", FirstName: "Tia"},
			Date:      1700000000,
			Text:      "traced",
		},
	})
	if err != nil || !res.Stored {
		t.Fatalf("ingest through traced handle = %+v, %v", res, err)
	}
}

func TestNew_InvalidConfigRefused(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "")
	if _, err := New(); err == nil {
		t.Fatalf("New succeeded without a postgres DSN")
	}
}
