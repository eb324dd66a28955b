package requestctx

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/m-mizutani/ctxlog"
)

func TestWithRequestIDTagsLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := ctxlog.With(context.Background(), base)

	ctx = WithRequestID(ctx, "req-42")
	if got := GetRequestID(ctx); got != "req-42" {
		t.Fatalf("expected request id req-42, got %q", got)
	}

	Logger(ctx).Info("hello")
	if !strings.Contains(buf.String(), `"requestId":"req-42"`) {
		t.Fatalf("expected request id in log line, got %s", buf.String())
	}
}

func TestGetRequestIDEmpty(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
}
