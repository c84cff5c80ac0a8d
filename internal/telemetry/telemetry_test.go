package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitTracer(t *testing.T) {
	var buf bytes.Buffer

	tp, shutdown, err := InitTracer("reelq-test", &buf)
	if err != nil {
		t.Fatalf("InitTracer failed: %v", err)
	}
	if tp == nil || shutdown == nil {
		t.Fatal("expected provider and shutdown func")
	}

	_, span := otel.Tracer("telemetry-test").Start(context.Background(), "queue.replay")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"Name":"queue.replay"`) {
		t.Errorf("expected span to be exported, got %s", out)
	}
	if !strings.Contains(out, "reelq-test") {
		t.Errorf("expected service name in resource, got %s", out)
	}
}
