package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInfoWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	z := zerolog.New(&buf)
	l := Logger{z: z}

	l.Info("task submitted", F("pool", "default"), F("queue_len", 3))

	out := buf.String()
	if !strings.Contains(out, `"message":"task submitted"`) {
		t.Fatalf("missing message field: %s", out)
	}
	if !strings.Contains(out, `"pool":"default"`) {
		t.Fatalf("missing pool field: %s", out)
	}
	if !strings.Contains(out, `"queue_len":3`) {
		t.Fatalf("missing queue_len field: %s", out)
	}
}

func TestLogFrameErrorIncludesRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{z: zerolog.New(&buf)}

	l.LogFrameError(42, "send_response", errors.New("boom"))

	out := buf.String()
	if !strings.Contains(out, `"request_id":42`) {
		t.Fatalf("missing request_id: %s", out)
	}
	if !strings.Contains(out, `"op":"send_response"`) {
		t.Fatalf("missing op: %s", out)
	}
}

func TestLogRequestDispatchIncludesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{z: zerolog.New(&buf)}

	l.LogRequestDispatch(7, "abc-123", 42)

	out := buf.String()
	if !strings.Contains(out, `"correlation_id":"abc-123"`) {
		t.Fatalf("missing correlation_id: %s", out)
	}
	if !strings.Contains(out, `"call_id":42`) {
		t.Fatalf("missing call_id: %s", out)
	}
}

func TestWithAttachesFieldsToChildEvents(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{z: zerolog.New(&buf)}
	child := l.With(F("component", "pool"))

	child.Warn("queue nearly full")

	out := buf.String()
	if !strings.Contains(out, `"component":"pool"`) {
		t.Fatalf("missing component field: %s", out)
	}
}
