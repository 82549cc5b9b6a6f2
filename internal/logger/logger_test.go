package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestNewWithWriterTagsService(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("api", &buf)
	log.Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"service":"api"`) {
		t.Errorf("output missing service field: %s", out)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("output missing message: %s", out)
	}
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("ingest", &buf)

	ctx := WithContext(context.Background(), log)
	got := FromContext(ctx)
	got.Info().Msg("from context")

	if !strings.Contains(buf.String(), "from context") {
		t.Errorf("context logger did not write to the original writer: %s", buf.String())
	}
}

func TestFromContextFallsBack(t *testing.T) {
	// A context without a logger still yields a usable one.
	log := FromContext(context.Background())
	log.Debug().Msg("no-op is fine")
}
