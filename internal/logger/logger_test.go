package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"tasktimer/internal/config"
)

func TestNewProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := newWithWriter(config.EnvProd, &buf)
	if err != nil {
		t.Fatalf("newWithWriter: %v", err)
	}

	cl := Component(l, "timer")
	cl.Info().Str("task_id", "t1").Msg("started")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if line["component"] != "timer" {
		t.Errorf("component = %v, want timer", line["component"])
	}
	if line["message"] != "started" {
		t.Errorf("message = %v, want started", line["message"])
	}
	if _, ok := line["timestamp"]; !ok {
		t.Error("missing timestamp field")
	}
}

func TestNewProdSkipsDebug(t *testing.T) {
	var buf bytes.Buffer
	l, err := newWithWriter(config.EnvProd, &buf)
	if err != nil {
		t.Fatal(err)
	}
	l.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug line written at prod level: %s", buf.String())
	}
}

func TestNewUnknownEnv(t *testing.T) {
	l, err := newWithWriter("staging", &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error for unknown env")
	}
	if l.GetLevel() != zerolog.Disabled {
		t.Errorf("level = %v, want disabled nop logger", l.GetLevel())
	}
}
