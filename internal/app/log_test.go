package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestHoardHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "op-123",
			level:   slog.LevelInfo,
			message: "backup recorded",
			want:    "2024-06-15T14:30:45Z\tINFO\top-123\tbackup recorded\n",
		},
		{
			name:    "debug level",
			opID:    "op-456",
			level:   slog.LevelDebug,
			message: "index flushed",
			want:    "2024-06-15T14:30:45Z\tDEBUG\top-456\tindex flushed\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789",
			level:   slog.LevelInfo,
			message: "backup recorded",
			attrs:   []slog.Attr{slog.String("family", "host1/etc"), slog.Int("chunks", 42)},
			want:    "2024-06-15T14:30:45Z\tINFO\top-789\tbackup recorded\tfamily=host1/etc\tchunks=42\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &hoardHandler{w: &buf, opID: tt.opID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			r.AddAttrs(tt.attrs...)

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("Handle() output = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestHoardHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := &hoardHandler{w: &buf, opID: "op-1"}

	h := base.WithAttrs([]slog.Attr{slog.String("index", "snapshot")})

	r := slog.NewRecord(time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC), slog.LevelInfo, "flushed", 0)
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if !strings.Contains(buf.String(), "\tindex=snapshot") {
		t.Errorf("output missing pre-set attr: %q", buf.String())
	}

	// The base handler must be unaffected.
	buf.Reset()
	if err := base.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if strings.Contains(buf.String(), "index=snapshot") {
		t.Errorf("base handler picked up attrs: %q", buf.String())
	}
}
