package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLoggerWritesJSONWithServiceAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(Config{ServiceName: "invoicepro-auth", Environment: "test", Level: "info", Output: &buf})

	log.Info("user signed up", "user_id", "u-1")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected a JSON log line, got %q: %v", buf.String(), err)
	}
	want := map[string]string{
		"msg":     "user signed up",
		"level":   "INFO",
		"service": "invoicepro-auth",
		"env":     "test",
		"user_id": "u-1",
	}
	for k, v := range want {
		if line[k] != v {
			t.Fatalf("expected %s=%q, got %v", k, v, line[k])
		}
	}
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	cases := []struct {
		level     string
		debugSeen bool
		infoSeen  bool
		warnSeen  bool
	}{
		{level: "debug", debugSeen: true, infoSeen: true, warnSeen: true},
		{level: "", debugSeen: false, infoSeen: true, warnSeen: true},
		{level: "WARN", debugSeen: false, infoSeen: false, warnSeen: true},
		{level: "error", debugSeen: false, infoSeen: false, warnSeen: false},
	}
	for _, tc := range cases {
		t.Run("level="+tc.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewLogger(Config{ServiceName: "svc", Level: tc.level, Output: &buf})
			log.Debug("dbg")
			log.Info("inf")
			log.Warn("wrn")
			out := buf.String()
			if got := strings.Contains(out, `"msg":"dbg"`); got != tc.debugSeen {
				t.Fatalf("debug seen=%v, want %v", got, tc.debugSeen)
			}
			if got := strings.Contains(out, `"msg":"inf"`); got != tc.infoSeen {
				t.Fatalf("info seen=%v, want %v", got, tc.infoSeen)
			}
			if got := strings.Contains(out, `"msg":"wrn"`); got != tc.warnSeen {
				t.Fatalf("warn seen=%v, want %v", got, tc.warnSeen)
			}
		})
	}
}
