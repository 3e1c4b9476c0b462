package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeRedactsSecrets(t *testing.T) {
	got := sanitizeKVs([]interface{}{"pinecone_api_key", "pk-123", "namespace", "report", "dangling"})
	want := []interface{}{"pinecone_api_key", "[REDACTED]", "namespace", "report", "dangling"}
	if len(got) != len(want) {
		t.Fatalf("len: want=%d got=%d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("kv[%d]: want=%v got=%v", i, want[i], got[i])
		}
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docqa.log")
	log, err := New("production", path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.With("component", "test").Info("hello", "openai_api_key", "sk-secret")
	log.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), "hello") {
		t.Fatalf("log line missing: %s", raw)
	}
	if strings.Contains(string(raw), "sk-secret") {
		t.Fatalf("secret leaked: %s", raw)
	}
}

func TestSanitizeKeepsUsageCounts(t *testing.T) {
	got := sanitizeKVs([]interface{}{"prompt_tokens", 120, "completion_tokens", 30, "access_token", "tok-1", "Authorization", "Bearer x"})
	want := []interface{}{"prompt_tokens", 120, "completion_tokens", 30, "access_token", "[REDACTED]", "Authorization", "[REDACTED]"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("kv[%d]: want=%v got=%v", i, want[i], got[i])
		}
	}
}

func TestIsRedactKey(t *testing.T) {
	cases := map[string]bool{
		"api_key":       true,
		"openai_apikey": true,
		"token":         true,
		"api-token":     true,
		"client_secret": true,
		"prompt_tokens": false,
		"tokenizer":     false,
		"namespace":     false,
	}
	for key, want := range cases {
		if got := isRedactKey(key); got != want {
			t.Fatalf("isRedactKey(%q): want=%v got=%v", key, want, got)
		}
	}
}
