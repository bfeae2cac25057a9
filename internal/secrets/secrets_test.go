package secrets

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSecretsFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "secrets.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestLoadAndGet(t *testing.T) {
	t.Parallel()
	path := writeSecretsFile(t, `
svc:
  tok: s3cr3t
  nested:
    deep: value
ops:
  email: ops@example.com
`)
	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if v, ok := store.Get("svc.tok"); !ok || v != "s3cr3t" {
		t.Errorf("Get(svc.tok) = %q, %v; want s3cr3t, true", v, ok)
	}
	if v, ok := store.Get("svc.nested.deep"); !ok || v != "value" {
		t.Errorf("Get(svc.nested.deep) = %q, %v; want value, true", v, ok)
	}
	if _, ok := store.Get("svc.missing"); ok {
		t.Error("Get(svc.missing) should miss")
	}
	// Terminal node is a map, not a leaf: must be a miss.
	if _, ok := store.Get("svc"); ok {
		t.Error("Get(svc) should miss: terminal node is a map")
	}
}

func TestLoadRejectsUnknownShapes(t *testing.T) {
	t.Parallel()
	path := writeSecretsFile(t, `
svc:
  tok: [1, 2, 3]
`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for non-string/map value")
	}
}

func TestEmptyStoreReplaceIsIdentity(t *testing.T) {
	t.Parallel()
	store := Empty()
	texts := []string{
		"no tokens here",
		"{{unresolved}}",
		"prefix {{a.b}} suffix",
		"",
	}
	for _, text := range texts {
		if got := store.Replace(text); got != text {
			t.Errorf("Replace(%q) = %q, want identity", text, got)
		}
	}
}

func TestReplace(t *testing.T) {
	t.Parallel()
	path := writeSecretsFile(t, `
svc:
  tok: s3cr3t
`)
	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple hit", "https://h/{{svc.tok}}", "https://h/s3cr3t"},
		{"trims whitespace", "{{ svc.tok }}", "s3cr3t"},
		{"miss preserved", "{{missing.path}}", "{{missing.path}}"},
		{"unterminated preserved", "prefix {{unterminated", "prefix {{unterminated"},
		{"nested braces preserved", "{{ svc.{{tok}} }}", "{{ svc.{{tok}} }}"},
		{"no tokens", "plain text", "plain text"},
		{"two tokens", "{{svc.tok}}-{{svc.tok}}", "s3cr3t-s3cr3t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := store.Replace(tt.in); got != tt.want {
				t.Errorf("Replace(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestReplaceIdempotentOnMiss(t *testing.T) {
	t.Parallel()
	store := Empty()
	text := "{{a.b}} and {{c.d}}"
	once := store.Replace(text)
	twice := store.Replace(once)
	if once != twice {
		t.Errorf("Replace not idempotent on miss: %q != %q", once, twice)
	}
}

func TestFlatten(t *testing.T) {
	t.Parallel()
	path := writeSecretsFile(t, `
a:
  b: "1"
  c:
    d: "2"
e: "3"
`)
	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	flat := store.Flatten()
	want := map[string]string{"a.b": "1", "a.c.d": "2", "e": "3"}
	if len(flat) != len(want) {
		t.Fatalf("Flatten() has %d entries, want %d: %v", len(flat), len(want), flat)
	}
	for k, v := range want {
		if flat[k] != v {
			t.Errorf("Flatten()[%q] = %q, want %q", k, flat[k], v)
		}
	}
}

func TestToEnv(t *testing.T) {
	t.Parallel()
	flat := map[string]string{"svc.tok": "s3cr3t", "a.b.c": "x"}
	env := ToEnv(flat)
	if env["SECRETS_SVC_TOK"] != "s3cr3t" {
		t.Errorf("SECRETS_SVC_TOK = %q, want s3cr3t", env["SECRETS_SVC_TOK"])
	}
	if env["SECRETS_A_B_C"] != "x" {
		t.Errorf("SECRETS_A_B_C = %q, want x", env["SECRETS_A_B_C"])
	}
}
