package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmbeddedHasExpectedLocales(t *testing.T) {
	bundle, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}
	for _, locale := range []string{BaseLocale, "de-DE"} {
		if !bundle.HasLocale(locale) {
			t.Fatalf("expected locale %s", locale)
		}
	}
	if got := len(bundle.NamespaceMessages("en-US", "bot")); got == 0 {
		t.Fatal("expected en-US bot namespace messages")
	}
	if got := len(bundle.NamespaceMessages("en-US", "errors")); got == 0 {
		t.Fatal("expected en-US errors namespace messages")
	}
}

func TestEmbeddedLocalesDefineEveryBaseKey(t *testing.T) {
	bundle, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}
	base := bundle.LocaleMessages(BaseLocale)
	for _, locale := range bundle.Locales() {
		messages := bundle.LocaleMessages(locale)
		for key := range base {
			if _, ok := messages[key]; !ok {
				t.Fatalf("locale %s is missing key %q", locale, key)
			}
		}
	}
}

func TestMatchResolvesPlatformLocales(t *testing.T) {
	bundle, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}
	tcs := []struct {
		requested string
		want      string
	}{
		{requested: "", want: "en-US"},
		{requested: "en-US", want: "en-US"},
		{requested: "en-GB", want: "en-US"},
		{requested: "de", want: "de-DE"},
		{requested: "de-AT", want: "de-DE"},
		{requested: "ja", want: "en-US"},
		{requested: "not a locale", want: "en-US"},
	}
	for _, tc := range tcs {
		if got := bundle.Match(tc.requested); got != tc.want {
			t.Fatalf("Match(%q) = %q, want %q", tc.requested, got, tc.want)
		}
	}
}

func TestSprintfUsesRegisteredMessages(t *testing.T) {
	bundle := Default()
	if got := bundle.Sprintf("en-US", "bot.channel_cleared", 3); got != "Removed 3 button messages." {
		t.Fatalf("Sprintf = %q", got)
	}
	if got := bundle.Sprintf("de", "bot.button.finish"); got != "Fertig" {
		t.Fatalf("Sprintf = %q, want %q", got, "Fertig")
	}
}

func TestMessageFallsBackToBaseLocale(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/bot.yaml"), `locale: "en-US"
namespace: "bot"
messages:
  "a.key": "a"
  "b.key": "b"
`)
	mustWriteFile(t, filepath.Join(tempDir, "locales/de-DE/bot.yaml"), `locale: "de-DE"
namespace: "bot"
messages:
  "a.key": "A"
`)
	bundle, err := LoadFromFS(os.DirFS(tempDir))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	if got, _ := bundle.Message("de-DE", "a.key"); got != "A" {
		t.Fatalf("message = %q, want %q", got, "A")
	}
	if got, ok := bundle.Message("de-DE", "b.key"); !ok || got != "b" {
		t.Fatalf("message = %q, %v, want %q", got, ok, "b")
	}
	if _, ok := bundle.Message("de-DE", "missing"); ok {
		t.Fatal("expected missing key")
	}
}

func TestLoadFromFSRejectsDuplicateKeysAcrossNamespaces(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/bot.yaml"), `locale: "en-US"
namespace: "bot"
messages:
  "a.key": "a"
`)
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/errors.yaml"), `locale: "en-US"
namespace: "errors"
messages:
  "a.key": "b"
`)

	if _, err := LoadFromFS(os.DirFS(tempDir)); err == nil {
		t.Fatal("expected duplicate key error")
	}
}

func TestLoadFromFSRejectsMismatchedPaths(t *testing.T) {
	tcs := []struct {
		name    string
		path    string
		content string
	}{
		{
			name:    "locale mismatch",
			path:    "locales/en-US/bot.yaml",
			content: "locale: \"de-DE\"\nnamespace: \"bot\"\nmessages:\n  \"a\": \"b\"\n",
		},
		{
			name:    "namespace mismatch",
			path:    "locales/en-US/bot.yaml",
			content: "locale: \"en-US\"\nnamespace: \"web\"\nmessages:\n  \"a\": \"b\"\n",
		},
		{
			name:    "missing messages",
			path:    "locales/en-US/bot.yaml",
			content: "locale: \"en-US\"\nnamespace: \"bot\"\n",
		},
		{
			name:    "malformed yaml",
			path:    "locales/en-US/bot.yaml",
			content: "locale: [\n",
		},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			tempDir := t.TempDir()
			mustWriteFile(t, filepath.Join(tempDir, tc.path), tc.content)
			if _, err := LoadFromFS(os.DirFS(tempDir)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadFromFSRequiresBaseLocale(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/de-DE/bot.yaml"), `locale: "de-DE"
namespace: "bot"
messages:
  "a.key": "a"
`)
	if _, err := LoadFromFS(os.DirFS(tempDir)); err == nil {
		t.Fatal("expected missing base locale error")
	}
}

func TestNamespaceMessagesWithFallback(t *testing.T) {
	bundle, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}
	resolved, messages := bundle.NamespaceMessagesWithFallback("fr-FR", "errors")
	if resolved != "en-US" {
		t.Fatalf("resolved locale = %q, want en-US", resolved)
	}
	if len(messages) == 0 {
		t.Fatal("expected fallback errors namespace messages")
	}
	resolved, _ = bundle.NamespaceMessagesWithFallback("de", "errors")
	if resolved != "de-DE" {
		t.Fatalf("resolved locale = %q, want de-DE", resolved)
	}
}

func mustWriteFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
