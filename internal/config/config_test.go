package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseModuleMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modules.conf")
	content := "# comment\n\nreact=/vendor/react/index.js\nlodash = /vendor/lodash/index.js\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := ParseModuleMap(path)
	if err != nil {
		t.Fatal(err)
	}
	if entries["react"] != "/vendor/react/index.js" {
		t.Errorf("react = %q", entries["react"])
	}
	if entries["lodash"] != "/vendor/lodash/index.js" {
		t.Errorf("lodash = %q", entries["lodash"])
	}
}

func TestParseModuleMap_MissingFile(t *testing.T) {
	entries, err := ParseModuleMap(filepath.Join(t.TempDir(), "nope.conf"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty map, got %v", entries)
	}
}

func TestLoadEnvFiles_Layering(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, ".env")

	write := func(suffix, content string) {
		if err := os.WriteFile(base+suffix, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("", "VITE_API_URL=https://default.example\nVITE_SHARED=base\n")
	write(".production", "VITE_API_URL=https://prod.example\n")
	write(".production.local", "VITE_SHARED=override\n")

	defines, err := LoadEnvFiles(base, "production", "VITE_")
	if err != nil {
		t.Fatal(err)
	}
	if defines["import.meta.env.VITE_API_URL"] != "https://prod.example" {
		t.Errorf("VITE_API_URL = %q, want mode file to win over base", defines["import.meta.env.VITE_API_URL"])
	}
	if defines["import.meta.env.VITE_SHARED"] != "override" {
		t.Errorf("VITE_SHARED = %q, want .local to win", defines["import.meta.env.VITE_SHARED"])
	}
}

func TestLoadEnvFiles_PrefixFilter(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, ".env")
	if err := os.WriteFile(base, []byte("VITE_PUBLIC=1\nSECRET_KEY=shh\n"), 0644); err != nil {
		t.Fatal(err)
	}

	defines, err := LoadEnvFiles(base, "development", "VITE_")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := defines["import.meta.env.SECRET_KEY"]; ok {
		t.Error("SECRET_KEY should have been filtered out by prefix")
	}
	if defines["import.meta.env.VITE_PUBLIC"] != "1" {
		t.Errorf("VITE_PUBLIC = %q", defines["import.meta.env.VITE_PUBLIC"])
	}
}

func TestEnvDefines_ModeFlags(t *testing.T) {
	dev := EnvDefines("development", nil)
	if dev["import.meta.env.DEV"] != "true" || dev["import.meta.env.PROD"] != "false" {
		t.Errorf("development mode flags wrong: %+v", dev)
	}

	prod := EnvDefines("production", nil)
	if prod["import.meta.env.DEV"] != "false" || prod["import.meta.env.PROD"] != "true" {
		t.Errorf("production mode flags wrong: %+v", prod)
	}
}

func TestTSConfigPathAliases_Wildcard(t *testing.T) {
	dir := t.TempDir()
	tsconfigPath := filepath.Join(dir, "tsconfig.json")
	content := `{
		// comments are allowed
		"compilerOptions": {
			"baseUrl": ".",
			"paths": {
				"@/*": ["./src/*"],
				"~utils": ["./src/utils/index.ts"],
			},
		},
	}`
	if err := os.WriteFile(tsconfigPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	aliases := TSConfigPathAliases(tsconfigPath, dir)
	if aliases["@/"] != "/src/" {
		t.Errorf("wildcard alias = %q, want /src/", aliases["@/"])
	}
	if aliases["~utils"] != "/src/utils/index.ts" {
		t.Errorf("exact alias = %q, want /src/utils/index.ts", aliases["~utils"])
	}
}

func TestTSConfigPathAliases_NoPaths(t *testing.T) {
	dir := t.TempDir()
	tsconfigPath := filepath.Join(dir, "tsconfig.json")
	if err := os.WriteFile(tsconfigPath, []byte(`{"compilerOptions": {"strict": true}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if aliases := TSConfigPathAliases(tsconfigPath, dir); aliases != nil {
		t.Errorf("expected nil aliases, got %v", aliases)
	}
}

func TestTSConfigPathAliases_MissingFile(t *testing.T) {
	if aliases := TSConfigPathAliases(filepath.Join(t.TempDir(), "missing.json"), "/"); aliases != nil {
		t.Errorf("expected nil for missing file, got %v", aliases)
	}
}
