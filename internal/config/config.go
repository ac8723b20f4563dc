// Package config loads the project configuration the orchestrators need:
// the entry/module-map line format, Vite-style layered .env files, and
// tsconfig.json path aliases.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ParseModuleMap reads a "name=path" line-config file (blank lines and
// #-comments skipped). A missing file is not an error: an empty map is
// valid (no local module aliases).
func ParseModuleMap(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	defer f.Close()

	entries := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			entries[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return entries, scanner.Err()
}

// LoadEnvFiles loads .env variants in Vite priority order (.env <
// .env.local < .env.[mode] < .env.[mode].local) and returns
// import.meta.env defines for variables matching prefix.
func LoadEnvFiles(basePath, mode, prefix string) (map[string]string, error) {
	variants := []string{
		basePath,
		basePath + ".local",
		basePath + "." + mode,
		basePath + "." + mode + ".local",
	}

	result := make(map[string]string)
	for _, path := range variants {
		defs, err := parseEnvFile(path, prefix)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		for k, v := range defs {
			result[k] = v
		}
	}
	return result, nil
}

func parseEnvFile(path, prefix string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	result := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		result["import.meta.env."+key] = value
	}
	return result, scanner.Err()
}

// EnvDefines returns the always-present import.meta.env / process.env
// defaults, overlaid with loaded values, matching a bundler's standard
// mode-dependent constants.
func EnvDefines(mode string, loaded map[string]string) map[string]string {
	defines := map[string]string{
		"process.env.NODE_ENV":     fmt.Sprintf("%q", prodOrDev(mode)),
		"import.meta.env.MODE":     fmt.Sprintf("%q", mode),
		"import.meta.env.DEV":      fmt.Sprintf("%v", mode != "production"),
		"import.meta.env.PROD":     fmt.Sprintf("%v", mode == "production"),
		"import.meta.env.SSR":      "false",
		"import.meta.env.BASE_URL": `"/"`,
	}
	for k, v := range loaded {
		defines[k] = fmt.Sprintf("%q", v)
	}
	return defines
}

func prodOrDev(mode string) string {
	if mode == "production" {
		return "production"
	}
	return "development"
}

// TSConfigPathAliases reads a tsconfig.json's compilerOptions.paths and
// returns import map entries relative to projectRoot: wildcard entries
// ("@/*": ["./src/*"]) become prefix mappings ("@/" -> "/src/"); exact
// entries become exact path mappings.
func TSConfigPathAliases(tsconfigPath, projectRoot string) map[string]string {
	data, err := os.ReadFile(tsconfigPath)
	if err != nil {
		return nil
	}
	clean := stripJSONC(data)

	var parsed struct {
		CompilerOptions struct {
			BaseURL string              `json:"baseUrl"`
			Paths   map[string][]string `json:"paths"`
		} `json:"compilerOptions"`
	}
	if err := unmarshalJSON(clean, &parsed); err != nil || len(parsed.CompilerOptions.Paths) == 0 {
		return nil
	}

	baseURL := parsed.CompilerOptions.BaseURL
	if baseURL == "" {
		baseURL = "."
	}
	absBaseURL := filepath.Join(filepath.Dir(tsconfigPath), baseURL)

	entries := make(map[string]string)
	for alias, targets := range parsed.CompilerOptions.Paths {
		if len(targets) == 0 {
			continue
		}
		target := targets[0]

		if strings.HasSuffix(alias, "/*") && strings.HasSuffix(target, "/*") {
			prefix := strings.TrimSuffix(alias, "*")
			targetDir := strings.TrimSuffix(target, "*")
			absTarget := filepath.Join(absBaseURL, targetDir)
			rel, err := filepath.Rel(projectRoot, absTarget)
			if err != nil {
				continue
			}
			entries[prefix] = "/" + filepath.ToSlash(rel) + "/"
		} else {
			absTarget := filepath.Join(absBaseURL, target)
			rel, err := filepath.Rel(projectRoot, absTarget)
			if err != nil {
				continue
			}
			entries[alias] = "/" + filepath.ToSlash(rel)
		}
	}
	return entries
}
