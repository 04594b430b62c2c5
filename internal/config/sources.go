package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

// Build-time values. Set them with -ldflags, for example:
//
//	go build -ldflags "-X 'github.com/nfrund/chatapp/internal/config.buildIssuerURL=https://dex.example/dex'"
var (
	buildIssuerURL   string
	buildClientID    string
	buildRedirectURI string
	buildScopes      string
	buildAPIBaseURL  string
	buildWSURL       string
)

// BuildSource returns the values baked into the binary at build time.
func BuildSource() Source {
	return Source{
		KeyIssuerURL:   buildIssuerURL,
		KeyClientID:    buildClientID,
		KeyRedirectURI: buildRedirectURI,
		KeyScopes:      buildScopes,
		KeyAPIBaseURL:  buildAPIBaseURL,
		KeyWSURL:       buildWSURL,
	}
}

// runtimeAssignment matches the browser form of the runtime object:
// window.__CHATAPP_CONFIG__ = { ... };
var runtimeAssignment = regexp.MustCompile(`(?s)^\s*(?:window\.)?__CHATAPP_CONFIG__\s*=\s*(\{.*\})\s*;?\s*$`)

// LoadRuntimeSource reads the runtime configuration object from path.
// A missing file yields an empty source.
func LoadRuntimeSource(fsys afero.Fs, path string) (Source, error) {
	if path == "" {
		return Source{}, nil
	}
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("Runtime config file not found", "path", path)
			return Source{}, nil
		}
		return nil, fmt.Errorf("read runtime config %s: %w", path, err)
	}
	return ParseRuntimeObject(data)
}

// ParseRuntimeObject decodes either a bare JSON object or a
// window.__CHATAPP_CONFIG__ assignment. Unknown keys are ignored.
func ParseRuntimeObject(data []byte) (Source, error) {
	data = bytes.TrimSpace(data)
	if m := runtimeAssignment.FindSubmatch(data); m != nil {
		data = m[1]
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse runtime config: %w", err)
	}
	src := Source{}
	for _, key := range Keys {
		if v, ok := raw[key].(string); ok {
			src[key] = v
		}
	}
	return src, nil
}

// EnvSource overlays values from the given .env files and then the process
// environment onto base. The process environment is not modified.
func EnvSource(base Source, envFiles ...string) Source {
	out := Source{}
	for k, v := range base {
		out[k] = v
	}
	for _, file := range envFiles {
		values, err := godotenv.Read(file)
		if err != nil {
			slog.Debug("No .env file loaded", "path", file, "error", err)
			continue
		}
		for _, key := range Keys {
			if v, ok := values[key]; ok && v != "" {
				out[key] = v
			}
		}
	}
	for _, key := range Keys {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			out[key] = v
		}
	}
	return out
}

// RuntimeScript renders the public configuration as the browser runtime object.
func RuntimeScript(cfg *Config) ([]byte, error) {
	body, err := json.MarshalIndent(cfg.Public(), "", "  ")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("window.__CHATAPP_CONFIG__ = ")
	buf.Write(body)
	buf.WriteString(";\n")
	return buf.Bytes(), nil
}
