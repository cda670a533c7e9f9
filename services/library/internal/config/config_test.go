package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const baseYAML = `
port: "8080"
databaseURL: "sqlite:/tmp/library.db"
jwtSecret: "0123456789abcdef0123456789abcdef"
sessionTTL: "2h"
trustedProxyCidrs: ["10.0.0.0/8"]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Chdir(dir)
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, baseYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SessionTTLDuration() != 2*time.Hour {
		t.Fatalf("session ttl = %v", cfg.SessionTTLDuration())
	}
	if cfg.JWTLeewayDuration() != 30*time.Second {
		t.Fatalf("jwt leeway = %v", cfg.JWTLeewayDuration())
	}
	if cfg.LogLevel != "info" || cfg.MaxUploadBytes != 5<<20 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.EventStream != "library:events" || cfg.AMQPExchange != "library.events" {
		t.Fatalf("unexpected event defaults: %q %q", cfg.EventStream, cfg.AMQPExchange)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, baseYAML)
	t.Setenv("DATABASE_URL", "postgres://library@db/library")
	t.Setenv("PORT", "9090")
	t.Setenv("LIBRARY_TRUSTED_PROXY_CIDRS", "192.168.0.0/16, 127.0.0.1")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://library@db/library" || cfg.Port != "9090" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if len(cfg.TrustedProxyCIDRs) != 2 || cfg.TrustedProxyCIDRs[1] != "127.0.0.1" {
		t.Fatalf("unexpected proxies: %v", cfg.TrustedProxyCIDRs)
	}
	if !cfg.MinioUseSSL {
		t.Fatalf("expected minio ssl override")
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	path := writeConfig(t, baseYAML)
	t.Setenv("OTLP_ENDPOINT", "")
	os.Unsetenv("OTLP_ENDPOINT")
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), ".env"), []byte("OTLP_ENDPOINT=collector:4318\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OTLPEndpoint != "collector:4318" {
		t.Fatalf("expected .env value, got %q", cfg.OTLPEndpoint)
	}
}

func TestLoadValidates(t *testing.T) {
	cases := map[string]string{
		"port":        strings.Replace(baseYAML, `port: "8080"`, "", 1),
		"databaseURL": strings.Replace(baseYAML, `databaseURL: "sqlite:/tmp/library.db"`, "", 1),
		"jwtSecret":   strings.Replace(baseYAML, "0123456789abcdef0123456789abcdef", "short", 1),
		"sessionTTL":  strings.Replace(baseYAML, `"2h"`, `"soon"`, 1),
		"minio":       baseYAML + "minioEndpoint: \"minio:9000\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, body)
			if _, err := Load(path); err == nil {
				t.Fatalf("expected validation error")
			} else if !strings.Contains(err.Error(), name) {
				t.Fatalf("error %q does not mention %s", err, name)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	if d, err := ParseDuration("", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("fallback: %v %v", d, err)
	}
	if _, err := ParseDuration("-1s", time.Minute); err == nil {
		t.Fatalf("expected negative duration to fail")
	}
}
