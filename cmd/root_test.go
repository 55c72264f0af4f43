package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func TestOverlayConfigPriority(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cacheDir := flags.String("cache-dir", "bronze", "")
	limit := flags.Int("limit", 0, "")
	resource := flags.String("resource", "", "")

	t.Setenv("BDK_CACHE_DIR", "/env/cache")
	t.Setenv("BDK_LIMIT", "9")
	if err := flags.Set("limit", "5"); err != nil {
		t.Fatal(err)
	}

	if err := overlayConfig(flags, "BDK"); err != nil {
		t.Fatalf("overlaying config: %v", err)
	}
	if *cacheDir != "/env/cache" {
		t.Fatalf("env must override the default, got %q", *cacheDir)
	}
	if *limit != 5 {
		t.Fatalf("command line must override env, got %d", *limit)
	}
	if *resource != "" {
		t.Fatalf("untouched flag must keep its default, got %q", *resource)
	}
}

func TestOverlayConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bdk.toml")
	if err := os.WriteFile(path, []byte("cache-dir = \"/from/file\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cacheDir := flags.String("cache-dir", "bronze", "")
	flags.String("config", "", "")
	if err := flags.Set("config", path); err != nil {
		t.Fatal(err)
	}

	if err := overlayConfig(flags, "BDK"); err != nil {
		t.Fatalf("overlaying config: %v", err)
	}
	if *cacheDir != "/from/file" {
		t.Fatalf("config file must override the default, got %q", *cacheDir)
	}
}

func TestOverlayConfigMissingFile(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	if err := flags.Set("config", "/no/such/file.toml"); err != nil {
		t.Fatal(err)
	}
	if err := overlayConfig(flags, "BDK"); err == nil {
		t.Fatal("expected error for unreadable config file")
	}
}
