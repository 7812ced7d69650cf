package toolbin

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writeFakeBin(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0755); err != nil {
		t.Fatalf("failed to write fake binary: %v", err)
	}
	return path
}

func TestResolveEnvOverride(t *testing.T) {
	bin := writeFakeBin(t, t.TempDir(), "huestetesttool")
	t.Setenv("HUESTETESTTOOL_BIN", bin)

	r := &Resolver{}
	got, ok := r.Resolve("huestetesttool")
	if !ok {
		t.Fatal("expected tool to resolve via env var")
	}
	if got != bin {
		t.Fatalf("expected %s, got %s", bin, got)
	}
}

func TestResolveConfigOverrideBeatsEnv(t *testing.T) {
	dir := t.TempDir()
	envBin := writeFakeBin(t, dir, "env-tool")
	cfgBin := writeFakeBin(t, dir, "cfg-tool")
	t.Setenv("HUESTETESTTOOL_BIN", envBin)

	r := &Resolver{Overrides: map[string]string{"huestetesttool": cfgBin}}
	got, ok := r.Resolve("huestetesttool")
	if !ok {
		t.Fatal("expected tool to resolve")
	}
	if got != cfgBin {
		t.Fatalf("config override should win, got %s", got)
	}
}

func TestResolveMissingOverridePathIgnored(t *testing.T) {
	bin := writeFakeBin(t, t.TempDir(), "huestetesttool")
	t.Setenv("HUESTETESTTOOL_BIN", bin)

	r := &Resolver{Overrides: map[string]string{"huestetesttool": "/nonexistent/path/tool"}}
	got, ok := r.Resolve("huestetesttool")
	if !ok || got != bin {
		t.Fatalf("expected fallthrough to env var, got %q ok=%v", got, ok)
	}
}

func TestResolveVendorDir(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("vendor dir test uses XDG layout")
	}
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)
	binDir := filepath.Join(base, "Hueste", "bin")
	if err := os.MkdirAll(binDir, 0755); err != nil {
		t.Fatal(err)
	}
	bin := writeFakeBin(t, binDir, "hueste-vendor-tool")

	r := &Resolver{}
	got, ok := r.Resolve("hueste-vendor-tool")
	if !ok {
		t.Fatal("expected vendor-dir resolution")
	}
	if got != bin {
		t.Fatalf("expected %s, got %s", bin, got)
	}
}

func TestResolvePathLookup(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sh lookup is POSIX-only")
	}
	r := &Resolver{}
	got, ok := r.Resolve("sh")
	if !ok || got == "" {
		t.Fatalf("expected sh to resolve, got %q ok=%v", got, ok)
	}
}

func TestResolveUnknownTool(t *testing.T) {
	r := &Resolver{}
	got, ok := r.Resolve("definitely-not-a-real-tool-xyzzy")
	if ok {
		t.Fatalf("expected no resolution, got %s", got)
	}
}

func TestLoginShellPrecedence(t *testing.T) {
	if got := LoginShell("/bin/zsh"); got != "/bin/zsh" {
		t.Fatalf("configured shell should win, got %s", got)
	}

	t.Setenv("SHELL", "/bin/bash")
	if got := LoginShell(""); got != "/bin/bash" {
		t.Fatalf("expected $SHELL, got %s", got)
	}

	t.Setenv("SHELL", "")
	if got := LoginShell(""); got != "/bin/sh" {
		t.Fatalf("expected /bin/sh fallback, got %s", got)
	}
}
