// Package toolbin locates executables for the supported external CLI tools.
package toolbin

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// vendorDirName is the application-data directory that holds vendor-managed
// tool binaries.
const vendorDirName = "Hueste"

// Resolver searches a fixed sequence of locations for a tool binary. An
// unresolved tool is not an error: callers fall back to invoking the bare
// name through a login shell.
type Resolver struct {
	// LoginShell is the shell used for the final login-shell PATH probe.
	// Empty selects $SHELL, then /bin/sh.
	LoginShell string

	// Overrides maps tool names to explicit binary paths from configuration.
	// An override is used only if the path exists.
	Overrides map[string]string
}

// Resolve returns the filesystem path of an executable for the logical tool
// name, or false when nothing was found.
//
// Search order: configured override, <TOOLNAME>_BIN environment variable,
// the vendor-managed bin directory, common install prefixes, PATH lookup,
// and finally a login-shell PATH lookup.
func (r *Resolver) Resolve(name string) (string, bool) {
	if r != nil && r.Overrides != nil {
		if p := r.Overrides[name]; p != "" && exists(p) {
			return p, true
		}
	}

	envVar := strings.ToUpper(name) + "_BIN"
	if p := os.Getenv(envVar); p != "" && exists(p) {
		return p, true
	}

	if p := vendorBinPath(name); p != "" && exists(p) {
		return p, true
	}

	for _, dir := range []string{"/opt/homebrew/bin", "/usr/local/bin", "/usr/bin"} {
		p := filepath.Join(dir, name)
		if exists(p) {
			return p, true
		}
	}

	if p, err := exec.LookPath(name); err == nil && p != "" {
		return p, true
	}

	if p := r.loginShellLookup(name); p != "" && exists(p) {
		return p, true
	}

	return "", false
}

// vendorBinPath returns the per-platform vendor bin candidate for name, or
// empty when the platform base directory cannot be determined.
func vendorBinPath(name string) string {
	switch runtime.GOOS {
	case "windows":
		local := os.Getenv("LOCALAPPDATA")
		if local == "" {
			return ""
		}
		return filepath.Join(local, vendorDirName, "bin", name+".exe")
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(home, "Library", "Application Support", vendorDirName, "bin", name)
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return ""
			}
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, vendorDirName, "bin", name)
	}
}

// loginShellLookup asks an interactive-style shell for the tool's path so
// that PATH entries configured in shell profiles (package managers, version
// managers) are picked up.
func (r *Resolver) loginShellLookup(name string) string {
	if runtime.GOOS == "windows" {
		return ""
	}
	shell := ""
	if r != nil {
		shell = r.LoginShell
	}
	out, err := exec.Command(LoginShell(shell), "-lc", "command -v "+name).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// LoginShell resolves the shell used for login-shell invocations: the
// configured value, then $SHELL, then /bin/sh.
func LoginShell(configured string) string {
	if configured != "" {
		return configured
	}
	if s := os.Getenv("SHELL"); s != "" {
		return s
	}
	return "/bin/sh"
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
