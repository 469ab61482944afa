package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir_UsesXDGRuntimeDirWhenSet(t *testing.T) {
	td := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", td)

	got, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if got != td {
		t.Fatalf("Dir() = %q, want %q", got, td)
	}
}

func TestDir_FallbacksWhenXDGRuntimeDirMissing(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")

	got, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}

	wantRun := fmt.Sprintf("/run/user/%d", os.Getuid())
	wantTmp := fmt.Sprintf("/tmp/kiosk-runtime-%d", os.Getuid())
	if got != wantRun && got != wantTmp {
		t.Fatalf("Dir() = %q, want %q or %q", got, wantRun, wantTmp)
	}
}

func TestSocketPathAndProfileDir(t *testing.T) {
	td := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", td)

	socket, err := SocketPath()
	if err != nil {
		t.Fatalf("SocketPath() error: %v", err)
	}
	if !strings.HasSuffix(socket, "/kiosk.sock") {
		t.Fatalf("SocketPath() = %q, missing suffix", socket)
	}

	profile, err := ProfileDir(2)
	if err != nil {
		t.Fatalf("ProfileDir() error: %v", err)
	}
	if profile != filepath.Join(td, "kiosk-profiles", "window-2") {
		t.Fatalf("ProfileDir(2) = %q", profile)
	}
}

func TestResourcesDir(t *testing.T) {
	if got := ResourcesDir("/opt/kiosk", ""); got != "/opt/kiosk/resources" {
		t.Fatalf("ResourcesDir default = %q", got)
	}
	if got := ResourcesDir("/opt/kiosk", "/usr/share/kiosk"); got != "/usr/share/kiosk" {
		t.Fatalf("ResourcesDir override = %q", got)
	}
}

func TestExecutableDir(t *testing.T) {
	dir, err := ExecutableDir()
	if err != nil {
		t.Fatalf("ExecutableDir() error: %v", err)
	}
	if !filepath.IsAbs(dir) {
		t.Fatalf("ExecutableDir() = %q, want absolute path", dir)
	}
}
