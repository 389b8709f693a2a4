package launcher

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestRenderExactLine(t *testing.T) {
	script, err := Render(Spec{
		Interpreter: "/usr/local/bin/python3.12",
		Artifact:    "/usr/local/libexec/tool.pyz",
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	want := "#!/bin/bash\nexec /usr/local/bin/python3.12 /usr/local/libexec/tool.pyz \"$@\"\n"
	if script != want {
		t.Errorf("script = %q, want %q", script, want)
	}
}

func TestRenderQuotesPaths(t *testing.T) {
	script, err := Render(Spec{
		Shell:       "/bin/sh",
		Interpreter: "/opt/my tools/python3",
		Artifact:    "/opt/it's/tool.pyz",
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.HasPrefix(script, "#!/bin/sh\n") {
		t.Errorf("script should start with the given shell: %q", script)
	}
	if strings.Contains(script, "exec /opt/my tools/python3 ") {
		t.Errorf("interpreter path with a space was not quoted: %q", script)
	}
	if !strings.Contains(script, `"$@"`) {
		t.Errorf("script should forward arguments: %q", script)
	}
}

func TestRenderRejectsBadSpec(t *testing.T) {
	tests := []Spec{
		{Interpreter: "", Artifact: "/a"},
		{Interpreter: "/a", Artifact: ""},
		{Shell: "bash", Interpreter: "/a", Artifact: "/b"},
		{Shell: "/bin/ba sh", Interpreter: "/a", Artifact: "/b"},
	}
	for _, spec := range tests {
		if _, err := Render(spec); !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("Render(%+v) = %v, want ErrInvalidSpec", spec, err)
		}
	}
}

func TestWriteSetsMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bin", "tool")

	// An existing read-only file must end up executable too.
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := Write(path, "#!/bin/sh\n"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("mode = %o, want 755", info.Mode().Perm())
	}
	data, _ := os.ReadFile(path)
	if string(data) != "#!/bin/sh\n" {
		t.Errorf("content = %q", data)
	}
}

func TestLauncherForwardsArguments(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell launchers are POSIX only")
	}
	dir := t.TempDir()

	// The fake interpreter echoes what it was invoked with.
	interp := filepath.Join(dir, "interp")
	if err := os.WriteFile(interp, []byte("#!/bin/sh\necho \"$@\"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	artifact := filepath.Join(dir, "tool.pyz")

	script, err := Render(Spec{Shell: "/bin/sh", Interpreter: interp, Artifact: artifact})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "tool")
	if err := Write(path, script); err != nil {
		t.Fatal(err)
	}

	out, err := exec.Command(path, "--version").Output()
	if err != nil {
		t.Fatalf("running launcher: %v", err)
	}
	if got, want := strings.TrimSpace(string(out)), artifact+" --version"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}
