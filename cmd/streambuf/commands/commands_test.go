package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/haivivi/streambuf/pkg/frame"
)

func runCmd(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	verbose = false
	contextName = ""
	configPath = ""
	globalConfig = nil
	configLoadErr = nil

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	wOut.Close()
	wErr.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	var outBuf, errBuf bytes.Buffer
	outBuf.ReadFrom(rOut)
	errBuf.ReadFrom(rErr)

	stdout = outBuf.String()
	stderr = errBuf.String()
	if err != nil {
		exitCode = 1
		if stderr == "" {
			stderr = err.Error()
		}
	}

	resetFlags(rootCmd)
	return
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
		f.Value.Set(f.DefValue)
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// testEnv creates an isolated config with one context whose store and
// dump directories live under a temp dir. Returns the --config args to
// prepend to every command.
func testEnv(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	cfgArgs := []string{"--config", filepath.Join(dir, "config.yaml")}

	args := append(cfgArgs, "config", "add-context", "test",
		"--store-dir", filepath.Join(dir, "store"),
		"--dump-dir", filepath.Join(dir, "dumps"))
	_, stderr, code := runCmd(t, args...)
	if code != 0 {
		t.Fatalf("add-context failed: %s", stderr)
	}
	return cfgArgs
}

func TestConfigContextLifecycle(t *testing.T) {
	dir := t.TempDir()
	cfg := []string{"--config", filepath.Join(dir, "config.yaml")}

	stdout, stderr, code := runCmd(t, append(cfg, "config", "add-context", "dev",
		"--source", "tcp://localhost:9000")...)
	if code != 0 {
		t.Fatalf("add-context failed: %s", stderr)
	}
	if !strings.Contains(stdout, "added") {
		t.Fatalf("expected 'added' in output, got: %s", stdout)
	}

	// First context becomes current.
	stdout, _, code = runCmd(t, append(cfg, "config", "list-contexts")...)
	if code != 0 {
		t.Fatalf("list-contexts failed, exit %d", code)
	}
	if !strings.Contains(stdout, "dev") || !strings.Contains(stdout, "*") {
		t.Fatalf("expected current 'dev' in listing, got: %s", stdout)
	}

	stdout, _, code = runCmd(t, append(cfg, "config", "show-context", "dev")...)
	if code != 0 {
		t.Fatalf("show-context failed, exit %d", code)
	}
	if !strings.Contains(stdout, "tcp://localhost:9000") {
		t.Fatalf("expected source in output, got: %s", stdout)
	}

	_, _, code = runCmd(t, append(cfg, "config", "delete-context", "dev")...)
	if code != 0 {
		t.Fatalf("delete-context failed, exit %d", code)
	}
	_, stderr, code = runCmd(t, append(cfg, "config", "show-context", "dev")...)
	if code == 0 {
		t.Fatal("expected non-zero exit for deleted context")
	}
	if !strings.Contains(stderr, "not found") {
		t.Fatalf("expected 'not found', got: %s", stderr)
	}
}

func TestConfigShowMasksSecret(t *testing.T) {
	dir := t.TempDir()
	cfg := []string{"--config", filepath.Join(dir, "config.yaml")}

	runCmd(t, append(cfg, "config", "add-context", "prod",
		"--s3-bucket", "captures", "--s3-region", "us-west-2",
		"--s3-access-key", "AKIAEXAMPLEKEY", "--s3-secret-key", "supersecretvalue")...)

	stdout, _, code := runCmd(t, append(cfg, "config", "show-context", "prod")...)
	if code != 0 {
		t.Fatalf("show-context failed, exit %d", code)
	}
	if strings.Contains(stdout, "supersecretvalue") {
		t.Fatalf("secret key should be masked, got: %s", stdout)
	}
	if !strings.Contains(stdout, "captures") {
		t.Fatalf("expected bucket in output, got: %s", stdout)
	}
}

// serveFrames listens on loopback, writes n frames to the first
// connection, and closes it.
func serveFrames(t *testing.T, n int) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		for i := 0; i < n; i++ {
			frame.Write(conn, []byte(fmt.Sprintf("payload-%d", i)))
		}
		conn.Close()
	}()
	return "tcp://" + ln.Addr().String()
}

func TestRecordReplayEndToEnd(t *testing.T) {
	cfg := testEnv(t)
	url := serveFrames(t, 3)

	_, stderr, code := runCmd(t, append(cfg, "record", url)...)
	if code != 0 {
		t.Fatalf("record failed: %s", stderr)
	}

	// Fetch the session ID from the JSON listing.
	stdout, stderr, code := runCmd(t, append(cfg, "sessions", "-o", "json")...)
	if code != 0 {
		t.Fatalf("sessions failed: %s", stderr)
	}
	var list []struct {
		ID     string `json:"id"`
		Source string `json:"source"`
	}
	if err := json.Unmarshal([]byte(stdout), &list); err != nil {
		t.Fatalf("parse sessions output: %v\n%s", err, stdout)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 session, got %d", len(list))
	}
	id := list[0].ID
	if list[0].Source != url {
		t.Errorf("session source = %q, want %q", list[0].Source, url)
	}

	stdout, stderr, code = runCmd(t, append(cfg, "replay", id)...)
	if code != 0 {
		t.Fatalf("replay failed: %s", stderr)
	}
	if !strings.Contains(stdout, "replayed 3 frames") {
		t.Fatalf("expected 3 replayed frames, got: %s", stdout)
	}

	// The recorded stream ends with a clean end-of-input chunk.
	stdout, stderr, code = runCmd(t, append(cfg, "inspect", id, "--jq", ".chunks[-1].n")...)
	if code != 0 {
		t.Fatalf("inspect failed: %s", stderr)
	}
	if strings.TrimSpace(stdout) != "0" {
		t.Fatalf("last chunk n = %s, want 0", strings.TrimSpace(stdout))
	}
}

func TestRecordManifestFromStdin(t *testing.T) {
	cfg := testEnv(t)
	url := serveFrames(t, 1)

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprintf(w, "source: %s\nnote: from stdin\n", url)
	w.Close()
	oldStdin := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = oldStdin }()

	if _, stderr, code := runCmd(t, append(cfg, "record", "-f", "-")...); code != 0 {
		t.Fatalf("record -f - failed: %s", stderr)
	}

	stdout, stderr, code := runCmd(t, append(cfg, "sessions", "-o", "json")...)
	if code != 0 {
		t.Fatalf("sessions failed: %s", stderr)
	}
	var list []struct {
		Source string `json:"source"`
		Note   string `json:"note"`
	}
	if err := json.Unmarshal([]byte(stdout), &list); err != nil || len(list) != 1 {
		t.Fatalf("parse sessions output: %v\n%s", err, stdout)
	}
	if list[0].Source != url {
		t.Errorf("session source = %q, want %q", list[0].Source, url)
	}
	if list[0].Note != "from stdin" {
		t.Errorf("session note = %q, want %q", list[0].Note, "from stdin")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	cfg := testEnv(t)
	url := serveFrames(t, 2)

	if _, stderr, code := runCmd(t, append(cfg, "record", url)...); code != 0 {
		t.Fatalf("record failed: %s", stderr)
	}
	stdout, _, _ := runCmd(t, append(cfg, "sessions", "-o", "json")...)
	var list []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(stdout), &list); err != nil || len(list) != 1 {
		t.Fatalf("parse sessions output: %v\n%s", err, stdout)
	}
	id := list[0].ID

	if _, stderr, code := runCmd(t, append(cfg, "export", id, "trip.dump")...); code != 0 {
		t.Fatalf("export failed: %s", stderr)
	}

	stdout, _, code := runCmd(t, append(cfg, "dumps")...)
	if code != 0 || !strings.Contains(stdout, "trip.dump") {
		t.Fatalf("expected trip.dump in listing, got: %s", stdout)
	}

	// Importing over an existing session fails without writing.
	if _, stderr, code := runCmd(t, append(cfg, "import", "trip.dump")...); code == 0 {
		t.Fatal("expected import of existing session to fail")
	} else if !strings.Contains(stderr, "exists") {
		t.Fatalf("expected 'exists' error, got: %s", stderr)
	}

	if _, stderr, code := runCmd(t, append(cfg, "sessions", "delete", id)...); code != 0 {
		t.Fatalf("delete failed: %s", stderr)
	}
	if _, stderr, code := runCmd(t, append(cfg, "import", "trip.dump")...); code != 0 {
		t.Fatalf("import failed: %s", stderr)
	}

	stdout, stderr, code := runCmd(t, append(cfg, "replay", id)...)
	if code != 0 {
		t.Fatalf("replay after import failed: %s", stderr)
	}
	if !strings.Contains(stdout, "replayed 2 frames") {
		t.Fatalf("expected 2 replayed frames, got: %s", stdout)
	}
}
