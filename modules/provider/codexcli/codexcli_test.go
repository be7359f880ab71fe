package codexcli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// installFake places an executable shell script named codex on PATH.
func installFake(t *testing.T, script string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "codex")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestExecute_Success(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	t.Setenv("FAKE_ARGS", argsFile)
	installFake(t, `echo "$@" > "$FAKE_ARGS"
printf 'digest text'`)

	p := New(Config{Workdir: t.TempDir()})
	res, err := p.Execute(context.Background(), "make the digest", time.Minute)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Stdout != "digest text" || res.ReturnCode != 0 || res.Provider != "codex-cli" {
		t.Errorf("result = %+v", res)
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"exec", "--ask-for-approval never", "--sandbox workspace-write", "make the digest"} {
		if !strings.Contains(string(args), want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestExecute_NonZeroExitIsRawResult(t *testing.T) {
	installFake(t, `echo 'rate limited' >&2
exit 1`)

	p := New(Config{})
	res, err := p.Execute(context.Background(), "hi", time.Minute)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.ReturnCode != 1 || !strings.Contains(res.Stderr, "rate limited") {
		t.Errorf("result = %+v", res)
	}
}

func TestExecute_Timeout(t *testing.T) {
	installFake(t, `sleep 5`)

	p := New(Config{})
	_, err := p.Execute(context.Background(), "hi", 50*time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("err = %v", err)
	}
}

func TestExecute_CallerCancellation(t *testing.T) {
	installFake(t, `sleep 5`)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	p := New(Config{})
	_, err := p.Execute(ctx, "hi", time.Minute)
	if err == nil || !strings.Contains(err.Error(), "canceled") {
		t.Errorf("err = %v", err)
	}
	if err != nil && strings.Contains(err.Error(), "timed out") {
		t.Errorf("cancellation reported as timeout: %v", err)
	}
}

func TestExecute_BinaryMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	p := New(Config{})
	_, err := p.Execute(context.Background(), "hi", time.Minute)
	if err == nil || !strings.Contains(err.Error(), "not installed") {
		t.Errorf("err = %v", err)
	}
}
