package cli

import (
	"bytes"
	"os"
	"os/exec"
	"strings"
	"testing"
)

func TestParseArgsDefault(t *testing.T) {
	if got := ParseArgs([]string{}); got != ".env" {
		t.Fatalf("want .env, got %s", got)
	}
}

func TestParseArgsShortFlag(t *testing.T) {
	if got := ParseArgs([]string{"-e", "prod.env"}); got != "prod.env" {
		t.Fatalf("want prod.env, got %s", got)
	}
}

func TestParseArgsLongFlag(t *testing.T) {
	if got := ParseArgs([]string{"--env", "prod.env"}); got != "prod.env" {
		t.Fatalf("want prod.env, got %s", got)
	}
}

func TestParseArgsMissingValueFallsBack(t *testing.T) {
	if got := ParseArgs([]string{"--env"}); got != ".env" {
		t.Fatalf("want .env, got %s", got)
	}
}

func TestLoggerMethods(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLoggerTo(&out, &errOut)

	l.Info("fetching")
	l.Warn("slow")
	l.Success("saved")
	l.Failure("skipped")
	l.Error("broken")

	stdout := out.String()
	if !strings.Contains(stdout, "fetching") || !strings.Contains(stdout, "INF") {
		t.Fatalf("missing info output: %q", stdout)
	}
	if !strings.Contains(stdout, "slow") || !strings.Contains(stdout, "WRN") {
		t.Fatalf("missing warn output: %q", stdout)
	}
	if !strings.Contains(stdout, "saved") || !strings.Contains(stdout, "status=ok") {
		t.Fatalf("missing success output: %q", stdout)
	}
	if !strings.Contains(stdout, "skipped") || !strings.Contains(stdout, "status=fail") {
		t.Fatalf("missing failure output: %q", stdout)
	}
	if stderr := errOut.String(); !strings.Contains(stderr, "broken") || !strings.Contains(stderr, "ERR") {
		t.Fatalf("missing error output: %q", stderr)
	}
}

func TestMediaProgressUpdateAndStop(t *testing.T) {
	oldEnabled := defaultProgressManager.enabled
	defaultProgressManager.enabled = true
	defer func() { defaultProgressManager.enabled = oldEnabled }()

	p := NewMediaProgress("JinSoul #101")
	p.Update(1, 3)
	p.Update(3, 3)

	defaultProgressManager.mu.Lock()
	count, ok := defaultProgressManager.counts["JinSoul #101"]
	defaultProgressManager.mu.Unlock()
	if !ok || count.saved != 3 || count.total != 3 {
		t.Fatalf("unexpected progress state: %+v", count)
	}

	p.Stop()
	defaultProgressManager.mu.Lock()
	_, ok = defaultProgressManager.counts["JinSoul #101"]
	defaultProgressManager.mu.Unlock()
	if ok {
		t.Fatal("stop should clear the tracker")
	}
}

func TestMediaProgressIgnoresUnknownTotal(t *testing.T) {
	oldEnabled := defaultProgressManager.enabled
	defaultProgressManager.enabled = true
	defer func() { defaultProgressManager.enabled = oldEnabled }()

	p := NewMediaProgress("pending")
	p.Update(1, 0)
	defaultProgressManager.mu.Lock()
	_, ok := defaultProgressManager.counts["pending"]
	defaultProgressManager.mu.Unlock()
	if ok {
		t.Fatal("zero total must not record state")
	}
	p.Stop()
}

func TestExit(t *testing.T) {
	if os.Getenv("FABFETCH_TEST_EXIT") == "1" {
		Exit(7)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestExit")
	cmd.Env = append(os.Environ(), "FABFETCH_TEST_EXIT=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected process to exit with code")
	}
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected ExitError, got %T", err)
	}
	if exitErr.ExitCode() != 7 {
		t.Fatalf("want exit code 7, got %d", exitErr.ExitCode())
	}
}
