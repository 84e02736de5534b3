package subprocess

import (
	"bytes"
	"context"
	"log"
	"testing"
)

func TestSanitizeLogName(t *testing.T) {
	got := SanitizeLogName("btrfs-send", "/mnt/dest/foo")
	want := "btrfs-send-mnt-dest-foo"
	if got != want {
		t.Fatalf("SanitizeLogName() = %q, want %q", got, want)
	}
}

// TestRunDryRunDoesNotExecute verifies the -n contract: a dry-run Runner
// logs the composed command and returns success without spawning anything,
// even for a command that does not exist on the test host.
func TestRunDryRunDoesNotExecute(t *testing.T) {
	var buf bytes.Buffer
	runner := New(log.New(&buf, "", 0), 1, true)

	if err := runner.Run(context.Background(), "this-binary-does-not-exist", "arg"); err != nil {
		t.Fatalf("dry-run Run() returned error: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected the composed command to be logged in dry-run mode")
	}
}
