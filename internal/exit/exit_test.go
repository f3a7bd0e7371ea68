package exit

import (
	"bytes"
	"os"
	"testing"
)

func TestSuccess(t *testing.T) {
	message := "Usage: jsontally"
	result := Success(message)

	if result.ExitCode != CodeSuccess {
		t.Errorf("Success() ExitCode = %d, want %d", result.ExitCode, CodeSuccess)
	}
	if result.Message != message {
		t.Errorf("Success() Message = %q, want %q", result.Message, message)
	}
	if result.Output != os.Stdout {
		t.Error("Success() expected output to stdout")
	}
}

func TestError(t *testing.T) {
	result := Errorf("Error: %s", "no files specified")

	if result.ExitCode != CodeFailure {
		t.Errorf("Errorf() ExitCode = %d, want %d", result.ExitCode, CodeFailure)
	}
	if result.Message != "Error: no files specified" {
		t.Errorf("Errorf() Message = %q", result.Message)
	}
	if result.Output != os.Stderr {
		t.Error("Errorf() expected output to stderr")
	}
}

func TestResultPrint(t *testing.T) {
	var buf bytes.Buffer
	result := &Result{Output: &buf, ExitCode: CodeFailure, Message: "boom\n"}
	result.Print()

	if buf.String() != "boom\n" {
		t.Errorf("Print() wrote %q, want %q", buf.String(), "boom\n")
	}
}
