package shell

import (
	"fmt"
	"strings"
	"testing"
)

var ExpectedOutput map[string][]interface{} = map[string][]interface{}{
	"echo 'test-exec-cmd-override'": {"override-test\n", nil},
}

func ExecCmdOverride(cmdStr string, envVal []string) (string, error) {
	if output, exists := ExpectedOutput[cmdStr]; exists {
		if output[1] != nil {
			return output[0].(string), output[1].(error)
		}
		return output[0].(string), nil
	}
	return "", fmt.Errorf("Unexpected command for override: %s", cmdStr)
}

func TestGetFullCmdStr(t *testing.T) {
	cmd := GetFullCmdStr("echo 'hello'", []string{"FOO=bar"})
	if !strings.Contains(cmd, "FOO=bar echo 'hello'") {
		t.Errorf("Expected env prefix for echo, got: %s", cmd)
	}
}

func TestExecCmd(t *testing.T) {
	out, err := ExecCmd("echo 'test-exec-cmd'", nil)
	if err != nil {
		t.Fatalf("ExecCmd failed: %v", err)
	}
	if !strings.Contains(out, "test-exec-cmd") {
		t.Errorf("Expected output to contain 'test-exec-cmd', got: %s", out)
	}
}

func TestExecCmdWithStream(t *testing.T) {
	out, err := ExecCmdWithStream("echo 'test-exec-stream'", nil)
	if err != nil {
		t.Fatalf("ExecCmdWithStream failed: %v", err)
	}
	if !strings.Contains(out, "test-exec-stream") {
		t.Errorf("Expected output to contain 'test-exec-stream', got: %s", out)
	}
}

func TestExecCmdOverride(t *testing.T) {
	var originalExecCmd = ExecCmd
	defer func() { ExecCmd = originalExecCmd }()
	ExecCmd = ExecCmdOverride
	out, err := ExecCmd("echo 'test-exec-cmd-override'", nil)
	if err != nil {
		t.Fatalf("ExecCmd with override failed: %v", err)
	}
	if !strings.Contains(out, "override-test") {
		t.Errorf("Expected output to contain 'override-test', got: %s", out)
	}
}

func TestIsCommandExist(t *testing.T) {
	if !IsCommandExist("echo") {
		t.Error("expected echo to exist")
	}
	if IsCommandExist("definitely-not-a-command-xyz") {
		t.Error("expected bogus command to be absent")
	}
}
