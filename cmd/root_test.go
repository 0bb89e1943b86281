package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTemplatesCommand(t *testing.T) {
	out, err := runCmd(t, "templates", "--catalog", filepath.Join("..", "config", "storybook.yaml"))
	if err != nil {
		t.Fatalf("templates returned error: %v", err)
	}
	for _, want := range []string{"dragons_20", "vacation_20", "boy_model"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output %q", want, out)
		}
	}
}

func TestGenerateRequiresFlags(t *testing.T) {
	_, err := runCmd(t, "generate", "--story", "dragons_20")
	if err == nil || !strings.Contains(err.Error(), "child-name") {
		t.Errorf("Expected missing child-name error, got %v", err)
	}
}
