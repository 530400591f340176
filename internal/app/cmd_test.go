package app

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{"引数なし", nil, CommandServe},
		{"serve", []string{"serve"}, CommandServe},
		{"worker", []string{"worker"}, CommandWorker},
		{"migrate", []string{"migrate"}, CommandMigrate},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck},
		{"help", []string{"help"}, CommandHelp},
		{"-hはhelp", []string{"-h"}, CommandHelp},
		{"--helpはhelp", []string{"--help"}, CommandHelp},
		{"未知のコマンドはserve", []string{"unknown"}, CommandServe},
		{"大文字は区別する", []string{"Worker"}, CommandServe},
		{"後続の引数は無視", []string{"worker", "--flag", "value"}, CommandWorker},
		{"2番目の引数は見ない", []string{"serve", "migrate"}, CommandServe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCommand(tt.args); got != tt.want {
				t.Errorf("ParseCommand(%q) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestUsage_ListsEveryCommand(t *testing.T) {
	var buf bytes.Buffer
	Usage(&buf)

	out := buf.String()
	for _, c := range commands {
		if !strings.Contains(out, "  "+string(c.cmd)+" ") {
			t.Errorf("usage does not list %q:\n%s", c.cmd, out)
		}
	}
}
