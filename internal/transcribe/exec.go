package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

// ExecEngine runs a whisper.cpp style CLI and takes its stdout as the text.
// The command line is split into an argument array, never run by a shell.
type ExecEngine struct {
	args     []string
	language string
}

func NewExecEngine(command, language string) (*ExecEngine, error) {
	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse transcribe command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("transcribe command is empty")
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		return nil, fmt.Errorf("transcribe command %s not found: %w", args[0], err)
	}
	return &ExecEngine{args: args, language: language}, nil
}

func (e *ExecEngine) Name() string { return "exec" }

func (e *ExecEngine) Recognize(ctx context.Context, path string) (Recognition, error) {
	args := append([]string{}, e.args[1:]...)
	if e.language != "" && e.language != "auto" {
		args = append(args, "-l", e.language)
	}
	args = append(args, "-f", path)

	cmd := exec.CommandContext(ctx, e.args[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return Recognition{}, fmt.Errorf("%s: %s", err, msg)
		}
		return Recognition{}, err
	}

	lang := e.language
	if lang == "auto" {
		lang = ""
	}
	return Recognition{Text: stdout.String(), Language: lang}, nil
}
