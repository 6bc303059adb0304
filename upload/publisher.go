package upload

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"shorts-pipeline/types"
)

// Submission is one rendered video going to one account
type Submission struct {
	JobID     string
	Platform  string
	Account   string
	VideoPath string
	Metadata  types.VideoMetadata
}

// Publisher sends a rendered video to a platform and returns the remote id
type Publisher interface {
	Publish(ctx context.Context, s Submission) (string, error)
}

// CommandPublisher delegates to an external program, invoked as:
//
//	<cmd> --platform p --account a --file f --title t --description d --tags a,b
//
// and expected to print the remote id on its last stdout line.
type CommandPublisher struct {
	Cmd string
}

var _ Publisher = (*CommandPublisher)(nil)

func (c *CommandPublisher) args(s Submission) []string {
	return []string{
		"--platform", s.Platform,
		"--account", s.Account,
		"--file", s.VideoPath,
		"--title", s.Metadata.Title,
		"--description", s.Metadata.Description,
		"--tags", strings.Join(s.Metadata.Tags, ","),
	}
}

func (c *CommandPublisher) Publish(ctx context.Context, s Submission) (string, error) {
	cmd := exec.CommandContext(ctx, c.Cmd, c.args(s)...)
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("%s: %w: %s", c.Cmd, err, strings.TrimSpace(string(ee.Stderr)))
		}
		return "", fmt.Errorf("%s: %w", c.Cmd, err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(lines[len(lines)-1]), nil
}
