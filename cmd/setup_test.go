package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	tu "github.com/soundshelf/soundshelf/internal/testing"
	"github.com/urfave/cli/v3"
)

func TestSetup(t *testing.T) {
	wd := tu.MustGetwd(t)
	tu.MustChdir(t, t.TempDir())
	defer tu.MustChdir(t, wd)

	runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
	app := &cli.Command{Name: "soundshelf", Commands: runner.register()}

	if err := app.Run(context.Background(), []string{"soundshelf", "setup", "--config", "config.toml"}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	tu.AssertFileExists(t, "config.toml")
	tu.AssertFileExists(t, runner.config.Database.Path)

	content := tu.MustReadFile(t, "config.toml")
	if !strings.Contains(content, "[credentials.spotify]") {
		t.Errorf("created config should contain a spotify credentials section, got:\n%s", content)
	}

	// Rerunning against the existing config and database is a no-op.
	if err := app.Run(context.Background(), []string{"soundshelf", "setup", "--config", "config.toml"}); err != nil {
		t.Fatalf("second setup failed: %v", err)
	}
}
