package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cli "github.com/urfave/cli/v2"
)

// TestAppRunRegistersFlagsWithoutPanic exercises newApp().Run the way main
// does. App.Setup appends the package-global version flag (alias "V") to
// app.Flags before any Action runs, so this test catches any of newApp's
// flags colliding with it on the same alias: flag.FlagSet.Var panics on a
// duplicate name, which would take down every invocation, --help included.
func TestAppRunRegistersFlagsWithoutPanic(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}

	require.NotPanics(t, func() {
		_ = app.Run([]string{"tracker", "--help"})
	})
}

func TestAppRunVersionFlagDoesNotPanic(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}

	require.NotPanics(t, func() {
		_ = app.Run([]string{"tracker", "--version"})
	})
}

func TestAppRunMissingExecutableIsAnError(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}
	// run reports this through cli.Exit; without a handler urfave/cli would
	// call os.Exit instead of returning the error to the test.
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run([]string{"tracker"})
	assert.Error(t, err)
}
