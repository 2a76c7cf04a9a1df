package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootRejectsInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "xml", "lower", "whatever.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "boom")))
	assert.Equal(t, ExitFailure, GetExitCode(WrapExitError(ExitFailure, "boom", errors.New("inner"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}

func TestExitErrorUnwraps(t *testing.T) {
	inner := errors.New("inner")
	err := WrapExitError(ExitCommandError, "outer", inner)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "outer: inner", err.Error())
}

func TestFormatterSuccessJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}
	require.NoError(t, f.Success(map[string]string{"k": "v"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
}

func TestFormatterErrorText(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}
	require.NoError(t, f.Error("UNBOUND_VARIABLE", "variable `a` referenced before assignment", nil))
	assert.Contains(t, buf.String(), "Error [UNBOUND_VARIABLE]: variable `a` referenced before assignment")
}

func TestFormatterErrorJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}
	require.NoError(t, f.Error("TYPE_AMBIGUITY", "boom", "control"))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "TYPE_AMBIGUITY", resp.Error.Code)
	assert.Equal(t, "control", resp.Error.Details)
}

func TestVerboseLogGoesToErrWriter(t *testing.T) {
	var out, errOut bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &errOut, Verbose: true}
	f.VerboseLog("hello %d", 7)
	assert.Empty(t, out.String())
	assert.Equal(t, "hello 7\n", errOut.String())

	quiet := &OutputFormatter{Writer: &out, Verbose: false}
	quiet.VerboseLog("dropped")
	assert.Empty(t, out.String())
}
