package tiles

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := Command()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateAcceptsValidHand(t *testing.T) {
	out, err := execute(t, "validate", "1b", "1B,2B", "EW", "RD", "1F")
	require.NoError(t, err)
	assert.Equal(t, "valid hand (6 tiles)\n", out)
}

func TestValidateReportsViolations(t *testing.T) {
	out, err := execute(t, "validate", "XX", "1F", "1F")
	require.ErrorIs(t, err, ErrInvalidHand)
	assert.Contains(t, out, "Invalid tile code: XX")
	assert.Contains(t, out, "Tile 1F appears 2 times")
}

func TestList(t *testing.T) {
	out, err := execute(t, "list")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 42)
	assert.Equal(t, "1B  suited  4", lines[0])
	assert.Equal(t, "4S  season  1", lines[41])
}
