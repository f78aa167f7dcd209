package tracker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBatchFileSkipsBlankLines(t *testing.T) {
	input := "/bin/ls -la\n\n/bin/echo hello world\n"
	batches, err := ParseBatchFile(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, batches, 2)
	assert.Equal(t, []string{"/bin/ls", "-la"}, batches[0])
	assert.Equal(t, []string{"/bin/echo", "hello", "world"}, batches[1])
}

func TestParseBatchFileStripsTrailingNewlineFromLastToken(t *testing.T) {
	input := "/bin/true arg1 arg2\n"
	batches, err := ParseBatchFile(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, batches, 1)
	assert.Equal(t, []string{"/bin/true", "arg1", "arg2"}, batches[0])
}

func TestParseBatchFileEmptyInput(t *testing.T) {
	batches, err := ParseBatchFile(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, batches)
}
