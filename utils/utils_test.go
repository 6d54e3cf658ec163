package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashStrings(t *testing.T) {
	require.Equal(t, HashStrings([]string{"PERSON", "CITY"}), HashStrings([]string{"PERSON", "CITY"}))
	require.NotEqual(t, HashStrings([]string{"PERSON", "CITY"}), HashStrings([]string{"CITY", "PERSON"}))
	require.NotEqual(t, HashStrings([]string{"ab", "c"}), HashStrings([]string{"a", "bc"}))
}

func TestReadLines(t *testing.T) {
	lines, err := ReadLines(strings.NewReader("PERSON\n\n  \nCITY\r\nCOUNTRY"))
	require.NoError(t, err)
	require.Equal(t, []string{"PERSON", "CITY", "COUNTRY"}, lines)
}

func TestRecoverWithError(t *testing.T) {
	run := func() (err error) {
		defer RecoverWithError(&err)
		panic("boom")
	}
	err := run()
	require.EqualError(t, err, "got panic: boom")
}
