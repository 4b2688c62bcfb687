package fat12_test

import (
	"testing"

	"github.com/rzos/fat12fs/errors"
	"github.com/rzos/fat12fs/file_systems/fat12"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatShortName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello.txt", "HELLO   TXT"},
		{"HELLO.TXT", "HELLO   TXT"},
		{"README", "README     "},
		{"a.b", "A       B  "},
		{"longfilename.text", "LONGFILETEX"},
		{"notes.", "NOTES      "},
		{"HELLO   TXT", "HELLO   TXT"},
		{"hello   txt", "HELLO   TXT"},
		{"ABCDEFGHTXT", "ABCDEFGHTXT"},
		{"my-file_1.txt", "MY-FILE_TXT"},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			formatted, err := fat12.FormatShortName(test.input)
			require.NoError(t, err)
			assert.Equal(t, test.expected, formatted)
			assert.Len(t, formatted, 11)
		})
	}
}

func TestFormatShortName__Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"only extension", ".txt"},
		{"space in base", "my file.txt"},
		{"space in extension", "file.t t"},
		{"star", "*.txt"},
		{"question mark", "file?.txt"},
		{"slash", "dir/file.txt"},
		{"backslash", "dir\\file.txt"},
		{"non-ASCII", "café.txt"},
		{"control character", "a\tb.txt"},
		{"dot in base", "archive.tar.gz"},
		{"formatted with blank base", "        TXT"},
		{"formatted with plus", "A+B     TXT"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := fat12.FormatShortName(test.input)
			assert.ErrorIs(t, err, errors.ErrInvalidName)
		})
	}
}

func TestHasTextExtension(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"hello.txt", true},
		{"HELLO.TXT", true},
		{"Hello.TxT", true},
		{"HELLO   TXT", true},
		{"hello   txt", true},
		{"hello.text", false},
		{"hello.txt.bak", false},
		{"txt", false},
		{"HELLO   BIN", false},
		{"", false},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			assert.Equal(t, test.expected, fat12.HasTextExtension(test.input))
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"HELLO   TXT", "HELLO.TXT"},
		{"README     ", "README"},
		{"ABCDEFGHIJK", "ABCDEFGH.IJK"},
		{"A       B  ", "A.B"},
		{"SHORT", "SHORT"},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			assert.Equal(t, test.expected, fat12.DisplayName(test.input))
		})
	}
}
