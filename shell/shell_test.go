package shell_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rzos/fat12fs/errors"
	"github.com/rzos/fat12fs/file_systems/fat12"
	"github.com/rzos/fat12fs/shell"
	diskotest "github.com/rzos/fat12fs/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) (*shell.Session, *fat12.FileSystem, *bytes.Buffer) {
	fs, _ := diskotest.MountFormattedFloppy(t)
	output := &bytes.Buffer{}
	log, _ := diskotest.NewTestLogger()
	return shell.NewSession(fs, output, log), fs, output
}

func TestSession__WriteAndRead(t *testing.T) {
	session, fs, output := newTestSession(t)

	session.Execute("write test.txt hello_from_shell")
	assert.Equal(t, "wrote 16 bytes\n", output.String())

	data, err := fs.ReadFile("TEST    TXT")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello_from_shell"), data)

	output.Reset()
	session.Execute("read test.txt")
	assert.Equal(t, "hello_from_shell\n", output.String())

	output.Reset()
	session.Execute("cat TEST.TXT")
	assert.Equal(t, "hello_from_shell\n", output.String())
}

func TestSession__WriteJoinsWords(t *testing.T) {
	session, fs, output := newTestSession(t)

	session.Execute("  WRITE   note.txt  several   spaced words ")
	assert.Equal(t, "wrote 20 bytes\n", output.String())

	data, err := fs.ReadFile("note.txt")
	require.NoError(t, err)
	assert.Equal(t, "several spaced words", string(data))
}

func TestSession__List(t *testing.T) {
	session, _, output := newTestSession(t)
	session.Execute("write a.txt a")
	session.Execute("write b.txt bb")
	output.Reset()

	session.Execute("ls")
	assert.Equal(t, "A.TXT\t1 bytes\nB.TXT\t2 bytes\n", output.String())
}

func TestSession__Delete(t *testing.T) {
	session, fs, output := newTestSession(t)
	session.Execute("write temp.txt secret")
	output.Reset()

	session.Execute("delete temp.txt")
	assert.Equal(t, "deleted temp.txt\n", output.String())

	_, err := fs.ReadFile("TEMP    TXT")
	assert.ErrorIs(t, err, errors.ErrFileNotFound)

	output.Reset()
	session.Execute("rm temp.txt")
	assert.True(t, strings.HasPrefix(output.String(), "rm error: "), output.String())
}

func TestSession__ReadBinary(t *testing.T) {
	session, fs, output := newTestSession(t)
	require.NoError(t, fs.WriteFile("bin.txt", []byte{0xFF, 0x00, 0x1A}))

	session.Execute("read bin.txt")
	assert.Equal(t, "ff001a\n", output.String())
}

func TestSession__Errors(t *testing.T) {
	tests := []struct {
		line     string
		expected string
	}{
		{"read", "usage: read <NAME>\n"},
		{"cat", "usage: cat <NAME>\n"},
		{"write", "usage: write <NAME> <TEXT>\n"},
		{"delete", "usage: delete <NAME>\n"},
		{"format", "unknown command: format\n"},
		{"help", "Commands: help, ls, read <name>, write <name> <text>, delete <name>\n"},
		{"", ""},
		{"   ", ""},
	}

	for _, test := range tests {
		t.Run(test.line, func(t *testing.T) {
			session, _, output := newTestSession(t)
			session.Execute(test.line)
			assert.Equal(t, test.expected, output.String())
		})
	}
}

func TestSession__FailuresArePrinted(t *testing.T) {
	session, _, output := newTestSession(t)

	session.Execute("read missing.txt")
	assert.True(t, strings.HasPrefix(output.String(), "read error: "), output.String())

	output.Reset()
	session.Execute("write image.bin data")
	assert.True(t, strings.HasPrefix(output.String(), "write error: "), output.String())

	output.Reset()
	session.Execute("write dup.txt one")
	session.Execute("write dup.txt two")
	assert.Contains(t, output.String(), "write error: ")
}

func TestSession__Run(t *testing.T) {
	session, fs, output := newTestSession(t)

	input := strings.NewReader("write a.txt hi\nls\nexit\nwrite b.txt never\n")
	require.NoError(t, session.Run(input))

	assert.Equal(t, "> wrote 2 bytes\n> A.TXT\t2 bytes\n> ", output.String())

	_, err := fs.Stat("b.txt")
	assert.ErrorIs(t, err, errors.ErrFileNotFound)
}

func TestSession__RunUntilEOF(t *testing.T) {
	session, _, output := newTestSession(t)

	require.NoError(t, session.Run(strings.NewReader("help")))
	assert.Equal(t, "> Commands: help, ls, read <name>, write <name> <text>, delete <name>\n> \n", output.String())
}
