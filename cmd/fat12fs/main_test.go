package main

import (
	"bytes"
	goerrors "errors"
	"strings"
	"testing"

	"github.com/rzos/fat12fs/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const testImage = "/images/floppy.img"

// runApp runs the tool with `args` against `fs`, ignoring any config file in
// the user's home directory.
func runApp(t *testing.T, fs afero.Fs, stdin string, args ...string) (string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	app := newApp(fs, strings.NewReader(stdin), stdout, stderr)
	fullArgs := append([]string{"fat12fs", "--config", ""}, args...)
	err := app.Run(fullArgs)
	return stdout.String(), err
}

func mustRun(t *testing.T, fs afero.Fs, args ...string) string {
	t.Helper()
	output, err := runApp(t, fs, "", args...)
	require.NoErrorf(t, err, "%v failed", args)
	return output
}

func formattedFs(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	mustRun(t, fs, "--image", testImage, "format")
	return fs
}

func TestFormat__DefaultGeometry(t *testing.T) {
	fs := formattedFs(t)

	info, err := fs.Stat(testImage)
	require.NoError(t, err)
	assert.EqualValues(t, 2880*512, info.Size())

	output := mustRun(t, fs, "--image", testImage, "ls")
	assert.Empty(t, output)
}

func TestFormat__Sectors(t *testing.T) {
	fs := afero.NewMemMapFs()
	mustRun(t, fs, "--image", testImage, "format", "--sectors", "720")

	info, err := fs.Stat(testImage)
	require.NoError(t, err)
	assert.EqualValues(t, 720*512, info.Size())
}

func TestFormat__Geometry(t *testing.T) {
	fs := afero.NewMemMapFs()
	mustRun(t, fs, "--image", testImage, "format", "--geometry", "ibm-360")

	info, err := fs.Stat(testImage)
	require.NoError(t, err)
	assert.EqualValues(t, 720*512, info.Size())

	_, err = runApp(t, fs, "", "--image", testImage, "format", "--geometry", "dec-rx01")
	assert.ErrorIs(t, err, errors.ErrNotSupported)
}

func TestFormat__SectorsTooBig(t *testing.T) {
	_, err := runApp(t, afero.NewMemMapFs(), "", "--image", testImage, "format", "--sectors", "70000")
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestNoImage(t *testing.T) {
	_, err := runApp(t, afero.NewMemMapFs(), "", "ls")
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestWriteCatRemove(t *testing.T) {
	fs := formattedFs(t)

	mustRun(t, fs, "--image", testImage, "write", "hello.txt", "Hello", "World")
	assert.Equal(t, "Hello World", mustRun(t, fs, "--image", testImage, "cat", "HELLO.TXT"))
	assert.Equal(t, "HELLO.TXT            11\n", mustRun(t, fs, "--image", testImage, "ls"))

	mustRun(t, fs, "--image", testImage, "rm", "hello.txt")
	_, err := runApp(t, fs, "", "--image", testImage, "cat", "hello.txt")
	assert.ErrorIs(t, err, errors.ErrFileNotFound)
}

func TestWrite__NotText(t *testing.T) {
	fs := formattedFs(t)

	_, err := runApp(t, fs, "", "--image", testImage, "write", "prog.com", "x")
	assert.ErrorIs(t, err, errors.ErrInvalidName)
}

func TestList__CSV(t *testing.T) {
	fs := formattedFs(t)
	mustRun(t, fs, "--image", testImage, "write", "hello.txt", "Hello", "World")
	mustRun(t, fs, "--image", testImage, "write", "empty.txt")

	output := mustRun(t, fs, "--image", testImage, "ls", "--csv")
	assert.Equal(
		t,
		"name,short_name,size,start_cluster\n"+
			"HELLO.TXT,HELLO   TXT,11,2\n"+
			"EMPTY.TXT,EMPTY   TXT,0,0\n",
		output,
	)
}

func TestPutGet(t *testing.T) {
	fs := formattedFs(t)
	content := bytes.Repeat([]byte("0123456789abcdef"), 100)
	require.NoError(t, afero.WriteFile(fs, "/host/notes.txt", content, 0o644))

	mustRun(t, fs, "--image", testImage, "put", "/host/notes.txt")
	mustRun(t, fs, "--image", testImage, "put", "/host/notes.txt", "copy.txt")
	mustRun(t, fs, "--image", testImage, "get", "copy.txt", "/host/out.txt")

	retrieved, err := afero.ReadFile(fs, "/host/out.txt")
	require.NoError(t, err)
	assert.Equal(t, content, retrieved)

	assert.Equal(t, string(content), mustRun(t, fs, "--image", testImage, "cat", "notes.txt"))
}

func TestPut__MissingHostFile(t *testing.T) {
	fs := formattedFs(t)

	_, err := runApp(t, fs, "", "--image", testImage, "put", "/host/missing.txt")
	assert.ErrorIs(t, err, errors.ErrIOFailed)
}

func TestMissingArguments(t *testing.T) {
	fs := formattedFs(t)

	for _, command := range []string{"cat", "write", "put", "get", "rm", "pack", "unpack"} {
		t.Run(command, func(t *testing.T) {
			_, err := runApp(t, fs, "", "--image", testImage, command)
			require.Error(t, err)

			var exitCoder cli.ExitCoder
			require.True(t, goerrors.As(err, &exitCoder), "%T is not an exit error", err)
			assert.Equal(t, 2, exitCoder.ExitCode())
			assert.Contains(t, err.Error(), "usage: fat12fs "+command)
		})
	}
}

func TestStat(t *testing.T) {
	fs := formattedFs(t)
	mustRun(t, fs, "--image", testImage, "write", "a.txt", "a")

	output := mustRun(t, fs, "--image", testImage, "stat")
	assert.Contains(t, output, "cluster size:   512 bytes\n")
	assert.Contains(t, output, "total clusters: 2856 (1462272 bytes)\n")
	assert.Contains(t, output, "used clusters:  1 (512 bytes)\n")
	assert.Contains(t, output, "files:          1\n")
	assert.Contains(t, output, "free entries:   223\n")
}

func TestCheck(t *testing.T) {
	fs := formattedFs(t)
	mustRun(t, fs, "--image", testImage, "write", "a.txt", "a")

	assert.Equal(t, "no problems found\n", mustRun(t, fs, "--image", testImage, "check"))

	// Mark cluster 10 as end of chain without any file using it.
	image, err := afero.ReadFile(fs, testImage)
	require.NoError(t, err)
	image[512+15] = 0xFF
	image[512+16] |= 0x0F
	require.NoError(t, afero.WriteFile(fs, testImage, image, 0o644))

	output, err := runApp(t, fs, "", "--image", testImage, "check")
	assert.Equal(t, "lost clusters: 1\n", output)
	var exitCoder cli.ExitCoder
	require.True(t, goerrors.As(err, &exitCoder))
	assert.Equal(t, 1, exitCoder.ExitCode())

	output = mustRun(t, fs, "--image", testImage, "check", "--repair")
	assert.Equal(t, "lost clusters: 1\nreclaimed clusters: 1\n", output)
	assert.Equal(t, "no problems found\n", mustRun(t, fs, "--image", testImage, "check"))
}

func TestShell(t *testing.T) {
	fs := formattedFs(t)

	output, err := runApp(t, fs, "write a.txt hi there\nls\nexit\n", "--image", testImage, "shell")
	require.NoError(t, err)
	assert.Equal(t, "> wrote 8 bytes\n> A.TXT\t8 bytes\n> ", output)

	assert.Equal(t, "hi there", mustRun(t, fs, "--image", testImage, "cat", "a.txt"))
}

func TestCompressedImage(t *testing.T) {
	fs := afero.NewMemMapFs()
	mustRun(t, fs, "--image", testImage, "--compressed", "format")

	packed, err := afero.ReadFile(fs, testImage)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1f, 0x8b}, packed[:2], "image isn't gzipped")
	assert.Less(t, len(packed), 2880*512/100)

	mustRun(t, fs, "-i", testImage, "-z", "write", "hello.txt", "packed")
	assert.Equal(t, "packed", mustRun(t, fs, "-i", testImage, "-z", "cat", "hello.txt"))

	// Unpacking gives a plain image that can be used directly.
	mustRun(t, fs, "unpack", testImage, "/images/plain.img")
	info, err := fs.Stat("/images/plain.img")
	require.NoError(t, err)
	assert.EqualValues(t, 2880*512, info.Size())
	assert.Equal(t, "packed", mustRun(t, fs, "-i", "/images/plain.img", "cat", "hello.txt"))
}

func TestPackUnpack(t *testing.T) {
	fs := formattedFs(t)
	mustRun(t, fs, "--image", testImage, "write", "hello.txt", "Hello")

	mustRun(t, fs, "pack", testImage, "/images/floppy.img.gz")
	mustRun(t, fs, "unpack", "/images/floppy.img.gz", "/images/copy.img")

	original, err := afero.ReadFile(fs, testImage)
	require.NoError(t, err)
	copied, err := afero.ReadFile(fs, "/images/copy.img")
	require.NoError(t, err)
	assert.True(t, bytes.Equal(original, copied), "unpacked image differs")
}

func TestUnpack__NotPacked(t *testing.T) {
	fs := formattedFs(t)

	_, err := runApp(t, fs, "", "unpack", testImage, "/images/out.img")
	assert.Error(t, err)
}

func TestConfigFile(t *testing.T) {
	fs := formattedFs(t)
	require.NoError(t, afero.WriteFile(
		fs,
		"/etc/fat12fs.yml",
		[]byte("image: "+testImage+"\nlog_level: error\n"),
		0o644,
	))

	for _, args := range [][]string{{"write", "c.txt", "cfg"}, {"cat", "c.txt"}} {
		stdout := &bytes.Buffer{}
		app := newApp(fs, strings.NewReader(""), stdout, &bytes.Buffer{})
		require.NoError(t, app.Run(append([]string{"fat12fs", "--config", "/etc/fat12fs.yml"}, args...)))
		if args[0] == "cat" {
			assert.Equal(t, "cfg", stdout.String())
		}
	}
}

func TestConfigFile__Invalid(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/fat12fs.yml", []byte("log_level: loud\n"), 0o644))

	stdout := &bytes.Buffer{}
	app := newApp(fs, strings.NewReader(""), stdout, &bytes.Buffer{})
	err := app.Run([]string{"fat12fs", "--config", "/etc/fat12fs.yml", "geometries"})
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestGeometries(t *testing.T) {
	fs := afero.NewMemMapFs()

	output := mustRun(t, fs, "geometries")
	assert.Contains(t, output, "ibm-1440")

	output = mustRun(t, fs, "geometries", "--csv")
	assert.True(t, strings.HasPrefix(output, "slug,name,sectors,bytes\n"), output)
	assert.Contains(t, output, "ibm-1440,3.5in 1.44M,2880,1474560\n")
}
