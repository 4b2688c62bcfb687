package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rzos/fat12fs/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

// environment is everything a command needs besides its own arguments.
type environment struct {
	fs     afero.Fs
	stdin  io.Reader
	stdout io.Writer
	cfg    config.Config
	log    *logrus.Entry
}

var defaultLogFormatter = &logrus.TextFormatter{DisableTimestamp: true}

// infoFormatter prints info-level entries as bare messages.
type infoFormatter struct{}

func (f *infoFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if entry.Level == logrus.InfoLevel {
		return append([]byte(entry.Message), '\n'), nil
	}
	return defaultLogFormatter.Format(entry)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, config.DefaultPath)
}

// setUp loads the config file, applies global flags over it and configures
// logging.
func (env *environment) setUp(c *cli.Context, stderr io.Writer) error {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.Load(env.fs, path)
		if err != nil {
			return err
		}
	}

	if c.IsSet("image") {
		cfg.Image = c.String("image")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("compressed") {
		cfg.Compressed = c.Bool("compressed")
	}

	level, err := cfg.Level()
	if err != nil {
		return err
	}

	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetFormatter(new(infoFormatter))
	logger.SetLevel(level)

	env.cfg = cfg
	env.log = logrus.NewEntry(logger)
	return nil
}

func newApp(fs afero.Fs, stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	env := &environment{
		fs:     fs,
		stdin:  stdin,
		stdout: stdout,
	}

	return &cli.App{
		Name:      "fat12fs",
		Usage:     "Manage FAT12 floppy disk images",
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "image",
				Aliases: []string{"i"},
				Usage:   "path to the disk image",
				EnvVars: []string{"FAT12FS_IMAGE"},
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a YAML config file",
				EnvVars: []string{"FAT12FS_CONFIG"},
				Value:   defaultConfigPath(),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "one of panic, fatal, error, warning, info, debug, trace",
				EnvVars: []string{"FAT12FS_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "compressed",
				Aliases: []string{"z"},
				Usage:   "the image is packed with RLE8 and gzip",
				EnvVars: []string{"FAT12FS_COMPRESSED"},
			},
		},
		Before: func(c *cli.Context) error {
			return env.setUp(c, stderr)
		},
		// Exit codes are handled by main so tests don't exit.
		ExitErrHandler: func(*cli.Context, error) {},
		Commands:       env.commands(),
	}
}
