package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/rzos/fat12fs/disks"
	"github.com/rzos/fat12fs/errors"
	"github.com/rzos/fat12fs/file_systems/fat12"
	"github.com/rzos/fat12fs/shell"
	"github.com/rzos/fat12fs/utilities/compression"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

func (env *environment) commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "format",
			Usage: "Create or wipe an image",
			Flags: []cli.Flag{
				&cli.UintFlag{
					Name:  "sectors",
					Usage: "total sectors; overrides --geometry",
				},
				&cli.StringFlag{
					Name:  "geometry",
					Usage: "predefined disk geometry, see `geometries`",
				},
			},
			Action: env.formatImage,
		},
		{
			Name:  "ls",
			Usage: "List the files in the root directory",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "csv", Usage: "print CSV instead of a table"},
			},
			Action: env.listFiles,
		},
		{
			Name:      "cat",
			Usage:     "Print a file",
			ArgsUsage: "NAME",
			Action:    env.catFile,
		},
		{
			Name:      "write",
			Usage:     "Create a text file from the command line",
			ArgsUsage: "NAME TEXT...",
			Action:    env.writeText,
		},
		{
			Name:      "put",
			Usage:     "Copy a host file into the image",
			ArgsUsage: "HOST_FILE [NAME]",
			Action:    env.putFile,
		},
		{
			Name:      "get",
			Usage:     "Copy a file out of the image",
			ArgsUsage: "NAME HOST_FILE",
			Action:    env.getFile,
		},
		{
			Name:      "rm",
			Usage:     "Delete a file",
			ArgsUsage: "NAME",
			Action:    env.removeFile,
		},
		{
			Name:   "stat",
			Usage:  "Show space usage",
			Action: env.statImage,
		},
		{
			Name:  "check",
			Usage: "Look for inconsistencies between the FAT and the directory",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "repair", Usage: "free lost clusters"},
			},
			Action: env.checkImage,
		},
		{
			Name:   "shell",
			Usage:  "Run commands interactively",
			Action: env.runShell,
		},
		{
			Name:  "geometries",
			Usage: "List predefined disk geometries",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "csv", Usage: "print CSV instead of a table"},
			},
			Action: env.listGeometries,
		},
		{
			Name:      "pack",
			Usage:     "Compress a file using RLE8 and gzip",
			ArgsUsage: "INPUT_FILE OUTPUT_FILE",
			Action:    env.packFile,
		},
		{
			Name:      "unpack",
			Usage:     "Uncompress a file packed with RLE8 and gzip",
			ArgsUsage: "INPUT_FILE OUTPUT_FILE",
			Action:    env.unpackFile,
		},
	}
}

func requireArgs(c *cli.Context, count int) error {
	if c.Args().Len() < count {
		return cli.Exit(
			fmt.Sprintf("usage: %s %s %s", c.App.Name, c.Command.Name, c.Command.ArgsUsage),
			2,
		)
	}
	return nil
}

// withFileSystem mounts the image, runs `action` and closes the image again.
func (env *environment) withFileSystem(
	writable bool, action func(fs *fat12.FileSystem) error,
) error {
	img, err := env.openImage(writable)
	if err != nil {
		return err
	}

	fs, err := img.mount()
	if err == nil {
		err = action(fs)
	}
	if err != nil {
		img.writable = false
		img.Close()
		return err
	}
	return img.Close()
}

func (env *environment) formatImage(c *cli.Context) error {
	cfg := env.cfg
	if c.IsSet("geometry") {
		cfg.Geometry = c.String("geometry")
		cfg.Sectors = 0
	}
	if c.IsSet("sectors") {
		cfg.Sectors = uint16(c.Uint("sectors"))
		if uint(cfg.Sectors) != c.Uint("sectors") {
			return errors.ErrInvalidArgument.WithMessage("sector count must fit in 16 bits")
		}
	}

	sectors, err := cfg.FormatSectors()
	if err != nil {
		return err
	}

	img, err := env.createImage(sectors)
	if err != nil {
		return err
	}
	err = fat12.Format(img.device, sectors, fat12.WithLogger(env.log))
	if err != nil {
		img.writable = false
		img.Close()
		return err
	}

	env.log.WithField("sectors", sectors).Infof("formatted %s", img.path)
	return img.Close()
}

type listRow struct {
	Name         string `csv:"name"`
	ShortName    string `csv:"short_name"`
	Size         uint32 `csv:"size"`
	StartCluster uint16 `csv:"start_cluster"`
}

func (env *environment) listFiles(c *cli.Context) error {
	return env.withFileSystem(false, func(fs *fat12.FileSystem) error {
		entries, err := fs.ListRoot()
		if err != nil {
			return err
		}

		if c.Bool("csv") {
			rows := make([]listRow, len(entries))
			for i, entry := range entries {
				rows[i] = listRow{
					Name:         entry.Name(),
					ShortName:    entry.ShortName(),
					Size:         entry.FileSize,
					StartCluster: entry.StartCluster,
				}
			}
			return gocsv.Marshal(rows, env.stdout)
		}

		for _, entry := range entries {
			fmt.Fprintf(env.stdout, "%-12s %10d\n", entry.Name(), entry.FileSize)
		}
		return nil
	})
}

func (env *environment) catFile(c *cli.Context) error {
	err := requireArgs(c, 1)
	if err != nil {
		return err
	}

	return env.withFileSystem(false, func(fs *fat12.FileSystem) error {
		data, err := fs.ReadFile(c.Args().First())
		if err != nil {
			return err
		}
		_, err = env.stdout.Write(data)
		return err
	})
}

func (env *environment) writeText(c *cli.Context) error {
	err := requireArgs(c, 1)
	if err != nil {
		return err
	}

	text := strings.Join(c.Args().Tail(), " ")
	return env.withFileSystem(true, func(fs *fat12.FileSystem) error {
		return fs.WriteFile(c.Args().First(), []byte(text))
	})
}

func (env *environment) putFile(c *cli.Context) error {
	err := requireArgs(c, 1)
	if err != nil {
		return err
	}

	hostPath := c.Args().Get(0)
	name := c.Args().Get(1)
	if name == "" {
		name = filepath.Base(hostPath)
	}

	data, err := afero.ReadFile(env.fs, hostPath)
	if err != nil {
		return errors.ErrIOFailed.Wrap(err)
	}

	return env.withFileSystem(true, func(fs *fat12.FileSystem) error {
		err := fs.WriteFile(name, data)
		if err == nil {
			env.log.WithFields(logrus.Fields{
				"host_file": hostPath,
				"bytes":     len(data),
			}).Infof("copied to %s", name)
		}
		return err
	})
}

func (env *environment) getFile(c *cli.Context) error {
	err := requireArgs(c, 2)
	if err != nil {
		return err
	}

	return env.withFileSystem(false, func(fs *fat12.FileSystem) error {
		data, err := fs.ReadFile(c.Args().Get(0))
		if err != nil {
			return err
		}

		err = afero.WriteFile(env.fs, c.Args().Get(1), data, 0o644)
		if err != nil {
			return errors.ErrIOFailed.Wrap(err)
		}
		return nil
	})
}

func (env *environment) removeFile(c *cli.Context) error {
	err := requireArgs(c, 1)
	if err != nil {
		return err
	}

	return env.withFileSystem(true, func(fs *fat12.FileSystem) error {
		return fs.Delete(c.Args().First())
	})
}

func (env *environment) statImage(c *cli.Context) error {
	return env.withFileSystem(false, func(fs *fat12.FileSystem) error {
		stat, err := fs.StatFS()
		if err != nil {
			return err
		}

		bpc := uint64(stat.BytesPerCluster)
		fmt.Fprintf(env.stdout, "cluster size:   %d bytes\n", stat.BytesPerCluster)
		fmt.Fprintf(env.stdout, "total clusters: %d (%d bytes)\n", stat.TotalClusters, uint64(stat.TotalClusters)*bpc)
		fmt.Fprintf(env.stdout, "used clusters:  %d (%d bytes)\n", stat.UsedClusters(), uint64(stat.UsedClusters())*bpc)
		fmt.Fprintf(env.stdout, "free clusters:  %d (%d bytes)\n", stat.FreeClusters, uint64(stat.FreeClusters)*bpc)
		fmt.Fprintf(env.stdout, "files:          %d\n", stat.Files)
		fmt.Fprintf(env.stdout, "free entries:   %d\n", stat.FreeDirents)
		return nil
	})
}

func (env *environment) checkImage(c *cli.Context) error {
	repair := c.Bool("repair")

	var report fat12.CheckReport
	err := env.withFileSystem(repair, func(fs *fat12.FileSystem) error {
		var err error
		report, err = fs.Check(repair)
		return err
	})
	if err != nil {
		return err
	}

	for _, name := range report.BrokenChains {
		fmt.Fprintf(env.stdout, "broken cluster chain: %s\n", name)
	}
	for _, name := range report.SizeMismatches {
		fmt.Fprintf(env.stdout, "size doesn't match chain length: %s\n", name)
	}
	for _, cluster := range report.CrossLinked {
		fmt.Fprintf(env.stdout, "cross-linked cluster: %d\n", cluster)
	}
	if len(report.LostClusters) > 0 {
		fmt.Fprintf(env.stdout, "lost clusters: %d\n", len(report.LostClusters))
	}
	if report.Reclaimed > 0 {
		fmt.Fprintf(env.stdout, "reclaimed clusters: %d\n", report.Reclaimed)
	}

	if report.Clean() {
		fmt.Fprintln(env.stdout, "no problems found")
		return nil
	}

	// Lost clusters that were all freed don't count as errors.
	remaining := report
	if report.Reclaimed == uint(len(report.LostClusters)) {
		remaining.LostClusters = nil
	}
	if remaining.Clean() {
		return nil
	}
	return cli.Exit("file system has errors", 1)
}

func (env *environment) runShell(c *cli.Context) error {
	return env.withFileSystem(true, func(fs *fat12.FileSystem) error {
		return shell.NewSession(fs, env.stdout, env.log).Run(env.stdin)
	})
}

type geometryRow struct {
	Slug    string `csv:"slug"`
	Name    string `csv:"name"`
	Sectors uint   `csv:"sectors"`
	Bytes   int64  `csv:"bytes"`
}

func (env *environment) listGeometries(c *cli.Context) error {
	geometries := disks.Geometries()
	if c.Bool("csv") {
		rows := make([]geometryRow, len(geometries))
		for i, geometry := range geometries {
			rows[i] = geometryRow{
				Slug:    geometry.Slug,
				Name:    geometry.Name,
				Sectors: geometry.TotalSectors(),
				Bytes:   geometry.TotalSizeBytes(),
			}
		}
		return gocsv.Marshal(rows, env.stdout)
	}

	for _, geometry := range geometries {
		fmt.Fprintf(
			env.stdout,
			"%-10s %-16s %6d sectors\n",
			geometry.Slug,
			geometry.Name,
			geometry.TotalSectors(),
		)
	}
	return nil
}

// transcode runs `convert` from one host file to another.
func (env *environment) transcode(
	c *cli.Context, verb string, convert func(afero.File, afero.File) (int64, error),
) error {
	err := requireArgs(c, 2)
	if err != nil {
		return err
	}
	inputPath := c.Args().Get(0)
	outputPath := c.Args().Get(1)

	input, err := env.fs.Open(inputPath)
	if err != nil {
		return errors.ErrIOFailed.Wrap(err)
	}
	defer input.Close()

	output, err := env.fs.Create(outputPath)
	if err != nil {
		return errors.ErrIOFailed.Wrap(err)
	}
	defer output.Close()

	written, err := convert(input, output)
	if err != nil {
		return fmt.Errorf("%s %s: %w", verb, inputPath, err)
	}

	env.log.WithField("bytes", written).Infof("%s %s to %s", verb, inputPath, outputPath)
	return nil
}

func (env *environment) packFile(c *cli.Context) error {
	return env.transcode(c, "packed", func(input, output afero.File) (int64, error) {
		return compression.CompressImage(input, output)
	})
}

func (env *environment) unpackFile(c *cli.Context) error {
	return env.transcode(c, "unpacked", func(input, output afero.File) (int64, error) {
		return compression.DecompressImage(input, output)
	})
}
