package main

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"path"
	"strconv"
	"syscall"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/weberc2/blockfs/pkg/filesystem"
	"github.com/weberc2/blockfs/pkg/mkfs"
	"github.com/weberc2/blockfs/pkg/mount"
	. "github.com/weberc2/blockfs/pkg/types"
)

func main() {
	app := cli.App{
		Name:        appName,
		Description: "create, inspect and mount single-volume block filesystems",
		Commands: []*cli.Command{{
			Name:        "mkfs",
			Description: "format the configured image with an empty filesystem",
			Flags: []cli.Flag{
				&cli.Int64Flag{
					Name:  "blocks",
					Usage: "the number of blocks. defaults to BLOCKFS_BLOCKS.",
				},
				&cli.StringFlag{
					Name:  "label",
					Usage: "the volume label. defaults to BLOCKFS_LABEL.",
				},
			},
			Action: withConfig(func(c *Config, ctx *cli.Context) error {
				if ctx.IsSet("blocks") {
					c.Blocks = ctx.Int64("blocks")
				}
				if ctx.IsSet("label") {
					c.Label = ctx.String("label")
				}
				blocks := Block(c.Blocks)
				volume, err := c.createVolume(blocks)
				if err != nil {
					return err
				}
				defer volume.Close()
				fs, err := mkfs.Format(volume, blocks, mkfs.Options{
					Label:         c.Label,
					CacheCapacity: c.CacheCapacity,
				})
				if err != nil {
					return err
				}
				fmt.Printf(
					"formatted `%s`: volume `%s`, `%d` blocks, `%d` inodes\n",
					c.ImagePath(),
					fs.Superblock.VolumeID,
					fs.Superblock.BlockCount,
					fs.Superblock.InodeCount,
				)
				return nil
			}),
		}, {
			Name:        "info",
			Description: "print the superblock of the configured image",
			Action: withFS(func(fs *filesystem.FileSystem, ctx *cli.Context) error {
				sb := fs.Superblock
				var walked Block
				if err := fs.FreeList.Walk(func(Block) error {
					walked++
					return nil
				}); err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintf(w, "label\t%s\n", sb.Label)
				fmt.Fprintf(w, "volume id\t%s\n", sb.VolumeID)
				fmt.Fprintf(w, "blocks\t%d\n", sb.BlockCount)
				fmt.Fprintf(w, "inode blocks\t%d\n", sb.InodeBlocks)
				fmt.Fprintf(w, "first data block\t%d\n", sb.FirstDataBlock())
				fmt.Fprintf(w, "free blocks\t%d (%d on free list)\n", sb.FreeBlocks, walked)
				fmt.Fprintf(w, "inodes\t%d\n", sb.InodeCount)
				fmt.Fprintf(w, "free inodes\t%d\n", sb.FreeInodes)

				counts, err := countTree(fs, "/")
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "directories\t%d\n", counts.Dirs)
				fmt.Fprintf(w, "files\t%d (%d bytes)\n", counts.Files, counts.Bytes)
				fmt.Fprintf(w, "path cache\t%d slots, %s\n", fs.Cache.Capacity(), fs.Cache.Stats())
				return w.Flush()
			}),
		}, {
			Name:        "ls",
			Description: "list a directory",
			ArgsUsage:   "[path]",
			Action: withFS(func(fs *filesystem.FileSystem, ctx *cli.Context) error {
				dir := ctx.Args().First()
				if dir == "" {
					dir = "/"
				}
				entries, err := fs.ReadDir(dir)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				for _, entry := range entries {
					inode, err := fs.GetAttr(path.Join(dir, entry.Name))
					if err != nil {
						return err
					}
					fmt.Fprintf(
						w,
						"%d\t%s\t%04o\t%d\t%d\t%s\n",
						entry.Ino,
						inode.Mode.FileType(),
						inode.Mode.Perm(),
						inode.LinksCount,
						inode.Size,
						entry.Name,
					)
				}
				return w.Flush()
			}),
		}, {
			Name:        "cat",
			Description: "write a file's contents to stdout",
			ArgsUsage:   "<path>",
			Action: withFS(func(fs *filesystem.FileSystem, ctx *cli.Context) error {
				p, err := requireArg(ctx, 0, "path")
				if err != nil {
					return err
				}
				buf := make([]byte, BlockSize)
				for offset := Byte(0); ; {
					n, err := fs.Read(p, offset, buf)
					if err != nil {
						return err
					}
					if n == 0 {
						return nil
					}
					if _, err := os.Stdout.Write(buf[:n]); err != nil {
						return err
					}
					offset += n
				}
			}),
		}, {
			Name:        "put",
			Description: "copy a local file (or stdin) into the filesystem",
			ArgsUsage:   "<local file|-> <path>",
			Action: withFS(func(fs *filesystem.FileSystem, ctx *cli.Context) error {
				src, err := requireArg(ctx, 0, "local file")
				if err != nil {
					return err
				}
				dst, err := requireArg(ctx, 1, "path")
				if err != nil {
					return err
				}
				var data []byte
				if src == "-" {
					data, err = ioutil.ReadAll(os.Stdin)
				} else {
					data, err = ioutil.ReadFile(src)
				}
				if err != nil {
					return fmt.Errorf("reading `%s`: %w", src, err)
				}
				if _, err := fs.Mknod(dst, NewMode(FileTypeRegular, 0644)); err != nil {
					if !errors.Is(err, ExistsErr) {
						return err
					}
					if err := fs.Truncate(dst, 0); err != nil {
						return err
					}
				}
				_, err = fs.Write(dst, 0, data)
				return err
			}),
		}, {
			Name:        "mkdir",
			Description: "create a directory",
			ArgsUsage:   "<path>",
			Flags: []cli.Flag{&cli.StringFlag{
				Name:  "mode",
				Usage: "octal permission bits",
				Value: "755",
			}},
			Action: withFS(func(fs *filesystem.FileSystem, ctx *cli.Context) error {
				p, err := requireArg(ctx, 0, "path")
				if err != nil {
					return err
				}
				perm, err := parsePerm(ctx.String("mode"))
				if err != nil {
					return err
				}
				_, err = fs.Mkdir(p, perm)
				return err
			}),
		}, {
			Name:        "rm",
			Description: "remove a file or an empty directory",
			ArgsUsage:   "<path>",
			Action: withFS(func(fs *filesystem.FileSystem, ctx *cli.Context) error {
				p, err := requireArg(ctx, 0, "path")
				if err != nil {
					return err
				}
				return fs.Unlink(p)
			}),
		}, {
			Name:        "rmdir",
			Description: "remove an empty directory",
			ArgsUsage:   "<path>",
			Action: withFS(func(fs *filesystem.FileSystem, ctx *cli.Context) error {
				p, err := requireArg(ctx, 0, "path")
				if err != nil {
					return err
				}
				return fs.Rmdir(p)
			}),
		}, {
			Name:        "mv",
			Aliases:     []string{"rename"},
			Description: "rename a file or directory",
			ArgsUsage:   "<from> <to>",
			Action: withFS(func(fs *filesystem.FileSystem, ctx *cli.Context) error {
				from, err := requireArg(ctx, 0, "from")
				if err != nil {
					return err
				}
				to, err := requireArg(ctx, 1, "to")
				if err != nil {
					return err
				}
				return fs.Rename(from, to)
			}),
		}, {
			Name:        "chmod",
			Description: "change a file's permission bits",
			ArgsUsage:   "<octal mode> <path>",
			Action: withFS(func(fs *filesystem.FileSystem, ctx *cli.Context) error {
				mode, err := requireArg(ctx, 0, "mode")
				if err != nil {
					return err
				}
				p, err := requireArg(ctx, 1, "path")
				if err != nil {
					return err
				}
				perm, err := parsePerm(mode)
				if err != nil {
					return err
				}
				return fs.Chmod(p, perm)
			}),
		}, {
			Name:        "truncate",
			Description: "resize a regular file",
			ArgsUsage:   "<size> <path>",
			Action: withFS(func(fs *filesystem.FileSystem, ctx *cli.Context) error {
				size, err := requireArg(ctx, 0, "size")
				if err != nil {
					return err
				}
				p, err := requireArg(ctx, 1, "path")
				if err != nil {
					return err
				}
				n, err := strconv.ParseInt(size, 10, 64)
				if err != nil {
					return fmt.Errorf("parsing size `%s`: %w", size, err)
				}
				return fs.Truncate(p, Byte(n))
			}),
		}, {
			Name:        "mount",
			Description: "serve the filesystem over FUSE until interrupted",
			ArgsUsage:   "<mountpoint>",
			Flags: []cli.Flag{&cli.BoolFlag{
				Name:  "debug",
				Usage: "log every FUSE request",
			}},
			Action: withFS(func(fs *filesystem.FileSystem, ctx *cli.Context) error {
				mountpoint, err := requireArg(ctx, 0, "mountpoint")
				if err != nil {
					return err
				}
				server, err := mount.Mount(mountpoint, fs, mount.Options{
					FsName: fs.Superblock.Label,
					Debug:  ctx.Bool("debug"),
				})
				if err != nil {
					return err
				}

				signals := make(chan os.Signal, 1)
				signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
				go func() {
					<-signals
					log.WithField("mountpoint", mountpoint).Info("unmounting")
					if err := server.Unmount(); err != nil {
						log.WithError(err).Error("unmounting")
					}
				}()
				server.Wait()
				log.WithField("cache", fs.Cache.Stats().String()).
					Info("path cache statistics")
				return nil
			}),
		}, {
			Name:        "snapshot",
			Description: "push and pull volume images to and from S3",
			Subcommands: []*cli.Command{{
				Name:        "push",
				Description: "upload the configured image",
				Action: withSnapshots(func(c *Config, s *snapshotSession, ctx *cli.Context) error {
					fs, volume, err := c.openFileSystem()
					if err != nil {
						return err
					}
					defer volume.Close()
					key, err := s.Push(ctx.Context, volume, fs.Superblock)
					if err != nil {
						return err
					}
					fmt.Println(key)
					return nil
				}),
			}, {
				Name:        "list",
				Description: "list the snapshots of the configured image, oldest first",
				Action: withSnapshots(func(c *Config, s *snapshotSession, ctx *cli.Context) error {
					fs, volume, err := c.openFileSystem()
					if err != nil {
						return err
					}
					defer volume.Close()
					objects, err := s.List(ctx.Context, fs.Superblock)
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					for _, object := range objects {
						fmt.Fprintf(w, "%s\t%d\t%s\n", object.Key, object.Size, object.LastModified)
					}
					return w.Flush()
				}),
			}, {
				Name:        "pull",
				Description: "overwrite the configured image with a snapshot",
				Flags: []cli.Flag{&cli.StringFlag{
					Name: "key",
					Usage: "the snapshot to restore. defaults to the latest " +
						"snapshot of the configured image.",
				}},
				Action: withSnapshots(func(c *Config, s *snapshotSession, ctx *cli.Context) error {
					key := ctx.String("key")
					if key == "" {
						latest, err := s.latest(ctx.Context, c)
						if err != nil {
							return err
						}
						key = latest
					}
					volume, err := c.createVolume(0)
					if err != nil {
						return err
					}
					defer volume.Close()
					n, err := s.Pull(ctx.Context, key, volume)
					if err != nil {
						return err
					}
					fmt.Printf("restored `%s` (`%d` bytes) to `%s`\n", key, n, c.ImagePath())
					return nil
				}),
			}},
		}},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func withConfig(f func(*Config, *cli.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		c, err := LoadConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if err := c.ConfigureLogging(); err != nil {
			return err
		}
		return f(c, ctx)
	}
}

func withFS(f func(*filesystem.FileSystem, *cli.Context) error) cli.ActionFunc {
	return withConfig(func(c *Config, ctx *cli.Context) error {
		fs, volume, err := c.openFileSystem()
		if err != nil {
			return err
		}
		defer volume.Close()
		return f(fs, ctx)
	})
}

func withSnapshots(
	f func(*Config, *snapshotSession, *cli.Context) error,
) cli.ActionFunc {
	return withConfig(func(c *Config, ctx *cli.Context) error {
		s, err := c.snapshotter()
		if err != nil {
			return err
		}
		return f(c, &snapshotSession{s}, ctx)
	})
}

func requireArg(ctx *cli.Context, i int, name string) (string, error) {
	arg := ctx.Args().Get(i)
	if arg == "" {
		return "", fmt.Errorf("missing required argument: %s", name)
	}
	return arg, nil
}

func parsePerm(s string) (Mode, error) {
	perm, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("parsing mode `%s`: %w", s, err)
	}
	if Mode(perm)&^ModePermMask != 0 {
		return 0, fmt.Errorf("parsing mode `%s`: %w", s, InvalidArgumentErr)
	}
	return Mode(perm), nil
}

func (s *snapshotSession) latest(ctx context.Context, c *Config) (string, error) {
	fs, volume, err := c.openFileSystem()
	if err != nil {
		return "", err
	}
	defer volume.Close()
	return s.Latest(ctx, fs.Superblock)
}
