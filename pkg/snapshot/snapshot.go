// Package snapshot copies whole volume images to and from an object store.
// Keys take the form `<prefix>/<label slug>/<RFC3339 timestamp>.img.gz`.
package snapshot

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/gosimple/slug"
	log "github.com/sirupsen/logrus"

	"github.com/weberc2/blockfs/pkg/io"
	"github.com/weberc2/blockfs/pkg/objectstore"
	. "github.com/weberc2/blockfs/pkg/types"
)

const extension = ".img.gz"

type Snapshotter struct {
	// Store should compress; see objectstore.GzipObjectStore.
	Store    objectstore.ObjectStore
	Bucket   string
	Prefix   string
	Logger   log.FieldLogger
	TimeFunc func() time.Time
}

// Dir returns the key prefix under which snapshots of `sb` are kept. Volumes
// without a label fall back on their volume ID.
func (s *Snapshotter) Dir(sb *Superblock) string {
	name := slug.Make(sb.Label)
	if name == "" {
		name = sb.VolumeID.String()
	}
	return path.Join(s.Prefix, name)
}

// Key names the snapshot of `sb` taken at `at`.
func (s *Snapshotter) Key(sb *Superblock, at time.Time) string {
	return path.Join(s.Dir(sb), at.UTC().Format(time.RFC3339)+extension)
}

// Push uploads the full image of the volume described by `sb` and returns
// the key it was stored under.
func (s *Snapshotter) Push(ctx context.Context, volume io.Volume, sb *Superblock) (string, error) {
	key := s.Key(sb, s.now())
	size := Byte(sb.BlockCount) * BlockSize
	if err := s.Store.PutObject(
		ctx,
		s.Bucket,
		key,
		io.NewVolumeReader(volume, size),
	); err != nil {
		return "", fmt.Errorf("pushing snapshot `%s`: %w", key, err)
	}
	s.logger().WithFields(log.Fields{
		"bucket": s.Bucket,
		"key":    key,
		"bytes":  size,
	}).Info("pushed snapshot")
	return key, nil
}

// List returns the snapshots of `sb`, oldest first.
func (s *Snapshotter) List(ctx context.Context, sb *Superblock) ([]objectstore.Object, error) {
	dir := s.Dir(sb) + "/"
	objects, err := s.Store.ListObjects(ctx, s.Bucket, dir)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots under `%s`: %w", dir, err)
	}

	out := objects[:0]
	for _, object := range objects {
		if strings.HasSuffix(object.Key, extension) {
			out = append(out, object)
		}
	}
	// RFC3339 UTC timestamps sort lexically
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Latest returns the key of the newest snapshot of `sb`.
func (s *Snapshotter) Latest(ctx context.Context, sb *Superblock) (string, error) {
	objects, err := s.List(ctx, sb)
	if err != nil {
		return "", err
	}
	if len(objects) < 1 {
		return "", fmt.Errorf(
			"finding latest snapshot under `%s`: %w",
			s.Dir(sb),
			&objectstore.ObjectNotFoundErr{Bucket: s.Bucket, Key: s.Dir(sb)},
		)
	}
	return objects[len(objects)-1].Key, nil
}

// Pull overwrites `volume` with the image stored at `key` and returns the
// number of bytes written.
func (s *Snapshotter) Pull(ctx context.Context, key string, volume io.Volume) (Byte, error) {
	body, err := s.Store.GetObject(ctx, s.Bucket, key)
	if err != nil {
		return 0, fmt.Errorf("pulling snapshot `%s`: %w", key, err)
	}
	defer body.Close()

	n, err := io.CopyIn(volume, body)
	if err != nil {
		return n, fmt.Errorf("pulling snapshot `%s`: %w", key, err)
	}
	s.logger().WithFields(log.Fields{
		"bucket": s.Bucket,
		"key":    key,
		"bytes":  n,
	}).Info("pulled snapshot")
	return n, nil
}

func (s *Snapshotter) logger() log.FieldLogger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.StandardLogger()
}

func (s *Snapshotter) now() time.Time {
	if s.TimeFunc != nil {
		return s.TimeFunc()
	}
	return time.Now()
}
