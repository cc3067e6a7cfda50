package testsupport

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"sort"
	"strings"
	"time"

	"github.com/weberc2/blockfs/pkg/objectstore"
)

type FakeObject struct {
	Data         []byte
	LastModified time.Time
}

// ObjectStoreFake is an in-memory ObjectStore keyed by bucket and key.
type ObjectStoreFake map[[2]string]FakeObject

var _ objectstore.ObjectStore = ObjectStoreFake{}

func (osf ObjectStoreFake) PutObject(
	ctx context.Context,
	bucket string,
	key string,
	data io.ReadSeeker,
) error {
	var b bytes.Buffer
	if _, err := io.Copy(&b, data); err != nil {
		return err
	}
	osf[[2]string{bucket, key}] = FakeObject{
		Data:         b.Bytes(),
		LastModified: time.Now(),
	}
	return nil
}

func (osf ObjectStoreFake) GetObject(
	ctx context.Context,
	bucket string,
	key string,
) (io.ReadCloser, error) {
	object, found := osf[[2]string{bucket, key}]
	if !found {
		return nil, &objectstore.ObjectNotFoundErr{Bucket: bucket, Key: key}
	}
	return ioutil.NopCloser(bytes.NewReader(object.Data)), nil
}

// ListObjects returns matching objects sorted by key, as S3 does.
func (osf ObjectStoreFake) ListObjects(
	ctx context.Context,
	bucket string,
	prefix string,
) ([]objectstore.Object, error) {
	var out []objectstore.Object
	for key, object := range osf {
		if key[0] == bucket && strings.HasPrefix(key[1], prefix) {
			out = append(out, objectstore.Object{
				Key:          key[1],
				Size:         int64(len(object.Data)),
				LastModified: object.LastModified,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (osf ObjectStoreFake) DeleteObject(ctx context.Context, bucket, key string) error {
	k := [2]string{bucket, key}
	if _, found := osf[k]; !found {
		return &objectstore.ObjectNotFoundErr{Bucket: bucket, Key: key}
	}
	delete(osf, k)
	return nil
}
