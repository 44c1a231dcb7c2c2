package logfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/koptimizer/rigwatch/pkg/cloudprovider"
	"github.com/koptimizer/rigwatch/pkg/fleet"
)

// tailWindow bounds how much of a log file is read to find its last line.
const tailWindow = 64 * 1024

// FileFetcher reads <dir>/<instanceID>.log. It serves log collectors that
// sync miner logs to the monitoring host, and the mock API.
type FileFetcher struct {
	dir string
}

func NewFileFetcher(dir string) (*FileFetcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: fetch.logDir is required for the file source", fleet.ErrInvalidConfig)
	}
	return &FileFetcher{dir: dir}, nil
}

// Path returns the log file of an instance.
func (f *FileFetcher) Path(instanceID string) string {
	return filepath.Join(f.dir, filepath.Base(instanceID)+".log")
}

func (f *FileFetcher) FetchLastLine(ctx context.Context, inst *cloudprovider.Instance) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &fleet.FetchError{InstanceID: inst.ID, Err: err}
	}

	file, err := os.Open(f.Path(inst.ID))
	if err != nil {
		return "", &fleet.FetchError{InstanceID: inst.ID, Err: err}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", &fleet.FetchError{InstanceID: inst.ID, Err: err}
	}
	offset := info.Size() - tailWindow
	if offset < 0 {
		offset = 0
	}

	buf := make([]byte, info.Size()-offset)
	if _, err := file.ReadAt(buf, offset); err != nil && !errors.Is(err, io.EOF) {
		return "", &fleet.FetchError{InstanceID: inst.ID, Err: err}
	}
	return lastLine(string(buf)), nil
}
