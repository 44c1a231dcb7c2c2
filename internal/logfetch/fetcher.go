// Package logfetch retrieves the most recent miner log line of an instance.
package logfetch

import (
	"context"
	"fmt"
	"strings"

	"github.com/koptimizer/rigwatch/internal/config"
	"github.com/koptimizer/rigwatch/pkg/cloudprovider"
	"github.com/koptimizer/rigwatch/pkg/fleet"
)

// Fetcher returns the last non-empty log line of one instance. Failures are
// reported as *fleet.FetchError.
type Fetcher interface {
	FetchLastLine(ctx context.Context, inst *cloudprovider.Instance) (string, error)
}

// New creates the Fetcher selected by cfg.Fetch.Source.
func New(cfg *config.Config) (Fetcher, error) {
	switch cfg.Fetch.Source {
	case "ssh":
		return NewSSHFetcher(SSHConfig{
			User:           cfg.SSH.User,
			PrivateKeyPath: cfg.SSH.PrivateKeyPath,
			Passphrase:     cfg.SSH.Passphrase,
			KnownHostsPath: cfg.SSH.KnownHostsPath,
			Command:        cfg.SSH.Command,
		})
	case "file":
		return NewFileFetcher(cfg.Fetch.LogDir)
	default:
		return nil, fmt.Errorf("%w: unsupported fetch source: %s", fleet.ErrInvalidConfig, cfg.Fetch.Source)
	}
}

// lastLine returns the last line of s that is not blank, trimmed.
func lastLine(s string) string {
	s = strings.TrimRight(s, " \t\r\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
