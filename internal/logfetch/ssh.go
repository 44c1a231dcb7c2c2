package logfetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/koptimizer/rigwatch/pkg/cloudprovider"
	"github.com/koptimizer/rigwatch/pkg/fleet"
)

const defaultSSHPort = 22

// SSHConfig configures SSHFetcher.
type SSHConfig struct {
	User           string
	PrivateKeyPath string
	Passphrase     string
	// KnownHostsPath enables host key checking. Rented hosts change
	// constantly, so it is off when empty.
	KnownHostsPath string
	Command        string
}

// SSHFetcher runs a tail command on each instance over SSH.
type SSHFetcher struct {
	user            string
	command         string
	auth            ssh.AuthMethod
	hostKeyCallback ssh.HostKeyCallback
}

// NewSSHFetcher loads the private key and host key policy once.
func NewSSHFetcher(cfg SSHConfig) (*SSHFetcher, error) {
	if cfg.User == "" || cfg.Command == "" {
		return nil, fmt.Errorf("%w: ssh user and command are required", fleet.ErrInvalidConfig)
	}

	signer, err := loadSigner(cfg.PrivateKeyPath, cfg.Passphrase)
	if err != nil {
		return nil, err
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHostsPath != "" {
		hostKeyCallback, err = knownhosts.New(expandHome(cfg.KnownHostsPath))
		if err != nil {
			return nil, fmt.Errorf("%w: loading known_hosts: %v", fleet.ErrInvalidConfig, err)
		}
	}

	return &SSHFetcher{
		user:            cfg.User,
		command:         cfg.Command,
		auth:            ssh.PublicKeys(signer),
		hostKeyCallback: hostKeyCallback,
	}, nil
}

func loadSigner(path, passphrase string) (ssh.Signer, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: ssh private key path is required", fleet.ErrInvalidConfig)
	}
	pemBytes, err := os.ReadFile(expandHome(path))
	if err != nil {
		return nil, fmt.Errorf("%w: reading ssh private key: %v", fleet.ErrInvalidConfig, err)
	}

	signer, err := ssh.ParsePrivateKey(pemBytes)
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		if passphrase == "" {
			return nil, fmt.Errorf("%w: ssh private key is encrypted and no passphrase is set", fleet.ErrInvalidConfig)
		}
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pemBytes, []byte(passphrase))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parsing ssh private key: %v", fleet.ErrInvalidConfig, err)
	}
	return signer, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// FetchLastLine connects to the instance, runs the configured command and
// returns the last non-empty line of its output. The connection is torn
// down as soon as ctx is done.
func (f *SSHFetcher) FetchLastLine(ctx context.Context, inst *cloudprovider.Instance) (string, error) {
	logger := logr.FromContextOrDiscard(ctx).WithName("logfetch")

	if inst.SSHHost == "" {
		return "", &fleet.FetchError{InstanceID: inst.ID, Err: errors.New("no ssh endpoint in inventory")}
	}
	port := inst.SSHPort
	if port == 0 {
		port = defaultSSHPort
	}
	addr := net.JoinHostPort(inst.SSHHost, strconv.Itoa(port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", &fleet.FetchError{InstanceID: inst.ID, Err: err}
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		User:            f.user,
		Auth:            []ssh.AuthMethod{f.auth},
		HostKeyCallback: f.hostKeyCallback,
	})
	if err != nil {
		conn.Close()
		return "", &fleet.FetchError{InstanceID: inst.ID, Err: ctxErr(ctx, err)}
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", &fleet.FetchError{InstanceID: inst.ID, Err: ctxErr(ctx, err)}
	}
	defer session.Close()

	out, err := session.Output(f.command)
	if err != nil {
		return "", &fleet.FetchError{InstanceID: inst.ID, Err: ctxErr(ctx, fmt.Errorf("running %q: %w", f.command, err))}
	}

	line := lastLine(string(out))
	logger.V(1).Info("Fetched log line", "instance", inst.ID, "addr", addr, "line", line)
	return line, nil
}

// ctxErr prefers the context error when the connection was closed because
// the context ended.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	return err
}
