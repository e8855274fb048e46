package reference

import (
	"context"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"digital.vasic.beekeeper/pkg/logging"
)

// Publisher holds the SFTP connection settings of one publisher.
type Publisher struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	KeyFile    string `mapstructure:"key_file"`
	KnownHosts string `mapstructure:"known_hosts"`

	// Root is prefixed to the descriptor path on the server.
	Root string `mapstructure:"root"`
}

// SFTPFetcher downloads references from publishers' SFTP servers
// using key authentication.
type SFTPFetcher struct {
	publishers map[string]Publisher
	logger     logging.Logger

	// timeout bounds the SSH handshake; transferTimeout bounds the
	// session and download that follow.
	timeout         time.Duration
	transferTimeout time.Duration
}

// NewSFTPFetcher creates an SFTPFetcher for the given publishers.
func NewSFTPFetcher(publishers map[string]Publisher, logger logging.Logger) *SFTPFetcher {
	if logger == nil {
		logger = logging.NullLogger{}
	}
	return &SFTPFetcher{
		publishers:      publishers,
		logger:          logger,
		timeout:         30 * time.Second,
		transferTimeout: 5 * time.Minute,
	}
}

// Fetch implements Fetcher.
func (f *SFTPFetcher) Fetch(ctx context.Context, d Descriptor, dir string) (string, error) {
	pub, ok := f.publishers[d.Publisher]
	if !ok {
		return "", errors.Mark(
			errors.Newf("no sftp settings for publisher %q", d.Publisher),
			ErrDescriptor,
		)
	}

	cfg, err := f.clientConfig(pub)
	if err != nil {
		return "", err
	}

	port := pub.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(pub.Host, strconv.Itoa(port))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", errors.Wrapf(err, "dial %s", addr)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.SetDeadline(time.Now().Add(f.timeout)); err != nil {
		conn.Close()
		return "", errors.Wrap(err, "set handshake deadline")
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		if ctx.Err() != nil {
			return "", errors.Wrapf(ctx.Err(), "ssh handshake with %s", addr)
		}
		return "", errors.Wrapf(err, "ssh handshake with %s", addr)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()
	if err := conn.SetDeadline(time.Now().Add(f.transferTimeout)); err != nil {
		return "", errors.Wrap(err, "set transfer deadline")
	}

	sc, err := sftp.NewClient(client)
	if err != nil {
		return "", errors.Wrap(err, "start sftp session")
	}
	defer sc.Close()

	remote := path.Join(pub.Root, d.RemotePath())
	src, err := sc.Open(remote)
	if err != nil {
		return "", errors.Wrapf(err, "open %s", remote)
	}
	defer src.Close()

	dst := filepath.Join(dir, filepath.Base(d.File))
	if err := copyFile(dst, src); err != nil {
		return "", err
	}
	f.logger.Info("reference downloaded",
		logging.StringField("host", pub.Host),
		logging.StringField("remote", remote),
		logging.StringField("local", dst))
	return dst, nil
}

func (f *SFTPFetcher) clientConfig(pub Publisher) (*ssh.ClientConfig, error) {
	key, err := os.ReadFile(pub.KeyFile)
	if err != nil {
		return nil, errors.Wrapf(err, "read key file for %s", pub.Host)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}

	if pub.KnownHosts == "" {
		return nil, errors.WithHintf(
			errors.Newf("no known_hosts file configured for %s", pub.Host),
			"set publishers.<name>.known_hosts to a file holding the key of %s", pub.Host)
	}
	hostKey, err := knownhosts.New(pub.KnownHosts)
	if err != nil {
		return nil, errors.Wrap(err, "load known_hosts")
	}

	return &ssh.ClientConfig{
		User:            pub.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKey,
		Timeout:         f.timeout,
	}, nil
}

// copyFile writes r to path through a temporary file so a failed
// transfer never leaves a truncated reference behind.
func copyFile(path string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".ref-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return errors.Wrap(err, "download reference")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "rename reference")
}
