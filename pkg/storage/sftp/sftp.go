// Package sftp stores product media on a remote file server over SFTP.
package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/storage"
)

// connectFunc dials the server and returns an SFTP client plus the transport to
// close after it.
type connectFunc func(ctx context.Context) (*sftp.Client, io.Closer, error)

// Opener hands out lazily connected sessions against one fixed server.
type Opener struct {
	baseDir string
	connect connectFunc
	logg    *logger.Logger
}

// NewOpener validates the media store settings and prepares the SSH client config.
func NewOpener(cfg config.MediaStoreConfig, logg *logger.Logger) (*Opener, error) {
	if strings.TrimSpace(cfg.SFTPHost) == "" {
		return nil, fmt.Errorf("sftp host required")
	}
	if strings.TrimSpace(cfg.SFTPUser) == "" {
		return nil, fmt.Errorf("sftp user required")
	}

	auth, err := authMethods(cfg)
	if err != nil {
		return nil, err
	}
	hostKey, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, err
	}

	port := cfg.SFTPPort
	if port <= 0 {
		port = 22
	}
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	clientCfg := &ssh.ClientConfig{
		User:            cfg.SFTPUser,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}
	addr := net.JoinHostPort(cfg.SFTPHost, strconv.Itoa(port))

	return &Opener{
		baseDir: cfg.BaseDir,
		connect: sshConnector(addr, clientCfg, timeout),
		logg:    logg,
	}, nil
}

func authMethods(cfg config.MediaStoreConfig) ([]ssh.AuthMethod, error) {
	methods := []ssh.AuthMethod{}
	if key := strings.TrimSpace(cfg.SFTPPrivateKey); key != "" {
		signer, err := ssh.ParsePrivateKey([]byte(key))
		if err != nil {
			return nil, fmt.Errorf("parsing sftp private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if cfg.SFTPPassword != "" {
		methods = append(methods, ssh.Password(cfg.SFTPPassword))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("sftp password or private key required")
	}
	return methods, nil
}

func hostKeyCallback(cfg config.MediaStoreConfig) (ssh.HostKeyCallback, error) {
	if key := strings.TrimSpace(cfg.SFTPHostKey); key != "" {
		pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key))
		if err != nil {
			return nil, fmt.Errorf("parsing sftp host key: %w", err)
		}
		return ssh.FixedHostKey(pub), nil
	}
	if cfg.SFTPInsecureHost {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	return nil, fmt.Errorf("sftp host key required unless %s is set", "STOREFRONT_SFTP_INSECURE_HOST_KEY")
}

// sshConnector bounds the whole connect (TCP dial, SSH handshake, SFTP init)
// by timeout and ctx. ssh.NewClientConn applies neither, so the deadline is
// set on the raw conn and ctx cancellation closes it.
func sshConnector(addr string, clientCfg *ssh.ClientConfig, timeout time.Duration) connectFunc {
	return func(ctx context.Context) (*sftp.Client, io.Closer, error) {
		deadline := time.Now().Add(timeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		dialer := &net.Dialer{Deadline: deadline}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, nil, fmt.Errorf("dialing %s: %w", addr, err)
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("setting connect deadline: %w", err)
		}
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

		client, sshClient, err := handshake(conn, addr, clientCfg)
		if !stop() {
			// ctx fired and closed conn; its error explains the failure better.
			err = ctx.Err()
		}
		if err == nil {
			err = conn.SetDeadline(time.Time{})
		}
		if err != nil {
			if sshClient != nil {
				_ = sshClient.Close()
			}
			_ = conn.Close()
			return nil, nil, fmt.Errorf("connecting to %s: %w", addr, err)
		}
		return client, sshClient, nil
	}
}

func handshake(conn net.Conn, addr string, clientCfg *ssh.ClientConfig) (*sftp.Client, *ssh.Client, error) {
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("ssh handshake: %w", err)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)
	client, err := sftp.NewClient(sshClient)
	if err != nil {
		return nil, sshClient, fmt.Errorf("starting sftp subsystem: %w", err)
	}
	return client, sshClient, nil
}

// Open returns an unconnected session; the first transfer dials the server.
func (o *Opener) Open(ctx context.Context) (storage.Session, error) {
	return &session{opener: o}, nil
}

type session struct {
	opener *Opener

	mu        sync.Mutex
	client    *sftp.Client
	transport io.Closer
	dirReady  bool
}

func (s *session) ensureOpen(ctx context.Context) (*sftp.Client, error) {
	if s.client != nil {
		return s.client, nil
	}
	client, transport, err := s.opener.connect(ctx)
	if err != nil {
		return nil, err
	}
	s.client = client
	s.transport = transport
	if s.opener.logg != nil {
		s.opener.logg.Debug(ctx, "sftp session opened")
	}
	return client, nil
}

func (s *session) remotePath(remoteName string) string {
	if s.opener.baseDir == "" {
		return remoteName
	}
	return path.Join(s.opener.baseDir, remoteName)
}

func (s *session) Upload(ctx context.Context, r io.Reader, remoteName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.ensureOpen(ctx)
	if err != nil {
		return storage.TransferError("upload", remoteName, err)
	}
	if !s.dirReady && s.opener.baseDir != "" {
		if err := client.MkdirAll(s.opener.baseDir); err != nil {
			return storage.TransferError("upload", remoteName, fmt.Errorf("creating base dir: %w", err))
		}
		s.dirReady = true
	}

	f, err := client.Create(s.remotePath(remoteName))
	if err != nil {
		return storage.TransferError("upload", remoteName, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return storage.TransferError("upload", remoteName, err)
	}
	if err := f.Close(); err != nil {
		return storage.TransferError("upload", remoteName, err)
	}
	return nil
}

func (s *session) Delete(ctx context.Context, remoteName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.ensureOpen(ctx)
	if err != nil {
		return storage.TransferError("delete", remoteName, err)
	}
	if err := client.Remove(s.remotePath(remoteName)); err != nil {
		if isNotExist(err) {
			return storage.ErrNotFound
		}
		return storage.TransferError("delete", remoteName, err)
	}
	return nil
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	if s.transport != nil {
		if cerr := s.transport.Close(); cerr != nil && err == nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}
	s.client = nil
	s.transport = nil
	s.dirReady = false
	return err
}

func isNotExist(err error) bool {
	if errors.Is(err, os.ErrNotExist) {
		return true
	}
	var status *sftp.StatusError
	return errors.As(err, &status) && status.Code == uint32(sftp.ErrSSHFxNoSuchFile)
}
