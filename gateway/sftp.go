package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"vidproc/logger"
)

// SFTPOptions configures the SFTP backend. Buckets map to remote directories.
type SFTPOptions struct {
	Host       string
	Port       string // default 22
	User       string
	Password   string
	PrivateKey string // base64 or raw PEM, takes precedence over Password
}

// SFTP stores objects as files on a remote host.
type SFTP struct {
	opts    SFTPOptions
	buckets Buckets
}

// NewSFTP validates the options. Connections are opened per call.
func NewSFTP(buckets Buckets, opts SFTPOptions) (*SFTP, error) {
	if opts.Host == "" || opts.User == "" {
		return nil, fmt.Errorf("sftp backend needs host and user")
	}
	if opts.PrivateKey == "" && opts.Password == "" {
		return nil, fmt.Errorf("no auth method provided; set password or private key")
	}
	if opts.Port == "" {
		opts.Port = "22"
	}
	return &SFTP{opts: opts, buckets: buckets}, nil
}

func (s *SFTP) authMethods() ([]ssh.AuthMethod, error) {
	if s.opts.PrivateKey != "" {
		// try to decode as base64, fall back to raw
		keyBytes, err := base64.StdEncoding.DecodeString(s.opts.PrivateKey)
		if err != nil {
			keyBytes = []byte(s.opts.PrivateKey)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	return []ssh.AuthMethod{ssh.Password(s.opts.Password)}, nil
}

// connect dials the server respecting ctx. The returned func closes both clients.
func (s *SFTP) connect(ctx context.Context) (*sftp.Client, func(), error) {
	auths, err := s.authMethods()
	if err != nil {
		return nil, nil, err
	}

	config := &ssh.ClientConfig{
		User:            s.opts.User,
		Auth:            auths,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	addr := net.JoinHostPort(s.opts.Host, s.opts.Port)
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("dial tcp %s: %w", addr, err)
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	sshClient := ssh.NewClient(clientConn, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, nil, fmt.Errorf("create sftp client: %w", err)
	}

	return client, func() {
		client.Close()
		sshClient.Close()
	}, nil
}

func (s *SFTP) Fetch(ctx context.Context, key, localPath string) error {
	client, closeFn, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	remotePath := path.Join(s.buckets.Inbound, key)
	src, err := client.Open(remotePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("sftp %s: %w", remotePath, ErrNotFound)
		}
		return fmt.Errorf("open remote file %s: %w", remotePath, err)
	}
	defer src.Close()

	err = writeLocal(localPath, func(w io.Writer) error {
		if _, err := io.Copy(w, src); err != nil {
			return fmt.Errorf("copy from remote file %s: %w", remotePath, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Infof("Downloaded sftp %s to %s", remotePath, localPath)
	return nil
}

func (s *SFTP) Publish(ctx context.Context, localPath, key string) error {
	bucket := s.buckets.Outbound
	remotePath := path.Join(bucket, key)

	client, closeFn, err := s.connect(ctx)
	if err != nil {
		return &PublishError{Step: StepUpload, Bucket: bucket, Key: key, Err: err}
	}
	defer closeFn()

	if err := uploadSFTP(client, localPath, remotePath); err != nil {
		return &PublishError{Step: StepUpload, Bucket: bucket, Key: key, Err: err}
	}

	if err := client.Chmod(remotePath, 0644); err != nil {
		return &PublishError{Step: StepVisibility, Bucket: bucket, Key: key, Err: err}
	}

	logger.Infof("Published %s to sftp %s (world readable)", localPath, remotePath)
	return nil
}

func uploadSFTP(client *sftp.Client, localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dir := path.Dir(remotePath)
	if err := mkdirAllSFTP(client, dir); err != nil {
		return fmt.Errorf("ensure remote dir %s: %w", dir, err)
	}

	dst, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote file %s: %w", remotePath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy to remote file %s: %w", remotePath, err)
	}
	return dst.Close()
}

// mkdirAllSFTP mimics os.MkdirAll for an SFTP server by creating each segment of the path.
func mkdirAllSFTP(client *sftp.Client, dir string) error {
	if dir == "" || dir == "." || dir == "/" {
		return nil
	}

	cur := ""
	if strings.HasPrefix(dir, "/") {
		cur = "/"
	}
	for _, p := range strings.Split(dir, "/") {
		if p == "" {
			continue
		}
		cur = path.Join(cur, p)
		if _, err := client.Stat(cur); err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("stat %s: %w", cur, err)
			}
			if err := client.Mkdir(cur); err != nil {
				return fmt.Errorf("mkdir %s: %w", cur, err)
			}
		}
	}
	return nil
}
