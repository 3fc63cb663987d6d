package remote

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

var (
	ErrSSHConnection     = errors.New("ssh: connection failed")
	ErrSSHAuthentication = errors.New("ssh: authentication failed")
	ErrSSHCommandFailed  = errors.New("ssh: command execution failed")
	ErrSSHUploadFailed   = errors.New("ssh: upload failed")
)

type SSHConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	PrivateKey string
	Timeout    time.Duration
	MaxRetries int
}

type SSHClient struct {
	config SSHConfig
}

func NewSSHClient(cfg SSHConfig) *SSHClient {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	return &SSHClient{config: cfg}
}

func (c *SSHClient) getAuthMethods() ([]ssh.AuthMethod, error) {
	var authMethods []ssh.AuthMethod

	if c.config.PrivateKey != "" {
		signer, err := ssh.ParsePrivateKey([]byte(c.config.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid private key", ErrSSHAuthentication)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	if c.config.Password != "" {
		authMethods = append(authMethods, ssh.Password(c.config.Password))
	}

	if len(authMethods) == 0 {
		return nil, fmt.Errorf("%w: no credentials provided", ErrSSHAuthentication)
	}

	return authMethods, nil
}

// ConnectWithRetry attempts to connect to the SSH server with linear backoff
func (c *SSHClient) ConnectWithRetry() (*ssh.Client, error) {
	authMethods, err := c.getAuthMethods()
	if err != nil {
		return nil, err
	}

	sshConfig := &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.config.Timeout,
	}

	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	var connectErr error

	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		dialer := net.Dialer{
			Timeout:   c.config.Timeout,
			KeepAlive: 60 * time.Second,
		}

		conn, err := dialer.Dial("tcp", addr)
		if err != nil {
			connectErr = err
		} else {
			conn.SetDeadline(time.Now().Add(c.config.Timeout))

			sc, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
			if err != nil {
				conn.Close()
				connectErr = err
			} else {
				// Clear deadline for the long-running SSH session
				conn.SetDeadline(time.Time{})
				return ssh.NewClient(sc, chans, reqs), nil
			}
		}

		if attempt < c.config.MaxRetries {
			time.Sleep(time.Duration(attempt*3) * time.Second)
		}
	}

	return nil, fmt.Errorf("%w: %v (after %d attempts)", ErrSSHConnection, connectErr, c.config.MaxRetries)
}

// Execute runs a command on an existing connection and returns the
// combined buffered output.
func (c *SSHClient) Execute(ctx context.Context, client *ssh.Client, cmd string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("%w: failed to create session", ErrSSHConnection)
	}
	defer session.Close()

	go func() {
		<-ctx.Done()
		session.Signal(ssh.SIGKILL)
		session.Close()
	}()

	output, err := session.CombinedOutput(cmd)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: command timed out", ctx.Err())
		}
		return string(output), fmt.Errorf("%w: %v", ErrSSHCommandFailed, err)
	}
	return string(output), nil
}

// Stream runs a command on an existing connection and emits each output
// line as it is produced, stdout and stderr interleaved.
func (c *SSHClient) Stream(ctx context.Context, client *ssh.Client, cmd string, emit func(line string)) error {
	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("%w: failed to create session", ErrSSHConnection)
	}
	defer session.Close()

	// Callers that need stderr merge it shell-side with 2>&1.
	stdout, err := session.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: stdout pipe failed", ErrSSHConnection)
	}

	go func() {
		<-ctx.Done()
		session.Signal(ssh.SIGKILL)
		session.Close()
	}()

	if err := session.Start(cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrSSHCommandFailed, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		emit(scanner.Text())
	}

	if err := session.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrSSHCommandFailed, err)
	}
	return nil
}

// Upload copies a local file to the remote host over SFTP.
func (c *SSHClient) Upload(client *ssh.Client, localPath, remotePath string) error {
	localFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSSHUploadFailed, err)
	}
	defer localFile.Close()

	stat, err := localFile.Stat()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSSHUploadFailed, err)
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return fmt.Errorf("%w: sftp client: %v", ErrSSHUploadFailed, err)
	}
	defer sftpClient.Close()

	remoteFile, err := sftpClient.Create(remotePath)
	if err != nil {
		return fmt.Errorf("%w: create remote file: %v", ErrSSHUploadFailed, err)
	}

	written, err := remoteFile.ReadFrom(localFile)
	remoteFile.Close()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSSHUploadFailed, err)
	}
	if written != stat.Size() {
		return fmt.Errorf("%w: incomplete upload, %d of %d bytes", ErrSSHUploadFailed, written, stat.Size())
	}
	return nil
}
