package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

var (
	ErrSSHConnection     = errors.New("ssh: connection failed")
	ErrSSHAuthentication = errors.New("ssh: authentication failed")
	ErrSSHCommandFailed  = errors.New("ssh: command execution failed")
)

// probeCommand is run on each host once the session is up.
const probeCommand = "hostname"

type SSHConfig struct {
	Port       int
	User       string
	Password   string
	PrivateKey string
	Timeout    time.Duration
	MaxRetries int
}

// SSHProber checks that cluster hosts accept SSH logins with the configured credentials.
type SSHProber struct {
	config SSHConfig
}

func NewSSHProber(cfg SSHConfig) *SSHProber {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 1
	}
	return &SSHProber{config: cfg}
}

// LoadPrivateKey reads a PEM key file for SSHConfig.PrivateKey. An empty path yields no key.
func LoadPrivateKey(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read key file: %v", ErrSSHAuthentication, err)
	}
	return string(data), nil
}

func (p *SSHProber) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if p.config.PrivateKey != "" {
		signer, err := ssh.ParsePrivateKey([]byte(p.config.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid private key", ErrSSHAuthentication)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if p.config.Password != "" {
		methods = append(methods, ssh.Password(p.config.Password))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("%w: no credentials provided", ErrSSHAuthentication)
	}
	return methods, nil
}

// Probe opens an SSH session to host and runs a trivial command.
// host may carry its own port ("node1:2222").
func (p *SSHProber) Probe(ctx context.Context, host string) error {
	client, err := p.connect(ctx, host)
	if err != nil {
		return err
	}
	defer client.Close()

	_, err = execute(ctx, client, probeCommand)
	return err
}

func (p *SSHProber) connect(ctx context.Context, host string) (*ssh.Client, error) {
	methods, err := p.authMethods()
	if err != nil {
		return nil, err
	}
	sshConfig := &ssh.ClientConfig{
		User:            p.config.User,
		Auth:            methods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         p.config.Timeout,
	}

	addr := host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		addr = net.JoinHostPort(host, strconv.Itoa(p.config.Port))
	}

	var lastErr error
	for attempt := 1; attempt <= p.config.MaxRetries; attempt++ {
		dialer := net.Dialer{Timeout: p.config.Timeout}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
		} else {
			_ = conn.SetDeadline(time.Now().Add(p.config.Timeout))
			c, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
			if err == nil {
				_ = conn.SetDeadline(time.Time{})
				return ssh.NewClient(c, chans, reqs), nil
			}
			conn.Close()
			lastErr = err
		}

		if attempt < p.config.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %s: %v", ErrSSHConnection, addr, ctx.Err())
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}

	reason := "connection failed"
	if errors.Is(lastErr, context.DeadlineExceeded) || (lastErr != nil && strings.Contains(lastErr.Error(), "timeout")) {
		reason = "connection timed out"
	}
	return nil, fmt.Errorf("%w: %s: %s: %v", ErrSSHConnection, addr, reason, lastErr)
}

func execute(ctx context.Context, client *ssh.Client, cmd string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("%w: failed to create session", ErrSSHConnection)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return "", fmt.Errorf("%w: command cancelled", ctx.Err())
	case err := <-done:
		if err != nil {
			msg := stderr.String()
			if msg == "" {
				msg = err.Error()
			}
			return stdout.String(), fmt.Errorf("%w: %s", ErrSSHCommandFailed, strings.TrimSpace(msg))
		}
	}
	return stdout.String(), nil
}
