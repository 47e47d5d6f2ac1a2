package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// ValkeyProvider implements Provider backed by a Valkey/Redis-compatible server.
// Connections are short-lived: one dial per operation keeps the provider
// stateless, which is acceptable at the engine's batch cadence.
type ValkeyProvider struct {
	cfg ValkeyConfig
}

// ValkeyConfig holds connection parameters for the cache server.
type ValkeyConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	TLS          bool
}

// NewValkeyProvider creates a Provider using the supplied configuration. It pings
// the target so misconfiguration fails at startup, not mid-run.
func NewValkeyProvider(cfg ValkeyConfig) (*ValkeyProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("valkey addr is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 500 * time.Millisecond
	}

	provider := &ValkeyProvider{cfg: cfg}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := provider.ping(ctx); err != nil {
		return nil, err
	}
	return provider, nil
}

// Get fetches bytes by key, returning ErrCacheMiss when the key is absent.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := p.do(ctx, func(c *conn) error {
		reply, err := c.roundTrip("GET", []byte(key))
		if err != nil {
			return err
		}
		if reply == nil {
			return ErrCacheMiss
		}
		payload = reply
		return nil
	})
	return payload, err
}

// Set stores bytes with the provided TTL.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.do(ctx, func(c *conn) error {
		args := [][]byte{[]byte(key), value}
		if ttl > 0 {
			args = append(args, []byte("PX"), []byte(strconv.FormatInt(ttl.Milliseconds(), 10)))
		}
		reply, err := c.roundTrip("SET", args...)
		if err != nil {
			return err
		}
		if string(reply) != "OK" {
			return fmt.Errorf("unexpected SET response: %s", reply)
		}
		return nil
	})
}

// Del removes a key from the cache.
func (p *ValkeyProvider) Del(ctx context.Context, key string) error {
	return p.do(ctx, func(c *conn) error {
		_, err := c.roundTrip("DEL", []byte(key))
		return err
	})
}

// Close is a no-op for the stateless provider.
func (p *ValkeyProvider) Close() error { return nil }

func (p *ValkeyProvider) ping(ctx context.Context) error {
	return p.do(ctx, func(c *conn) error {
		reply, err := c.roundTrip("PING")
		if err != nil {
			return err
		}
		if string(reply) != "PONG" {
			return fmt.Errorf("unexpected PING response: %s", reply)
		}
		return nil
	})
}

func (p *ValkeyProvider) do(ctx context.Context, fn func(*conn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, err := p.dial(ctx)
	if err != nil {
		return err
	}
	defer c.close()

	if p.cfg.Password != "" {
		args := [][]byte{[]byte(p.cfg.Password)}
		if p.cfg.Username != "" {
			args = [][]byte{[]byte(p.cfg.Username), []byte(p.cfg.Password)}
		}
		if _, err := c.roundTrip("AUTH", args...); err != nil {
			return fmt.Errorf("valkey auth: %w", err)
		}
	}
	if p.cfg.DB > 0 {
		if _, err := c.roundTrip("SELECT", []byte(strconv.Itoa(p.cfg.DB))); err != nil {
			return fmt.Errorf("valkey select db: %w", err)
		}
	}
	return fn(c)
}

type conn struct {
	netConn      net.Conn
	reader       *bufio.Reader
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (p *ValkeyProvider) dial(ctx context.Context) (*conn, error) {
	dialer := &net.Dialer{Timeout: p.cfg.DialTimeout}
	var (
		netConn net.Conn
		err     error
	)
	if p.cfg.TLS {
		host := p.cfg.Addr
		if idx := strings.LastIndex(host, ":"); idx > 0 {
			host = host[:idx]
		}
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: host}}
		netConn, err = tlsDialer.DialContext(ctx, "tcp", p.cfg.Addr)
	} else {
		netConn, err = dialer.DialContext(ctx, "tcp", p.cfg.Addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial valkey %s: %w", p.cfg.Addr, err)
	}
	return &conn{
		netConn:      netConn,
		reader:       bufio.NewReader(netConn),
		readTimeout:  p.cfg.ReadTimeout,
		writeTimeout: p.cfg.WriteTimeout,
	}, nil
}

func (c *conn) close() { _ = c.netConn.Close() }

// roundTrip writes one RESP command and reads a single reply. Nil bulk replies
// come back as a nil slice.
func (c *conn) roundTrip(cmd string, args ...[]byte) ([]byte, error) {
	var buf []byte
	buf = append(buf, fmt.Sprintf("*%d\r\n", len(args)+1)...)
	buf = append(buf, fmt.Sprintf("$%d\r\n%s\r\n", len(cmd), cmd)...)
	for _, arg := range args {
		buf = append(buf, fmt.Sprintf("$%d\r\n", len(arg))...)
		buf = append(buf, arg...)
		buf = append(buf, '\r', '\n')
	}

	if err := c.netConn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return nil, err
	}
	if _, err := c.netConn.Write(buf); err != nil {
		return nil, err
	}

	if err := c.netConn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return nil, err
	}
	return c.readReply()
}

func (c *conn) readReply() ([]byte, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, errors.New("empty valkey reply")
	}

	switch line[0] {
	case '+', ':':
		return []byte(line[1:]), nil
	case '-':
		return nil, fmt.Errorf("valkey error: %s", line[1:])
	case '$':
		size, err := strconv.Atoi(line[1:])
		if err != nil {
			return nil, fmt.Errorf("bad bulk length %q", line)
		}
		if size < 0 {
			return nil, nil
		}
		payload := make([]byte, size+2)
		if _, err := io.ReadFull(c.reader, payload); err != nil {
			return nil, err
		}
		return payload[:size], nil
	default:
		return nil, fmt.Errorf("unsupported valkey reply %q", line)
	}
}
