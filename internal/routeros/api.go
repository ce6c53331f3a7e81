package routeros

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	ros "github.com/go-routeros/routeros/v3"
)

// APIDialer opens sessions over the RouterOS API protocol (8728, or 8729 with TLS)
type APIDialer struct{}

// Dial connects, applies the attempt timeout as a socket deadline, and logs in
func (APIDialer) Dial(ctx context.Context, target Target) (Session, error) {
	dialCtx := ctx
	if target.Timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, target.Timeout)
		defer cancel()
	}

	var (
		conn net.Conn
		err  error
	)
	if target.UseTLS {
		cfg := target.TLSConfig
		if cfg == nil {
			cfg = &tls.Config{}
		}
		d := &tls.Dialer{Config: cfg}
		conn, err = d.DialContext(dialCtx, "tcp", target.Address)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(dialCtx, "tcp", target.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target.Address, err)
	}

	s := &apiSession{conn: conn, timeout: target.Timeout}
	s.armDeadline(ctx)

	client, err := ros.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake %s: %w", target.Address, err)
	}
	if err := client.Login(target.Username, target.Password); err != nil {
		client.Close()
		return nil, fmt.Errorf("login %s: %w", target.Address, translate("/login", err))
	}
	s.client = client

	return s, nil
}

type apiSession struct {
	// the go-routeros client is not safe for interleaved synchronous commands
	mu      sync.Mutex
	conn    net.Conn
	client  *ros.Client
	timeout time.Duration
}

func (s *apiSession) Fetch(ctx context.Context, command string, args ...string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil, ErrNotConnected
	}

	s.armDeadline(ctx)
	stop := context.AfterFunc(ctx, func() {
		// unblock a read stuck past cancellation
		s.conn.SetDeadline(time.Now())
	})
	defer stop()

	sentence := append([]string{command}, args...)
	reply, err := s.client.RunArgs(sentence)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", command, ctxErr)
		}
		return nil, translate(command, err)
	}

	rows := make([]Row, 0, len(reply.Re))
	for _, re := range reply.Re {
		row := make(Row, len(re.Map))
		for k, v := range re.Map {
			row[k] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *apiSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	s.client.Close()
	s.client = nil
	return nil
}

// armDeadline bounds the next exchange by the attempt timeout or the context deadline
func (s *apiSession) armDeadline(ctx context.Context) {
	var deadline time.Time
	if s.timeout > 0 {
		deadline = time.Now().Add(s.timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	s.conn.SetDeadline(deadline)
}

func translate(command string, err error) error {
	var devErr *ros.DeviceError
	if errors.As(err, &devErr) {
		msg := ""
		if devErr.Sentence != nil {
			msg = devErr.Sentence.Map["message"]
		}
		if msg == "" {
			msg = strings.TrimPrefix(devErr.Error(), "from RouterOS device: ")
		}
		return &DeviceError{Command: command, Message: msg}
	}
	return fmt.Errorf("%s: %w", command, err)
}
