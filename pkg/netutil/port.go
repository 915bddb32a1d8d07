// Package netutil checks and waits for TCP endpoints.
package netutil

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/liliang-cn/deploytest/pkg/logging"
)

const (
	// DefaultPollInterval is the pause before every check in WaitForOpenPort
	DefaultPollInterval = time.Second
	// DefaultDialTimeout bounds a single connection attempt
	DefaultDialTimeout = 5 * time.Second
)

// DialFunc opens a connection; it matches net.DialTimeout.
type DialFunc func(network, address string, timeout time.Duration) (net.Conn, error)

// Poller checks ports with a configurable interval and dialer. The zero
// value uses the defaults.
type Poller struct {
	Interval    time.Duration
	DialTimeout time.Duration
	Dial        DialFunc
}

// DefaultPoller is used by the package-level functions.
var DefaultPoller = &Poller{}

// IsPortOpen reports whether a TCP connection to host:port succeeds.
func IsPortOpen(host string, port int) bool {
	return DefaultPoller.IsPortOpen(host, port)
}

// WaitForOpenPort polls host:port until it accepts connections or timeout
// passes. It returns the result of the last check.
func WaitForOpenPort(ctx context.Context, host string, port int, timeout time.Duration) bool {
	return DefaultPoller.WaitForOpenPort(ctx, host, port, timeout)
}

// IsPortOpen reports whether a TCP connection to host:port succeeds.
func (p *Poller) IsPortOpen(host string, port int) bool {
	conn, err := p.dial()("tcp", net.JoinHostPort(host, strconv.Itoa(port)), p.dialTimeout())
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// WaitForOpenPort sleeps the poll interval and checks until the port is
// open or the deadline has passed. The deadline is tested before each
// sleep, so a check may finish after it. A cancelled context ends the
// wait with false.
func (p *Poller) WaitForOpenPort(ctx context.Context, host string, port int, timeout time.Duration) bool {
	logger := logging.GetLogger("netutil")
	deadline := time.Now().Add(timeout)
	interval := p.interval()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	isOpen := false
	for !isOpen {
		if time.Now().After(deadline) {
			break
		}

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			logger.Debug().Str("host", host).Int("port", port).Err(ctx.Err()).Msg("Port wait cancelled")
			return false
		case <-timer.C:
		}

		isOpen = p.IsPortOpen(host, port)
	}

	logger.Debug().Str("host", host).Int("port", port).Bool("open", isOpen).Msg("Port wait finished")
	return isOpen
}

func (p *Poller) interval() time.Duration {
	if p.Interval > 0 {
		return p.Interval
	}
	return DefaultPollInterval
}

func (p *Poller) dialTimeout() time.Duration {
	if p.DialTimeout > 0 {
		return p.DialTimeout
	}
	return DefaultDialTimeout
}

func (p *Poller) dial() DialFunc {
	if p.Dial != nil {
		return p.Dial
	}
	return net.DialTimeout
}
