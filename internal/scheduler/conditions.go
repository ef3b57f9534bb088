package scheduler

import (
	"context"
	"net"
	"net/url"
	"time"
)

// Conditions answers constraint checks before each run.
type Conditions interface {
	NetworkAvailable(ctx context.Context) bool
	BatteryNotLow(ctx context.Context) bool
}

// AlwaysMet satisfies every constraint.
type AlwaysMet struct{}

func (AlwaysMet) NetworkAvailable(context.Context) bool { return true }
func (AlwaysMet) BatteryNotLow(context.Context) bool    { return true }

// HostConditions probes network reachability by dialing the API host.
// Hosts without a battery report it as never low.
type HostConditions struct {
	Address string
	Timeout time.Duration
	dial    func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewHostConditions probes the host of baseURL.
func NewHostConditions(baseURL string, timeout time.Duration) (*HostConditions, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	d := &net.Dialer{}
	return &HostConditions{
		Address: net.JoinHostPort(u.Hostname(), port),
		Timeout: timeout,
		dial:    d.DialContext,
	}, nil
}

// NetworkAvailable reports whether a TCP connection to Address succeeds.
func (h *HostConditions) NetworkAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()
	conn, err := h.dial(ctx, "tcp", h.Address)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (h *HostConditions) BatteryNotLow(context.Context) bool { return true }
