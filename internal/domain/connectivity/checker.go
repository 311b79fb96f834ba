package connectivity

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"slices"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"

	"dogtranslator/internal/platform/logging"
)

const defaultProbeTimeout = 3 * time.Second

// Status is the outcome of one connectivity check.
type Status struct {
	Online     bool
	Interfaces int // usable non-loopback interfaces, -1 when unknown
	Target     string
	Latency    time.Duration
	Reason     string
}

// Options configures a Checker.
type Options struct {
	ProbeTimeout time.Duration
	// RequireInterface fails fast when no non-loopback interface is up.
	RequireInterface bool
	Logger           *logging.Logger
}

// Checker decides whether the backend is reachable.
type Checker struct {
	target           string
	timeout          time.Duration
	requireInterface bool
	logger           *logging.Logger

	interfaces func(ctx context.Context) ([]psnet.InterfaceStat, error)
	dial       func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewChecker probes the host of baseURL.
func NewChecker(baseURL string, opts Options) (*Checker, error) {
	target, err := probeTarget(baseURL)
	if err != nil {
		return nil, err
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	dialer := &net.Dialer{}
	return &Checker{
		target:           target,
		timeout:          opts.ProbeTimeout,
		requireInterface: opts.RequireInterface,
		logger:           opts.Logger,
		interfaces: func(ctx context.Context) ([]psnet.InterfaceStat, error) {
			return psnet.InterfacesWithContext(ctx)
		},
		dial: dialer.DialContext,
	}, nil
}

// Online reports whether the backend host accepted a TCP connection.
func (c *Checker) Online(ctx context.Context) bool {
	return c.Check(ctx).Online
}

// Check runs the interface check followed by the dial probe.
func (c *Checker) Check(ctx context.Context) Status {
	st := Status{Target: c.target, Interfaces: -1}

	if c.requireInterface {
		ifaces, err := c.interfaces(ctx)
		if err != nil {
			// unknown interface state counts as connected
			c.logger.DebugTag("Offline", "interface check unavailable: %v", err)
		} else {
			st.Interfaces = countUsable(ifaces)
			if st.Interfaces == 0 {
				st.Reason = "no network interface is up"
				c.logger.InfoTag("Offline", "device offline", map[string]any{"reason": st.Reason})
				return st
			}
		}
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	start := time.Now()
	conn, err := c.dial(probeCtx, "tcp", c.target)
	st.Latency = time.Since(start)
	if err != nil {
		st.Reason = err.Error()
		c.logger.InfoTag("Offline", "backend unreachable", map[string]any{
			"target": c.target,
			"error":  err.Error(),
		})
		return st
	}
	_ = conn.Close()

	st.Online = true
	c.logger.DebugTag("Offline", "backend reachable", map[string]any{
		"target":     c.target,
		"latency_ms": st.Latency.Milliseconds(),
	})
	return st
}

func countUsable(ifaces []psnet.InterfaceStat) int {
	n := 0
	for _, iface := range ifaces {
		if slices.Contains(iface.Flags, "loopback") || !slices.Contains(iface.Flags, "up") {
			continue
		}
		n++
	}
	return n
}

func probeTarget(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("connectivity: invalid base url %q", baseURL)
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "http":
			port = "80"
		default:
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}
