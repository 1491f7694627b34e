package transmitter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// defaultConnectTimeout bounds the TCP dial plus nothing else.
	defaultConnectTimeout = 5 * time.Second

	// defaultCommandTimeout bounds one full command/reply exchange.
	defaultCommandTimeout = 2 * time.Second
)

// Client is the low-level session with the transmitter's control
// port. One command goes out, one reply line comes back; Exchange
// serialises callers so the stream never interleaves.
//
// The client deliberately knows nothing about reconnection. Any I/O
// failure closes the socket and surfaces an error; the supervisor
// owns the decision to dial again. A half-exchanged stream cannot be
// trusted to stay aligned, so a broken exchange always costs the
// connection.
type Client struct {
	addr           string
	connectTimeout time.Duration
	commandTimeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader

	commandsSent  atomic.Uint64
	commandErrors atomic.Uint64
	timeouts      atomic.Uint64
	connectedAt   atomic.Int64
}

// NewClient creates a client for the given host:port. Zero timeouts
// select the defaults.
func NewClient(addr string, connectTimeout, commandTimeout time.Duration) *Client {
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	if commandTimeout <= 0 {
		commandTimeout = defaultCommandTimeout
	}
	return &Client{
		addr:           addr,
		connectTimeout: connectTimeout,
		commandTimeout: commandTimeout,
	}
}

// Addr returns the configured device address.
func (c *Client) Addr() string { return c.addr }

// Connect dials the device.
//
// Parameters:
//   - ctx: bounds the dial together with the configured connect
//     timeout, whichever is shorter.
//
// Returns ErrAlreadyConnected when a session is open, or
// ErrConnectionFailed wrapping the dial error.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return ErrAlreadyConnected
	}

	dialer := net.Dialer{Timeout: c.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, c.addr, err)
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.connectedAt.Store(time.Now().UnixMilli())
	return nil
}

// Connected reports whether a session is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close tears the session down. Safe to call when not connected.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

// closeLocked closes the socket. Caller holds the lock.
func (c *Client) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

// Exchange sends one command and reads one reply line.
//
// Parameters:
//   - ctx: an earlier ctx deadline overrides the command timeout.
//   - command: the bare command, no terminator.
//
// Returns the reply with surrounding whitespace trimmed. On any I/O
// failure the socket is closed before returning: a stream that
// missed a reply can deliver that reply to the next command, and a
// misattributed "OK" on this hardware is worse than a reconnect.
func (c *Client) Exchange(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return "", ErrNotConnected
	}

	deadline := time.Now().Add(c.commandTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		c.closeLocked()
		c.commandErrors.Add(1)
		return "", fmt.Errorf("%w: set deadline: %w", ErrConnectionLost, err)
	}

	if _, err := c.conn.Write([]byte(command + "\n")); err != nil {
		c.closeLocked()
		c.commandErrors.Add(1)
		if errors.Is(err, os.ErrDeadlineExceeded) {
			c.timeouts.Add(1)
			return "", fmt.Errorf("%w: write %q", ErrCommandTimeout, command)
		}
		return "", fmt.Errorf("%w: write %q: %w", ErrConnectionLost, command, err)
	}

	line, err := c.reader.ReadString('\n')
	if err != nil {
		c.closeLocked()
		c.commandErrors.Add(1)
		if errors.Is(err, os.ErrDeadlineExceeded) {
			c.timeouts.Add(1)
			return "", fmt.Errorf("%w: no reply to %q within %s", ErrCommandTimeout, command, c.commandTimeout)
		}
		return "", fmt.Errorf("%w: read reply to %q: %w", ErrConnectionLost, command, err)
	}

	c.commandsSent.Add(1)
	return strings.TrimSpace(line), nil
}

// Set sends a setter command and maps the reply: OK variants return
// nil, ERROR variants return ErrCommandRejected with the detail
// attached, anything else is ErrMalformedReply.
func (c *Client) Set(ctx context.Context, command string) error {
	reply, err := c.Exchange(ctx, command)
	if err != nil {
		return err
	}
	if IsOK(reply) {
		return nil
	}
	if err := ReplyError(reply); err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	return fmt.Errorf("%w: %s replied %q", ErrMalformedReply, command, reply)
}

// Identify queries *IDN? and parses the identity.
func (c *Client) Identify(ctx context.Context) (Identity, error) {
	reply, err := c.Exchange(ctx, CmdIdentify)
	if err != nil {
		return Identity{}, err
	}
	return ParseIdentity(reply)
}

// QueryStatus queries STATUS? and parses the report.
func (c *Client) QueryStatus(ctx context.Context) (StatusReport, error) {
	reply, err := c.Exchange(ctx, CmdQueryStatus)
	if err != nil {
		return StatusReport{}, err
	}
	return ParseStatus(reply)
}

// QueryWatchdog queries WATCHDOG:STATUS? and parses the report.
func (c *Client) QueryWatchdog(ctx context.Context) (WatchdogStatus, error) {
	reply, err := c.Exchange(ctx, CmdQueryWatchdog)
	if err != nil {
		return WatchdogStatus{}, err
	}
	return ParseWatchdogStatus(reply)
}

// ResetWatchdog sends the heartbeat the device's watchdog feeds on.
func (c *Client) ResetWatchdog(ctx context.Context) error {
	return c.Set(ctx, CmdWatchdogReset)
}

// ClientStats is a point-in-time counter snapshot.
type ClientStats struct {
	CommandsSent  uint64    `json:"commands_sent"`
	CommandErrors uint64    `json:"command_errors"`
	Timeouts      uint64    `json:"timeouts"`
	ConnectedAt   time.Time `json:"connected_at,omitzero"`
}

// Stats returns current session counters.
func (c *Client) Stats() ClientStats {
	stats := ClientStats{
		CommandsSent:  c.commandsSent.Load(),
		CommandErrors: c.commandErrors.Load(),
		Timeouts:      c.timeouts.Load(),
	}
	if ms := c.connectedAt.Load(); ms > 0 {
		stats.ConnectedAt = time.UnixMilli(ms).UTC()
	}
	return stats
}
