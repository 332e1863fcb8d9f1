package transport

import (
	"context"
	"errors"
	"time"

	"nhooyr.io/websocket"

	"github.com/catalogops/syncboard/internal/syncstate"
)

// ErrRetryBudgetExhausted is returned by Run once every reconnect attempt
// in the budget has failed. The store is left with the connectivity flag
// down; recovering requires a process restart. This is a user-visible
// degraded mode, not a fatal condition.
var ErrRetryBudgetExhausted = errors.New("reconnect retry budget exhausted")

const maxEventBytes = 1 << 20

type Logger interface {
	Printf(format string, args ...any)
}

// Conn is one established event-feed connection.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// DialFunc establishes a Conn. Swappable for tests.
type DialFunc func(ctx context.Context) (Conn, error)

type ClientOptions struct {
	// URL of the upstream WebSocket event feed, ws:// or wss://.
	URL string
	// RetryBudget bounds consecutive failed reconnect attempts. Default 5.
	RetryBudget int
	// RetryInterval is the fixed wait between reconnect attempts.
	// Default 3s.
	RetryInterval time.Duration
	Logger        Logger
	// Dial overrides the WebSocket dialer, for tests.
	Dial DialFunc
}

// Client consumes the upstream push feed and applies decoded events to the
// store in arrival order. Everything that goes wrong here is surfaced only
// through the store's connectivity flag and diagnostic logs.
type Client struct {
	store         *syncstate.Store
	decoder       *EventDecoder
	dial          DialFunc
	retryBudget   int
	retryInterval time.Duration
	logger        Logger
}

func NewClient(store *syncstate.Store, opts ClientOptions) (*Client, error) {
	decoder, err := NewEventDecoder()
	if err != nil {
		return nil, err
	}
	retryBudget := opts.RetryBudget
	if retryBudget <= 0 {
		retryBudget = 5
	}
	retryInterval := opts.RetryInterval
	if retryInterval <= 0 {
		retryInterval = 3 * time.Second
	}
	dial := opts.Dial
	if dial == nil {
		dial = websocketDialer(opts.URL)
	}
	return &Client{
		store:         store,
		decoder:       decoder,
		dial:          dial,
		retryBudget:   retryBudget,
		retryInterval: retryInterval,
		logger:        opts.Logger,
	}, nil
}

// Run connects and reads until ctx is canceled or the retry budget runs
// out. The budget refills after each successful connection, so it bounds
// one outage window, not process lifetime.
func (c *Client) Run(ctx context.Context) error {
	retriesLeft := c.retryBudget
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if retriesLeft == 0 {
				c.logf("event feed unreachable, retry budget exhausted")
				return ErrRetryBudgetExhausted
			}
			retriesLeft--
			c.logf("event feed dial failed (%d retries left): %v", retriesLeft, err)
			if err := waitWithContext(ctx, c.retryInterval); err != nil {
				return err
			}
			continue
		}

		retriesLeft = c.retryBudget
		c.store.SetConnected(true)
		readErr := c.readLoop(ctx, conn)
		_ = conn.Close()
		c.store.SetConnected(false)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logf("event feed disconnected: %v", readErr)
		if err := waitWithContext(ctx, c.retryInterval); err != nil {
			return err
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn Conn) error {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		event, err := c.decoder.Decode(data)
		if err != nil {
			// Malformed payloads never reach the reducer.
			c.logf("dropping event: %v", err)
			continue
		}
		c.store.Apply(event)
	}
}

func (c *Client) logf(format string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Printf(format, args...)
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

func websocketDialer(url string) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		conn, _, err := websocket.Dial(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		conn.SetReadLimit(maxEventBytes)
		return &wsConn{conn: conn}, nil
	}
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
