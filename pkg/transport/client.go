package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dmerejkowsky/libqi/pkg/future"
	"github.com/dmerejkowsky/libqi/pkg/logging"
	"github.com/dmerejkowsky/libqi/pkg/metrics"
	"github.com/dmerejkowsky/libqi/pkg/tracing"
	"github.com/dmerejkowsky/libqi/pkg/value"
)

// EventHandler receives one decoded signal emission for a subscription.
type EventHandler func(params []value.Value)

// Client is the caller side of the transport: it sends calls over one
// websocket connection and resolves the returned futures from the reply
// stream.
type Client struct {
	endpoint string
	conn     *websocket.Conn
	log      *logging.Logger
	met      *metrics.Metrics

	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[string]*future.Promise[value.Value]
	links    map[string]*future.Promise[uint32]
	handlers map[uint32]EventHandler
	closed   bool
}

// ClientOptions tunes a client; zero values mean defaults.
type ClientOptions struct {
	Logger  *logging.Logger
	Metrics *metrics.Metrics
}

// Dial connects to a node endpoint ("host:port" or a ws:// URL).
func Dial(ctx context.Context, endpoint string, opts ClientOptions) (*Client, error) {
	url := endpoint
	if len(url) < 5 || url[:5] != "ws://" {
		url = "ws://" + endpoint + "/qi"
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	c := &Client{
		endpoint: endpoint,
		conn:     conn,
		log:      opts.Logger,
		met:      opts.Metrics,
		pending:  make(map[string]*future.Promise[value.Value]),
		links:    make(map[string]*future.Promise[uint32]),
		handlers: make(map[uint32]EventHandler),
	}
	go c.readPump()
	return c, nil
}

// Send invokes methodID on the named service and returns the pending
// result future.
func (c *Client) Send(service string, methodID uint32, params []value.Value) future.Future[value.Value] {
	p := future.NewPromise[value.Value]()

	sig, payload, err := EncodeParams(params)
	if err != nil {
		p.SetError(fmt.Sprintf("encode parameters: %v", err))
		return p.Future()
	}
	msg := Message{
		ID:        uuid.NewString(),
		Kind:      KindCall,
		Service:   service,
		Target:    methodID,
		Signature: sig,
		Payload:   payload,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		p.SetError("connection is closed")
		return p.Future()
	}
	c.pending[msg.ID] = p
	c.mu.Unlock()

	_, span := tracing.StartSend(context.Background(), c.endpoint, string(KindCall))
	err = c.write(msg)
	tracing.EndWithError(span, err)
	if err != nil {
		c.forget(msg.ID)
		p.SetError(fmt.Sprintf("send: %v", err))
		return p.Future()
	}
	if c.met != nil {
		c.met.RecordMessage("out", string(KindCall))
	}
	return p.Future()
}

// Subscribe connects handler to a service signal and resolves to the
// remote link id.
func (c *Client) Subscribe(service string, signalID uint32, handler EventHandler) future.Future[uint32] {
	p := future.NewPromise[uint32]()
	msg := Message{
		ID:      uuid.NewString(),
		Kind:    KindSubscribe,
		Service: service,
		Target:  signalID,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		p.SetError("connection is closed")
		return p.Future()
	}
	c.links[msg.ID] = p
	c.mu.Unlock()

	if err := c.write(msg); err != nil {
		c.mu.Lock()
		delete(c.links, msg.ID)
		c.mu.Unlock()
		p.SetError(fmt.Sprintf("subscribe: %v", err))
		return p.Future()
	}

	// Install the handler once the link id is known.
	p.Future().Connect(func(f future.Future[uint32]) {
		link, err := f.Value()
		if err != nil {
			return
		}
		c.mu.Lock()
		c.handlers[link] = handler
		c.mu.Unlock()
	})
	return p.Future()
}

// Unsubscribe tears down a link returned by Subscribe.
func (c *Client) Unsubscribe(service string, link uint32) error {
	c.mu.Lock()
	delete(c.handlers, link)
	c.mu.Unlock()
	return c.write(Message{
		ID:      uuid.NewString(),
		Kind:    KindUnsubscribe,
		Service: service,
		Target:  link,
	})
}

// Close tears the connection down; pending calls fail.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pending := c.pending
	c.pending = map[string]*future.Promise[value.Value]{}
	c.mu.Unlock()

	for _, p := range pending {
		p.SetError("connection is closed")
	}
	return c.conn.Close()
}

func (c *Client) write(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) readPump() {
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.failAll(fmt.Sprintf("connection lost: %v", err))
			return
		}
		if c.met != nil {
			c.met.RecordMessage("in", string(msg.Kind))
		}
		switch msg.Kind {
		case KindReply:
			c.handleReply(msg)
		case KindEvent:
			c.handleEvent(msg)
		default:
			c.log.Warn("transport", "unexpected message kind", map[string]interface{}{
				"kind": string(msg.Kind),
			})
		}
	}
}

func (c *Client) handleReply(msg Message) {
	c.mu.Lock()
	if p, ok := c.pending[msg.ID]; ok {
		delete(c.pending, msg.ID)
		c.mu.Unlock()
		if msg.Error != "" {
			p.SetError(msg.Error)
			return
		}
		v, err := Decode(msg.Signature, msg.Payload)
		if err != nil {
			p.SetError(fmt.Sprintf("decode reply: %v", err))
			return
		}
		p.SetValue(v)
		return
	}
	lp, ok := c.links[msg.ID]
	if ok {
		delete(c.links, msg.ID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	if msg.Error != "" {
		lp.SetError(msg.Error)
		return
	}
	lp.SetValue(msg.Target)
}

func (c *Client) handleEvent(msg Message) {
	c.mu.Lock()
	handler, ok := c.handlers[msg.Target]
	c.mu.Unlock()
	if !ok {
		return
	}
	params, err := DecodeParams(msg.Signature, msg.Payload)
	if err != nil {
		c.log.Warn("transport", "dropping undecodable event", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	handler(params)
}

func (c *Client) failAll(reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.pending
	c.pending = map[string]*future.Promise[value.Value]{}
	links := c.links
	c.links = map[string]*future.Promise[uint32]{}
	c.mu.Unlock()

	for _, p := range pending {
		p.SetError(reason)
	}
	for _, p := range links {
		p.SetError(reason)
	}
}
