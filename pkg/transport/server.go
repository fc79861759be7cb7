package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmerejkowsky/libqi/pkg/future"
	"github.com/dmerejkowsky/libqi/pkg/logging"
	"github.com/dmerejkowsky/libqi/pkg/metrics"
	"github.com/dmerejkowsky/libqi/pkg/object"
	"github.com/dmerejkowsky/libqi/pkg/signal"
	"github.com/dmerejkowsky/libqi/pkg/tracing"
	"github.com/dmerejkowsky/libqi/pkg/value"
)

// Server exposes registered service objects over websocket. Incoming
// calls are dispatched with MetaCallQueued, so method bodies run on the
// object loop and never block the read pump.
type Server struct {
	log *logging.Logger
	met *metrics.Metrics

	upgrader websocket.Upgrader

	mu       sync.RWMutex
	services map[string]object.Object
}

// ServerOptions tunes a server; zero values mean defaults.
type ServerOptions struct {
	Logger  *logging.Logger
	Metrics *metrics.Metrics
}

// NewServer creates an empty server.
func NewServer(opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Server{
		log:      opts.Logger,
		met:      opts.Metrics,
		services: make(map[string]object.Object),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// RegisterService exposes obj under name, replacing any previous
// registration. Objects that can report metrics get the server's
// collectors under the service name.
func (s *Server) RegisterService(name string, obj object.Object) {
	if s.met != nil {
		if in, ok := obj.(object.Instrumentable); ok {
			in.SetMetrics(s.met, name)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[name] = obj
}

// UnregisterService withdraws a service.
func (s *Server) UnregisterService(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.services, name)
}

// Services lists registered service names.
func (s *Server) Services() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.services))
	for name := range s.services {
		names = append(names, name)
	}
	return names
}

func (s *Server) service(name string) (object.Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.services[name]
	return obj, ok
}

// ServeHTTP upgrades the request and runs the connection's read loop.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("transport", "upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	sc := &serverConn{server: s, conn: conn, links: make(map[uint32]linkRef)}
	sc.run()
}

// linkRef remembers which object owns a link so unsubscribe can route.
type linkRef struct {
	obj  object.Object
	link uint32
}

type serverConn struct {
	server *Server
	conn   *websocket.Conn

	writeMu sync.Mutex

	mu    sync.Mutex
	links map[uint32]linkRef
}

func (sc *serverConn) run() {
	defer sc.teardown()
	for {
		var msg Message
		if err := sc.conn.ReadJSON(&msg); err != nil {
			return
		}
		if sc.server.met != nil {
			sc.server.met.RecordMessage("in", string(msg.Kind))
		}
		switch msg.Kind {
		case KindCall:
			sc.handleCall(msg)
		case KindSubscribe:
			sc.handleSubscribe(msg)
		case KindUnsubscribe:
			sc.handleUnsubscribe(msg)
		default:
			sc.reply(msg.ID, value.Value{}, fmt.Sprintf("unexpected message kind %q", msg.Kind))
		}
	}
}

// teardown drops every link this connection established.
func (sc *serverConn) teardown() {
	sc.mu.Lock()
	links := sc.links
	sc.links = map[uint32]linkRef{}
	sc.mu.Unlock()
	for _, ref := range links {
		ref.obj.Disconnect(ref.link)
	}
	sc.conn.Close()
}

func (sc *serverConn) handleCall(msg Message) {
	obj, ok := sc.server.service(msg.Service)
	if !ok {
		sc.reply(msg.ID, value.Value{}, fmt.Sprintf("service not found: %s", msg.Service))
		return
	}
	params, err := DecodeParams(msg.Signature, msg.Payload)
	if err != nil {
		sc.reply(msg.ID, value.Value{}, fmt.Sprintf("decode parameters: %v", err))
		return
	}

	start := time.Now()
	_, span := tracing.StartCall(context.Background(), msg.Service, msg.Target, "queued")
	fut := obj.MetaCall(msg.Target, params, object.MetaCallQueued)
	fut.Connect(func(f future.Future[value.Value]) {
		if sc.server.met != nil {
			sc.server.met.RecordCall(msg.Service, fmt.Sprint(msg.Target), "queued", time.Since(start).Seconds())
		}
		if errMsg, err := f.Error(); err == nil {
			if sc.server.met != nil {
				sc.server.met.RecordCallError(msg.Service, fmt.Sprint(msg.Target))
			}
			tracing.EndWithError(span, errors.New(errMsg))
			sc.reply(msg.ID, value.Value{}, errMsg)
			return
		}
		tracing.EndWithError(span, nil)
		v, _ := f.Value()
		sc.reply(msg.ID, v, "")
	})
}

func (sc *serverConn) handleSubscribe(msg Message) {
	obj, ok := sc.server.service(msg.Service)
	if !ok {
		sc.reply(msg.ID, value.Value{}, fmt.Sprintf("service not found: %s", msg.Service))
		return
	}
	// The callback needs the link id, which Connect only produces later;
	// bridge with a set-once cell.
	cell := &linkCell{}
	sub := signal.Subscriber{
		Mode: signal.Direct,
		Callback: func(params []value.Value) {
			link, ok := cell.get()
			if !ok {
				return
			}
			sc.sendEvent(msg.Service, link, params)
		},
	}

	obj.Connect(msg.Target, sub).Connect(func(f future.Future[uint32]) {
		link, err := f.Value()
		if err != nil {
			sc.replyError(msg.ID, err)
			return
		}
		cell.set(link)
		sc.mu.Lock()
		sc.links[link] = linkRef{obj: obj, link: link}
		sc.mu.Unlock()
		sc.writeMsg(Message{ID: msg.ID, Kind: KindReply, Service: msg.Service, Target: link})
	})
}

func (sc *serverConn) handleUnsubscribe(msg Message) {
	sc.mu.Lock()
	ref, ok := sc.links[msg.Target]
	delete(sc.links, msg.Target)
	sc.mu.Unlock()
	if !ok {
		sc.reply(msg.ID, value.Value{}, fmt.Sprintf("unknown link id %d", msg.Target))
		return
	}
	ref.obj.Disconnect(ref.link)
	sc.writeMsg(Message{ID: msg.ID, Kind: KindReply, Service: msg.Service, Target: msg.Target})
}

func (sc *serverConn) sendEvent(service string, link uint32, params []value.Value) {
	sig, payload, err := EncodeParams(params)
	if err != nil {
		sc.server.log.Warn("transport", "dropping unencodable event", map[string]interface{}{
			"service": service, "error": err.Error(),
		})
		return
	}
	sc.writeMsg(Message{
		Kind:      KindEvent,
		Service:   service,
		Target:    link,
		Signature: sig,
		Payload:   payload,
	})
	if sc.server.met != nil {
		sc.server.met.RecordMessage("out", string(KindEvent))
	}
}

func (sc *serverConn) reply(id string, v value.Value, errMsg string) {
	msg := Message{ID: id, Kind: KindReply}
	if errMsg != "" {
		msg.Error = errMsg
	} else if v.IsValid() {
		sig, payload, err := Encode(v)
		if err != nil {
			msg.Error = fmt.Sprintf("encode reply: %v", err)
		} else {
			msg.Signature = sig
			msg.Payload = payload
		}
	} else {
		sig, payload, _ := Encode(value.Void())
		msg.Signature = sig
		msg.Payload = payload
	}
	sc.writeMsg(msg)
}

func (sc *serverConn) replyError(id string, err error) {
	sc.reply(id, value.Value{}, err.Error())
}

func (sc *serverConn) writeMsg(msg Message) {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	if err := sc.conn.WriteJSON(msg); err != nil {
		sc.server.log.Warn("transport", "write failed", map[string]interface{}{"error": err.Error()})
	}
	if sc.server.met != nil && msg.Kind == KindReply {
		sc.server.met.RecordMessage("out", string(KindReply))
	}
}

// linkCell is a set-once cell bridging Connect's resolution into the
// subscriber callback.
type linkCell struct {
	mu    sync.Mutex
	link  uint32
	known bool
}

func (c *linkCell) set(link uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.link = link
	c.known = true
}

func (c *linkCell) get() (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link, c.known
}
