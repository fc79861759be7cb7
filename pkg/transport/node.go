package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dmerejkowsky/libqi/pkg/config"
	"github.com/dmerejkowsky/libqi/pkg/directory"
	"github.com/dmerejkowsky/libqi/pkg/eventloop"
	"github.com/dmerejkowsky/libqi/pkg/future"
	"github.com/dmerejkowsky/libqi/pkg/logging"
	"github.com/dmerejkowsky/libqi/pkg/metrics"
	"github.com/dmerejkowsky/libqi/pkg/object"
)

// Node ties the pieces of one process together: a transport server for
// its services, a directory client to announce them, and the runtime
// loops incoming work dispatches onto.
type Node struct {
	cfg config.NodeConfig
	log *logging.Logger
	met *metrics.Metrics
	dir directory.Directory
	rt  *eventloop.Runtime

	server     *Server
	httpServer *http.Server
	listener   net.Listener

	mu       sync.Mutex
	services []string
	stopped  bool
	stopBg   chan struct{}
}

// NewNode assembles a node from its configuration. A nil directory means
// services are only reachable by endpoint.
func NewNode(cfg config.NodeConfig, dir directory.Directory, log *logging.Logger, met *metrics.Metrics) *Node {
	if log == nil {
		log = logging.Default()
	}
	return &Node{
		cfg:    cfg,
		log:    log,
		met:    met,
		dir:    dir,
		rt:     eventloop.Default(),
		server: NewServer(ServerOptions{Logger: log, Metrics: met}),
		stopBg: make(chan struct{}),
	}
}

// Runtime returns the loops this node dispatches onto.
func (n *Node) Runtime() *eventloop.Runtime { return n.rt }

// AddService exposes obj under name and announces it to the directory.
func (n *Node) AddService(name string, obj object.Object) future.Future[future.Void] {
	n.server.RegisterService(name, obj)
	n.mu.Lock()
	n.services = append(n.services, name)
	endpoint := n.endpointLocked()
	n.mu.Unlock()

	n.log.Info("node", "service registered", map[string]interface{}{
		"service": name, "endpoint": endpoint,
	})
	if n.dir == nil {
		p := future.NewPromise[future.Void]()
		p.SetValue(future.Void{})
		return p.Future()
	}
	return n.dir.Register(name, endpoint)
}

// Listen binds the websocket endpoint and starts serving. It returns once
// the listener is ready, so AddService announces a live endpoint.
func (n *Node) Listen() error {
	listener, err := net.Listen("tcp", n.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", n.cfg.ListenAddr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/qi", n.server)
	if n.met != nil && n.cfg.Metrics.Enabled {
		mux.Handle("/metrics", n.met.Handler())
	}

	n.mu.Lock()
	n.listener = listener
	n.httpServer = &http.Server{Handler: mux}
	n.mu.Unlock()

	go func() {
		if err := n.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			n.log.Error("node", "serve failed", map[string]interface{}{"error": err.Error()})
		}
	}()
	if rd, ok := n.dir.(*directory.Redis); ok {
		go n.heartbeat(rd)
	}
	if n.met != nil {
		go n.sampleLoopDepth()
	}
	n.log.Info("node", "listening", map[string]interface{}{
		"name": n.cfg.Name, "addr": n.Endpoint(),
	})
	return nil
}

// Endpoint returns the address remote nodes dial.
func (n *Node) Endpoint() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.endpointLocked()
}

func (n *Node) endpointLocked() string {
	if n.listener != nil {
		return n.listener.Addr().String()
	}
	return n.cfg.ListenAddr
}

// heartbeat refreshes directory TTLs so this node's services survive as
// long as it does.
func (n *Node) heartbeat(rd *directory.Redis) {
	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-n.stopBg:
			return
		case <-ticker.C:
			n.mu.Lock()
			services := make([]string, len(n.services))
			copy(services, n.services)
			n.mu.Unlock()
			for _, name := range services {
				rd.Refresh(name)
			}
		}
	}
}

// sampleLoopDepth keeps the queue-depth gauges of the runtime loops
// current while the node serves.
func (n *Node) sampleLoopDepth() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-n.stopBg:
			return
		case <-ticker.C:
			for _, loop := range []*eventloop.EventLoop{n.rt.Network(), n.rt.Object()} {
				n.met.SetLoopQueueDepth(loop.Name(), loop.Pending())
			}
		}
	}
}

// Shutdown withdraws services from the directory and stops serving.
func (n *Node) Shutdown(ctx context.Context) error {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return nil
	}
	n.stopped = true
	services := make([]string, len(n.services))
	copy(services, n.services)
	srv := n.httpServer
	n.mu.Unlock()

	close(n.stopBg)
	if n.dir != nil {
		for _, name := range services {
			n.dir.Unregister(name).Wait(future.TimeoutInfinite)
		}
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
