package mapreduce

import (
	"net"
	"net/rpc"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CoordinatorService exposes the Scheduler's Assign/Complete protocol as
// net/rpc methods. It mediates all external access to the Scheduler, per
// spec.md §4.4 — the RPC layer itself holds no state and does no
// locking; every call is a single Scheduler method invocation.
type CoordinatorService struct {
	scheduler *Scheduler
	metrics   *Metrics
	logger    *zap.Logger
}

// Assign is the RPC entry point a worker calls to request a task.
func (c *CoordinatorService) Assign(args *AssignArgs, reply *AssignReply) error {
	res, err := c.scheduler.Assign(args.WorkerID)
	if err != nil {
		return err
	}
	*reply = *res
	c.metrics.Update(c.scheduler.Snapshot())
	return nil
}

// Complete is the RPC entry point a worker calls to report a finished task.
func (c *CoordinatorService) Complete(args *CompleteArgs, reply *CompleteReply) error {
	err := c.scheduler.Complete(args.WorkerID, args.TaskName, args.OutputFilename)
	if err != nil {
		return err
	}
	c.metrics.Update(c.scheduler.Snapshot())
	return nil
}

// CoordinatorServer owns the TCP listener and accept loop serving a
// CoordinatorService. Structurally this adapts the teacher's
// master_rpc.go RPCServer (validate/register/listen/accept split), bound
// to TCP rather than a Unix domain socket since spec.md §6 requires a
// configurable host:port bind address workers can reach over the network.
type CoordinatorServer struct {
	addr     string
	server   *rpc.Server
	listener net.Listener
	logger   *zap.Logger

	mu       sync.Mutex
	stopping bool
	wg       sync.WaitGroup
}

// NewCoordinatorServer constructs a server that will bind to addr once
// Start is called.
func NewCoordinatorServer(addr string, svc *CoordinatorService, logger *zap.Logger) (*CoordinatorServer, error) {
	server := rpc.NewServer()
	if err := server.RegisterName("Coordinator", svc); err != nil {
		return nil, errors.Wrap(err, "register coordinator RPC service")
	}
	return &CoordinatorServer{addr: addr, server: server, logger: logger}, nil
}

// Start binds the listener. It must be called before Serve.
func (s *CoordinatorServer) Start() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.addr)
	}
	s.listener = l
	s.logger.Info("coordinator RPC listening", zap.String("addr", s.addr))
	return nil
}

// Serve accepts connections until Shutdown is called or Accept fails.
// It is meant to be run as one arm of an errgroup alongside the
// completion monitor.
func (s *CoordinatorServer) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			stopping := s.stopping
			s.mu.Unlock()
			if stopping {
				s.wg.Wait()
				return nil
			}
			return errors.Wrap(err, "accept RPC connection")
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.server.ServeConn(conn)
		}()
	}
}

// Shutdown closes the listener, causing Serve's Accept loop to exit once
// in-flight RPCs drain, per spec.md §5's cooperative shutdown.
func (s *CoordinatorServer) Shutdown() error {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}
