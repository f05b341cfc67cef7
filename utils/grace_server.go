package utils

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	DEFAULT_READ_TIMEOUT     = 60 * time.Second
	DEFAULT_SHUTDOWN_TIMEOUT = 30 * time.Second
	GRACEFUL_ENVIRON_KEY     = "IS_GRACEFUL"
	GRACEFUL_ENVIRON_VALUE   = GRACEFUL_ENVIRON_KEY + "=1"
	GRACEFUL_LISTENER_FD     = 3
)

// Server wraps http.Server with signal driven shutdown and SIGUSR2 restart.
// WriteTimeout stays zero: WebSocket connections are long lived.
type Server struct {
	*http.Server

	listener     net.Listener
	isGraceful   bool
	signalChan   chan os.Signal
	shutdownChan chan struct{}
	shutdownOnce sync.Once

	hooksMu sync.Mutex
	hooks   []func(context.Context)
}

// NewServer creates a Server for handler on addr.
func NewServer(addr string, handler http.Handler, readTimeout time.Duration) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readTimeout,
		},
		isGraceful:   os.Getenv(GRACEFUL_ENVIRON_KEY) != "",
		signalChan:   make(chan os.Signal, 1),
		shutdownChan: make(chan struct{}),
	}
}

// OnShutdown registers fn to run after the HTTP server stopped accepting
// requests. Hooks run in registration order.
func (srv *Server) OnShutdown(fn func(ctx context.Context)) {
	srv.hooksMu.Lock()
	defer srv.hooksMu.Unlock()
	srv.hooks = append(srv.hooks, fn)
}

// ListenAndServe listens on tcp (or the inherited descriptor after a
// graceful restart) and serves until shut down.
func (srv *Server) ListenAndServe() error {
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := srv.getNetListener(addr)
	if err != nil {
		return err
	}
	return srv.Serve(ln)
}

// Serve serves on ln until a shutdown signal or Shutdown completes.
func (srv *Server) Serve(ln net.Listener) error {
	srv.listener = ln
	go srv.handleSignals()
	err := srv.Server.Serve(ln)
	if err == http.ErrServerClosed {
		err = nil
	}
	<-srv.shutdownChan
	return err
}

// Shutdown stops the HTTP server, then runs the shutdown hooks.
func (srv *Server) Shutdown(ctx context.Context) error {
	var err error
	srv.shutdownOnce.Do(func() {
		signal.Stop(srv.signalChan)
		err = srv.Server.Shutdown(ctx)

		srv.hooksMu.Lock()
		hooks := append([]func(context.Context){}, srv.hooks...)
		srv.hooksMu.Unlock()
		for _, fn := range hooks {
			fn(ctx)
		}
		close(srv.shutdownChan)
	})
	return err
}

func (srv *Server) getNetListener(addr string) (net.Listener, error) {
	if srv.isGraceful {
		file := os.NewFile(GRACEFUL_LISTENER_FD, "")
		ln, err := net.FileListener(file)
		if err != nil {
			return nil, fmt.Errorf("net.FileListener error: %w", err)
		}
		return ln, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.Listen error: %w", err)
	}
	return ln, nil
}

func (srv *Server) handleSignals() {
	signal.Notify(srv.signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR2)

	for sig := range srv.signalChan {
		switch sig {
		case syscall.SIGINT, syscall.SIGTERM:
			Logger.Info("shutdown signal received", zap.String("signal", sig.String()))
			srv.shutdownWithTimeout()
			return
		case syscall.SIGUSR2:
			Logger.Info("received SIGUSR2, graceful restarting HTTP server")
			pid, err := srv.startNewProcess()
			if err != nil {
				Logger.Error("start new process failed, continue serving", zap.Error(err))
				continue
			}
			Logger.Info("new process started, closing old HTTP server", zap.Int("pid", pid))
			srv.shutdownWithTimeout()
			return
		}
	}
}

func (srv *Server) shutdownWithTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), DEFAULT_SHUTDOWN_TIMEOUT)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		Logger.Error("HTTP server shutdown error", zap.Error(err))
		return
	}
	Logger.Info("HTTP server shutdown success")
}

// startNewProcess re-executes the binary, handing it the listening socket.
func (srv *Server) startNewProcess() (int, error) {
	tcpLn, ok := srv.listener.(*net.TCPListener)
	if !ok {
		return 0, fmt.Errorf("listener is not *net.TCPListener")
	}
	file, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("get listener file: %w", err)
	}
	defer file.Close()

	envs := []string{}
	for _, e := range os.Environ() {
		if e != GRACEFUL_ENVIRON_VALUE {
			envs = append(envs, e)
		}
	}
	envs = append(envs, GRACEFUL_ENVIRON_VALUE)

	attr := &syscall.ProcAttr{
		Env:   envs,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), file.Fd()},
	}
	pid, err := syscall.ForkExec(os.Args[0], os.Args, attr)
	if err != nil {
		return 0, fmt.Errorf("forkexec: %w", err)
	}
	return pid, nil
}
