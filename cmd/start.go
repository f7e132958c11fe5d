package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/beacon/admin"
	"github.com/luma/beacon/internal/env"
	"github.com/luma/beacon/storage"
	"github.com/luma/beacon/transport"
)

var (
	// The host:port to listen for RESP clients on
	addr string

	// The host:port to listen for admin http requests on
	httpAddr string

	// The number of accept loops, only used with reuseport
	listeners int

	reuseport bool

	// The most unconsumed input to hold for one client
	maxBuffer int
)

func init() {
	flags := StartCmd.PersistentFlags()

	flags.StringVarP(&addr, "addr", "a", "127.0.0.1:6379", "The address to listen for client connections on")
	flags.StringVar(&httpAddr, "http-addr", "", "The address to listen to admin HTTP requests on, empty to disable")
	flags.IntVar(&listeners, "listeners", 1, "The number of listeners to run, requires --reuseport")
	flags.BoolVar(&reuseport, "reuseport", false, "Set SO_REUSEPORT and run several listeners on one port")
	flags.IntVar(&maxBuffer, "max-buffer", 0, "The most bytes to buffer for a client without a complete request, 0 is unbounded")
}

var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start up the Beacon server",
	Long: `Start up the Beacon server

Flags take precedence over the BEACON_* environment variables, which may
also be set in a .env.local file.

Usage
	beacon start --addr 127.0.0.1:6379 --http-addr 127.0.0.1:6380

`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		conf, err := env.LoadConfig(ctx)
		if err != nil {
			return err
		}

		applyStartFlags(cmd, conf)

		log, err := env.MakeLogger(conf.LogLevel)
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		fileLimit, err := setFileLimit()
		if err != nil {
			return err
		}

		log.Info("Set file limit", zap.Uint64("fileLimit", fileLimit))

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		store := storage.NewInmemoryStore()

		tcp := transport.NewTCP(transport.Options{
			Addr:          conf.Addr,
			Reuseport:     conf.Reuseport,
			NumListeners:  conf.Listeners,
			MaxBufferSize: conf.MaxBuffer,
			Store:         store,
			Metrics:       transport.NewMetrics(reg),
			Log:           log.Named("transport"),
		})

		if err := tcp.Start(ctx); err != nil {
			return err
		}

		var httpServer *admin.Server
		if conf.HTTPAddr != "" {
			httpServer = admin.NewServer(conf.HTTPAddr, admin.Options{
				Store:    store,
				Gatherer: reg,
				Debug:    conf.DebugHTTP,
				Log:      log.Named("http"),
			})

			if err := httpServer.Start(); err != nil {
				tcp.Close()
				return err
			}
		}

		log.Info("Listening",
			zap.Any("config", conf),
			zap.Stringer("addr", tcp.Addr()))

		// Listen for the interrupt signal.
		<-ctx.Done()

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		if httpServer != nil {
			// The context is used to inform the server it has 5 seconds to finish
			// the request it is currently handling
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Error("Http server forced to shutdown", zap.Error(err))
			}
		}

		if err := tcp.Close(); err != nil {
			log.Error("TCP server forced to shutdown", zap.Error(err))
		}

		log.Info("Exiting")
		return nil
	},
}

// applyStartFlags overrides conf with any flags given explicitly.
func applyStartFlags(cmd *cobra.Command, conf *env.Config) {
	flags := cmd.Flags()

	if flags.Changed("addr") {
		conf.Addr = addr
	}

	if flags.Changed("http-addr") {
		conf.HTTPAddr = httpAddr
	}

	if flags.Changed("listeners") {
		conf.Listeners = listeners
	}

	if flags.Changed("reuseport") {
		conf.Reuseport = reuseport
	}

	if flags.Changed("max-buffer") {
		conf.MaxBuffer = maxBuffer
	}
}

func setFileLimit() (uint64, error) {
	var rLimit syscall.Rlimit

	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	rLimit.Cur = rLimit.Max
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	return rLimit.Cur, nil
}
