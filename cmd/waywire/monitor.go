package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/waywire-dev/waywire/pkg/backend"
	"github.com/waywire-dev/waywire/pkg/core"
	"github.com/waywire-dev/waywire/pkg/wire"
)

func monitorCmd() *cobra.Command {
	var (
		socket string
		listen string
		debug  bool
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch a display connection and export metrics",
		Long: `Connect to the display socket, log registry changes, and export
connection counters over HTTP until the server disconnects.

GET /metrics serves prometheus counters, GET /stats a JSON snapshot.

Examples:
  waywire monitor
  waywire monitor --listen :9190 --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(socket, listen, debug)
		},
	}

	cmd.Flags().StringVarP(&socket, "socket", "s", "", "Display socket path (default: $WAYLAND_DISPLAY)")
	cmd.Flags().StringVarP(&listen, "listen", "l", ":9190", "HTTP listen address")
	cmd.Flags().BoolVar(&debug, "debug", false, "Trace every message at debug level")

	return cmd
}

func runMonitor(socket, listen string, debug bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	t, err := connect(socket)
	if err != nil {
		return err
	}
	b := backend.New(t, backend.RoleClient, backend.Config{Logger: log, Debug: debug})
	defer b.Close()

	regH := backend.HandlerFunc(func(_ *backend.Backend, _ backend.ObjectID, opcode uint16, args []wire.Arg) {
		switch opcode {
		case core.RegistryEventGlobal:
			log.Info("global added", "interface", args[1].S, "version", args[2].U, "name", args[0].U)
		case core.RegistryEventGlobalRemove:
			log.Info("global removed", "name", args[0].U)
		}
	})
	if _, err := b.SendConstructor(b.DisplayID(), core.DisplayGetRegistry,
		[]wire.Arg{wire.NewIDArg(0)}, nil, 0, regH, nil); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(backend.NewCollector(b))

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(b.Metrics())
	})

	httpErr := make(chan error, 1)
	go func() { httpErr <- http.ListenAndServe(listen, r) }()
	log.Info("monitoring", "listen", listen)

	for {
		select {
		case err := <-httpErr:
			return err
		default:
		}
		if err := pumpOnce(b); err != nil {
			if errors.Is(err, backend.ErrPeerClosed) {
				log.Info("server closed the connection")
				return nil
			}
			return err
		}
	}
}
