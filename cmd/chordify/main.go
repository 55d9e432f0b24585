// cmd/chordify is the node binary.
//
// Start the ring founder (always on port 5000):
//
//	chordify --bootstrap --consistency linearizability --replication 3
//
// Join an existing ring via its bootstrap:
//
//	chordify 10.0.0.5          # bootstrap on the conventional port
//	chordify 10.0.0.5 5000 --port 5001
//
// Commands are read interactively from stdin, or replayed from a file
// with --file. The optional --http flag exposes the admin API.
package main

import (
	goflag "flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/ntua-el20059/Chordify/internal/api"
	"github.com/ntua-el20059/Chordify/internal/chord"
	"github.com/ntua-el20059/Chordify/internal/cli"
	"github.com/ntua-el20059/Chordify/internal/config"
	"github.com/ntua-el20059/Chordify/internal/store"
	"github.com/ntua-el20059/Chordify/internal/transport"
)

// bootstrapPort is the conventional port of the ring founder; joiners
// that are given only an ip assume it.
const bootstrapPort = 5000

var (
	flagBootstrap   bool
	flagPort        int
	flagDataDir     string
	flagHTTPAddr    string
	flagFile        string
	flagConfig      string
	flagConsistency string
	flagReplication int
	flagAdvertise   string
)

func main() {
	root := &cobra.Command{
		Use:   "chordify [bootstrap-ip [bootstrap-port]]",
		Short: "A Chord DHT key-value store node",
		Args:  cobra.MaximumNArgs(2),
		RunE:  run,

		SilenceUsage: true,
	}

	root.Flags().BoolVar(&flagBootstrap, "bootstrap", false, "start as the ring founder")
	root.Flags().IntVar(&flagPort, "port", 0, "preferred listen port (0 = OS-assigned)")
	root.Flags().StringVar(&flagDataDir, "data-dir", "", "directory for the shard WAL and snapshots (empty = in-memory)")
	root.Flags().StringVar(&flagHTTPAddr, "http", "", "admin API listen address, e.g. :8080 (empty = disabled)")
	root.Flags().StringVar(&flagFile, "file", "", "replay commands from a file instead of stdin")
	root.Flags().StringVar(&flagConfig, "config", "", "YAML config file")
	root.Flags().StringVar(&flagConsistency, "consistency", chord.ConsistencyLinearizable,
		"consistency mode, bootstrap only: linearizability or eventual")
	root.Flags().IntVar(&flagReplication, "replication", 1, "replication factor k, bootstrap only")
	root.Flags().StringVar(&flagAdvertise, "advertise", "", "IP to advertise to peers (default: auto-detected)")

	// glog's flags (-logtostderr, -v, ...) ride along.
	root.Flags().AddGoFlagSet(goflag.CommandLine)

	defer glog.Flush()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// ── Listener ───────────────────────────────────────────────────────────
	// The bootstrap's port is fixed by convention, so a bind failure
	// there is fatal; everyone else falls back to an OS-assigned port.
	preferred := cfg.Port
	if flagBootstrap {
		preferred = bootstrapPort
	}
	ln, port, err := transport.Listen(preferred, !flagBootstrap)
	if err != nil {
		return err
	}

	ip := flagAdvertise
	if ip == "" {
		ip = resolveLocalIP()
	}

	// ── Shard ──────────────────────────────────────────────────────────────
	dataDir := cfg.DataDir
	if dataDir != "" {
		dataDir = fmt.Sprintf("%s/%s_%d", dataDir, ip, port)
	}
	shard, err := store.Open(dataDir)
	if err != nil {
		ln.Close()
		return fmt.Errorf("open shard: %w", err)
	}

	// ── Node and transport ─────────────────────────────────────────────────
	node := chord.New(ip, port, shard)
	srv := transport.NewServer(ln, node.HandleFrame)
	go srv.Serve()

	glog.Infof("chord node %s:%d started, id %v", ip, port, node.Self().ID)

	if flagBootstrap {
		node.Bootstrap(chord.Policy{
			ConsistencyType:   cfg.Consistency,
			ReplicationFactor: cfg.ReplicationFactor,
		})
	} else {
		if len(args) == 0 {
			srv.Close()
			return fmt.Errorf("a bootstrap ip is required unless --bootstrap is given")
		}
		bsIP := args[0]
		bsPort := bootstrapPort
		if len(args) > 1 {
			bsPort, err = strconv.Atoi(args[1])
			if err != nil {
				srv.Close()
				return fmt.Errorf("invalid bootstrap port %q", args[1])
			}
		}
		if err := node.Join(bsIP, bsPort); err != nil {
			srv.Close()
			return err
		}
	}

	// ── Admin API ──────────────────────────────────────────────────────────
	var httpSrv *http.Server
	if cfg.HTTPAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		router := gin.New()
		router.Use(api.Logger(), api.Recovery())
		api.NewHandler(node).Register(router)

		httpSrv = &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
		go func() {
			glog.Infof("admin api listening on %s", cfg.HTTPAddr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				glog.Errorf("admin api: %v", err)
			}
		}()
	}

	// ── Command surface ────────────────────────────────────────────────────
	done := make(chan struct{})
	go func() {
		defer close(done)
		if flagFile != "" {
			if err := cli.RunFile(node, flagFile, os.Stdout); err != nil {
				glog.Errorf("batch driver: %v", err)
			}
			return
		}
		cli.Run(node, os.Stdin, os.Stdout, true)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-done:
	case sig := <-quit:
		glog.Infof("received %s, departing", sig)
	}

	// ── Graceful departure ─────────────────────────────────────────────────
	node.Depart()
	if httpSrv != nil {
		httpSrv.Close()
	}
	srv.Close()
	if err := shard.Close(); err != nil {
		glog.Errorf("close shard: %v", err)
	}
	return nil
}

// loadConfig layers the optional YAML file under the command-line
// flags; an explicitly set flag always wins.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("port") {
		cfg.Port = flagPort
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = flagDataDir
	}
	if cmd.Flags().Changed("http") {
		cfg.HTTPAddr = flagHTTPAddr
	}
	if cmd.Flags().Changed("consistency") {
		cfg.Consistency = flagConsistency
	}
	if cmd.Flags().Changed("replication") {
		cfg.ReplicationFactor = flagReplication
	}
	return cfg, cfg.Validate()
}

// resolveLocalIP finds a non-loopback IPv4 address to advertise,
// falling back to loopback for single-machine rings.
func resolveLocalIP() string {
	host, err := os.Hostname()
	if err == nil {
		if addrs, err := net.LookupIP(host); err == nil {
			for _, a := range addrs {
				if v4 := a.To4(); v4 != nil && !a.IsLoopback() {
					return v4.String()
				}
			}
		}
	}
	return "127.0.0.1"
}
