// Command psyncd is a thin wiring binary: it exists to show the
// construction order of the runtime substrate (metastore, crypto backend,
// API pool, metrics collector), not to provide a user-facing sync CLI.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimbusfs/synccore/pkg/apipool"
	"github.com/nimbusfs/synccore/pkg/log"
	"github.com/nimbusfs/synccore/pkg/metastore"
	"github.com/nimbusfs/synccore/pkg/metrics"
	"github.com/nimbusfs/synccore/pkg/pcrypto"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "psyncd",
	Short:   "synccore runtime substrate demo daemon",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("psyncd version %s\ncommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	runCmd.Flags().String("data-dir", "./psyncd-data", "Directory holding the metastore file")
	runCmd.Flags().String("api-host", "api.example.com:443", "API server host:port")
	runCmd.Flags().String("metrics-addr", ":9090", "Address to serve /metrics, /health, /ready on")
	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Wire up and run the runtime substrate until a signal is received",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		apiHost, _ := cmd.Flags().GetString("api-host")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}

		store, err := metastore.Open(dataDir + "/meta.db")
		if err != nil {
			return fmt.Errorf("open metastore: %w", err)
		}
		defer store.Close()

		var crypto pcrypto.Backend = pcrypto.StdlibBackend{}
		if _, err := crypto.GenerateRSA(2048); err != nil {
			return fmt.Errorf("crypto self-check: %w", err)
		}

		pool := apipool.NewPool()
		pool.SetServer(apiHost)
		if err := pool.Prepare(context.Background(), 1); err != nil {
			log.Errorf("initial apipool dial failed, will retry lazily", err)
		}

		collector := metrics.NewCollector(pool)
		collector.Start()
		defer collector.Stop()

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())

		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("metrics server exited", err)
			}
		}()

		log.Info("psyncd runtime substrate wired and running")

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		log.Info("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
