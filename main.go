package main

import (
	"net/http"
	"os"

	"github.com/go-gnutella/go-gnutella/lib/config"
	"github.com/go-gnutella/go-gnutella/lib/router"
	"github.com/go-gnutella/go-gnutella/lib/util"
	"github.com/go-gnutella/go-gnutella/lib/util/signals"
	"github.com/go-i2p/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var log = logger.GetGoI2PLogger()

var metricsAddr string

// rootCmd runs the engine until interrupted.
var rootCmd = &cobra.Command{
	Use:   "go-gnutella",
	Short: "Gnutella message admission and routing engine",
	Long: `go-gnutella classifies inbound Gnutella, G2, GUESS and DHT messages,
drops the ones that must not be processed with one of 51 reasons, and computes
where accepted messages are forwarded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEngine()
	},
}

func init() {
	cobra.OnInitialize(config.InitConfig)
	rootCmd.PersistentFlags().StringVar(&config.CfgFile, "config", "", "config file (default is $HOME/.go-gnutella/config.yaml)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics", "", "serve Prometheus metrics on this address, e.g. :9100")

	rootCmd.AddCommand(reasonsCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(configCmd)
}

func runEngine() error {
	cfg, err := config.NewEngineConfigFromViper()
	if err != nil {
		return err
	}
	engine, err := router.New(cfg)
	if err != nil {
		return err
	}
	util.RegisterCloser(engine)

	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		if err := engine.Register(reg); err != nil {
			return err
		}
		go serveMetrics(metricsAddr, reg)
	}

	go signals.Handle()
	signals.RegisterReloadHandler(func() {
		// errors are logged by the engine; the old rules stay active
		_ = engine.ReloadPolicy()
	})
	signals.RegisterDrainHandler(engine.BeginShutdown)
	signals.RegisterInterruptHandler(engine.Stop)

	log.WithFields(logger.Fields{
		"at":      "main.runEngine",
		"servent": cfg.Admission.ServentID.String(),
	}).Info("starting engine")
	engine.Start()
	engine.Wait()
	signals.StopHandle()
	util.CloseAll()
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithFields(logger.Fields{
			"at":   "main.serveMetrics",
			"addr": addr,
		}).WithError(err).Error("metrics server stopped")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
