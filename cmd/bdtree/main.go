package main

import (
	"context"
	"net/http"
	"os"

	bdtree "github.com/mquad/bd-tree"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type rootCmdConfig struct {
	logger
	configPath  string
	metricsAddr string
	ctx         context.Context
	cancelFunc  context.CancelFunc
}

func main() {
	if err := cliParser().Execute(); err != nil {
		os.Exit(1)
	}
}

func cliParser() *cobra.Command {
	config := &rootCmdConfig{}
	rootCmd := &cobra.Command{
		Use:   "bdtree",
		Short: "bdtree is a tool to grow elicitation trees",
		Long:  `A tool to grow decision trees that elicit the preferences of new users of a recommender system, test them, and walk them interactively`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetLevel(logrus.WarnLevel)
			if config.logger {
				log.SetLevel(logrus.DebugLevel)
			}
			if config.metricsAddr != "" {
				config.serveMetrics()
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP((*bool)(&config.logger), "verbose", "v", false, "")
	rootCmd.PersistentFlags().StringVarP(&(config.configPath), "config", "c", "", "path to a YAML file with the parameters to grow trees with (defaults to the built-in parameters)")
	rootCmd.PersistentFlags().StringVar(&(config.metricsAddr), "metrics-addr", "", "address to serve prometheus metrics on while running, as in :9100 (defaults to not serving them)")
	rootCmd.AddCommand(versionCmd(), growCmd(config), showCmd(config), elicitCmd(config), testCmd(config))
	return rootCmd
}

func (rcc *rootCmdConfig) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		rcc.Logf("Serving metrics on %s/metrics", rcc.metricsAddr)
		if err := http.ListenAndServe(rcc.metricsAddr, mux); err != nil {
			log.WithError(err).Warn("serving metrics")
		}
	}()
}

// Config returns the configuration at the config flag path, or the
// default one if the flag was not set.
func (rcc *rootCmdConfig) Config() (bdtree.Config, error) {
	if rcc.configPath == "" {
		return bdtree.DefaultConfig(), nil
	}
	rcc.Logf("Loading configuration from %s...", rcc.configPath)
	return bdtree.LoadConfig(rcc.configPath)
}

func (rcc *rootCmdConfig) Context() context.Context {
	rcc.setContextAndCancelFunc()
	return rcc.ctx
}

func (rcc *rootCmdConfig) ContextCancelFunc() context.CancelFunc {
	rcc.setContextAndCancelFunc()
	return rcc.cancelFunc
}

func (rcc *rootCmdConfig) setContextAndCancelFunc() {
	if rcc.ctx == nil {
		rcc.ctx, rcc.cancelFunc = context.WithCancel(context.Background())
	}
}
