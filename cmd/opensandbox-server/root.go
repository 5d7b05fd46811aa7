package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
	"k8s.io/klog/v2/textlogger"

	"github.com/alibaba/OpenSandbox/internal/config"
	"github.com/alibaba/OpenSandbox/internal/health"
	"github.com/alibaba/OpenSandbox/internal/httpapi"
	"github.com/alibaba/OpenSandbox/internal/provider"
	"github.com/alibaba/OpenSandbox/internal/provider/k8s"
	"github.com/alibaba/OpenSandbox/internal/reqid"
	"github.com/alibaba/OpenSandbox/internal/sandbox"
)

var rootCmd = &cobra.Command{
	Use:   "opensandbox-server [options]",
	Short: "OpenSandbox control-plane server",
	Long: `
OpenSandbox control-plane server

  # start the server against the in-cluster Kubernetes API
  opensandbox-server --namespace sandboxes --execd-image ghcr.io/opensandbox/execd:v1

  # start against an out-of-cluster kubeconfig
  opensandbox-server --kubeconfig ~/.kube/config --execd-image ghcr.io/opensandbox/execd:v1
`,
	RunE: runServer,
}

func init() {
	rootCmd.Flags().String("host", "", "listen address (default 0.0.0.0)")
	rootCmd.Flags().Int("port", 0, "listen port (default 8080)")
	rootCmd.Flags().String("api-key", "", "API key required on the OPEN-SANDBOX-API-KEY header")
	rootCmd.Flags().String("namespace", "", "Kubernetes namespace sandboxes are created in (default \"default\")")
	rootCmd.Flags().String("kubeconfig", "", "path to a kubeconfig file; empty uses in-cluster config")
	rootCmd.Flags().String("service-account", "", "service account name for sandbox pods")
	rootCmd.Flags().String("execd-image", "", "container image for the in-sandbox execd agent (required)")
	rootCmd.Flags().String("egress-image", "", "container image for the egress sidecar")
	rootCmd.Flags().String("shutdown-policy", "", "CRD shutdown policy: Delete or Retain (default \"Delete\")")
	rootCmd.Flags().String("external-router", "", "public host rewritten into endpoint responses when set")
	rootCmd.Flags().Int("log-level", 2, "klog verbosity for the Kubernetes client stack")
	_ = viper.BindPFlags(rootCmd.Flags())
}

// Execute runs the root command, exiting the process on failure the
// same way the teacher's cmd.Execute does.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	initKlog(viper.GetInt("log-level"))
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	client, err := k8s.NewClient(cfg.KubeconfigPath, cfg.Namespace)
	if err != nil {
		return fmt.Errorf("failed to build kubernetes client: %w", err)
	}

	workloadProvider := k8s.NewProvider(client, k8s.ManifestOptions{
		ShutdownPolicy: k8s.ShutdownPolicy(cfg.ShutdownPolicy),
		ServiceAccount: cfg.ServiceAccount,
	})

	svc := sandbox.NewService(provider.Workload(workloadProvider), cfg.Namespace, cfg.ExecdImage, cfg.EgressImage, viper.GetString("external-router"))

	checker := health.NewHealthChecker()
	checker.SetReadinessProbe(client.Ping)
	router := httpapi.NewRouter(svc, cfg.APIKey, checker, logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: router,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Infof("opensandbox-server listening on %s", srv.Addr)
		checker.SetReady(true)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("received signal %v, shutting down", sig)
		checker.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("error during shutdown: %v", err)
		}
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.AddHook(&reqid.LogrusHook{})
	return logger
}

func initKlog(logLevel int) {
	if logLevel < 0 {
		logLevel = 2
	}
	textConfig := textlogger.NewConfig(
		textlogger.Output(os.Stderr),
		textlogger.Verbosity(logLevel),
	)
	klog.SetLoggerWithOptions(textlogger.NewLogger(textConfig))

	flagSet := flag.NewFlagSet("opensandbox-server", flag.ContinueOnError)
	klog.InitFlags(flagSet)
	if err := flagSet.Parse([]string{"--v", strconv.Itoa(logLevel)}); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing log level: %v\n", err)
	}
}
