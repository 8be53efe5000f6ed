// Package cmd defines and implements the CLI commands for the vacancy-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/JakeFAU/vacancy-crawler/internal/app"
	internalconfig "github.com/JakeFAU/vacancy-crawler/internal/config"
	"github.com/JakeFAU/vacancy-crawler/internal/logging"
	"github.com/JakeFAU/vacancy-crawler/pkg/config"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It's a variable so tests can swap it.
var newApp = func(ctx context.Context, cfg internalconfig.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

// closeApp releases the services built by newApp.
var closeApp = func(a *app.App) {
	a.Close()
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "vacancy-crawler",
		Short: "Crawls a paginated job board and exports the vacancies it finds.",
		Long: `vacancy-crawler walks every index page of a job board, visits each
listing's detail page concurrently, tags the listing with the technologies
mentioned in its description and writes the result as CSV or JSON.`,
		SilenceUsage: true,

		// Runs after flags are parsed and before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.InitConfig(cfgFile); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg, err := internalconfig.FromViper(viper.GetViper())
			if err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			logger, err := logging.Init(cfg.Logging)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
				propagation.TraceContext{}, propagation.Baggage{},
			))

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default searches ./config.yaml, /etc/vacancy-crawler/, $HOME/.vacancy-crawler)")

	cmd.AddCommand(newCrawlCmd())
	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the running
// crawl; whatever was gathered is still delivered.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logging.L.Error("Command execution failed", zap.Error(err))
		stop()
		os.Exit(1)
	}
}
