package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fmuoria/agent-studio/internal/catalog"
	"github.com/fmuoria/agent-studio/internal/config"
	"github.com/fmuoria/agent-studio/internal/llm"
	"github.com/fmuoria/agent-studio/internal/logger"
)

const app = config.AppName

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           app,
		Short:         "agent-studio runs HR screening, finance and maps agents from the terminal or over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute executes the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", describe(err))
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is agent-studio.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if dir, err := config.ConfigDir(); err == nil {
			viper.AddConfigPath(dir)
		}
		viper.SetConfigName(app)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicit config file must exist; the default one is optional.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatalf("reading config: %v", err)
		}
	}
}

// appEnv is what every agent command needs
type appEnv struct {
	log     *zap.Logger
	cfg     *config.Config
	catalog *catalog.Catalog
	invoker llm.Invoker
	closer  io.Closer
}

func (r *appEnv) Close() {
	if r.closer != nil {
		if err := r.closer.Close(); err != nil {
			r.log.Warn("closing llm client", zap.Error(err))
		}
	}
	_ = r.log.Sync()
}

// newLogger builds the logger selected by the global flags
func newLogger() *zap.Logger {
	l, err := logger.New(logger.Options{
		JSON:    viper.GetBool("json"),
		Debug:   viper.GetBool("debug"),
		App:     app,
		Version: version,
	})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

// setup loads the configuration and builds the model backend
func setup(ctx context.Context) (*appEnv, error) {
	l := newLogger()

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	l.Debug("config loaded",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
		zap.String("file", viper.ConfigFileUsed()),
	)

	cat, err := catalog.Load()
	if err != nil {
		return nil, err
	}

	invoker, closer, err := llm.NewInvoker(ctx, cfg, l)
	if err != nil {
		return nil, err
	}

	return &appEnv{log: l, cfg: cfg, catalog: cat, invoker: invoker, closer: closer}, nil
}

// describe turns an error into a message fit for the terminal
func describe(err error) string {
	if errors.Is(err, config.ErrMissingCredential) {
		return err.Error() + " (set it in the config file or the environment)"
	}
	return err.Error()
}
