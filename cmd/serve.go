package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fmuoria/agent-studio/internal/agent"
	"github.com/fmuoria/agent-studio/internal/api"
	"github.com/fmuoria/agent-studio/internal/finance"
	"github.com/fmuoria/agent-studio/internal/ingestion"
	"github.com/fmuoria/agent-studio/internal/maps"
	"github.com/fmuoria/agent-studio/internal/session"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "listen address (default from server.listen)")
	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	cv := agent.NewCVReviewAgent(rt.catalog, rt.invoker, agent.OptionsFromConfig(rt.cfg.HR), rt.log)
	enableGmail(ctx, rt, cv)

	server := api.NewServer(rt.cfg.Server, api.Deps{
		Agent:    cv,
		Finance:  finance.New(rt.catalog, rt.invoker, rt.log),
		Maps:     maps.New(rt.cfg, rt.catalog, rt.invoker, version, rt.log),
		Sessions: session.NewStore(rt.cfg.Server.SessionTTL),
		Files:    ingestion.NewFileHandler("", rt.cfg.Server.MaxUploadBytes, rt.log),
	}, rt.log)

	httpServer := &http.Server{
		Addr:              rt.cfg.Server.Listen,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.log.Info("starting the api server",
			zap.String("listen", rt.cfg.Server.Listen),
			zap.String("version", version),
			zap.String("provider", rt.cfg.LLM.Provider),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	rt.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// enableGmail wires Gmail ingestion when a saved token allows it without a browser round-trip
func enableGmail(ctx context.Context, rt *appEnv, cv *agent.CVReviewAgent) {
	if _, err := os.Stat(rt.cfg.Gmail.TokenFile); err != nil {
		rt.log.Debug("gmail ingestion disabled", zap.String("token_file", rt.cfg.Gmail.TokenFile))
		return
	}
	gh, err := ingestion.NewGmailHandler(ctx, ingestion.GmailOptions{
		CredentialsFile: rt.cfg.Gmail.CredentialsFile,
		TokenFile:       rt.cfg.Gmail.TokenFile,
		MaxEntryBytes:   rt.cfg.HR.MaxEntryBytes,
	}, rt.log)
	if err != nil {
		rt.log.Warn("gmail ingestion disabled", zap.Error(err))
		return
	}
	cv.SetGmailHandler(gh)
	rt.log.Info("gmail ingestion enabled")
}
