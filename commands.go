package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lofty-concierge/server/internal/agent/model"
	"github.com/lofty-concierge/server/internal/integrations/knowledge"
	"github.com/lofty-concierge/server/internal/transport/httpapi"
	logx "github.com/lofty-concierge/server/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var addrFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addrFlag != "" {
				cfg.HTTP.Addr = addrFlag
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			server := httpapi.NewServer(a.handler(cfg))
			errCh := make(chan error, 1)
			go func() {
				if err := server.Start(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()
			logx.Info().Str("addr", cfg.HTTP.Addr).Str("environment", cfg.Environment.String()).Msg("API server started")

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			}

			logx.Info().Msg("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logx.Error().Err(err).Msg("Failed to shutdown server gracefully")
			}
			logx.Info().Msg("Server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}

func chatCmd() *cobra.Command {
	var sessionFlag string
	var platformFlag string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the concierge in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if sessionFlag == "" {
				sessionFlag = "cli-" + uuid.NewString()
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session %s. Type /reset to start over, /quit to leave.\n", sessionFlag)

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
					continue
				case "/quit", "/exit":
					return nil
				case "/reset":
					if err := a.orchestrator.Reset(ctx, sessionFlag); err != nil {
						fmt.Fprintln(out, "reset failed:", err)
					} else {
						fmt.Fprintln(out, "Session cleared.")
					}
					continue
				}

				resp, err := a.orchestrator.HandleTurn(ctx, model.TurnInput{
					SessionID: sessionFlag,
					Text:      line,
					Platform:  platformFlag,
				})
				if err != nil {
					fmt.Fprintln(out, "error:", err)
					continue
				}
				fmt.Fprintln(out, resp.ResponseText)
				if len(resp.SideEffects) > 0 {
					fmt.Fprintf(out, "  [actions: %s]\n", strings.Join(resp.SideEffects, ", "))
				}
			}
		},
	}
	cmd.Flags().StringVar(&sessionFlag, "session", "", "session id to continue (default: a new one)")
	cmd.Flags().StringVar(&platformFlag, "platform", "web", "platform hint: web, dm, comment, sms")
	return cmd
}

func ingestCmd() *cobra.Command {
	var dirFlag string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index knowledge documents and business rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dirFlag == "" {
				dirFlag = cfg.KnowledgeDir
			}

			index, err := knowledge.Open(cfg.Retrieval.IndexPath)
			if err != nil {
				return err
			}
			defer index.Close()

			n, err := knowledge.IngestDir(index, knowledgeDir(dirFlag))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d documents into %s\n", n, cfg.Retrieval.IndexPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&dirFlag, "dir", "", "directory of .md/.txt files (overrides KNOWLEDGE_DIR)")
	return cmd
}
