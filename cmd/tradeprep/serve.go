package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/tradeprep/internal/mcpserver"
	"github.com/cognicore/tradeprep/pkg/tradeprep/config"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the title matching tools over MCP (SSE)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "localhost:8089", "Listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	comp, err := (&config.Loader{Config: cfg}).Load()
	if err != nil {
		return err
	}

	srv := mcpserver.New(comp.Cleaner, comp.Matcher, logger.Named("mcp"))
	sse := server.NewSSEServer(srv, server.WithBaseURL(fmt.Sprintf("http://%s", serveAddr)))

	go func() {
		<-cmd.Context().Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sse.Shutdown(ctx)
	}()

	logger.Info("serving MCP tools", zap.String("addr", serveAddr))
	if err := sse.Start(serveAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
