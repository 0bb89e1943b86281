package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/opd-ai/storybook/srv/ui"
	"github.com/opd-ai/storybook/srv/util"
)

func newServeCmd(root *rootFlags) *cobra.Command {
	var (
		addr     string
		useTLS   bool
		certFile string
		keyFile  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the storybook web interface",
		Long: `Starts the web interface and JSON API. The page lists the story templates
and models, submits a generation and follows its progress over a WebSocket.`,
		Example: `  # Serve on the default address
  storybook serve

  # HTTPS with a generated self-signed certificate
  storybook serve --addr :8443 --tls`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			if a.settings.LogFile != "" {
				logFile, err := util.OpenLogFile(a.settings.LogFile)
				if err != nil {
					return err
				}
				defer logFile.Close()
			}
			if addr == "" {
				addr = a.settings.ListenAddr
			}

			gen, err := a.generator(cmd.Context())
			if err != nil {
				return err
			}
			handler := ui.NewGeneratorUI(ui.Options{
				Generator:     gen,
				History:       gen.History,
				OutputDir:     a.settings.OutputDir,
				GenerateLimit: a.settings.GenerateLimit,
			})

			server := &http.Server{
				Addr:              addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				var err error
				if useTLS {
					util.InfoLogger.Printf("Storybook available at https://localhost%s", addr)
					err = util.ListenAndServeTLS(server, certFile, keyFile)
				} else {
					util.InfoLogger.Printf("Storybook available at http://localhost%s", addr)
					err = server.ListenAndServe()
				}
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				util.InfoLogger.Println("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					util.ErrorLogger.Printf("Server shutdown failed: %v", err)
					return err
				}
				util.InfoLogger.Println("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default STORYBOOK_LISTEN_ADDR or :8080)")
	cmd.Flags().BoolVar(&useTLS, "tls", false, "Serve HTTPS, generating a self-signed certificate if needed")
	cmd.Flags().StringVar(&certFile, "cert", "certs/server.crt", "TLS certificate file")
	cmd.Flags().StringVar(&keyFile, "key", "certs/server.key", "TLS key file")

	return cmd
}
