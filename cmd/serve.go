package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sizefit/internal/codec"
	"sizefit/internal/server"
	"sizefit/internal/transform"
	"sizefit/pkg/imgutil"
)

var (
	serveAddr      string
	serveResampler string
	serveEncoder   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the size search over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resampler, err := transform.ParseResampler(serveResampler)
		if err != nil {
			return err
		}
		if _, err := codec.ForKind(imgutil.KindJPEG, codec.Options{Encoder: serveEncoder}); err != nil {
			return err
		}

		logger := newLogger()
		srv := server.New(server.Config{
			Codec:     codec.Options{Encoder: serveEncoder},
			Resampler: resampler,
			Logger:    logger,
			AccessLog: true,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Listen(serveAddr)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			logger.Info("shutting down")
			return srv.Shutdown()
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&serveResampler, "resampler", "lanczos", "resampling backend: lanczos, gift or nfnt")
	serveCmd.Flags().StringVar(&serveEncoder, "encoder", "std", "jpeg encoder: std or jpegli")

	rootCmd.AddCommand(serveCmd)
}
