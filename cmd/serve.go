package cmd

import (
	"fmt"
	"github.com/sardine-ai/go-installer-config/configs"
	"github.com/sardine-ai/go-installer-config/history"
	"github.com/sardine-ai/go-installer-config/mirror"
	"github.com/sardine-ai/go-installer-config/server"
	"github.com/sardine-ai/go-installer-config/settings"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"os"
	"os/signal"
	"syscall"
)

func newServeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the installer config server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.settings(cmd)
			if err != nil {
				return err
			}
			srv, err := buildServer(s)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				if err := srv.Shutdown(); err != nil {
					logrus.WithError(err).Error("error stopping server")
				}
			}()
			return srv.Start(s.Listen)
		},
	}
}

// buildServer wires the store, history and mirror described by s.
func buildServer(s *settings.Settings) (*server.Server, error) {
	store, err := configs.Open(s.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to open install root: %w", err)
	}
	srv := server.NewServer(store)

	if s.History.Enabled {
		recorder, err := history.Open(store.Filesystem(), configs.ConfigDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open config history: %w", err)
		}
		recorder.SetAuthor(s.History.AuthorName, s.History.AuthorEmail)
		srv.History = recorder
	}

	sink, err := mirror.New(s.Mirror)
	if err != nil {
		return nil, err
	}
	if sink != nil {
		logrus.WithField("mirror", sink.GetType()).Info("mirroring config writes")
		srv.Mirror = sink
	}
	return srv, nil
}
