package daemon

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tkoskin/headsup/internal/conf"
	engine "github.com/tkoskin/headsup/internal/daemon"
)

// Command creates the daemon command that runs the engine until a
// termination signal arrives.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the notification engine",
		Long:  "Start the coordination engine: scheduled reminders, in-app banners, delivery fan-out and the web API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return engine.Run(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the daemon command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().BoolVar(&settings.WebServer.Enabled, "webserver", viper.GetBool("webserver.enabled"), "Enable the web server")
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port for the web server")
	cmd.Flags().StringVar(&settings.Notification.ReconcileSchedule, "schedule", viper.GetString("notification.reconcileschedule"), "Cron spec for periodic reconciliation")
	cmd.Flags().StringVar(&settings.Store.Backend, "store", viper.GetString("store.backend"), "Alert store backend (memory, sqlite, mysql)")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
