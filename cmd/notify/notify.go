// Package notify implements a manual testing command that drives
// simulated account events through a transient engine.
package notify

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tkoskin/headsup/internal/conf"
	"github.com/tkoskin/headsup/internal/daemon"
)

const (
	// settleDelay gives the store worker time to apply the plan produced
	// by the simulated event before the queues are read back.
	settleDelay = 250 * time.Millisecond

	// publishTimeout bounds the wait for the banner list update.
	publishTimeout = 2 * time.Second
)

// Command returns a cobra command that simulates one account event
// against a transient in-memory engine and prints the outcome.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		expiresIn time.Duration
		lead      time.Duration
		fireHour  int
	)

	cmd := &cobra.Command{
		Use:   "notify [login|expiry|logout]",
		Short: "Simulate an account event against a transient engine",
		Long: `Simulate an account event against a transient in-memory engine and
print the resulting banners and alert queues. The configured store is
never touched. Delivery targets stay active, so a compressed lead
produces a past-due reminder that fires and pushes immediately.

Examples:
  # Warning banner only, expiry inside the default 72h window
  headsup notify login --expires-in 24h

  # Scheduled reminder ahead of a far-out expiry
  headsup notify expiry --expires-in 240h

  # Immediate fire and delivery fan-out
  headsup notify login --expires-in 2h --lead 1h

  # Clear everything
  headsup notify logout`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return simulate(cmd, settings, args[0], expiresIn, lead, fireHour)
		},
	}

	cmd.Flags().DurationVar(&expiresIn, "expires-in", 24*time.Hour, "How far in the future the simulated account expiry lies")
	cmd.Flags().DurationVar(&lead, "lead", 0, "Warning lead time override, 0 uses the configured value")
	cmd.Flags().IntVar(&fireHour, "fire-hour", 0, "Reminder fire hour override, 0 uses the configured value")

	return cmd
}

// simulate runs one account event through a fresh engine and prints
// the banner list and both alert queues.
func simulate(cmd *cobra.Command, settings *conf.Settings, event string, expiresIn, lead time.Duration, fireHour int) error {
	// The transient engine never opens the configured store or binds the
	// web port. Delivery targets stay as configured so push fan-out can
	// be exercised end to end.
	transient := *settings
	transient.Store.Backend = "memory"
	transient.WebServer.Enabled = false
	if lead > 0 {
		transient.Notification.LeadTime = lead
	}
	if fireHour > 0 {
		transient.Notification.FireHour = fireHour
	}

	engine, err := daemon.NewEngine(&transient)
	if err != nil {
		return err
	}
	defer engine.Shutdown()

	updates, _ := engine.Manager().Subscribe()

	ctx := cmd.Context()
	expiry := time.Now().Add(expiresIn)
	tracker := engine.Tracker()

	switch event {
	case "login":
		err = tracker.Login(ctx, "simulated-session", expiry)
	case "expiry":
		err = tracker.SetExpiry(ctx, expiry)
	case "logout":
		err = tracker.Logout(ctx)
	default:
		return fmt.Errorf("unknown account event %q, expected login, expiry or logout", event)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if event == "logout" {
		fmt.Fprintln(out, "Simulated logout")
	} else {
		fmt.Fprintf(out, "Simulated %s with expiry %s\n", event, expiry.Format(time.RFC3339))
	}

	// The provider invalidation republishes the banner list once the bus
	// worker has handled the event.
	select {
	case banners := <-updates:
		fmt.Fprintf(out, "Banners (%d):\n", len(banners))
		for _, b := range banners {
			fmt.Fprintf(out, "  [%s] %s: %s\n", b.Severity, b.Title, b.Body)
		}
	case <-time.After(publishTimeout):
		return fmt.Errorf("timed out waiting for the banner list to update")
	}

	// Store writes land asynchronously after the banner publish.
	time.Sleep(settleDelay)

	pending, err := engine.Center().PendingAlerts(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Pending alerts (%d):\n", len(pending))
	for _, alert := range pending {
		fmt.Fprintf(out, "  %s fires %s\n", alert.Key, alert.FireAt.Format(time.RFC3339))
	}

	delivered, err := engine.Center().DeliveredAlerts(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Delivered alerts (%d):\n", len(delivered))
	for _, d := range delivered {
		fmt.Fprintf(out, "  %s fired %s\n", d.Alert.Key, d.FiredAt.Format(time.RFC3339))
	}

	return nil
}
