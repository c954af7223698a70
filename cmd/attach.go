// -- cmd/attach.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/chromedp/cdproto/network"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/navsync/internal/browser"
	"github.com/xkilldash9x/navsync/internal/browser/navigation"
	"github.com/xkilldash9x/navsync/internal/observability"
)

var (
	attachDevtoolsURL string
	attachGotoURL     string
	attachUntil       string
	attachTimeout     time.Duration
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach to a browser, navigate, and wait for a load milestone.",
	Long: `Attach to a running browser over the DevTools protocol (or launch a
headless instance), optionally navigate to a URL, block until the requested
load milestone is reached, and print the recorded navigation timeline as JSON.`,
	RunE: runAttach,
}

func init() {
	attachCmd.Flags().StringVar(&attachDevtoolsURL, "devtools-url", "", "DevTools endpoint of a running browser (overrides config)")
	attachCmd.Flags().StringVar(&attachGotoURL, "goto", "", "URL to navigate to after attaching")
	attachCmd.Flags().StringVar(&attachUntil, "until", string(navigation.AllContentLoaded), "load milestone to wait for")
	attachCmd.Flags().DurationVar(&attachTimeout, "timeout", 0, "wait timeout (0 uses the configured default)")
	rootCmd.AddCommand(attachCmd)
}

// attachResult is the CLI's JSON output shape.
type attachResult struct {
	Status     string                     `json:"status"`
	ResourceID string                     `json:"resourceId,omitempty"`
	FinalURL   string                     `json:"finalUrl,omitempty"`
	Timeline   []navigation.EntrySnapshot `json:"timeline"`
}

func runAttach(cmd *cobra.Command, args []string) error {
	logger := observability.GetLogger()

	cfg := *appCfg
	if attachDevtoolsURL != "" {
		cfg.Browser.DevtoolsURL = attachDevtoolsURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	session, err := browser.NewSession(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	if attachGotoURL != "" {
		if err := session.Navigate(ctx, attachGotoURL); err != nil {
			return fmt.Errorf("navigation failed: %w", err)
		}
	}

	var (
		status     navigation.LoadStatus
		resourceID network.RequestID
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := session.WaitForLoad(gctx, navigation.LoadStatus(attachUntil), attachTimeout)
		if err != nil {
			return err
		}
		status = st
		return nil
	})
	g.Go(func() error {
		id, err := session.WaitForResource(gctx)
		if err != nil {
			return err
		}
		resourceID = id
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	result := attachResult{
		Status:     string(status),
		ResourceID: string(resourceID),
		FinalURL:   session.Timeline().CurrentURL(),
		Timeline:   session.Timeline().Snapshot(),
	}
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
