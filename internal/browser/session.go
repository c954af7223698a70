// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/navsync/internal/browser/navigation"
	"github.com/xkilldash9x/navsync/internal/commands"
	"github.com/xkilldash9x/navsync/internal/config"
	"github.com/xkilldash9x/navsync/internal/deferred"
)

// Session drives one automated browser target. Every public command is
// assigned an id by the sequencer and announced to the navigation observer
// before it runs, which keeps the implicit location-wait anchoring correct.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    *config.Config

	recorder *commands.Recorder
	timeline *navigation.Timeline
	observer *navigation.Observer
	scope    *deferred.Scope

	allocCancel context.CancelFunc
	closeOnce   sync.Once
}

// NewSession attaches to the browser described by the configuration: a remote
// devtools endpoint when one is configured, otherwise a locally launched
// headless instance.
func NewSession(parentCtx context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	sessionID := uuid.New().String()
	log := logger.With(zap.String("session_id", sessionID))

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if cfg.Browser.DevtoolsURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(parentCtx, cfg.Browser.DevtoolsURL)
	} else {
		opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		if !cfg.Browser.Headless {
			opts = append(opts, chromedp.Flag("headless", false))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(parentCtx, opts...)
	}
	ctx, cancel := chromedp.NewContext(allocCtx)

	s := &Session{
		id:          sessionID,
		ctx:         ctx,
		cancel:      cancel,
		logger:      log,
		cfg:         cfg,
		recorder:    commands.NewRecorder(),
		timeline:    navigation.NewTimeline(log, cfg.Waits.PaintStableQuiet),
		scope:       deferred.NewScope(),
		allocCancel: allocCancel,
	}
	s.observer = navigation.NewObserver(s.timeline, s.scope, log, cfg.Waits.DefaultTimeout)
	newBridge(log, s.timeline, s.recorder).listen(ctx)

	attachCtx := ctx
	if cfg.Browser.AttachTimeout > 0 {
		var attachCancel context.CancelFunc
		attachCtx, attachCancel = context.WithTimeout(ctx, cfg.Browser.AttachTimeout)
		defer attachCancel()
	}
	if err := chromedp.Run(attachCtx,
		network.Enable(),
		page.Enable(),
		page.SetLifecycleEventsEnabled(true),
	); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to attach to browser: %w", err)
	}

	log.Info("Session attached.")
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Timeline exposes the session's navigation history for read-only consumers.
func (s *Session) Timeline() *navigation.Timeline {
	return s.timeline
}

// record sequences a command and announces it to the observer before it runs.
func (s *Session) record(name string) commands.Meta {
	prior := s.recorder.History()
	meta := s.recorder.Record(name)
	s.observer.WillRunCommand(meta, prior)
	return meta
}

// Navigate starts loading the URL. It returns as soon as the navigation is
// issued; use the wait methods to synchronize on load progress.
func (s *Session) Navigate(ctx context.Context, url string) error {
	meta := s.record("goto")
	navCtx, navCancel := CombineContext(s.ctx, ctx)
	defer navCancel()

	s.logger.Info("Navigating", zap.String("url", url), zap.Int64("command_id", meta.ID))
	return chromedp.Run(navCtx, navigateAction(url))
}

// navigateAction issues Page.navigate and surfaces the browser's error text as
// a NavigationError.
func navigateAction(url string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		_, _, errText, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errText != "" {
			return &navigation.NavigationError{URL: url, Message: errText}
		}
		return nil
	}
}

// WaitForLoad blocks until the top navigation entry reaches at least the given
// milestone, the timeout elapses, or a context is canceled. A zero timeout
// selects the configured default. Returns the satisfying milestone.
func (s *Session) WaitForLoad(ctx context.Context, status navigation.LoadStatus, timeout time.Duration) (navigation.LoadStatus, error) {
	s.record("waitForLoad")
	d, err := s.observer.WaitForLoad(status, navigation.WaitOptions{Timeout: timeout})
	if err != nil {
		return "", err
	}
	return s.awaitStatus(ctx, d)
}

// WaitForReady blocks until the DOM is ready on the top entry.
func (s *Session) WaitForReady(ctx context.Context) error {
	s.record("waitForReady")
	d, err := s.observer.WaitForReady()
	if err != nil {
		return err
	}
	_, err = s.awaitStatus(ctx, d)
	return err
}

// WaitForLocation blocks until a navigational transition satisfies the
// trigger, scoped by sinceCommandID when non-nil, otherwise by the implicit
// cursor. Returns the matching navigation entry.
func (s *Session) WaitForLocation(ctx context.Context, trigger navigation.LocationTrigger, sinceCommandID *int64, timeout time.Duration) (*navigation.Entry, error) {
	s.record("waitForLocation")
	d, err := s.observer.WaitForLocation(trigger, navigation.WaitOptions{
		Timeout:        timeout,
		SinceCommandID: sinceCommandID,
	})
	if err != nil {
		return nil, err
	}
	waitCtx, waitCancel := CombineContext(s.ctx, ctx)
	defer waitCancel()
	res, err := d.Await(waitCtx)
	if err != nil {
		return nil, err
	}
	return res.Entry, nil
}

// WaitForResource blocks until the top entry's primary network resource is
// known, surfacing any terminal navigation error.
func (s *Session) WaitForResource(ctx context.Context) (network.RequestID, error) {
	s.record("waitForResource")
	waitCtx, waitCancel := CombineContext(s.ctx, ctx)
	defer waitCancel()
	return s.observer.WaitForNavigationResourceID().Await(waitCtx)
}

// WaitForMillis pauses the command stream for the given duration.
func (s *Session) WaitForMillis(ctx context.Context, d time.Duration) error {
	s.record("waitForMillis")
	waitCtx, waitCancel := CombineContext(s.ctx, ctx)
	defer waitCancel()
	select {
	case <-time.After(d):
		return nil
	case <-waitCtx.Done():
		return waitCtx.Err()
	}
}

// CancelWaiting rejects every outstanding wait with a cancellation carrying
// the supplied reason.
func (s *Session) CancelWaiting(reason string) {
	s.observer.CancelWaiting(reason)
}

// Close tears the session down: outstanding waits are force-rejected, the
// observer detaches and the browser target is released.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Info("Closing session.")
		s.observer.Close()
		s.scope.ExpireAll(&navigation.CanceledError{Reason: "session closed"})
		s.cancel()
		if s.allocCancel != nil {
			s.allocCancel()
		}
	})
	return nil
}

func (s *Session) awaitStatus(ctx context.Context, d *deferred.Deferred[navigation.Resolution]) (navigation.LoadStatus, error) {
	waitCtx, waitCancel := CombineContext(s.ctx, ctx)
	defer waitCancel()
	res, err := d.Await(waitCtx)
	if err != nil {
		return "", err
	}
	return res.Status, nil
}

// CombineContext derives a context canceled when either parent is done, so an
// operation respects both the session lifecycle and the caller's deadline.
func CombineContext(parentCtx, secondaryCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(parentCtx)
	go func() {
		select {
		case <-secondaryCtx.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()
	return combinedCtx, cancel
}
