package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tasksphere/sphere-client/internal/api"
	"github.com/tasksphere/sphere-client/internal/config"
	"github.com/tasksphere/sphere-client/internal/notify"
	"github.com/tasksphere/sphere-client/internal/queue"
	"github.com/tasksphere/sphere-client/internal/realtime"
	"github.com/tasksphere/sphere-client/internal/reminders"
	"github.com/tasksphere/sphere-client/internal/replica"
	"github.com/tasksphere/sphere-client/internal/session"
	"github.com/tasksphere/sphere-client/internal/store"
	"github.com/tasksphere/sphere-client/internal/suggest"
)

// app owns the wired client stack for one command invocation.
// Construction order matters: config, store, transport, session,
// realtime, then the feature layers on top. Close unwinds in reverse.
type app struct {
	cfg       *config.Config
	store     *store.Store
	api       *api.Client
	session   *session.Controller
	rt        *realtime.Client
	center    *notify.Center
	replica   *replica.Replica
	queue     *queue.Engine
	reminders *reminders.Scheduler
	drafter   *suggest.Drafter
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	client := api.NewClient(cfg.BaseURL, st)
	ctrl := session.NewController(client, st)
	rt := realtime.NewClient(cfg.SocketURL, func() string {
		access, _ := st.Tokens()
		return access
	})

	a := &app{
		cfg:     cfg,
		store:   st,
		api:     client,
		session: ctrl,
		rt:      rt,
		center: notify.NewCenter(client, rt,
			notify.WithSound(cfg.EnableSound),
			notify.WithDesktop(cfg.EnableDesktopNotify)),
		reminders: reminders.NewScheduler(client),
		drafter:   suggest.NewDrafter(cfg.OpenAIAPIKey),
	}
	a.replica = replica.New(client, rt)
	a.queue = queue.New(client, a.replica)
	return a, nil
}

// Close tears the stack down in reverse of construction.
func (a *app) Close() {
	a.replica.Detach()
	a.center.Detach()
	a.rt.Disconnect()
	a.store.Teardown()
}

// requireSession hydrates from stored tokens and fails the command
// when no usable session exists.
func (a *app) requireSession(ctx context.Context) error {
	if err := a.session.Hydrate(ctx); err != nil {
		return err
	}
	if a.session.State() != session.StateAuthenticated {
		return fmt.Errorf("not logged in; run `spherecli login` first")
	}
	return nil
}

// connect brings the realtime channel up and joins the user room.
func (a *app) connect(ctx context.Context) error {
	if err := a.rt.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect realtime channel: %w", err)
	}
	if user := a.session.User(); user != nil {
		if err := a.rt.JoinUser(user.ID); err != nil {
			return err
		}
	}
	return nil
}

// selectedList resolves the list to operate on: an explicit --list
// flag wins, otherwise the remembered selection.
func (a *app) selectedList(flagValue uint64) (uint64, error) {
	if flagValue != 0 {
		return flagValue, nil
	}
	raw, err := a.store.Get(store.KeySelectedList)
	if err != nil {
		return 0, fmt.Errorf("no list selected; pass --list or run `spherecli lists use`")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("no list selected; pass --list or run `spherecli lists use`")
	}
	return id, nil
}

func (a *app) rememberList(listID uint64) error {
	return a.store.Set(store.KeySelectedList, strconv.FormatUint(listID, 10))
}
