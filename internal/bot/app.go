// Package bot wires the conversation machine, session store, guard, and
// notification bridge into the telebot runtime.
package bot

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/themaden/copperx-telegram-bot/core/config"
	coretelegram "github.com/themaden/copperx-telegram-bot/core/telegram"
	"github.com/themaden/copperx-telegram-bot/core/telegram/callbacks"
	"github.com/themaden/copperx-telegram-bot/core/telegram/commands"
	tghelpers "github.com/themaden/copperx-telegram-bot/core/telegram/helpers"
	"github.com/themaden/copperx-telegram-bot/core/telegram/router"
	tgsender "github.com/themaden/copperx-telegram-bot/core/telegram/sender"
	"github.com/themaden/copperx-telegram-bot/internal/api"
	"github.com/themaden/copperx-telegram-bot/internal/domain"
	"github.com/themaden/copperx-telegram-bot/internal/flow"
	"github.com/themaden/copperx-telegram-bot/internal/guard"
	"github.com/themaden/copperx-telegram-bot/internal/notify"
	"github.com/themaden/copperx-telegram-bot/internal/services"
	"github.com/themaden/copperx-telegram-bot/internal/session"
)

// App owns every application component and exposes the run options the cmd
// runner needs.
type App struct {
	cfg        *Config
	dispatcher *tgsender.Dispatcher
	channel    *telebotChannel
	machine    *flow.Machine
	guard      *guard.Guard
	bridge     *notify.Bridge

	sweepCancel context.CancelFunc
}

// New assembles the application. db may be nil unless the Postgres session
// backend is configured.
func New(cfg *Config, db *sqlx.DB) (*App, error) {
	gateway := api.New(cfg.API.BaseURL, time.Duration(cfg.API.TimeoutSeconds)*time.Second)

	var store session.Store
	if cfg.Session.Backend == coreconfig.SessionBackendPostgres {
		store = session.NewPostgresStore(db)
	} else {
		store = session.NewMemoryStore()
	}

	g := guard.New(guard.Options{
		GlobalWindow:  time.Duration(cfg.Limits.GlobalWindowMS) * time.Millisecond,
		GlobalLimit:   cfg.Limits.GlobalLimit,
		CommandWindow: time.Duration(cfg.Limits.CommandWindowMS) * time.Millisecond,
		CommandLimit:  cfg.Limits.CommandLimit,
		SweepInterval: time.Duration(cfg.Limits.SweepIntervalMinutes) * time.Minute,
		AdminIDs:      cfg.Limits.AdminIDs,
	}, guard.NewMemoryStorage())

	dispatcher := tgsender.NewDispatcher(tgsender.Options{})
	channel := newTelebotChannel(dispatcher)

	// The bridge delivers into the machine; the machine unsubscribes through
	// the bridge. The closure breaks the construction cycle.
	var machine *flow.Machine
	bridge := notify.NewBridge(
		notify.URL(cfg.Pusher.Key, cfg.Pusher.Cluster),
		cfg.Pusher.AuthPath,
		gateway,
		func(chatID int64, dep domain.DepositNotification) {
			machine.NotifyDeposit(chatID, dep)
		},
	)

	machine = flow.New(flow.Options{
		Store:                store,
		Guard:                g,
		Auth:                 services.NewAuth(gateway),
		Wallets:              services.NewWallet(gateway),
		Transfers:            services.NewTransfer(gateway),
		Notifier:             bridge,
		Channel:              channel,
		BankAccountMinLength: cfg.Session.BankAccountMinLength,
	})

	return &App{
		cfg:        cfg,
		dispatcher: dispatcher,
		channel:    channel,
		machine:    machine,
		guard:      g,
		bridge:     bridge,
	}, nil
}

// TelegramRunOptions builds the telebot runtime configuration.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	a.registerCommands(reg)
	a.registerCallbacks(reg)
	reg.SetTextFallback(a.textHandler)

	routes := router.CommandRoutes(reg)
	routes = append(routes, router.TextRoutes(&fsmAdapter{app: a}, reg, router.TextOptions{
		UnknownDocument: func(c tele.Context) error {
			return tghelpers.SendText(c, "Please send text messages only.")
		},
	})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))

	return coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Dispatcher:  a.dispatcher,
		Middlewares: coretelegram.DefaultMiddlewares(),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.channel.Bind(rt.Bot)
			sweepCtx, cancel := context.WithCancel(context.Background())
			a.sweepCancel = cancel
			a.guard.StartSweeper(sweepCtx)
			return nil
		},
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			if a.sweepCancel != nil {
				a.sweepCancel()
			}
			a.bridge.Shutdown()
			return nil
		},
	}, nil
}

func (a *App) registerCommands(reg *coretelegram.Registry) {
	specs := []struct {
		name        string
		command     string
		description string
		hidden      bool
	}{
		{"/start", flow.CmdStart, "Start the bot", false},
		{"/login", flow.CmdLogin, "Sign in with your Copperx account", false},
		{"/balance", flow.CmdBalance, "Show wallet balances", false},
		{"/wallets", flow.CmdWallets, "List your wallets", false},
		{"/setdefault", flow.CmdSetDefault, "Choose the default wallet", false},
		{"/send", flow.CmdSend, "Send funds", false},
		{"/history", flow.CmdHistory, "Recent transactions", false},
		{"/profile", flow.CmdProfile, "Account and KYC status", false},
		{"/help", flow.CmdHelp, "Show help", false},
		{"/logout", flow.CmdLogout, "Sign out", false},
		{"/cancel", flow.CmdCancel, "Abort the current operation", true},
	}
	for _, spec := range specs {
		command := spec.command
		reg.RegisterCommand(spec.name, commands.Command{
			Handler: func(c tele.Context) error {
				return a.machine.HandleCommand(tghelpers.BuildContext(c), c.Chat().ID, c.Sender().ID, command)
			},
			Description: spec.description,
			Hidden:      spec.hidden,
		})
	}
}

func (a *App) registerCallbacks(reg *coretelegram.Registry) {
	keys := []string{
		flow.ActionLogin,
		flow.ActionSendEmail,
		flow.ActionSendWallet,
		flow.ActionWithdrawBank,
		flow.ActionSetDefault,
		flow.ActionConfirm,
		flow.ActionCancel,
		flow.ActionBackToMain,
	}
	for _, key := range keys {
		action := key
		_ = reg.RegisterCallback(action, func(c tele.Context) error {
			return a.machine.HandleAction(
				tghelpers.BuildContext(c),
				c.Chat().ID,
				c.Sender().ID,
				action,
				callbacks.CallbackPayload(c),
			)
		})
	}
}

// textHandler routes free text that is neither a command nor part of an
// active conversation; the machine maps menu labels and ignores the rest.
func (a *App) textHandler(c tele.Context) error {
	return a.machine.HandleText(tghelpers.BuildContext(c), c.Chat().ID, c.Sender().ID, c.Text())
}

// fsmAdapter exposes the machine to the text router. The bot serves private
// chats, where the sender id and the chat id coincide.
type fsmAdapter struct {
	app *App
}

func (f *fsmAdapter) InProgress(userID int64) bool {
	return f.app.machine.InProgress(userID)
}

func (f *fsmAdapter) ManagerHandler(c tele.Context) error {
	return f.app.textHandler(c)
}
