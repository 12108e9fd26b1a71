// secomcli drives the order-management client from the command line: log in,
// browse and accept/return orders, edit and submit the order draft, upload
// sample images.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dientoan/secom-client/internal/api"
	"github.com/dientoan/secom-client/internal/auth"
	"github.com/dientoan/secom-client/internal/config"
	"github.com/dientoan/secom-client/internal/draft"
	"github.com/dientoan/secom-client/internal/options"
	"github.com/dientoan/secom-client/internal/orders"
	"github.com/dientoan/secom-client/internal/storage"
	"github.com/dientoan/secom-client/pkg/models"
)

const usage = `usage: secomcli <command> [args]

commands:
  login -u <username> -p <password>
  logout
  whoami
  user show
  user edit [-name <n>] [-phone <p>] [-email <e>] [-address <a>]
  orders list [-all] [-report <id>]
  orders accept <order-id>
  orders return <order-id> -next <facility-type-id>
  options [type]
  draft set <field> <value>
  draft show
  draft submit
  draft reset
  upload <path>
  passwd -old <old> -new <new>
`

type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	client  *api.Client
	session *auth.Session
	orders  *orders.Store
	draft   *draft.Store
	options *options.Cache
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.WarnLevel)
	if os.Getenv("SECOM_DEBUG") != "" {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	store, err := storage.NewFileStore(cfg.Storage.Dir)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open storage")
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout, logger)
	session := auth.NewSession(client, store, cfg.OAuth.TokenPath, cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, logger)
	client.SetTokenSource(session)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		session: session,
		orders:  orders.NewStore(client, cfg.Orders.PageSize, cfg.Orders.AllPageSize, logger),
		draft:   draft.NewStore(client, store, session, cfg.Draft.Debounce, cfg.Draft.MaxAge, cfg.Draft.SweepAge, logger),
		options: options.NewCache(client, store, session, cfg.Options.CacheTTL, logger),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	session.Restore(ctx)
	if session.IsLoggedIn() {
		a.draft.Load()
	}

	if err := a.run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("no command given")
	}

	switch args[0] {
	case "login":
		return a.cmdLogin(ctx, args[1:])
	case "logout":
		a.session.LogOut()
		fmt.Println("logged out")
		return nil
	case "whoami":
		return a.cmdWhoami(ctx)
	case "user":
		return a.cmdUser(ctx, args[1:])
	case "orders":
		return a.cmdOrders(ctx, args[1:])
	case "options":
		return a.cmdOptions(ctx, args[1:])
	case "draft":
		return a.cmdDraft(ctx, args[1:])
	case "upload":
		return a.cmdUpload(ctx, args[1:])
	case "passwd":
		return a.cmdPasswd(ctx, args[1:])
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		return fmt.Errorf("login requires -u and -p")
	}

	if err := a.session.LogIn(ctx, *username, *password); err != nil {
		return err
	}

	// Warm the pick lists the forms need; each type fails on its own.
	a.options.LoadEssential(ctx)
	a.draft.Load()

	fmt.Printf("logged in as %s\n", *username)
	return nil
}

func (a *app) cmdWhoami(ctx context.Context) error {
	if !a.session.IsLoggedIn() {
		return fmt.Errorf("not logged in")
	}
	user := a.session.User()
	if user == nil {
		if err := a.session.FetchUser(ctx, ""); err != nil {
			return err
		}
		user = a.session.User()
	}
	fmt.Printf("%s (%s) role=%s id=%s\n", user.Name, user.Username, user.Role, user.ID)
	return nil
}

func (a *app) cmdUser(ctx context.Context, args []string) error {
	if !a.session.IsLoggedIn() {
		return fmt.Errorf("not logged in")
	}
	if len(args) == 0 {
		return fmt.Errorf("user requires a subcommand: show, edit")
	}

	user := a.session.User()
	if user == nil {
		if err := a.session.FetchUser(ctx, ""); err != nil {
			return err
		}
		user = a.session.User()
	}

	switch args[0] {
	case "show":
		full, err := a.client.GetUser(ctx, user.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%-10s %s\n", "name", full.Name)
		fmt.Printf("%-10s %s\n", "username", full.Username)
		fmt.Printf("%-10s %s\n", "role", full.Role)
		fmt.Printf("%-10s %s\n", "email", full.Email)
		fmt.Printf("%-10s %s\n", "phone", full.Phone)
		fmt.Printf("%-10s %s\n", "address", full.Address)
		return nil

	case "edit":
		fs := flag.NewFlagSet("user edit", flag.ContinueOnError)
		name := fs.String("name", "", "display name")
		phone := fs.String("phone", "", "phone number")
		email := fs.String("email", "", "email address")
		address := fs.String("address", "", "address")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *name == "" && *phone == "" && *email == "" && *address == "" {
			return fmt.Errorf("user edit requires at least one of -name, -phone, -email, -address")
		}

		updates := &models.User{
			ID:      user.ID,
			Version: user.Version,
			Name:    *name,
			Phone:   *phone,
			Email:   *email,
			Address: *address,
		}
		updated, err := a.client.UpdateUser(ctx, updates)
		if err != nil {
			return err
		}
		// Keep the cached profile in step with the backend.
		if err := a.session.FetchUser(ctx, updated.Username); err != nil {
			a.logger.WithError(err).Warn("Profile updated but refresh failed")
		}
		fmt.Printf("updated profile for %s\n", updated.Username)
		return nil

	default:
		return fmt.Errorf("unknown user subcommand %q", args[0])
	}
}

func (a *app) cmdOrders(ctx context.Context, args []string) error {
	if !a.session.IsLoggedIn() {
		return fmt.Errorf("not logged in")
	}
	if len(args) == 0 {
		return fmt.Errorf("orders requires a subcommand: list, accept, return")
	}

	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("orders list", flag.ContinueOnError)
		all := fs.Bool("all", false, "fetch the full dataset instead of the first page")
		report := fs.String("report", "summary", "facility statistic report id")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}

		var list []models.Order
		if *all {
			if err := a.orders.FetchAllOrders(ctx); err != nil {
				return err
			}
			list = a.orders.AllOrders()
			counts := a.orders.CountByStatus(a.session.User())
			fmt.Printf("total %d  unassigned %d  mine %d  others %d\n",
				a.orders.Total(), counts.Unassigned, counts.Mine, counts.Others)
			if err := a.orders.FetchFacilityStats(ctx, *report); err != nil {
				a.logger.WithError(err).Warn("Failed to fetch facility statistics")
			} else {
				for _, stat := range a.orders.Facilities() {
					fmt.Printf("facility %-14s %d\n", stat.FacilityType.Name, stat.Count)
				}
			}
		} else {
			if err := a.orders.FetchOrders(ctx); err != nil {
				return err
			}
			list = a.orders.Orders()
			fmt.Printf("showing %d of %d\n", len(list), a.orders.Total())
		}
		for _, o := range list {
			printOrder(&o)
		}
		return nil

	case "accept":
		if len(args) < 2 {
			return fmt.Errorf("orders accept requires an order id")
		}
		order, err := a.client.GetOrder(ctx, args[1])
		if err != nil {
			return err
		}
		updated, err := a.orders.AcceptOrder(ctx, order, a.session.User())
		if err != nil {
			return err
		}
		fmt.Printf("accepted %s (version %d)\n", updated.ID, updated.Version)
		return nil

	case "return":
		fs := flag.NewFlagSet("orders return", flag.ContinueOnError)
		next := fs.String("next", "", "next facility type id")
		if len(args) < 2 {
			return fmt.Errorf("orders return requires an order id")
		}
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		order, err := a.client.GetOrder(ctx, args[1])
		if err != nil {
			return err
		}
		updated, err := a.orders.ReturnOrder(ctx, order, a.session.User(), &models.Ref{ID: *next})
		if err != nil {
			return err
		}
		fmt.Printf("returned %s (version %d)\n", updated.ID, updated.Version)
		return nil

	default:
		return fmt.Errorf("unknown orders subcommand %q", args[0])
	}
}

func (a *app) cmdOptions(ctx context.Context, args []string) error {
	if !a.session.IsLoggedIn() {
		return fmt.Errorf("not logged in")
	}

	types := options.AllTypes
	if len(args) > 0 {
		types = []options.Type{options.Type(args[0])}
	}
	for _, t := range types {
		opts, err := a.options.Fetch(ctx, t)
		if err != nil {
			fmt.Printf("%s: error: %v\n", t, err)
			continue
		}
		fmt.Printf("%s (%d):\n", t, len(opts))
		for _, o := range opts {
			fmt.Printf("  %s  %s\n", o.ID, o.Name)
		}
	}
	return nil
}

func (a *app) cmdDraft(ctx context.Context, args []string) error {
	if !a.session.IsLoggedIn() {
		return fmt.Errorf("not logged in")
	}
	if len(args) == 0 {
		return fmt.Errorf("draft requires a subcommand: set, show, submit, reset")
	}

	switch args[0] {
	case "set":
		if len(args) < 3 {
			return fmt.Errorf("draft set requires a field and a value")
		}
		value, err := draft.ParseFieldValue(args[1], args[2])
		if err != nil {
			return err
		}
		a.draft.UpdateDraftPath(args[1], value)
		// The process is about to exit, so the debounce never fires on its
		// own; flush like the app does on backgrounding.
		a.draft.Flush()
		fmt.Printf("draft.%s = %v\n", args[1], value)
		return nil

	case "show":
		d := a.draft.Draft()
		for _, field := range []string{"id", "name", "address", "phone", "area", "facilityType", "stateOpt", "orgUnit", "skuOpt", "note"} {
			if v := d[field]; v != nil {
				fmt.Printf("%-16s %v\n", field, v)
			}
		}
		return nil

	case "submit":
		order, err := a.draft.SubmitDraft(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("submitted: %s\n", order.ID)
		return nil

	case "reset":
		a.draft.ResetDraft()
		fmt.Println("draft cleared")
		return nil

	default:
		return fmt.Errorf("unknown draft subcommand %q", args[0])
	}
}

func (a *app) cmdUpload(ctx context.Context, args []string) error {
	if !a.session.IsLoggedIn() {
		return fmt.Errorf("not logged in")
	}
	if len(args) < 1 {
		return fmt.Errorf("upload requires a file path")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	result, err := a.client.UploadFile(ctx, filepath.Base(args[0]), "image/jpeg", f)
	if err != nil {
		return err
	}

	// Submitting the draft later carries the uploaded sample reference.
	a.draft.UpdateDraftPath("sampleSource", result.URL)
	a.draft.Flush()

	fmt.Printf("uploaded: id=%s url=%s\n", result.ID, result.URL)
	return nil
}

func (a *app) cmdPasswd(ctx context.Context, args []string) error {
	if !a.session.IsLoggedIn() {
		return fmt.Errorf("not logged in")
	}
	fs := flag.NewFlagSet("passwd", flag.ContinueOnError)
	oldPassword := fs.String("old", "", "current password")
	newPassword := fs.String("new", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *oldPassword == "" || *newPassword == "" {
		return fmt.Errorf("passwd requires -old and -new")
	}
	if err := a.client.ChangePassword(ctx, *oldPassword, *newPassword); err != nil {
		return err
	}
	fmt.Println("password changed")
	return nil
}

func printOrder(o *models.Order) {
	holder := o.IssuePlace
	if o.Unassigned() {
		holder = "-"
	}
	facility := "-"
	if o.FacilityType != nil {
		facility = o.FacilityType.Name
	}
	fmt.Printf("%s  %-10s  %-12s  holder=%-12s  %s\n",
		o.ID, o.Code, facility, holder, o.CreatedDate.Format("2006-01-02 15:04"))
}
