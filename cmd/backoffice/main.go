package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-backoffice-session/backend"
	"github.com/jrsteele09/go-backoffice-session/internal/config"
	apperrors "github.com/jrsteele09/go-backoffice-session/internal/errors"
	"github.com/jrsteele09/go-backoffice-session/internal/logging"
	"github.com/jrsteele09/go-backoffice-session/sessions"
	"github.com/spf13/pflag"
)

const secretEnvVar = "BACKOFFICE_SECRET"

type options struct {
	backendURL string
	dataFolder string
	cache      string
	identifier string
	secret     string
	banner     bool
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	cfg := config.New()
	logging.Setup(cfg.GetEnv(), cfg.GetLogLevel())

	var opts options
	flagSet := pflag.NewFlagSet("backoffice", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.StringVar(&opts.backendURL, "backend", cfg.GetBaseURL(), "delivery platform API base URL")
	flagSet.StringVar(&opts.dataFolder, "data", cfg.GetDataFolder(), "folder for the token store and navigation cache")
	flagSet.StringVar(&opts.cache, "cache", string(cfg.GetNavigationCacheBackend()), "navigation cache backend: sqlite, redis or none")
	flagSet.StringVar(&opts.identifier, "id", "", "operator login name or email (login)")
	flagSet.StringVar(&opts.secret, "secret", "", "operator password (login), else $"+secretEnvVar)
	flagSet.BoolVar(&opts.banner, "banner", true, "print the banner on login")
	flagSet.Usage = func() { printHelp(out, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if flagSet.NArg() != 1 {
		printHelp(out, flagSet)
		return fmt.Errorf("expected exactly one command")
	}

	sess, err := openSession(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	switch command := flagSet.Arg(0); command {
	case "login":
		return login(ctx, sess, opts, out)
	case "logout":
		if err := sess.orchestrator.Logout(ctx); err != nil {
			return err
		}
		return nil
	case "whoami":
		return whoami(sess, out)
	case "menu":
		return menu(ctx, sess, out)
	case "refresh":
		pair, err := sess.orchestrator.Refresh(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Tokens refreshed for %s\n", pair.User.ID)
		return nil
	default:
		printHelp(out, flagSet)
		return fmt.Errorf("unknown command %q", command)
	}
}

func login(ctx context.Context, sess *session, opts options, out io.Writer) error {
	secret := opts.secret
	if secret == "" {
		secret = os.Getenv(secretEnvVar)
	}
	if opts.identifier == "" || secret == "" {
		return fmt.Errorf("login needs --id and --secret (or $%s)", secretEnvVar)
	}

	result, err := sess.orchestrator.Login(ctx, backend.Credentials{Identifier: opts.identifier, Secret: secret})
	if err != nil {
		if apperrors.Is(err, apperrors.ErrInvalidCredentials) {
			return fmt.Errorf("login refused: check your identifier and secret")
		}
		return err
	}

	if opts.banner {
		fmt.Fprintln(out, figure.NewFigure(sess.appName, "cybermedium", true).String())
	}
	fmt.Fprintf(out, "Logged in as %s (%s)\n", sess.view.UserFullName(), sess.view.UserRole())
	if result.Navigation.Source != sessions.SourceAuthoritative {
		fmt.Fprintf(out, "Navigation is limited (%s)\n", result.Navigation.Source)
	}
	return nil
}

func whoami(sess *session, out io.Writer) error {
	snapshot := sess.view.Snapshot()
	if !snapshot.IsLoggedIn() {
		fmt.Fprintln(out, "Not logged in")
		return nil
	}
	fmt.Fprintf(out, "%s <%s>\nrole: %s\n", sess.view.UserFullName(), sess.view.UserEmail(), sess.view.UserRole())
	if expiry := sess.tokens.Expiry(); !expiry.IsZero() {
		fmt.Fprintf(out, "token expires: %s\n", expiry.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func menu(ctx context.Context, sess *session, out io.Writer) error {
	outcome, err := sess.orchestrator.Restore(ctx)
	if err != nil {
		return err
	}
	printTree(out, outcome.Tree)
	return nil
}

func printHelp(out io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(out, `Back-office session tool.

Usage:
  backoffice [flags] login|logout|whoami|menu|refresh

Flags:
%s`, flagSet.FlagUsages())
}
