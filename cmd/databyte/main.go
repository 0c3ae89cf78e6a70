package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/Ayorinde-Codes/databyte-go/pkg/api"
	"github.com/Ayorinde-Codes/databyte-go/pkg/config"
	"github.com/Ayorinde-Codes/databyte-go/pkg/crypto"
	"github.com/Ayorinde-Codes/databyte-go/pkg/logging"
	"github.com/Ayorinde-Codes/databyte-go/pkg/model"
	"github.com/Ayorinde-Codes/databyte-go/pkg/rbac"
	"github.com/Ayorinde-Codes/databyte-go/pkg/session"
	"github.com/Ayorinde-Codes/databyte-go/pkg/store"
	"github.com/Ayorinde-Codes/databyte-go/pkg/version"
)

func main() {
	configPath := flag.String("config", "databyte.yaml", "Client config file (YAML)")
	baseURL := flag.String("base-url", "", "API base URL (overrides config)")

	doLogin := flag.Bool("login", false, "Log in with -email and DATABYTE_PASSWORD")
	doRegister := flag.Bool("register", false, "Register with -name, -email, -company and DATABYTE_PASSWORD")
	doLogout := flag.Bool("logout", false, "Log out and clear the local session")
	doWhoami := flag.Bool("whoami", false, "Print the current session")
	doRefresh := flag.Bool("refresh", false, "Refresh the session once")
	showVersion := flag.Bool("version", false, "Print version and exit")

	email := flag.String("email", "", "Account email for -login / -register")
	name := flag.String("name", "", "Full name for -register")
	company := flag.String("company", "", "Company name for -register")

	logLevel := flag.String("log-level", "", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "", "Log format: text or json")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFormat != "" {
		cfg.LogFormat = *logFormat
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	key, err := crypto.LoadOrCreateKey(cfg.KeyPath)
	if err != nil {
		slog.Error("load key", "err", err)
		os.Exit(1)
	}
	sealer, err := crypto.NewSealer(key)
	if err != nil {
		slog.Error("create sealer", "err", err)
		os.Exit(1)
	}

	st, err := store.New(cfg.StorePath, sealer)
	if err != nil {
		slog.Error("open session store", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	client := api.New(api.Options{BaseURL: cfg.BaseURL, Timeout: cfg.RequestTimeout.Std()}, st)
	manager := session.NewManager(client, st, cfg.RefreshInterval.Std())
	manager.Init()
	defer manager.Teardown()

	ctx := context.Background()

	switch {
	case *doLogin:
		creds := model.Credentials{Email: *email, Password: os.Getenv("DATABYTE_PASSWORD")}
		if err := manager.Login(ctx, creds); err != nil {
			slog.Error("login failed", "err", err)
			os.Exit(1)
		}
		fmt.Printf("logged in as %s\n", *email)

	case *doRegister:
		password := os.Getenv("DATABYTE_PASSWORD")
		reg := model.Registration{
			Name:                 *name,
			Email:                *email,
			Password:             password,
			PasswordConfirmation: password,
			CompanyName:          *company,
		}
		if err := manager.Register(ctx, reg); err != nil {
			slog.Error("registration failed", "err", err)
			os.Exit(1)
		}
		fmt.Printf("registered %s\n", *email)

	case *doLogout:
		manager.Logout(ctx)
		fmt.Println("logged out")

	case *doRefresh:
		if err := manager.Refresh(ctx); err != nil {
			slog.Error("refresh failed", "err", err)
			os.Exit(1)
		}
		fmt.Println("session refreshed")

	case *doWhoami:
		printSession(manager, cfg.RolesFile)

	default:
		flag.Usage()
	}
}

func printSession(manager *session.Manager, rolesFile string) {
	user := manager.CurrentUser()
	if user == nil {
		fmt.Println("not logged in")
		return
	}
	company := manager.CurrentCompany()

	fmt.Printf("user:    %s <%s>\n", user.Name, user.Email)
	fmt.Printf("company: %s\n", company.Name)
	fmt.Printf("roles:   %v\n", user.Roles)

	matrix, err := rbac.LoadMatrix(rolesFile)
	if err != nil {
		slog.Debug("no role matrix, skipping permissions", "err", err)
		return
	}
	evaluator := rbac.NewEvaluator(matrix)
	fmt.Printf("perms:   %v\n", evaluator.PermissionsFor(user.Roles))
}
