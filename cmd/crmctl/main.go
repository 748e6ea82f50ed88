// crmctl is the operator CLI: account bootstrap, database inspection, and
// offline task dispatch for debugging agents.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"realtycrm/pkg/agents/analytics"
	"realtycrm/pkg/agents/lead"
	"realtycrm/pkg/agents/scheduling"
	"realtycrm/pkg/agents/transaction"
	"realtycrm/pkg/calendar"
	"realtycrm/pkg/config"
	"realtycrm/pkg/dispatch"
	"realtycrm/pkg/esign"
	"realtycrm/pkg/identity"
	"realtycrm/pkg/mailer"
	"realtycrm/pkg/persistence"
	"realtycrm/pkg/proto"
	"realtycrm/pkg/reporting"
	"realtycrm/pkg/utils"
	"realtycrm/pkg/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "create-user":
		err = runCreateUser(os.Args[2:])
	case "list-users":
		err = runListUsers(os.Args[2:])
	case "dispatch":
		err = runDispatch(os.Args[2:])
	case "version":
		fmt.Printf("crmctl %s (%s, built %s)\n", version.Version, version.Commit, version.Date)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`crmctl - realtycrm operator CLI

Usage:
  crmctl create-user -email <email> [-name <name>] [-config <path>]
  crmctl list-users [-config <path>]
  crmctl dispatch -target <agent> -action <action> [-data <json>] [-config <path>]
  crmctl version

create-user prompts for the password; it is never taken from argv.
dispatch runs a task against a locally wired agent set, useful for
debugging tool payloads without the HTTP server.
`)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("CRM_CONFIG_PATH")
	}
	if path == "" {
		path = "config/config.yaml"
	}
	return config.Load(path)
}

func openStore(cfg *config.Config) (*persistence.Store, func(), error) {
	db, err := persistence.InitializeDatabase(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	return persistence.NewStore(db), func() { db.Close() }, nil
}

func runCreateUser(args []string) error {
	flagSet := flag.NewFlagSet("create-user", flag.ExitOnError)
	email := flagSet.String("email", "", "Email address for the new account")
	name := flagSet.String("name", "", "Full name")
	configPath := flagSet.String("config", "", "Path to config file")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("-email is required")
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Print("Confirm password: ")
	confirm, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if string(password) != string(confirm) {
		return fmt.Errorf("passwords do not match")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := identity.NewService(store, cfg.Auth.SecretKey, cfg.Auth.TokenTTL)
	user, err := svc.SignUp(*email, string(password), *name)
	if err != nil {
		return err
	}
	fmt.Printf("Created user %s (%s)\n", user.Email, user.ID)
	return nil
}

func runListUsers(args []string) error {
	flagSet := flag.NewFlagSet("list-users", flag.ExitOnError)
	configPath := flagSet.String("config", "", "Path to config file")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	rows, err := store.DB().Query(`SELECT id, email, full_name, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, email, fullName, createdAt string
		if err := rows.Scan(&id, &email, &fullName, &createdAt); err != nil {
			return err
		}
		fmt.Printf("%s  %-32s %-24s %s\n", id, email, fullName, createdAt)
	}
	return rows.Err()
}

func runDispatch(args []string) error {
	flagSet := flag.NewFlagSet("dispatch", flag.ExitOnError)
	target := flagSet.String("target", "", "Target agent id")
	action := flagSet.String("action", "", "Action name")
	dataJSON := flagSet.String("data", "{}", "Task payload as JSON")
	configPath := flagSet.String("config", "", "Path to config file")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if *target == "" || *action == "" {
		return fmt.Errorf("-target and -action are required")
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(*dataJSON), &data); err != nil {
		return fmt.Errorf("invalid -data payload: %w", err)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	send := mailer.NewSMTPMailer(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})

	controller := dispatch.NewController(cfg.Queue.Size, nil, nil)
	controller.Attach(analytics.New(reporting.NewService(store), send))
	controller.Attach(scheduling.New(calendar.NewClient(cfg.Calendar.BaseURL, cfg.Calendar.CalendarID, cfg.Calendar.APIKey), send))
	controller.Attach(transaction.New(store, esign.NewClient(cfg.ESign.BaseURL, cfg.ESign.AccountID, cfg.ESign.APIKey), send))
	controller.Attach(lead.New(store, send))

	msg := proto.NewMessage("crmctl task", "crmctl-"+utils.NewID()[:8], *target, *action, data)
	reply := controller.ProcessMessage(context.Background(), msg)

	encoded, err := reply.ToJSON()
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	if reply.IsError() {
		os.Exit(1)
	}
	return nil
}
