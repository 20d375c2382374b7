package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	invoicingclient "github.com/ledgerline/go-invoicing-client"
	"github.com/ledgerline/go-invoicing-client/internal/config"
	"github.com/ledgerline/go-invoicing-client/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	c := config.New()
	displayAppname(c.GetAppName())

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	client, err := invoicingclient.New(invoicingclient.WithLogger(logger))
	if err != nil {
		return errors.Wrap(err, "building client")
	}

	expired, cancel := client.Sessions.Subscribe()
	defer cancel()
	go func() {
		for range expired {
			logger.Warn().Msg("session expired, please log in again")
		}
	}()

	ctx, cancelCtx := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelCtx()

	if *email == "" || *password == "" {
		return errors.New("both -email and -password are required")
	}

	record, err := client.Sessions.Login(ctx, session.LoginParams{
		Email:    *email,
		Password: *password,
	})
	if err != nil {
		return errors.Wrap(err, "login")
	}
	logger.Info().
		Str("user", record.Email).
		Str("business", record.BusinessName).
		Msg("logged in")

	invoices, err := client.Invoicing.List(ctx)
	if err != nil {
		return errors.Wrap(err, "listing invoices")
	}
	for _, inv := range invoices {
		fmt.Printf("%-12s %-10s due %s  total %d\n", inv.Number, inv.Status, inv.DueDate, inv.Total)
	}
	logger.Info().Int("count", len(invoices)).Msg("invoices listed")

	client.Sessions.Logout(ctx)
	logger.Info().Msg("logged out")
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
