package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"mailreadtool/internal/common/logger"
	"mailreadtool/internal/common/ratelimit"
	"mailreadtool/internal/mail"
)

const statusSuccess = "Success"

// rowLogger is the shared surface of the CSV and JSONL audit loggers. Headers
// are written when the logger is opened, so handlers only append rows.
type rowLogger interface {
	WriteRow(values []string) error
	Close() error
}

var (
	listColumns   = []string{"Action", "Status", "Mailbox", "Folder", "Subject", "From", "Received"}
	searchColumns = []string{"Action", "Status", "Mailbox", "Query", "Scope", "Subject", "From", "Received"}
)

// executeAction dispatches to the configured operation. A non-empty search
// query selects search, otherwise the recent emails of a folder are listed.
// A failed mailbox request is reported and rendered as an empty result; only
// configuration and authentication problems terminate with a non-zero exit.
func executeAction(ctx context.Context, client mail.Client, config *Config, slogger *slog.Logger, audit rowLogger) error {
	if config.Search != "" {
		return searchEmails(ctx, client, config, slogger, audit)
	}
	return listEmails(ctx, client, config, slogger, audit)
}

// listEmails retrieves the most recent emails from the configured folder,
// newest first.
func listEmails(ctx context.Context, client mail.Client, config *Config, slogger *slog.Logger, audit rowLogger) error {
	effectiveCount := mail.ClampPageSize(config.Count)
	logger.LogInfo(slogger, "Listing emails",
		"mailbox", mailboxDisplay(config),
		"folder", config.Folder,
		"count", effectiveCount)

	if config.Format == "text" {
		fmt.Printf("Fetching %d recent emails from %s...\n", effectiveCount, config.Folder)
	}

	req := mail.BuildListRequest(config.Count, config.Folder)
	req.Mailbox = config.Mailbox

	emails, err := client.ListMessages(ctx, req)
	if err != nil {
		logger.LogError(slogger, "List request failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return renderEmails(nil, config, "No emails found.", "Found %d email(s):")
	}

	if err := writeListRows(audit, config, emails); err != nil {
		logger.LogWarn(slogger, "Could not write audit rows", "error", err)
	}

	return renderEmails(emails, config, "No emails found.", "Found %d email(s):")
}

// searchEmails searches the whole mailbox and post-processes the results
// according to the configured scope.
func searchEmails(ctx context.Context, client mail.Client, config *Config, slogger *slog.Logger, audit rowLogger) error {
	scope, err := mail.ParseScope(config.SearchIn)
	if err != nil {
		return err
	}

	logger.LogInfo(slogger, "Searching emails",
		"mailbox", mailboxDisplay(config),
		"query", config.Search,
		"scope", string(scope),
		"full_body", config.FullBody)

	if config.Format == "text" {
		fmt.Printf("Searching for '%s' in %s...\n", config.Search, scope)
	}

	req := mail.BuildSearchRequest(config.Search, config.Count, scope)
	req.Mailbox = config.Mailbox

	emails, err := client.ListMessages(ctx, req)
	if err != nil {
		logger.LogError(slogger, "Search request failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return renderEmails(nil, config, "No matching emails found.", "Found %d matching email(s):")
	}

	limiter := ratelimit.New(config.RPS)
	if limiter.Enabled() {
		logger.LogDebug(slogger, "Pacing body fetches", "rate", limiter.String())
	}

	proc := &mail.Processor{
		Client:  client,
		Limiter: limiter,
		Logger:  slogger,
	}
	emails = proc.Process(ctx, emails, mail.Options{
		Scope:       scope,
		Query:       config.Search,
		Mailbox:     config.Mailbox,
		IncludeBody: config.FullBody,
	})

	if err := writeSearchRows(audit, config, scope, emails); err != nil {
		logger.LogWarn(slogger, "Could not write audit rows", "error", err)
	}

	return renderEmails(emails, config, "No matching emails found.", "Found %d matching email(s):")
}

// renderEmails prints the result set in the configured output format. JSON
// goes to stdout as the sole stdout output, including "[]" for no results.
func renderEmails(emails []mail.Email, config *Config, emptyMsg, foundMsg string) error {
	if config.Format == "json" {
		return mail.WriteJSON(os.Stdout, emails)
	}

	if len(emails) == 0 {
		fmt.Println(emptyMsg)
		return nil
	}

	fmt.Printf("\n"+foundMsg+"\n", len(emails))
	for _, e := range emails {
		fmt.Print(mail.FormatEmail(e))
	}
	return nil
}

func writeListRows(audit rowLogger, config *Config, emails []mail.Email) error {
	if audit == nil {
		return nil
	}
	for _, e := range emails {
		row := []string{
			"list",
			statusSuccess,
			mailboxDisplay(config),
			config.Folder,
			e.Subject,
			e.From.Address,
			e.ReceivedAt.UTC().Format(time.RFC3339),
		}
		if err := audit.WriteRow(row); err != nil {
			return err
		}
	}
	return audit.WriteRow([]string{
		"list",
		"SUMMARY",
		mailboxDisplay(config),
		config.Folder,
		fmt.Sprintf("Total: %d email(s)", len(emails)),
		"",
		time.Now().UTC().Format(time.RFC3339),
	})
}

func writeSearchRows(audit rowLogger, config *Config, scope mail.SearchScope, emails []mail.Email) error {
	if audit == nil {
		return nil
	}
	for _, e := range emails {
		row := []string{
			"search",
			statusSuccess,
			mailboxDisplay(config),
			config.Search,
			string(scope),
			e.Subject,
			e.From.Address,
			e.ReceivedAt.UTC().Format(time.RFC3339),
		}
		if err := audit.WriteRow(row); err != nil {
			return err
		}
	}
	return audit.WriteRow([]string{
		"search",
		"SUMMARY",
		mailboxDisplay(config),
		config.Search,
		string(scope),
		"Matches: " + strconv.Itoa(len(emails)),
		"",
		time.Now().UTC().Format(time.RFC3339),
	})
}
