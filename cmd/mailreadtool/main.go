// Command mailreadtool reads mailbox contents through the Microsoft Graph
// API using app-only (client credentials) authentication. It lists the most
// recent emails of a folder or searches the whole mailbox, and prints the
// results as text or JSON.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"

	"mailreadtool/internal/common/logger"
	"mailreadtool/internal/common/version"
	"mailreadtool/internal/mail"
)

const toolName = "mailreadtool"

func main() {
	if err := run(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	config := parseAndConfigureFlags()

	if config.ShowVersion {
		fmt.Printf("%s version %s\n", toolName, version.Get())
		return nil
	}

	if err := validateConfiguration(config); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n\n", err)
		flag.Usage()
		os.Exit(1)
	}

	slogger := logger.SetupLogger(config.VerboseMode, config.LogLevel)

	configureProxy(config)

	cred, err := getCredential(config, slogger)
	if err != nil {
		return err
	}
	if err := authenticate(ctx, cred, config, slogger); err != nil {
		return err
	}
	if config.Format == "text" {
		fmt.Println("✓ Authentication successful")
	}

	graphClient, err := msgraphsdk.NewGraphServiceClientWithCredentials(cred, []string{graphScope})
	if err != nil {
		return fmt.Errorf("failed to create Graph client: %w", err)
	}
	client := mail.NewGraphClient(graphClient, slogger)

	audit, err := openAuditLogger(config)
	if err != nil {
		logger.LogWarn(slogger, "Audit logging disabled", "error", err)
		audit = nil
	}
	if audit != nil {
		defer audit.Close()
	}

	return executeAction(ctx, client, config, slogger, audit)
}

// setupSignalHandling cancels the context on SIGINT or SIGTERM so in-flight
// Graph requests are abandoned cleanly.
func setupSignalHandling(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "\nReceived signal %v, shutting down...\n", sig)
		cancel()
	}()
}

// configureProxy exports the proxy URL for the SDK's HTTP transport.
func configureProxy(config *Config) {
	if config.ProxyURL == "" {
		return
	}
	os.Setenv("HTTP_PROXY", config.ProxyURL)
	os.Setenv("HTTPS_PROXY", config.ProxyURL)
	logger.LogVerbose(config.VerboseMode, "Using proxy: %s", config.ProxyURL)
}

// openAuditLogger opens the per-day audit log: JSON Lines when the output
// format is json, CSV otherwise. The header is written here so handlers only
// append rows.
func openAuditLogger(config *Config) (rowLogger, error) {
	action := determineAction(config)
	columns := listColumns
	if action == "search" {
		columns = searchColumns
	}

	if config.Format == "json" {
		jsonLog, err := logger.NewJSONLogger(toolName, action)
		if err != nil {
			return nil, err
		}
		// Column names travel inline in every JSONL row
		if err := jsonLog.WriteHeader(columns); err != nil {
			jsonLog.Close()
			return nil, err
		}
		return jsonLog, nil
	}

	csvLog, err := logger.NewCSVLogger(toolName, action)
	if err != nil {
		return nil, err
	}
	needHeader, err := csvLog.ShouldWriteHeader()
	if err != nil {
		csvLog.Close()
		return nil, err
	}
	if needHeader {
		if err := csvLog.WriteHeader(columns); err != nil {
			csvLog.Close()
			return nil, err
		}
	}
	return csvLog, nil
}
