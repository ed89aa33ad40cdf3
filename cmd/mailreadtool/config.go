package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/joho/godotenv"

	"mailreadtool/internal/common/security"
	"mailreadtool/internal/common/validation"
	"mailreadtool/internal/common/version"
	"mailreadtool/internal/mail"
)

// Config holds all application configuration merged from defaults,
// environment variables (including a .env file) and command-line flags.
type Config struct {
	ShowVersion bool

	// App registration credentials
	TenantID string // Azure AD tenant ID (GUID)
	ClientID string // Application (client) ID (GUID)
	Secret   string // Client secret
	PfxPath  string // Path to a .pfx certificate file (alternative to Secret)
	PfxPass  string // Password for the .pfx file

	// Query configuration
	Mailbox  string // Target mailbox address; empty targets /me
	Folder   string // Mail folder for listing (default inbox)
	Search   string // Search query; empty means plain listing
	SearchIn string // Search scope: subject, body, all
	Count    int    // Requested number of messages
	ListMode bool   // Explicit list mode (the default when no -search)
	FullBody bool   // Fetch full message bodies for search results

	// Output configuration
	Format string // text or json

	// Network configuration
	ProxyURL string
	RPS      float64 // Requests per second for body fetches; 0 disables pacing

	// Runtime configuration
	VerboseMode bool
	LogLevel    string
	EnvFile     string
}

// Environment variable names follow the app registration convention used by
// the companion automation scripts.
const (
	envTenantID = "TENANT_ID"
	envClientID = "CLIENT_ID"
	envSecret   = "CLIENT_SECRET"
	envMailbox  = "EMAIL_ADDRESS"
	envPfxPath  = "PFX_PATH"
	envPfxPass  = "PFX_PASSWORD"
)

// parseAndConfigureFlags defines all command-line flags, parses them, loads
// the .env file and applies environment variables for flags not given on the
// command line. Flags take precedence over the environment.
func parseAndConfigureFlags() *Config {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Microsoft Graph Mailbox Reader - Version %s\n\n", version.Get())
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(flag.CommandLine.Output(), "\nEnvironment Variables:\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  TENANT_ID, CLIENT_ID, CLIENT_SECRET, EMAIL_ADDRESS, PFX_PATH, PFX_PASSWORD\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  Values are also read from a .env file in the working directory\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  Command-line flags take precedence over environment variables\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Examples:\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  %s -list -count 20\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "  %s -search \"invoice\" -searchin subject -fullbody\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "  %s -search \"report\" -format json -mailbox user@example.com\n\n", os.Args[0])
	}

	showVersion := flag.Bool("version", false, "Show version information")

	tenantID := flag.String("tenantid", "", "The Azure tenant ID (env: TENANT_ID)")
	clientID := flag.String("clientid", "", "The application (client) ID (env: CLIENT_ID)")
	secret := flag.String("secret", "", "The client secret (env: CLIENT_SECRET)")
	pfxPath := flag.String("pfx", "", "Path to a .pfx certificate file (env: PFX_PATH)")
	pfxPass := flag.String("pfxpass", "", "Password for the .pfx file (env: PFX_PASSWORD)")
	mailbox := flag.String("mailbox", "", "Target mailbox address; defaults to the /me context (env: EMAIL_ADDRESS)")

	// Query flags, each with a single-letter alias
	var search, searchIn, format string
	var count int
	var listMode, fullBody bool
	flag.StringVar(&search, "search", "", "Search query; omit to list recent emails")
	flag.StringVar(&search, "s", "", "Shorthand for -search")
	flag.StringVar(&searchIn, "searchin", "all", "Search scope: subject, body, all")
	flag.StringVar(&searchIn, "i", "all", "Shorthand for -searchin")
	flag.IntVar(&count, "count", 10, "Number of emails to retrieve (1-50)")
	flag.IntVar(&count, "c", 10, "Shorthand for -count")
	flag.BoolVar(&listMode, "list", false, "List recent emails (the default action)")
	flag.BoolVar(&listMode, "l", false, "Shorthand for -list")
	flag.StringVar(&format, "format", "text", "Output format: text, json")
	flag.StringVar(&format, "f", "text", "Shorthand for -format")
	flag.BoolVar(&fullBody, "fullbody", false, "Fetch the full body of each search result")
	flag.BoolVar(&fullBody, "b", false, "Shorthand for -fullbody")

	folder := flag.String("folder", "inbox", "Mail folder to list")

	proxyURL := flag.String("proxy", "", "HTTP/HTTPS proxy URL (e.g., http://proxy.example.com:8080)")
	rps := flag.Float64("rps", 0, "Requests per second when fetching full bodies (0 = unpaced)")

	verbose := flag.Bool("verbose", false, "Enable verbose output (shows configuration, token details)")
	logLevel := flag.String("loglevel", "INFO", "Logging level: DEBUG, INFO, WARN, ERROR")
	envFile := flag.String("envfile", ".env", "Path to the .env file with credentials")

	flag.Parse()

	loadEnvFile(*envFile)

	// Apply environment variables for flags not set on the command line
	applyEnvVars(map[string]*string{
		envTenantID: tenantID,
		envClientID: clientID,
		envSecret:   secret,
		envMailbox:  mailbox,
		envPfxPath:  pfxPath,
		envPfxPass:  pfxPass,
	})

	config := &Config{
		ShowVersion: *showVersion,
		TenantID:    *tenantID,
		ClientID:    *clientID,
		Secret:      *secret,
		PfxPath:     *pfxPath,
		PfxPass:     *pfxPass,
		Mailbox:     *mailbox,
		Folder:      *folder,
		Search:      search,
		SearchIn:    searchIn,
		Count:       count,
		ListMode:    listMode,
		FullBody:    fullBody,
		Format:      format,
		ProxyURL:    *proxyURL,
		RPS:         *rps,
		VerboseMode: *verbose,
		LogLevel:    *logLevel,
		EnvFile:     *envFile,
	}

	if config.VerboseMode {
		printVerboseConfig(config)
	}

	return config
}

// loadEnvFile loads credentials from a .env file. A missing default file is
// fine; a missing explicitly requested file gets a warning.
func loadEnvFile(path string) {
	err := godotenv.Load(path)
	if err != nil && flagProvided("envfile") {
		fmt.Fprintf(os.Stderr, "Warning: could not load env file %s: %v\n", path, err)
	}
}

// flagProvided reports whether a flag was explicitly set on the command line.
func flagProvided(name string) bool {
	provided := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			provided = true
		}
	})
	return provided
}

// applyEnvVars fills flag values from environment variables when the
// corresponding flag was not given on the command line.
func applyEnvVars(envMap map[string]*string) {
	providedFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		providedFlags[f.Name] = true
	})

	envToFlag := map[string]string{
		envTenantID: "tenantid",
		envClientID: "clientid",
		envSecret:   "secret",
		envMailbox:  "mailbox",
		envPfxPath:  "pfx",
		envPfxPass:  "pfxpass",
	}

	for envName, flagPtr := range envMap {
		if providedFlags[envToFlag[envName]] {
			continue
		}
		if envValue := os.Getenv(envName); envValue != "" {
			*flagPtr = envValue
		}
	}
}

// validateConfiguration validates all required configuration fields.
func validateConfiguration(config *Config) error {
	if config.TenantID == "" || config.ClientID == "" {
		return fmt.Errorf("missing required credentials: set TENANT_ID and CLIENT_ID (or use -tenantid and -clientid)")
	}
	if err := validation.ValidateGUID(config.TenantID, "Tenant ID"); err != nil {
		return err
	}
	if err := validation.ValidateGUID(config.ClientID, "Client ID"); err != nil {
		return err
	}

	if config.Secret == "" && config.PfxPath == "" {
		return fmt.Errorf("missing authentication: set CLIENT_SECRET or PFX_PATH (or use -secret or -pfx)")
	}
	if config.Secret != "" && config.PfxPath != "" {
		return fmt.Errorf("multiple authentication methods provided: use only one of -secret or -pfx")
	}
	if config.PfxPath != "" {
		if err := validation.ValidateFilePath(config.PfxPath, "PFX certificate file"); err != nil {
			return err
		}
	}

	if config.Mailbox != "" {
		if err := validation.ValidateEmail(config.Mailbox); err != nil {
			return fmt.Errorf("invalid mailbox: %w", err)
		}
	}

	if _, err := mail.ParseScope(config.SearchIn); err != nil {
		return err
	}

	if config.Format != "text" && config.Format != "json" {
		return fmt.Errorf("invalid output format: %s (use: text, json)", config.Format)
	}

	if err := validation.ValidateProxyURL(config.ProxyURL); err != nil {
		return err
	}

	if config.RPS < 0 {
		return fmt.Errorf("invalid rate limit: %g (must be 0 or positive)", config.RPS)
	}

	return nil
}

// determineAction names the operation for audit logging.
func determineAction(config *Config) string {
	if config.Search != "" {
		return "search"
	}
	return "list"
}

// mailboxDisplay names the target mailbox for output and audit rows.
func mailboxDisplay(config *Config) string {
	if config.Mailbox == "" {
		return "me"
	}
	return config.Mailbox
}

// printVerboseConfig prints the effective configuration with credentials
// masked.
func printVerboseConfig(config *Config) {
	fmt.Println("========================================")
	fmt.Println("VERBOSE MODE ENABLED")
	fmt.Println("========================================")
	fmt.Println()

	fmt.Println("Environment Variables:")
	fmt.Println("----------------------")
	envVars := getEnvVariables()
	if len(envVars) == 0 {
		fmt.Println("  (none of the recognized variables are set)")
	} else {
		keys := make([]string, 0, len(envVars))
		for k := range envVars {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			value := envVars[key]
			switch key {
			case envSecret, envPfxPass:
				value = security.MaskSecret(value)
			case envTenantID, envClientID:
				value = security.MaskGUID(value)
			case envMailbox:
				value = security.MaskEmail(value)
			}
			fmt.Printf("  %s = %s\n", key, value)
		}
	}
	fmt.Println()

	fmt.Println("Final Configuration (after env vars + flags):")
	fmt.Println("----------------------------------------------")
	fmt.Printf("Version: %s\n", version.Get())
	fmt.Printf("Tenant ID: %s\n", security.MaskGUID(config.TenantID))
	fmt.Printf("Client ID: %s\n", security.MaskGUID(config.ClientID))
	fmt.Printf("Mailbox: %s\n", mailboxDisplay(config))
	fmt.Printf("Action: %s\n", determineAction(config))
	fmt.Printf("Output Format: %s\n", config.Format)

	fmt.Println()
	fmt.Println("Authentication:")
	if config.Secret != "" {
		fmt.Println("  Method: Client Secret")
		fmt.Printf("  Secret: %s (length: %d)\n", security.MaskSecret(config.Secret), len(config.Secret))
	} else if config.PfxPath != "" {
		fmt.Println("  Method: PFX Certificate")
		fmt.Printf("  PFX Path: %s\n", config.PfxPath)
		fmt.Printf("  PFX Password: %s (provided)\n", security.MaskPassword(config.PfxPass))
	}

	if config.ProxyURL != "" {
		fmt.Println()
		fmt.Println("Network Configuration:")
		fmt.Printf("  Proxy: %s\n", config.ProxyURL)
	}

	fmt.Println()
	fmt.Println("Action Parameters:")
	if config.Search != "" {
		fmt.Printf("  Query: %s\n", config.Search)
		fmt.Printf("  Scope: %s\n", config.SearchIn)
		fmt.Printf("  Full Body: %t\n", config.FullBody)
	} else {
		fmt.Printf("  Folder: %s\n", config.Folder)
	}
	fmt.Printf("  Count: %d (effective: %d)\n", config.Count, mail.ClampPageSize(config.Count))
	if config.RPS > 0 {
		fmt.Printf("  Rate Limit: %g rps\n", config.RPS)
	}

	fmt.Println()
	fmt.Println("========================================")
	fmt.Println()
}

// getEnvVariables collects the recognized environment variables that are set.
func getEnvVariables() map[string]string {
	envVars := make(map[string]string)
	for _, envVar := range []string{envTenantID, envClientID, envSecret, envMailbox, envPfxPath, envPfxPass} {
		if value := os.Getenv(envVar); value != "" {
			envVars[envVar] = value
		}
	}
	return envVars
}
