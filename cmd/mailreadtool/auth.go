package main

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/golang-jwt/jwt/v5"
	"software.sslmate.com/src/go-pkcs12"

	"mailreadtool/internal/common/logger"
	"mailreadtool/internal/common/security"
)

// graphScope is the default scope for app-only Microsoft Graph access.
const graphScope = "https://graph.microsoft.com/.default"

// TokenClaims represents the claims shown in verbose token output.
type TokenClaims struct {
	AppDisplayName string   `json:"app_displayname"`
	Roles          []string `json:"roles"`
	jwt.RegisteredClaims
}

// aadError is the JSON error body returned by the Azure AD token endpoint.
type aadError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// getCredential builds a token credential from the configured authentication
// method: client secret or PFX certificate.
func getCredential(config *Config, slogger *slog.Logger) (azcore.TokenCredential, error) {
	if config.Secret != "" {
		logger.LogDebug(slogger, "Using client secret authentication",
			"client_id", security.MaskGUID(config.ClientID))
		cred, err := azidentity.NewClientSecretCredential(config.TenantID, config.ClientID, config.Secret, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create client secret credential: %w", err)
		}
		return cred, nil
	}
	return createCertCredential(config, slogger)
}

// createCertCredential loads a PFX file and builds a certificate credential.
// SendCertificateChain is enabled for subject name / issuer authentication.
func createCertCredential(config *Config, slogger *slog.Logger) (azcore.TokenCredential, error) {
	logger.LogDebug(slogger, "Using certificate authentication", "pfx_path", config.PfxPath)

	pfxData, err := os.ReadFile(config.PfxPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PFX file %s: %w", config.PfxPath, err)
	}

	privateKey, cert, caCerts, err := pkcs12.DecodeChain(pfxData, config.PfxPass)
	if err != nil {
		return nil, fmt.Errorf("failed to decode PFX file: %w", err)
	}

	certs := []*x509.Certificate{cert}
	certs = append(certs, caCerts...)

	cred, err := azidentity.NewClientCertificateCredential(
		config.TenantID,
		config.ClientID,
		certs,
		privateKey,
		&azidentity.ClientCertificateCredentialOptions{
			SendCertificateChain: true,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate credential: %w", err)
	}
	return cred, nil
}

// authenticate requests a Graph token before any API call is made, so that
// credential problems surface immediately with a clear diagnostic.
func authenticate(ctx context.Context, cred azcore.TokenCredential, config *Config, slogger *slog.Logger) error {
	logger.LogDebug(slogger, "Requesting access token", "scope", graphScope)

	token, err := cred.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{graphScope},
	})
	if err != nil {
		return fmt.Errorf("authentication failed: %s", describeAuthError(err))
	}

	logger.LogDebug(slogger, "Access token acquired", "expires_on", token.ExpiresOn.Format(time.RFC3339))
	if config.VerboseMode {
		printTokenInfo(token)
	}
	return nil
}

// describeAuthError extracts the AAD error code and description from a failed
// token request when available, so users see "invalid_client: ..." instead of
// a bare HTTP status.
func describeAuthError(err error) string {
	var authErr *azidentity.AuthenticationFailedError
	if !errors.As(err, &authErr) || authErr.RawResponse == nil {
		return err.Error()
	}

	body, payloadErr := runtime.Payload(authErr.RawResponse)
	if payloadErr != nil {
		return err.Error()
	}

	code, desc, parseErr := parseAADError(body)
	if parseErr != nil {
		return err.Error()
	}
	return fmt.Sprintf("%s: %s", code, desc)
}

// parseAADError parses an Azure AD token endpoint error body.
func parseAADError(body []byte) (code, description string, err error) {
	var parsed aadError
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", "", fmt.Errorf("failed to parse error response: %w", err)
	}
	if parsed.Error == "" {
		return "", "", fmt.Errorf("error response has no error code")
	}
	return parsed.Error, parsed.ErrorDescription, nil
}

// printTokenInfo displays token metadata and selected claims in verbose mode.
// The signature is not verified; this is display only.
func printTokenInfo(token azcore.AccessToken) {
	fmt.Fprintln(os.Stderr, "Token Information:")
	fmt.Fprintln(os.Stderr, "------------------")
	fmt.Fprintf(os.Stderr, "  Token: %s\n", security.MaskAccessToken(token.Token))
	fmt.Fprintf(os.Stderr, "  Expires: %s\n", token.ExpiresOn.Format(time.RFC3339))

	claims, err := parseTokenClaims(token.Token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  (could not parse token claims: %v)\n", err)
		fmt.Fprintln(os.Stderr)
		return
	}

	if claims.AppDisplayName != "" {
		fmt.Fprintf(os.Stderr, "  App: %s\n", claims.AppDisplayName)
	}
	if len(claims.Roles) > 0 {
		fmt.Fprintln(os.Stderr, "  Roles:")
		for _, role := range claims.Roles {
			fmt.Fprintf(os.Stderr, "    - %s\n", role)
		}
	}
	fmt.Fprintln(os.Stderr)
}

// parseTokenClaims decodes the claims of a JWT without verifying it.
func parseTokenClaims(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	parser := jwt.NewParser()
	_, _, err := parser.ParseUnverified(tokenString, claims)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return claims, nil
}
