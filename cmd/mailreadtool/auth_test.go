package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

// fakeCredential implements azcore.TokenCredential for testing.
type fakeCredential struct {
	getToken func(ctx context.Context, options policy.TokenRequestOptions) (azcore.AccessToken, error)
}

func (f *fakeCredential) GetToken(ctx context.Context, options policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return f.getToken(ctx, options)
}

func TestParseAADError(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
		wantDesc string
		wantErr  bool
	}{
		{
			name:     "invalid client secret",
			body:     `{"error":"invalid_client","error_description":"AADSTS7000215: Invalid client secret provided."}`,
			wantCode: "invalid_client",
			wantDesc: "AADSTS7000215: Invalid client secret provided.",
		},
		{
			name:     "unauthorized client",
			body:     `{"error":"unauthorized_client","error_description":"AADSTS700016: Application not found in the directory."}`,
			wantCode: "unauthorized_client",
			wantDesc: "AADSTS700016: Application not found in the directory.",
		},
		{
			name:     "code without description",
			body:     `{"error":"invalid_request"}`,
			wantCode: "invalid_request",
			wantDesc: "",
		},
		{
			name:    "not json",
			body:    "Bad Gateway",
			wantErr: true,
		},
		{
			name:    "json without error code",
			body:    `{"message":"something else"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, desc, err := parseAADError([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Errorf("parseAADError() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if code != tt.wantCode {
				t.Errorf("parseAADError() code = %q, want %q", code, tt.wantCode)
			}
			if desc != tt.wantDesc {
				t.Errorf("parseAADError() description = %q, want %q", desc, tt.wantDesc)
			}
		})
	}
}

func TestDescribeAuthError_PlainError(t *testing.T) {
	err := errors.New("connection refused")
	if got := describeAuthError(err); got != "connection refused" {
		t.Errorf("describeAuthError() = %q, want %q", got, "connection refused")
	}
}

func TestAuthenticate(t *testing.T) {
	t.Run("success requests graph scope", func(t *testing.T) {
		var gotScopes []string
		cred := &fakeCredential{
			getToken: func(ctx context.Context, options policy.TokenRequestOptions) (azcore.AccessToken, error) {
				gotScopes = options.Scopes
				return azcore.AccessToken{
					Token:     "dummy-token",
					ExpiresOn: time.Now().Add(time.Hour),
				}, nil
			},
		}

		err := authenticate(context.Background(), cred, &Config{}, nil)
		if err != nil {
			t.Fatalf("authenticate() error = %v", err)
		}
		if len(gotScopes) != 1 || gotScopes[0] != graphScope {
			t.Errorf("authenticate() requested scopes %v, want [%s]", gotScopes, graphScope)
		}
	})

	t.Run("token request failure", func(t *testing.T) {
		cred := &fakeCredential{
			getToken: func(ctx context.Context, options policy.TokenRequestOptions) (azcore.AccessToken, error) {
				return azcore.AccessToken{}, errors.New("invalid_client")
			},
		}

		err := authenticate(context.Background(), cred, &Config{}, nil)
		if err == nil {
			t.Fatal("authenticate() should fail when the token request fails")
		}
		if !strings.Contains(err.Error(), "authentication failed") {
			t.Errorf("authenticate() error = %q, want it to mention authentication failure", err.Error())
		}
		if !strings.Contains(err.Error(), "invalid_client") {
			t.Errorf("authenticate() error = %q, should include the underlying cause", err.Error())
		}
	})
}

// buildUnsignedJWT assembles a JWT with the given claims and an empty
// signature, enough for unverified claim parsing.
func buildUnsignedJWT(t *testing.T, claims map[string]interface{}) string {
	t.Helper()

	header := map[string]string{"alg": "none", "typ": "JWT"}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("Failed to marshal header: %v", err)
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("Failed to marshal claims: %v", err)
	}

	enc := base64.RawURLEncoding
	return enc.EncodeToString(headerJSON) + "." + enc.EncodeToString(claimsJSON) + "."
}

func TestParseTokenClaims(t *testing.T) {
	t.Run("app claims", func(t *testing.T) {
		token := buildUnsignedJWT(t, map[string]interface{}{
			"app_displayname": "Mailbox Reader",
			"roles":           []string{"Mail.Read", "Mail.ReadBasic.All"},
		})

		claims, err := parseTokenClaims(token)
		if err != nil {
			t.Fatalf("parseTokenClaims() error = %v", err)
		}
		if claims.AppDisplayName != "Mailbox Reader" {
			t.Errorf("AppDisplayName = %q, want %q", claims.AppDisplayName, "Mailbox Reader")
		}
		if len(claims.Roles) != 2 || claims.Roles[0] != "Mail.Read" {
			t.Errorf("Roles = %v, want [Mail.Read Mail.ReadBasic.All]", claims.Roles)
		}
	})

	t.Run("not a jwt", func(t *testing.T) {
		if _, err := parseTokenClaims("not-a-token"); err == nil {
			t.Error("parseTokenClaims() should fail for a malformed token")
		}
	})
}
