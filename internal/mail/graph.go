package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"
	"github.com/microsoftgraph/msgraph-sdk-go/users"

	"mailreadtool/internal/common/logger"
)

// Client is the mailbox access boundary. GraphClient implements it against
// Microsoft Graph; tests substitute fakes.
type Client interface {
	// ListMessages runs a list or search query and returns summaries.
	ListMessages(ctx context.Context, req QueryRequest) ([]Email, error)
	// GetMessage reads a single message with its full body.
	GetMessage(ctx context.Context, mailbox, id string) (*Email, error)
}

// GraphClient adapts the Microsoft Graph SDK to the Client interface.
type GraphClient struct {
	client *msgraphsdk.GraphServiceClient
	logger *slog.Logger
}

// NewGraphClient wraps an authenticated Graph SDK client.
func NewGraphClient(client *msgraphsdk.GraphServiceClient, slogger *slog.Logger) *GraphClient {
	return &GraphClient{client: client, logger: slogger}
}

// userBuilder resolves the target mailbox: an explicit user principal name
// (or object id), or the /me singleton when empty.
func (g *GraphClient) userBuilder(mailbox string) *users.UserItemRequestBuilder {
	if mailbox == "" {
		return g.client.Me()
	}
	return g.client.Users().ByUserId(mailbox)
}

// ListMessages executes the query against /messages, or against
// /mailFolders/{folder}/messages when a folder is set.
func (g *GraphClient) ListMessages(ctx context.Context, req QueryRequest) ([]Email, error) {
	top := req.Top
	builder := g.userBuilder(req.Mailbox)

	var (
		result models.MessageCollectionResponseable
		err    error
	)

	if req.Folder != "" {
		logger.LogDebug(g.logger, "Calling Graph API",
			"endpoint", fmt.Sprintf("mailFolders/%s/messages", req.Folder), "top", top)
		config := &users.ItemMailFoldersItemMessagesRequestBuilderGetRequestConfiguration{
			QueryParameters: &users.ItemMailFoldersItemMessagesRequestBuilderGetQueryParameters{
				Top:     &top,
				Select:  req.Select,
				Orderby: req.OrderBy,
			},
		}
		result, err = builder.MailFolders().ByMailFolderId(req.Folder).Messages().Get(ctx, config)
	} else {
		logger.LogDebug(g.logger, "Calling Graph API",
			"endpoint", "messages", "top", top, "filter", req.Filter, "search", req.Search)
		queryParams := &users.ItemMessagesRequestBuilderGetQueryParameters{
			Top:     &top,
			Select:  req.Select,
			Orderby: req.OrderBy,
		}
		if req.Filter != "" {
			filter := req.Filter
			queryParams.Filter = &filter
		}
		if req.Search != "" {
			search := req.Search
			queryParams.Search = &search
		}
		config := &users.ItemMessagesRequestBuilderGetRequestConfiguration{
			QueryParameters: queryParams,
		}
		result, err = builder.Messages().Get(ctx, config)
	}

	if err != nil {
		return nil, g.wrapError(err, "list messages")
	}

	messages := result.GetValue()
	emails := make([]Email, 0, len(messages))
	for _, m := range messages {
		emails = append(emails, fromMessageable(m))
	}

	logger.LogDebug(g.logger, "Graph API response received", "messages", len(emails))
	return emails, nil
}

// GetMessage reads one message by id including its body.
func (g *GraphClient) GetMessage(ctx context.Context, mailbox, id string) (*Email, error) {
	config := &users.ItemMessagesMessageItemRequestBuilderGetRequestConfiguration{
		QueryParameters: &users.ItemMessagesMessageItemRequestBuilderGetQueryParameters{
			Select: DetailSelect(),
		},
	}

	msg, err := g.userBuilder(mailbox).Messages().ByMessageId(id).Get(ctx, config)
	if err != nil {
		return nil, g.wrapError(err, "get message")
	}

	email := fromMessageable(msg)
	return &email, nil
}

// wrapError enriches Graph API errors with the OData error code and message,
// and flags expired tokens on 401 responses.
func (g *GraphClient) wrapError(err error, operation string) error {
	var odataErr *odataerrors.ODataError
	if !errors.As(err, &odataErr) {
		return fmt.Errorf("%s failed: %w", operation, err)
	}

	code := ""
	message := ""
	if info := odataErr.GetErrorEscaped(); info != nil {
		if info.GetCode() != nil {
			code = *info.GetCode()
		}
		if info.GetMessage() != nil {
			message = *info.GetMessage()
		}
	}

	if odataErr.ResponseStatusCode == 401 {
		return fmt.Errorf("%s failed with status 401, token may have expired (code: %s): %w", operation, code, err)
	}

	if code == "TooManyRequests" || code == "activityLimitReached" {
		logger.LogWarn(g.logger, "Graph API rate limit exceeded", "operation", operation, "code", code)
		retryAfter := ""
		if odataErr.GetResponseHeaders() != nil {
			if headers := odataErr.GetResponseHeaders().Get("Retry-After"); len(headers) > 0 {
				retryAfter = headers[0]
			}
		}
		if retryAfter != "" {
			return fmt.Errorf("%s failed: rate limit exceeded (retry after %s seconds): %w", operation, retryAfter, err)
		}
		return fmt.Errorf("%s failed: rate limit exceeded: %w", operation, err)
	}

	if code != "" {
		logger.LogDebug(g.logger, "Graph API error", "operation", operation, "code", code, "message", message)
		return fmt.Errorf("%s failed (code: %s): %s: %w", operation, code, message, err)
	}

	return fmt.Errorf("%s failed: %w", operation, err)
}
