package mail

import (
	"context"
	"log/slog"
	"strings"

	"mailreadtool/internal/common/logger"
	"mailreadtool/internal/common/ratelimit"
)

// Options controls result post-processing for one search run.
type Options struct {
	Scope       SearchScope
	Query       string
	Mailbox     string
	IncludeBody bool
}

// Processor refines raw search results: body-scope filtering and optional
// per-message body enrichment. Enrichment runs sequentially and is paced by
// the limiter when one is enabled.
type Processor struct {
	Client  Client
	Limiter *ratelimit.Limiter
	Logger  *slog.Logger
}

// Process applies the body-scope preview filter and, when requested, fetches
// the full body for each remaining result. A message whose detail read fails
// keeps its summary form; input order is preserved throughout.
func (p *Processor) Process(ctx context.Context, emails []Email, opts Options) []Email {
	if opts.Scope == ScopeBody {
		emails = FilterByPreview(emails, opts.Query)
	}

	if !opts.IncludeBody {
		return emails
	}

	enriched := make([]Email, 0, len(emails))
	for _, email := range emails {
		enriched = append(enriched, p.enrich(ctx, email, opts.Mailbox))
	}
	return enriched
}

// FilterByPreview keeps emails whose body preview contains the query,
// case-insensitively. Messages whose match sits beyond the preview excerpt
// are dropped here even though the server matched them; the preview is all
// the summary carries.
func FilterByPreview(emails []Email, query string) []Email {
	needle := strings.ToLower(query)
	filtered := make([]Email, 0, len(emails))
	for _, email := range emails {
		if strings.Contains(strings.ToLower(email.BodyPreview), needle) {
			filtered = append(filtered, email)
		}
	}
	return filtered
}

func (p *Processor) enrich(ctx context.Context, email Email, mailbox string) Email {
	if email.ID == "" {
		logger.LogWarn(p.Logger, "Cannot fetch body for message without id", "subject", email.Subject)
		return email
	}

	if p.Limiter != nil && p.Limiter.Enabled() {
		if err := p.Limiter.Wait(ctx); err != nil {
			logger.LogWarn(p.Logger, "Rate limiter wait interrupted, keeping summary", "id", email.ID, "error", err)
			return email
		}
	}

	detail, err := p.Client.GetMessage(ctx, mailbox, email.ID)
	if err != nil {
		logger.LogWarn(p.Logger, "Could not fetch full body, keeping summary", "id", email.ID, "error", err)
		return email
	}
	return *detail
}
