package mail

import (
	"fmt"
)

// SearchScope selects which part of a message a search query applies to.
type SearchScope string

const (
	ScopeSubject SearchScope = "subject"
	ScopeBody    SearchScope = "body"
	ScopeAll     SearchScope = "all"
)

// ParseScope validates a scope string from the CLI.
func ParseScope(s string) (SearchScope, error) {
	switch SearchScope(s) {
	case ScopeSubject, ScopeBody, ScopeAll:
		return SearchScope(s), nil
	}
	return "", fmt.Errorf("invalid search scope: %s (use: subject, body, all)", s)
}

// Page size bounds enforced on every mailbox query.
const (
	MinPageSize = 1
	MaxPageSize = 50
)

// DefaultFolder is queried when no folder is given on a list request.
const DefaultFolder = "inbox"

// QueryRequest describes one mailbox query. Exactly one of Filter and Search
// may be set; both empty means a plain listing.
type QueryRequest struct {
	Mailbox string // empty targets the /me context
	Folder  string // empty targets the whole mailbox
	Top     int32
	Select  []string
	Filter  string   // OData $filter expression
	Search  string   // quoted $search expression
	OrderBy []string // $orderby clauses; unsupported alongside $search
}

// ListSelect returns the fields fetched for a plain listing.
func ListSelect() []string {
	return []string{"id", "subject", "from", "receivedDateTime", "bodyPreview", "isRead", "hasAttachments"}
}

// SearchSelect returns the fields fetched for a search, which additionally
// needs recipients for display and the id for body enrichment.
func SearchSelect() []string {
	return []string{"id", "subject", "from", "toRecipients", "receivedDateTime", "bodyPreview", "isRead", "hasAttachments"}
}

// DetailSelect returns the fields fetched when reading a single message.
// It is a superset of SearchSelect so an enriched result keeps every
// summary field plus the full body.
func DetailSelect() []string {
	return append(SearchSelect(), "body")
}

// ClampPageSize bounds a requested page size to [MinPageSize, MaxPageSize].
func ClampPageSize(n int) int {
	if n < MinPageSize {
		return MinPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// BuildListRequest builds a query for the newest messages in a folder,
// most recent first. An empty folder falls back to the inbox.
func BuildListRequest(pageSize int, folder string) QueryRequest {
	if folder == "" {
		folder = DefaultFolder
	}
	return QueryRequest{
		Folder:  folder,
		Top:     int32(ClampPageSize(pageSize)),
		Select:  ListSelect(),
		OrderBy: []string{"receivedDateTime DESC"},
	}
}

// BuildSearchRequest builds a query matching messages against the given
// text. Subject scope uses a server-side contains filter; body and all
// scopes use Graph full-text $search, which rejects $orderby, so search
// results arrive in relevance order. The query text is passed through
// verbatim.
func BuildSearchRequest(query string, pageSize int, scope SearchScope) QueryRequest {
	req := QueryRequest{
		Top:    int32(ClampPageSize(pageSize)),
		Select: SearchSelect(),
	}

	if scope == ScopeSubject {
		req.Filter = fmt.Sprintf("contains(subject,'%s')", query)
		return req
	}

	req.Search = "\"" + query + "\""
	return req
}
