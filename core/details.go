package core

// SourceDetails is the closed set of typed, source-specific document
// attributes. The concrete type is selected by the metadata's SourceType.
type SourceDetails interface {
	// SourceType reports which source kind the details belong to.
	SourceType() SourceType

	// Fields flattens the details into plain key/value pairs.
	Fields() map[string]any

	sealed()
}

// SlackMessage describes a chat message.
type SlackMessage struct {
	ChannelID string
	UserID    string
	ThreadTS  string
}

func (SlackMessage) SourceType() SourceType { return SourceSlack }
func (SlackMessage) sealed()                {}

// IsThreadReply reports whether the message belongs to a thread.
func (m SlackMessage) IsThreadReply() bool {
	return m.ThreadTS != ""
}

func (m SlackMessage) Fields() map[string]any {
	return map[string]any{
		"channel_id":      m.ChannelID,
		"user_id":         m.UserID,
		"thread_ts":       nilIfEmpty(m.ThreadTS),
		"is_thread_reply": m.IsThreadReply(),
	}
}

// GitHubIssue describes an issue or pull request.
type GitHubIssue struct {
	Repository  string
	IssueNumber int
	State       string
	Labels      []string
}

func (GitHubIssue) SourceType() SourceType { return SourceGitHub }
func (GitHubIssue) sealed()                {}

func (i GitHubIssue) Fields() map[string]any {
	labels := i.Labels
	if labels == nil {
		labels = []string{}
	}
	return map[string]any{
		"repository":   i.Repository,
		"issue_number": i.IssueNumber,
		"state":        i.State,
		"labels":       labels,
	}
}

// DefaultBranch is used for GitHub files without an explicit branch.
const DefaultBranch = "main"

// GitHubFile describes a file in a repository.
type GitHubFile struct {
	Repository string
	FilePath   string
	Branch     string
	FileSize   int64 // 0 when unknown
}

func (GitHubFile) SourceType() SourceType { return SourceGitHub }
func (GitHubFile) sealed()                {}

func (f GitHubFile) Fields() map[string]any {
	branch := f.Branch
	if branch == "" {
		branch = DefaultBranch
	}
	var size any
	if f.FileSize > 0 {
		size = f.FileSize
	}
	return map[string]any{
		"repository": f.Repository,
		"file_path":  f.FilePath,
		"branch":     branch,
		"file_size":  size,
	}
}

// ConfluencePage describes a wiki page.
type ConfluencePage struct {
	SpaceKey string
	PageID   string
	Version  int // 0 when unknown
}

func (ConfluencePage) SourceType() SourceType { return SourceConfluence }
func (ConfluencePage) sealed()                {}

func (p ConfluencePage) Fields() map[string]any {
	var version any
	if p.Version > 0 {
		version = p.Version
	}
	return map[string]any{
		"space_key": p.SpaceKey,
		"page_id":   p.PageID,
		"version":   version,
	}
}

var (
	_ SourceDetails = SlackMessage{}
	_ SourceDetails = GitHubIssue{}
	_ SourceDetails = GitHubFile{}
	_ SourceDetails = ConfluencePage{}
)
