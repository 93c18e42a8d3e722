package models

import "encoding/json"

// Row tables exposed by the /v1 API. Access pattern is deliberately small:
// select with equality filter and limit, insert-one returning the row,
// update by id, delete by id.
const (
	TableProjects             = "projects"
	TableChats                = "chats"
	TableMessages             = "messages"
	TableDocuments            = "documents"
	TableGithubIntegrations   = "github_integrations"
	TableSupabaseIntegrations = "supabase_integrations"
	TableBuilderData          = "builder_data"
)

var knownTables = map[string]struct{}{
	TableProjects:             {},
	TableChats:                {},
	TableMessages:             {},
	TableDocuments:            {},
	TableGithubIntegrations:   {},
	TableSupabaseIntegrations: {},
	TableBuilderData:          {},
}

// KnownTable reports whether name is one of the served row tables.
func KnownTable(name string) bool {
	_, ok := knownTables[name]
	return ok
}

// KnownTables returns the served table names in a stable order.
func KnownTables() []string {
	return []string{
		TableProjects, TableChats, TableMessages, TableDocuments,
		TableGithubIntegrations, TableSupabaseIntegrations, TableBuilderData,
	}
}

type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	OwnerID     string `json:"owner_id,omitempty"`
	CreatedTS   int64  `json:"created_ts,omitempty"`
	UpdatedTS   int64  `json:"updated_ts,omitempty"`
}

type Chat struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id,omitempty"`
	Title     string `json:"title,omitempty"`
	CreatedTS int64  `json:"created_ts,omitempty"`
	UpdatedTS int64  `json:"updated_ts,omitempty"`
}

type Document struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id,omitempty"`
	Name      string `json:"name"`
	MimeType  string `json:"mime_type,omitempty"`
	BlobRef   string `json:"blob_ref,omitempty"`
	CreatedTS int64  `json:"created_ts,omitempty"`
}

type GithubIntegration struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id,omitempty"`
	RepoURL   string `json:"repo_url"`
	Branch    string `json:"branch,omitempty"`
	CreatedTS int64  `json:"created_ts,omitempty"`
}

type SupabaseIntegration struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id,omitempty"`
	ProjectURL string `json:"project_url"`
	CreatedTS  int64  `json:"created_ts,omitempty"`
}

// BuilderData carries opaque per-project builder state.
type BuilderData struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	UpdatedTS int64           `json:"updated_ts,omitempty"`
}
