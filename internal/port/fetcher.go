package port

import (
	"context"

	"talktocode/internal/domain"
)

// Fetcher retrieves repository listings and file contents from a code host.
type Fetcher interface {
	// ListRoot returns the entries at the repository root. Directories are
	// listed but not recursed.
	ListRoot(ctx context.Context, owner, repo string) ([]domain.FileEntry, error)

	// FetchFile returns the decoded text of a single repository file.
	FetchFile(ctx context.Context, owner, repo, path string) (domain.SourceFile, error)
}
