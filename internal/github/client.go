// Package github implements the GitHub-backed content fetcher and change-set
// enumeration for pull requests and ref comparisons.
package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"

	"github.com/driftgate/driftgate/internal/models"
)

// Client wraps the GitHub API with rate limiting
type Client struct {
	api     *github.Client
	limiter *rate.Limiter
	owner   string
	repo    string
}

// NewClient creates a rate-limited client for one repository. An empty token
// uses unauthenticated access with its much lower API quota.
func NewClient(token, owner, repo string, rateLimit int) *Client {
	api := github.NewClient(nil)
	if token != "" {
		api = api.WithAuthToken(token)
	}
	if rateLimit < 1 {
		rateLimit = 10
	}
	return &Client{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
		owner:   owner,
		repo:    repo,
	}
}

// Fetch implements models.ContentFetcher: file content at a ref, nil when
// the file does not exist at that revision.
func (c *Client) Fetch(ctx context.Context, path, ref string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	file, _, resp, err := c.api.Repositories.GetContents(ctx, c.owner, c.repo, path,
		&github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get contents %s@%s: %w", path, ref, err)
	}
	if file == nil {
		// path resolved to a directory
		return nil, nil
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode contents %s@%s: %w", path, ref, err)
	}
	return []byte(content), nil
}

// ChangeSetFromPR enumerates the changed files of a pull request
func (c *Client) ChangeSetFromPR(ctx context.Context, number int) (*models.ChangeSet, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	pr, _, err := c.api.PullRequests.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, fmt.Errorf("get pull request #%d: %w", number, err)
	}

	cs := &models.ChangeSet{
		BaseRef: pr.GetBase().GetSHA(),
		HeadRef: pr.GetHead().GetSHA(),
	}

	opts := &github.ListOptions{PerPage: 100}
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		files, resp, err := c.api.PullRequests.ListFiles(ctx, c.owner, c.repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("list files of #%d: %w", number, err)
		}
		for _, f := range files {
			cs.Files = append(cs.Files, models.ChangedFile{
				Path:   f.GetFilename(),
				Status: fileStatus(f.GetStatus()),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return cs, nil
}

// ChangeSetFromCompare enumerates the changed files between two refs
func (c *Client) ChangeSetFromCompare(ctx context.Context, base, head string) (*models.ChangeSet, error) {
	cs := &models.ChangeSet{BaseRef: base, HeadRef: head}

	opts := &github.ListOptions{PerPage: 100}
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		cmp, resp, err := c.api.Repositories.CompareCommits(ctx, c.owner, c.repo, base, head, opts)
		if err != nil {
			return nil, fmt.Errorf("compare %s...%s: %w", base, head, err)
		}
		for _, f := range cmp.Files {
			cs.Files = append(cs.Files, models.ChangedFile{
				Path:   f.GetFilename(),
				Status: fileStatus(f.GetStatus()),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return cs, nil
}

// fileStatus maps GitHub file statuses onto the three-valued change status.
// Renames surface as a removal plus an addition elsewhere, so the renamed
// entry itself counts as added.
func fileStatus(s string) models.FileStatus {
	switch strings.ToLower(s) {
	case "removed":
		return models.StatusRemoved
	case "added", "renamed", "copied":
		return models.StatusAdded
	default:
		return models.StatusModified
	}
}

// ParseRepo splits an "owner/name" slug
func ParseRepo(slug string) (owner, name string, err error) {
	parts := strings.Split(slug, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository %q, expected owner/name", slug)
	}
	return parts[0], parts[1], nil
}
