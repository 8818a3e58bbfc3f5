// Package github provides the github-repo tool which fetches public metadata
// about a repository from the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hupe1980/genui/tool"
)

// Name is the tool name the model selects.
const Name = "github-repo"

// Args selects a repository.
type Args struct {
	Owner string `json:"owner" jsonschema:"description=The name of the repository owner."`
	Repo  string `json:"repo" jsonschema:"description=The name of the repository."`
}

// Validate implements tool.Validator.
func (a *Args) Validate() error {
	if strings.TrimSpace(a.Owner) == "" {
		return fmt.Errorf("owner is required")
	}
	if strings.TrimSpace(a.Repo) == "" {
		return fmt.Errorf("repo is required")
	}
	return nil
}

// Repository is the tool result rendered by the github-card component.
type Repository struct {
	Owner       string `json:"owner"`
	Repo        string `json:"repo"`
	Description string `json:"description"`
	Stars       int    `json:"stars"`
	Language    string `json:"language"`
}

// Options configure the GitHub client.
type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// New creates the github-repo tool.
func New(optFns ...func(o *Options)) tool.Tool {
	opts := Options{
		BaseURL:    "https://api.github.com",
		HTTPClient: http.DefaultClient,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	c := &client{opts: opts}
	return tool.NewTyped(Name, "A tool to fetch information about a GitHub repository.", c.fetch)
}

type client struct {
	opts Options
}

type repoResponse struct {
	Description     string `json:"description"`
	StargazersCount int    `json:"stargazers_count"`
	Language        string `json:"language"`
}

func (c *client) fetch(ctx context.Context, args Args) (any, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s",
		strings.TrimRight(c.opts.BaseURL, "/"), url.PathEscape(args.Owner), url.PathEscape(args.Repo))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github: unexpected status %d for %s/%s", resp.StatusCode, args.Owner, args.Repo)
	}

	var body repoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode github response: %w", err)
	}

	return Repository{
		Owner:       args.Owner,
		Repo:        args.Repo,
		Description: body.Description,
		Stars:       body.StargazersCount,
		Language:    body.Language,
	}, nil
}
