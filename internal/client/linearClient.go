package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"portfolio-api/internal/config"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

var ErrTrackerNotConfigured = errors.New("issue tracker is not configured")

// IssuePriority follows Linear's scale: 1=Urgent, 2=High, 3=Normal, 4=Low.
type IssuePriority int

const (
	PriorityUrgent IssuePriority = 1
	PriorityHigh   IssuePriority = 2
	PriorityNormal IssuePriority = 3
	PriorityLow    IssuePriority = 4
)

type Issue struct {
	Title       string
	Description string
	Priority    IssuePriority
}

type CreatedIssue struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type IssueTrackerClient interface {
	// Configured reports whether credentials are present. CreateIssue returns
	// ErrTrackerNotConfigured when they are not.
	Configured() bool
	CreateIssue(ctx context.Context, issue *Issue) (*CreatedIssue, error)
}

type linearClientImpl struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	teamID     string
	breaker    *gobreaker.CircuitBreaker[*CreatedIssue]
}

const issueCreateMutation = `
mutation IssueCreate($input: IssueCreateInput!) {
  issueCreate(input: $input) {
    success
    issue {
      id
      title
      url
    }
  }
}`

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type issueCreateResponse struct {
	Data struct {
		IssueCreate struct {
			Success bool          `json:"success"`
			Issue   *CreatedIssue `json:"issue"`
		} `json:"issueCreate"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

func NewLinearClient(cfg *config.Linear) IssueTrackerClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &linearClientImpl{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		apiURL: cfg.APIURL,
		apiKey: cfg.APIKey,
		teamID: cfg.TeamID,
		breaker: gobreaker.NewCircuitBreaker[*CreatedIssue](gobreaker.Settings{
			Name:        "linear",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

func (c *linearClientImpl) Configured() bool {
	return c.apiKey != "" && c.teamID != ""
}

func (c *linearClientImpl) CreateIssue(ctx context.Context, issue *Issue) (*CreatedIssue, error) {
	if !c.Configured() {
		return nil, ErrTrackerNotConfigured
	}

	created, err := c.breaker.Execute(func() (*CreatedIssue, error) {
		return c.createIssue(ctx, issue)
	})
	if err != nil {
		return nil, fmt.Errorf("linear issue create: %w", err)
	}
	return created, nil
}

func (c *linearClientImpl) createIssue(ctx context.Context, issue *Issue) (*CreatedIssue, error) {
	payload := graphQLRequest{
		Query: issueCreateMutation,
		Variables: map[string]any{
			"input": map[string]any{
				"teamId":      c.teamID,
				"title":       issue.Title,
				"description": issue.Description,
				"priority":    int(issue.Priority),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal req payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("linear error %d: %s", resp.StatusCode, string(b))
	}

	var result issueCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode linear response: %w", err)
	}

	if len(result.Errors) > 0 {
		msgs := make([]string, len(result.Errors))
		for i, e := range result.Errors {
			msgs[i] = e.Message
		}
		return nil, fmt.Errorf("linear graphql errors: %s", strings.Join(msgs, "; "))
	}
	if !result.Data.IssueCreate.Success || result.Data.IssueCreate.Issue == nil {
		return nil, errors.New("linear reported issueCreate failure")
	}

	return result.Data.IssueCreate.Issue, nil
}
