package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"questionnaire_editor/models"
)

type tokenKey struct{}

// WithToken attaches the caller's access token; requests made with the
// returned context carry it as a bearer token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// APIError is returned for every non-2xx response.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	// Detail is the decoded JSON body, when the server sent one.
	Detail any
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, body)
}

// Client talks to the questionnaire API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) questionnaireURL(id string) string {
	return c.baseURL + "/questionnaires/" + url.PathEscape(id)
}

// GetQuestionnaire fetches GET /questionnaires/{id}.
func (c *Client) GetQuestionnaire(ctx context.Context, id string) (*models.Questionnaire, error) {
	body, err := c.do(ctx, http.MethodGet, c.questionnaireURL(id), nil)
	if err != nil {
		return nil, err
	}

	var quiz models.Questionnaire
	if err := json.Unmarshal(body, &quiz); err != nil {
		return nil, fmt.Errorf("decoding questionnaire %s: %w", id, err)
	}
	return &quiz, nil
}

// UpdateQuestionnaire sends PUT /questionnaires/{id}/.
func (c *Client) UpdateQuestionnaire(ctx context.Context, id string, update *models.QuestionnaireUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("encoding questionnaire %s: %w", id, err)
	}

	body, err := c.do(ctx, http.MethodPut, c.questionnaireURL(id)+"/", payload)
	if err != nil {
		return err
	}
	log.Printf("Questionnaire %s updated: %s", id, bytes.TrimSpace(body))
	return nil
}

func (c *Client) do(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := tokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response of %s %s: %w", method, target, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: body}
		var detail any
		if json.Unmarshal(body, &detail) == nil {
			apiErr.Detail = detail
		}
		return nil, apiErr
	}
	return body, nil
}
