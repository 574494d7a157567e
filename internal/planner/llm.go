package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/metaseek/metaseek/pkg/types"
)

const systemPrompt = `You are a local file search agent. Analyze the user's natural
language query and convert it into a JSON plan.

The system has two data sources:
1. A semantic vector store (for finding files by meaning).
2. An SQLite 'files' table (for filtering by metadata).

The 'files' table has these columns:
path, name, size, created_at, modified_at, access_count, total_time_spent_hrs.

Respond ONLY with a single, minified JSON object. Do not add markdown or any other text.

The JSON plan MUST have two keys:
1. "semantic_query": A string. This is the re-phrased query to be sent to the vector store.
   If the user is ONLY asking for metadata (e.g., "newest files"), set this to null.
2. "sql_filter": A string. This is a valid SQLite WHERE clause.
   - Use 'path' for file types (e.g., "path LIKE '%.py'").
   - Use metadata columns for sorting/filtering (e.g., "modified_at > '2025-10-30'").
   - If no filter is needed, use "1=1".
   - DO NOT add 'ORDER BY' to the filter when semantic_query is set.

Examples:
User Query: file on prolog system
{"semantic_query": "document about the Prolog programming language", "sql_filter": "1=1"}

User Query: python script about machine learning
{"semantic_query": "python code for machine learning", "sql_filter": "path LIKE '%.py'"}

User Query: find my most recently modified markdown file
{"semantic_query": null, "sql_filter": "path LIKE '%.md' ORDER BY modified_at DESC LIMIT 1"}`

// DefaultChatModel is the model requested from the chat backend.
const DefaultChatModel = "gpt-4o-mini"

// LLM asks an OpenAI-compatible chat endpoint for a search plan.
type LLM struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewLLM creates a planner backed by a chat completions endpoint.
func NewLLM(baseURL, apiKey, model string, logger *slog.Logger) *LLM {
	if model == "" {
		model = DefaultChatModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLM{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Plan sends the query to the chat backend and parses the JSON plan.
// Any transport or parse failure surfaces as ErrPlannerUnavailable.
func (l *LLM) Plan(ctx context.Context, query string) (types.SearchPlan, error) {
	reqBody := map[string]interface{}{
		"model": l.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": "User Query: " + query},
		},
		"temperature": 0,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return types.SearchPlan{}, fmt.Errorf("%w: marshal request: %v", ErrPlannerUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", l.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return types.SearchPlan{}, fmt.Errorf("%w: create request: %v", ErrPlannerUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if l.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.apiKey)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return types.SearchPlan{}, fmt.Errorf("%w: %v", ErrPlannerUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return types.SearchPlan{}, fmt.Errorf("%w: api error %d: %s",
			ErrPlannerUnavailable, resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return types.SearchPlan{}, fmt.Errorf("%w: decode response: %v", ErrPlannerUnavailable, err)
	}
	if len(apiResp.Choices) == 0 {
		return types.SearchPlan{}, fmt.Errorf("%w: empty response", ErrPlannerUnavailable)
	}

	plan, err := parsePlan(apiResp.Choices[0].Message.Content)
	if err != nil {
		l.logger.Warn("planner returned unparseable plan",
			"query", query, "raw", apiResp.Choices[0].Message.Content)
		return types.SearchPlan{}, err
	}

	l.logger.Debug("plan produced", "query", query,
		"semantic", plan.SemanticQuery != nil, "filter", plan.Filter)
	return plan, nil
}

// parsePlan decodes the model output into a plan. Markdown code fences
// are stripped since models add them despite instructions.
func parsePlan(raw string) (types.SearchPlan, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var decoded struct {
		SemanticQuery *string `json:"semantic_query"`
		SQLFilter     string  `json:"sql_filter"`
	}
	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&decoded); err != nil {
		return types.SearchPlan{}, fmt.Errorf("%w: parse plan: %v", ErrPlannerUnavailable, err)
	}

	plan := types.SearchPlan{
		SemanticQuery: decoded.SemanticQuery,
		Filter:        decoded.SQLFilter,
	}
	plan.Normalize()
	return plan, nil
}
