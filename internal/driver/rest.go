package driver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/agenthands/neobatch/internal/config"
	"github.com/agenthands/neobatch/internal/core/model"
)

// RESTGateway talks to the store's HTTP API: node batches go to the batch
// endpoint, relations and index statements to transaction/commit.
type RESTGateway struct {
	baseURL   string
	auth      string
	userAgent string
	client    *http.Client
	logger    *zap.Logger
}

func NewRESTGateway(cfg config.StoreConfig, logger *zap.Logger) *RESTGateway {
	baseURL := cfg.URL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	return &RESTGateway{
		baseURL:   baseURL,
		auth:      base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password)),
		userAgent: userAgent,
		client:    &http.Client{Timeout: cfg.RequestTimeout.Duration},
		logger:    logger,
	}
}

type batchJob struct {
	Method string `json:"method"`
	To     string `json:"to"`
	ID     *int   `json:"id,omitempty"`
	Body   any    `json:"body"`
}

type statement struct {
	Statement  string         `json:"statement"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type transactionRequest struct {
	Statements []statement `json:"statements"`
}

type transactionResponse struct {
	Results []json.RawMessage  `json:"results"`
	Errors  []StoreErrorDetail `json:"errors"`
}

// Ping checks that the store answers with well-formed JSON and no errors.
func (g *RESTGateway) Ping(ctx context.Context) error {
	body, err := g.do(ctx, "ping", http.MethodGet, "", nil)
	if err != nil {
		return err
	}

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("store returned invalid JSON: %w", err)
	}
	if raw, ok := parsed["errors"]; ok {
		var details []StoreErrorDetail
		if err := json.Unmarshal(raw, &details); err != nil || len(details) > 0 {
			return &StoreError{Op: "ping", Details: details, Body: string(body)}
		}
	}
	return nil
}

// WriteNodes posts every node creation followed by every label attachment.
// Label jobs reference their node job by its batch id.
func (g *RESTGateway) WriteNodes(ctx context.Context, batch model.NodeBatch) error {
	jobs := make([]batchJob, 0, len(batch.Nodes)+len(batch.Labels))
	for _, n := range batch.Nodes {
		ref := n.Ref
		jobs = append(jobs, batchJob{Method: http.MethodPost, To: "/node", ID: &ref, Body: n.Properties})
	}
	for _, l := range batch.Labels {
		jobs = append(jobs, batchJob{Method: http.MethodPost, To: fmt.Sprintf("{%d}/labels", l.Target), Body: l.Label})
	}

	if _, err := g.do(ctx, "node batch", http.MethodPost, "batch", jobs); err != nil {
		return err
	}
	g.logger.Debug("node batch committed", zap.Int("nodes", len(batch.Nodes)), zap.Int("labels", len(batch.Labels)))
	return nil
}

func (g *RESTGateway) WriteRelations(ctx context.Context, relations []model.RelationCommand) error {
	stmts := make([]statement, 0, len(relations))
	for _, rel := range relations {
		stmts = append(stmts, statement{Statement: RelationQuery(rel), Parameters: RelationParams(rel)})
	}
	if err := g.commit(ctx, "relation batch", stmts); err != nil {
		return err
	}
	g.logger.Debug("relation batch committed", zap.Int("relations", len(relations)))
	return nil
}

func (g *RESTGateway) CreateIndexes(ctx context.Context, specs []model.IndexSpec) error {
	stmts := make([]statement, 0, len(specs))
	for _, spec := range specs {
		q, err := IndexQuery(spec)
		if err != nil {
			return err
		}
		stmts = append(stmts, statement{Statement: q})
	}
	return g.commit(ctx, "index setup", stmts)
}

func (g *RESTGateway) Close(ctx context.Context) error {
	g.client.CloseIdleConnections()
	return nil
}

func (g *RESTGateway) commit(ctx context.Context, op string, stmts []statement) error {
	body, err := g.do(ctx, op, http.MethodPost, "transaction/commit", transactionRequest{Statements: stmts})
	if err != nil {
		return err
	}

	var resp transactionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("%s: store returned invalid JSON: %w", op, err)
	}
	if len(resp.Errors) > 0 {
		return &StoreError{Op: op, Details: resp.Errors}
	}
	return nil
}

func (g *RESTGateway) do(ctx context.Context, op, method, endpoint string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8; stream=true")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+g.auth)
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serr := &StoreError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		var parsed transactionResponse
		if json.Unmarshal(body, &parsed) == nil {
			serr.Details = parsed.Errors
		}
		return nil, serr
	}
	return body, nil
}
