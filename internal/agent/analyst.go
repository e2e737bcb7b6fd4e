// Package agent implements the language-model stages of the pipeline: SQL
// generation, chart design and insight narration.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cortexai/cortexbi/internal/models"
)

// sampleRows is how many rows of each result are shown to the model.
const sampleRows = 10

type Options struct {
	Timeout        time.Duration
	SchemaCacheTTL time.Duration
}

// Analyst produces SQL, chart descriptions and insights from one Completer.
type Analyst struct {
	llm     Completer
	schema  SchemaProvider
	cache   *schemaCache
	timeout time.Duration
}

// NewAnalyst wires llm to an optional schema provider.
func NewAnalyst(llm Completer, schema SchemaProvider, opts Options) *Analyst {
	if opts.SchemaCacheTTL <= 0 {
		opts.SchemaCacheTTL = 5 * time.Minute
	}
	return &Analyst{
		llm:     llm,
		schema:  schema,
		cache:   newSchemaCache(opts.SchemaCacheTTL),
		timeout: opts.Timeout,
	}
}

// Schema returns the cached warehouse description.
func (a *Analyst) Schema(ctx context.Context) string {
	if a.schema == nil {
		return ""
	}
	return a.cache.load(ctx, a.schema)
}

// InvalidateSchema forces the next generation to refetch the schema.
func (a *Analyst) InvalidateSchema() {
	if a.schema != nil {
		a.cache.invalidate(a.schema.Name())
	}
}

func (a *Analyst) complete(ctx context.Context, stage, system, user string) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	start := time.Now()
	out, err := a.llm.Complete(ctx, system, user)
	log.Debug().Str("stage", stage).Str("model", a.llm.Model()).Dur("duration", time.Since(start)).Err(err).Msg("llm call")
	return out, err
}

type generatedQueries struct {
	Queries []models.SQLQuery `json:"queries"`
}

// GenerateSQL asks the model for one or more named queries answering
// question. gctx, when set, adds the earlier turns of the conversation.
func (a *Analyst) GenerateSQL(ctx context.Context, question string, gctx *models.GenerationContext) ([]models.SQLQuery, error) {
	system := sqlSystemPrompt
	if schema := a.Schema(ctx); schema != "" {
		system += "\n\n## Available tables\n" + schema
	}

	var user strings.Builder
	if gctx != nil && len(gctx.PreviousQueries) > 0 {
		user.WriteString("Conversation so far:\n")
		writeContext(&user, gctx)
		user.WriteString("\nFollow-up question: ")
	} else {
		user.WriteString("Question: ")
	}
	user.WriteString(question)

	out, err := a.complete(ctx, "generate", system, user.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrGeneration, err)
	}

	queries := parseQueries(out)
	if len(queries) == 0 {
		return nil, fmt.Errorf("%w: no SQL in model output: %s", models.ErrGeneration, truncate(out, 200))
	}
	return queries, nil
}

func writeContext(sb *strings.Builder, gctx *models.GenerationContext) {
	for _, e := range gctx.PreviousQueries {
		switch {
		case e.Kind == models.EntryUser:
			fmt.Fprintf(sb, "User: %s\n", e.Text)
		case e.Error:
			fmt.Fprintf(sb, "Assistant (failed): %s\n", e.Text)
		default:
			fmt.Fprintf(sb, "Assistant: %s\n", e.Text)
			if s, ok := gctx.Sessions[e.SessionID]; ok {
				for _, q := range s.SQLQueries {
					fmt.Fprintf(sb, "  [%s] %s\n", q.QueryName, q.SQL)
				}
			}
		}
	}
}

// parseQueries reads the JSON answer, falling back to a bare SQL block.
func parseQueries(out string) []models.SQLQuery {
	var parsed generatedQueries
	if raw := extractJSON(out); raw != "" && json.Unmarshal([]byte(raw), &parsed) == nil {
		var queries []models.SQLQuery
		for _, q := range parsed.Queries {
			q.SQL = strings.TrimSuffix(strings.TrimSpace(q.SQL), ";")
			if q.SQL != "" {
				queries = append(queries, q)
			}
		}
		if len(queries) > 0 {
			return queries
		}
	}
	if sql := extractSQL(out); sql != "" {
		return []models.SQLQuery{{QueryName: "Query 1", SQL: sql}}
	}
	return nil
}

// GenerateChartConfig asks the model to describe one chart for results.
func (a *Analyst) GenerateChartConfig(ctx context.Context, results []models.QueryResult, question string) (*models.ChartDescription, error) {
	out, err := a.complete(ctx, "chart", chartSystemPrompt, resultsPrompt(question, results))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrChartGeneration, err)
	}
	raw := extractJSON(out)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON in model output", models.ErrChartGeneration)
	}
	var desc models.ChartDescription
	if err := json.Unmarshal([]byte(raw), &desc); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", models.ErrChartGeneration, err)
	}
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrChartGeneration, err)
	}
	return &desc, nil
}

// GenerateInsights asks the model to narrate results.
func (a *Analyst) GenerateInsights(ctx context.Context, results []models.QueryResult, question string) (*models.Insights, error) {
	out, err := a.complete(ctx, "insight", insightSystemPrompt, resultsPrompt(question, results))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInsightGeneration, err)
	}
	raw := extractJSON(out)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON in model output", models.ErrInsightGeneration)
	}
	var ins models.Insights
	if err := json.Unmarshal([]byte(raw), &ins); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", models.ErrInsightGeneration, err)
	}
	if strings.TrimSpace(ins.Summary) == "" {
		return nil, fmt.Errorf("%w: empty summary", models.ErrInsightGeneration)
	}
	return &ins, nil
}

// resultsPrompt shows the question plus columns, row count and a sample of
// every result.
func resultsPrompt(question string, results []models.QueryResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\n", question)
	for _, r := range results {
		fmt.Fprintf(&sb, "## %s\n", r.QueryName)
		if r.QueryDescription != "" {
			fmt.Fprintf(&sb, "%s\n", r.QueryDescription)
		}
		fmt.Fprintf(&sb, "Columns: %s\nRows: %d\n", strings.Join(columnsOf(r), ", "), len(r.Data))
		sample := r.Data
		if len(sample) > sampleRows {
			sample = sample[:sampleRows]
		}
		if b, err := json.Marshal(sample); err == nil {
			fmt.Fprintf(&sb, "Sample: %s\n", b)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func columnsOf(r models.QueryResult) []string {
	if len(r.Columns) > 0 || len(r.Data) == 0 {
		return r.Columns
	}
	cols := make([]string, 0, len(r.Data[0]))
	for c := range r.Data[0] {
		cols = append(cols, c)
	}
	return cols
}
