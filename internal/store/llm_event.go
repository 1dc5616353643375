package store

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/chemgen/internal/metrics"
)

const llmEventsTable = "llm_request_events"

var llmEventColumns = []string{
	"id", "sequence", "created_at", "provider", "model", "purpose",
	"input_tokens", "output_tokens", "latency_ms", "success",
	"error_message", "request_body", "response_body",
}

// llmEventRow mirrors one llm_request_events row for entsql.ScanSlice.
type llmEventRow struct {
	ID           int64  `sql:"id"`
	Sequence     int64  `sql:"sequence"`
	CreatedAt    int64  `sql:"created_at"`
	Provider     string `sql:"provider"`
	Model        string `sql:"model"`
	Purpose      string `sql:"purpose"`
	InputTokens  int64  `sql:"input_tokens"`
	OutputTokens int64  `sql:"output_tokens"`
	LatencyMs    int64  `sql:"latency_ms"`
	Success      bool   `sql:"success"`
	ErrorMessage string `sql:"error_message"`
	RequestBody  string `sql:"request_body"`
	ResponseBody string `sql:"response_body"`
}

func (r llmEventRow) record() LLMRequestEventRecord {
	return LLMRequestEventRecord{
		ID:        int(r.ID),
		Sequence:  r.Sequence,
		Timestamp: time.UnixMilli(r.CreatedAt),
		LLMRequestEventData: LLMRequestEventData{
			Provider:     r.Provider,
			Model:        r.Model,
			Purpose:      r.Purpose,
			InputTokens:  int(r.InputTokens),
			OutputTokens: int(r.OutputTokens),
			LatencyMs:    r.LatencyMs,
			Success:      r.Success,
			ErrorMessage: r.ErrorMessage,
			RequestBody:  r.RequestBody,
			ResponseBody: r.ResponseBody,
		},
	}
}

// eventRepo implements EventRepo with ent's SQL builder over the shared
// driver and the global sequence counter.
type eventRepo struct {
	drv *entsql.Driver
	seq *sequenceCounter
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

func (r *eventRepo) AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error {
	defer observe("append_llm_request", time.Now())

	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	query, args := builder().Insert(llmEventsTable).
		Columns(llmEventColumns[1:]...).
		Values(
			seqNum,
			time.Now().UnixMilli(),
			data.Provider,
			data.Model,
			data.Purpose,
			data.InputTokens,
			data.OutputTokens,
			data.LatencyMs,
			data.Success,
			data.ErrorMessage,
			data.RequestBody,
			data.ResponseBody,
		).
		Query()

	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("save LLM request event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEventRecord, error) {
	defer observe("query_llm_events", time.Now())

	b := builder()
	sel := b.Select(llmEventColumns...).
		From(b.Table(llmEventsTable)).
		OrderBy(entsql.Desc("sequence"))
	if opts.Purpose != "" {
		sel.Where(entsql.EQ("purpose", opts.Purpose))
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}

	var rows []llmEventRow
	if err := r.scan(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("query LLM events: %w", err)
	}

	out := make([]LLMRequestEventRecord, len(rows))
	for i, row := range rows {
		out[i] = row.record()
	}
	return out, nil
}

func (r *eventRepo) GetLLMEvent(ctx context.Context, id int) (*LLMRequestEventRecord, error) {
	defer observe("get_llm_event", time.Now())

	b := builder()
	sel := b.Select(llmEventColumns...).
		From(b.Table(llmEventsTable)).
		Where(entsql.EQ("id", id)).
		Limit(1)

	var rows []llmEventRow
	if err := r.scan(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("get LLM event %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	rec := rows[0].record()
	return &rec, nil
}

func (r *eventRepo) LLMUsageByPurpose(ctx context.Context) ([]LLMUsageStats, error) {
	defer observe("usage_by_purpose", time.Now())

	b := builder()
	sel := b.Select(
		"purpose",
		entsql.As(entsql.Count("*"), "calls"),
		entsql.As(entsql.Sum("input_tokens"), "input_tokens"),
		entsql.As(entsql.Sum("output_tokens"), "output_tokens"),
		entsql.As(entsql.Avg("latency_ms"), "avg_latency_ms"),
	).
		From(b.Table(llmEventsTable)).
		GroupBy("purpose").
		OrderBy("purpose")

	var rows []struct {
		Purpose      string  `sql:"purpose"`
		Calls        int64   `sql:"calls"`
		InputTokens  int64   `sql:"input_tokens"`
		OutputTokens int64   `sql:"output_tokens"`
		AvgLatencyMs float64 `sql:"avg_latency_ms"`
	}
	if err := r.scan(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("usage by purpose: %w", err)
	}

	out := make([]LLMUsageStats, len(rows))
	for i, row := range rows {
		out[i] = LLMUsageStats{
			Purpose:      row.Purpose,
			Calls:        int(row.Calls),
			InputTokens:  int(row.InputTokens),
			OutputTokens: int(row.OutputTokens),
			AvgLatencyMs: int64(row.AvgLatencyMs),
		}
	}
	return out, nil
}

func (r *eventRepo) LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error) {
	defer observe("usage_by_model", time.Now())

	b := builder()
	sel := b.Select(
		"model",
		entsql.As(entsql.Count("*"), "calls"),
		entsql.As(entsql.Sum("input_tokens"), "input_tokens"),
		entsql.As(entsql.Sum("output_tokens"), "output_tokens"),
	).
		From(b.Table(llmEventsTable)).
		GroupBy("model").
		OrderBy("model")

	var rows []struct {
		Model        string `sql:"model"`
		Calls        int64  `sql:"calls"`
		InputTokens  int64  `sql:"input_tokens"`
		OutputTokens int64  `sql:"output_tokens"`
	}
	if err := r.scan(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("usage by model: %w", err)
	}

	out := make([]LLMModelUsage, len(rows))
	for i, row := range rows {
		out[i] = LLMModelUsage{
			Model:        row.Model,
			Calls:        int(row.Calls),
			InputTokens:  int(row.InputTokens),
			OutputTokens: int(row.OutputTokens),
		}
	}
	return out, nil
}

// scan runs sel and scans all rows into dest, a pointer to a slice.
func (r *eventRepo) scan(ctx context.Context, sel *entsql.Selector, dest any) error {
	query, args := sel.Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return err
	}
	defer rows.Close()
	return entsql.ScanSlice(rows, dest)
}

func observe(op string, start time.Time) {
	metrics.ObserveStoreQuery(op, time.Since(start))
}
