package queryresults

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docanalysis-backend/internal/processdata"
	"docanalysis-backend/internal/queue"
	"docanalysis-backend/internal/shared/metrics"
	"docanalysis-backend/internal/shared/telemetry"
	"docanalysis-backend/internal/textract"
)

// Processor copies Textract query answers into a process record once the
// analysis job has finished.
type Processor struct {
	Repo     processdata.Repo
	Analysis textract.Service
}

// Handle is the stage entrypoint: it processes msg.ID and echoes msg back so
// the workflow can hand it to the next stage.
func (p *Processor) Handle(ctx context.Context, msg queue.IDMessage) (queue.IDMessage, error) {
	if err := p.Process(ctx, msg.ID); err != nil {
		return queue.IDMessage{}, err
	}
	return msg, nil
}

// Process loads the record, fills in query results, clears the Textract job
// fields and saves it. Nothing is saved if any step before the save fails.
func (p *Processor) Process(ctx context.Context, id string) (err error) {
	if strings.TrimSpace(id) == "" {
		return processdata.ErrMissingID
	}

	start := time.Now()
	fields := map[string]any{"process_id": id}
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		fields["request_id"] = reqID
	}
	metrics.IncStageStarted()
	telemetry.Info("query_results.started", fields)
	defer func() {
		metrics.ObserveStageDurationMs(metrics.Since(start))
		fields["duration_ms"] = metrics.Since(start)
		if err != nil {
			metrics.IncStageFailed()
			fields["error"] = err.Error()
			telemetry.Error("query_results.failed", fields)
			return
		}
		metrics.IncStageCompleted()
		telemetry.Info("query_results.completed", fields)
	}()

	rec, err := p.Repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load process data id=%s: %w", id, err)
	}

	model, err := p.Analysis.GetBlocksForAnalysis(ctx, rec.OutputBucket, rec.TextractOutputKey)
	if err != nil {
		return fmt.Errorf("get analysis id=%s bucket=%s key=%s: %w", id, rec.OutputBucket, rec.TextractOutputKey, err)
	}

	matched := ApplyQueryResults(&rec, model)
	rec.ClearTextractJobData()

	if _, err := p.Repo.Save(ctx, rec); err != nil {
		return fmt.Errorf("save process data id=%s: %w", id, err)
	}

	metrics.AddQueryOutcomes(matched, len(rec.Queries)-matched)
	fields["queries"] = len(rec.Queries)
	fields["queries_matched"] = matched
	fields["blocks"] = model.Len()
	fields["pages"] = model.Pages()
	return nil
}

// ApplyQueryResults appends the answers for every query in rec and sets each
// query's validity. It returns how many queries are valid afterwards.
func ApplyQueryResults(rec *processdata.ProcessData, model *textract.AnalysisModel) int {
	matched := 0
	for i := range rec.Queries {
		q := &rec.Queries[i]
		for _, a := range textract.QueryResults(model, q.QueryID) {
			q.Results = append(q.Results, processdata.QueryResult{
				Text:       a.Text,
				Confidence: a.Confidence,
				Page:       a.Page,
			})
		}
		q.IsValid = len(q.Results) > 0
		if q.IsValid {
			matched++
		}
	}
	return matched
}
