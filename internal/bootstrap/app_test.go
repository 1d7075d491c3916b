package bootstrap

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"docanalysis-backend/internal/processdata"
	"docanalysis-backend/internal/shared/config"
	"docanalysis-backend/internal/shared/telemetry"
	"docanalysis-backend/internal/textract"
)

func TestBuildLocalMemoryStack(t *testing.T) {
	defer telemetry.SetOutput(&bytes.Buffer{})()
	dir := t.TempDir()
	app, err := Build(config.Config{
		Env:            "dev",
		DataStore:      config.DataStoreMemory,
		LocalStoreDir:  dir,
		AnalysisSource: config.AnalysisSourceOutput,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := app.Repo.(*processdata.MemoryRepo); !ok {
		t.Fatalf("expected memory repo, got %T", app.Repo)
	}
	if _, ok := app.Analysis.(*textract.OutputSource); !ok {
		t.Fatalf("expected output source, got %T", app.Analysis)
	}
	if app.Queue != nil || app.DB != nil {
		t.Fatalf("expected no queue and no db")
	}
	if app.Processor == nil || app.Router == nil {
		t.Fatalf("expected processor and router")
	}

	_, err = app.Store.SaveWithKey(context.Background(), "out", "textract/job-1/1", "application/json",
		strings.NewReader(`{"JobStatus":"SUCCEEDED","Blocks":[]}`))
	if err != nil {
		t.Fatalf("seed output: %v", err)
	}
	if _, err := app.Repo.Save(context.Background(), processdata.ProcessData{
		ID:                "p-1",
		OutputBucket:      "out",
		TextractOutputKey: "textract/job-1",
		TaskToken:         "tok",
		Queries:           []processdata.DocumentQuery{{QueryID: "total"}},
	}); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/process-data/p-1/query-results", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	rec, err := app.Repo.GetByID(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec.TaskToken != "" || rec.Queries[0].IsValid {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestBuildPostgresFallsBackInDev(t *testing.T) {
	defer telemetry.SetOutput(&bytes.Buffer{})()
	app, err := Build(config.Config{Env: "dev", DataStore: config.DataStorePostgres, LocalStoreDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if app.Config.DataStore != config.DataStoreMemory {
		t.Fatalf("expected memory fallback, got %s", app.Config.DataStore)
	}
}

func TestBuildPostgresRequiresURLInProduction(t *testing.T) {
	defer telemetry.SetOutput(&bytes.Buffer{})()
	_, err := Build(config.Config{Env: "production", DataStore: config.DataStorePostgres})
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
}

func TestBuildDynamoRequiresTable(t *testing.T) {
	defer telemetry.SetOutput(&bytes.Buffer{})()
	_, err := Build(config.Config{Env: "dev", DataStore: config.DataStoreDynamoDB})
	if err == nil || !strings.Contains(err.Error(), "DYNAMODB_TABLE") {
		t.Fatalf("expected DYNAMODB_TABLE error, got %v", err)
	}
}

func TestIsDevLike(t *testing.T) {
	for env, want := range map[string]bool{"dev": true, " LOCAL ": true, "production": false, "staging": false} {
		if got := isDevLike(env); got != want {
			t.Fatalf("isDevLike(%q) = %v", env, got)
		}
	}
}
