package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/carlmjohnson/be"

	"findash/internal/config"
	"findash/internal/loader"
	"findash/internal/pipeline"
	"findash/internal/services"
	"findash/internal/sheets/memory"
	"findash/internal/storage"
)

func demoService(t *testing.T) *services.ReportService {
	t.Helper()
	tx, mapping := memory.Demo()
	engine, err := pipeline.New(pipeline.DefaultPolicy())
	be.NilErr(t, err)
	return services.NewReportService(loader.New(tx, mapping, engine), nil, nil)
}

func TestRenderDashboard(t *testing.T) {
	svc := demoService(t)
	d, err := svc.Dashboard(context.Background(), pipeline.Selection{Months: []string{"mar"}})
	be.NilErr(t, err)

	var buf bytes.Buffer
	RenderDashboard(&buf, d, "USD")
	out := buf.String()
	be.True(t, strings.Contains(out, "Dashboard: March"))
	be.True(t, strings.Contains(out, "$1,944.95"))
	be.True(t, strings.Contains(out, "Budget vs actual"))
}

func TestRenderQualityAndTransactions(t *testing.T) {
	svc := demoService(t)
	ctx := context.Background()

	q, err := svc.Quality(ctx)
	be.NilErr(t, err)
	var buf bytes.Buffer
	RenderQuality(&buf, q, 10)
	be.True(t, strings.Contains(buf.String(), "Source rows"))

	list, err := svc.Transactions(ctx, pipeline.Selection{Quarters: []int{1}, IncludeCategories: []string{"Wants"}})
	be.NilErr(t, err)
	buf.Reset()
	RenderTransactions(&buf, list, "USD")
	be.True(t, strings.Contains(buf.String(), "3 transactions"))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	be.NilErr(t, WriteJSON(&buf, map[string]int{"rows": 3}))
	be.Equal(t, "{\n  \"rows\": 3\n}\n", buf.String())
	be.True(t, WriteJSON(&buf, make(chan int)) != nil)
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(&config.Config{LogLevel: "warn", LogFormat: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	be.False(t, strings.Contains(out, "hidden"))
	be.True(t, strings.Contains(out, `"msg":"shown"`))

	buf.Reset()
	logger = SetupLogger(&config.Config{LogLevel: "debug", LogFormat: "text"}, &buf)
	logger.Debug("charm text")
	be.True(t, strings.Contains(buf.String(), "charm text"))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataBackend:       config.BackendMemory,
		SeedDir:           t.TempDir(),
		SnapshotTTL:       time.Minute,
		LoadTimeout:       time.Minute,
		NarrativeProvider: "anthropic",
		NarrativeTTL:      time.Hour,
		NarrativeTimeout:  time.Second,
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

func TestNewApp(t *testing.T) {
	cfg := testConfig(t)
	logger := SetupLogger(cfg, io.Discard)

	store, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "findash.db"))
	be.NilErr(t, err)

	app, err := NewApp(context.Background(), cfg, logger, store)
	be.NilErr(t, err)
	t.Cleanup(func() { be.NilErr(t, app.Close()) })

	be.True(t, app.Bus == nil)
	be.False(t, app.Narratives.Enabled())
	be.Equal(t, "USD", app.Policy.Currency)

	d, err := app.Service.Dashboard(context.Background(), pipeline.Selection{Months: []string{"March"}})
	be.NilErr(t, err)
	be.Equal(t, "$1,944.95", d.Metrics.ActualSpending.Display)

	_, err = app.Service.RequestRefresh(context.Background(), "test")
	be.True(t, err == services.ErrBusNotConfigured)
}

func TestNewAppRejectsBadPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.PolicyFile = filepath.Join(t.TempDir(), "missing.toml")
	_, err := NewApp(context.Background(), cfg, SetupLogger(cfg, io.Discard), nil)
	be.True(t, err != nil)
}
