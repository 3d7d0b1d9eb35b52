package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"findash/internal/amqp"
	"findash/internal/core"
	"findash/internal/loader"
	"findash/internal/narrative"
	"findash/internal/pipeline"
)

var (
	// ErrInvalidSelection wraps selection values that cannot be normalized.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrBusNotConfigured is returned by RequestRefresh without an AMQP client.
	ErrBusNotConfigured = errors.New("refresh bus not configured")
)

// Publisher sends refresh requests to other instances.
type Publisher interface {
	PublishRefresh(ctx context.Context, reason string) (*amqp.RefreshRequest, error)
}

// ReportService answers the dashboard queries over the memoized snapshot.
type ReportService struct {
	loader     *loader.Loader
	narratives *narrative.Service
	publisher  Publisher
}

// NewReportService wires the loader with the optional narrative service and
// refresh publisher; both may be nil.
func NewReportService(l *loader.Loader, n *narrative.Service, pub Publisher) *ReportService {
	if n == nil {
		n = narrative.NewService(nil)
	}
	return &ReportService{loader: l, narratives: n, publisher: pub}
}

// SnapshotInfo describes the dataset a response was computed from.
type SnapshotInfo struct {
	ID        string                 `json:"id"`
	LoadedAt  time.Time              `json:"loaded_at"`
	ExpiresAt time.Time              `json:"expires_at"`
	Source    string                 `json:"source"`
	Encoding  string                 `json:"encoding,omitempty"`
	Rows      int                    `json:"rows"`
	Mapping   pipeline.MappingStatus `json:"mapping"`
	Warnings  []string               `json:"warnings"`
}

// Dashboard is every aggregate for one selection.
type Dashboard struct {
	Snapshot SnapshotInfo `json:"snapshot"`
	pipeline.Report
	Quality          QualitySummary `json:"quality"`
	NarrativeEnabled bool           `json:"narrative_enabled"`
}

// QualitySummary is the counts part of the data-quality report.
type QualitySummary struct {
	SourceRows       int `json:"source_rows"`
	Kept             int `json:"kept"`
	SkippedMalformed int `json:"skipped_malformed"`
	Dropped          int `json:"dropped"`
	Zeroed           int `json:"zeroed"`
	UnknownDate      int `json:"unknown_date"`
	Unmapped         int `json:"unmapped"`
	Clamped          int `json:"clamped"`
	UniqueCategories int `json:"unique_categories"`
}

// TransactionRow is one cleaned record as shown in the raw-data view.
type TransactionRow struct {
	Row           int         `json:"row"`
	Date          core.Date   `json:"date"`
	Month         string      `json:"month"`
	Title         string      `json:"title"`
	Category      string      `json:"category"`
	Group         string      `json:"group"`
	Type          core.TxType `json:"type"`
	Amount        core.Money  `json:"amount"`
	AmountCoerced bool        `json:"amount_coerced,omitempty"`
}

// TransactionList is the raw filtered rows of a selection.
type TransactionList struct {
	Snapshot  SnapshotInfo       `json:"snapshot"`
	Selection pipeline.Selection `json:"selection"`
	Count     int                `json:"count"`
	Rows      []TransactionRow   `json:"rows"`
}

// QualityReport is the full data-quality panel.
type QualityReport struct {
	Snapshot SnapshotInfo     `json:"snapshot"`
	Summary  QualitySummary   `json:"summary"`
	Quality  pipeline.Quality `json:"details"`
}

// NarrativeResponse pairs a narrative with the selection it describes.
type NarrativeResponse struct {
	Selection pipeline.Selection `json:"selection"`
	narrative.Result
}

func (s *ReportService) snapshot(ctx context.Context) (*pipeline.Dataset, SnapshotInfo, error) {
	ds, err := s.loader.Snapshot(ctx)
	if err != nil {
		return nil, SnapshotInfo{}, err
	}
	return ds, s.info(ds), nil
}

func (s *ReportService) info(ds *pipeline.Dataset) SnapshotInfo {
	return SnapshotInfo{
		ID:        ds.ID,
		LoadedAt:  ds.LoadedAt,
		ExpiresAt: ds.LoadedAt.Add(s.loader.TTL()),
		Source:    ds.Source,
		Encoding:  ds.Encoding,
		Rows:      len(ds.Records),
		Mapping:   ds.Mapping,
		Warnings:  ds.Warnings,
	}
}

func normalize(sel pipeline.Selection) (pipeline.Selection, error) {
	n, err := sel.Normalize()
	if err != nil {
		return pipeline.Selection{}, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
	}
	return n, nil
}

// Dashboard computes every aggregate for sel.
func (s *ReportService) Dashboard(ctx context.Context, sel pipeline.Selection) (*Dashboard, error) {
	sel, err := normalize(sel)
	if err != nil {
		return nil, err
	}
	ds, info, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		Snapshot:         info,
		Report:           s.loader.Engine().Report(ds, sel),
		Quality:          summarize(ds.Quality),
		NarrativeEnabled: s.narratives.Enabled(),
	}, nil
}

// Transactions returns the raw filtered rows for sel, zero-filled rows
// included.
func (s *ReportService) Transactions(ctx context.Context, sel pipeline.Selection) (*TransactionList, error) {
	sel, err := normalize(sel)
	if err != nil {
		return nil, err
	}
	ds, info, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	txs := s.loader.Engine().Transactions(ds, sel)
	rows := make([]TransactionRow, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, TransactionRow{
			Row:           tx.Row,
			Date:          tx.Date,
			Month:         tx.Month,
			Title:         tx.Title,
			Category:      tx.Category,
			Group:         tx.Group,
			Type:          tx.Type,
			Amount:        tx.Amount,
			AmountCoerced: tx.AmountCoerced,
		})
	}
	return &TransactionList{Snapshot: info, Selection: sel, Count: len(rows), Rows: rows}, nil
}

// Quality returns the data-quality report of the current snapshot.
func (s *ReportService) Quality(ctx context.Context) (*QualityReport, error) {
	ds, info, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &QualityReport{Snapshot: info, Summary: summarize(ds.Quality), Quality: ds.Quality}, nil
}

// Options lists the filter values present in the current snapshot.
func (s *ReportService) Options(ctx context.Context) (pipeline.Options, error) {
	ds, err := s.loader.Snapshot(ctx)
	if err != nil {
		return pipeline.Options{}, err
	}
	return ds.Options(), nil
}

// Refresh discards the snapshot and memoized narratives, then reloads.
func (s *ReportService) Refresh(ctx context.Context) (SnapshotInfo, error) {
	s.narratives.Forget()
	ds, err := s.loader.Refresh(ctx)
	if err != nil {
		return SnapshotInfo{}, err
	}
	return s.info(ds), nil
}

// RequestRefresh asks every consumer on the bus to refresh.
func (s *ReportService) RequestRefresh(ctx context.Context, reason string) (*amqp.RefreshRequest, error) {
	if s.publisher == nil {
		return nil, ErrBusNotConfigured
	}
	return s.publisher.PublishRefresh(ctx, reason)
}

// Ready reports whether a snapshot can be produced.
func (s *ReportService) Ready(ctx context.Context) error {
	_, err := s.loader.Snapshot(ctx)
	return err
}

// Status is the operational state of the report service.
type Status struct {
	Loads            int        `json:"loads"`
	LastError        string     `json:"last_error,omitempty"`
	SnapshotID       string     `json:"snapshot_id,omitempty"`
	StoredAt         *time.Time `json:"stored_at,omitempty"`
	NarrativeEnabled bool       `json:"narrative_enabled"`
	NarrativeMemo    int        `json:"narrative_memo_entries"`
}

// Status reports loader counters and memo sizes without triggering a load.
func (s *ReportService) Status() Status {
	loads, lastErr := s.loader.Status()
	st := Status{
		Loads:            loads,
		NarrativeEnabled: s.narratives.Enabled(),
		NarrativeMemo:    s.narratives.Memo().Size(),
	}
	if lastErr != nil {
		st.LastError = lastErr.Error()
	}
	if ds, at, ok := s.loader.Cached(); ok {
		st.SnapshotID = ds.ID
		st.StoredAt = &at
	}
	return st
}

// NarrativeEnabled reports whether a narrative provider is configured.
func (s *ReportService) NarrativeEnabled() bool { return s.narratives.Enabled() }

// Narrative generates, or returns the memoized, narrative for the month
// selection of sel. Only the months take part in the memo key.
func (s *ReportService) Narrative(ctx context.Context, sel pipeline.Selection) (*NarrativeResponse, error) {
	if !s.narratives.Enabled() {
		return nil, narrative.ErrNotConfigured
	}
	sel, err := normalize(sel)
	if err != nil {
		return nil, err
	}
	ds, err := s.loader.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	payload := s.loader.Engine().Report(ds, sel).Insight
	res, err := s.narratives.Generate(ctx, sel.Key(), payload)
	if err != nil {
		slog.WarnContext(ctx, "Narrative unavailable", "months", sel.Key(), "error", err)
		return nil, err
	}
	return &NarrativeResponse{Selection: sel, Result: res}, nil
}

func summarize(q pipeline.Quality) QualitySummary {
	return QualitySummary{
		SourceRows:       q.SourceRows,
		Kept:             q.Kept,
		SkippedMalformed: q.SkippedMalformed,
		Dropped:          q.DroppedAmount + q.DroppedDate,
		Zeroed:           q.ZeroedAmount,
		UnknownDate:      q.UnknownDate,
		Unmapped:         q.Unmapped,
		Clamped:          q.Clamped,
		UniqueCategories: q.UniqueCategories,
	}
}
