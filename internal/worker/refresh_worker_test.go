package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carlmjohnson/be"

	"findash/internal/amqp"
	"findash/internal/pipeline"
	"findash/internal/storage"
)

type fakeLoader struct {
	invalidations int
	refreshes     int
	err           error
}

func (f *fakeLoader) Invalidate() { f.invalidations++ }

func (f *fakeLoader) Refresh(ctx context.Context) (*pipeline.Dataset, error) {
	f.refreshes++
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Dataset{ID: "ds-1"}, nil
}

type fakeForgetter struct{ n int }

func (f *fakeForgetter) Forget() { f.n++ }

type fakeLog struct {
	records []storage.RefreshRecord
}

func (f *fakeLog) SeenRefresh(ctx context.Context, id string) (bool, error) {
	for _, r := range f.records {
		if r.RequestID == id {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLog) RecordRefresh(ctx context.Context, rec storage.RefreshRecord) (bool, error) {
	f.records = append(f.records, rec)
	return true, nil
}

func TestHandleRefresh(t *testing.T) {
	loader := &fakeLoader{}
	forgetter := &fakeForgetter{}
	log := &fakeLog{}
	w := NewRefreshWorker(loader, forgetter, log)
	ctx := context.Background()

	msg := amqp.NewRefreshRequest("sheet edited")
	be.NilErr(t, w.HandleRefresh(ctx, msg))
	be.Equal(t, 1, loader.invalidations)
	be.Equal(t, 1, loader.refreshes)
	be.Equal(t, 1, forgetter.n)
	be.Equal(t, 1, len(log.records))
	be.Equal(t, "ds-1", log.records[0].DatasetID)
	be.Equal(t, "sheet edited", log.records[0].Reason)

	be.NilErr(t, w.HandleRefresh(ctx, msg))
	be.Equal(t, 1, loader.refreshes)
}

func TestHandleRefreshDuplicateFromLog(t *testing.T) {
	loader := &fakeLoader{}
	msg := amqp.NewRefreshRequest("cli")
	log := &fakeLog{records: []storage.RefreshRecord{{RequestID: msg.ID, ProcessedAt: time.Now()}}}
	w := NewRefreshWorker(loader, nil, log)

	be.NilErr(t, w.HandleRefresh(context.Background(), msg))
	be.Equal(t, 0, loader.invalidations)
}

func TestHandleRefreshReloadFailureRecorded(t *testing.T) {
	loader := &fakeLoader{err: errors.New("sheet unavailable")}
	log := &fakeLog{}
	w := NewRefreshWorker(loader, nil, log)

	be.NilErr(t, w.HandleRefresh(context.Background(), amqp.NewRefreshRequest("cli")))
	be.Equal(t, 1, loader.invalidations)
	be.Equal(t, "sheet unavailable", log.records[0].Error)
	be.Equal(t, "", log.records[0].DatasetID)
}

func TestHandleRefreshWithoutLog(t *testing.T) {
	loader := &fakeLoader{}
	w := NewRefreshWorker(loader, nil, nil)
	msg := amqp.NewRefreshRequest("")

	be.NilErr(t, w.HandleRefresh(context.Background(), msg))
	be.NilErr(t, w.HandleRefresh(context.Background(), msg))
	be.Equal(t, 1, loader.refreshes)
	be.Equal(t, 1, w.Seen().Size())
}
