package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/attachdrop/backend/internal/filetype"
	"github.com/attachdrop/backend/internal/models"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
)

// EmitFunc receives accepted files. It is called once per file with a
// single-element batch and owns the descriptors afterwards.
type EmitFunc func(files []models.FileDescriptor)

// Ingestor validates files, reads them into data URLs and emits descriptors.
type Ingestor struct {
	policy  *filetype.Policy
	source  FileSource
	emit    EmitFunc
	tracker *Tracker
	events  Publisher
	metrics *Metrics

	wg sync.WaitGroup

	mu   sync.RWMutex
	errs []*models.IngestError
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithPublisher sends ingestion events to p.
func WithPublisher(p Publisher) Option {
	return func(in *Ingestor) {
		if p != nil {
			in.events = p
		}
	}
}

// WithMetrics records ingestion metrics.
func WithMetrics(m *Metrics) Option {
	return func(in *Ingestor) {
		in.metrics = m
	}
}

// WithTracker shares an existing progress table.
func WithTracker(t *Tracker) Option {
	return func(in *Ingestor) {
		if t != nil {
			in.tracker = t
		}
	}
}

// NewIngestor creates an Ingestor. A nil policy means DefaultPolicy and a
// nil source means a StreamSource bounded by the policy ceiling.
func NewIngestor(policy *filetype.Policy, source FileSource, emit EmitFunc, opts ...Option) *Ingestor {
	if policy == nil {
		policy = filetype.DefaultPolicy()
	}
	if source == nil {
		source = NewStreamSource(policy.MaxFileSize)
	}
	if emit == nil {
		emit = func([]models.FileDescriptor) {}
	}

	in := &Ingestor{
		policy:  policy,
		source:  source,
		emit:    emit,
		tracker: NewTracker(),
		events:  noopPublisher{},
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Batch is the outcome of one Process call.
type Batch struct {
	ReadIDs  []string
	Rejected []*models.IngestError

	wg sync.WaitGroup
}

// Wait blocks until every read started by this batch has finished.
func (b *Batch) Wait() {
	b.wg.Wait()
}

// Process handles a set of files from one input gesture. Each file is
// checked on its own; a rejection never stops the others. Accepted files
// are read concurrently and Process returns without waiting for them.
func (in *Ingestor) Process(ctx context.Context, user models.User, files []FileHandle) *Batch {
	batch := &Batch{}

	for _, f := range files {
		if f == nil {
			continue
		}

		if err := in.policy.Check(f.Name(), f.Type(), f.Size()); err != nil {
			batch.Rejected = append(batch.Rejected, in.reject(f.Name(), err))
			continue
		}

		id := in.tracker.Start(f.Name())
		batch.ReadIDs = append(batch.ReadIDs, id)
		in.events.Publish(Event{
			Type:      EventStarted,
			ReadID:    id,
			FileName:  f.Name(),
			Timestamp: time.Now().UnixMilli(),
		})

		in.wg.Add(1)
		batch.wg.Add(1)
		go func(id string, f FileHandle) {
			defer in.wg.Done()
			defer batch.wg.Done()
			in.read(ctx, user, id, f)
		}(id, f)
	}

	return batch
}

func (in *Ingestor) read(ctx context.Context, user models.User, id string, f FileHandle) {
	start := time.Now()
	in.metrics.readStarted()

	var size int
	ok := false
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Ingest %s] PANIC recovered: %v", id[:8], r)
			in.tracker.Fail(id)
			in.fail(id, f.Name(), models.ErrorKindReadFailure,
				fmt.Sprintf("File %q could not be processed", f.Name()))
		}
		in.metrics.readFinished(start, size, ok)
	}()

	log.Debugf("[Ingest %s] Reading %s (%d bytes, %q)", id[:8], f.Name(), f.Size(), f.Type())

	data, err := in.source.Read(ctx, f, func(loaded, total int64) {
		if pct, applied := in.tracker.Update(id, loaded, total); applied {
			in.events.Publish(Event{
				Type:      EventProgress,
				ReadID:    id,
				FileName:  f.Name(),
				Percent:   pct,
				Timestamp: time.Now().UnixMilli(),
			})
		}
	})
	if err != nil {
		in.tracker.Fail(id)
		if errors.Is(err, filetype.ErrTooLarge) {
			in.fail(id, f.Name(), models.ErrorKindOversize,
				fmt.Sprintf("File %q is too large. Maximum size is %s.", f.Name(), filetype.FormatSize(in.policy.MaxFileSize)))
		} else {
			in.fail(id, f.Name(), models.ErrorKindReadFailure,
				fmt.Sprintf("File %q could not be read: %v", f.Name(), err))
		}
		log.Warnf("[Ingest %s] Read failed for %s: %v", id[:8], f.Name(), err)
		return
	}
	size = len(data)
	if size == 0 && f.Size() > 0 {
		in.tracker.Fail(id)
		in.fail(id, f.Name(), models.ErrorKindReadFailure,
			fmt.Sprintf("File %q arrived without its content", f.Name()))
		log.Warnf("[Ingest %s] %s declared %d bytes but none were read", id[:8], f.Name(), f.Size())
		return
	}

	d := models.FileDescriptor{
		Name:             f.Name(),
		Content:          EncodeDataURL(f.Type(), data),
		SemanticType:     filetype.Classify(f.Type(), f.Name()),
		UploadedBy:       user.Name,
		SizeBytes:        models.Int64Ptr(int64(size)),
		IsOriginalUpload: true,
		MIMEType:         f.Type(),
	}

	in.emit([]models.FileDescriptor{d})
	in.tracker.Complete(id)
	ok = true

	in.events.Publish(Event{
		Type:         EventComplete,
		ReadID:       id,
		FileName:     d.Name,
		Percent:      100,
		SemanticType: d.SemanticType,
		SizeBytes:    d.Size(),
		Timestamp:    time.Now().UnixMilli(),
	})
	log.Infof("[Ingest %s] Emitted %s (%s, %s)", id[:8], d.Name, d.SemanticType, filetype.FormatSize(d.Size()))
}

// reject records a validation failure.
func (in *Ingestor) reject(name string, err error) *models.IngestError {
	kind := models.ErrorKindUnsupportedType
	msg := fmt.Sprintf("File %q type is not supported.", name)
	if errors.Is(err, filetype.ErrTooLarge) {
		kind = models.ErrorKindOversize
		msg = fmt.Sprintf("File %q is too large. Maximum size is %s.", name, filetype.FormatSize(in.policy.MaxFileSize))
	}
	log.Infof("[Ingest] Rejected %s: %v", name, err)
	return in.fail("", name, kind, msg)
}

func (in *Ingestor) fail(readID, name string, kind models.IngestErrorKind, msg string) *models.IngestError {
	ie := &models.IngestError{
		ID:       uuid.New().String(),
		ReadID:   readID,
		FileName: name,
		Kind:     kind,
		Message:  msg,
		At:       time.Now(),
	}

	in.mu.Lock()
	in.errs = append(in.errs, ie)
	in.mu.Unlock()

	in.metrics.rejectedFor(kind)
	in.events.Publish(Event{
		Type:      EventError,
		ReadID:    readID,
		FileName:  name,
		Error:     ie,
		Timestamp: ie.At.UnixMilli(),
	})
	return ie
}

// Errors returns the per-file errors recorded so far, oldest first.
func (in *Ingestor) Errors() []models.IngestError {
	in.mu.RLock()
	defer in.mu.RUnlock()
	out := make([]models.IngestError, len(in.errs))
	for i, e := range in.errs {
		out[i] = *e
	}
	return out
}

// DismissError removes one error from the list.
func (in *Ingestor) DismissError(id string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	for i, e := range in.errs {
		if e.ID == id {
			in.errs = append(in.errs[:i], in.errs[i+1:]...)
			return true
		}
	}
	return false
}

// ClearErrors empties the error list.
func (in *Ingestor) ClearErrors() {
	in.mu.Lock()
	in.errs = nil
	in.mu.Unlock()
}

// Tracker exposes the progress table for rendering.
func (in *Ingestor) Tracker() *Tracker {
	return in.tracker
}

// Policy returns the validation policy in use.
func (in *Ingestor) Policy() *filetype.Policy {
	return in.policy
}

// Wait blocks until every in-flight read has finished.
func (in *Ingestor) Wait() {
	in.wg.Wait()
}
