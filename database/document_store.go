package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rpupo63/portfolio-backend/errs"
	"github.com/rpupo63/portfolio-backend/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrStoreClosed is returned for commands submitted after Close.
var ErrStoreClosed = errors.New("document store is closed")

const defaultStoreTimeout = 10 * time.Second

// Mutation edits the document in place. Returning an error aborts the cycle without writing.
type Mutation func(doc *models.Document) error

type writeResult struct {
	doc *models.Document
	err error
}

type writeRequest struct {
	mutate Mutation
	result chan writeResult
}

// DocumentStore owns the persisted document. Every write is a
// load-mutate-save cycle run by a single goroutine, so cycles never
// interleave. Reads go straight to the backend.
type DocumentStore struct {
	backend Backend
	logger  zerolog.Logger
	timeout time.Duration

	writes    chan writeRequest
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type StoreOption func(*DocumentStore)

// WithTimeout bounds each backend read or write.
func WithTimeout(timeout time.Duration) StoreOption {
	return func(s *DocumentStore) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *DocumentStore) {
		s.logger = logger
	}
}

func NewDocumentStore(backend Backend, opts ...StoreOption) *DocumentStore {
	s := &DocumentStore{
		backend: backend,
		logger:  log.With().Str("component", "documentStore").Str("backend", backend.Name()).Logger(),
		timeout: defaultStoreTimeout,
		writes:  make(chan writeRequest),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.run()
	return s
}

// Load returns the current document. A missing document is created empty and
// persisted first. A corrupt document is logged and reported as empty.
func (s *DocumentStore) Load(ctx context.Context) (*models.Document, error) {
	readCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc, found, err := s.read(readCtx)
	if err != nil {
		return nil, err
	}
	if found {
		return doc, nil
	}
	return s.submit(ctx, nil)
}

// Save replaces the whole document.
func (s *DocumentStore) Save(ctx context.Context, doc *models.Document) error {
	if err := ValidateDocument(doc); err != nil {
		return err
	}
	snapshot := doc.Clone()
	_, err := s.submit(ctx, func(current *models.Document) error {
		*current = *snapshot
		return nil
	})
	return err
}

// Update runs one serialized load-mutate-save cycle and returns the saved document.
func (s *DocumentStore) Update(ctx context.Context, mutate Mutation) (*models.Document, error) {
	if mutate == nil {
		return nil, errors.New("update requires a mutation")
	}
	return s.submit(ctx, mutate)
}

// Close stops the writer after the in-flight cycle finishes.
func (s *DocumentStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
	return nil
}

// submit queues a cycle. The caller's context only bounds the wait for a
// queue slot; once accepted the cycle runs to completion.
func (s *DocumentStore) submit(ctx context.Context, mutate Mutation) (*models.Document, error) {
	select {
	case <-s.done:
		return nil, errs.NewStorageError("write document", ErrStoreClosed)
	default:
	}

	req := writeRequest{mutate: mutate, result: make(chan writeResult, 1)}
	select {
	case s.writes <- req:
	case <-s.done:
		return nil, errs.NewStorageError("write document", ErrStoreClosed)
	case <-ctx.Done():
		return nil, errs.NewStorageError("queue document write", ctx.Err())
	}

	res := <-req.result
	return res.doc, res.err
}

func (s *DocumentStore) run() {
	defer s.wg.Done()
	for {
		select {
		case req := <-s.writes:
			req.result <- s.apply(req.mutate)
		case <-s.done:
			return
		}
	}
}

func (s *DocumentStore) apply(mutate Mutation) writeResult {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	doc, found, err := s.read(ctx)
	if err != nil {
		return writeResult{err: err}
	}
	// A nil mutation only materializes a missing document.
	if mutate == nil && found {
		return writeResult{doc: doc}
	}
	if mutate != nil {
		if err := mutate(doc); err != nil {
			return writeResult{err: err}
		}
	}
	if err := s.write(ctx, doc); err != nil {
		return writeResult{err: err}
	}
	return writeResult{doc: doc.Clone()}
}

// read reports found=true for corrupt documents so they are not overwritten by Load.
func (s *DocumentStore) read(ctx context.Context) (*models.Document, bool, error) {
	data, err := s.backend.Read(ctx)
	if errors.Is(err, ErrNoDocument) {
		return models.EmptyDocument(), false, nil
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read document")
		return nil, false, errs.NewStorageError("read document", err)
	}

	doc, err := decodeDocument(data)
	if err != nil {
		s.logger.Error().Err(err).Int("bytes", len(data)).Msg("Stored document is corrupt, serving an empty document")
		return models.EmptyDocument(), true, nil
	}
	return doc, true, nil
}

func (s *DocumentStore) write(ctx context.Context, doc *models.Document) error {
	if err := ValidateDocument(doc); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errs.NewConfigInvalidError(fmt.Sprintf("document cannot be encoded: %v", err))
	}
	if err := s.backend.Write(ctx, data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write document")
		return errs.NewStorageError("write document", err)
	}
	return nil
}

func decodeDocument(data []byte) (*models.Document, error) {
	var doc *models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("document is null")
	}
	if doc.Projects == nil {
		doc.Projects = []models.Project{}
	}
	for i := range doc.Projects {
		if doc.Projects[i].Tags == nil {
			doc.Projects[i].Tags = []string{}
		}
	}
	return doc, nil
}
