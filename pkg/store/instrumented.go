package store

import (
	"context"
	"errors"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
	"github.com/ajitpratap0/mcp-userhub/pkg/logging"
	"github.com/ajitpratap0/mcp-userhub/pkg/observability"
)

type instrumented struct {
	Store
	metrics *observability.Metrics
	logger  logging.Logger
}

// Instrument counts every call on s and logs failures.
func Instrument(s Store, metrics *observability.Metrics, logger logging.Logger) Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &instrumented{
		Store:   s,
		metrics: metrics,
		logger:  logger.WithFields(logging.Component("store")),
	}
}

func (s *instrumented) List(ctx context.Context) ([]Record, error) {
	records, err := s.Store.List(ctx)
	s.observe("list", err)
	return records, err
}

func (s *instrumented) Append(ctx context.Context, fields map[string]interface{}) (int, error) {
	id, err := s.Store.Append(ctx, fields)
	s.observe("append", err)
	if err == nil {
		s.logger.Info("record appended", logging.Int("id", id))
	}
	return id, err
}

func (s *instrumented) Get(ctx context.Context, id int) (Record, error) {
	r, err := s.Store.Get(ctx, id)
	s.observe("get", err)
	return r, err
}

func (s *instrumented) observe(operation string, err error) {
	s.metrics.RecordStoreOperation(operation, err)
	if err != nil && !errors.Is(err, mcperrors.ErrRecordNotFound) {
		s.logger.WithError(err).Warn("store operation failed", logging.Operation(operation))
	}
}
