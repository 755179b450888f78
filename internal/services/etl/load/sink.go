package load

import (
	"context"
	"strconv"

	"moviesync/internal/platform/store/es"
	"moviesync/internal/services/etl/domain"
)

// ESSink indexes documents into Elasticsearch with one bulk request per call
type ESSink struct {
	c *es.Client
}

// NewESSink wraps an es client
func NewESSink(c *es.Client) *ESSink {
	if c == nil {
		panic("load: nil es client")
	}
	return &ESSink{c: c}
}

// Ping implements domain.Sink
func (s *ESSink) Ping(ctx context.Context) error { return s.c.Ping(ctx) }

// EnsureIndex implements domain.Sink
func (s *ESSink) EnsureIndex(ctx context.Context, name string, body []byte) (bool, error) {
	return s.c.EnsureIndex(ctx, name, body)
}

// Index upserts docs by id and returns the ones the cluster refused. A
// document that cannot be encoded is refused without being sent
func (s *ESSink) Index(ctx context.Context, docs []domain.Document) ([]domain.Rejection, error) {
	var (
		body     es.BulkBody
		rejected []domain.Rejection
	)
	for _, d := range docs {
		if err := body.Index(d.IndexName(), d.DocumentID(), d); err != nil {
			rejected = append(rejected, domain.Rejection{Index: d.IndexName(), ID: d.DocumentID(), Reason: "encode: " + err.Error()})
		}
	}
	if body.Len() == 0 {
		return rejected, nil
	}

	res, err := s.c.Bulk(ctx, body.Bytes())
	if err != nil {
		return nil, err
	}
	if !res.Errors {
		return rejected, nil
	}
	for _, it := range res.Outcomes() {
		if it.OK() {
			continue
		}
		reason := "status " + strconv.Itoa(it.Status)
		if it.Error != nil {
			reason = it.Error.Type + ": " + it.Error.Reason
		}
		rejected = append(rejected, domain.Rejection{Index: it.Index, ID: it.ID, Reason: reason})
	}
	return rejected, nil
}

var _ domain.Sink = (*ESSink)(nil)
