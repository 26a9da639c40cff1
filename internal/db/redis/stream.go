package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/arcadia-shop/persona/internal/db"
)

// StreamAdd appends an entry to a stream and returns the generated ID.
func (s *Store) StreamAdd(ctx context.Context, stream string, fields map[string]string) (string, error) {
	cmd := s.b().Xadd().Key(stream).Id("*").FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	id, err := s.do(ctx, cmd.Build()).ToString()
	if err != nil {
		return "", &db.Error{Op: db.OpXAdd, Err: err}
	}
	return id, nil
}

// StreamGroupCreate creates a consumer group at the head of the stream,
// creating the stream if it does not exist. An existing group is not an error.
func (s *Store) StreamGroupCreate(ctx context.Context, stream, group string) error {
	cmd := s.b().XgroupCreate().Key(stream).Group(group).Id("$").Mkstream().Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "BUSYGROUP") {
			return nil
		}
		return &db.Error{Op: db.OpXGroup, Err: err}
	}
	return nil
}

// StreamRead reads up to count new entries for the consumer, blocking up to
// the given duration. An empty slice means the block timed out with no data.
func (s *Store) StreamRead(
	ctx context.Context, stream, group, consumer string, count int, block time.Duration,
) ([]db.StreamEntry, error) {
	cmd := s.b().Xreadgroup().
		Group(group, consumer).
		Count(int64(count)).
		Block(block.Milliseconds()).
		Streams().Key(stream).Id(">").
		Build()

	res, err := s.do(ctx, cmd).AsXRead()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, &db.Error{Op: db.OpXReadGroup, Err: err}
	}

	var entries []db.StreamEntry
	for _, raw := range res[stream] {
		entries = append(entries, db.StreamEntry{
			ID:     raw.ID,
			Fields: raw.FieldValues,
		})
	}
	return entries, nil
}

// StreamAck acknowledges processed entries for the consumer group.
func (s *Store) StreamAck(ctx context.Context, stream, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	cmd := s.b().Xack().Key(stream).Group(group).Id(ids...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpXAck, Err: err}
	}
	return nil
}
