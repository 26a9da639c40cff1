package redis

import (
	"context"

	"github.com/arcadia-shop/persona/internal/db"
)

// LPush prepends a value to a list.
func (s *Store) LPush(ctx context.Context, key string, value []byte) error {
	cmd := s.b().Lpush().Key(key).Element(string(value)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpLPush, Err: err}
	}
	return nil
}

// LLen returns the length of a list.
func (s *Store) LLen(ctx context.Context, key string) (int64, error) {
	cmd := s.b().Llen().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpLLen, Err: err}
	}
	return n, nil
}
