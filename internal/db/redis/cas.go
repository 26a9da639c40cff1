package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/arcadia-shop/persona/internal/db"
)

// hsetVersionedScript writes hash fields atomically, guarded by the numeric
// "version" field. An absent key counts as version 0. Returns {1, newVersion}
// on success and {0, currentVersion} on mismatch.
var hsetVersionedScript = rueidis.NewLuaScript(`
local current = tonumber(redis.call('HGET', KEYS[1], 'version')) or 0
if current ~= tonumber(ARGV[1]) then
  return {0, current}
end
for i = 2, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i+1])
end
return {1, tonumber(redis.call('HGET', KEYS[1], 'version')) or 0}
`)

// HSetVersioned performs a compare-and-swap hash write. fields must include
// the new "version" value. On conflict the version found in the store is
// returned together with db.ErrVersionMismatch.
func (s *Store) HSetVersioned(
	ctx context.Context, key string, fields map[string]string, expectedVersion int,
) (int, error) {
	args := make([]string, 0, 1+2*len(fields))
	args = append(args, strconv.Itoa(expectedVersion))
	for k, v := range fields {
		args = append(args, k, v)
	}

	raw, err := hsetVersionedScript.Exec(ctx, s.client, []string{key}, args).ToArray()
	if err != nil {
		return 0, &db.Error{Op: db.OpEval, Err: err}
	}
	if len(raw) != 2 {
		return 0, &db.Error{Op: db.OpEval, Err: fmt.Errorf("unexpected script reply of %d elements", len(raw))}
	}

	ok, err := raw[0].AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpEval, Err: err}
	}
	version, err := raw[1].AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpEval, Err: err}
	}

	if ok == 0 {
		return int(version), db.ErrVersionMismatch
	}
	return int(version), nil
}
