package chi

import (
	"context"

	"github.com/arcadia-shop/persona/internal/domain/event"
	domprofile "github.com/arcadia-shop/persona/internal/domain/profile"
	"github.com/arcadia-shop/persona/internal/domain/search/query"
	"github.com/arcadia-shop/persona/internal/domain/search/result"
	"github.com/arcadia-shop/persona/internal/repository/corpus"
)

// searchRunner executes a validated search query.
type searchRunner interface {
	Search(ctx context.Context, q query.Query) (result.Result, error)
}

// profileService serves profile reads and recommendations.
type profileService interface {
	Get(ctx context.Context, userID string) (domprofile.Profile, error)
	Recommend(ctx context.Context, userID string, limit int) ([]corpus.Hit, error)
}

// eventPublisher appends behavioral events to the stream.
type eventPublisher interface {
	Publish(ctx context.Context, msg event.Message) (string, error)
}

// deadLetterReader reports the dead-letter queue depth.
type deadLetterReader interface {
	Len(ctx context.Context) (int64, error)
}
