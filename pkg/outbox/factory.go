package outbox

import (
	"context"
	"database/sql"
	"fmt"

	"cloud.google.com/go/spanner"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/credsys/credit-pipeline/pkg/config"

	_ "github.com/lib/pq" // PostgreSQL driver
)

var NewSpannerStoreFactory = func(client *spanner.Client) Store {
	return NewSpannerStore(client)
}

// NewStore builds the outbox store matching the configured database type.
// For postgres the returned *sql.DB is shared with the entity repositories
// so staged events ride the same transaction.
func NewStore(ctx context.Context, cfg config.DbSettings) (Store, *sql.DB, error) {
	switch cfg.Type {
	case "postgres":
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgresStore(db), db, nil
	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
		if err != nil {
			return nil, nil, err
		}
		return NewMongoStore(client, cfg.Name, "outbox_events"), nil, nil
	case "spanner":
		client, err := spanner.NewClient(ctx, cfg.URI)
		if err != nil {
			return nil, nil, err
		}
		return NewSpannerStoreFactory(client), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported DB type: %s", cfg.Type)
	}
}
