package pgvector

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/poiesic/ragdesk/vectorstore"
)

// undefinedTable is the PostgreSQL error code for a missing relation.
const undefinedTable = "42P01"

// translate maps a missing table to vectorstore.ErrCollectionNotFound.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, pgErr.Message)
	}
	return err
}
