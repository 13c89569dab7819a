package repo

import (
	"database/sql"

	"github.com/barbartender/bartender/internal/pkg/dbutil"
)

type sqlBase struct {
	db     *sql.DB
	driver string
}

func (b sqlBase) finalize(query string, args []interface{}) (string, []interface{}) {
	return dbutil.Finalize(b.driver, query, args)
}
