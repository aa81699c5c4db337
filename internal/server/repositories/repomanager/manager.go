package repomanager

import (
	"context"
	"database/sql"

	"github.com/bily-amin/habitica/internal/dbx"
	"github.com/bily-amin/habitica/internal/server/repositories/challenges"
	"github.com/bily-amin/habitica/internal/server/repositories/groups"
	"github.com/bily-amin/habitica/internal/server/repositories/members"
	"github.com/bily-amin/habitica/internal/server/repositories/tags"
	"github.com/bily-amin/habitica/internal/server/repositories/tasks"
	"github.com/bily-amin/habitica/internal/server/repositories/users"
)

// RepositoryManager hands out repositories bound to a connection or a
// transaction, so services can compose them inside dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Groups(db dbx.DBTX) groups.Repository
	Challenges(db dbx.DBTX) challenges.Repository
	Members(db dbx.DBTX) members.Repository
	Tasks(db dbx.DBTX) tasks.Repository
	Tags(db dbx.DBTX) tags.Repository
}
