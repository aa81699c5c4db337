package challenges

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bily-amin/habitica/internal/common"
	"github.com/bily-amin/habitica/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var cols = []string{"id", "name", "short_name", "summary", "description", "group_id", "leader_id",
	"prize", "member_count", "official", "tasks_order", "created_at", "updated_at"}

func challengeRow(rows *sqlmock.Rows, id string, prize string, members int) *sqlmock.Rows {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return rows.AddRow(id, "Run daily", "run", "", "", "g1", "u1", prize, members, false,
		`{"habits":[],"dailys":["t1"],"todos":[],"rewards":[]}`, now, now)
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	c := &models.Challenge{ID: "c1", Name: "Run daily", ShortName: "run", GroupID: "g1", LeaderID: "u1",
		Prize: decimal.NewFromInt(40)}
	now := time.Now()

	mock.ExpectQuery(`(?s)INSERT INTO challenges .* RETURNING created_at, updated_at`).
		WithArgs("c1", "Run daily", "run", "", "", "g1", "u1", decimal.NewFromInt(40), 0, false, c.TasksOrder).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if !c.CreatedAt.Equal(now) {
		t.Fatalf("created_at not populated: %v", c.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)INSERT INTO challenges`).WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &models.Challenge{ID: "c1"})
	if !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("want ErrorAlreadyExists, got %v", err)
	}
}

func TestGetByID_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT id, name, .* FROM challenges WHERE id = \$1`).
		WithArgs("c1").
		WillReturnRows(challengeRow(sqlmock.NewRows(cols), "c1", "40", 3))

	got, err := repo.GetByID(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.ID != "c1" || got.MemberCount != 3 || !got.Prize.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("unexpected challenge: %+v", got)
	}
	if len(got.TasksOrder.Dailys) != 1 || got.TasksOrder.Dailys[0] != "t1" {
		t.Fatalf("tasks order not decoded: %+v", got.TasksOrder)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM challenges WHERE id = \$1`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestGetByID_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM challenges WHERE id = \$1`).WithArgs("c1").WillReturnError(errors.New("db down"))

	_, err := repo.GetByID(context.Background(), "c1")
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	c := &models.Challenge{ID: "c1", Name: "Run daily", ShortName: "run"}
	mock.ExpectQuery(`(?s)UPDATE challenges\s+SET name = \$2, short_name = \$3, summary = \$4, description = \$5, updated_at = now\(\)\s+WHERE id = \$1\s+RETURNING id, name`).
		WithArgs("c1", "Run daily", "run", "", "").
		WillReturnRows(challengeRow(sqlmock.NewRows(cols), "c1", "40", 3))

	if err := repo.Update(context.Background(), c); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if c.MemberCount != 3 || len(c.TasksOrder.Dailys) != 1 {
		t.Fatalf("challenge not refreshed from stored row: %+v", c)
	}

	mock.ExpectQuery(`(?s)UPDATE challenges`).WillReturnError(sql.ErrNoRows)
	if err := repo.Update(context.Background(), c); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdate_LeavesTasksOrderAlone(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	c := &models.Challenge{ID: "c1", Name: "Run daily", ShortName: "run",
		TasksOrder: models.TasksOrder{Habits: []string{"stale"}}}
	mock.ExpectQuery(`UPDATE challenges`).
		WithArgs("c1", "Run daily", "run", "", "").
		WillReturnRows(challengeRow(sqlmock.NewRows(cols), "c1", "40", 1))

	if err := repo.Update(context.Background(), c); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if len(c.TasksOrder.Habits) != 0 || len(c.TasksOrder.Dailys) != 1 {
		t.Fatalf("tasks order should come from the stored row, got %+v", c.TasksOrder)
	}
}

func TestAppendTaskOrder(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)UPDATE challenges\s+SET tasks_order = jsonb_set\(\s*COALESCE\(tasks_order, '\{\}'::jsonb\),\s*ARRAY\[\$2::text\],.*\|\| to_jsonb\(\$3::text\)\),.*WHERE id = \$1\s+RETURNING tasks_order`

	mock.ExpectQuery(q).WithArgs("c1", "dailys", "t2").
		WillReturnRows(sqlmock.NewRows([]string{"tasks_order"}).
			AddRow(`{"habits":[],"dailys":["t1","t2"],"todos":[],"rewards":[]}`))

	order, err := repo.AppendTaskOrder(context.Background(), "c1", models.TaskDaily, "t2")
	if err != nil {
		t.Fatalf("AppendTaskOrder error: %v", err)
	}
	if len(order.Dailys) != 2 || order.Dailys[1] != "t2" {
		t.Fatalf("unexpected order: %+v", order)
	}

	mock.ExpectQuery(q).WithArgs("ghost", "habits", "t3").WillReturnError(sql.ErrNoRows)
	if _, err := repo.AppendTaskOrder(context.Background(), "ghost", models.TaskHabit, "t3"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}

	mock.ExpectQuery(q).WithArgs("c1", "todos", "t4").WillReturnError(errors.New("db down"))
	if _, err := repo.AppendTaskOrder(context.Background(), "c1", models.TaskTodo, "t4"); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAdjustMemberCount(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)UPDATE challenges SET member_count = member_count \+ \$2\s+WHERE id = \$1 AND member_count \+ \$2 >= 0\s+RETURNING member_count`

	mock.ExpectQuery(q).WithArgs("c1", 1).WillReturnRows(sqlmock.NewRows([]string{"member_count"}).AddRow(7))
	count, err := repo.AdjustMemberCount(context.Background(), "c1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 7 {
		t.Fatalf("want stored count 7, got %d", count)
	}

	mock.ExpectQuery(q).WithArgs("c1", -1).WillReturnError(sql.ErrNoRows)
	if _, err := repo.AdjustMemberCount(context.Background(), "c1", -1); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}

	mock.ExpectQuery(q).WithArgs("c1", 1).WillReturnError(errors.New("db err"))
	if _, err := repo.AdjustMemberCount(context.Background(), "c1", 1); err == nil {
		t.Fatal("expected error")
	}
}

func TestDelete_ReturnsRemovedRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)DELETE FROM challenges WHERE id = \$1 RETURNING id, name`).
		WithArgs("c1").
		WillReturnRows(challengeRow(sqlmock.NewRows(cols), "c1", "40", 2))

	got, err := repo.Delete(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if got.ID != "c1" || got.MemberCount != 2 {
		t.Fatalf("unexpected row: %+v", got)
	}

	mock.ExpectQuery(`(?s)DELETE FROM challenges`).WithArgs("c1").WillReturnError(sql.ErrNoRows)
	if _, err := repo.Delete(context.Background(), "c1"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("second delete: want ErrorNotFound, got %v", err)
	}
}

func TestListForUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(cols)
	challengeRow(rows, "c1", "4", 1)
	challengeRow(rows, "c2", "0", 0)

	mock.ExpectQuery(`(?s)FROM challenges c\s+WHERE c.leader_id = \$1.*ORDER BY c.official DESC, c.created_at DESC\s+LIMIT \$3 OFFSET \$4`).
		WithArgs("u1", "pub", 10, 20).
		WillReturnRows(rows)

	got, err := repo.ListForUser(context.Background(), "u1", "pub", 20, 10)
	if err != nil {
		t.Fatalf("ListForUser error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c1" || got[1].ID != "c2" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestListByGroup_Errors(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)FROM challenges\s+WHERE group_id = \$1`).WithArgs("g1").WillReturnError(errors.New("db err"))
	_, err := repo.ListByGroup(context.Background(), "g1")
	if err == nil || !regexp.MustCompile(`failed to select challenges: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped select error, got %v", err)
	}

	rows := challengeRow(sqlmock.NewRows(cols), "c1", "4", 1).RowError(0, errors.New("row-err"))
	mock.ExpectQuery(`(?s)FROM challenges\s+WHERE group_id = \$1`).WithArgs("g1").WillReturnRows(rows)
	if _, err := repo.ListByGroup(context.Background(), "g1"); err == nil {
		t.Fatal("expected row error")
	}
}
