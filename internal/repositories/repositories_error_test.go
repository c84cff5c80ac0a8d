package repositories

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/desertthunder/reelq/internal/shared"
)

func TestActionRepositoryErrors(t *testing.T) {
	ctx := context.Background()
	dbErr := errors.New("database is locked")

	t.Run("GetAll", func(t *testing.T) {
		t.Run("QueryError", func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create sqlmock: %v", err)
			}
			defer db.Close()

			mock.ExpectQuery("SELECT (.+) FROM queued_actions").WillReturnError(dbErr)

			_, err = NewActionRepository(db).GetAll(ctx)
			if !errors.Is(err, dbErr) {
				t.Errorf("expected wrapped query error, got %v", err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})

		t.Run("CorruptHeaders", func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create sqlmock: %v", err)
			}
			defer db.Close()

			rows := sqlmock.NewRows([]string{"id", "type", "url", "method", "body", "headers", "timestamp", "retry_count"}).
				AddRow("a1", "ADD_TO_WATCHLIST", "/api/watchlist", "POST", "", "{not json", int64(1000), 0)
			mock.ExpectQuery("SELECT (.+) FROM queued_actions").WillReturnRows(rows)

			_, err = NewActionRepository(db).GetAll(ctx)
			if err == nil || !strings.Contains(err.Error(), "decode headers") {
				t.Errorf("expected header decode error, got %v", err)
			}
		})
	})

	t.Run("Put", func(t *testing.T) {
		t.Run("UpdateError", func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create sqlmock: %v", err)
			}
			defer db.Close()

			mock.ExpectExec("UPDATE queued_actions").WillReturnError(dbErr)

			err = NewActionRepository(db).Put(ctx, testAction("a1", 1000))
			if !errors.Is(err, dbErr) {
				t.Errorf("expected wrapped update error, got %v", err)
			}
		})

		t.Run("SequenceError", func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create sqlmock: %v", err)
			}
			defer db.Close()

			mock.ExpectExec("UPDATE queued_actions SET").WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectBegin()
			mock.ExpectExec("UPDATE queued_actions_sequence").WillReturnError(dbErr)
			mock.ExpectRollback()

			err = NewActionRepository(db).Put(ctx, testAction("a1", 1000))
			if !errors.Is(err, dbErr) {
				t.Errorf("expected wrapped sequence error, got %v", err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})

		t.Run("InsertError", func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create sqlmock: %v", err)
			}
			defer db.Close()

			mock.ExpectExec("UPDATE queued_actions SET").WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectBegin()
			mock.ExpectExec("UPDATE queued_actions_sequence").WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectQuery("SELECT value FROM queued_actions_sequence").
				WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(7)))
			mock.ExpectCommit()
			mock.ExpectExec("INSERT INTO queued_actions").
				WithArgs("a1", int64(7), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
				WillReturnError(dbErr)

			err = NewActionRepository(db).Put(ctx, testAction("a1", 1000))
			if !errors.Is(err, dbErr) {
				t.Errorf("expected wrapped insert error, got %v", err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	})

	t.Run("Update", func(t *testing.T) {
		t.Run("ExecError", func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create sqlmock: %v", err)
			}
			defer db.Close()

			mock.ExpectExec("UPDATE queued_actions").WillReturnError(dbErr)

			err = NewActionRepository(db).Update(ctx, testAction("a1", 1000))
			if !errors.Is(err, dbErr) {
				t.Errorf("expected wrapped update error, got %v", err)
			}
		})

		t.Run("NoRows", func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create sqlmock: %v", err)
			}
			defer db.Close()

			mock.ExpectExec("UPDATE queued_actions SET").WillReturnResult(sqlmock.NewResult(0, 0))

			err = NewActionRepository(db).Update(ctx, testAction("a1", 1000))
			if !errors.Is(err, shared.ErrActionNotFound) {
				t.Errorf("expected ErrActionNotFound, got %v", err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("expected no insert after a missed update: %v", err)
			}
		})
	})

	t.Run("Delete", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create sqlmock: %v", err)
		}
		defer db.Close()

		mock.ExpectExec("DELETE FROM queued_actions WHERE id = ?").WithArgs("a1").WillReturnError(dbErr)

		if err := NewActionRepository(db).Delete(ctx, "a1"); !errors.Is(err, dbErr) {
			t.Errorf("expected wrapped delete error, got %v", err)
		}
	})

	t.Run("Claim", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create sqlmock: %v", err)
		}
		defer db.Close()

		mock.ExpectExec("UPDATE queued_actions").
			WithArgs("p1", sqlmock.AnyArg(), "a1", sqlmock.AnyArg(), "p1").
			WillReturnError(dbErr)

		ok, err := NewActionRepository(db).Claim(ctx, "a1", "p1", time.Minute)
		if ok || !errors.Is(err, dbErr) {
			t.Errorf("expected failed claim with wrapped error, got ok=%v err=%v", ok, err)
		}
	})
}

func TestDeadLetterRepositoryErrors(t *testing.T) {
	ctx := context.Background()
	dbErr := errors.New("disk I/O error")

	t.Run("Record", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create sqlmock: %v", err)
		}
		defer db.Close()

		mock.ExpectExec("INSERT INTO dead_letters").
			WithArgs(sqlmock.AnyArg(), "a1", "ADD_TO_WATCHLIST", "/api/watchlist", "POST", sqlmock.AnyArg(), sqlmock.AnyArg(), int64(1000), 0, "boom", sqlmock.AnyArg()).
			WillReturnError(dbErr)

		if err := NewDeadLetterRepository(db).Record(ctx, testAction("a1", 1000), "boom"); !errors.Is(err, dbErr) {
			t.Errorf("expected wrapped insert error, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create sqlmock: %v", err)
		}
		defer db.Close()

		mock.ExpectQuery("SELECT (.+) FROM dead_letters").WillReturnError(dbErr)

		if _, err := NewDeadLetterRepository(db).List(ctx); !errors.Is(err, dbErr) {
			t.Errorf("expected wrapped query error, got %v", err)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create sqlmock: %v", err)
		}
		defer db.Close()

		mock.ExpectExec("DELETE FROM dead_letters").WillReturnError(dbErr)

		if _, err := NewDeadLetterRepository(db).Clear(ctx); !errors.Is(err, dbErr) {
			t.Errorf("expected wrapped delete error, got %v", err)
		}
	})
}
