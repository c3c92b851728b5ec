package relq

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSQLOnlyRendersWithoutExecuting(t *testing.T) {
	exec := &fakeExecutor{}
	s := NewSession(exec).SQLOnly()

	res, err := s.Exec(context.Background(), Select("users").Where(Eq("active", true)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(exec.commands) != 0 {
		t.Errorf("Expected the executor not to be contacted, got %v", exec.commands)
	}
	want := `SELECT "users".* FROM "users" WHERE "active" = ?`
	if res.SQL != want {
		t.Errorf("Expected %q, got %q", want, res.SQL)
	}
	if len(res.Args) != 1 || res.Args[0] != true {
		t.Errorf("Expected args [true], got %v", res.Args)
	}
	if res.Rows != nil {
		t.Errorf("Expected no rows, got %v", res.Rows)
	}
}

func TestQueryObjectModeYieldsTheQuery(t *testing.T) {
	exec := &fakeExecutor{}
	s := NewSession(exec).QueryOnly()

	res, err := s.Exec(context.Background(), Select("users").Limit(5))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(exec.commands) != 0 {
		t.Errorf("Expected the executor not to be contacted, got %v", exec.commands)
	}
	if res.Query == nil {
		t.Fatal("Expected the query representation")
	}
	if res.Query.Kind != KindSelect || res.Query.LimitN == nil || *res.Query.LimitN != 5 {
		t.Errorf("Expected the composed select back, got %+v", res.Query)
	}
}

func TestDryRunPrintsAndSynthesizesPlaceholders(t *testing.T) {
	schema := NewSchema()
	user := MustEntity("user", BelongsTo("account"))
	account := MustEntity("account")
	schema.Register(user, account)

	var buf bytes.Buffer
	exec := &fakeExecutor{}
	s := NewSession(exec, WithOutput(&buf)).DryRun()

	res, err := s.Exec(context.Background(), Select(user))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(exec.commands) != 0 {
		t.Errorf("Expected the executor not to be contacted, got %v", exec.commands)
	}
	want := "dry run :: SELECT \"user\".* FROM \"user\" :: []\n"
	if buf.String() != want {
		t.Errorf("Expected output %q, got %q", want, buf.String())
	}
	if len(res.Rows) != 1 {
		t.Fatalf("Expected one placeholder row, got %v", res.Rows)
	}
	if res.Rows[0]["id"] != "?" || res.Rows[0]["account_id"] != "?" {
		t.Errorf("Expected placeholder pk and belongs-to fk, got %v", res.Rows[0])
	}
}

func TestDryRunStillRunsFollowUps(t *testing.T) {
	user, _ := userEmailSchema(t)

	var buf bytes.Buffer
	exec := &fakeExecutor{}
	s := NewSession(exec, WithOutput(&buf)).DryRun()

	res, err := s.Exec(context.Background(), Select(user).With("email"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(exec.commands) != 0 {
		t.Errorf("Expected the executor not to be contacted, got %v", exec.commands)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected the parent and the follow-up printed, got %q", buf.String())
	}
	if !strings.Contains(lines[1], `FROM "email" WHERE "email"."user_id" = ?`) {
		t.Errorf("Expected the follow-up command printed, got %q", lines[1])
	}

	emails, ok := res.Rows[0]["email"].([]Record)
	if !ok || len(emails) != 1 || emails[0]["id"] != "?" {
		t.Errorf("Expected a placeholder email row associated, got %v", res.Rows[0]["email"])
	}
}

func TestModeDerivationDoesNotMutateSession(t *testing.T) {
	s := NewSession(&fakeExecutor{})
	d := s.DryRun()
	if s.mode != ModeExec {
		t.Errorf("Expected the base session to stay in exec mode, got %v", s.mode)
	}
	if d.mode != ModeDryRun {
		t.Errorf("Expected the derived session in dry-run mode, got %v", d.mode)
	}
}

func TestPrepareHooksRunOverInsertValues(t *testing.T) {
	user := MustEntity("user", Prepare(func(r Record) Record {
		r["name"] = strings.ToUpper(r["name"].(string))
		return r
	}))

	exec := &fakeExecutor{}
	s := NewSession(exec)

	q := Insert(user).Values(Record{"name": "ana"})
	_, err := s.Exec(context.Background(), q)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if exec.argLog[0][0] != "ANA" {
		t.Errorf("Expected the prepared value bound, got %v", exec.argLog[0])
	}
	if q.ValuesList[0]["name"] != "ana" {
		t.Errorf("Expected the composed query untouched, got %v", q.ValuesList[0])
	}
}

func TestPrepareHooksRunOverUpdateSet(t *testing.T) {
	user := MustEntity("user", Prepare(func(r Record) Record {
		r["version"] = 2
		return r
	}))

	exec := &fakeExecutor{}
	s := NewSession(exec)

	_, err := s.Exec(context.Background(), Update(user).Set("name", "bo").Where(Eq("id", 1)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := `UPDATE "user" SET "name" = ?, "version" = ? WHERE "id" = ?`
	if exec.commands[0] != want {
		t.Errorf("Expected %q, got %q", want, exec.commands[0])
	}
}

func TestTransformsApplyToSelectedRows(t *testing.T) {
	user := MustEntity("user", Transform(func(r Record) Record {
		r["name"] = strings.ToUpper(r["name"].(string))
		return r
	}))

	exec := &fakeExecutor{
		respond: func(command string, args []interface{}) []Record {
			return []Record{{"id": 1, "name": "ana"}}
		},
	}
	s := NewSession(exec)

	res, err := s.Exec(context.Background(), Select(user))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.Rows[0]["name"] != "ANA" {
		t.Errorf("Expected the transformed row, got %v", res.Rows[0])
	}
}

func TestTransformsSkippedForWrites(t *testing.T) {
	called := false
	user := MustEntity("user", Transform(func(r Record) Record {
		called = true
		return r
	}))

	exec := &fakeExecutor{
		respond: func(command string, args []interface{}) []Record {
			return []Record{{"rows_affected": int64(1)}}
		},
	}
	s := NewSession(exec)

	_, err := s.Exec(context.Background(), Delete(user).Where(Eq("id", 1)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if called {
		t.Error("Expected transforms not to run for a delete")
	}
}

func TestExecutorErrorSurfacesAndSkipsHooks(t *testing.T) {
	sentinel := errors.New("connection refused")
	exec := &fakeExecutor{err: sentinel}
	s := NewSession(exec)

	ran := false
	q := Select("users").PostQuery(func(rows []Record) []Record {
		ran = true
		return rows
	})
	_, err := s.Exec(context.Background(), q)
	if !errors.Is(err, sentinel) {
		t.Errorf("Expected the executor error unchanged, got %v", err)
	}
	if ran {
		t.Error("Expected post-query hooks skipped after an execution failure")
	}
}

func TestPostQueriesRunInOrder(t *testing.T) {
	exec := &fakeExecutor{
		respond: func(command string, args []interface{}) []Record {
			return []Record{{"seq": "r"}}
		},
	}
	s := NewSession(exec)

	q := Select("users").
		PostQuery(func(rows []Record) []Record {
			rows[0]["seq"] = rows[0]["seq"].(string) + "a"
			return rows
		}).
		PostQuery(func(rows []Record) []Record {
			rows[0]["seq"] = rows[0]["seq"].(string) + "b"
			return rows
		})
	res, err := s.Exec(context.Background(), q)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.Rows[0]["seq"] != "rab" {
		t.Errorf("Expected hooks applied left to right, got %v", res.Rows[0]["seq"])
	}
}

func TestCompositionErrorSurfacesAtExec(t *testing.T) {
	exec := &fakeExecutor{}
	s := NewSession(exec)

	_, err := s.Exec(context.Background(), Select(42))
	if err == nil {
		t.Fatal("Expected the recorded composition error")
	}
	if !IsInvalidEntity(err) {
		t.Errorf("Expected invalid entity error, got %v", err)
	}
	if len(exec.commands) != 0 {
		t.Errorf("Expected no commands executed, got %v", exec.commands)
	}
}

func TestSessionVerbHelpers(t *testing.T) {
	exec := &fakeExecutor{
		respond: func(command string, args []interface{}) []Record {
			return []Record{{"id": 1}}
		},
	}
	s := NewSession(exec)
	ctx := context.Background()

	rows, err := s.Select(ctx, "users", func(q Query) Query {
		return q.Where(Eq("id", 1)).Limit(1)
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("Expected one row, got %v", rows)
	}
	want := `SELECT "users".* FROM "users" WHERE "id" = ? LIMIT 1`
	if exec.commands[0] != want {
		t.Errorf("Expected %q, got %q", want, exec.commands[0])
	}

	_, err = s.Insert(ctx, "users", func(q Query) Query {
		return q.Values(Record{"name": "ana"})
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.HasPrefix(exec.commands[1], `INSERT INTO "users"`) {
		t.Errorf("Expected an insert, got %q", exec.commands[1])
	}

	_, err = s.Update(ctx, "users", func(q Query) Query {
		return q.Set("name", "bo").Where(Eq("id", 1))
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.HasPrefix(exec.commands[2], `UPDATE "users"`) {
		t.Errorf("Expected an update, got %q", exec.commands[2])
	}

	_, err = s.Delete(ctx, "users", func(q Query) Query {
		return q.Where(Eq("id", 1))
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.HasPrefix(exec.commands[3], `DELETE FROM "users"`) {
		t.Errorf("Expected a delete, got %q", exec.commands[3])
	}
}
