package relq

import (
	"context"
	"strings"
	"testing"
)

// fakeExecutor records every command it is handed and answers from a
// scripted responder.
type fakeExecutor struct {
	commands []string
	argLog   [][]interface{}
	respond  func(command string, args []interface{}) []Record
	err      error
}

func (f *fakeExecutor) Execute(ctx context.Context, command string, args []interface{}, shape ResultShape) ([]Record, error) {
	f.commands = append(f.commands, command)
	f.argLog = append(f.argLog, args)
	if f.err != nil {
		return nil, f.err
	}
	if f.respond != nil {
		return f.respond(command, args), nil
	}
	return []Record{}, nil
}

func userEmailSchema(t *testing.T) (*Entity, *Entity) {
	t.Helper()
	schema := NewSchema()
	user := MustEntity("user", HasMany("email"))
	email := MustEntity("email", BelongsTo("user"))
	schema.Register(user, email)
	return user, email
}

func TestHasManyLazyFollowUp(t *testing.T) {
	user, _ := userEmailSchema(t)

	exec := &fakeExecutor{
		respond: func(command string, args []interface{}) []Record {
			if strings.Contains(command, `FROM "email"`) {
				return []Record{{"id": 10, "user_id": args[0]}}
			}
			return []Record{{"id": 1}, {"id": 2}}
		},
	}
	s := NewSession(exec)

	res, err := s.Exec(context.Background(), Select(user).With("email"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(exec.commands) != 3 {
		t.Fatalf("Expected 1 parent + 2 follow-up queries, got %d: %v", len(exec.commands), exec.commands)
	}
	wantFollowUp := `SELECT "email".* FROM "email" WHERE "email"."user_id" = ?`
	if exec.commands[1] != wantFollowUp {
		t.Errorf("Expected follow-up %q, got %q", wantFollowUp, exec.commands[1])
	}
	if exec.argLog[1][0] != 1 || exec.argLog[2][0] != 2 {
		t.Errorf("Expected per-row pk values [1] and [2], got %v and %v", exec.argLog[1], exec.argLog[2])
	}

	emails, ok := res.Rows[0]["email"].([]Record)
	if !ok || len(emails) != 1 {
		t.Fatalf("Expected one email record under 'email', got %v", res.Rows[0]["email"])
	}
	if emails[0]["user_id"] != 1 {
		t.Errorf("Expected the email matched against pk 1, got %v", emails[0]["user_id"])
	}
}

func TestHasManyEmptyParentIssuesNoFollowUps(t *testing.T) {
	user, _ := userEmailSchema(t)

	exec := &fakeExecutor{}
	s := NewSession(exec)

	res, err := s.Exec(context.Background(), Select(user).With("email"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(exec.commands) != 1 {
		t.Errorf("Expected only the parent query, got %d commands", len(exec.commands))
	}
	if len(res.Rows) != 0 {
		t.Errorf("Expected no rows, got %v", res.Rows)
	}
}

func TestBelongsToLaterNoMatchYieldsNil(t *testing.T) {
	schema := NewSchema()
	user := MustEntity("user", BelongsTo("account"))
	account := MustEntity("account")
	schema.Register(user, account)

	exec := &fakeExecutor{
		respond: func(command string, args []interface{}) []Record {
			if strings.Contains(command, `FROM "account"`) {
				return []Record{}
			}
			return []Record{{"id": 1, "account_id": 7}}
		},
	}
	s := NewSession(exec)

	res, err := s.Exec(context.Background(), Select(user).WithLater("account"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	wantFollowUp := `SELECT "account".* FROM "account" WHERE "account"."id" = ? LIMIT 1`
	if exec.commands[1] != wantFollowUp {
		t.Errorf("Expected follow-up %q, got %q", wantFollowUp, exec.commands[1])
	}
	if exec.argLog[1][0] != 7 {
		t.Errorf("Expected lookup keyed by the local fk value 7, got %v", exec.argLog[1])
	}
	if v, present := res.Rows[0]["account"]; !present || v != nil {
		t.Errorf("Expected a nil association, got %v", v)
	}
}

func TestBelongsToLaterNilForeignKeySkipsQuery(t *testing.T) {
	schema := NewSchema()
	user := MustEntity("user", BelongsTo("account"))
	account := MustEntity("account")
	schema.Register(user, account)

	exec := &fakeExecutor{
		respond: func(command string, args []interface{}) []Record {
			return []Record{{"id": 1, "account_id": nil}}
		},
	}
	s := NewSession(exec)

	res, err := s.Exec(context.Background(), Select(user).WithLater("account"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(exec.commands) != 1 {
		t.Errorf("Expected no follow-up for a nil fk, got %d commands", len(exec.commands))
	}
	if v, present := res.Rows[0]["account"]; !present || v != nil {
		t.Errorf("Expected a nil association, got %v", v)
	}
}

func TestHasOneLaterMatchesChildForeignKey(t *testing.T) {
	schema := NewSchema()
	user := MustEntity("user", HasOne("address"))
	address := MustEntity("address")
	schema.Register(user, address)

	exec := &fakeExecutor{
		respond: func(command string, args []interface{}) []Record {
			if strings.Contains(command, `FROM "address"`) {
				return []Record{{"id": 40, "user_id": args[0]}}
			}
			return []Record{{"id": 1}}
		},
	}
	s := NewSession(exec)

	res, err := s.Exec(context.Background(), Select(user).WithLater("address"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	wantFollowUp := `SELECT "address".* FROM "address" WHERE "address"."user_id" = ? LIMIT 1`
	if exec.commands[1] != wantFollowUp {
		t.Errorf("Expected follow-up %q, got %q", wantFollowUp, exec.commands[1])
	}
	addr, ok := res.Rows[0]["address"].(Record)
	if !ok {
		t.Fatalf("Expected a single record association, got %v", res.Rows[0]["address"])
	}
	if addr["id"] != 40 {
		t.Errorf("Expected address 40, got %v", addr["id"])
	}
}

func TestHasOneEagerJoin(t *testing.T) {
	schema := NewSchema()
	user := MustEntity("user", HasOne("address"))
	address := MustEntity("address")
	schema.Register(user, address)

	exec := &fakeExecutor{}
	s := NewSession(exec)

	_, err := s.Exec(context.Background(), Select(user).With("address"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := `SELECT "user".*, "address".* FROM "user"` +
		` LEFT JOIN "address" ON "user"."id" = "address"."user_id"`
	if exec.commands[0] != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, exec.commands[0])
	}
}

func TestEagerJoinBindsTargetEntityAlias(t *testing.T) {
	schema := NewSchema()
	user := MustEntity("user", HasOne("address"))
	address := MustEntity("address", Alias("a"))
	schema.Register(user, address)

	exec := &fakeExecutor{}
	s := NewSession(exec)

	_, err := s.Exec(context.Background(), Select(user).With("address"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := `SELECT "user".*, "a".* FROM "user"` +
		` LEFT JOIN "address" AS "a" ON "user"."id" = "a"."user_id"`
	if exec.commands[0] != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, exec.commands[0])
	}
}

func TestEagerRefinementMergesIntoParent(t *testing.T) {
	schema := NewSchema()
	user := MustEntity("user", HasOne("address"))
	address := MustEntity("address")
	schema.Register(user, address)

	exec := &fakeExecutor{}
	s := NewSession(exec)

	q := Select(user).With("address", func(c Query) Query {
		return c.Fields("street").Where(Eq("address.current", true)).OrderBy("street")
	})
	_, err := s.Exec(context.Background(), q)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := `SELECT "user".*, "address"."street" FROM "user"` +
		` LEFT JOIN "address" ON "user"."id" = "address"."user_id"` +
		` WHERE "address"."current" = ?` +
		` ORDER BY "address"."street" ASC`
	if exec.commands[0] != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, exec.commands[0])
	}
}

func TestManyToManyFollowUpThroughJoinTable(t *testing.T) {
	schema := NewSchema()
	user := MustEntity("user", ManyToMany("tag", JoinTable("user_tag")))
	tag := MustEntity("tag")
	schema.Register(user, tag)

	exec := &fakeExecutor{
		respond: func(command string, args []interface{}) []Record {
			if strings.Contains(command, `FROM "tag"`) {
				return []Record{{"id": 100, "name": "vip"}}
			}
			return []Record{{"id": 1}}
		},
	}
	s := NewSession(exec)

	res, err := s.Exec(context.Background(), Select(user).With("tag"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := `SELECT "tag".* FROM "tag"` +
		` INNER JOIN "user_tag" ON "user_tag"."tag_id" = "tag"."id"` +
		` WHERE "user_tag"."user_id" = ?`
	if exec.commands[1] != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, exec.commands[1])
	}
	if exec.argLog[1][0] != 1 {
		t.Errorf("Expected the parent pk as filter value, got %v", exec.argLog[1])
	}

	tags, ok := res.Rows[0]["tag"].([]Record)
	if !ok || len(tags) != 1 {
		t.Fatalf("Expected one tag under 'tag', got %v", res.Rows[0]["tag"])
	}
}

func TestManyToManyMissingJoinTableFailsAtUse(t *testing.T) {
	schema := NewSchema()
	user := MustEntity("user", ManyToMany("tag"))
	tag := MustEntity("tag")
	schema.Register(user, tag)

	exec := &fakeExecutor{}
	s := NewSession(exec)

	_, err := s.Exec(context.Background(), Select(user).With("tag"))
	if err == nil {
		t.Fatal("Expected a configuration error")
	}
	if !IsUnresolvedRelation(err) {
		t.Errorf("Expected unresolved relation error, got %v", err)
	}
	if !strings.Contains(err.Error(), `"tag"`) {
		t.Errorf("Expected the error to name the relation, got %v", err)
	}
	if len(exec.commands) != 0 {
		t.Errorf("Expected no commands executed, got %v", exec.commands)
	}
}

func TestNestedWithResolvesAgainstTarget(t *testing.T) {
	user, _ := userEmailSchema(t)

	exec := &fakeExecutor{
		respond: func(command string, args []interface{}) []Record {
			switch {
			case strings.Contains(command, `FROM "email"`):
				return []Record{{"id": 10, "user_id": 1}}
			case strings.Contains(command, `FROM "user" WHERE`):
				return []Record{{"id": 1, "name": "ana"}}
			default:
				return []Record{{"id": 1}}
			}
		},
	}
	s := NewSession(exec)

	q := Select(user).With("email", func(c Query) Query {
		return c.WithLater("user")
	})
	res, err := s.Exec(context.Background(), q)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(exec.commands) != 3 {
		t.Fatalf("Expected 3 queries (parent, email, nested user), got %v", exec.commands)
	}
	emails := res.Rows[0]["email"].([]Record)
	owner, ok := emails[0]["user"].(Record)
	if !ok {
		t.Fatalf("Expected nested association under 'user', got %v", emails[0]["user"])
	}
	if owner["name"] != "ana" {
		t.Errorf("Expected the nested owner row, got %v", owner)
	}
}

func TestRelationAliasKeysAssociation(t *testing.T) {
	schema := NewSchema()
	user := MustEntity("user", HasMany("email", RelAlias("mail")))
	email := MustEntity("email")
	schema.Register(user, email)

	exec := &fakeExecutor{
		respond: func(command string, args []interface{}) []Record {
			if strings.Contains(command, `FROM "email"`) {
				return []Record{{"id": 10}}
			}
			return []Record{{"id": 1}}
		},
	}
	s := NewSession(exec)

	res, err := s.Exec(context.Background(), Select(user).With("email"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	wantFollowUp := `SELECT "mail".* FROM "email" AS "mail" WHERE "mail"."user_id" = ?`
	if exec.commands[1] != wantFollowUp {
		t.Errorf("Expected follow-up %q, got %q", wantFollowUp, exec.commands[1])
	}
	if _, ok := res.Rows[0]["mail"]; !ok {
		t.Errorf("Expected rows associated under the alias 'mail', got %v", res.Rows[0])
	}
}

func TestWithUnknownRelation(t *testing.T) {
	user, _ := userEmailSchema(t)

	exec := &fakeExecutor{}
	s := NewSession(exec)

	_, err := s.Exec(context.Background(), Select(user).With("nope"))
	if err == nil {
		t.Fatal("Expected an error for an unknown relationship")
	}
	if !IsUnknownRelation(err) {
		t.Errorf("Expected unknown relation error, got %v", err)
	}
}

func TestWithOnBareTableFails(t *testing.T) {
	exec := &fakeExecutor{}
	s := NewSession(exec)

	_, err := s.Exec(context.Background(), Select("users").With("email"))
	if err == nil {
		t.Fatal("Expected an error for a bare table query")
	}
	if !IsInvalidEntity(err) {
		t.Errorf("Expected invalid entity error, got %v", err)
	}
}

func TestMultipleRelationshipsAllRun(t *testing.T) {
	schema := NewSchema()
	user := MustEntity("user",
		HasMany("email"),
		ManyToMany("tag", JoinTable("user_tag")),
	)
	email := MustEntity("email")
	tag := MustEntity("tag")
	schema.Register(user, email, tag)

	exec := &fakeExecutor{
		respond: func(command string, args []interface{}) []Record {
			switch {
			case strings.Contains(command, `FROM "email"`):
				return []Record{{"id": 10}}
			case strings.Contains(command, `FROM "tag"`):
				return []Record{{"id": 100}}
			default:
				return []Record{{"id": 1}}
			}
		},
	}
	s := NewSession(exec)

	res, err := s.Exec(context.Background(), Select(user).With("email").With("tag"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := res.Rows[0]["email"].([]Record); !ok {
		t.Error("Expected the email association to be loaded")
	}
	if _, ok := res.Rows[0]["tag"].([]Record); !ok {
		t.Error("Expected the tag association to be loaded")
	}
}
