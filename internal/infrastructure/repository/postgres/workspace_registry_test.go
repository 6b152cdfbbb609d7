package postgres

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
)

func newRegistryWithMock(t *testing.T) (*WorkspaceRegistry, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &WorkspaceRegistry{db: db}, mock, func() { _ = db.Close() }
}

func TestListWorkspacesScansDescriptors(t *testing.T) {
	registry, mock, done := newRegistryWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"slug", "name", "tech_tags"}).
		AddRow("go-backend", "Go Backend", []byte(`["go","grpc"]`)).
		AddRow("web-knowledge", "Web Knowledge", []byte(`[]`))
	mock.ExpectQuery("SELECT slug, name, tech_tags").WillReturnRows(rows)

	got, err := registry.ListWorkspaces(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []domain.WorkspaceDescriptor{
		{Slug: "go-backend", Name: "Go Backend", TechTags: []string{"go", "grpc"}},
		{Slug: "web-knowledge", Name: "Web Knowledge", TechTags: []string{}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("descriptors = %+v, want %+v", got, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListWorkspacesPropagatesQueryError(t *testing.T) {
	registry, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT slug, name, tech_tags").
		WillReturnError(errors.New("connection refused"))

	if _, err := registry.ListWorkspaces(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListWorkspacesRejectsCorruptTags(t *testing.T) {
	registry, mock, done := newRegistryWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"slug", "name", "tech_tags"}).
		AddRow("go-backend", "Go Backend", []byte(`{broken`))
	mock.ExpectQuery("SELECT slug, name, tech_tags").WillReturnRows(rows)

	if _, err := registry.ListWorkspaces(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestUpsertWorkspaceMergesTags(t *testing.T) {
	registry, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO workspaces").
		WithArgs("web-knowledge", "Web Knowledge", []byte(`["python"]`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := registry.UpsertWorkspace(context.Background(), domain.WorkspaceDescriptor{
		Slug:     "web-knowledge",
		Name:     "Web Knowledge",
		TechTags: []string{"python"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertWorkspaceSendsEmptyTagArray(t *testing.T) {
	registry, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO workspaces").
		WithArgs("web-knowledge", "Web Knowledge", []byte(`[]`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := registry.UpsertWorkspace(context.Background(), domain.WorkspaceDescriptor{
		Slug: "web-knowledge",
		Name: "Web Knowledge",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaLocksBeforeDDL(t *testing.T) {
	registry, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(int64(2026031102)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS workspaces").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := registry.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
