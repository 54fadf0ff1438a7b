package memdata

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gopanel/gopanel/data"
	"github.com/gopanel/gopanel/registry"
)

type Post struct {
	ID      int
	Title   string
	Content string
}

func newModel(t *testing.T) *registry.Model {
	t.Helper()
	r := registry.New()
	if _, err := r.RegisterApplication("blog", "Blog"); err != nil {
		t.Fatal(err)
	}
	m, err := r.RegisterModel("blog", Post{})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func seed(t *testing.T, s *Store, m *registry.Model, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= n; i++ {
		_, err := s.Create(ctx, m, data.Record{
			"Title":   fmt.Sprintf("Post %d", i),
			"Content": fmt.Sprintf("body %d", i),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestCreateAssignsSequentialKeys(t *testing.T) {
	m := newModel(t)
	s := New()
	ctx := context.Background()

	id1, err := s.Create(ctx, m, data.Record{"Title": "a"})
	if err != nil {
		t.Fatal(err)
	}
	id2, err := s.Create(ctx, m, data.Record{"Title": "b"})
	if err != nil {
		t.Fatal(err)
	}
	if id1 != "1" || id2 != "2" {
		t.Errorf("ids = %s, %s; want 1, 2", id1, id2)
	}
}

func TestCreateWithExplicitKey(t *testing.T) {
	m := newModel(t)
	s := New()
	ctx := context.Background()

	id, err := s.Create(ctx, m, data.Record{"ID": 42, "Title": "a"})
	if err != nil || id != "42" {
		t.Fatalf("Create = %q, %v; want 42", id, err)
	}
	if _, err := s.Create(ctx, m, data.Record{"ID": 42, "Title": "b"}); err == nil {
		t.Error("duplicate key create should fail")
	}
}

func TestFetchOne(t *testing.T) {
	m := newModel(t)
	s := New()
	seed(t, s, m, 3)
	ctx := context.Background()

	rec, err := s.FetchOne(ctx, m, "2")
	if err != nil {
		t.Fatal(err)
	}
	if rec["Title"] != "Post 2" {
		t.Errorf("Title = %v, want Post 2", rec["Title"])
	}

	if _, err := s.FetchOne(ctx, m, "99"); !errors.Is(err, data.ErrNoRecord) {
		t.Errorf("missing id err = %v, want ErrNoRecord", err)
	}
}

func TestPaginationWindow(t *testing.T) {
	m := newModel(t)
	s := New()
	seed(t, s, m, 10)
	ctx := context.Background()

	page, err := s.FetchAll(ctx, m, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 3 || page[0]["Title"] != "Post 1" {
		t.Errorf("first page = %v", page)
	}

	page, _ = s.FetchAll(ctx, m, 3, 9)
	if len(page) != 1 || page[0]["Title"] != "Post 10" {
		t.Errorf("last page = %v", page)
	}

	if page, _ = s.FetchAll(ctx, m, 3, 50); page != nil {
		t.Errorf("past-end page = %v, want nil", page)
	}
}

func TestProjectionRoundTrip(t *testing.T) {
	m := newModel(t)
	s := New()
	seed(t, s, m, 1)
	ctx := context.Background()

	got, err := s.FetchOneFields(ctx, m, "1", []string{"Title"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got["Title"] != "Post 1" {
		t.Fatalf("projection = %v, want only Title", got)
	}

	got["Title"] = "Renamed"
	if err := s.Update(ctx, m, "1", got); err != nil {
		t.Fatal(err)
	}

	// Updating the projected fields must not mutate anything outside them.
	full, err := s.FetchOne(ctx, m, "1")
	if err != nil {
		t.Fatal(err)
	}
	if full["Title"] != "Renamed" {
		t.Errorf("Title = %v, want Renamed", full["Title"])
	}
	if full["Content"] != "body 1" {
		t.Errorf("Content = %v, want untouched body 1", full["Content"])
	}
	if full["ID"] == nil {
		t.Error("ID lost by projected update")
	}
}

func TestUpdateIgnoresPrimaryKey(t *testing.T) {
	m := newModel(t)
	s := New()
	seed(t, s, m, 1)
	ctx := context.Background()

	if err := s.Update(ctx, m, "1", data.Record{"ID": 99, "Title": "x"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FetchOne(ctx, m, "1"); err != nil {
		t.Errorf("record no longer reachable under its key: %v", err)
	}
}

func TestSearch(t *testing.T) {
	m := newModel(t)
	s := New()
	ctx := context.Background()
	for _, title := range []string{"Go rocks", "Python rocks", "Go rules"} {
		if _, err := s.Create(ctx, m, data.Record{"Title": title, "Content": "c"}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Search(ctx, m, "go r", []string{"Title"}, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("search hits = %d, want 2", len(got))
	}
	// Case-insensitive.
	got, _ = s.Search(ctx, m, "PYTHON", []string{"Title"}, 10, 0)
	if len(got) != 1 {
		t.Errorf("case-insensitive search hits = %d, want 1", len(got))
	}
	// Fields outside the search set do not match.
	got, _ = s.Search(ctx, m, "c", []string{"Title"}, 10, 0)
	if len(got) != 0 {
		t.Errorf("search outside fields hits = %d, want 0", len(got))
	}
}

func TestDeleteReindexes(t *testing.T) {
	m := newModel(t)
	s := New()
	seed(t, s, m, 3)
	ctx := context.Background()

	if err := s.Delete(ctx, m, "2"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, m, "2"); !errors.Is(err, data.ErrNoRecord) {
		t.Errorf("second delete err = %v, want ErrNoRecord", err)
	}

	// Remaining records stay reachable after the shift.
	for _, id := range []string{"1", "3"} {
		if _, err := s.FetchOne(ctx, m, id); err != nil {
			t.Errorf("FetchOne(%s) after delete: %v", id, err)
		}
	}
	all, _ := s.FetchAll(ctx, m, 10, 0)
	if len(all) != 2 {
		t.Errorf("len = %d, want 2", len(all))
	}
}

func TestFetchedRecordsAreCopies(t *testing.T) {
	m := newModel(t)
	s := New()
	seed(t, s, m, 1)
	ctx := context.Background()

	rec, _ := s.FetchOne(ctx, m, "1")
	rec["Title"] = "mutated"

	again, _ := s.FetchOne(ctx, m, "1")
	if again["Title"] != "Post 1" {
		t.Errorf("store mutated through returned record: %v", again["Title"])
	}
}
