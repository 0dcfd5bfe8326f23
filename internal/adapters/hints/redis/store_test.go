package redishints

import (
	"context"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestStore_AppendAndLoad_SetSemantics(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewStore(mr.Addr(), "")

	ctx := context.Background()

	if err := s.Append(ctx, "animalSuggestions", "Rex", "Mia"); err != nil {
		t.Fatalf("append: %v", err)
	}
	// Duplicados y vacíos se absorben
	if err := s.Append(ctx, "animalSuggestions", "Rex", "  ", "Luna"); err != nil {
		t.Fatalf("append #2: %v", err)
	}

	got, err := s.Load(ctx, "animalSuggestions")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sort.Strings(got)

	want := []string{"Luna", "Mia", "Rex"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestStore_Load_MissingKeyIsEmpty(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewStore(mr.Addr(), "")

	got, err := s.Load(context.Background(), "tutorSuggestions")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
}

func TestStore_KeysAreIndependent(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewStore(mr.Addr(), "")

	ctx := context.Background()
	if err := s.Append(ctx, "animalSuggestions", "Rex"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, "tutorSuggestions", "Ana"); err != nil {
		t.Fatalf("append: %v", err)
	}

	animals, _ := s.Load(ctx, "animalSuggestions")
	tutors, _ := s.Load(ctx, "tutorSuggestions")
	if len(animals) != 1 || animals[0] != "Rex" {
		t.Fatalf("unexpected animals: %v", animals)
	}
	if len(tutors) != 1 || tutors[0] != "Ana" {
		t.Fatalf("unexpected tutors: %v", tutors)
	}
}
