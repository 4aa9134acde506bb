package feedbacks

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCreateDefaultsSourceAndLanguage(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	fb, err := svc.Create(context.Background(), CreateInput{
		Content: "  Pelayanannya ramah sekali  ",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if fb.Content != "Pelayanannya ramah sekali" {
		t.Errorf("content = %q, want trimmed", fb.Content)
	}
	if fb.Source != SourceManual {
		t.Errorf("source = %s, want manual default", fb.Source)
	}
	if fb.Language != "auto" {
		t.Errorf("language = %s, want auto default", fb.Language)
	}
	if fb.ID == "" || fb.CreatedAt.IsZero() {
		t.Error("id and created_at must be set")
	}
}

func TestCreateRejectsEmptyContent(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	if _, err := svc.Create(context.Background(), CreateInput{Content: "   "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestCreateContentLengthCap(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if _, err := svc.Create(context.Background(), CreateInput{Content: strings.Repeat("a", 5000)}); err != nil {
		t.Fatalf("content at the cap must be accepted: %v", err)
	}
	in := CreateInput{Content: strings.Repeat("a", 5001)}
	if _, err := svc.Create(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestCreateKeepsCollectorSource(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	for _, source := range []string{SourceTwitter, SourceGoogleMaps, SourceCSVImport, SourceAPI} {
		fb, err := svc.Create(context.Background(), CreateInput{
			Content: "feedback collected via " + source,
			Source:  source,
		})
		if err != nil {
			t.Fatalf("Create(%s): %v", source, err)
		}
		if fb.Source != source {
			t.Errorf("source = %s, want %s", fb.Source, source)
		}
	}
}

func TestCreateBatchValidatesBeforeWriting(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	_, err := svc.CreateBatch(context.Background(), []CreateInput{
		{Content: "valid feedback"},
		{Content: ""},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}

	items, err := repo.List(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %d, want 0 after aborted batch", len(items))
	}
}

func TestCreateBatchLimits(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if _, err := svc.CreateBatch(context.Background(), nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty batch err = %v, want ErrInvalidInput", err)
	}

	big := make([]CreateInput, 51)
	for i := range big {
		big[i] = CreateInput{Content: "x"}
	}
	if _, err := svc.CreateBatch(context.Background(), big); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("oversized batch err = %v, want ErrInvalidInput", err)
	}
}

func TestGetMissingFeedback(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
