package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/contactform/backend/internal/apperr"
	"github.com/contactform/backend/internal/database"
	"github.com/contactform/backend/internal/model"
	"github.com/contactform/backend/internal/repository"
)

// ---------------------------------------------------------------------------
// mockContactRepository: in-memory stub for testing
// ---------------------------------------------------------------------------

type mockContactRepository struct {
	createFunc   func(ctx context.Context, in model.ContactInput) (*model.Contact, error)
	findByIDFunc func(ctx context.Context, id int64) (*model.Contact, error)
	findPageFunc func(ctx context.Context, limit, offset int) ([]*model.Contact, error)
	countFunc    func(ctx context.Context) (int64, error)
}

func (m *mockContactRepository) Create(ctx context.Context, in model.ContactInput) (*model.Contact, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, in)
	}
	return &model.Contact{ID: 1, Name: in.Name, Email: in.Email, Message: in.Message, CreatedAt: time.Now()}, nil
}

func (m *mockContactRepository) FindByID(ctx context.Context, id int64) (*model.Contact, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockContactRepository) FindPage(ctx context.Context, limit, offset int) ([]*model.Contact, error) {
	if m.findPageFunc != nil {
		return m.findPageFunc(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockContactRepository) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

var _ repository.ContactRepository = (*mockContactRepository)(nil)

// ---------------------------------------------------------------------------
// Create tests
// ---------------------------------------------------------------------------

func TestContactService_Create_ReturnsStoredRecord(t *testing.T) {
	var got model.ContactInput
	mock := &mockContactRepository{
		createFunc: func(ctx context.Context, in model.ContactInput) (*model.Contact, error) {
			got = in
			return &model.Contact{ID: 42, Name: in.Name, Email: in.Email, Message: in.Message}, nil
		},
	}
	svc := NewContactService(mock)

	in := model.ContactInput{Name: "Ada", Email: "ada@example.com", Message: "Hello there, world"}
	c, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != in {
		t.Errorf("repository received %+v, want %+v", got, in)
	}
	if c.ID != 42 {
		t.Errorf("expected id=42, got %d", c.ID)
	}
}

func TestContactService_Create_StoreFailureIsInternal(t *testing.T) {
	cause := &database.ConnectionError{Op: "acquire", Err: errors.New("connection refused")}
	mock := &mockContactRepository{
		createFunc: func(ctx context.Context, in model.ContactInput) (*model.Contact, error) {
			return nil, cause
		},
	}
	svc := NewContactService(mock)

	_, err := svc.Create(context.Background(), model.ContactInput{Name: "Ada"})
	e, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected *apperr.Error, got %T", err)
	}
	if e.Status != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", e.Status)
	}
	if e.Message != "Failed to create contact" {
		t.Errorf("unexpected message %q", e.Message)
	}
	if !errors.Is(err, cause) {
		t.Error("expected the store error to stay in the chain")
	}
}

// ---------------------------------------------------------------------------
// GetByID tests
// ---------------------------------------------------------------------------

func TestContactService_GetByID_Found(t *testing.T) {
	mock := &mockContactRepository{
		findByIDFunc: func(ctx context.Context, id int64) (*model.Contact, error) {
			return &model.Contact{ID: id, Name: "Ada"}, nil
		},
	}
	svc := NewContactService(mock)

	c, err := svc.GetByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID != 7 {
		t.Errorf("expected id=7, got %d", c.ID)
	}
}

func TestContactService_GetByID_NotFound(t *testing.T) {
	svc := NewContactService(&mockContactRepository{})

	_, err := svc.GetByID(context.Background(), 999)
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	e, _ := apperr.As(err)
	if e.Message != "Contact not found" {
		t.Errorf("unexpected message %q", e.Message)
	}
	if e.Status != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", e.Status)
	}
}

func TestContactService_GetByID_PassesStoreErrorsThrough(t *testing.T) {
	qe := &database.QueryError{Code: "22P02", Err: errors.New("invalid input syntax")}
	mock := &mockContactRepository{
		findByIDFunc: func(ctx context.Context, id int64) (*model.Contact, error) {
			return nil, qe
		},
	}
	svc := NewContactService(mock)

	_, err := svc.GetByID(context.Background(), 1)
	var got *database.QueryError
	if !errors.As(err, &got) || got.Code != "22P02" {
		t.Errorf("expected QueryError 22P02, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// List tests
// ---------------------------------------------------------------------------

func TestContactService_List_Pagination(t *testing.T) {
	tests := []struct {
		name          string
		total         int64
		limit, offset int
		wantPage      int
		wantPages     int
	}{
		{name: "empty store", total: 0, limit: 100, offset: 0, wantPage: 1, wantPages: 0},
		{name: "single partial page", total: 5, limit: 100, offset: 0, wantPage: 1, wantPages: 1},
		{name: "exact multiple", total: 20, limit: 10, offset: 10, wantPage: 2, wantPages: 2},
		{name: "remainder page", total: 21, limit: 10, offset: 20, wantPage: 3, wantPages: 3},
		{name: "page past the end", total: 3, limit: 2, offset: 8, wantPage: 5, wantPages: 2},
		{name: "no limit uses default size", total: 250, limit: 0, offset: 0, wantPage: 1, wantPages: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit, gotOffset int
			mock := &mockContactRepository{
				findPageFunc: func(ctx context.Context, limit, offset int) ([]*model.Contact, error) {
					gotLimit, gotOffset = limit, offset
					return []*model.Contact{}, nil
				},
				countFunc: func(ctx context.Context) (int64, error) { return tt.total, nil },
			}
			svc := NewContactService(mock)

			page, err := svc.List(context.Background(), model.ListOptions{Limit: tt.limit, Offset: tt.offset})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotLimit != tt.limit || gotOffset != tt.offset {
				t.Errorf("repository got limit=%d offset=%d", gotLimit, gotOffset)
			}
			if page.Total != tt.total {
				t.Errorf("total = %d, want %d", page.Total, tt.total)
			}
			if page.Page != tt.wantPage {
				t.Errorf("page = %d, want %d", page.Page, tt.wantPage)
			}
			if page.TotalPages != tt.wantPages {
				t.Errorf("totalPages = %d, want %d", page.TotalPages, tt.wantPages)
			}
		})
	}
}

func TestContactService_List_NilPageBecomesEmpty(t *testing.T) {
	svc := NewContactService(&mockContactRepository{})

	page, err := svc.List(context.Background(), model.ListOptions{Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Contacts == nil {
		t.Fatal("expected a non-nil empty slice")
	}
	if len(page.Contacts) != 0 {
		t.Errorf("expected no contacts, got %d", len(page.Contacts))
	}
}

func TestContactService_List_CountFailure(t *testing.T) {
	boom := errors.New("count failed")
	mock := &mockContactRepository{
		countFunc: func(ctx context.Context) (int64, error) { return 0, boom },
	}
	svc := NewContactService(mock)

	if _, err := svc.List(context.Background(), model.ListOptions{Limit: 10}); !errors.Is(err, boom) {
		t.Errorf("expected count error, got %v", err)
	}
}
