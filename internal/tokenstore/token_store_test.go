package tokenstore

import (
	"context"
	"errors"
	"testing"

	"kaspas-storefront/internal/domain"
	"kaspas-storefront/internal/storage"
)

type failingStorage struct {
	storage.Storage
	err error
}

func (f *failingStorage) Get(ctx context.Context, key string) (string, error) {
	return "", f.err
}

func (f *failingStorage) Delete(ctx context.Context, key string) error {
	return f.err
}

func TestStore_SetTokens(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		setup       func(s *Store)
		access      string
		refresh     string
		wantAccess  string
		wantRefresh string
	}{
		{
			name:        "both tokens",
			setup:       func(s *Store) {},
			access:      "T1",
			refresh:     "R1",
			wantAccess:  "T1",
			wantRefresh: "R1",
		},
		{
			name: "empty refresh keeps previous",
			setup: func(s *Store) {
				s.SetTokens(ctx, "T0", "R0")
			},
			access:      "T1",
			refresh:     "",
			wantAccess:  "T1",
			wantRefresh: "R0",
		},
		{
			name: "overwrite both",
			setup: func(s *Store) {
				s.SetTokens(ctx, "T0", "R0")
			},
			access:      "T2",
			refresh:     "R2",
			wantAccess:  "T2",
			wantRefresh: "R2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(storage.NewMemoryStorage())
			tt.setup(s)

			if err := s.SetTokens(ctx, tt.access, tt.refresh); err != nil {
				t.Fatalf("SetTokens() error = %v", err)
			}

			access, _ := s.AccessToken(ctx)
			if access != tt.wantAccess {
				t.Errorf("AccessToken() = %q, want %q", access, tt.wantAccess)
			}

			refresh, _ := s.RefreshToken(ctx)
			if refresh != tt.wantRefresh {
				t.Errorf("RefreshToken() = %q, want %q", refresh, tt.wantRefresh)
			}
		})
	}
}

func TestStore_ClearTokens(t *testing.T) {
	ctx := context.Background()
	s := New(storage.NewMemoryStorage())
	s.SetTokens(ctx, "T1", "R1")

	if err := s.ClearTokens(ctx); err != nil {
		t.Fatalf("ClearTokens() error = %v", err)
	}

	if access, err := s.AccessToken(ctx); access != "" || err != nil {
		t.Errorf("AccessToken() = %q, %v; want empty, nil", access, err)
	}
	if refresh, err := s.RefreshToken(ctx); refresh != "" || err != nil {
		t.Errorf("RefreshToken() = %q, %v; want empty, nil", refresh, err)
	}

	if err := s.ClearTokens(ctx); err != nil {
		t.Errorf("ClearTokens() on empty store error = %v", err)
	}
}

func TestStore_ReadFailure(t *testing.T) {
	boom := errors.New("disk unavailable")
	s := New(&failingStorage{Storage: storage.NewMemoryStorage(), err: boom})

	if _, err := s.AccessToken(context.Background()); !errors.Is(err, boom) {
		t.Errorf("AccessToken() error = %v, want %v", err, boom)
	}
	if err := s.ClearTokens(context.Background()); !errors.Is(err, boom) {
		t.Errorf("ClearTokens() error = %v, want %v", err, boom)
	}
}

func TestStore_User(t *testing.T) {
	ctx := context.Background()
	s := New(storage.NewMemoryStorage())

	user, err := s.User(ctx)
	if err != nil || user != nil {
		t.Fatalf("User() on empty store = %v, %v; want nil, nil", user, err)
	}

	want := &domain.User{ID: "u1", FirstName: "Ada", Email: "a@b.com", Role: domain.RoleAdmin}
	if err := s.SetUser(ctx, want); err != nil {
		t.Fatalf("SetUser() error = %v", err)
	}

	got, err := s.User(ctx)
	if err != nil {
		t.Fatalf("User() error = %v", err)
	}
	if got.ID != want.ID || got.Email != want.Email || !got.IsAdmin() {
		t.Errorf("User() = %+v, want %+v", got, want)
	}

	if err := s.ClearUser(ctx); err != nil {
		t.Fatalf("ClearUser() error = %v", err)
	}
	if got, _ := s.User(ctx); got != nil {
		t.Errorf("User() after ClearUser = %+v, want nil", got)
	}
}

func TestStore_UserCorrupt(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStorage()
	mem.Set(ctx, UserKey, "{not json")

	if _, err := New(mem).User(ctx); err == nil {
		t.Error("User() expected decode error but got none")
	}
}
