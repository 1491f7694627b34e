package program

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-radio/internal/transmitter"
)

// mockRepository is an in-memory implementation of Repository for testing.
type mockRepository struct {
	programs   map[string]*Program
	executions map[string]*Execution
	mu         sync.RWMutex
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		programs:   make(map[string]*Program),
		executions: make(map[string]*Execution),
	}
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*Program, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.programs[id]
	if !ok {
		return nil, ErrProgramNotFound
	}
	return p.DeepCopy(), nil
}

func (m *mockRepository) GetBySlug(_ context.Context, slug string) (*Program, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.programs {
		if p.Slug == slug {
			return p.DeepCopy(), nil
		}
	}
	return nil, ErrProgramNotFound
}

func (m *mockRepository) List(_ context.Context) ([]Program, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	programs := make([]Program, 0, len(m.programs))
	for _, p := range m.programs {
		programs = append(programs, *p.DeepCopy())
	}
	return programs, nil
}

func (m *mockRepository) Create(_ context.Context, p *Program) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.programs[p.ID]; ok {
		return ErrProgramExists
	}
	for _, existing := range m.programs {
		if existing.Slug == p.Slug {
			return ErrProgramExists
		}
	}
	m.programs[p.ID] = p.DeepCopy()
	return nil
}

func (m *mockRepository) Update(_ context.Context, p *Program) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.programs[p.ID]; !ok {
		return ErrProgramNotFound
	}
	m.programs[p.ID] = p.DeepCopy()
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.programs[id]; !ok {
		return ErrProgramNotFound
	}
	delete(m.programs, id)
	return nil
}

func (m *mockRepository) CreateExecution(_ context.Context, exec *Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cpy := *exec
	m.executions[exec.ID] = &cpy
	return nil
}

func (m *mockRepository) GetExecution(_ context.Context, id string) (*Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.executions[id]
	if !ok {
		return nil, ErrExecutionNotFound
	}
	cpy := *e
	return &cpy, nil
}

func (m *mockRepository) ListExecutions(_ context.Context, programID string, limit int) ([]Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var execs []Execution
	for _, e := range m.executions {
		if e.ProgramID == programID {
			execs = append(execs, *e)
		}
	}
	if limit > 0 && len(execs) > limit {
		execs = execs[:limit]
	}
	return execs, nil
}

// testProgram builds a valid program for tests.
func testProgram(id, name, slug string) *Program {
	return &Program{
		ID:      id,
		Name:    name,
		Slug:    slug,
		Enabled: true,
		Source:  transmitter.SourceBRAM,
		Message: 0,
		Channels: []ChannelSetting{
			{Channel: 1, FrequencyHz: 540_000},
			{Channel: 2, FrequencyHz: 600_000},
		},
	}
}

func TestRegistry_RefreshCache(t *testing.T) {
	repo := newMockRepository()
	ctx := context.Background()

	repo.programs["p1"] = testProgram("p1", "Morning News", "morning-news")
	repo.programs["p2"] = testProgram("p2", "Evening Music", "evening-music")

	registry := NewRegistry(repo)

	if err := registry.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}

	if registry.Count() != 2 {
		t.Errorf("Count = %d, want 2", registry.Count())
	}
}

func TestRegistry_Get(t *testing.T) {
	repo := newMockRepository()
	repo.programs["p1"] = testProgram("p1", "Test", "test")

	registry := NewRegistry(repo)
	ctx := context.Background()
	_ = registry.RefreshCache(ctx)

	t.Run("cache hit", func(t *testing.T) {
		p, err := registry.Get(ctx, "p1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if p.Name != "Test" {
			t.Errorf("Name = %q, want %q", p.Name, "Test")
		}
		// Verify deep copy (modifying returned value shouldn't affect cache)
		p.Name = "Modified"
		p.Channels[0].FrequencyHz = 999_999
		original, _ := registry.Get(ctx, "p1")
		if original.Name != "Test" {
			t.Error("cache was mutated by returned copy")
		}
		if original.Channels[0].FrequencyHz != 540_000 {
			t.Errorf("cache channels corrupted: got %d", original.Channels[0].FrequencyHz)
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := registry.Get(ctx, "nonexistent")
		if !errors.Is(err, ErrProgramNotFound) {
			t.Errorf("expected ErrProgramNotFound, got: %v", err)
		}
	})
}

func TestRegistry_GetBySlug(t *testing.T) {
	repo := newMockRepository()
	repo.programs["p1"] = testProgram("p1", "Morning News", "morning-news")

	registry := NewRegistry(repo)
	ctx := context.Background()
	_ = registry.RefreshCache(ctx)

	t.Run("found", func(t *testing.T) {
		p, err := registry.GetBySlug(ctx, "morning-news")
		if err != nil {
			t.Fatalf("GetBySlug: %v", err)
		}
		if p.ID != "p1" {
			t.Errorf("ID = %q, want %q", p.ID, "p1")
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := registry.GetBySlug(ctx, "missing")
		if !errors.Is(err, ErrProgramNotFound) {
			t.Errorf("expected ErrProgramNotFound, got: %v", err)
		}
	})
}

func TestRegistry_List_Sorted(t *testing.T) {
	repo := newMockRepository()
	a := testProgram("p1", "Bravo", "bravo")
	a.SortOrder = 2
	b := testProgram("p2", "Alpha", "alpha")
	b.SortOrder = 1
	c := testProgram("p3", "Charlie", "charlie")
	c.SortOrder = 1
	repo.programs["p1"] = a
	repo.programs["p2"] = b
	repo.programs["p3"] = c

	registry := NewRegistry(repo)
	ctx := context.Background()
	_ = registry.RefreshCache(ctx)

	programs, err := registry.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(programs) != 3 {
		t.Fatalf("len = %d, want 3", len(programs))
	}

	// sort_order ascending, name breaks ties
	wantOrder := []string{"Alpha", "Charlie", "Bravo"}
	for i, want := range wantOrder {
		if programs[i].Name != want {
			t.Errorf("programs[%d].Name = %q, want %q", i, programs[i].Name, want)
		}
	}
}

func TestRegistry_Create(t *testing.T) {
	repo := newMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()
	_ = registry.RefreshCache(ctx)

	t.Run("generates id and slug", func(t *testing.T) {
		p := testProgram("", "Night Service", "")
		if err := registry.Create(ctx, p); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if p.ID == "" {
			t.Error("ID was not generated")
		}
		if p.Slug != "night-service" {
			t.Errorf("Slug = %q, want %q", p.Slug, "night-service")
		}

		// Cached immediately
		got, err := registry.Get(ctx, p.ID)
		if err != nil {
			t.Fatalf("Get after Create: %v", err)
		}
		if got.Name != "Night Service" {
			t.Errorf("cached Name = %q", got.Name)
		}
	})

	t.Run("rejects invalid program", func(t *testing.T) {
		p := testProgram("", "Bad", "")
		p.Channels = nil
		if err := registry.Create(ctx, p); !errors.Is(err, ErrInvalidChannels) {
			t.Errorf("expected ErrInvalidChannels, got: %v", err)
		}
	})

	t.Run("rejects duplicate slug", func(t *testing.T) {
		p := testProgram("", "Night Service 2", "night-service")
		if err := registry.Create(ctx, p); !errors.Is(err, ErrProgramExists) {
			t.Errorf("expected ErrProgramExists, got: %v", err)
		}
	})
}

func TestRegistry_Update(t *testing.T) {
	repo := newMockRepository()
	repo.programs["p1"] = testProgram("p1", "Original", "original")

	registry := NewRegistry(repo)
	ctx := context.Background()
	_ = registry.RefreshCache(ctx)

	p, _ := registry.Get(ctx, "p1")
	p.Name = "Renamed"
	p.Channels = []ChannelSetting{{Channel: 5, FrequencyHz: 1_200_000}}

	if err := registry.Update(ctx, p); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := registry.Get(ctx, "p1")
	if got.Name != "Renamed" {
		t.Errorf("Name = %q, want %q", got.Name, "Renamed")
	}
	if len(got.Channels) != 1 || got.Channels[0].Channel != 5 {
		t.Errorf("Channels not updated: %+v", got.Channels)
	}
}

func TestRegistry_Delete(t *testing.T) {
	repo := newMockRepository()
	repo.programs["p1"] = testProgram("p1", "Doomed", "doomed")

	registry := NewRegistry(repo)
	ctx := context.Background()
	_ = registry.RefreshCache(ctx)

	if err := registry.Delete(ctx, "p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := registry.Get(ctx, "p1"); !errors.Is(err, ErrProgramNotFound) {
		t.Errorf("expected ErrProgramNotFound after delete, got: %v", err)
	}
	if registry.Count() != 0 {
		t.Errorf("Count = %d, want 0", registry.Count())
	}

	t.Run("missing", func(t *testing.T) {
		if err := registry.Delete(ctx, "p1"); !errors.Is(err, ErrProgramNotFound) {
			t.Errorf("expected ErrProgramNotFound, got: %v", err)
		}
	})
}
