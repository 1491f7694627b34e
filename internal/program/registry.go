package program

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Logger defines the logging interface used by the Registry and Engine.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides program management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-invalidating CRUD operations.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Program // Cached programs by ID
	cacheMu sync.RWMutex        // Protects cache
	logger  Logger
}

// NewRegistry creates a new program registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Program),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all programs from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	programs, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading programs: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	// Clear and rebuild cache with deep copies
	r.cache = make(map[string]*Program, len(programs))
	for i := range programs {
		p := programs[i]
		r.cache[p.ID] = p.DeepCopy()
	}

	r.logger.Info("program cache refreshed", "count", len(programs))
	return nil
}

// Get retrieves a program by ID.
// The returned program is a deep copy; callers can safely modify it.
func (r *Registry) Get(_ context.Context, id string) (*Program, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}
	return nil, ErrProgramNotFound
}

// GetBySlug retrieves a program by its slug.
// The returned program is a deep copy.
func (r *Registry) GetBySlug(_ context.Context, slug string) (*Program, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	for _, p := range r.cache {
		if p.Slug == slug {
			return p.DeepCopy(), nil
		}
	}
	return nil, ErrProgramNotFound
}

// List retrieves all programs from the cache.
// Returns deep copies sorted by sort_order then name for deterministic ordering.
func (r *Registry) List(_ context.Context) ([]Program, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	programs := make([]Program, 0, len(r.cache))
	for _, p := range r.cache {
		programs = append(programs, *p.DeepCopy())
	}
	sortPrograms(programs)
	return programs, nil
}

// sortPrograms sorts programs by sort_order then name, matching the DB query ordering.
func sortPrograms(programs []Program) {
	sort.Slice(programs, func(i, j int) bool {
		if programs[i].SortOrder != programs[j].SortOrder {
			return programs[i].SortOrder < programs[j].SortOrder
		}
		return programs[i].Name < programs[j].Name
	})
}

// Create validates, persists, and caches a new program.
func (r *Registry) Create(ctx context.Context, p *Program) error {
	// Generate ID and slug if not provided
	if p.ID == "" {
		p.ID = GenerateID()
	}
	if p.Slug == "" {
		p.Slug = GenerateSlug(p.Name)
	}

	// Validate
	if err := ValidateProgram(p); err != nil {
		return err
	}

	// Persist
	if err := r.repo.Create(ctx, p); err != nil {
		return err
	}

	// Update cache
	r.cacheMu.Lock()
	r.cache[p.ID] = p.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("program created", "id", p.ID, "name", p.Name)
	return nil
}

// Update validates, persists, and updates the cached program.
func (r *Registry) Update(ctx context.Context, p *Program) error {
	// Validate
	if err := ValidateProgram(p); err != nil {
		return err
	}

	// Persist
	if err := r.repo.Update(ctx, p); err != nil {
		return err
	}

	// Update cache
	r.cacheMu.Lock()
	r.cache[p.ID] = p.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("program updated", "id", p.ID, "name", p.Name)
	return nil
}

// Delete removes a program from persistence and cache.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("program deleted", "id", id)
	return nil
}

// Count returns the number of cached programs.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
