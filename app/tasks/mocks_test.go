package tasks

import (
	"sync"
	"time"

	"github.com/lysyi3m/opml-comb/app/database"
	"github.com/lysyi3m/opml-comb/app/validation"
)

// MockSourceRepository keeps sources in memory
type MockSourceRepository struct {
	mu      sync.Mutex
	sources map[string]*database.Source
	err     error
}

func NewMockSourceRepository() *MockSourceRepository {
	return &MockSourceRepository{sources: make(map[string]*database.Source)}
}

func (m *MockSourceRepository) GetSource(name string) (*database.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	source, ok := m.sources[name]
	if !ok {
		return nil, nil
	}
	copied := *source
	return &copied, nil
}

func (m *MockSourceRepository) GetSources() ([]database.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sources []database.Source
	for _, s := range m.sources {
		sources = append(sources, *s)
	}
	return sources, m.err
}

func (m *MockSourceRepository) GetSourcesDue(now time.Time) ([]database.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sources []database.Source
	for _, s := range m.sources {
		if s.Enabled && (s.NextRunAt == nil || !s.NextRunAt.After(now)) {
			sources = append(sources, *s)
		}
	}
	return sources, m.err
}

func (m *MockSourceRepository) GetSourceCount() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sources), m.err
}

func (m *MockSourceRepository) UpsertSource(name, opmlPath string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if s, ok := m.sources[name]; ok {
		s.OPMLPath = opmlPath
		s.Enabled = enabled
		return nil
	}
	m.sources[name] = &database.Source{Name: name, OPMLPath: opmlPath, Enabled: enabled}
	return nil
}

func (m *MockSourceRepository) SetSourceEnabled(name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sources[name]; ok {
		s.Enabled = enabled
	}
	return m.err
}

func (m *MockSourceRepository) UpdateNextRun(name string, lastRun, nextRun time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if s, ok := m.sources[name]; ok {
		s.LastRunAt = &lastRun
		s.NextRunAt = &nextRun
	}
	return nil
}

// MockRunRepository records created runs
type MockRunRepository struct {
	mu      sync.Mutex
	runs    []database.Run
	results map[string][]validation.Result
	err     error
}

func NewMockRunRepository() *MockRunRepository {
	return &MockRunRepository{results: make(map[string][]validation.Result)}
}

func (m *MockRunRepository) GetLatestRun(sourceName string) (*database.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].SourceName == sourceName {
			run := m.runs[i]
			return &run, nil
		}
	}
	return nil, m.err
}

func (m *MockRunRepository) GetRunResults(runID string) ([]validation.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results[runID], m.err
}

func (m *MockRunRepository) GetRunCount(sourceName string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, run := range m.runs {
		if run.SourceName == sourceName {
			count++
		}
	}
	return count, m.err
}

func (m *MockRunRepository) CreateRun(run database.Run, results []validation.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, run)
	m.results[run.ID] = results
	return nil
}

var (
	_ database.SourceRepository = (*MockSourceRepository)(nil)
	_ database.RunRepository    = (*MockRunRepository)(nil)
)
