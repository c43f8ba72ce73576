package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"rewards/internal/core"
	"rewards/internal/sources"
)

// Seed file names looked up by NewFromFiles.
const (
	NominationsFile = "nominations.json"
	RewardsFile     = "rewards.json"
	CategoriesFile  = "reward_categories.json"
	EmployeesFile   = "employees.json"
)

// Store is an in-memory source, mostly for local runs and tests.
type Store struct {
	mu          sync.Mutex
	nominations []core.Nomination
	rewards     []core.Reward
	categories  []core.RewardCategory
	employees   []core.Employee
}

var _ sources.Source = (*Store)(nil)

func New(noms []core.Nomination, rewards []core.Reward, cats []core.RewardCategory, emps []core.Employee) *Store {
	return &Store{
		nominations: append([]core.Nomination(nil), noms...),
		rewards:     append([]core.Reward(nil), rewards...),
		categories:  append([]core.RewardCategory(nil), cats...),
		employees:   append([]core.Employee(nil), emps...),
	}
}

// NewFromFiles seeds the store from JSON arrays in base. Missing files leave
// the collection empty; a malformed file is an error.
func NewFromFiles(base string) (*Store, error) {
	s := &Store{}
	if err := readJSON(filepath.Join(base, NominationsFile), &s.nominations); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(base, RewardsFile), &s.rewards); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(base, CategoriesFile), &s.categories); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(base, EmployeesFile), &s.employees); err != nil {
		return nil, err
	}
	return s, nil
}

func readJSON(path string, dst any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// AddNomination appends a nomination, as a POST to the API would.
func (s *Store) AddNomination(n core.Nomination) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nominations = append(s.nominations, n)
}

func (s *Store) ListNominations(_ context.Context) ([]core.Nomination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Nomination{}, s.nominations...), nil
}

func (s *Store) ListRewards(_ context.Context) ([]core.Reward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Reward{}, s.rewards...), nil
}

func (s *Store) ListRewardCategories(_ context.Context) ([]core.RewardCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.RewardCategory{}, s.categories...), nil
}

func (s *Store) ListEmployees(_ context.Context) ([]core.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Employee{}, s.employees...), nil
}
