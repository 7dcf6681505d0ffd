// Package memory provides an in-memory store.Transactor for tests and dry runs.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"agency_lifecycle/internal/domain/activity"
	"agency_lifecycle/internal/domain/expense"
	"agency_lifecycle/internal/domain/policy"
	"agency_lifecycle/internal/domain/store"
	"agency_lifecycle/internal/domain/task"
)

// Op identifies a repository operation for fault injection.
type Op string

const (
	OpPolicyCreate      Op = "policies.create"
	OpPolicyUpdate      Op = "policies.update"
	OpPolicyDelete      Op = "policies.delete"
	OpTaskCreate        Op = "tasks.create"
	OpTaskUpdate        Op = "tasks.update"
	OpTaskDelete        Op = "tasks.delete"
	OpTaskList          Op = "tasks.list"
	OpExpenseCreate     Op = "expenses.create"
	OpExpenseAdvance    Op = "expenses.advance"
	OpExpenseDueScan    Op = "expenses.due_scan"
	OpActivityRecord    Op = "activity.record"
	OpPolicySchedulable Op = "policies.schedulable"
)

// FaultFunc returns a non-nil error to make an operation fail.
type FaultFunc func(op Op, tenantID string) error

type dataset struct {
	policies map[string]policy.Policy
	tasks    map[string]task.Task
	expenses map[string]expense.Expense
	events   []activity.Event
	order    map[string]int64 // insertion sequence per id
	seq      int64
}

func newDataset() *dataset {
	return &dataset{
		policies: make(map[string]policy.Policy),
		tasks:    make(map[string]task.Task),
		expenses: make(map[string]expense.Expense),
		order:    make(map[string]int64),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.policies {
		c.policies[k] = v
	}
	for k, v := range d.tasks {
		c.tasks[k] = v
	}
	for k, v := range d.expenses {
		c.expenses[k] = v
	}
	c.events = append([]activity.Event(nil), d.events...)
	for k, v := range d.order {
		c.order[k] = v
	}
	c.seq = d.seq
	return c
}

// Store is a mutex-guarded dataset. RunInTx holds the lock for the whole unit of
// work and restores a snapshot when fn fails.
type Store struct {
	mu     sync.Mutex
	data   *dataset
	fault  FaultFunc
	writes int
	now    func() time.Time
}

func NewStore() *Store {
	return &Store{data: newDataset(), now: func() time.Time { return time.Now().UTC() }}
}

// SetFault installs (or with nil removes) a fault injector.
func (s *Store) SetFault(f FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

// SetNow overrides the timestamp source used for CreatedAt/UpdatedAt.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Writes counts committed and uncommitted mutations since the last ResetWrites.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *Store) ResetWrites() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = 0
}

func (s *Store) Repos() store.Repositories {
	return s.repos(false)
}

func (s *Store) RunInTx(ctx context.Context, fn func(store.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	writes := s.writes
	if err := fn(s.repos(true)); err != nil {
		s.data = snapshot
		s.writes = writes
		return err
	}
	return nil
}

func (s *Store) repos(inTx bool) store.Repositories {
	v := &view{s: s, inTx: inTx}
	return store.Repositories{
		Policies: &policyRepo{v},
		Tasks:    &taskRepo{v},
		Expenses: &expenseRepo{v},
		Activity: &activityRepo{v},
	}
}

// view runs repository bodies under the store lock unless a transaction already
// holds it.
type view struct {
	s    *Store
	inTx bool
}

func (v *view) do(op Op, tenantID string, fn func(d *dataset) error) error {
	if !v.inTx {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}
	if v.s.fault != nil && op != "" {
		if err := v.s.fault(op, tenantID); err != nil {
			return err
		}
	}
	return fn(v.s.data)
}

func (v *view) touch(d *dataset, id string) {
	if _, ok := d.order[id]; !ok {
		d.seq++
		d.order[id] = d.seq
	}
	v.s.writes++
}

// --- policies ---

type policyRepo struct{ *view }

func (r *policyRepo) Create(_ context.Context, p *policy.Policy) error {
	return r.do(OpPolicyCreate, p.TenantID, func(d *dataset) error {
		if _, exists := d.policies[p.ID]; exists {
			return fmt.Errorf("policy %s already exists", p.ID)
		}
		now := r.s.now()
		p.CreatedAt, p.UpdatedAt = now, now
		d.policies[p.ID] = *p
		r.touch(d, p.ID)
		return nil
	})
}

func (r *policyRepo) GetByID(_ context.Context, tenantID, id string) (*policy.Policy, error) {
	var out *policy.Policy
	err := r.do("", tenantID, func(d *dataset) error {
		p, ok := d.policies[id]
		if !ok || p.TenantID != tenantID {
			return policy.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *policyRepo) GetForUpdate(ctx context.Context, tenantID, id string) (*policy.Policy, error) {
	return r.GetByID(ctx, tenantID, id)
}

func (r *policyRepo) Update(_ context.Context, p *policy.Policy) error {
	return r.do(OpPolicyUpdate, p.TenantID, func(d *dataset) error {
		existing, ok := d.policies[p.ID]
		if !ok || existing.TenantID != p.TenantID {
			return policy.ErrNotFound
		}
		p.CreatedAt = existing.CreatedAt
		p.UpdatedAt = r.s.now()
		d.policies[p.ID] = *p
		r.touch(d, p.ID)
		return nil
	})
}

func (r *policyRepo) Delete(_ context.Context, tenantID, id string) error {
	return r.do(OpPolicyDelete, tenantID, func(d *dataset) error {
		existing, ok := d.policies[id]
		if !ok || existing.TenantID != tenantID {
			return policy.ErrNotFound
		}
		delete(d.policies, id)
		r.touch(d, id)
		return nil
	})
}

func (r *policyRepo) ListSchedulable(_ context.Context) ([]*policy.Policy, error) {
	var out []*policy.Policy
	err := r.do(OpPolicySchedulable, "", func(d *dataset) error {
		for _, p := range d.policies {
			if p.Schedulable() {
				p := p
				out = append(out, &p)
			}
		}
		sortByOrder(d, out, func(p *policy.Policy) string { return p.ID })
		return nil
	})
	return out, err
}

// --- tasks ---

type taskRepo struct{ *view }

func (r *taskRepo) Create(_ context.Context, t *task.Task) error {
	return r.do(OpTaskCreate, t.TenantID, func(d *dataset) error {
		if _, exists := d.tasks[t.ID]; exists {
			return fmt.Errorf("task %s already exists", t.ID)
		}
		now := r.s.now()
		t.CreatedAt, t.UpdatedAt = now, now
		d.tasks[t.ID] = *t
		r.touch(d, t.ID)
		return nil
	})
}

func (r *taskRepo) GetByID(_ context.Context, tenantID, id string) (*task.Task, error) {
	var out *task.Task
	err := r.do("", tenantID, func(d *dataset) error {
		t, ok := d.tasks[id]
		if !ok || t.TenantID != tenantID {
			return task.ErrNotFound
		}
		out = &t
		return nil
	})
	return out, err
}

func (r *taskRepo) ListRenewalByPolicy(_ context.Context, tenantID, policyID string) ([]*task.Task, error) {
	var out []*task.Task
	err := r.do(OpTaskList, tenantID, func(d *dataset) error {
		for _, t := range d.tasks {
			if t.TenantID == tenantID && t.PolicyID == policyID && t.Type == task.TypeRenewal {
				t := t
				out = append(out, &t)
			}
		}
		sortByOrder(d, out, func(t *task.Task) string { return t.ID })
		return nil
	})
	return out, err
}

func (r *taskRepo) UpdateSchedule(_ context.Context, t *task.Task) error {
	return r.do(OpTaskUpdate, t.TenantID, func(d *dataset) error {
		existing, ok := d.tasks[t.ID]
		if !ok || existing.TenantID != t.TenantID {
			return task.ErrNotFound
		}
		existing.DueDate = t.DueDate
		existing.Priority = t.Priority
		existing.Title = t.Title
		existing.UpdatedAt = r.s.now()
		d.tasks[t.ID] = existing
		t.UpdatedAt = existing.UpdatedAt
		r.touch(d, t.ID)
		return nil
	})
}

func (r *taskRepo) UpdateStatus(_ context.Context, tenantID, id string, status task.Status) error {
	return r.do(OpTaskUpdate, tenantID, func(d *dataset) error {
		existing, ok := d.tasks[id]
		if !ok || existing.TenantID != tenantID {
			return task.ErrNotFound
		}
		existing.Status = status
		existing.UpdatedAt = r.s.now()
		existing.CompletedAt = sql.NullTime{}
		if status.IsDone() {
			existing.CompletedAt = sql.NullTime{Time: existing.UpdatedAt, Valid: true}
		}
		d.tasks[id] = existing
		r.touch(d, id)
		return nil
	})
}

func (r *taskRepo) Delete(_ context.Context, tenantID, id string) error {
	return r.do(OpTaskDelete, tenantID, func(d *dataset) error {
		existing, ok := d.tasks[id]
		if !ok || existing.TenantID != tenantID {
			return task.ErrNotFound
		}
		delete(d.tasks, id)
		r.touch(d, id)
		return nil
	})
}

func (r *taskRepo) DeleteRenewalByPolicy(_ context.Context, tenantID, policyID string, keepDone bool) (int, error) {
	removed := 0
	err := r.do(OpTaskDelete, tenantID, func(d *dataset) error {
		for id, t := range d.tasks {
			if t.TenantID != tenantID || t.PolicyID != policyID || t.Type != task.TypeRenewal {
				continue
			}
			if keepDone && t.Status.IsDone() {
				continue
			}
			delete(d.tasks, id)
			r.touch(d, id)
			removed++
		}
		return nil
	})
	return removed, err
}

// --- expenses ---

type expenseRepo struct{ *view }

func (r *expenseRepo) Create(_ context.Context, e *expense.Expense) error {
	return r.do(OpExpenseCreate, e.TenantID, func(d *dataset) error {
		if _, exists := d.expenses[e.ID]; exists {
			return fmt.Errorf("expense %s already exists", e.ID)
		}
		now := r.s.now()
		e.CreatedAt, e.UpdatedAt = now, now
		d.expenses[e.ID] = *e
		r.touch(d, e.ID)
		return nil
	})
}

func (r *expenseRepo) GetByID(_ context.Context, tenantID, id string) (*expense.Expense, error) {
	var out *expense.Expense
	err := r.do("", tenantID, func(d *dataset) error {
		e, ok := d.expenses[id]
		if !ok || e.TenantID != tenantID {
			return expense.ErrNotFound
		}
		out = &e
		return nil
	})
	return out, err
}

func (r *expenseRepo) GetForUpdate(ctx context.Context, tenantID, id string) (*expense.Expense, error) {
	return r.GetByID(ctx, tenantID, id)
}

func (r *expenseRepo) ListDueTemplates(_ context.Context, asOf time.Time) ([]*expense.Expense, error) {
	var out []*expense.Expense
	err := r.do(OpExpenseDueScan, "", func(d *dataset) error {
		for _, e := range d.expenses {
			if e.IsDue(asOf) {
				e := e
				out = append(out, &e)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].TenantID != out[j].TenantID {
				return out[i].TenantID < out[j].TenantID
			}
			if !out[i].NextOccurrence.Time.Equal(out[j].NextOccurrence.Time) {
				return out[i].NextOccurrence.Time.Before(out[j].NextOccurrence.Time)
			}
			return out[i].ID < out[j].ID
		})
		return nil
	})
	return out, err
}

func (r *expenseRepo) SetNextOccurrence(_ context.Context, tenantID, id string, next time.Time) error {
	return r.do(OpExpenseAdvance, tenantID, func(d *dataset) error {
		e, ok := d.expenses[id]
		if !ok || e.TenantID != tenantID {
			return expense.ErrNotFound
		}
		e.NextOccurrence.Time = next
		e.NextOccurrence.Valid = true
		e.UpdatedAt = r.s.now()
		d.expenses[id] = e
		r.touch(d, id)
		return nil
	})
}

func (r *expenseRepo) ListChildren(_ context.Context, tenantID, parentID string) ([]*expense.Expense, error) {
	var out []*expense.Expense
	err := r.do("", tenantID, func(d *dataset) error {
		for _, e := range d.expenses {
			if e.TenantID == tenantID && e.ParentExpenseID.Valid && e.ParentExpenseID.String == parentID {
				e := e
				out = append(out, &e)
			}
		}
		sortByOrder(d, out, func(e *expense.Expense) string { return e.ID })
		return nil
	})
	return out, err
}

// --- activity ---

type activityRepo struct{ *view }

func (r *activityRepo) Record(_ context.Context, e *activity.Event) error {
	return r.do(OpActivityRecord, e.TenantID, func(d *dataset) error {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = r.s.now()
		}
		d.events = append(d.events, *e)
		r.s.writes++
		return nil
	})
}

func (r *activityRepo) ListByClient(_ context.Context, tenantID, clientID string) ([]*activity.Event, error) {
	var out []*activity.Event
	err := r.do("", tenantID, func(d *dataset) error {
		for _, e := range d.events {
			if e.TenantID == tenantID && e.ClientID == clientID {
				e := e
				out = append(out, &e)
			}
		}
		return nil
	})
	return out, err
}

func sortByOrder[T any](d *dataset, items []T, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		return d.order[id(items[i])] < d.order[id(items[j])]
	})
}
