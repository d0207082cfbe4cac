// Package memstore is an in-memory store.Store. Transactions are serialised
// and run against a copy of the state that replaces it on commit.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"tasktimer/internal/db/models"
	"tasktimer/internal/store"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type state struct {
	users      map[uuid.UUID]*models.User
	projects   map[uuid.UUID]*models.Project
	tasks      map[uuid.UUID]*models.Task
	timeLogs   []*models.TimeLogEntry
	timesheets map[uuid.UUID]*models.Timesheet
	entries    map[uuid.UUID]*models.TimesheetEntry
}

func newState() *state {
	return &state{
		users:      make(map[uuid.UUID]*models.User),
		projects:   make(map[uuid.UUID]*models.Project),
		tasks:      make(map[uuid.UUID]*models.Task),
		timesheets: make(map[uuid.UUID]*models.Timesheet),
		entries:    make(map[uuid.UUID]*models.TimesheetEntry),
	}
}

func (s *state) clone() *state {
	cp := newState()
	for id, u := range s.users {
		v := *u
		cp.users[id] = &v
	}
	for id, p := range s.projects {
		v := *p
		cp.projects[id] = &v
	}
	for id, t := range s.tasks {
		cp.tasks[id] = t.Clone()
	}
	// Ledger rows are immutable, so the slice header copy is enough.
	cp.timeLogs = append([]*models.TimeLogEntry(nil), s.timeLogs...)
	for id, ts := range s.timesheets {
		cp.timesheets[id] = ts.Clone()
	}
	for id, e := range s.entries {
		cp.entries[id] = e.Clone()
	}
	return cp
}

// Store keeps everything in process memory.
type Store struct {
	mu    sync.Mutex
	state *state

	// Now stamps CreatedAt and UpdatedAt. Tests may replace it.
	Now func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		state: newState(),
		Now:   func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// InTx runs fn against a copy of the state. The copy replaces the state when
// fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.state.clone()
	if err := fn(&Tx{state: work, now: s.Now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) Close() {}

// AddUser seeds a user.
func (s *Store) AddUser(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.Now()
	}
	v := *user
	s.state.users[user.ID] = &v
}

// AddProject seeds a project.
func (s *Store) AddProject(project *models.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	if project.CreatedAt.IsZero() {
		project.CreatedAt = s.Now()
	}
	v := *project
	s.state.projects[project.ID] = &v
}

// PutTimesheet seeds or overwrites a timesheet row.
func (s *Store) PutTimesheet(ts *models.Timesheet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ts.ID == uuid.Nil {
		ts.ID = uuid.New()
	}
	ts.Date = models.DateOf(ts.Date)
	if ts.Status == "" {
		ts.Status = models.TimesheetPending
	}
	s.state.timesheets[ts.ID] = ts.Clone()
}

func (s *Store) GetTask(ctx context.Context, taskID uuid.UUID) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.state.tasks[taskID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t.Clone(), nil
}

func (s *Store) CreateTask(ctx context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Status == "" {
		task.Status = models.TaskPending
	}
	if task.Tags == nil {
		task.Tags = pq.StringArray{}
	}
	now := s.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.IsRunning() && runningFor(s.state, task) != nil {
		return store.ErrTimerTaken
	}
	s.state.tasks[task.ID] = task.Clone()
	return nil
}

func (s *Store) ListAssignedTasks(ctx context.Context, userID uuid.UUID) ([]*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Task
	for _, t := range s.state.tasks {
		if t.IsAssignedTo(userID) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListRunningTasks(ctx context.Context, assigneeID uuid.UUID) ([]*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return listRunning(s.state, func(t *models.Task) bool { return t.IsAssignedTo(assigneeID) }), nil
}

func (s *Store) ListAllRunningTasks(ctx context.Context) ([]*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return listRunning(s.state, func(*models.Task) bool { return true }), nil
}

func listRunning(st *state, keep func(*models.Task) bool) []*models.Task {
	var out []*models.Task
	for _, t := range st.tasks {
		if t.IsRunning() && keep(t) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ActiveTimerStartedAt.Before(*out[j].ActiveTimerStartedAt)
	})
	return out
}

func (s *Store) ListTimeLogs(ctx context.Context, taskID uuid.UUID) ([]*models.TimeLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.TimeLogEntry
	for _, e := range s.state.timeLogs {
		if e.TaskID == taskID {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (s *Store) ListUserTimeLogs(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*models.TimeLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.TimeLogEntry
	for _, e := range s.state.timeLogs {
		if e.UserID == userID && endsWithin(e, from, to) {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.state.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	v := *u
	return &v, nil
}

func (s *Store) GetOrCreateUser(ctx context.Context, discordID, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.state.users {
		if u.DiscordID != nil && *u.DiscordID == discordID {
			u.Username = username
			v := *u
			return &v, nil
		}
	}
	id := discordID
	u := &models.User{
		ID:        uuid.New(),
		DiscordID: &id,
		Username:  username,
		Role:      models.RoleDeveloper,
		CreatedAt: s.Now(),
	}
	s.state.users[u.ID] = u
	v := *u
	return &v, nil
}

func (s *Store) GetOrCreateGuildProject(ctx context.Context, guildID, name string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.state.projects {
		if p.GuildID != nil && *p.GuildID == guildID {
			v := *p
			return &v, nil
		}
	}
	id := guildID
	p := &models.Project{
		ID:         uuid.New(),
		Name:       name,
		IsBillable: true,
		GuildID:    &id,
		CreatedAt:  s.Now(),
	}
	s.state.projects[p.ID] = p
	v := *p
	return &v, nil
}

func (s *Store) GetTimesheet(ctx context.Context, userID uuid.UUID, date time.Time) (*models.Timesheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := findTimesheet(s.state, userID, date)
	if ts == nil {
		return nil, store.ErrNotFound
	}
	return ts.Clone(), nil
}

func (s *Store) ListTimesheetEntries(ctx context.Context, timesheetID uuid.UUID) ([]*models.TimesheetEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.TimesheetEntry
	for _, e := range s.state.entries {
		if e.TimesheetID == timesheetID {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func findTimesheet(st *state, userID uuid.UUID, date time.Time) *models.Timesheet {
	day := models.DateOf(date)
	for _, ts := range st.timesheets {
		if ts.UserID == userID && ts.Date.Equal(day) {
			return ts
		}
	}
	return nil
}

// runningFor returns another running task sharing task's assignee.
func runningFor(st *state, task *models.Task) *models.Task {
	if task.AssignedTo == nil {
		return nil
	}
	for _, t := range st.tasks {
		if t.ID != task.ID && t.IsRunning() && t.IsAssignedTo(*task.AssignedTo) {
			return t
		}
	}
	return nil
}

func endsWithin(e *models.TimeLogEntry, from, to time.Time) bool {
	return e.EndAt != nil && !e.EndAt.Before(from) && e.EndAt.Before(to)
}
