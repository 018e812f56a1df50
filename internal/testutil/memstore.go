// Package testutil provides in-memory stand-ins for the PostgreSQL
// repositories and the job queue, so services and routes can be tested
// without external systems.
package testutil

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/deppfellow/ontology-api/internal/model"
	"github.com/deppfellow/ontology-api/internal/sqlerr"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgconn"
)

func uniqueViolation(table string) error {
	return &pgconn.PgError{
		Code:           "23505",
		Severity:       "ERROR",
		Message:        "duplicate key value violates unique constraint",
		TableName:      table,
		ConstraintName: table + "_pkey",
	}
}

type submissionKey struct {
	acronym string
	id      int
}

// MemStore implements every repository interface the services use.
type MemStore struct {
	mu sync.Mutex

	ontologies  map[string]model.Ontology
	submissions map[submissionKey]model.Submission
	classes     map[submissionKey][]model.Class
	properties  map[submissionKey][]model.Property
	formats     map[string]bool
	users       map[string]model.User
	mappings    []model.Mapping
}

func NewMemStore() *MemStore {
	return &MemStore{
		ontologies:  map[string]model.Ontology{},
		submissions: map[submissionKey]model.Submission{},
		classes:     map[submissionKey][]model.Class{},
		properties:  map[submissionKey][]model.Property{},
		formats:     map[string]bool{model.FormatOWL: true, model.FormatOBO: true, model.FormatSKOS: true, model.FormatUMLS: true},
		users:       map[string]model.User{},
	}
}

// HasFormat reports whether EnsureFormat created or seeded the format.
func (m *MemStore) HasFormat(acronym string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.formats[acronym]
}

func (m *MemStore) ListOntologies(context.Context) ([]model.Ontology, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []model.Ontology{}
	for _, o := range m.ontologies {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Acronym < out[j].Acronym })
	return out, nil
}

func (m *MemStore) GetOntology(_ context.Context, acronym string) (*model.Ontology, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.ontologies[acronym]
	if !ok {
		return nil, sqlerr.NotFound("ontologies")
	}
	o.AdministeredBy = slices.Clone(o.AdministeredBy)
	return &o, nil
}

func (m *MemStore) CreateOntology(_ context.Context, o *model.Ontology) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ontologies[o.Acronym]; ok {
		return uniqueViolation("ontologies")
	}
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt
	m.ontologies[o.Acronym] = *o
	return nil
}

func (m *MemStore) UpdateOntology(_ context.Context, o *model.Ontology) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ontologies[o.Acronym]; !ok {
		return sqlerr.NotFound("ontologies")
	}
	o.UpdatedAt = time.Now().UTC()
	m.ontologies[o.Acronym] = *o
	return nil
}

func (m *MemStore) DeleteOntology(_ context.Context, acronym string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ontologies[acronym]; !ok {
		return sqlerr.NotFound("ontologies")
	}
	delete(m.ontologies, acronym)

	for k := range m.submissions {
		if k.acronym == acronym {
			delete(m.submissions, k)
			delete(m.classes, k)
			delete(m.properties, k)
		}
	}

	kept := m.mappings[:0]
	for _, mp := range m.mappings {
		mp.Terms = slices.DeleteFunc(mp.Terms, func(t model.TermMapping) bool { return t.Ontology == acronym })
		if len(mp.Terms) >= 2 {
			kept = append(kept, mp)
		}
	}
	m.mappings = kept
	return nil
}

func (m *MemStore) ListSubmissions(_ context.Context, acronym string) ([]model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []model.Submission{}
	for k, s := range m.submissions {
		if k.acronym == acronym {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmissionID > out[j].SubmissionID })
	return out, nil
}

func (m *MemStore) latest(acronym string) (model.Submission, bool) {
	var (
		best  model.Submission
		found bool
	)
	for k, s := range m.submissions {
		if k.acronym == acronym && s.SubmissionStatus == model.StatusRDF && (!found || s.SubmissionID > best.SubmissionID) {
			best, found = s, true
		}
	}
	return best, found
}

func (m *MemStore) LatestSubmissions(context.Context) ([]model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []model.Submission{}
	for acronym := range m.ontologies {
		if s, ok := m.latest(acronym); ok {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ontology < out[j].Ontology })
	return out, nil
}

func (m *MemStore) GetSubmission(_ context.Context, acronym string, submissionID int) (*model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.submissions[submissionKey{acronym, submissionID}]
	if !ok {
		return nil, sqlerr.NotFound("submissions")
	}
	return &s, nil
}

func (m *MemStore) LatestSubmission(_ context.Context, acronym string) (*model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.latest(acronym)
	if !ok {
		return nil, sqlerr.NotFound("submissions")
	}
	return &s, nil
}

func (m *MemStore) NextSubmissionID(_ context.Context, acronym string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := 1
	for k := range m.submissions {
		if k.acronym == acronym && k.id >= next {
			next = k.id + 1
		}
	}
	return next, nil
}

func (m *MemStore) EnsureFormat(_ context.Context, acronym string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.formats[acronym] = true
	return nil
}

func (m *MemStore) CreateSubmission(_ context.Context, s *model.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := submissionKey{s.Ontology, s.SubmissionID}
	if _, ok := m.submissions[key]; ok {
		return uniqueViolation("submissions")
	}
	s.CreationDate = time.Now().UTC()
	s.UpdatedAt = s.CreationDate
	m.submissions[key] = *s
	return nil
}

func (m *MemStore) UpdateSubmission(_ context.Context, s *model.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := submissionKey{s.Ontology, s.SubmissionID}
	if _, ok := m.submissions[key]; !ok {
		return sqlerr.NotFound("submissions")
	}
	s.UpdatedAt = time.Now().UTC()
	m.submissions[key] = *s
	return nil
}

func (m *MemStore) DeleteSubmission(_ context.Context, acronym string, submissionID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := submissionKey{acronym, submissionID}
	if _, ok := m.submissions[key]; !ok {
		return sqlerr.NotFound("submissions")
	}
	delete(m.submissions, key)
	delete(m.classes, key)
	delete(m.properties, key)
	return nil
}

func (m *MemStore) ReplaceClasses(_ context.Context, acronym string, submissionID int, classes []model.Class) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes[submissionKey{acronym, submissionID}] = slices.Clone(classes)
	return nil
}

func (m *MemStore) ListClasses(_ context.Context, acronym string, submissionID, page, size int) ([]model.Class, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.classes[submissionKey{acronym, submissionID}]
	start := min(model.Offset(page, size), len(all))
	end := min(start+size, len(all))
	return slices.Clone(all[start:end]), len(all), nil
}

func (m *MemStore) GetClass(_ context.Context, acronym string, submissionID int, classID string) (*model.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.classes[submissionKey{acronym, submissionID}] {
		if c.ID == classID {
			return &c, nil
		}
	}
	return nil, sqlerr.NotFound("classes")
}

func (m *MemStore) ReplaceProperties(_ context.Context, acronym string, submissionID int, properties []model.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.properties[submissionKey{acronym, submissionID}] = slices.Clone(properties)
	return nil
}

func (m *MemStore) ListProperties(_ context.Context, acronym string, submissionID int) ([]model.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := slices.Clone(m.properties[submissionKey{acronym, submissionID}])
	if out == nil {
		out = []model.Property{}
	}
	return out, nil
}

func (m *MemStore) ListUsers(context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []model.User{}
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *MemStore) GetUser(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[username]
	if !ok {
		return nil, sqlerr.NotFound("users")
	}
	return &u, nil
}

func (m *MemStore) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[u.Username]; ok {
		return uniqueViolation("users")
	}
	u.CreatedAt = time.Now().UTC()
	m.users[u.Username] = *u
	return nil
}

func (m *MemStore) CreateMapping(_ context.Context, mp *model.Mapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mappings = append(m.mappings, *mp)
	return nil
}

func (m *MemStore) GetMapping(_ context.Context, id string) (*model.Mapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mp := range m.mappings {
		if mp.UUID == id {
			return &mp, nil
		}
	}
	return nil, sqlerr.NotFound("mappings")
}

func (m *MemStore) DeleteMapping(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, mp := range m.mappings {
		if mp.UUID == id {
			m.mappings = slices.Delete(m.mappings, i, i+1)
			return nil
		}
	}
	return sqlerr.NotFound("mappings")
}

// newestFirst returns the mappings matching keep, most recent first.
func (m *MemStore) newestFirst(keep func(model.Mapping) bool) []model.Mapping {
	out := []model.Mapping{}
	for i := len(m.mappings) - 1; i >= 0; i-- {
		if keep(m.mappings[i]) {
			out = append(out, m.mappings[i])
		}
	}
	return out
}

func involves(mp model.Mapping, acronym string) bool {
	for _, t := range mp.Terms {
		if t.Ontology == acronym {
			return true
		}
	}
	return false
}

func (m *MemStore) ListByOntology(_ context.Context, acronym string, page, size int) ([]model.Mapping, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.newestFirst(func(mp model.Mapping) bool { return involves(mp, acronym) })
	start := min(model.Offset(page, size), len(all))
	end := min(start+size, len(all))
	return all[start:end], len(all), nil
}

func (m *MemStore) ListByClass(_ context.Context, acronym, classID string) ([]model.Mapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.newestFirst(func(mp model.Mapping) bool {
		for _, t := range mp.Terms {
			if t.Ontology == acronym && slices.Contains(t.Terms, classID) {
				return true
			}
		}
		return false
	}), nil
}

func (m *MemStore) Recent(_ context.Context, limit int) ([]model.Mapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.newestFirst(func(model.Mapping) bool { return true })
	return all[:min(limit, len(all))], nil
}

func (m *MemStore) CountByOntology(context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := map[string]int{}
	for acronym := range m.ontologies {
		counts[acronym] = 0
	}
	for _, mp := range m.mappings {
		seen := map[string]bool{}
		for _, t := range mp.Terms {
			if !seen[t.Ontology] {
				seen[t.Ontology] = true
				counts[t.Ontology]++
			}
		}
	}
	return counts, nil
}

func (m *MemStore) CountBetween(_ context.Context, acronym string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := map[string]int{}
	for _, mp := range m.mappings {
		if !involves(mp, acronym) {
			continue
		}
		seen := map[string]bool{acronym: true}
		for _, t := range mp.Terms {
			if !seen[t.Ontology] {
				seen[t.Ontology] = true
				counts[t.Ontology]++
			}
		}
	}
	return counts, nil
}

// topN keeps the limit highest counts, ties broken by key.
func topN(counts map[string]int, limit int) map[string]int {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	out := map[string]int{}
	for _, k := range keys[:min(limit, len(keys))] {
		out[k] = counts[k]
	}
	return out
}

func (m *MemStore) PopularClasses(_ context.Context, acronym string, limit int) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := map[string]int{}
	for _, mp := range m.mappings {
		seen := map[string]bool{}
		for _, t := range mp.Terms {
			if t.Ontology != acronym {
				continue
			}
			for _, id := range t.Terms {
				if !seen[id] {
					seen[id] = true
					counts[id]++
				}
			}
		}
	}
	return topN(counts, limit), nil
}

func (m *MemStore) TopCreators(_ context.Context, acronym string, limit int) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := map[string]int{}
	for _, mp := range m.mappings {
		if involves(mp, acronym) {
			counts[mp.Process.Creator]++
		}
	}
	return topN(counts, limit), nil
}

// RecordingEnqueuer keeps every enqueued task instead of sending it to Redis.
type RecordingEnqueuer struct {
	mu    sync.Mutex
	Tasks []*asynq.Task
}

func (r *RecordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Tasks = append(r.Tasks, task)
	return &asynq.TaskInfo{ID: strconv.Itoa(len(r.Tasks)), Type: task.Type(), Payload: task.Payload()}, nil
}

// Types returns the type of every recorded task, in order.
func (r *RecordingEnqueuer) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.Tasks))
	for _, t := range r.Tasks {
		out = append(out, t.Type())
	}
	return out
}
