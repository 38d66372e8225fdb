// Package testutil provides an in-memory marketplace store for tests.
//
// Transactions run one at a time against a copy of the data and replace it
// only on commit, so every transaction is serializable and a failed one
// leaves no trace.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/marketplace-api/internal/model"
	"github.com/nurpe/marketplace-api/internal/repository"
)

type state struct {
	profiles  map[int64]model.Profile
	contracts map[int64]model.Contract
	jobs      map[int64]model.Job
}

func (s *state) clone() *state {
	c := &state{
		profiles:  make(map[int64]model.Profile, len(s.profiles)),
		contracts: make(map[int64]model.Contract, len(s.contracts)),
		jobs:      make(map[int64]model.Job, len(s.jobs)),
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k, v := range s.contracts {
		c.contracts[k] = v
	}
	for k, v := range s.jobs {
		if v.PaymentDate != nil {
			at := *v.PaymentDate
			v.PaymentDate = &at
		}
		c.jobs[k] = v
	}
	return c
}

type Store struct {
	mu          sync.Mutex
	data        *state
	nextID      int64
	failCommits []error
	commits     int
	rollbacks   int
}

func NewStore() *Store {
	return &Store{
		data: &state{
			profiles:  map[int64]model.Profile{},
			contracts: map[int64]model.Contract{},
			jobs:      map[int64]model.Job{},
		},
	}
}

// FailCommits makes the next len(errs) transactions that would otherwise
// commit roll back and return the given errors instead, in order.
func (s *Store) FailCommits(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCommits = append(s.failCommits, errs...)
}

func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *Store) Rollbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbacks
}

func (s *Store) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := s.data.clone()
	if err := fn(&memTx{data: working}); err != nil {
		s.rollbacks++
		return err
	}
	if len(s.failCommits) > 0 {
		err := s.failCommits[0]
		s.failCommits = s.failCommits[1:]
		s.rollbacks++
		return err
	}
	s.data = working
	s.commits++
	return nil
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) AddProfile(p model.Profile) model.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	s.data.profiles[p.ID] = p
	return p
}

func (s *Store) AddContract(c model.Contract) model.Contract {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.id()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	s.data.contracts[c.ID] = c
	return c
}

func (s *Store) AddJob(j model.Job) model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.ID == 0 {
		j.ID = s.id()
	}
	now := time.Now().UTC()
	j.CreatedAt, j.UpdatedAt = now, now
	j.Contract = nil
	s.data.jobs[j.ID] = j
	return j
}

// Profile returns the committed state of a profile.
func (s *Store) Profile(id int64) (model.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.profiles[id]
	return p, ok
}

// Job returns the committed state of a job.
func (s *Store) Job(id int64) (model.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.data.jobs[id]
	return j, ok
}

// TotalBalance sums every profile balance.
func (s *Store) TotalBalance() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, p := range s.data.profiles {
		total = total.Add(p.Balance)
	}
	return total
}

func (s *Store) Profiles() *ProfileView   { return &ProfileView{s: s} }
func (s *Store) Contracts() *ContractView { return &ContractView{s: s} }
func (s *Store) Jobs() *JobView           { return &JobView{s: s} }
func (s *Store) Reports() *ReportView     { return &ReportView{s: s} }

type memTx struct {
	data *state
}

func (t *memTx) LockJob(ctx context.Context, jobID int64) (*model.Job, error) {
	return t.data.job(jobID)
}

func (t *memTx) GetJob(ctx context.Context, jobID int64) (*model.Job, error) {
	return t.data.job(jobID)
}

func (t *memTx) LockProfile(ctx context.Context, profileID int64) (*model.Profile, error) {
	p, ok := t.data.profiles[profileID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (t *memTx) TransferFunds(ctx context.Context, fromID, toID int64, amount decimal.Decimal) error {
	from, ok := t.data.profiles[fromID]
	if !ok || from.Balance.LessThan(amount) {
		return repository.ErrConcurrentUpdate
	}
	to, ok := t.data.profiles[toID]
	if !ok {
		return repository.ErrConcurrentUpdate
	}
	now := time.Now().UTC()
	from.Balance = from.Balance.Sub(amount)
	from.UpdatedAt = now
	t.data.profiles[fromID] = from
	to = t.data.profiles[toID]
	to.Balance = to.Balance.Add(amount)
	to.UpdatedAt = now
	t.data.profiles[toID] = to
	return nil
}

func (t *memTx) MarkJobPaid(ctx context.Context, jobID int64, paidAt time.Time) error {
	job, ok := t.data.jobs[jobID]
	if !ok || job.Paid {
		return repository.ErrConcurrentUpdate
	}
	job.Paid = true
	job.PaymentDate = &paidAt
	job.UpdatedAt = paidAt
	t.data.jobs[jobID] = job
	return nil
}

func (t *memTx) SumUnpaidForClient(ctx context.Context, clientID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, job := range t.data.jobs {
		if job.Paid {
			continue
		}
		c, ok := t.data.contracts[job.ContractID]
		if !ok || c.Status != model.ContractStatusInProgress || c.ClientID != clientID {
			continue
		}
		total = total.Add(job.Price)
	}
	return total, nil
}

func (t *memTx) IncrementBalance(ctx context.Context, profileID int64, expected, amount decimal.Decimal) (decimal.Decimal, error) {
	p, ok := t.data.profiles[profileID]
	if !ok || !p.Balance.Equal(expected) {
		return decimal.Zero, repository.ErrConcurrentUpdate
	}
	p.Balance = p.Balance.Add(amount)
	p.UpdatedAt = time.Now().UTC()
	t.data.profiles[profileID] = p
	return p.Balance, nil
}

func (s *state) job(id int64) (*model.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c, ok := s.contracts[job.ContractID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	job.Contract = &c
	return &job, nil
}

type ProfileView struct{ s *Store }

func (v *ProfileView) GetByID(ctx context.Context, id int64) (*model.Profile, error) {
	p, ok := v.s.Profile(id)
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

type ContractView struct{ s *Store }

func (v *ContractView) GetByID(ctx context.Context, id int64) (*model.Contract, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	c, ok := v.s.data.contracts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (v *ContractView) ListActiveForProfile(ctx context.Context, profileID int64) ([]model.Contract, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	contracts := make([]model.Contract, 0)
	for _, c := range v.s.data.contracts {
		if c.IsParty(profileID) && c.Status != model.ContractStatusTerminated {
			contracts = append(contracts, c)
		}
	}
	sort.Slice(contracts, func(i, j int) bool { return contracts[i].ID < contracts[j].ID })
	return contracts, nil
}

type JobView struct{ s *Store }

func (v *JobView) ListUnpaidForProfile(ctx context.Context, profileID int64) ([]model.Job, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	jobs := make([]model.Job, 0)
	for id, job := range v.s.data.jobs {
		c := v.s.data.contracts[job.ContractID]
		if job.Paid || c.Status != model.ContractStatusInProgress || !c.IsParty(profileID) {
			continue
		}
		full, err := v.s.data.job(id)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *full)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs, nil
}

func (v *JobView) GetReceipt(ctx context.Context, jobID int64) (*model.PaymentReceipt, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	job, err := v.s.data.job(jobID)
	if err != nil {
		return nil, err
	}
	client, ok := v.s.data.profiles[job.Contract.ClientID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	contractor, ok := v.s.data.profiles[job.Contract.ContractorID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &model.PaymentReceipt{Job: *job, Contract: *job.Contract, Client: client, Contractor: contractor}, nil
}

type ReportView struct{ s *Store }

type paidJob struct {
	job      model.Job
	contract model.Contract
}

func (v *ReportView) paidBetween(from, to time.Time) []paidJob {
	var out []paidJob
	for _, job := range v.s.data.jobs {
		if !job.Paid || job.PaymentDate == nil {
			continue
		}
		if job.PaymentDate.Before(from) || !job.PaymentDate.Before(to) {
			continue
		}
		out = append(out, paidJob{job: job, contract: v.s.data.contracts[job.ContractID]})
	}
	return out
}

func (v *ReportView) TopProfessions(ctx context.Context, from, to time.Time, limit int) ([]model.ProfessionEarnings, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	type agg struct {
		earned decimal.Decimal
		latest time.Time
	}
	byProfession := map[string]*agg{}
	for _, pj := range v.paidBetween(from, to) {
		profession := v.s.data.profiles[pj.contract.ContractorID].Profession
		a, ok := byProfession[profession]
		if !ok {
			a = &agg{earned: decimal.Zero}
			byProfession[profession] = a
		}
		a.earned = a.earned.Add(pj.job.Price)
		if pj.job.PaymentDate.After(a.latest) {
			a.latest = *pj.job.PaymentDate
		}
	}

	rows := make([]model.ProfessionEarnings, 0, len(byProfession))
	for profession, a := range byProfession {
		rows = append(rows, model.ProfessionEarnings{Profession: profession, Earned: a.earned})
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Earned.Cmp(rows[j].Earned); c != 0 {
			return c > 0
		}
		li, lj := byProfession[rows[i].Profession].latest, byProfession[rows[j].Profession].latest
		if !li.Equal(lj) {
			return li.Before(lj)
		}
		return rows[i].Profession < rows[j].Profession
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (v *ReportView) TopClients(ctx context.Context, from, to time.Time, limit int) ([]model.ClientPayments, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	byClient := map[int64]decimal.Decimal{}
	for _, pj := range v.paidBetween(from, to) {
		byClient[pj.contract.ClientID] = byClient[pj.contract.ClientID].Add(pj.job.Price)
	}

	rows := make([]model.ClientPayments, 0, len(byClient))
	for id, paid := range byClient {
		rows = append(rows, model.ClientPayments{ID: id, FullName: v.s.data.profiles[id].FullName(), Paid: paid})
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Paid.Cmp(rows[j].Paid); c != 0 {
			return c > 0
		}
		return rows[i].ID < rows[j].ID
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}
