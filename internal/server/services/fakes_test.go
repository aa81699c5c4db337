package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bily-amin/habitica/internal/common"
	"github.com/bily-amin/habitica/internal/dbx"
	"github.com/bily-amin/habitica/internal/logging"
	"github.com/bily-amin/habitica/internal/server/cleanup"
	"github.com/bily-amin/habitica/internal/server/config"
	"github.com/bily-amin/habitica/internal/server/models"
	"github.com/bily-amin/habitica/internal/server/notify"
	"github.com/bily-amin/habitica/internal/server/repositories/challenges"
	"github.com/bily-amin/habitica/internal/server/repositories/groups"
	"github.com/bily-amin/habitica/internal/server/repositories/members"
	"github.com/bily-amin/habitica/internal/server/repositories/tags"
	"github.com/bily-amin/habitica/internal/server/repositories/tasks"
	"github.com/bily-amin/habitica/internal/server/repositories/users"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const publicGroupID = "00000000-0000-4000-8000-000000000001"

// store is an in-memory stand-in for the database. It ignores the DBTX it
// is handed, so transactions are only checked through sqlmock.
type store struct {
	mu           sync.Mutex
	users        map[string]*models.User
	achievements map[string][]string
	groups       map[string]*models.Group
	groupMembers map[string]map[string]bool
	challenges   map[string]*models.Challenge
	members      map[string]map[string]bool
	tasks        map[string]*models.Task
	tags         map[string]map[string]*models.Tag
	fail         map[string]error
	// interleave runs once before the named op, standing in for a
	// concurrent request that commits between a read and a write.
	interleave map[string]func(*store)
}

func newStore() *store {
	return &store{
		users:        map[string]*models.User{},
		achievements: map[string][]string{},
		groups:       map[string]*models.Group{},
		groupMembers: map[string]map[string]bool{},
		challenges:   map[string]*models.Challenge{},
		members:      map[string]map[string]bool{},
		tasks:        map[string]*models.Task{},
		tags:         map[string]map[string]*models.Tag{},
		fail:         map[string]error{},
		interleave:   map[string]func(*store){},
	}
}

func (s *store) failing(op string) error { return s.fail[op] }

func (s *store) runInterleaved(op string) {
	s.mu.Lock()
	fn := s.interleave[op]
	delete(s.interleave, op)
	s.mu.Unlock()
	if fn != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		fn(s)
	}
}

type fakeManager struct{ s *store }

func (m fakeManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m fakeManager) Users(dbx.DBTX) users.Repository              { return fakeUsers{m.s} }
func (m fakeManager) Groups(dbx.DBTX) groups.Repository            { return fakeGroups{m.s} }
func (m fakeManager) Challenges(dbx.DBTX) challenges.Repository    { return fakeChallenges{m.s} }
func (m fakeManager) Members(dbx.DBTX) members.Repository          { return fakeMembers{m.s} }
func (m fakeManager) Tasks(dbx.DBTX) tasks.Repository              { return fakeTasks{m.s} }
func (m fakeManager) Tags(dbx.DBTX) tags.Repository                { return fakeTags{m.s} }

// --- users ---

type fakeUsers struct{ *store }

func (f fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f fakeUsers) ListByIDs(_ context.Context, ids []string) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserName < out[j].UserName })
	return out, nil
}

func (f fakeUsers) DebitBalance(_ context.Context, id string, amount decimal.Decimal) error {
	if err := f.failing("users.DebitBalance"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	if u.Balance.LessThan(amount) {
		return common.ErrorInsufficientBalance
	}
	u.Balance = u.Balance.Sub(amount)
	return nil
}

func (f fakeUsers) CreditBalance(_ context.Context, id string, amount decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Balance = u.Balance.Add(amount)
	return nil
}

func (f fakeUsers) AddAchievement(_ context.Context, userID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.achievements[userID] = append(f.achievements[userID], name)
	return nil
}

// --- groups ---

type fakeGroups struct{ *store }

func (f fakeGroups) GetByID(_ context.Context, id string) (*models.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *g
	return &cp, nil
}

func (f fakeGroups) IsMember(_ context.Context, groupID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groupMembers[groupID][userID], nil
}

func (f fakeGroups) DebitBalance(_ context.Context, id string, amount decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[id]
	if !ok {
		return common.ErrorNotFound
	}
	if g.Balance.LessThan(amount) {
		return common.ErrorInsufficientBalance
	}
	g.Balance = g.Balance.Sub(amount)
	return nil
}

func (f fakeGroups) AdjustChallengeCount(_ context.Context, id string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[id]
	if !ok {
		return common.ErrorNotFound
	}
	g.ChallengeCount = max(g.ChallengeCount+delta, 0)
	return nil
}

// --- challenges ---

type fakeChallenges struct{ *store }

func (f fakeChallenges) Create(_ context.Context, c *models.Challenge) error {
	if err := f.failing("challenges.Create"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.challenges[c.ID]; ok {
		return common.ErrorAlreadyExists
	}
	cp := *c
	f.challenges[c.ID] = &cp
	return nil
}

func (f fakeChallenges) GetByID(_ context.Context, id string) (*models.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenges[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *c
	return &cp, nil
}

func (f fakeChallenges) Update(_ context.Context, c *models.Challenge) error {
	f.runInterleaved("challenges.Update")
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.challenges[c.ID]
	if !ok {
		return common.ErrorNotFound
	}
	cur.Name, cur.ShortName, cur.Summary, cur.Description = c.Name, c.ShortName, c.Summary, c.Description
	*c = *cur
	return nil
}

func (f fakeChallenges) AppendTaskOrder(_ context.Context, id string, t models.TaskType, taskID string) (models.TasksOrder, error) {
	f.runInterleaved("challenges.AppendTaskOrder")
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenges[id]
	if !ok {
		return models.TasksOrder{}, common.ErrorNotFound
	}
	order := models.TasksOrder{
		Habits:  slices.Clone(c.TasksOrder.Habits),
		Dailys:  slices.Clone(c.TasksOrder.Dailys),
		Todos:   slices.Clone(c.TasksOrder.Todos),
		Rewards: slices.Clone(c.TasksOrder.Rewards),
	}
	order.Append(t, taskID)
	c.TasksOrder = order
	return order, nil
}

func (f fakeChallenges) AdjustMemberCount(_ context.Context, id string, delta int) (int, error) {
	f.runInterleaved("challenges.AdjustMemberCount")
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenges[id]
	if !ok || c.MemberCount+delta < 0 {
		return 0, common.ErrorNotFound
	}
	c.MemberCount += delta
	return c.MemberCount, nil
}

func (f fakeChallenges) Delete(_ context.Context, id string) (*models.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenges[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(f.challenges, id)
	return c, nil
}

func (f fakeChallenges) ListForUser(_ context.Context, userID, publicID string, offset, limit int) ([]*models.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Challenge
	for _, c := range f.challenges {
		if c.LeaderID == userID || c.GroupID == publicID || f.members[c.ID][userID] || f.groupMembers[c.GroupID][userID] {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Official != out[j].Official {
			return out[i].Official
		}
		return out[i].ID < out[j].ID
	})
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:min(offset+limit, len(out))], nil
}

func (f fakeChallenges) ListByGroup(_ context.Context, groupID string) ([]*models.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Challenge
	for _, c := range f.challenges {
		if c.GroupID == groupID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- members ---

type fakeMembers struct{ *store }

func (f fakeMembers) Add(_ context.Context, challengeID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[challengeID][userID] {
		return common.ErrorAlreadyExists
	}
	if f.members[challengeID] == nil {
		f.members[challengeID] = map[string]bool{}
	}
	f.members[challengeID][userID] = true
	return nil
}

func (f fakeMembers) Remove(_ context.Context, challengeID, userID string) error {
	if err := f.failing("members.Remove"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.members[challengeID][userID] {
		return common.ErrorNotFound
	}
	delete(f.members[challengeID], userID)
	return nil
}

func (f fakeMembers) IsMember(_ context.Context, challengeID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[challengeID][userID], nil
}

func (f fakeMembers) ListUserIDs(_ context.Context, challengeID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id := range f.members[challengeID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// --- tasks ---

type fakeTasks struct{ *store }

func (f fakeTasks) Create(_ context.Context, ts ...*models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range ts {
		cp := *t
		f.tasks[t.ID] = &cp
	}
	return nil
}

func (f fakeTasks) filter(keep func(*models.Task) bool) []*models.Task {
	var out []*models.Task
	for _, t := range f.tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f fakeTasks) ListTemplates(_ context.Context, challengeID string) ([]*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneTasks(f.filter(func(t *models.Task) bool { return t.Challenge.ID == challengeID && t.UserID == "" })), nil
}

func (f fakeTasks) ListMirrors(_ context.Context, challengeID string) ([]*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneTasks(f.filter(func(t *models.Task) bool { return t.Challenge.ID == challengeID && t.UserID != "" })), nil
}

func (f fakeTasks) DetachMirrors(_ context.Context, challengeID, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts := f.filter(func(t *models.Task) bool { return t.Challenge.ID == challengeID && t.UserID == userID })
	for _, t := range ts {
		t.Challenge.ID, t.Challenge.TaskID = "", ""
	}
	return int64(len(ts)), nil
}

func (f fakeTasks) DeleteMirrors(_ context.Context, challengeID, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts := f.filter(func(t *models.Task) bool { return t.Challenge.ID == challengeID && t.UserID == userID })
	for _, t := range ts {
		delete(f.tasks, t.ID)
	}
	return int64(len(ts)), nil
}

func (f fakeTasks) DeleteTemplates(_ context.Context, challengeID string) (int64, error) {
	if err := f.failing("tasks.DeleteTemplates"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ts := f.filter(func(t *models.Task) bool { return t.Challenge.ID == challengeID && t.UserID == "" })
	for _, t := range ts {
		delete(f.tasks, t.ID)
	}
	return int64(len(ts)), nil
}

func (f fakeTasks) BreakMirrors(_ context.Context, challengeID string, reason models.ClosureReason, winner string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts := f.filter(func(t *models.Task) bool {
		return t.Challenge.ID == challengeID && t.UserID != "" && t.Challenge.Broken == ""
	})
	for _, t := range ts {
		t.Challenge.Broken, t.Challenge.Winner = reason, winner
	}
	return int64(len(ts)), nil
}

func cloneTasks(ts []*models.Task) []*models.Task {
	out := make([]*models.Task, 0, len(ts))
	for _, t := range ts {
		cp := *t
		out = append(out, &cp)
	}
	return out
}

// --- tags ---

type fakeTags struct{ *store }

func (f fakeTags) Upsert(_ context.Context, tag *models.Tag) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tags[tag.UserID] == nil {
		f.tags[tag.UserID] = map[string]*models.Tag{}
	}
	cp := *tag
	f.tags[tag.UserID][tag.ID] = &cp
	return nil
}

func (f fakeTags) SetChallenge(_ context.Context, userID, tagID string, challenge bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tags[userID][tagID]; ok {
		t.Challenge = challenge
	}
	return nil
}

// --- collaborators ---

// syncCleanup runs jobs on the caller's goroutine through a real dispatcher.
type syncCleanup struct {
	d    *cleanup.Dispatcher
	err  error
	jobs []cleanup.Job
	errs []error
}

func (c *syncCleanup) Submit(job cleanup.Job) error {
	if c.err != nil {
		return c.err
	}
	c.jobs = append(c.jobs, job)
	c.errs = append(c.errs, c.d.Run(context.Background(), job))
	return nil
}

type recordingNotifier struct {
	sent []notify.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Notification) error {
	n.sent = append(n.sent, msg)
	return n.err
}

// --- harness ---

type harness struct {
	t        *testing.T
	svc      *ChallengeService
	store    *store
	mock     sqlmock.Sqlmock
	cleanup  *syncCleanup
	notifier *recordingNotifier
	objects  *memObjects
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.PublicGroupID = publicGroupID

	h := &harness{
		t:        t,
		store:    newStore(),
		mock:     mock,
		cleanup:  &syncCleanup{d: cleanup.NewDispatcher(cleanup.Config{Attempts: 1}, logging.Nop{})},
		notifier: &recordingNotifier{},
		objects:  &memObjects{data: map[string][]byte{}},
	}
	h.svc = NewChallengeService(db, fakeManager{h.store}, cfg, h.cleanup, h.notifier, h.objects, logging.Nop{})

	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	h.store.groups[publicGroupID] = &models.Group{
		ID: publicGroupID, Name: "Tavern", Kind: models.GroupGuild, Privacy: models.PrivacyPublic,
	}
	return h
}

func (h *harness) expectCommit() {
	h.mock.ExpectBegin()
	h.mock.ExpectCommit()
}

func (h *harness) expectRollback() {
	h.mock.ExpectBegin()
	h.mock.ExpectRollback()
}

func (h *harness) addUser(name string, balance string) *models.User {
	u := &models.User{
		ID: uuid.NewString(), UserName: name, DisplayName: name,
		Balance:     decimal.RequireFromString(balance),
		Preferences: models.NotificationPreferences{EmailWonChallenge: true, PushWonChallenge: true},
	}
	h.store.users[u.ID] = u
	return u
}

func (h *harness) addGroup(leader *models.User, privacy models.GroupPrivacy, balance string, members ...*models.User) *models.Group {
	g := &models.Group{
		ID: uuid.NewString(), Name: "g", Kind: models.GroupGuild, Privacy: privacy,
		Balance: decimal.RequireFromString(balance),
	}
	if leader != nil {
		g.LeaderID = leader.ID
		members = append(members, leader)
	}
	h.store.groups[g.ID] = g
	h.store.groupMembers[g.ID] = map[string]bool{}
	for _, m := range members {
		h.store.groupMembers[g.ID][m.ID] = true
	}
	return g
}

func (h *harness) balance(u *models.User) decimal.Decimal {
	return h.store.users[u.ID].Balance
}

func (h *harness) mirrorsOf(userID, challengeID string) int {
	n := 0
	for _, t := range h.store.tasks {
		if t.UserID == userID && t.Challenge.ID == challengeID {
			n++
		}
	}
	return n
}

func (h *harness) memberSetSize(challengeID string) int {
	return len(h.store.members[challengeID])
}

// memObjects is an in-memory ObjectStore.
type memObjects struct {
	data   map[string][]byte
	putErr error
}

func (m *memObjects) Put(_ context.Context, key string, body io.ReadSeeker, _ string) error {
	if m.putErr != nil {
		return m.putErr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.data[key] = b
	return nil
}

func (m *memObjects) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://objects.test/%s?ttl=%d", key, int(ttl.Seconds())), nil
}

func errorInsufficient() error { return common.ErrorInsufficientBalance }
