// Package services contains the challenge lifecycle business logic:
// creation with funding, membership, closure and member export.
package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"time"

	"github.com/bily-amin/habitica/internal/apperr"
	"github.com/bily-amin/habitica/internal/common"
	"github.com/bily-amin/habitica/internal/dbx"
	"github.com/bily-amin/habitica/internal/logging"
	"github.com/bily-amin/habitica/internal/server/cleanup"
	"github.com/bily-amin/habitica/internal/server/config"
	"github.com/bily-amin/habitica/internal/server/models"
	"github.com/bily-amin/habitica/internal/server/notify"
	"github.com/bily-amin/habitica/internal/server/policy"
	"github.com/bily-amin/habitica/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/bily-amin/habitica/internal/server/services")

// CleanupDispatcher accepts post-commit work.
type CleanupDispatcher interface {
	Submit(job cleanup.Job) error
}

// ObjectStore keeps exported files and hands out temporary download links.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.ReadSeeker, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// ChallengeService implements every challenge operation for an acting user.
type ChallengeService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	publicGroupID string
	exportTTL     time.Duration
	cleanup       CleanupDispatcher
	notifier      notify.Notifier
	store         ObjectStore
	log           logging.Logger
	newID         func() string
}

func NewChallengeService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config,
	d CleanupDispatcher, n notify.Notifier, store ObjectStore, log logging.Logger) *ChallengeService {
	return &ChallengeService{
		db:            db,
		repomanager:   m,
		publicGroupID: cfg.PublicGroupID,
		exportTTL:     cfg.ExportURLValidity,
		cleanup:       d,
		notifier:      n,
		store:         store,
		log:           log.With("module", "challenges"),
		newID:         uuid.NewString,
	}
}

// startSpan opens a span and returns a finisher that records err on it.
func startSpan(ctx context.Context, name string, attrs ...string) (context.Context, func(*error)) {
	ctx, span := tracer.Start(ctx, name)
	for i := 0; i+1 < len(attrs); i += 2 {
		span.SetAttributes(attribute.String(attrs[i], attrs[i+1]))
	}
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		span.End()
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// notFoundAs converts the repository sentinel into a domain NotFound.
func notFoundAs(err error, message string) error {
	if errors.Is(err, common.ErrorNotFound) {
		return apperr.NotFound(message)
	}
	return err
}

func (s *ChallengeService) actor(ctx context.Context, db dbx.DBTX, actorID string) (*models.User, error) {
	if !validID(actorID) {
		return nil, apperr.Validation("invalid user id")
	}
	u, err := s.repomanager.Users(db).GetByID(ctx, actorID)
	if err != nil {
		return nil, notFoundAs(err, "user not found")
	}
	return u, nil
}

// lookupGroup loads a group and fills IsMember for the actor. Groups the
// actor may not see under mode are reported as not found.
func (s *ChallengeService) lookupGroup(ctx context.Context, db dbx.DBTX, actor *models.User, groupID string, mode policy.Membership) (*models.Group, error) {
	if !validID(groupID) {
		return nil, apperr.Validation("invalid group id")
	}
	repo := s.repomanager.Groups(db)

	g, err := repo.GetByID(ctx, groupID)
	if err != nil {
		return nil, notFoundAs(err, "group not found")
	}

	g.IsMember = g.ID == s.publicGroupID
	if !g.IsMember {
		if g.IsMember, err = repo.IsMember(ctx, g.ID, actor.ID); err != nil {
			return nil, err
		}
	}

	if !policy.CanSeeGroup(g, g.IsMember, mode, s.publicGroupID) {
		return nil, apperr.NotFound("group not found")
	}
	return g, nil
}

// challengeView is a challenge together with what the actor may do with it.
type challengeView struct {
	actor     *models.User
	challenge *models.Challenge
	group     *models.Group
	rel       policy.Relationship
	caps      policy.Capabilities
}

// loadChallenge resolves the challenge and the actor's capabilities on it.
// A challenge the actor cannot view is reported as not found.
func (s *ChallengeService) loadChallenge(ctx context.Context, db dbx.DBTX, actorID, challengeID string) (*challengeView, error) {
	if !validID(challengeID) {
		return nil, apperr.Validation("invalid challenge id")
	}
	actor, err := s.actor(ctx, db, actorID)
	if err != nil {
		return nil, err
	}

	c, err := s.repomanager.Challenges(db).GetByID(ctx, challengeID)
	if err != nil {
		return nil, notFoundAs(err, "challenge not found")
	}

	g, err := s.lookupGroup(ctx, db, actor, c.GroupID, policy.OptionalMembership)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	isMember, err := s.repomanager.Members(db).IsMember(ctx, c.ID, actor.ID)
	if err != nil {
		return nil, err
	}

	v := &challengeView{actor: actor, challenge: c, group: g}
	v.rel = policy.Relationship{IsMember: isMember, PublicGroupID: s.publicGroupID}
	if g != nil {
		v.rel.InGroup = g.IsMember
	}
	v.caps = policy.Evaluate(policy.Actor{ID: actor.ID, IsAdmin: actor.IsAdmin}, c, g, v.rel)

	if !v.caps.Has(policy.View) {
		return nil, apperr.NotFound("challenge not found")
	}
	return v, nil
}
