package engine

import (
	stdctx "context"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/blanchy21/TipsterNew-sub000/internal/database"
	"github.com/blanchy21/TipsterNew-sub000/internal/engine/actors"
	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/stats"
	"github.com/blanchy21/TipsterNew-sub000/internal/tips"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
)

// Dependencies are the collaborators the engine's actors run against.
type Dependencies struct {
	Store      database.Store
	Aggregator *stats.Aggregator // nil disables stats invalidation
	Rules      *models.SportRules
	PageSize   int
	Listener   actors.SessionListener
	Metrics    *utils.MetricsCollector
	Now        func() time.Time
}

// Engine coordinates communication between actors
type Engine struct {
	feedSupervisor    *actor.PID
	verificationActor *actor.PID
	commentActor      *actor.PID
	aggregator        *stats.Aggregator
}

func NewEngine(system *actor.ActorSystem, deps Dependencies) *Engine {
	context := system.Root
	if deps.Rules == nil {
		deps.Rules = models.NewSportRules(models.DefaultPlacingSports)
	}

	engagement := tips.NewEngagement(deps.Store, deps.Metrics)
	e := &Engine{aggregator: deps.Aggregator}

	var invalidator actors.StatsInvalidator
	if deps.Aggregator != nil {
		invalidator = deps.Aggregator
	}

	// Spawn feed supervisor
	feedDeps := actors.FeedDeps{
		Store:         deps.Store,
		Engagement:    engagement,
		PageSize:      deps.PageSize,
		Listener:      deps.Listener,
		Metrics:       deps.Metrics,
		OnTipsChanged: e.invalidateStats,
		Now:           deps.Now,
	}
	feedProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewFeedSupervisor(feedDeps)
	})
	e.feedSupervisor = context.Spawn(feedProps)

	// Spawn verification actor
	verifier := tips.NewVerifier(deps.Store, deps.Rules, deps.Now)
	verificationProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewVerificationActor(deps.Store, verifier, invalidator, deps.Metrics)
	})
	e.verificationActor = context.Spawn(verificationProps)

	// Spawn comment actor
	comments := tips.NewCommentService(deps.Store, engagement, deps.Now)
	commentProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewCommentActor(comments, deps.Metrics)
	})
	e.commentActor = context.Spawn(commentProps)

	return e
}

func (e *Engine) invalidateStats(authorID string) {
	if e.aggregator == nil {
		return
	}
	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), 5*time.Second)
	defer cancel()
	e.aggregator.Invalidate(ctx, authorID)
}

// GetFeedSupervisor returns the PID of the per-session feed supervisor
func (e *Engine) GetFeedSupervisor() *actor.PID {
	return e.feedSupervisor
}

// GetVerificationActor returns the PID of the verification actor
func (e *Engine) GetVerificationActor() *actor.PID {
	return e.verificationActor
}

// GetCommentActor returns the PID of the comment actor
func (e *Engine) GetCommentActor() *actor.PID {
	return e.commentActor
}

// GetAggregator returns the stats aggregator, or nil when stats are disabled
func (e *Engine) GetAggregator() *stats.Aggregator {
	return e.aggregator
}
