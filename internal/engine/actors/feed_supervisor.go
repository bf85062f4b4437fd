package actors

import (
	"github.com/asynkron/protoactor-go/actor"
	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/sirupsen/logrus"
)

// FeedSupervisor manages one FeedActor per client session. Session messages
// are forwarded untouched so the child answers the original requester.
type FeedSupervisor struct {
	sessions map[string]*actor.PID
	deps     FeedDeps
}

func NewFeedSupervisor(deps FeedDeps) actor.Actor {
	return &FeedSupervisor{
		sessions: make(map[string]*actor.PID),
		deps:     deps,
	}
}

func (s *FeedSupervisor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		utils.Log.Info("Feed supervisor started")

	case *EndSessionMsg:
		if pid, ok := s.sessions[msg.SessionID]; ok {
			context.Stop(pid)
			delete(s.sessions, msg.SessionID)
			utils.Log.WithField("sessionID", msg.SessionID).Debug("Session ended")
		}
		context.Respond(&models.StatusResponse{Success: true})

	case *GetSessionCountMsg:
		context.Respond(len(s.sessions))

	case *actor.Terminated:
		for id, pid := range s.sessions {
			if pid.Equal(msg.Who) {
				delete(s.sessions, id)
				utils.Log.WithField("sessionID", id).Warn("Feed actor terminated")
				break
			}
		}

	case sessionMessage:
		session := msg.session()
		if session.SessionID == "" {
			context.Respond(utils.NewValidationError("a session id is required"))
			return
		}
		context.Forward(s.getOrCreateSessionActor(context, session))
	}
}

func (s *FeedSupervisor) getOrCreateSessionActor(context actor.Context, session Session) *actor.PID {
	if pid, ok := s.sessions[session.SessionID]; ok {
		return pid
	}

	deps := s.deps
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewFeedActor(session, deps)
	})
	pid := context.Spawn(props)
	s.sessions[session.SessionID] = pid

	utils.Log.WithFields(logrus.Fields{
		"sessionID": session.SessionID,
		"userID":    session.UserID,
	}).Debug("Spawned feed actor")
	return pid
}
