package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"giveroute/internal/controller/store"
	"giveroute/pkg/domain"
	dErrors "giveroute/pkg/domain-errors"
	audit "giveroute/pkg/platform/audit"
	"giveroute/pkg/platform/audit/publisher"
	"giveroute/pkg/platform/audit/store/memory"
	"giveroute/pkg/platform/tx"
	"giveroute/pkg/testutil"
)

type ControllerServiceSuite struct {
	suite.Suite
	events     *memory.InMemoryStore
	service    *Service
	controller domain.Address
	successor  domain.Address
	stranger   domain.Address
	now        time.Time
}

func TestControllerServiceSuite(t *testing.T) {
	suite.Run(t, new(ControllerServiceSuite))
}

func (s *ControllerServiceSuite) SetupTest() {
	s.events = memory.NewInMemoryStore()
	s.service = New(store.NewInMemory(), tx.NewLocker(), WithAuditPublisher(publisher.NewPublisher(s.events)))
	s.controller = domain.NewRandomAddress()
	s.successor = domain.NewRandomAddress()
	s.stranger = domain.NewRandomAddress()
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Require().NoError(s.service.Bootstrap(context.Background(), s.controller))
}

func (s *ControllerServiceSuite) as(caller domain.Address) context.Context {
	return testutil.CallerContext(caller, s.now)
}

func (s *ControllerServiceSuite) TestBootstrap() {
	s.Run("keeps existing controller", func() {
		s.Require().NoError(s.service.Bootstrap(context.Background(), s.stranger))
		current, err := s.service.Current(context.Background())
		s.Require().NoError(err)
		s.Equal(s.controller, current)
	})

	s.Run("rejects zero address", func() {
		err := s.service.Bootstrap(context.Background(), domain.ZeroAddress)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ControllerServiceSuite) TestAuthorize() {
	s.NoError(s.service.Authorize(s.as(s.controller)))
	s.True(dErrors.HasCode(s.service.Authorize(s.as(s.stranger)), dErrors.CodeUnauthorized))
	s.True(dErrors.HasCode(s.service.Authorize(context.Background()), dErrors.CodeUnauthorized))
}

func (s *ControllerServiceSuite) TestHandover() {
	s.Run("non-controller cannot propose", func() {
		err := s.service.Propose(s.as(s.stranger), s.stranger)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("only the pending controller can accept", func() {
		s.Require().NoError(s.service.Propose(s.as(s.controller), s.successor))

		pending, err := s.service.Pending(context.Background())
		s.Require().NoError(err)
		s.Equal(s.successor, pending)

		err = s.service.Accept(s.as(s.stranger))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		s.Require().NoError(s.service.Accept(s.as(s.successor)))
		state, err := s.service.State(context.Background())
		s.Require().NoError(err)
		s.Equal(s.successor, state.Current)
		s.False(state.HasPending())

		s.True(dErrors.HasCode(s.service.Authorize(s.as(s.controller)), dErrors.CodeUnauthorized))
		s.NoError(s.service.Authorize(s.as(s.successor)))
	})

	s.Run("events are recorded", func() {
		events, err := s.events.ListAll(context.Background())
		s.Require().NoError(err)
		s.Require().Len(events, 2)
		s.Equal(string(audit.EventControllerProposed), events[0].Action)
		s.Equal(s.successor, events[0].Destination)
		s.Equal(s.controller, events[0].ActorID)
		s.Equal(audit.CategoryAccess, events[0].Category)
		s.Equal(string(audit.EventControllerChanged), events[1].Action)
	})
}

func (s *ControllerServiceSuite) TestProposeZeroCancels() {
	s.Require().NoError(s.service.Propose(s.as(s.controller), s.successor))
	s.Require().NoError(s.service.Propose(s.as(s.controller), domain.ZeroAddress))

	err := s.service.Accept(s.as(s.successor))
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
