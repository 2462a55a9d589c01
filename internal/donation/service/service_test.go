package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Registry

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	controllerservice "giveroute/internal/controller/service"
	controllerstore "giveroute/internal/controller/store"
	"giveroute/internal/donation/metrics"
	"giveroute/internal/donation/models"
	"giveroute/internal/donation/ranking"
	"giveroute/internal/donation/service/mocks"
	"giveroute/internal/donation/store/ledger"
	"giveroute/internal/payout"
	payoutmocks "giveroute/internal/payout/mocks"
	registrymodels "giveroute/internal/registry/models"
	registryservice "giveroute/internal/registry/service"
	"giveroute/internal/registry/store/charity"
	"giveroute/pkg/domain"
	dErrors "giveroute/pkg/domain-errors"
	audit "giveroute/pkg/platform/audit"
	"giveroute/pkg/platform/audit/publisher"
	"giveroute/pkg/platform/audit/store/memory"
	"giveroute/pkg/platform/tx"
	reqtestutil "giveroute/pkg/testutil"
)

type RouterSuite struct {
	suite.Suite
	now        time.Time
	controller domain.Address
	donor      domain.Address
	admin      context.Context
	donorCtx   context.Context

	events   *memory.InMemoryStore
	registry *registryservice.Service
	counters *ledger.InMemoryStore
	book     *payout.Ledger
	rankings *ranking.InMemory
	metrics  *metrics.Metrics
	router   *Router
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.controller = domain.NewRandomAddress()
	s.donor = domain.NewRandomAddress()
	s.admin = reqtestutil.CallerContext(s.controller, s.now)
	s.donorCtx = reqtestutil.CallerContext(s.donor, s.now)

	locker := tx.NewLocker()
	controller := controllerservice.New(controllerstore.NewInMemory(), locker)
	s.Require().NoError(controller.Bootstrap(context.Background(), s.controller))

	s.events = memory.NewInMemoryStore()
	events := publisher.NewPublisher(s.events)
	s.registry = registryservice.New(charity.NewInMemory(), locker, controller, registryservice.WithAuditPublisher(events))
	s.counters = ledger.NewInMemory()
	s.book = payout.NewLedger()
	s.rankings = ranking.NewInMemory()
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	s.router = New(s.registry, s.counters, s.book, locker,
		WithAuditPublisher(events),
		WithRanker(s.rankings),
		WithMetrics(s.metrics),
	)

	s.Require().NoError(s.book.Credit(context.Background(), s.donor, 1_000))
}

func (s *RouterSuite) register(name string) domain.Address {
	dest := domain.NewRandomAddress()
	_, err := s.registry.Register(s.admin, name, dest)
	s.Require().NoError(err)
	return dest
}

func (s *RouterSuite) charity(dest domain.Address) registrymodels.Charity {
	c, err := s.registry.LookupByDestination(s.admin, dest)
	s.Require().NoError(err)
	return c
}

func (s *RouterSuite) stats() models.Counters {
	c, err := s.router.DonationStats(context.Background())
	s.Require().NoError(err)
	return c
}

func (s *RouterSuite) donationEvents() []audit.Event {
	all, err := s.events.ListAll(context.Background())
	s.Require().NoError(err)
	var out []audit.Event
	for _, e := range all {
		if e.Action == string(audit.EventDonationRouted) {
			out = append(out, e)
		}
	}
	return out
}

// assertUntouched checks that a failed donation left no trace.
func (s *RouterSuite) assertUntouched(dest domain.Address, donorBalance uint64, before models.Counters) {
	s.Equal(before, s.stats())
	s.Equal(donorBalance, s.book.Balance(context.Background(), s.donor))
	s.Zero(s.book.Balance(context.Background(), dest))
	c := s.charity(dest)
	s.Zero(c.LifetimeReceived)
	s.Zero(c.DonationCount)
	s.Empty(s.donationEvents())
}

func (s *RouterSuite) TestDonate() {
	s.Run("routes the full amount and records it", func() {
		dest := s.register("Red Cross")

		receipt, err := s.router.Donate(s.donorCtx, dest, 100)
		s.Require().NoError(err)
		s.Equal(uint64(1), receipt.DonationID)
		s.Equal(s.donor, receipt.Donor)
		s.Equal(dest, receipt.Destination)
		s.Equal("Red Cross", receipt.Name)
		s.Equal(uint64(100), receipt.Amount)
		s.Equal(s.now, receipt.RoutedAt)

		c := s.charity(dest)
		s.Equal(uint64(100), c.LifetimeReceived)
		s.Equal(uint64(1), c.DonationCount)
		s.Equal(models.Counters{TotalDonations: 1, TotalRouted: 100, NextDonationID: 2}, s.stats())

		s.Equal(uint64(900), s.book.Balance(context.Background(), s.donor))
		s.Equal(uint64(100), s.book.Balance(context.Background(), dest))
		s.Equal(uint64(1_000), s.book.Supply())

		events := s.donationEvents()
		s.Require().Len(events, 1)
		s.Equal(uint64(1), events[0].DonationID)
		s.Equal(s.donor, events[0].ActorID)
		s.Equal(dest, events[0].Destination)
		s.Equal("Red Cross", events[0].Name)
		s.Equal(uint64(100), events[0].Amount)

		s.Equal(1.0, testutil.ToFloat64(s.metrics.DonationsRouted))
		s.Equal(100.0, testutil.ToFloat64(s.metrics.ValueRouted))
	})

	s.Run("by name follows the binding", func() {
		s.SetupTest()
		dest := s.register("Red Cross")
		receipt, err := s.router.DonateByName(s.donorCtx, "Red Cross", 40)
		s.Require().NoError(err)
		s.Equal(dest, receipt.Destination)
		s.Equal(uint64(40), s.book.Balance(context.Background(), dest))

		_, err = s.router.DonateByName(s.donorCtx, "Nobody", 40)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("zero amount is rejected regardless of destination", func() {
		s.SetupTest()
		_, err := s.router.Donate(s.donorCtx, domain.NewRandomAddress(), 0)
		s.True(dErrors.HasCode(err, dErrors.CodeEmptyDonation))
		_, err = s.router.Donate(s.donorCtx, domain.ZeroAddress, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeEmptyDonation))
		_, err = s.router.DonateByName(s.donorCtx, "", 0)
		s.True(dErrors.HasCode(err, dErrors.CodeEmptyDonation))
		s.Equal(models.NewCounters(), s.stats())
	})

	s.Run("removed charity is not found", func() {
		s.SetupTest()
		dest := s.register("X")
		s.Require().NoError(s.registry.Remove(s.admin, dest))
		_, err := s.router.Donate(s.donorCtx, dest, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("inactive charity is rejected", func() {
		s.SetupTest()
		dest := s.register("X")
		s.Require().NoError(s.registry.SetActive(s.admin, dest, false))
		_, err := s.router.Donate(s.donorCtx, dest, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeInactive))
		s.assertUntouched(dest, 1_000, models.NewCounters())
	})

	s.Run("unknown destination is not found", func() {
		s.SetupTest()
		_, err := s.router.Donate(s.donorCtx, domain.NewRandomAddress(), 1)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.DonationsRejected.WithLabelValues(string(dErrors.CodeNotFound))))
	})
}

func (s *RouterSuite) TestTransferFailureRollsBack() {
	s.Run("receiver rejection", func() {
		dest := s.register("Red Cross")
		s.book.SetReceiver(dest, payout.ReceiverFunc(func(context.Context, domain.Address, uint64) error {
			return errors.New("not accepting payments")
		}))

		_, err := s.router.Donate(s.donorCtx, dest, 100)
		s.True(dErrors.HasCode(err, dErrors.CodeTransferFailed))
		s.assertUntouched(dest, 1_000, models.NewCounters())
		s.Equal(1.0, testutil.ToFloat64(s.metrics.TransferFailures))

		rows, err := s.router.Rankings(context.Background(), 10)
		s.Require().NoError(err)
		s.Empty(rows)
	})

	s.Run("insufficient donor balance", func() {
		s.SetupTest()
		dest := s.register("Red Cross")
		_, err := s.router.Donate(s.donorCtx, dest, 1_001)
		s.True(dErrors.HasCode(err, dErrors.CodeTransferFailed))
		s.assertUntouched(dest, 1_000, models.NewCounters())
	})

	s.Run("anonymous donor has nothing to give", func() {
		s.SetupTest()
		dest := s.register("Red Cross")
		_, err := s.router.Donate(context.Background(), dest, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeTransferFailed))
	})

	s.Run("failed donation does not consume an id", func() {
		s.SetupTest()
		dest := s.register("Red Cross")
		reject := true
		s.book.SetReceiver(dest, payout.ReceiverFunc(func(context.Context, domain.Address, uint64) error {
			if reject {
				return errors.New("closed")
			}
			return nil
		}))

		reject = false
		first, err := s.router.Donate(s.donorCtx, dest, 10)
		s.Require().NoError(err)
		reject = true
		_, err = s.router.Donate(s.donorCtx, dest, 10)
		s.Require().Error(err)
		reject = false
		second, err := s.router.Donate(s.donorCtx, dest, 10)
		s.Require().NoError(err)

		s.Equal(uint64(1), first.DonationID)
		s.Equal(uint64(2), second.DonationID)
		s.Equal(uint64(20), s.charity(dest).LifetimeReceived)
	})
}

func (s *RouterSuite) TestReentrancy() {
	s.Run("donation from inside the transfer is rejected", func() {
		dest := s.register("Red Cross")
		other := s.register("Oxfam")
		var inner error
		s.book.SetReceiver(dest, payout.ReceiverFunc(func(ctx context.Context, _ domain.Address, _ uint64) error {
			_, inner = s.router.Donate(ctx, other, 1)
			return nil
		}))

		receipt, err := s.router.Donate(s.donorCtx, dest, 100)
		s.Require().NoError(err)
		s.Equal(uint64(1), receipt.DonationID)
		s.True(dErrors.HasCode(inner, dErrors.CodeReentrant))

		s.Zero(s.charity(other).DonationCount)
		s.Equal(models.Counters{TotalDonations: 1, TotalRouted: 100, NextDonationID: 2}, s.stats())
		s.Equal(1.0, testutil.ToFloat64(s.metrics.ReentrancyRejected))
	})

	s.Run("receiver calling back with a context of its own is rejected", func() {
		s.SetupTest()
		dest := s.register("Red Cross")
		other := s.register("Oxfam")
		var inner error
		s.book.SetReceiver(dest, payout.ReceiverFunc(func(context.Context, domain.Address, uint64) error {
			_, inner = s.router.Donate(reqtestutil.CallerContext(dest, s.now), other, 1)
			return nil
		}))

		_, err := s.router.Donate(s.donorCtx, dest, 100)
		s.Require().NoError(err)
		s.True(dErrors.HasCode(inner, dErrors.CodeReentrant))
		s.Zero(s.charity(other).DonationCount)
		s.Zero(s.book.Balance(context.Background(), other))
	})

	s.Run("donation from another goroutine while one is in flight is rejected", func() {
		s.SetupTest()
		dest := s.register("Red Cross")
		var inner error
		s.book.SetReceiver(dest, payout.ReceiverFunc(func(context.Context, domain.Address, uint64) error {
			done := make(chan struct{})
			go func() {
				defer close(done)
				_, inner = s.router.DonateByName(context.Background(), "Red Cross", 1)
			}()
			<-done
			return nil
		}))

		_, err := s.router.Donate(s.donorCtx, dest, 10)
		s.Require().NoError(err)
		s.True(dErrors.HasCode(inner, dErrors.CodeReentrant))
	})

	s.Run("queued call from inside the transfer times out", func() {
		s.SetupTest()
		dest := s.register("Red Cross")
		queue := NewQueue(s.router, WithQueueTimeout(50*time.Millisecond))
		var inner error
		s.book.SetReceiver(dest, payout.ReceiverFunc(func(context.Context, domain.Address, uint64) error {
			_, inner = queue.Donate(reqtestutil.CallerContext(dest, s.now), dest, 1)
			return nil
		}))

		receipt, err := queue.Donate(s.donorCtx, dest, 10)
		s.Require().NoError(err)
		s.Equal(uint64(1), receipt.DonationID)
		s.True(dErrors.HasCode(inner, dErrors.CodeTimeout))
		s.Equal(models.Counters{TotalDonations: 1, TotalRouted: 10, NextDonationID: 2}, s.stats())
	})

	s.Run("reentrant call is rejected before validation", func() {
		s.SetupTest()
		dest := s.register("Red Cross")
		var inner error
		s.book.SetReceiver(dest, payout.ReceiverFunc(func(ctx context.Context, _ domain.Address, _ uint64) error {
			_, inner = s.router.DonateByName(ctx, "", 0)
			return nil
		}))

		_, err := s.router.Donate(s.donorCtx, dest, 5)
		s.Require().NoError(err)
		s.True(dErrors.HasCode(inner, dErrors.CodeReentrant))
	})

	s.Run("receiver that propagates the rejection fails the outer donation", func() {
		s.SetupTest()
		dest := s.register("Red Cross")
		s.book.SetReceiver(dest, payout.ReceiverFunc(func(ctx context.Context, _ domain.Address, _ uint64) error {
			_, err := s.router.Donate(ctx, dest, 1)
			return err
		}))

		_, err := s.router.Donate(s.donorCtx, dest, 100)
		s.True(dErrors.HasCode(err, dErrors.CodeTransferFailed))
		s.assertUntouched(dest, 1_000, models.NewCounters())
	})

	s.Run("guard is released on every exit path", func() {
		s.SetupTest()
		dest := s.register("Red Cross")
		_, err := s.router.Donate(s.donorCtx, dest, 0)
		s.Require().Error(err)
		_, err = s.router.Donate(s.donorCtx, domain.NewRandomAddress(), 1)
		s.Require().Error(err)
		_, err = s.router.Donate(s.donorCtx, dest, 5_000)
		s.Require().Error(err)

		_, err = s.router.Donate(s.donorCtx, dest, 1)
		s.NoError(err)
	})

	s.Run("separate routers do not share a guard", func() {
		s.SetupTest()
		dest := s.register("Red Cross")
		other := New(s.registry, ledger.NewInMemory(), s.book, tx.NewLocker())
		var inner error
		s.book.SetReceiver(dest, payout.ReceiverFunc(func(ctx context.Context, _ domain.Address, _ uint64) error {
			s.book.SetReceiver(dest, nil)
			_, inner = other.Donate(ctx, dest, 1)
			return nil
		}))

		_, err := s.router.Donate(s.donorCtx, dest, 10)
		s.Require().NoError(err)
		s.NoError(inner)
	})
}

func (s *RouterSuite) TestOverflow() {
	dest := s.register("Red Cross")
	full := models.Counters{TotalDonations: 1, TotalRouted: math.MaxUint64 - 10, NextDonationID: 2}
	s.Require().NoError(s.counters.Save(context.Background(), full))

	_, err := s.router.Donate(s.donorCtx, dest, 11)
	s.True(dErrors.HasCode(err, dErrors.CodeOverflow))
	s.assertUntouched(dest, 1_000, full)
}

func (s *RouterSuite) TestStatistics() {
	s.Run("ids are contiguous and the average floors", func() {
		a := s.register("A")
		b := s.register("B")
		var ids []uint64
		for _, d := range []struct {
			dest   domain.Address
			amount uint64
		}{{a, 100}, {b, 50}, {a, 1}} {
			receipt, err := s.router.Donate(s.donorCtx, d.dest, d.amount)
			s.Require().NoError(err)
			ids = append(ids, receipt.DonationID)
		}
		s.Equal([]uint64{1, 2, 3}, ids)

		totals, err := s.router.TotalStats(context.Background())
		s.Require().NoError(err)
		s.Equal(models.TotalStats{
			TotalCharities:  2,
			ActiveCharities: 2,
			TotalDonations:  3,
			TotalRouted:     151,
			AverageDonation: 50,
		}, totals)

		s.Equal(uint64(101), s.charity(a).LifetimeReceived)
		s.Equal(uint64(2), s.charity(a).DonationCount)
	})

	s.Run("totals count removed and inactive charities", func() {
		s.SetupTest()
		a := s.register("A")
		b := s.register("B")
		s.register("C")
		s.Require().NoError(s.registry.Remove(s.admin, a))
		s.Require().NoError(s.registry.SetActive(s.admin, b, false))

		totals, err := s.router.TotalStats(context.Background())
		s.Require().NoError(err)
		s.Equal(3, totals.TotalCharities)
		s.Equal(1, totals.ActiveCharities)
		s.Zero(totals.AverageDonation)
	})

	s.Run("re-registered destination counts once as active", func() {
		s.SetupTest()
		dest := s.register("A")
		s.Require().NoError(s.registry.Remove(s.admin, dest))
		_, err := s.registry.Register(s.admin, "A", dest)
		s.Require().NoError(err)

		all, err := s.registry.Enumerate(s.admin)
		s.Require().NoError(err)
		s.Equal([]domain.Address{dest, dest}, all)

		totals, err := s.router.TotalStats(context.Background())
		s.Require().NoError(err)
		s.Equal(2, totals.TotalCharities)
		s.Equal(1, totals.ActiveCharities)
	})

	s.Run("rankings follow value received", func() {
		s.SetupTest()
		a := s.register("A")
		b := s.register("B")
		_, err := s.router.Donate(s.donorCtx, a, 10)
		s.Require().NoError(err)
		_, err = s.router.Donate(s.donorCtx, b, 30)
		s.Require().NoError(err)

		rows, err := s.router.Rankings(context.Background(), 10)
		s.Require().NoError(err)
		s.Equal([]models.Ranking{{Destination: b, Received: 30}, {Destination: a, Received: 10}}, rows)
	})
}

func (s *RouterSuite) TestConcurrentDonations() {
	dest := s.register("Red Cross")
	const donors = 20
	ctxs := make([]context.Context, donors)
	for i := range ctxs {
		donor := domain.NewRandomAddress()
		s.Require().NoError(s.book.Credit(context.Background(), donor, 10))
		ctxs[i] = reqtestutil.CallerContext(donor, s.now)
	}

	queue := NewQueue(s.router)
	var wg sync.WaitGroup
	ids := make([]uint64, donors)
	for i := range ctxs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			receipt, err := queue.Donate(ctxs[i], dest, 10)
			if err == nil {
				ids[i] = receipt.DonationID
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool, donors)
	for _, id := range ids {
		s.NotZero(id)
		s.False(seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	s.Equal(models.Counters{TotalDonations: donors, TotalRouted: donors * 10, NextDonationID: donors + 1}, s.stats())
	s.Equal(uint64(donors*10), s.book.Balance(context.Background(), dest))
}

func TestRankingFailureDoesNotFailDonation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRegistry := mocks.NewMockRegistry(ctrl)
	mockRanker := mocks.NewMockRanker(ctrl)
	mockTransfer := payoutmocks.NewMockTransferer(ctrl)
	counters := ledger.NewInMemory()

	donor := domain.NewRandomAddress()
	dest := domain.NewRandomAddress()
	ctx := reqtestutil.CallerContext(donor, time.Now())
	record := &registrymodels.Charity{Name: "Red Cross", Destination: dest, Active: true}

	mockRegistry.EXPECT().Resolve(gomock.Any(), dest).Return(record, nil).Times(1)
	mockRegistry.EXPECT().RecordDonation(gomock.Any(), dest, uint64(5)).Return(record, nil).Times(1)
	mockTransfer.EXPECT().Transfer(gomock.Any(), donor, dest, uint64(5)).Return(nil).Times(1)
	mockRanker.EXPECT().Record(gomock.Any(), dest, uint64(5)).Return(errors.New("redis down")).Times(1)

	router := New(mockRegistry, counters, mockTransfer, tx.NewLocker(), WithRanker(mockRanker))
	receipt, err := router.Donate(ctx, dest, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.DonationID)
}

func TestLedgerFailureRevertsCredit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRegistry := mocks.NewMockRegistry(ctrl)
	mockLedger := mocks.NewMockLedgerStore(ctrl)
	mockTransfer := payoutmocks.NewMockTransferer(ctrl)

	dest := domain.NewRandomAddress()
	ctx := reqtestutil.CallerContext(domain.NewRandomAddress(), time.Now())
	record := &registrymodels.Charity{Name: "Red Cross", Destination: dest, Active: true}

	mockRegistry.EXPECT().Resolve(gomock.Any(), dest).Return(record, nil).Times(1)
	mockLedger.EXPECT().Load(gomock.Any()).Return(models.NewCounters(), nil).Times(1)
	mockRegistry.EXPECT().RecordDonation(gomock.Any(), dest, uint64(5)).Return(record, nil).Times(1)
	mockLedger.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("disk full")).Times(1)
	mockRegistry.EXPECT().RevertDonation(gomock.Any(), dest, uint64(5)).Return(nil).Times(1)
	mockTransfer.EXPECT().Transfer(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	router := New(mockRegistry, mockLedger, mockTransfer, tx.NewLocker())
	_, err := router.Donate(ctx, dest, 5)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}
