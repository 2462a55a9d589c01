//go:build integration

package ledger_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/suite"

	"giveroute/internal/donation/models"
	"giveroute/internal/donation/store/ledger"
	txcontext "giveroute/pkg/platform/tx"
	"giveroute/pkg/testutil/containers"
)

type LedgerStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *ledger.PostgresStore
}

func TestLedgerStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(LedgerStoreSuite))
}

func (s *LedgerStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = ledger.NewPostgres(s.postgres.DB)
}

func (s *LedgerStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "donation_ledger"))
}

func (s *LedgerStoreSuite) TestFreshLedger() {
	got, err := s.store.Load(context.Background())
	s.Require().NoError(err)
	s.Equal(models.NewCounters(), got)
}

func (s *LedgerStoreSuite) TestFullRangeCounters() {
	ctx := context.Background()
	want := models.Counters{TotalDonations: 7, TotalRouted: math.MaxUint64, NextDonationID: 8}
	s.Require().NoError(s.store.Save(ctx, want))

	got, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Equal(want, got)
}

func (s *LedgerStoreSuite) TestRollbackDiscardsSave() {
	ctx := context.Background()
	tx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)

	txCtx := txcontext.WithTx(ctx, tx)
	counters, err := s.store.Load(txCtx)
	s.Require().NoError(err)
	next, _ := counters.Record(100)
	s.Require().NoError(s.store.Save(txCtx, next))
	s.Require().NoError(tx.Rollback())

	got, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Equal(models.NewCounters(), got)
}
