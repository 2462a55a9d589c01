package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"giveroute/internal/donation/handler/mocks"
	"giveroute/internal/donation/models"
	"giveroute/pkg/domain"
	dErrors "giveroute/pkg/domain-errors"
	"giveroute/pkg/testutil"
)

func newRouter(svc Service) http.Handler {
	h := New(svc, nil)
	r := chi.NewRouter()
	h.Register(r)
	h.RegisterAuthenticated(r)
	return r
}

func TestHandleDonate(t *testing.T) {
	donor := domain.NewRandomAddress()
	dest := domain.NewRandomAddress()
	routedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("by destination", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		mockService := mocks.NewMockService(ctrl)
		mockService.EXPECT().Donate(gomock.Any(), dest, uint64(100)).Return(&models.Receipt{
			DonationID:  1,
			Donor:       donor,
			Destination: dest,
			Name:        "Red Cross",
			Amount:      100,
			RoutedAt:    routedAt,
		}, nil).Times(1)

		req := testutil.NewCallerRequest(t, http.MethodPost, "/donations", map[string]any{
			"destination": dest.String(),
			"amount":      100,
		}, donor)
		rr := testutil.DoRequest(newRouter(mockService), req)

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		got := testutil.UnmarshalResponse[ReceiptResponse](t, rr)
		assert.Equal(t, uint64(1), got.DonationID)
		assert.Equal(t, donor.String(), got.Donor)
		assert.Equal(t, dest.String(), got.Destination)
		assert.Equal(t, "Red Cross", got.Name)
		assert.Equal(t, routedAt, got.RoutedAt)
	})

	t.Run("by name", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		mockService := mocks.NewMockService(ctrl)
		mockService.EXPECT().DonateByName(gomock.Any(), "Red Cross", uint64(5)).Return(&models.Receipt{
			DonationID:  2,
			Donor:       donor,
			Destination: dest,
			Name:        "Red Cross",
			Amount:      5,
		}, nil).Times(1)

		req := testutil.NewCallerRequest(t, http.MethodPost, "/donations", map[string]any{"name": "Red Cross", "amount": 5}, donor)
		rr := testutil.DoRequest(newRouter(mockService), req)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	})

	t.Run("zero amount is rejected before the target is checked", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		mockService := mocks.NewMockService(ctrl)

		req := testutil.NewCallerRequest(t, http.MethodPost, "/donations", map[string]any{"amount": 0}, donor)
		rr := testutil.DoRequest(newRouter(mockService), req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "empty_donation")
	})

	t.Run("target is required and exclusive", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		router := newRouter(mocks.NewMockService(ctrl))

		rr := testutil.DoRequest(router, testutil.NewCallerRequest(t, http.MethodPost, "/donations", map[string]any{"amount": 1}, donor))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")

		rr = testutil.DoRequest(router, testutil.NewCallerRequest(t, http.MethodPost, "/donations", map[string]any{
			"destination": dest.String(),
			"name":        "Red Cross",
			"amount":      1,
		}, donor))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})

	t.Run("anonymous caller is unauthorized", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		req := testutil.NewJSONRequest(t, http.MethodPost, "/donations", map[string]any{"destination": dest.String(), "amount": 1})
		rr := testutil.DoRequest(newRouter(mocks.NewMockService(ctrl)), req)
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("service errors map to status", func(t *testing.T) {
		cases := []struct {
			code   dErrors.Code
			status int
		}{
			{dErrors.CodeNotFound, http.StatusNotFound},
			{dErrors.CodeInactive, http.StatusUnprocessableEntity},
			{dErrors.CodeTransferFailed, http.StatusBadGateway},
			{dErrors.CodeReentrant, http.StatusConflict},
		}
		for _, tc := range cases {
			ctrl := gomock.NewController(t)
			mockService := mocks.NewMockService(ctrl)
			mockService.EXPECT().Donate(gomock.Any(), dest, uint64(1)).Return(nil, dErrors.New(tc.code, "failed")).Times(1)

			req := testutil.NewCallerRequest(t, http.MethodPost, "/donations", map[string]any{"destination": dest.String(), "amount": 1}, donor)
			rr := testutil.DoRequest(newRouter(mockService), req)
			testutil.AssertStatusAndError(t, rr, tc.status, string(tc.code))
			ctrl.Finish()
		}
	})
}

func TestHandleStats(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockService := mocks.NewMockService(ctrl)
	router := newRouter(mockService)

	mockService.EXPECT().DonationStats(gomock.Any()).Return(models.Counters{TotalDonations: 3, TotalRouted: 151, NextDonationID: 4}, nil).Times(1)
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/stats/donations", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, DonationStatsResponse{TotalDonations: 3, TotalRouted: 151, NextDonationID: 4}, *testutil.UnmarshalResponse[DonationStatsResponse](t, rr))

	mockService.EXPECT().TotalStats(gomock.Any()).Return(models.TotalStats{
		TotalCharities: 2, ActiveCharities: 1, TotalDonations: 3, TotalRouted: 151, AverageDonation: 50,
	}, nil).Times(1)
	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/stats/totals", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, uint64(50), testutil.UnmarshalResponse[TotalStatsResponse](t, rr).AverageDonation)

	mockService.EXPECT().TotalStats(gomock.Any()).Return(models.TotalStats{}, errors.New("db down")).Times(1)
	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/stats/totals", nil))
	testutil.AssertStatusAndError(t, rr, http.StatusInternalServerError, "internal_error")
}

func TestHandleRankings(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockService := mocks.NewMockService(ctrl)
	router := newRouter(mockService)
	top := domain.NewRandomAddress()

	mockService.EXPECT().Rankings(gomock.Any(), 5).Return([]models.Ranking{{Destination: top, Received: 42}}, nil).Times(1)
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/rankings?limit=5", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	got := testutil.UnmarshalResponse[RankingsResponse](t, rr)
	require.Len(t, got.Rankings, 1)
	assert.Equal(t, top.String(), got.Rankings[0].Destination)
	assert.Equal(t, uint64(42), got.Rankings[0].Received)

	mockService.EXPECT().Rankings(gomock.Any(), 0).Return(nil, nil).Times(1)
	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/rankings", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	for _, bad := range []string{"0", "-1", "abc", "101"} {
		rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/rankings?limit="+bad, nil))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	}
}
