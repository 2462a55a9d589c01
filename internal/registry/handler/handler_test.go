package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	controllerservice "giveroute/internal/controller/service"
	controllerstore "giveroute/internal/controller/store"
	"giveroute/internal/registry/handler/mocks"
	"giveroute/internal/registry/service"
	"giveroute/internal/registry/store/charity"
	"giveroute/pkg/domain"
	"giveroute/pkg/platform/tx"
	"giveroute/pkg/testutil"
)

type RegistryHandlerSuite struct {
	suite.Suite
	router     http.Handler
	controller domain.Address
}

func TestRegistryHandlerSuite(t *testing.T) {
	suite.Run(t, new(RegistryHandlerSuite))
}

func (s *RegistryHandlerSuite) SetupTest() {
	s.controller = domain.NewRandomAddress()
	locker := tx.NewLocker()
	controller := controllerservice.New(controllerstore.NewInMemory(), locker)
	s.Require().NoError(controller.Bootstrap(context.Background(), s.controller))
	svc := service.New(charity.NewInMemory(), locker, controller)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	h.RegisterAdmin(r)
	s.router = r
}

func (s *RegistryHandlerSuite) admin(method, path string, body any) *http.Request {
	return testutil.NewCallerRequest(s.T(), method, path, body, s.controller)
}

func (s *RegistryHandlerSuite) register(name string) domain.Address {
	dest := domain.NewRandomAddress()
	rr := testutil.DoRequest(s.router, s.admin(http.MethodPost, "/admin/charities", map[string]string{
		"name":        name,
		"destination": dest.String(),
	}))
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	return dest
}

func (s *RegistryHandlerSuite) TestRegisterAndLookup() {
	dest := s.register("Red Cross")

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/charities/"+dest.String(), nil))
	s.Require().Equal(http.StatusOK, rr.Code)
	got := testutil.UnmarshalResponse[CharityResponse](s.T(), rr)
	s.Equal("Red Cross", got.Name)
	s.Equal(dest.String(), got.Destination)
	s.True(got.Active)

	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/charities/by-name/"+url.PathEscape("Red Cross"), nil))
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal(dest.String(), testutil.UnmarshalResponse[CharityResponse](s.T(), rr).Destination)

	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/charities/"+dest.String()+"/valid", nil))
	s.True(testutil.UnmarshalResponse[ValidResponse](s.T(), rr).Valid)

	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/charities/count", nil))
	s.Equal(CountResponse{Count: 1, Active: 1}, *testutil.UnmarshalResponse[CountResponse](s.T(), rr))
}

func (s *RegistryHandlerSuite) TestRegisterErrors() {
	s.Run("anonymous caller is unauthorized", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/charities", map[string]string{"name": "X"})
		testutil.AssertStatusAndError(s.T(), testutil.DoRequest(s.router, req), http.StatusUnauthorized, "unauthorized")
	})

	s.Run("missing destination is invalid", func() {
		rr := testutil.DoRequest(s.router, s.admin(http.MethodPost, "/admin/charities", map[string]string{"name": "X"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_destination")
	})

	s.Run("malformed destination is a bad request", func() {
		rr := testutil.DoRequest(s.router, s.admin(http.MethodPost, "/admin/charities", map[string]string{"name": "X", "destination": "not-base58!"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("duplicate name conflicts", func() {
		s.register("Red Cross")
		rr := testutil.DoRequest(s.router, s.admin(http.MethodPost, "/admin/charities", map[string]string{
			"name":        "Red Cross",
			"destination": domain.NewRandomAddress().String(),
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "already_exists")
	})
}

func (s *RegistryHandlerSuite) TestBatch() {
	s.Run("empty name rolls back the batch", func() {
		rr := testutil.DoRequest(s.router, s.admin(http.MethodPost, "/admin/charities/batch", map[string][]string{
			"names":        {"X", ""},
			"destinations": {domain.NewRandomAddress().String(), domain.NewRandomAddress().String()},
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "empty_name")

		rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/charities/count", nil))
		s.Zero(testutil.UnmarshalResponse[CountResponse](s.T(), rr).Count)
	})

	s.Run("length mismatch", func() {
		rr := testutil.DoRequest(s.router, s.admin(http.MethodPost, "/admin/charities/batch", map[string][]string{
			"names":        {"X", "Y"},
			"destinations": {domain.NewRandomAddress().String()},
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "length_mismatch")
	})

	s.Run("registers in order", func() {
		a, b := domain.NewRandomAddress(), domain.NewRandomAddress()
		rr := testutil.DoRequest(s.router, s.admin(http.MethodPost, "/admin/charities/batch", map[string][]string{
			"names":        {"X", "Y"},
			"destinations": {a.String(), b.String()},
		}))
		s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())

		rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/charities", nil))
		s.Equal([]string{a.String(), b.String()}, testutil.UnmarshalResponse[EnumerateResponse](s.T(), rr).Destinations)
	})
}

func (s *RegistryHandlerSuite) TestLifecycle() {
	dest := s.register("Red Cross")
	path := "/admin/charities/" + dest.String()

	rr := testutil.DoRequest(s.router, s.admin(http.MethodPut, path+"/name", map[string]string{"name": "ICRC"}))
	s.Require().Equal(http.StatusNoContent, rr.Code, rr.Body.String())

	rr = testutil.DoRequest(s.router, s.admin(http.MethodPut, path+"/status", map[string]bool{"active": false}))
	s.Require().Equal(http.StatusNoContent, rr.Code, rr.Body.String())

	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/charities/by-name/ICRC/valid", nil))
	s.False(testutil.UnmarshalResponse[ValidResponse](s.T(), rr).Valid)

	rr = testutil.DoRequest(s.router, s.admin(http.MethodPut, path+"/status", map[string]any{}))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")

	rr = testutil.DoRequest(s.router, s.admin(http.MethodDelete, path, nil))
	s.Require().Equal(http.StatusNoContent, rr.Code, rr.Body.String())

	rr = testutil.DoRequest(s.router, s.admin(http.MethodDelete, path, nil))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")

	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/charities/"+dest.String(), nil))
	s.Require().Equal(http.StatusOK, rr.Code)
	removed := testutil.UnmarshalResponse[CharityResponse](s.T(), rr)
	s.Equal("ICRC", removed.Name)
	s.Empty(removed.Destination)
	s.False(removed.Active)

	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/charities/by-name/ICRC", nil))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *RegistryHandlerSuite) TestUnknownAndMalformedPaths() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/charities/"+domain.NewRandomAddress().String(), nil))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")

	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/charities/0OIl", nil))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
}

func TestInternalErrorsHideDetails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := mocks.NewMockService(ctrl)
	mockService.EXPECT().Count(gomock.Any()).Return(0, errors.New("connection refused")).Times(1)

	r := chi.NewRouter()
	New(mockService, nil).Register(r)

	rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodGet, "/charities/count", nil))
	testutil.AssertStatusAndError(t, rr, http.StatusInternalServerError, "internal_error")
	assert.NotContains(t, rr.Body.String(), "connection refused")
	require.NotContains(t, rr.Body.String(), "error_description")
}
