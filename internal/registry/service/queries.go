package service

import (
	"context"
	"errors"

	"giveroute/internal/registry/models"
	"giveroute/pkg/domain"
	dErrors "giveroute/pkg/domain-errors"
	"giveroute/pkg/platform/sentinel"
)

// LookupByDestination returns the latest record registered for destination.
// An unknown destination yields the zero record and no error; a removed one
// yields its retained record with a zero Destination.
func (s *Service) LookupByDestination(ctx context.Context, destination domain.Address) (models.Charity, error) {
	c, err := s.charities.FindByDestination(ctx, destination)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Charity{}, nil
		}
		return models.Charity{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load charity")
	}
	return *c, nil
}

// LookupByName resolves the live name binding; unknown names yield the zero
// record.
func (s *Service) LookupByName(ctx context.Context, name string) (models.Charity, error) {
	c, err := s.charities.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Charity{}, nil
		}
		return models.Charity{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load charity")
	}
	return s.LookupByDestination(ctx, c.Destination)
}

// Count is the length of the enumeration index, removed slots included.
func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.charities.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count charities")
	}
	return n, nil
}

// CountActive counts live, active records.
func (s *Service) CountActive(ctx context.Context) (int, error) {
	n, err := s.charities.CountActive(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count active charities")
	}
	return n, nil
}

// Enumerate returns every destination ever registered, in registration order.
func (s *Service) Enumerate(ctx context.Context) ([]domain.Address, error) {
	all, err := s.charities.Enumerate(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to enumerate charities")
	}
	return all, nil
}

// IsValid reports whether destination is live and active.
func (s *Service) IsValid(ctx context.Context, destination domain.Address) (bool, error) {
	c, err := s.LookupByDestination(ctx, destination)
	if err != nil {
		return false, err
	}
	return c.IsLive() && c.Active, nil
}

func (s *Service) IsValidName(ctx context.Context, name string) (bool, error) {
	c, err := s.LookupByName(ctx, name)
	if err != nil {
		return false, err
	}
	return c.IsLive() && c.Active, nil
}

// Resolve returns the live record for destination, failing with NotFound
// for unknown or removed destinations and Inactive for deactivated ones.
func (s *Service) Resolve(ctx context.Context, destination domain.Address) (*models.Charity, error) {
	c, err := s.charities.FindByDestination(ctx, destination)
	if err != nil {
		return nil, translateStoreErr(err, "failed to load charity")
	}
	if err := c.CanReceive(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) ResolveName(ctx context.Context, name string) (*models.Charity, error) {
	c, err := s.charities.FindByName(ctx, name)
	if err != nil {
		return nil, translateStoreErr(err, "failed to load charity")
	}
	if err := c.CanReceive(); err != nil {
		return nil, err
	}
	return c, nil
}

// RecordDonation credits amount to a live, active record. It fails with
// Overflow, leaving the record untouched, when a counter would wrap.
func (s *Service) RecordDonation(ctx context.Context, destination domain.Address, amount uint64) (*models.Charity, error) {
	c, err := s.charities.Execute(ctx, destination,
		func(c *models.Charity) error {
			if err := c.CanReceive(); err != nil {
				return err
			}
			return c.CanCredit(amount)
		},
		func(c *models.Charity) {
			c.ApplyCredit(amount)
		},
	)
	if err != nil {
		return nil, translateStoreErr(err, "failed to credit charity")
	}
	return c, nil
}

// RevertDonation undoes a RecordDonation of the same amount.
func (s *Service) RevertDonation(ctx context.Context, destination domain.Address, amount uint64) error {
	_, err := s.charities.Execute(ctx, destination,
		func(c *models.Charity) error {
			if c.DonationCount == 0 || c.LifetimeReceived < amount {
				return dErrors.New(dErrors.CodeInvariantViolation, "charity counters below reverted donation")
			}
			return nil
		},
		func(c *models.Charity) {
			c.ApplyDebit(amount)
		},
	)
	if err != nil {
		return translateStoreErr(err, "failed to revert charity credit")
	}
	return nil
}
