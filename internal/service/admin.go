package service

import (
	"context"
	"math/big"

	"github.com/vbonduro/auctionhouse/internal/domain"
	"github.com/vbonduro/auctionhouse/internal/ledger"
)

// SetFee changes the house fee rate. The range check runs before the role
// check so a malformed rate is reported as such even to non-managers.
func (s *AuctionService) SetFee(ctx context.Context, caller domain.Address, rate *big.Int) (*ledger.TxHandle, error) {
	if !domain.ValidFeeRate(rate) {
		return nil, domain.ValidationFailure(domain.ReasonFeeOutOfRange)
	}
	ok, err := s.snap.IsManager(ctx, caller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ValidationFailure(domain.ReasonNotAuthorized)
	}
	return s.submit(ctx, ledger.SetFee{Caller: caller, Rate: rate})
}

// AddManager grants the manager role, admin only. Granting it twice is
// rejected locally so the toggle semantics underneath cannot flip it off.
func (s *AuctionService) AddManager(ctx context.Context, caller, account domain.Address) (*ledger.TxHandle, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	if account.IsZero() {
		return nil, domain.ValidationFailure(domain.ReasonInvalidAddress)
	}
	listed, err := s.managerListed(ctx, account)
	if err != nil {
		return nil, err
	}
	if listed {
		return nil, domain.ValidationFailure(domain.ReasonAlreadyManager)
	}
	return s.submit(ctx, ledger.ToggleManager{Caller: caller, Account: account})
}

// RemoveManager revokes the manager role, admin only.
func (s *AuctionService) RemoveManager(ctx context.Context, caller, account domain.Address) (*ledger.TxHandle, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	listed, err := s.managerListed(ctx, account)
	if err != nil {
		return nil, err
	}
	if !listed {
		return nil, domain.ValidationFailure(domain.ReasonNotManager)
	}
	return s.submit(ctx, ledger.ToggleManager{Caller: caller, Account: account})
}

// TransferAdmin hands the admin role to another account.
func (s *AuctionService) TransferAdmin(ctx context.Context, caller, newAdmin domain.Address) (*ledger.TxHandle, error) {
	admin, err := s.snap.Admin(ctx)
	if err != nil {
		return nil, err
	}
	if caller != admin {
		return nil, domain.ValidationFailure(domain.ReasonNotAuthorized)
	}
	if newAdmin.IsZero() {
		return nil, domain.ValidationFailure(domain.ReasonInvalidAddress)
	}
	if newAdmin == admin {
		return nil, domain.ValidationFailure(domain.ReasonSameAdmin)
	}
	return s.submit(ctx, ledger.TransferAdmin{Caller: caller, NewAdmin: newAdmin})
}

// WithdrawFees sweeps accrued fees to the admin, manager only.
func (s *AuctionService) WithdrawFees(ctx context.Context, caller domain.Address) (*ledger.TxHandle, error) {
	ok, err := s.snap.IsManager(ctx, caller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ValidationFailure(domain.ReasonNotAuthorized)
	}
	bal, err := s.oracle.BalanceOf(ctx, s.house)
	if err != nil {
		s.logger.Warn("house balance check skipped", "error", err)
	} else if bal.Sign() <= 0 {
		return nil, domain.ValidationFailure(domain.ReasonEmptyBalance)
	}
	return s.submit(ctx, ledger.WithdrawFees{Caller: caller})
}

func (s *AuctionService) requireAdmin(ctx context.Context, caller domain.Address) error {
	admin, err := s.snap.Admin(ctx)
	if err != nil {
		return err
	}
	if caller != admin {
		return domain.ValidationFailure(domain.ReasonNotAuthorized)
	}
	return nil
}

// managerListed reports table membership only. Unlike IsManager it does not
// treat the admin as implicitly listed, which matters for toggle no-ops.
func (s *AuctionService) managerListed(ctx context.Context, account domain.Address) (bool, error) {
	managers, err := s.snap.Managers(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range managers {
		if m == account {
			return true, nil
		}
	}
	return false, nil
}
