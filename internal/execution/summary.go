package execution

import (
	"context"
	"errors"
	"fmt"

	"karli/internal/gateway/broker"
	"karli/internal/users"
)

// ErrUnknownUser is returned for a username not present in the roster.
var ErrUnknownUser = errors.New("unknown user")

// AccountSummary is one user's live brokerage state, fetched on demand.
type AccountSummary struct {
	Username  string            `json:"username"`
	RiskTier  string            `json:"risk_tier"`
	Account   broker.Account    `json:"account"`
	Positions []broker.Position `json:"positions"`
}

// AccountService answers account summary queries against each user's own
// brokerage credentials. Nothing is cached; the broker is the source of
// truth.
type AccountService struct {
	roster users.Store
	dialer broker.Dialer
}

func NewAccountService(roster users.Store, dialer broker.Dialer) *AccountService {
	return &AccountService{roster: roster, dialer: dialer}
}

func (s *AccountService) AccountSummary(ctx context.Context, username string) (AccountSummary, error) {
	roster, err := s.roster.ListUsersWithCredentials(ctx)
	if err != nil {
		return AccountSummary{}, err
	}
	var user *users.User
	for i := range roster {
		if roster[i].Username == username {
			user = &roster[i]
			break
		}
	}
	if user == nil {
		return AccountSummary{}, fmt.Errorf("%w: %s", ErrUnknownUser, username)
	}
	creds := user.Credentials()
	if creds.Empty() {
		return AccountSummary{}, fmt.Errorf("no brokerage credentials for %s", username)
	}

	client := s.dialer.Dial(creds)
	acct, err := client.GetAccount(ctx)
	if err != nil {
		return AccountSummary{}, fmt.Errorf("fetching account for %s: %w", username, err)
	}
	positions, err := client.GetOpenPositions(ctx)
	if err != nil {
		return AccountSummary{}, fmt.Errorf("fetching positions for %s: %w", username, err)
	}
	return AccountSummary{
		Username:  user.Username,
		RiskTier:  user.RiskTier,
		Account:   acct,
		Positions: positions,
	}, nil
}
