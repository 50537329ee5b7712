package bootstrap

import (
	"context"

	"routing-node/internal/storage/contactsbolt"
	"routing-node/internal/types"
)

// ContactsSource offers endpoints remembered from earlier runs.
type ContactsSource struct {
	Store       *contactsbolt.Store
	MaxFailures int
	Limit       int
}

func (s ContactsSource) Name() string { return "contacts" }

func (s ContactsSource) Discover(ctx context.Context) ([]types.Endpoint, error) {
	c, err := s.Store.Candidates(s.MaxFailures, s.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]types.Endpoint, 0, len(c))
	for _, contact := range c {
		out = append(out, contact.Endpoint)
	}
	return out, nil
}
