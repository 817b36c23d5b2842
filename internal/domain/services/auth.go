package services

import "context"

// BoardAuthorizer decides who may act on the content board. Role checks for
// the review gates themselves live in the workflow transitions; this guards
// the board as a whole.
type BoardAuthorizer interface {
	// CanAccessBoard checks that userID is a team member holding a workflow role
	CanAccessBoard(ctx context.Context, userID string) error
}
