package mailer

// Invitation is the payload of an invitation email. Rendering and delivery
// are the mailer's concern; callers never block on it.
type Invitation struct {
	ToName     string
	ToEmail    string
	CenterName string
	Role       string
	Token      string
}

// Mailer delivers invitation emails. Implementations must not fail the
// calling mutation: a delivery error is reported, the invite token stays
// valid and can be re-sent.
type Mailer interface {
	SendInvitation(inv Invitation) error
}
