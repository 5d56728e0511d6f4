package fanout

import (
	"context"
	"strings"

	"firebase.google.com/go/auth"
	"google.golang.org/api/iterator"
)

// Recipient is one email destination.
type Recipient struct {
	UID   string
	Email string
	Name  string
}

// Directory lists everyone who should receive broadcast email.
type Directory interface {
	Recipients(ctx context.Context) ([]Recipient, error)
}

type userLister interface {
	Users(ctx context.Context) (*auth.UserIterator, error)
}

// FirebaseDirectory enumerates Firebase Auth accounts with an email address.
type FirebaseDirectory struct {
	users userLister
}

func NewFirebaseDirectory(users userLister) *FirebaseDirectory {
	return &FirebaseDirectory{users: users}
}

// Recipients skips disabled accounts and accounts without an email.
func (d *FirebaseDirectory) Recipients(ctx context.Context) ([]Recipient, error) {
	it, err := d.users.Users(ctx)
	if err != nil {
		return nil, err
	}
	var out []Recipient
	for {
		u, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		if u == nil || u.UserRecord == nil || u.UserInfo == nil || u.Disabled {
			continue
		}
		email := strings.TrimSpace(u.Email)
		if email == "" {
			continue
		}
		out = append(out, Recipient{UID: u.UID, Email: email, Name: u.DisplayName})
	}
	return out, nil
}
