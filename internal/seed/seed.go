// Package seed provisions administrative accounts from the command line.
package seed

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/realforestry/hortus-auth/internal/server/accounts"
	"github.com/realforestry/hortus-auth/internal/server/models"
)

// AdminRole is granted to seeded accounts unless other roles are given.
const AdminRole = "ROLE_ADMIN"

var ErrPasswordMismatch = errors.New("passwords do not match")

// Provisioner creates verified accounts. *accounts.Manager satisfies it.
type Provisioner interface {
	Provision(ctx context.Context, in accounts.ProvisionInput) (*models.Account, error)
}

// Options are the values given on the command line. Empty Email is asked
// for interactively; the password is always read from the terminal.
type Options struct {
	Email    string
	Username string
	FullName string
	Roles    string
}

// Admin prompts for whatever Options lack and provisions the account.
func Admin(ctx context.Context, p Provisioner, opts Options, in io.Reader, out io.Writer) (*models.Account, error) {
	reader := bufio.NewReader(in)

	email := strings.TrimSpace(opts.Email)
	if email == "" {
		var err error
		if email, err = GetSimpleText(reader, "Admin email", out); err != nil {
			return nil, err
		}
	}

	pw, err := GetPassword("Password", out)
	if err != nil {
		return nil, err
	}
	defer wipe(pw)

	confirm, err := GetPassword("Repeat password", out)
	if err != nil {
		return nil, err
	}
	defer wipe(confirm)

	if !bytes.Equal(pw, confirm) {
		return nil, ErrPasswordMismatch
	}

	account, err := p.Provision(ctx, accounts.ProvisionInput{
		Email:    email,
		Username: opts.Username,
		Password: string(pw),
		FullName: opts.FullName,
		Roles:    parseRoles(opts.Roles),
	})
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(out, "created %s (%s) with roles %s\n", account.Email, account.ID, strings.Join(account.Roles, ","))
	return account, nil
}

func parseRoles(s string) []string {
	var roles []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	if len(roles) == 0 {
		return []string{AdminRole}
	}
	return roles
}
