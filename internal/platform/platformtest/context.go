package platformtest

import (
	"context"

	"github.com/felixgeelhaar/taskdesk/internal/account"
)

func withUser(ctx context.Context, u account.User) context.Context {
	return context.WithValue(ctx, ctxUser{}, &u)
}

func userFrom(ctx context.Context) *account.User {
	u, _ := ctx.Value(ctxUser{}).(*account.User)
	return u
}
