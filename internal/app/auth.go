package app

import (
	"context"

	"github.com/khrees2412/jobportal/internal/logger"
	"github.com/khrees2412/jobportal/internal/session"
)

// SignInHandoff remembers where to resume after the user signs in
type SignInHandoff struct {
	Store  session.Store
	Logger logger.Logger
}

// RequireSignIn saves returnPath as the post-login redirect
func (h *SignInHandoff) RequireSignIn(ctx context.Context, returnPath string) error {
	if err := h.Store.SetRedirect(ctx, returnPath); err != nil {
		return err
	}
	if h.Logger != nil {
		h.Logger.Info("sign-in required", map[string]interface{}{"return_path": returnPath})
	}
	return nil
}
