package http

import (
	"errors"
	"net/http"

	"invoicepro/internal/domain"
	"invoicepro/internal/dto"
	"invoicepro/internal/netutil"
	"invoicepro/internal/observability/middleware"
	"invoicepro/internal/service"
)

type authHandler struct {
	auth    service.AuthService
	tokens  service.TokenService
	codes   service.CodeService
	cookies cookieJar
}

func (h *authHandler) signup(w http.ResponseWriter, r *http.Request) error {
	var req dto.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	user, err := h.auth.Signup(r.Context(), req, netutil.ClientIP(r))
	if err != nil {
		return err
	}

	// The account exists at this point; cookie failures only cost the
	// browser a login.
	log := middleware.Logger(r.Context())
	if token, exp, err := h.tokens.Issue(user.ID); err != nil {
		log.Error("issue session after signup", "user_id", user.ID, "error", err)
	} else {
		h.cookies.setSession(w, token, exp)
		if code, err := h.codes.Issue(r.Context(), user, "signup"); err != nil {
			log.Error("issue verification code after signup", "user_id", user.ID, "error", err)
		} else {
			h.cookies.setCode(w, code)
		}
	}

	respond(w, http.StatusCreated, "User created successfully", dto.NewUserResponse(user))
	return nil
}

func (h *authHandler) login(w http.ResponseWriter, r *http.Request) error {
	var req dto.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	user, err := h.auth.Login(r.Context(), req, netutil.ClientIP(r))
	if err != nil {
		return err
	}

	token, exp, err := h.tokens.Issue(user.ID)
	if err != nil {
		return domain.Transport(err)
	}
	h.cookies.setSession(w, token, exp)

	if user.NeedsVerification() {
		code, err := h.codes.Issue(r.Context(), user, "login")
		if err != nil {
			return domain.Transport(err)
		}
		h.cookies.setCode(w, code)
	}

	respond(w, http.StatusOK, "Login successful", dto.LoginResponse{
		User:                dto.NewUserResponse(user),
		NeedsVerification:   user.NeedsVerification(),
		IsTwoFactorVerified: user.IsTwoFactorVerified(),
	})
	return nil
}

func (h *authHandler) verifyTwoFactor(w http.ResponseWriter, r *http.Request) error {
	var req dto.VerifyTwoFactorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	user, err := h.auth.VerifyTwoFactor(r.Context(),
		req.Code,
		cookieValue(r, codeCookie),
		cookieValue(r, sessionCookie),
	)
	if err != nil {
		return err
	}

	h.cookies.clear(w, codeCookie)
	respond(w, http.StatusOK, "Two-factor verification successful", dto.TwoFactorStatus{
		IsTwoFactorVerified: user.IsTwoFactorVerified(),
		NeedsVerification:   user.NeedsVerification(),
	})
	return nil
}

func (h *authHandler) resendCode(w http.ResponseWriter, r *http.Request) error {
	user, err := h.auth.CurrentUser(r.Context(), cookieValue(r, sessionCookie))
	if err != nil {
		return err
	}
	code, err := h.codes.Issue(r.Context(), user, "resend")
	if err != nil {
		return domain.Transport(err)
	}
	h.cookies.setCode(w, code)
	respond(w, http.StatusOK, "Verification code sent", nil)
	return nil
}

func (h *authHandler) session(w http.ResponseWriter, r *http.Request) error {
	user, err := h.auth.CurrentUser(r.Context(), cookieValue(r, sessionCookie))
	if errors.Is(err, domain.ErrAuthentication) {
		respond(w, http.StatusUnauthorized, "Not authenticated", dto.SessionResponse{Authenticated: false})
		return nil
	}
	if err != nil {
		return err
	}
	respond(w, http.StatusOK, "Session retrieved", dto.SessionResponse{
		Authenticated:       true,
		User:                dto.NewUserResponse(user),
		NeedsVerification:   user.NeedsVerification(),
		IsTwoFactorVerified: user.IsTwoFactorVerified(),
	})
	return nil
}

func (h *authHandler) logout(w http.ResponseWriter, r *http.Request) error {
	h.cookies.clear(w, sessionCookie)
	h.cookies.clear(w, codeCookie)
	respond(w, http.StatusOK, "Logged out successfully", nil)
	return nil
}

func (h *authHandler) jwks(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]any{"keys": []any{h.tokens.PublicJWK()}})
	return nil
}
