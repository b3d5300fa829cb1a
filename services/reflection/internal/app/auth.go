package app

import (
	"context"
	"fmt"
	"strings"

	"soulreflect/pkg/auth"
	"soulreflect/pkg/domain"
	"soulreflect/pkg/store"
)

// ChooseAuthMethod moves to the matching input screen. GOOGLE signs in
// through the social provider straight away.
func (a *App) ChooseAuthMethod(ctx context.Context, id, method string) (Session, error) {
	m, ok := domain.ParseAuthMethod(method)
	if ok && m == domain.AuthGoogle {
		return a.collaborate(ctx, id, "auth.google", func(s Session) error {
			return requirePhase(s, PhaseAuthChoice)
		}, a.googleSignIn)
	}
	return a.apply(ctx, id, func(s Session) (Session, error) {
		if err := requirePhase(s, PhaseAuthChoice); err != nil {
			return s, err
		}
		out := s.Clone()
		switch {
		case !ok:
			return s, validationError(MsgUnknownMethod)
		case m == domain.AuthPassword:
			out.Phase = PhaseAuthInput
		case m == domain.AuthBiometric:
			out.Phase = PhaseBiometricSetup
		}
		return out, nil
	})
}

func (a *App) googleSignIn(ctx context.Context, s Session) (commit, *Error) {
	ident, err := a.social.SignIn(ctx)
	if err != nil {
		return nil, authError(MsgSocialSyncFailed, err)
	}
	profile, appErr := a.loadOrCreate(ctx, ident.Name, ident.Email, domain.AuthGoogle,
		auth.SocialCredential(domain.AuthGoogle), s.Language, MsgSocialSyncFailed)
	if appErr != nil {
		return nil, appErr
	}
	return signedIn(profile), nil
}

// SignUp creates a password profile. The email must not be registered yet.
func (a *App) SignUp(ctx context.Context, id, name, email, secret string) (Session, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	return a.collaborate(ctx, id, "auth.signup", func(s Session) error {
		if err := requirePhase(s, PhaseAuthInput, PhaseSignUp); err != nil {
			return err
		}
		if name == "" || email == "" || strings.TrimSpace(secret) == "" {
			return validationError(MsgFieldsRequired)
		}
		return nil
	}, func(ctx context.Context, s Session) (commit, *Error) {
		exists, err := a.profiles.Exists(ctx, email)
		if err != nil {
			return nil, syncError(MsgAccountSaveFailed, err)
		}
		if exists {
			return nil, authError(MsgAccountExists, nil)
		}
		profile := domain.UserProfile{
			Name:       name,
			Email:      email,
			Language:   s.Language,
			AuthMethod: domain.AuthPassword,
			History:    []domain.StoredResult{},
		}
		if err := a.profiles.Save(ctx, profile, secret); err != nil {
			return nil, syncError(MsgAccountSaveFailed, err)
		}
		return signedIn(profile), nil
	})
}

// LogIn loads a password profile. Unknown emails and wrong secrets are
// reported the same way.
func (a *App) LogIn(ctx context.Context, id, email, secret string) (Session, error) {
	email = strings.TrimSpace(email)
	return a.collaborate(ctx, id, "auth.login", func(s Session) error {
		if err := requirePhase(s, PhaseAuthInput, PhaseSignUp); err != nil {
			return err
		}
		if email == "" || strings.TrimSpace(secret) == "" {
			return validationError(MsgFieldsRequired)
		}
		return nil
	}, func(ctx context.Context, s Session) (commit, *Error) {
		profile, ok, err := a.profiles.LoadByCredential(ctx, email, secret)
		if err != nil {
			return nil, syncError(MsgProfileLoadFailed, err)
		}
		if !ok {
			return nil, authError(MsgProfileNotFound, store.ErrProfileNotFound)
		}
		return signedIn(profile), nil
	})
}

// RegisterBiometric signs in with the device key derived from the email,
// creating the profile on first use.
func (a *App) RegisterBiometric(ctx context.Context, id, name, email string) (Session, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	return a.collaborate(ctx, id, "auth.biometric", func(s Session) error {
		if err := requirePhase(s, PhaseBiometricSetup); err != nil {
			return err
		}
		if name == "" || email == "" {
			return validationError(MsgFieldsRequired)
		}
		return nil
	}, func(ctx context.Context, s Session) (commit, *Error) {
		profile, appErr := a.loadOrCreate(ctx, name, email, domain.AuthBiometric,
			auth.BiometricCredential(email), s.Language, MsgAccountSaveFailed)
		if appErr != nil {
			return nil, appErr
		}
		return signedIn(profile), nil
	})
}

// loadOrCreate signs into an existing profile with a derived credential or
// creates one with an empty history.
func (a *App) loadOrCreate(ctx context.Context, name, email string, method domain.AuthMethod, secret string, lang domain.LanguageCode, failMsg string) (domain.UserProfile, *Error) {
	exists, err := a.profiles.Exists(ctx, email)
	if err != nil {
		return domain.UserProfile{}, syncError(failMsg, err)
	}
	if exists {
		profile, ok, err := a.profiles.LoadByCredential(ctx, email, secret)
		if err != nil {
			return domain.UserProfile{}, syncError(failMsg, err)
		}
		if !ok {
			return domain.UserProfile{}, authError(MsgProfileNotFound, fmt.Errorf("%s credential mismatch for existing profile", strings.ToLower(string(method))))
		}
		return profile, nil
	}
	profile := domain.UserProfile{
		Name:       strings.TrimSpace(name),
		Email:      strings.TrimSpace(email),
		Language:   lang,
		AuthMethod: method,
		History:    []domain.StoredResult{},
	}
	if err := a.profiles.Save(ctx, profile, secret); err != nil {
		return domain.UserProfile{}, syncError(failMsg, err)
	}
	return profile, nil
}

func signedIn(profile domain.UserProfile) commit {
	return replace(func(s Session) Session {
		p := profile.Clone()
		s.User = &p
		s.clearReflection()
		if p.Language != "" {
			s.Language = p.Language
		}
		s.Phase = PhaseDashboard
		return s
	})
}
