package server

import (
	"soulreflect/pkg/domain"
	"soulreflect/services/reflection/internal/app"
)

// Views name the screen a client should show for each phase.
var phaseViews = map[app.Phase]string{
	app.PhaseLanguageSelect: "language_selector",
	app.PhaseAuthChoice:     "auth_choice",
	app.PhaseSignUp:         "sign_up_form",
	app.PhaseAuthInput:      "login_form",
	app.PhaseBiometricSetup: "biometric_setup",
	app.PhaseDashboard:      "progress_dashboard",
	app.PhaseChoice:         "diagnostic_form",
	app.PhaseQuestioning:    "question_flow",
	app.PhaseResult:         "diagnostic_result",
	app.PhaseFullResult:     "full_soul_result",
}

type questionView struct {
	Index    int      `json:"index"`
	Total    int      `json:"total"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type sessionView struct {
	Phase      app.Phase                  `json:"phase"`
	View       string                     `json:"view"`
	Actions    []string                   `json:"actions"`
	Loading    bool                       `json:"loading"`
	Error      string                     `json:"error,omitempty"`
	Language   domain.LanguageCode        `json:"language"`
	User       *domain.UserProfile        `json:"user,omitempty"`
	Dashboard  *domain.DashboardSummary   `json:"dashboard,omitempty"`
	Situation  string                     `json:"situation,omitempty"`
	Question   *questionView              `json:"question,omitempty"`
	Transcript []domain.QuestionAnswer    `json:"transcript"`
	Result     *domain.KarmaDiagnostic    `json:"result,omitempty"`
	FullResult *domain.FullSoulDiagnostic `json:"fullResult,omitempty"`
}

func (s *Server) render(sess app.Session) sessionView {
	v := sessionView{
		Phase:      sess.Phase,
		View:       phaseViews[sess.Phase],
		Actions:    actionsFor(sess),
		Loading:    sess.Loading,
		Error:      sess.Error,
		Language:   sess.Language,
		User:       sess.User,
		Situation:  sess.Situation,
		Transcript: sess.Transcript,
		Result:     sess.Result,
		FullResult: sess.FullResult,
	}
	if v.Transcript == nil {
		v.Transcript = []domain.QuestionAnswer{}
	}
	if sess.Phase == app.PhaseDashboard {
		v.Dashboard = s.app.Dashboard(sess)
	}
	if sess.Phase == app.PhaseQuestioning {
		if q, idx, ok := sess.CurrentQuestion(); ok {
			v.Question = &questionView{
				Index:    idx,
				Total:    len(sess.Questions),
				Question: q.Question,
				Options:  q.Options,
			}
		}
	}
	return v
}

// actionsFor lists the intent routes that make sense on the current screen.
// While a collaborator call runs only navigation is offered.
func actionsFor(sess app.Session) []string {
	var out []string
	if !sess.Loading {
		switch sess.Phase {
		case app.PhaseLanguageSelect:
			out = append(out, "language")
		case app.PhaseAuthChoice:
			out = append(out, "auth/method")
		case app.PhaseAuthInput:
			out = append(out, "auth/login", "auth/signup-form", "auth/signup")
		case app.PhaseSignUp:
			out = append(out, "auth/signup", "auth/login")
		case app.PhaseBiometricSetup:
			out = append(out, "auth/biometric")
		case app.PhaseDashboard:
			out = append(out, "reflection/begin")
			if sess.User != nil && len(sess.User.History) > 0 {
				out = append(out, "history/view", "diagnostic/full")
			}
		case app.PhaseChoice:
			out = append(out, "reflection/start")
		case app.PhaseQuestioning:
			if sess.BatchComplete() {
				out = append(out, "reflection/finish")
			} else {
				out = append(out, "reflection/answer")
			}
		case app.PhaseResult:
			out = append(out, "reflection/refine")
		}
	}
	if !sess.Phase.IsRoot() {
		out = append(out, "back")
	}
	if sess.Authenticated() {
		out = append(out, "reflection/reset", "auth/signout")
	}
	if out == nil {
		out = []string{}
	}
	return out
}
