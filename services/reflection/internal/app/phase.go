package app

// Phase is the screen a session is on.
type Phase string

const (
	PhaseLanguageSelect Phase = "LANGUAGE_SELECT"
	PhaseAuthChoice     Phase = "AUTH_CHOICE"
	PhaseSignUp         Phase = "SIGN_UP"
	PhaseAuthInput      Phase = "AUTH_INPUT"
	PhaseBiometricSetup Phase = "BIOMETRIC_SETUP"
	PhaseDashboard      Phase = "DASHBOARD"
	PhaseChoice         Phase = "CHOICE"
	PhaseQuestioning    Phase = "QUESTIONING"
	PhaseResult         Phase = "RESULT"
	PhaseFullResult     Phase = "FULL_RESULT"
)

// Phases lists every phase in flow order.
var Phases = []Phase{
	PhaseLanguageSelect,
	PhaseAuthChoice,
	PhaseSignUp,
	PhaseAuthInput,
	PhaseBiometricSetup,
	PhaseDashboard,
	PhaseChoice,
	PhaseQuestioning,
	PhaseResult,
	PhaseFullResult,
}

// IsRoot reports whether goBack has nowhere to go.
func (p Phase) IsRoot() bool {
	return p == PhaseLanguageSelect || p == PhaseDashboard
}

// backTarget is the phase goBack lands on. QUESTIONING is handled separately
// because it first unwinds the current batch.
func (p Phase) backTarget() (Phase, bool) {
	switch p {
	case PhaseAuthChoice:
		return PhaseLanguageSelect, true
	case PhaseSignUp:
		return PhaseAuthInput, true
	case PhaseAuthInput, PhaseBiometricSetup:
		return PhaseAuthChoice, true
	case PhaseChoice, PhaseResult, PhaseFullResult:
		return PhaseDashboard, true
	case PhaseQuestioning:
		return PhaseChoice, true
	default:
		return "", false
	}
}

func (p Phase) in(phases ...Phase) bool {
	for _, candidate := range phases {
		if p == candidate {
			return true
		}
	}
	return false
}
