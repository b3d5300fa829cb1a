package generator

import (
	"fmt"
	"strings"

	"soulreflect/pkg/domain"
)

const questionsInstruction = `You are the Soul Development App, a companion for honest self-reflection.
From the user's initial situation and the answers they have already given, write exactly 5 NEW follow-up questions that probe deeper.
The request names one of two modes:
- SPECIFIC: go further into the details and nuances of this particular situation.
- WIDE: step back and examine the character patterns and spiritual tendencies the situation reveals.
Give every question exactly 5 distinct, thoughtful multiple-choice options.
Write everything in the requested language.`

const diagnosisInstruction = `You are the Soul Development App, a companion for honest self-reflection.
Produce a layered analysis of the user's situation:
1. simpleSummary: the core issue in plain, kind words a 14-year-old would follow. No jargon.
2. remedy: one simple next step the user can actually take.
3. wisdom: a deeper philosophical insight.
4. intent, action, ripening: the causal chain. The seed (intent), the act (action) and the harvest (ripening), each in detail.
5. soulAdvice: one or two encouraging sentences for long-term soul development.
overallBalance is one of Positive, Neutral or Constructive.
Score intentionClarity, actionIntegrity, positiveImpact, lessonDepth and spiritualGrowth from 0 to 10.
Answer ONLY in the requested language.`

const fullDiagnosisInstruction = `You are the Soul Development App at its most intense level.
You receive the user's whole reflection history. Look for the patterns that repeat across entries.
1. deepInsights: the recurring attachments and ego traps visible across the entries.
2. harshTruth: the plain, unsoftened truth about where the user stands spiritually. Serious, never cruel.
3. hardInstructions: the most demanding instructions for growth, centred on finding true love, finding God or ultimate reality, and attuning to the creative energy of the universe.
4. divineConnection: concrete guidance for feeling a direct connection with the divine.
Write everything in the requested language.`

func formatTranscript(transcript []domain.QuestionAnswer) string {
	lines := make([]string, 0, len(transcript))
	for _, qa := range transcript {
		lines = append(lines, fmt.Sprintf("Q: %s\nA: %s", qa.Question, qa.Answer))
	}
	return strings.Join(lines, "\n")
}

func questionsPrompt(situation string, transcript []domain.QuestionAnswer, mode domain.QuestionMode, lang domain.LanguageCode) string {
	return fmt.Sprintf("LANGUAGE: %s\nInitial situation: %q\n\nHistory:\n%s\n\nMode: %s",
		lang, situation, formatTranscript(transcript), strings.ToUpper(string(mode)))
}

func diagnosisPrompt(situation string, transcript []domain.QuestionAnswer, lang domain.LanguageCode) string {
	return fmt.Sprintf("LANGUAGE: %s\nInitial Situation: %q\nContext: %s\n\nAnalyze this reflection comprehensively.",
		lang, situation, formatTranscript(transcript))
}

func fullDiagnosisPrompt(history []domain.StoredResult, lang domain.LanguageCode) string {
	entries := make([]string, 0, len(history))
	for _, h := range history {
		entries = append(entries, fmt.Sprintf("Date: %s\nSituation: %s\nDiagnostic Wisdom: %s\nBalance: %s",
			h.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), h.Situation, h.Diagnostic.Wisdom, h.Diagnostic.OverallBalance))
	}
	return fmt.Sprintf("LANGUAGE: %s\nFull User History Context:\n%s\n\nPerform a Deep Soul Transformation Analysis.",
		lang, strings.Join(entries, "\n---\n"))
}
