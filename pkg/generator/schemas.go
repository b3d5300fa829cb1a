package generator

import "soulreflect/pkg/ai"

// Batch shape: every question round has this many questions, each with this
// many options.
const (
	QuestionsPerBatch  = 5
	OptionsPerQuestion = 5
)

var questionsSchema = &ai.Schema{
	Type: ai.TypeObject,
	Properties: map[string]*ai.Schema{
		"questions": {
			Type:     ai.TypeArray,
			MinItems: QuestionsPerBatch,
			MaxItems: QuestionsPerBatch,
			Items: &ai.Schema{
				Type: ai.TypeObject,
				Properties: map[string]*ai.Schema{
					"question": {Type: ai.TypeString},
					"options": {
						Type:     ai.TypeArray,
						Items:    &ai.Schema{Type: ai.TypeString},
						MinItems: OptionsPerQuestion,
						MaxItems: OptionsPerQuestion,
					},
				},
				Required: []string{"question", "options"},
			},
		},
	},
	Required: []string{"questions"},
}

func scoreSchema() *ai.Schema {
	return &ai.Schema{Type: ai.TypeNumber, Minimum: ai.Bound(0), Maximum: ai.Bound(10)}
}

var diagnosisSchema = &ai.Schema{
	Type: ai.TypeObject,
	Properties: map[string]*ai.Schema{
		"simpleSummary":  {Type: ai.TypeString},
		"intent":         {Type: ai.TypeString},
		"action":         {Type: ai.TypeString},
		"ripening":       {Type: ai.TypeString},
		"wisdom":         {Type: ai.TypeString},
		"remedy":         {Type: ai.TypeString},
		"soulAdvice":     {Type: ai.TypeString},
		"overallBalance": {Type: ai.TypeString, Enum: []string{"Positive", "Neutral", "Constructive"}},
		"scores": {
			Type: ai.TypeObject,
			Properties: map[string]*ai.Schema{
				"intentionClarity": scoreSchema(),
				"actionIntegrity":  scoreSchema(),
				"positiveImpact":   scoreSchema(),
				"lessonDepth":      scoreSchema(),
				"spiritualGrowth":  scoreSchema(),
			},
			Required: []string{"intentionClarity", "actionIntegrity", "positiveImpact", "lessonDepth", "spiritualGrowth"},
		},
	},
	Required: []string{"simpleSummary", "intent", "action", "ripening", "wisdom", "remedy", "soulAdvice", "overallBalance", "scores"},
}

var fullDiagnosisSchema = &ai.Schema{
	Type: ai.TypeObject,
	Properties: map[string]*ai.Schema{
		"deepInsights":     {Type: ai.TypeString},
		"harshTruth":       {Type: ai.TypeString},
		"hardInstructions": {Type: ai.TypeString},
		"divineConnection": {Type: ai.TypeString},
	},
	Required: []string{"deepInsights", "harshTruth", "hardInstructions", "divineConnection"},
}

// ResponseSchemas returns the structured-output schemas by name, for tooling
// that checks them against the domain types.
func ResponseSchemas() map[string]*ai.Schema {
	return map[string]*ai.Schema{
		"questions":     questionsSchema,
		"diagnosis":     diagnosisSchema,
		"fullDiagnosis": fullDiagnosisSchema,
	}
}
