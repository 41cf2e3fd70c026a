package service

import (
	"fmt"
	"strconv"
	"strings"
)

// QuestionType represents the type of question
type QuestionType string

const (
	QuestionTypeSingleChoice QuestionType = "single_choice"
	QuestionTypeMultiChoice  QuestionType = "multi_choice"
	QuestionTypeText         QuestionType = "text"
	QuestionTypeScale        QuestionType = "scale"
	QuestionTypeYesNo        QuestionType = "yes_no"
)

const maxTextAnswer = 2000

// Option is one selectable answer
type Option struct {
	Value  string `json:"value"`
	TextEN string `json:"-"`
	TextES string `json:"-"`
}

// Question represents one question of the Rarescope questionnaire
type Question struct {
	ID       string
	TextEN   string
	TextES   string
	Type     QuestionType
	Options  []Option
	Min, Max int
	Required bool
}

// LocalizedOption is an option rendered in one language
type LocalizedOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// LocalizedQuestion is a question rendered in one language
type LocalizedQuestion struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Type     QuestionType      `json:"type"`
	Options  []LocalizedOption `json:"options,omitempty"`
	Min      int               `json:"min,omitempty"`
	Max      int               `json:"max,omitempty"`
	Required bool              `json:"required"`
}

// Questionnaire is the ordered Rarescope question set
type Questionnaire struct {
	questions []Question
}

func opt(value, en, es string) Option {
	return Option{Value: value, TextEN: en, TextES: es}
}

// NewQuestionnaire creates the Rarescope questionnaire
func NewQuestionnaire() *Questionnaire {
	questions := []Question{
		{
			ID:     "diagnosis_status",
			TextEN: "Do you have a confirmed diagnosis?",
			TextES: "¿Tienes un diagnóstico confirmado?",
			Type:   QuestionTypeSingleChoice,
			Options: []Option{
				opt("confirmed", "Yes, confirmed", "Sí, confirmado"),
				opt("suspected", "Suspected, not confirmed", "Sospechado, sin confirmar"),
				opt("searching", "Still searching", "Todavía buscando"),
			},
			Required: true,
		},
		{
			ID:       "condition_name",
			TextEN:   "What is the name of the condition?",
			TextES:   "¿Cómo se llama la condición?",
			Type:     QuestionTypeText,
			Required: false,
		},
		{
			ID:       "years_since_onset",
			TextEN:   "How many years ago did the first symptoms appear?",
			TextES:   "¿Hace cuántos años aparecieron los primeros síntomas?",
			Type:     QuestionTypeScale,
			Min:      0,
			Max:      100,
			Required: true,
		},
		{
			ID:     "main_symptoms",
			TextEN: "Which symptoms affect you the most?",
			TextES: "¿Qué síntomas te afectan más?",
			Type:   QuestionTypeMultiChoice,
			Options: []Option{
				opt("seizures", "Seizures", "Crisis"),
				opt("pain", "Pain", "Dolor"),
				opt("fatigue", "Fatigue", "Fatiga"),
				opt("mobility", "Mobility problems", "Problemas de movilidad"),
				opt("cognitive", "Memory or concentration", "Memoria o concentración"),
				opt("digestive", "Digestive problems", "Problemas digestivos"),
				opt("other", "Other", "Otro"),
			},
			Required: true,
		},
		{
			ID:     "care_team",
			TextEN: "Who is part of your care team?",
			TextES: "¿Quién forma parte de tu equipo de cuidado?",
			Type:   QuestionTypeMultiChoice,
			Options: []Option{
				opt("gp", "Family doctor", "Médico de familia"),
				opt("specialist", "Specialist", "Especialista"),
				opt("nurse", "Nurse", "Enfermería"),
				opt("therapist", "Therapist", "Terapeuta"),
				opt("patient_association", "Patient association", "Asociación de pacientes"),
				opt("none", "Nobody yet", "Nadie todavía"),
			},
			Required: true,
		},
		{
			ID:     "biggest_needs",
			TextEN: "What do you need most right now?",
			TextES: "¿Qué es lo que más necesitas ahora?",
			Type:   QuestionTypeMultiChoice,
			Options: []Option{
				opt("information", "Information about my condition", "Información sobre mi condición"),
				opt("specialist_access", "Access to a specialist", "Acceso a un especialista"),
				opt("treatment", "Treatment options", "Opciones de tratamiento"),
				opt("emotional_support", "Emotional support", "Apoyo emocional"),
				opt("financial_support", "Financial support", "Apoyo económico"),
				opt("community", "Other patients like me", "Otros pacientes como yo"),
			},
			Required: true,
		},
		{
			ID:       "quality_of_life",
			TextEN:   "From 1 to 10, how is your quality of life?",
			TextES:   "Del 1 al 10, ¿cómo es tu calidad de vida?",
			Type:     QuestionTypeScale,
			Min:      1,
			Max:      10,
			Required: true,
		},
		{
			ID:     "daily_impact",
			TextEN: "How much does the condition limit your daily life?",
			TextES: "¿Cuánto limita la condición tu vida diaria?",
			Type:   QuestionTypeSingleChoice,
			Options: []Option{
				opt("none", "Not at all", "Nada"),
				opt("mild", "A little", "Un poco"),
				opt("moderate", "Moderately", "Moderadamente"),
				opt("severe", "A lot", "Mucho"),
			},
			Required: true,
		},
		{
			ID:       "wants_contact",
			TextEN:   "Would you like a care coordinator to contact you?",
			TextES:   "¿Quieres que un coordinador de cuidado te contacte?",
			Type:     QuestionTypeYesNo,
			Required: true,
		},
		{
			ID:       "additional_notes",
			TextEN:   "Is there anything else you want to tell us?",
			TextES:   "¿Hay algo más que quieras contarnos?",
			Type:     QuestionTypeText,
			Required: false,
		},
	}

	return &Questionnaire{questions: questions}
}

// Questions returns the questionnaire rendered in lang ("es" or English)
func (q *Questionnaire) Questions(lang string) []LocalizedQuestion {
	spanish := lang == "es"
	out := make([]LocalizedQuestion, 0, len(q.questions))
	for _, question := range q.questions {
		lq := LocalizedQuestion{
			ID:       question.ID,
			Text:     question.TextEN,
			Type:     question.Type,
			Min:      question.Min,
			Max:      question.Max,
			Required: question.Required,
		}
		if spanish {
			lq.Text = question.TextES
		}
		for _, o := range question.Options {
			label := o.TextEN
			if spanish {
				label = o.TextES
			}
			lq.Options = append(lq.Options, LocalizedOption{Value: o.Value, Label: label})
		}
		out = append(out, lq)
	}
	return out
}

// GetQuestionByID returns a question by its ID
func (q *Questionnaire) GetQuestionByID(questionID string) *Question {
	for i := range q.questions {
		if q.questions[i].ID == questionID {
			return &q.questions[i]
		}
	}
	return nil
}

// GetTotalQuestions returns the total number of questions
func (q *Questionnaire) GetTotalQuestions() int {
	return len(q.questions)
}

// ValidateAnswer checks one answer against its question
func (q *Questionnaire) ValidateAnswer(questionID, value string, values []string) error {
	question := q.GetQuestionByID(questionID)
	if question == nil {
		return fmt.Errorf("question not found: %s", questionID)
	}

	value = strings.TrimSpace(value)
	if value == "" && len(values) == 0 {
		if question.Required {
			return fmt.Errorf("response is required for question: %s", questionID)
		}
		return nil
	}

	switch question.Type {
	case QuestionTypeSingleChoice:
		if !question.hasOption(value) {
			return fmt.Errorf("invalid option %q for question: %s", value, questionID)
		}
	case QuestionTypeMultiChoice:
		if value != "" {
			values = append(values, value)
		}
		seen := make(map[string]bool, len(values))
		for _, v := range values {
			if !question.hasOption(v) {
				return fmt.Errorf("invalid option %q for question: %s", v, questionID)
			}
			if seen[v] {
				return fmt.Errorf("duplicate option %q for question: %s", v, questionID)
			}
			seen[v] = true
		}
	case QuestionTypeScale:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("response for question %s must be a whole number", questionID)
		}
		if n < question.Min || n > question.Max {
			return fmt.Errorf("response for question %s must be between %d and %d", questionID, question.Min, question.Max)
		}
	case QuestionTypeYesNo:
		if value != "yes" && value != "no" {
			return fmt.Errorf("response for question %s must be yes or no", questionID)
		}
	case QuestionTypeText:
		if len([]rune(value)) > maxTextAnswer {
			return fmt.Errorf("response for question %s exceeds %d characters", questionID, maxTextAnswer)
		}
	}

	return nil
}

// MissingRequired lists the required questions that have no answer
func (q *Questionnaire) MissingRequired(answered map[string]bool) []string {
	var missing []string
	for _, question := range q.questions {
		if question.Required && !answered[question.ID] {
			missing = append(missing, question.ID)
		}
	}
	return missing
}

func (question *Question) hasOption(value string) bool {
	for _, o := range question.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}
