package model

import (
	"strings"
	"time"
)

// Analysis is the structured result returned by the reasoning service.
type Analysis struct {
	SyndromeName          string   `json:"syndromeName"`
	TriageLevel           string   `json:"triageLevel"` // e.g. Rojo, Naranja, Amarillo, Verde, Azul
	Reasoning             string   `json:"reasoning"`
	DifferentialDiagnoses []string `json:"differentialDiagnoses"`
	ImmediateManagement   []string `json:"immediateManagement"`
	RecommendedExams      []string `json:"recommendedExams"`
	RedFlags              []string `json:"redFlags"`
}

// TriageColor maps a free-text triage level to a display color.
// Matching is by substring, so "Rojo (Emergencia)" maps to red.
func TriageColor(level string) string {
	switch {
	case level == "":
		return "neutral"
	case strings.Contains(level, "Rojo"), strings.Contains(level, "Emergencia"):
		return "red"
	case strings.Contains(level, "Naranja"):
		return "orange"
	case strings.Contains(level, "Amarillo"):
		return "yellow"
	default:
		return "green"
	}
}

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ChatMessage is one turn in a follow-up chat transcript.
type ChatMessage struct {
	Role  Role      `json:"role"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
	Error bool      `json:"error,omitempty"`
}
