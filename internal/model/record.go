// Package model defines the core patient intake data types.
package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Status is the lifecycle stage of a patient record.
type Status string

const (
	StatusNew     Status = "new"
	StatusPending Status = "pending"
	StatusSeen    Status = "seen"
)

// ValidStatuses are the allowed record statuses.
var ValidStatuses = map[Status]bool{
	StatusNew:     true,
	StatusPending: true,
	StatusSeen:    true,
}

// PendingOptions are the pending work labels offered by the intake form.
// Any other label is accepted as free text.
var PendingOptions = []string{
	"laboratorio",
	"evolución",
	"ecg",
	"imágenes",
	"otros estudios",
}

// Vitals holds the five vital-sign fields as entered.
type Vitals struct {
	BP   string `json:"bp"`
	HR   string `json:"hr"`
	RR   string `json:"rr"`
	Temp string `json:"temp"`
	Sat  string `json:"sat"`
}

// PatientRecord is the unit of persisted state. JSON names follow the
// browser storage format so existing backups load unchanged.
type PatientRecord struct {
	ID           string   `json:"id,omitempty"`
	Timestamp    int64    `json:"timestamp,omitempty"` // unix millis, 0 means unset
	Status       Status   `json:"status,omitempty"`
	PendingItems []string `json:"pendingItems"`

	Name      string `json:"name"`
	DNI       string `json:"dni"`
	Age       string `json:"age"`
	Gender    string `json:"gender"`
	AQX       string `json:"aqx"` // surgical history
	HT        string `json:"ht"`  // toxic habits
	AA        string `json:"aa"`  // allergies
	History   string `json:"history"`
	Vitals    Vitals `json:"vitals"`

	ChiefComplaint string `json:"chiefComplaint"`
	Symptoms       string `json:"symptoms"`
	Signs          string `json:"signs"`
	Labs           string `json:"labs"`
	Conduct        string `json:"conduct"`
	Treatments     string `json:"treatments"`

	GeneratedClinicalHistory string `json:"generatedClinicalHistory,omitempty"`
}

// NewRecord returns an empty record in the new state.
func NewRecord() PatientRecord {
	return PatientRecord{
		Status:       StatusNew,
		PendingItems: []string{},
	}
}

// Clone returns a deep copy of r.
func (r PatientRecord) Clone() PatientRecord {
	if r.PendingItems != nil {
		r.PendingItems = slices.Clone(r.PendingItems)
	}
	return r
}

// Time returns the record timestamp as a time.Time, or the zero time if unset.
func (r PatientRecord) Time() time.Time {
	if r.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(r.Timestamp)
}

// HasClinicalContent reports whether any of chief complaint, symptoms or
// signs carries text.
func (r PatientRecord) HasClinicalContent() bool {
	return strings.TrimSpace(r.ChiefComplaint) != "" ||
		strings.TrimSpace(r.Symptoms) != "" ||
		strings.TrimSpace(r.Signs) != ""
}

// fieldRefs maps editable field names to their storage.
func (r *PatientRecord) fieldRefs() map[string]*string {
	return map[string]*string{
		"name":           &r.Name,
		"dni":            &r.DNI,
		"age":            &r.Age,
		"gender":         &r.Gender,
		"aqx":            &r.AQX,
		"ht":             &r.HT,
		"aa":             &r.AA,
		"history":        &r.History,
		"vitals.bp":      &r.Vitals.BP,
		"vitals.hr":      &r.Vitals.HR,
		"vitals.rr":      &r.Vitals.RR,
		"vitals.temp":    &r.Vitals.Temp,
		"vitals.sat":     &r.Vitals.Sat,
		"chiefComplaint": &r.ChiefComplaint,
		"symptoms":       &r.Symptoms,
		"signs":          &r.Signs,
		"labs":           &r.Labs,
		"conduct":        &r.Conduct,
		"treatments":     &r.Treatments,
	}
}

// EditableFields lists the names accepted by Set, sorted.
func EditableFields() []string {
	var r PatientRecord
	names := make([]string, 0, 19)
	for k := range r.fieldRefs() {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// Set assigns one text field by its JSON name. Vital signs use a dotted
// name such as "vitals.bp".
func (r *PatientRecord) Set(field, value string) error {
	ref, ok := r.fieldRefs()[field]
	if !ok {
		return fmt.Errorf("unknown field %q", field)
	}
	*ref = value
	return nil
}

// Get returns one text field by its JSON name.
func (r *PatientRecord) Get(field string) (string, error) {
	ref, ok := r.fieldRefs()[field]
	if !ok {
		return "", fmt.Errorf("unknown field %q", field)
	}
	return *ref, nil
}
