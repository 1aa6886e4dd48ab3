// Package crm provides the client for the upstream CRM REST API: credential
// management, authenticated requests and exhaustive pagination over the
// Leads, Deals and Activities resources.
package crm

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Record is a loosely-typed CRM record. The upstream API guarantees nothing
// about which fields are present on any given record, so every accessor takes
// a chain of candidate field names and treats absence as the zero value.
type Record map[string]any

// Activity is a Call or Task record tagged with its originating sub-resource.
type Activity struct {
	Record
	Type string
}

// ID returns the record's opaque identifier.
func (r Record) ID() string {
	return r.Str("id")
}

// Str returns the first non-empty string value among the candidate field
// names. Object-valued fields (e.g. Owner lookups) resolve to their "name"
// member. Numbers are formatted back to strings.
func (r Record) Str(names ...string) string {
	for _, name := range names {
		value, ok := r[name]
		if !ok || value == nil {
			continue
		}

		switch typed := value.(type) {
		case string:
			if typed != "" {
				return typed
			}
		case map[string]any:
			if name, ok := typed["name"].(string); ok && name != "" {
				return name
			}
		case float64:
			return strconv.FormatFloat(typed, 'f', -1, 64)
		case json.Number:
			return typed.String()
		case bool:
			return strconv.FormatBool(typed)
		}
	}
	return ""
}

// RefID resolves a lookup reference to the referenced record's id. Lookup
// fields arrive either as objects with an "id" member or as bare id strings.
func (r Record) RefID(names ...string) string {
	for _, name := range names {
		value, ok := r[name]
		if !ok || value == nil {
			continue
		}

		switch typed := value.(type) {
		case map[string]any:
			if id, ok := typed["id"].(string); ok && id != "" {
				return id
			}
		case string:
			if typed != "" {
				return typed
			}
		}
	}
	return ""
}

// Float returns the first numeric value among the candidate field names.
func (r Record) Float(names ...string) (float64, bool) {
	for _, name := range names {
		value, ok := r[name]
		if !ok || value == nil {
			continue
		}

		switch typed := value.(type) {
		case float64:
			return typed, true
		case json.Number:
			if f, err := typed.Float64(); err == nil {
				return f, true
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// Bool reports whether the first present candidate field holds a truthy
// value ("true", "yes", "si", "sí" or a boolean true).
func (r Record) Bool(names ...string) bool {
	for _, name := range names {
		value, ok := r[name]
		if !ok || value == nil {
			continue
		}

		switch typed := value.(type) {
		case bool:
			return typed
		case string:
			switch strings.ToLower(strings.TrimSpace(typed)) {
			case "true", "yes", "si", "sí", "1":
				return true
			case "":
				continue
			default:
				return false
			}
		}
	}
	return false
}

// timeLayouts are the timestamp formats the CRM API emits.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time returns the first parseable timestamp among the candidate field names.
func (r Record) Time(names ...string) (time.Time, bool) {
	for _, name := range names {
		value, ok := r[name]
		if !ok || value == nil {
			continue
		}

		switch typed := value.(type) {
		case string:
			if t, ok := ParseTime(typed); ok {
				return t, true
			}
		case time.Time:
			return typed, true
		}
	}
	return time.Time{}, false
}

// ParseTime parses a CRM timestamp string.
func ParseTime(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Well-known field-name chains. The upstream CRM is a customized Spanish
// deployment: several fields exist under both the canonical API name and a
// localized (in one case misspelled) custom name. The order of each chain is
// load-bearing: the localized custom field wins over the stock one.
var (
	FieldsDevelopment   = []string{"Desarrollo", "Desarollo", "Development"}
	FieldsCreatedTime   = []string{"Created_Time", "Fecha_de_creacion"}
	FieldsLeadStatus    = []string{"Lead_Status", "Estatus", "Status"}
	FieldsStage         = []string{"Etapa", "Stage"}
	FieldsSource        = []string{"Lead_Source", "Fuente"}
	FieldsOwner         = []string{"Owner", "Owner_Name", "Propietario"}
	FieldsDiscardReason = []string{"Motivo_de_descarte", "Discard_Reason"}
	FieldsClosingDate   = []string{"Fecha_de_cierre", "Closing_Date"}
	FieldsAmount        = []string{"Amount", "Monto"}
	FieldsFirstContact  = []string{"Primer_contacto", "First_Contact"}
	FieldsContactDelta  = []string{"Tiempo_entre_contacto", "Time_Between_Contact"}
	FieldsVisitFlag     = []string{"Visita_agendada", "Visit_Scheduled", "Cita"}
	FieldsEmail         = []string{"Email", "Correo"}
	FieldsFullName      = []string{"Full_Name", "Nombre_completo", "Last_Name"}
	FieldsPhone         = []string{"Phone", "Mobile", "Telefono"}
	FieldsRelatedTo     = []string{"What_Id", "Se_relaciona_con", "Who_Id"}
)
