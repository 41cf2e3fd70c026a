package tracking

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
)

const (
	// SourceSeizureTracker identifies imports in the seizure tracker export format
	SourceSeizureTracker = "seizure_tracker"
	// SourceGeneric identifies imports of a generic entries array
	SourceGeneric = "generic"

	notVisited = "Not Visited"
)

// seizureTrigger maps a boolean flag field of a seizure export to its label
type seizureTrigger struct {
	field string
	label string
}

var seizureTriggers = []seizureTrigger{
	{field: "trigger_missed_meds", label: "Missed medication"},
	{field: "trigger_sleep", label: "Lack of sleep"},
	{field: "trigger_stress", label: "Stress"},
	{field: "trigger_illness", label: "Illness"},
	{field: "trigger_fever", label: "Fever"},
	{field: "trigger_alcohol", label: "Alcohol"},
	{field: "trigger_lights", label: "Flashing lights"},
	{field: "trigger_hormonal", label: "Hormonal changes"},
	{field: "trigger_overheated", label: "Overheated"},
	{field: "trigger_dehydration", label: "Dehydration"},
	{field: "trigger_missed_meal", label: "Missed meal"},
}

var leadingNumber = regexp.MustCompile(`^\s*[-+]?(\d+\.?\d*|\.\d+)`)

// ParseImport detects the format of a raw import payload and normalizes it into a tracking record.
// Entries without a parseable date are dropped. The result's entries are sorted newest first.
// ConditionType and PatientID are left for the caller.
func ParseImport(raw []byte, hint string) (*model.TrackingRecord, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", ErrUnsupportedFormat)
	}

	doc := gjson.ParseBytes(raw)

	var record *model.TrackingRecord
	switch {
	case doc.IsObject() && doc.Get("Seizures").IsArray():
		record = parseSeizureTracker(doc)
	case doc.IsObject() && doc.Get("entries").IsArray():
		record = parseGeneric(doc.Get("entries"), doc.Get("medications"), hint)
	case doc.IsArray():
		record = parseGeneric(doc, gjson.Result{}, hint)
	default:
		return nil, fmt.Errorf("%w: expected a Seizures array, an entries array or a list", ErrUnsupportedFormat)
	}

	SortEntries(record.Entries)
	return record, nil
}

func parseSeizureTracker(doc gjson.Result) *model.TrackingRecord {
	record := &model.TrackingRecord{
		Entries:     []model.TrackingEntry{},
		Medications: []model.Medication{},
		Metadata:    model.ImportMetadata{Source: SourceSeizureTracker},
	}

	if info := doc.Get("Info"); info.IsObject() {
		fields := info.Map()
		record.Metadata.PatientName = field(fields, "Name", "name", "patient_name", "PatientName").String()
		record.Metadata.Version = field(fields, "Version", "version", "app_version").String()
	}

	for _, seizure := range doc.Get("Seizures").Array() {
		if entry, ok := parseSeizure(seizure); ok {
			record.Entries = append(record.Entries, entry)
		}
	}

	for _, med := range doc.Get("Medications").Array() {
		if m, ok := parseSeizureMedication(med); ok {
			record.Medications = append(record.Medications, m)
		}
	}

	return record
}

func parseSeizure(v gjson.Result) (model.TrackingEntry, bool) {
	if !v.IsObject() {
		return model.TrackingEntry{}, false
	}
	fields := v.Map()

	date, ok := parseDateValue(field(fields, "date_time", "Date_Time", "DateTime", "date", "Date"))
	if !ok {
		return model.TrackingEntry{}, false
	}

	entry := model.TrackingEntry{
		Date:     date,
		Type:     field(fields, "seizure_type", "Seizure_Type", "type").String(),
		Triggers: []string{},
		Notes:    field(fields, "notes", "Notes", "description").String(),
	}

	hr, hasHr := fields["length_hr"]
	min, hasMin := fields["length_min"]
	sec, hasSec := fields["length_sec"]
	if hasHr || hasMin || hasSec {
		duration := hr.Float()*3600 + min.Float()*60 + sec.Float()
		entry.Duration = &duration
	}

	entry.Severity = severityValue(field(fields, "severity", "intensity"))

	for _, trigger := range seizureTriggers {
		if isFlagSet(fields[trigger.field]) {
			entry.Triggers = append(entry.Triggers, trigger.label)
		}
	}
	if isFlagSet(fields["trigger_other"]) {
		if text := strings.TrimSpace(fields["trigger_other_description"].String()); text != "" {
			entry.Triggers = append(entry.Triggers, text)
		}
	}

	postictal := field(fields, "postictal", "Postictal")
	location := field(fields, "location", "Location")
	if isPresent(postictal) || isPresent(location) {
		st := &model.SeizureTrackerFields{}
		if isPresent(postictal) {
			st.Postictal = json.RawMessage(postictal.Raw)
		}
		if isPresent(location) {
			st.Location = json.RawMessage(location.Raw)
		}
		entry.CustomFields.SeizureTracker = st
	}

	return entry, true
}

func parseSeizureMedication(v gjson.Result) (model.Medication, bool) {
	if !v.IsObject() {
		return model.Medication{}, false
	}
	fields := v.Map()

	name := strings.TrimSpace(field(fields, "Medication Name", "Medication", "Name", "medicationName", "name").String())
	if name == "" {
		return model.Medication{}, false
	}

	dose := field(fields, "Dose", "Dosage", "dose", "dosage")
	med := model.Medication{
		Name:        name,
		Dose:        dose.String(),
		DoseValue:   parseDose(dose),
		DoseUnit:    field(fields, "Unit", "Dose Unit", "unit", "doseUnit").String(),
		Frequency:   field(fields, "Frequency", "frequency").String(),
		StartDate:   field(fields, "Start Date", "startDate").String(),
		EndDate:     field(fields, "End Date", "endDate").String(),
		SideEffects: splitSideEffects(field(fields, "Side Effects", "sideEffects")),
		Notes:       field(fields, "Notes", "notes").String(),
	}

	return med, true
}

func parseGeneric(entries, medications gjson.Result, hint string) *model.TrackingRecord {
	source := strings.TrimSpace(hint)
	if source == "" {
		source = SourceGeneric
	}

	record := &model.TrackingRecord{
		Entries:     []model.TrackingEntry{},
		Medications: []model.Medication{},
		Metadata:    model.ImportMetadata{Source: source},
	}

	for _, v := range entries.Array() {
		if entry, ok := parseGenericEntry(v); ok {
			record.Entries = append(record.Entries, entry)
		}
	}

	for _, v := range medications.Array() {
		if med, ok := parseGenericMedication(v); ok {
			record.Medications = append(record.Medications, med)
		}
	}

	return record
}

// parseGenericMedication reads a medication field by field so that numeric doses and
// comma separated side effects survive. Only entries without a name are dropped.
func parseGenericMedication(v gjson.Result) (model.Medication, bool) {
	if !v.IsObject() {
		return model.Medication{}, false
	}
	fields := v.Map()

	name := strings.TrimSpace(field(fields, "name", "medicationName", "Name").String())
	if name == "" {
		return model.Medication{}, false
	}

	dose := field(fields, "dose", "dosage")
	doseValue := numberValue(fields["doseValue"])
	if doseValue == nil {
		doseValue = parseDose(dose)
	}

	med := model.Medication{
		Name:        name,
		Dose:        dose.String(),
		DoseValue:   doseValue,
		DoseUnit:    field(fields, "doseUnit", "unit").String(),
		Frequency:   fields["frequency"].String(),
		StartDate:   fields["startDate"].String(),
		EndDate:     fields["endDate"].String(),
		SideEffects: stringList(fields["sideEffects"]),
		Notes:       fields["notes"].String(),
	}

	return med, true
}

func parseGenericEntry(v gjson.Result) (model.TrackingEntry, bool) {
	if !v.IsObject() {
		return model.TrackingEntry{}, false
	}
	fields := v.Map()

	date, ok := parseDateValue(fields["date"])
	if !ok {
		return model.TrackingEntry{}, false
	}

	entry := model.TrackingEntry{
		Date:         date,
		Type:         fields["type"].String(),
		Duration:     numberValue(fields["duration"]),
		Severity:     severityValue(fields["severity"]),
		Value:        numberValue(fields["value"]),
		Triggers:     stringList(fields["triggers"]),
		Notes:        fields["notes"].String(),
		CustomFields: customFieldsValue(fields["customFields"]),
	}

	return entry, true
}

// customFieldsValue reads a customFields object. Objects already in the typed layout are decoded
// as such; any other object becomes the overflow map.
func customFieldsValue(v gjson.Result) model.CustomFields {
	if !v.IsObject() {
		return model.CustomFields{}
	}

	var typed model.CustomFields
	if v.Get("seizureTracker").Exists() || v.Get("extra").Exists() {
		if err := json.Unmarshal([]byte(v.Raw), &typed); err == nil {
			return typed
		}
	}

	extra := make(map[string]json.RawMessage)
	v.ForEach(func(key, value gjson.Result) bool {
		extra[key.String()] = json.RawMessage(value.Raw)
		return true
	})
	if len(extra) == 0 {
		return model.CustomFields{}
	}

	typed.Extra = extra
	return typed
}

// field returns the first present value among the given key spellings
func field(fields map[string]gjson.Result, names ...string) gjson.Result {
	for _, name := range names {
		if v, ok := fields[name]; ok && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

func isPresent(v gjson.Result) bool {
	return v.Exists() && v.Type != gjson.Null
}

func isFlagSet(v gjson.Result) bool {
	switch v.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		switch strings.ToLower(strings.TrimSpace(v.Str)) {
		case "true", "yes", "y", "1", "on":
			return true
		}
	}
	return false
}

func numberValue(v gjson.Result) *float64 {
	switch v.Type {
	case gjson.Number:
		n := v.Num
		return &n
	case gjson.String:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}

// severityValue keeps severities on the 1-10 scale and drops anything else
func severityValue(v gjson.Result) *int {
	n := numberValue(v)
	if n == nil {
		return nil
	}
	s := int(*n)
	if s < 1 || s > 10 {
		return nil
	}
	return &s
}

func stringList(v gjson.Result) []string {
	out := []string{}
	switch {
	case v.IsArray():
		for _, item := range v.Array() {
			if s := strings.TrimSpace(item.String()); s != "" {
				out = append(out, s)
			}
		}
	case v.Type == gjson.String:
		for _, part := range strings.Split(v.Str, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// parseDose reads the leading number of a dose such as "500" or "2.5 mg"
func parseDose(v gjson.Result) *float64 {
	if v.Type == gjson.Number {
		n := v.Num
		return &n
	}
	match := leadingNumber.FindString(v.String())
	if match == "" {
		return nil
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(match), 64)
	if err != nil {
		return nil
	}
	return &n
}

func splitSideEffects(v gjson.Result) []string {
	effects := stringList(v)
	return slices.DeleteFunc(effects, func(s string) bool {
		return strings.EqualFold(s, notVisited)
	})
}
