package scanning

import "strings"

// Labels the system prompt asks the model to emit
const (
	labelName         = "Medication Name"
	labelDosage       = "Dosage"
	labelDosageForm   = "Dosage Form"
	labelInstructions = "Instructions"
)

// parseLabels reads "Label: value" and "- Label: value" lines into a lookup.
// Lines without a colon or with an empty label are skipped. An empty value is kept.
// Later occurrences of a label replace earlier ones.
func parseLabels(rawText string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(rawText, "\n") {
		label, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		label = strings.TrimSpace(label)
		label = strings.TrimSpace(strings.TrimPrefix(label, "- "))
		if label == "" {
			continue
		}
		fields[label] = strings.TrimSpace(value)
	}
	return fields
}

// ParseDraft maps the model's labelled lines onto a MedicationDraft.
// It never fails: anything it cannot match is left empty.
func ParseDraft(rawText string) MedicationDraft {
	fields := parseLabels(rawText)
	return MedicationDraft{
		Name:         fields[labelName],
		DosageAmount: fields[labelDosage],
		DosageForm:   fields[labelDosageForm],
		Instructions: fields[labelInstructions],
	}
}
