package scanning

// SystemPrompt is the fixed instruction sent with every label to the language model.
// ParseDraft depends on the four labels it names.
const SystemPrompt = `You are a medical assistant extracting structured prescription details. Return only the following in this format:

- Medication Name:
- Dosage:
- Dosage Form:
- Instructions:`

// userPrompt wraps the OCR text in the user message
func userPrompt(rawText string) string {
	return "Text:\n" + rawText
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// labelMessages is the system+user conversation shared by chat-style providers
func labelMessages(rawText string) []chatMessage {
	return []chatMessage{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: userPrompt(rawText)},
	}
}
