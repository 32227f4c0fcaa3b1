package ai

import "fmt"

const (
	defaultBusinessName = "the clinic"
	notProvided         = "(not provided)"
)

const systemPromptTemplate = `You are a Mongolian receptionist for %s.
Business phone: %s
Address: %s
Opening hours: %s
Services: %s
Prices: %s

Answer concisely in Mongolian. Use only the information above; if something is not listed, say so and offer the business phone.
If the user wants to book, ask for the date, time, name and phone number.`

// BuildSystemPrompt renders the receptionist prompt, substituting a fixed
// placeholder for every empty setting.
func BuildSystemPrompt(s BusinessSettings) string {
	return fmt.Sprintf(systemPromptTemplate,
		orDefault(s.Name, defaultBusinessName),
		orDefault(s.Phone, notProvided),
		orDefault(s.Address, notProvided),
		orDefault(s.Hours, notProvided),
		orDefault(s.Services, notProvided),
		orDefault(s.Prices, notProvided),
	)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
