package ai

import "context"

// AI is the external text generator. It knows nothing about Messenger or
// storage.
type AI interface {
	GetReply(
		ctx context.Context,
		systemPrompt string,
		userText string,
	) (string, error)
}

// BusinessSettings feed the system prompt. Every field is optional.
type BusinessSettings struct {
	Name     string `json:"name" bson:"name"`
	Phone    string `json:"phone" bson:"phone"`
	Address  string `json:"address" bson:"address"`
	Hours    string `json:"hours" bson:"hours"`
	Services string `json:"services" bson:"services"`
	Prices   string `json:"prices" bson:"prices"`
}

// SettingsReader returns the business settings, or zero values when none
// are stored.
type SettingsReader interface {
	GetSettings(ctx context.Context) (BusinessSettings, error)
}

// StaticSettings serves settings fixed at startup.
type StaticSettings BusinessSettings

func (s StaticSettings) GetSettings(context.Context) (BusinessSettings, error) {
	return BusinessSettings(s), nil
}
