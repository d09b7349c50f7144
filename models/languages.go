package models

// AutoDetect is the language hint that asks the model to detect the language.
const AutoDetect = "auto"

// SupportedLanguageCodes are the languages offered for audio transcription,
// in display order.
var SupportedLanguageCodes = []string{
	"en", "es", "fr", "de", "it", "pt", "ru", "ja", "ko", "zh", "ar",
	"hi", "th", "vi", "nl", "tr", "pl", "sv", "da", "no", "fi",
}
