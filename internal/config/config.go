// Package config provides configuration helpers for callbridge commands.
package config

import (
	"fmt"
	"os"
)

// Env returns the value of key, or fallback if the variable is unset or empty.
func Env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Required returns the value of key or exits with a usage hint.
// Credentials are never read from flags so they stay out of process listings.
func Required(key string) string {
	v := os.Getenv(key)
	if v == "" {
		fmt.Fprintf(os.Stderr, "Error: %s environment variable is required\n", key)
		os.Exit(1)
	}
	return v
}

// GroqAPIKey returns the Groq API key (transcription and generation).
func GroqAPIKey() string {
	return Required("GROQ_API_KEY")
}

// CartesiaAPIKey returns the Cartesia API key (speech synthesis).
func CartesiaAPIKey() string {
	return Required("CARTESIA_API_KEY")
}

// GeminiAPIKey returns the Google AI API key (document embeddings).
// Optional: an empty value disables document grounding.
func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

// TwilioAccountSID returns the Twilio account SID.
func TwilioAccountSID() string {
	return Required("TWILIO_ACCOUNT_SID")
}

// TwilioAuthToken returns the Twilio auth token.
func TwilioAuthToken() string {
	return Required("TWILIO_AUTH_TOKEN")
}

// TwilioPhoneNumber returns the caller number for outbound calls.
func TwilioPhoneNumber() string {
	return Required("TWILIO_PHONE_NUMBER")
}

// PublicHost returns the externally reachable host for TwiML stream URLs
// (e.g. an ngrok hostname). Falls back to the provided default.
func PublicHost(fallback string) string {
	return Env("PUBLIC_HOST", fallback)
}
