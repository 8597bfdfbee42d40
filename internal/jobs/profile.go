package jobs

// Profile is the transcription configuration snapshot submitted with a job.
// It is captured verbatim into the job row for auditability and re-submission.
type Profile struct {
	Language         string   `json:"language"`
	SpeechModel      string   `json:"speech_model"`
	SpeakerLabels    bool     `json:"speaker_labels"`
	SpeakersExpected int      `json:"speakers_expected,omitempty"`
	FilterProfanity  bool     `json:"filter_profanity"`
	RedactPII        bool     `json:"redact_pii"`
	RedactPolicies   []string `json:"redact_policies,omitempty"`
	RedactAudio      bool     `json:"redact_audio"`
	PIISubstitution  string   `json:"pii_substitution,omitempty"`
}

// DefaultRedactPolicies is the canonical PII category set for classroom
// recordings. Occupation is deliberately not redacted: it is a common
// classroom topic.
var DefaultRedactPolicies = []string{
	"medical_condition",
	"email_address",
	"phone_number",
	"banking_information",
	"credit_card_number",
	"credit_card_cvv",
	"date_of_birth",
	"person_name",
	"organization",
	"location",
}

// DefaultProfile returns the canonical transcription configuration. Callers
// may override individual fields before submission.
func DefaultProfile() Profile {
	policies := make([]string, len(DefaultRedactPolicies))
	copy(policies, DefaultRedactPolicies)

	return Profile{
		Language:        "en",
		SpeechModel:     "best",
		SpeakerLabels:   true,
		FilterProfanity: true,
		RedactPII:       true,
		RedactPolicies:  policies,
		RedactAudio:     true,
		PIISubstitution: "hash",
	}
}
