package assemblyai

// SubmitRequest is the POST /v2/transcript body. Field names follow the
// provider's wire format.
type SubmitRequest struct {
	AudioURL          string   `json:"audio_url"`
	LanguageCode      string   `json:"language_code,omitempty"`
	SpeechModel       string   `json:"speech_model,omitempty"`
	SpeakerLabels     bool     `json:"speaker_labels,omitempty"`
	SpeakersExpected  int      `json:"speakers_expected,omitempty"`
	FilterProfanity   bool     `json:"filter_profanity,omitempty"`
	RedactPII         bool     `json:"redact_pii,omitempty"`
	RedactPIIAudio    bool     `json:"redact_pii_audio,omitempty"`
	RedactPIIPolicies []string `json:"redact_pii_policies,omitempty"`
	RedactPIISub      string   `json:"redact_pii_sub,omitempty"`

	WebhookURL             string `json:"webhook_url,omitempty"`
	WebhookAuthHeaderName  string `json:"webhook_auth_header_name,omitempty"`
	WebhookAuthHeaderValue string `json:"webhook_auth_header_value,omitempty"`
}

// Utterance is one diarized span from the provider. Start and End are
// milliseconds from the beginning of the audio.
type Utterance struct {
	Speaker    string  `json:"speaker"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Transcript is the provider's transcript resource. Most fields are empty
// until the job completes.
type Transcript struct {
	ID            string      `json:"id"`
	Status        string      `json:"status"` // queued, processing, completed, error
	Text          *string     `json:"text"`
	Utterances    []Utterance `json:"utterances"`
	AudioDuration float64     `json:"audio_duration"` // seconds
	LanguageCode  string      `json:"language_code"`
	Confidence    float64     `json:"confidence"`
	Error         string      `json:"error,omitempty"`
}

// TranscriptPage is one page of GET /v2/transcript, newest first.
type TranscriptPage struct {
	Transcripts []TranscriptListItem `json:"transcripts"`
	PageDetails PageDetails          `json:"page_details"`
}

// TranscriptListItem is the abbreviated transcript in list responses.
type TranscriptListItem struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// PageDetails carries the provider's pagination cursors.
type PageDetails struct {
	Limit       int    `json:"limit"`
	ResultCount int    `json:"result_count"`
	NextURL     string `json:"next_url,omitempty"`
	PrevURL     string `json:"prev_url,omitempty"`
}

// NextBeforeID returns the cursor for the following page, or "" when this
// page is the last.
func (p *TranscriptPage) NextBeforeID() string {
	if len(p.Transcripts) == 0 || p.PageDetails.PrevURL == "" {
		return ""
	}
	return p.Transcripts[len(p.Transcripts)-1].ID
}
