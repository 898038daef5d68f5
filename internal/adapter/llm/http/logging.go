package http

import (
	"fmt"
	"regexp"
)

// MaxLoggedResponseChars caps how much response text may reach a log line,
// so source code and secrets never land in log aggregators wholesale.
const MaxLoggedResponseChars = 200

// TruncateForLogging shortens a response string for logging, appending the
// original length when truncated.
func TruncateForLogging(response string) string {
	if len(response) <= MaxLoggedResponseChars {
		return response
	}
	return response[:MaxLoggedResponseChars] + fmt.Sprintf("... [truncated, total length=%d bytes]", len(response))
}

var secretParamRes = []*regexp.Regexp{
	regexp.MustCompile(`key=[^&"\s]+`),
	regexp.MustCompile(`apiKey=[^&"\s]+`),
	regexp.MustCompile(`api_key=[^&"\s]+`),
	regexp.MustCompile(`token=[^&"\s]+`),
	regexp.MustCompile(`access_token=[^&"\s]+`),
}

var secretParamNames = []string{"key", "apiKey", "api_key", "token", "access_token"}

// RedactURLSecrets redacts API keys and tokens appearing as URL query
// parameters in error messages, so a failed call can be logged without
// leaking credentials.
func RedactURLSecrets(text string) string {
	if text == "" {
		return text
	}
	for i, re := range secretParamRes {
		text = re.ReplaceAllString(text, secretParamNames[i]+"=[REDACTED]")
	}
	return text
}
