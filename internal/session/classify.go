// ABOUTME: Pure classifier mapping raw identity-provider errors to a stable taxonomy
// ABOUTME: Ordered substring/code rules, first match wins, raw-message fallback

package session

import (
	"strings"

	"github.com/2389/parley/internal/identity"
)

// ErrorKind identifies one case of the classified error taxonomy. The set is
// closed: provider wording changes under us, the taxonomy does not.
type ErrorKind string

const (
	KindEmailUnconfirmed   ErrorKind = "email_unconfirmed"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindUserNotFound       ErrorKind = "user_not_found"
	KindAlreadyRegistered  ErrorKind = "already_registered"
	KindWeakPassword       ErrorKind = "weak_password"
	KindRateLimited        ErrorKind = "rate_limited"
	KindNetwork            ErrorKind = "network_error"
	KindOther              ErrorKind = "other"
	KindUnknown            ErrorKind = "unknown"

	// KindMissingCredentials is produced by local validation before any
	// provider call; it never goes through the classifier rules.
	KindMissingCredentials ErrorKind = "missing_credentials"
)

// AuthError is a classified authentication failure. Sentence is safe to show
// to the user; Raw preserves the provider error for diagnostics.
type AuthError struct {
	Kind     ErrorKind
	Sentence string
	Raw      error
}

func (e *AuthError) Error() string { return e.Sentence }

func (e *AuthError) Unwrap() error { return e.Raw }

// errMissingCredentials is the local validation failure for empty fields.
func errMissingCredentials() *AuthError {
	return &AuthError{
		Kind:     KindMissingCredentials,
		Sentence: "Email and password are required.",
	}
}

// classifyRule matches a raw provider error by case-insensitive message
// substring or by exact machine code.
type classifyRule struct {
	kind       ErrorKind
	substrings []string
	code       string
	sentence   string
}

// loginRules are evaluated in order; the first match wins. The substrings
// track the wording GoTrue has used across versions.
var loginRules = []classifyRule{
	{
		kind:       KindEmailUnconfirmed,
		substrings: []string{"email not confirmed", "confirm"},
		sentence:   "Please confirm your email before logging in. Check your inbox for a confirmation link.",
	},
	{
		kind:       KindInvalidCredentials,
		substrings: []string{"invalid login credentials"},
		code:       "invalid_credentials",
		sentence:   "Invalid email or password. Please try again.",
	},
	{
		kind:       KindUserNotFound,
		substrings: []string{"user not found"},
		code:       "user_not_found",
		sentence:   "No account found with this email. Please sign up first.",
	},
	{
		kind:       KindRateLimited,
		substrings: []string{"rate limit"},
		code:       "rate_limit_exceeded",
		sentence:   "Too many login attempts. Please wait and try again later.",
	},
	{
		kind:       KindNetwork,
		substrings: []string{"network"},
		code:       "network_error",
		sentence:   "Network error. Please check your connection and try again.",
	},
}

var signupRules = []classifyRule{
	{
		kind:       KindAlreadyRegistered,
		substrings: []string{"email already registered", "already registered"},
		code:       "user_already_registered",
		sentence:   "This email is already registered. Please log in or use a different email.",
	},
	{
		kind:       KindWeakPassword,
		substrings: []string{"weak password"},
		code:       "weak_password",
		sentence:   "Password is too weak. Please use a stronger password.",
	},
	{
		kind:       KindRateLimited,
		substrings: []string{"rate limit"},
		code:       "rate_limit_exceeded",
		sentence:   "Too many signup attempts. Please wait and try again later.",
	},
	{
		kind:       KindNetwork,
		substrings: []string{"network"},
		code:       "network_error",
		sentence:   "Network error. Please check your connection and try again.",
	},
}

const (
	loginUnknownSentence  = "An unknown error occurred. Please try again."
	signupUnknownSentence = "Signup failed. Please try again."
)

// ClassifyLogin maps a raw provider error from a sign-in attempt to the
// login taxonomy.
func ClassifyLogin(raw *identity.ProviderError) *AuthError {
	return classify(loginRules, raw, loginUnknownSentence)
}

// ClassifySignup maps a raw provider error from a sign-up attempt to the
// signup taxonomy.
func ClassifySignup(raw *identity.ProviderError) *AuthError {
	return classify(signupRules, raw, signupUnknownSentence)
}

// classify is total: every input maps to exactly one taxonomy case. Errors
// matching no rule fall back to the raw message when present, else to the
// unknown sentence.
func classify(rules []classifyRule, raw *identity.ProviderError, unknownSentence string) *AuthError {
	if raw == nil {
		return &AuthError{Kind: KindUnknown, Sentence: unknownSentence}
	}

	msg := strings.ToLower(raw.Message)
	for _, rule := range rules {
		if matchRule(rule, msg, raw.Code) {
			return &AuthError{Kind: rule.kind, Sentence: rule.sentence, Raw: raw}
		}
	}

	if raw.Message != "" {
		return &AuthError{Kind: KindOther, Sentence: raw.Message, Raw: raw}
	}
	return &AuthError{Kind: KindUnknown, Sentence: unknownSentence, Raw: raw}
}

func matchRule(rule classifyRule, lowerMsg, code string) bool {
	for _, sub := range rule.substrings {
		if lowerMsg != "" && strings.Contains(lowerMsg, sub) {
			return true
		}
	}
	return rule.code != "" && code == rule.code
}
