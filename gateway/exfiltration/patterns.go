package exfiltration

import "regexp"

// Method classifies how data leaves the system.
type Method string

const (
	MethodURLEmbedding Method = "url_embedding"
	MethodEmailCommand Method = "email_command"
	MethodAPICall      Method = "api_call"
	MethodEncoding     Method = "encoding"
)

// SensitivePattern matches sensitive data that must not appear in
// model output.
type SensitivePattern struct {
	// Name is a stable identifier, also used to build redaction tokens.
	Name string

	// Regex is the compiled regular expression.
	Regex *regexp.Regexp

	// Severity is the risk contribution in [0,1].
	Severity float64

	// Category groups patterns (credentials, infrastructure).
	Category string
}

// Indicator matches an egress channel: an instruction or mechanism that
// would carry data out.
type Indicator struct {
	Name     string
	Regex    *regexp.Regexp
	Severity float64
	Method   Method
}

// urlRegex extracts candidate URLs for per-URL analysis.
var urlRegex = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)

// suspiciousParams are query parameter names that suggest payload smuggling.
var suspiciousParams = map[string]struct{}{
	"data": {}, "token": {}, "key": {}, "secret": {},
	"password": {}, "auth": {}, "credential": {},
}

func defaultSensitivePatterns() []*SensitivePattern {
	return []*SensitivePattern{
		{
			Name:     "api_key",
			Regex:    regexp.MustCompile(`(?i)(api[\s_-]?key|apikey|api[\s_-]?secret)[\s:=]+['"]?([a-zA-Z0-9_\-]{20,})['"]?`),
			Severity: 0.95,
			Category: "credentials",
		},
		{
			Name:     "provider_key",
			Regex:    regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{16,}\b`),
			Severity: 0.95,
			Category: "credentials",
		},
		{
			Name:     "password",
			Regex:    regexp.MustCompile(`(?i)(password|passwd|pwd)[\s:=]+['"]?([^\s'"]{8,})['"]?`),
			Severity: 0.9,
			Category: "credentials",
		},
		{
			Name:     "jwt_token",
			Regex:    regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`),
			Severity: 0.95,
			Category: "credentials",
		},
		{
			Name:     "aws_key",
			Regex:    regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
			Severity: 1.0,
			Category: "credentials",
		},
		{
			Name:     "private_key",
			Regex:    regexp.MustCompile(`-----BEGIN (?:RSA |EC )?PRIVATE KEY-----`),
			Severity: 1.0,
			Category: "credentials",
		},
		{
			Name:     "database_connection",
			Regex:    regexp.MustCompile(`(?i)(mongodb|mysql|postgresql|redis)://[^\s]+`),
			Severity: 0.9,
			Category: "infrastructure",
		},
		{
			Name:     "internal_ip",
			Regex:    regexp.MustCompile(`\b(?:10\.|172\.(?:1[6-9]|2[0-9]|3[01])\.|192\.168\.)\d{1,3}\.\d{1,3}\b`),
			Severity: 0.7,
			Category: "infrastructure",
		},
	}
}

func defaultIndicators() []*Indicator {
	return []*Indicator{
		{
			Name:     "url_with_data",
			Regex:    regexp.MustCompile(`https?://[^\s]+\?[^\s]*(?:data|token|key|secret|password)=[^\s&]+`),
			Severity: 0.9,
			Method:   MethodURLEmbedding,
		},
		{
			Name:     "email_instruction",
			Regex:    regexp.MustCompile(`(?i)(send|email|forward|mail)\s+(?:this|it|the\s+\w+)\s+to\s+[\w.-]+@[\w.-]+`),
			Severity: 0.95,
			Method:   MethodEmailCommand,
		},
		{
			Name:     "webhook_call",
			Regex:    regexp.MustCompile(`(?i)(webhook|callback|notify)\s+(?:url|endpoint)[\s:]+https?://`),
			Severity: 0.85,
			Method:   MethodAPICall,
		},
		{
			Name:     "base64_encoded_url",
			Regex:    regexp.MustCompile(`(?i)base64.*https?://`),
			Severity: 0.8,
			Method:   MethodEncoding,
		},
		{
			Name:     "curl_command",
			Regex:    regexp.MustCompile(`curl\s+(?:-X\s+POST\s+)?https?://[^\s]+`),
			Severity: 0.9,
			Method:   MethodAPICall,
		},
		{
			Name:     "fetch_post",
			Regex:    regexp.MustCompile(`fetch\(['"]https?://[^'"]+['"],\s*\{[^}]*method:\s*['"]POST['"]`),
			Severity: 0.9,
			Method:   MethodAPICall,
		},
	}
}
