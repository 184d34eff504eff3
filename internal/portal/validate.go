package portal

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxNameLen  = 255
	maxNotesLen = 10000
	maxURLLen   = 2048
	maxSlugLen  = 50
)

// NewSlug produces a fresh submission slug of the form rr-YYYYMMDD-xxxxx.
// The slug doubles as the applicant's initial credential for a draft, so the
// random tail comes from a cryptographically secure source.
func NewSlug(now time.Time) string {
	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err) // crypto/rand failure means the process cannot run safely
	}
	return fmt.Sprintf("rr-%s-%s", now.UTC().Format("20060102"), hex.EncodeToString(b[:])[:5])
}

// ValidSlug reports whether s is a well-formed submission slug: lowercase
// alphanumeric with inner hyphens, at most 50 characters.
func ValidSlug(s string) bool {
	if s == "" || len(s) > maxSlugLen {
		return false
	}
	if strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") {
		return false
	}
	for _, c := range s {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return false
		}
	}
	return true
}

// ValidEmail reports whether s parses as a bare RFC 5322 address.
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// CreateSubmissionInput is what an applicant supplies when opening a dossier.
type CreateSubmissionInput struct {
	SubmitterName  string
	SubmitterEmail string
	Organization   string
	Department     string
	Notes          string
}

// Validate checks the input for creation. Email is optional at creation time
// but must be well formed when present; Submit enforces its presence later.
func (in *CreateSubmissionInput) Validate() error {
	if strings.TrimSpace(in.SubmitterName) == "" {
		return fmt.Errorf("%w: submitter_name is required", ErrInvalidInput)
	}
	if len(in.SubmitterName) > maxNameLen {
		return fmt.Errorf("%w: submitter_name exceeds %d characters", ErrInvalidInput, maxNameLen)
	}
	if strings.TrimSpace(in.Organization) == "" {
		return fmt.Errorf("%w: organization is required", ErrInvalidInput)
	}
	if len(in.Organization) > maxNameLen {
		return fmt.Errorf("%w: organization exceeds %d characters", ErrInvalidInput, maxNameLen)
	}
	if in.SubmitterEmail != "" && !ValidEmail(in.SubmitterEmail) {
		return fmt.Errorf("%w: submitter_email is not a valid address", ErrInvalidInput)
	}
	if len(in.Department) > maxNameLen {
		return fmt.Errorf("%w: department exceeds %d characters", ErrInvalidInput, maxNameLen)
	}
	if len(in.Notes) > maxNotesLen {
		return fmt.Errorf("%w: notes exceed %d characters", ErrInvalidInput, maxNotesLen)
	}
	return nil
}

// ValidateExternalURL checks a formal-law reference URL. References should
// point at wetten.overheid.nl; other hosts are accepted but logged upstream.
func ValidateExternalURL(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return fmt.Errorf("%w: external_url is required", ErrInvalidInput)
	}
	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
		return fmt.Errorf("%w: external_url must be http(s)", ErrInvalidInput)
	}
	if len(url) > maxURLLen {
		return fmt.Errorf("%w: external_url exceeds %d characters", ErrInvalidInput, maxURLLen)
	}
	return nil
}

// allowedMimeTypes is the upload whitelist. HTML and XML are deliberately
// absent so a stored file can never be served as a script-capable page.
var allowedMimeTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-powerpoint":                                     true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"application/vnd.oasis.opendocument.text":                                   true,
	"application/rtf": true,
	"text/plain":      true,
	"text/markdown":   true,
	"text/csv":        true,
}

// dangerousExtensions lists extensions that could execute on a misconfigured
// host. Checked both as final extension and as an inner double extension
// (report.php.pdf).
var dangerousExtensions = []string{
	".php", ".phtml", ".php3", ".php4", ".php5", ".php7", ".phps",
	".asp", ".aspx", ".jsp", ".jspx", ".cgi", ".pl", ".py", ".pyc", ".pyo",
	".rb", ".erb",
	".exe", ".bat", ".cmd", ".com", ".msi", ".dll",
	".sh", ".bash", ".zsh", ".ksh",
	".js", ".jsx", ".ts", ".tsx", ".mjs",
	".htaccess", ".htpasswd",
	".jar", ".war", ".ear", ".class",
}

// ValidateFileUpload checks size, MIME type, and filename against the upload
// policy.
func ValidateFileUpload(filename, mimeType string, size, maxSize int64) error {
	if size > maxSize {
		return fmt.Errorf("%w: %d bytes over the %d byte limit", ErrFileTooLarge, size, maxSize)
	}
	if !allowedMimeTypes[mimeType] {
		return fmt.Errorf("%w: mime type %q is not accepted", ErrInvalidInput, mimeType)
	}
	lower := strings.ToLower(filename)
	for _, ext := range dangerousExtensions {
		if strings.HasSuffix(lower, ext) || strings.Contains(lower, ext+".") {
			return fmt.Errorf("%w: filename carries a blocked extension %s", ErrInvalidInput, ext)
		}
	}
	return nil
}

// SanitizeFilename strips path components and control characters from a
// client-supplied filename, defusing traversal attempts before the name ever
// reaches the blob store.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			// drop control characters
		case r == ':', r == '*', r == '?', r == '"', r == '<', r == '>', r == '|':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), ". ")
	if out == "" {
		return "unnamed"
	}
	if len(out) > 255 {
		// Keep the tail so the extension survives, but never cut a rune in
		// half.
		cut := len(out) - 255
		for cut < len(out) && !utf8.RuneStart(out[cut]) {
			cut++
		}
		out = out[cut:]
	}
	return out
}
