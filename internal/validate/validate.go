// Package validate provides pure input sanitization for every value that
// crosses the system boundary: free-form strings, URLs, integers, booleans,
// retention tokens, tag lists, and block patterns.
//
// Functions here never log and never touch shared state. Each returns the
// sanitized value or a typed validation error naming the offending field.
package validate

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/webrecall/webrecall/internal/errors"
)

// Field length limits.
const (
	MaxURLLength         = 2048
	MaxQueryLength       = 1000
	MaxTagLength         = 100
	MaxTagsLength        = 500
	MaxPatternLength     = 200
	MaxDescriptionLength = 1000
	MaxTitleLength       = 500

	MinPatternLength = 2
)

// sqlTokens are matched as whole words against the uppercased input.
// Covers SQL verbs, filesystem/time-attack functions, comment and terminator
// sequences, tautologies, schema introspection, and script injection.
var sqlTokens = []string{
	"SELECT", "INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER",
	"TRUNCATE", "EXEC", "UNION", "JOIN", "MERGE",
	"LOAD_FILE", "INTO OUTFILE", "SLEEP", "BENCHMARK", "WAITFOR DELAY",
	"--", "/*", "*/", "#",
	"OR 1=1", "AND 1=1",
	"INFORMATION_SCHEMA", "SYSOBJECTS", "SYSCOLUMNS",
	"<SCRIPT", "JAVASCRIPT:", "ONERROR=", "ONLOAD=",
}

// stackedQueryRe catches statement chaining like "; DROP TABLE x".
var stackedQueryRe = regexp.MustCompile(`;\s*(SELECT|INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|EXEC)`)

// wordBoundaryRes precompiles whole-word matchers for alphanumeric tokens.
// Symbol sequences ("--", "/*", "<SCRIPT") are matched by substring instead,
// since \b does not anchor at non-word characters.
var wordBoundaryRes = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(sqlTokens))
	for _, tok := range sqlTokens {
		if isWordToken(tok) {
			m[tok] = regexp.MustCompile(`\b` + regexp.QuoteMeta(tok) + `\b`)
		}
	}
	return m
}()

func isWordToken(tok string) bool {
	for _, r := range tok {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == ' ' || r == '=') {
			return false
		}
	}
	return true
}

// adultWords are rejected as case-insensitive substrings of URLs.
var adultWords = []string{
	"porn", "xxx", "sex", "adult", "nude", "naked", "escort", "erotic",
	"fetish", "hentai", "camgirl", "stripper",
}

// tagRe is the allowed shape of a single tag.
var tagRe = regexp.MustCompile(`^[A-Za-z0-9 _-]+$`)

// controlChars that are rejected anywhere in an input. Tab, CR, and LF are
// tolerated in free-form strings but not in URLs.
const forbiddenControls = "\x00\x01\x02\x03\x04\x05\x06\x07\x08\x0b\x0c\x0e\x0f" +
	"\x10\x11\x12\x13\x14\x15\x16\x17\x18\x19\x1a\x1b\x1c\x1d\x1e\x1f\x7f"

// String sanitizes a free-form string input. The field name is used in the
// returned error; maxLen of 0 means no length limit.
func String(field, value string, maxLen int) (string, error) {
	if strings.ContainsAny(value, forbiddenControls) {
		return "", errors.Validation(field, "contains control characters")
	}
	if maxLen > 0 && len(value) > maxLen {
		return "", errors.Validation(field, fmt.Sprintf("exceeds maximum length %d", maxLen))
	}

	upper := strings.ToUpper(value)
	for _, tok := range sqlTokens {
		if re, ok := wordBoundaryRes[tok]; ok {
			if re.MatchString(upper) {
				return "", errors.Validation(field, fmt.Sprintf("contains forbidden token %q", tok))
			}
			continue
		}
		if strings.Contains(upper, tok) {
			return "", errors.Validation(field, fmt.Sprintf("contains forbidden token %q", tok))
		}
	}
	if stackedQueryRe.MatchString(upper) {
		return "", errors.Validation(field, "contains stacked query")
	}

	return value, nil
}

// Query validates a search query.
func Query(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.Validation("query", "must not be empty")
	}
	return String("query", value, MaxQueryLength)
}

// Title validates a page title.
func Title(value string) (string, error) {
	return String("title", value, MaxTitleLength)
}

// Description validates a block-pattern description.
func Description(value string) (string, error) {
	return String("description", value, MaxDescriptionLength)
}

// URL validates and normalizes a URL string.
func URL(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.Validation("url", "must not be empty")
	}
	if strings.ContainsAny(value, forbiddenControls+"\t\r\n") {
		return "", errors.Validation("url", "contains control characters")
	}
	if _, err := String("url", value, MaxURLLength); err != nil {
		return "", err
	}

	lower := strings.ToLower(value)
	for _, word := range adultWords {
		if strings.Contains(lower, word) {
			return "", errors.Validation("url", "matches restricted content list")
		}
	}

	if strings.Contains(value, "://") {
		u, err := url.Parse(value)
		if err != nil {
			return "", errors.Validation("url", "malformed")
		}
		if u.Scheme == "" || u.Host == "" {
			return "", errors.Validation("url", "requires scheme://host structure")
		}
		upperQuery := strings.ToUpper(u.RawQuery)
		for _, verb := range []string{"SELECT", "INSERT", "UPDATE", "DELETE", "DROP", "UNION", "EXEC"} {
			if re := wordBoundaryRes[verb]; re != nil && re.MatchString(upperQuery) {
				return "", errors.Validation("url", "query parameters contain SQL verbs")
			}
		}
	}

	return value, nil
}

// Integer parses a string or numeric input and enforces [min, max].
func Integer(field string, value any, min, max int) (int, error) {
	var n int
	switch v := value.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		n = int(v)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, errors.Validation(field, "not an integer")
		}
		n = parsed
	default:
		return 0, errors.Validation(field, "not an integer")
	}
	if n < min || n > max {
		return 0, errors.Validation(field, fmt.Sprintf("must be in [%d,%d]", min, max))
	}
	return n, nil
}

// Boolean accepts the tolerant forms true/1/yes/on and false/0/no/off.
func Boolean(field string, value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		}
	case float64:
		if v == 1 {
			return true, nil
		}
		if v == 0 {
			return false, nil
		}
	}
	return false, errors.Validation(field, "not a boolean")
}

// Retention policies accepted by ingestion.
const (
	RetentionPermanent   = "permanent"
	RetentionSessionOnly = "session_only"
	RetentionThirtyDays  = "30_days"
)

// Retention validates a retention token against the whitelist.
func Retention(value string) (string, error) {
	switch strings.TrimSpace(value) {
	case "":
		return RetentionPermanent, nil
	case RetentionPermanent:
		return RetentionPermanent, nil
	case RetentionSessionOnly:
		return RetentionSessionOnly, nil
	case RetentionThirtyDays:
		return RetentionThirtyDays, nil
	default:
		return "", errors.Validation("retention_policy",
			"must be one of permanent, session_only, 30_days")
	}
}

// Tags validates a comma-separated tag list and returns the normalized
// elements. An empty input yields an empty slice.
func Tags(value string) ([]string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if len(value) > MaxTagsLength {
		return nil, errors.Validation("tags", fmt.Sprintf("exceeds maximum length %d", MaxTagsLength))
	}

	parts := strings.Split(value, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		tag := strings.TrimSpace(p)
		if tag == "" {
			continue
		}
		if len(tag) > MaxTagLength {
			return nil, errors.Validation("tags", fmt.Sprintf("tag %q exceeds maximum length %d", tag, MaxTagLength))
		}
		if !tagRe.MatchString(tag) {
			return nil, errors.Validation("tags", fmt.Sprintf("tag %q contains invalid characters", tag))
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// JoinTags normalizes a tag slice back to the stored comma-separated form.
func JoinTags(tags []string) string {
	return strings.Join(tags, ",")
}

// Pattern validates a blocklist pattern: "*.tld", "*kw*", or a plain host.
func Pattern(value string) (string, error) {
	value = strings.TrimSpace(value)
	if len(value) < MinPatternLength || len(value) > MaxPatternLength {
		return "", errors.Validation("pattern",
			fmt.Sprintf("length must be in [%d,%d]", MinPatternLength, MaxPatternLength))
	}
	if _, err := String("pattern", value, MaxPatternLength); err != nil {
		return "", err
	}

	switch {
	case strings.HasPrefix(value, "*."):
		if len(value) < 3 {
			return "", errors.Validation("pattern", "suffix pattern requires a TLD")
		}
	case strings.HasPrefix(value, "*") && strings.HasSuffix(value, "*"):
		if len(strings.Trim(value, "*")) == 0 {
			return "", errors.Validation("pattern", "keyword pattern requires a keyword")
		}
	case strings.Contains(value, "*"):
		return "", errors.Validation("pattern", "wildcard only allowed as *.tld or *keyword*")
	}
	return value, nil
}
