package agent

import (
	"regexp"
	"strings"
)

// extractSQL pulls SQL from model output using 4 strategies in order:
// 1. ```sql ... ``` code block (preferred)
// 2. ``` ... ``` generic code block containing SELECT
// 3. SELECT statement spanning multiple lines (until LIMIT, ; or end)
// 4. Single-line SELECT statement as last resort
var (
	reSelectBlock = regexp.MustCompile(`(?is)(SELECT\s+.+?FROM\s+.+?(?:LIMIT\s+\d+|;\s*$|\z))`)
	reSingleSQL   = regexp.MustCompile(`(?i)(SELECT\s+\S.+?\bFROM\b\s+\S+)`)
)

func extractSQL(text string) string {
	lower := strings.ToLower(text)
	if idx := strings.Index(lower, "```sql"); idx != -1 {
		body := strings.TrimPrefix(text[idx+len("```sql"):], "\n")
		if end := strings.Index(body, "```"); end != -1 {
			if sql := strings.TrimSpace(body[:end]); sql != "" {
				return strings.TrimSuffix(sql, ";")
			}
		}
	}

	parts := strings.Split(text, "```")
	for i := 1; i < len(parts); i += 2 {
		candidate := strings.TrimSpace(parts[i])
		// strip a language tag line (e.g. "postgres\nSELECT")
		if nl := strings.Index(candidate, "\n"); nl != -1 {
			if !strings.Contains(strings.ToUpper(candidate[:nl]), "SELECT") {
				candidate = strings.TrimSpace(candidate[nl:])
			}
		}
		if strings.HasPrefix(strings.ToUpper(candidate), "SELECT") {
			return strings.TrimSuffix(candidate, ";")
		}
	}

	if m := reSelectBlock.FindString(text); m != "" {
		candidate := strings.TrimSuffix(strings.TrimSpace(m), ";")
		if strings.Contains(strings.ToUpper(candidate), " FROM ") {
			return candidate
		}
	}

	if m := reSingleSQL.FindString(text); m != "" {
		return strings.TrimSuffix(strings.TrimSpace(m), ";")
	}
	return ""
}

// extractJSON returns the JSON object in model output: the body of a
// ```json block, else the span from the first '{' to the last '}'.
func extractJSON(text string) string {
	lower := strings.ToLower(text)
	if idx := strings.Index(lower, "```json"); idx != -1 {
		body := text[idx+len("```json"):]
		if end := strings.Index(body, "```"); end != -1 {
			return strings.TrimSpace(body[:end])
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return ""
	}
	return text[start : end+1]
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
