package agent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/duckchat/duckchat/internal/observability"
)

var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "ATTACH",
	"PRAGMA", "CREATE", "TRUNCATE", "COPY", "ANALYZE", "EXECUTE",
	"EXEC", "CALL", "MERGE", "REPLACE",
}

var (
	forbiddenPatterns = compileKeywordPatterns(forbiddenKeywords)
	fromPattern       = regexp.MustCompile(`\bFROM\s+(\w+)`)
	joinPattern       = regexp.MustCompile(`\bJOIN\s+(\w+)`)
	ctePattern        = regexp.MustCompile(`(?:\bWITH\s+|,\s*)(\w+)\s+AS\s*\(`)
	limitPattern      = regexp.MustCompile(`\bLIMIT\s+(\d+)`)
)

func compileKeywordPatterns(keywords []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(keywords))
	for _, keyword := range keywords {
		patterns = append(patterns, regexp.MustCompile(`\b`+keyword+`\b`))
	}
	return patterns
}

// Validator applies a fixed lexical safety policy to candidate SQL. It is a
// bounded scan, not a parser: forbidden keywords inside string literals or
// aliases can false-positive, and column names are deliberately left to the
// row store's own execution errors.
type Validator struct {
	Table string
}

// Validate returns the accepted (possibly limit-normalized) query, or the
// first policy violation. Checks are terminal on first failure.
func (v Validator) Validate(candidateSQL string) (string, *WorkflowError) {
	validated, wfErr := v.check(candidateSQL)
	if wfErr != nil {
		observability.IncrementValidationRejection(string(wfErr.Kind))
		return "", wfErr
	}
	return validated, nil
}

func (v Validator) check(candidateSQL string) (string, *WorkflowError) {
	trimmed := strings.TrimSpace(candidateSQL)
	if trimmed == "" {
		return "", errEmptyQuery()
	}

	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return "", errDisallowedStatement()
	}

	for i, pattern := range forbiddenPatterns {
		if pattern.MatchString(upper) {
			return "", errForbiddenKeyword(forbiddenKeywords[i])
		}
	}

	if wfErr := v.checkTableReferences(upper); wfErr != nil {
		return "", wfErr
	}

	limitMatch := limitPattern.FindStringSubmatch(upper)
	if limitMatch == nil {
		return stripTrailingSemicolons(trimmed) + " LIMIT " + strconv.Itoa(maxRowLimit), nil
	}
	limit, err := strconv.Atoi(limitMatch[1])
	if err != nil || limit > maxRowLimit {
		return "", errLimitExceeded(limit)
	}
	return trimmed, nil
}

// checkTableReferences scans FROM/JOIN targets in the upper-cased query and
// rejects anything that is neither the permitted base relation nor a CTE
// declared in the same statement.
func (v Validator) checkTableReferences(upper string) *WorkflowError {
	allowed := map[string]bool{strings.ToUpper(v.Table): true}
	for _, match := range ctePattern.FindAllStringSubmatch(upper, -1) {
		allowed[match[1]] = true
	}

	refs := fromPattern.FindAllStringSubmatch(upper, -1)
	refs = append(refs, joinPattern.FindAllStringSubmatch(upper, -1)...)
	for _, match := range refs {
		if !allowed[match[1]] {
			return errInvalidTableReference(match[1], v.Table)
		}
	}
	return nil
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
