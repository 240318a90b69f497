package util

import "errors"

var (
	ErrAssessmentNotFound  = errors.New("assessment not found")
	ErrProblemNotFound     = errors.New("question not found")
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrMissingLanguage     = errors.New("language_id required for code answers (no default language configured)")
	ErrNoTestCases         = errors.New("no test cases found for this question")
	ErrSourceRequired      = errors.New("source_code required")
	ErrSourceTooLarge      = errors.New("source_code exceeds the maximum allowed length")
	ErrInvalidLanguage     = errors.New("language_id must be a positive integer")
)

// IsValidation 判断错误是否应返回 400
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingLanguage) ||
		errors.Is(err, ErrNoTestCases) ||
		errors.Is(err, ErrSourceRequired) ||
		errors.Is(err, ErrSourceTooLarge) ||
		errors.Is(err, ErrInvalidLanguage)
}
