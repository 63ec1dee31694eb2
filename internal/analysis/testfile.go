package analysis

import "strings"

// metadataSuffixes are build/project-metadata files that are never test
// files, even when the rest of the path matches a test heuristic.
var metadataSuffixes = []string{".iml", ".bazel"}

// testSuffixes are file name endings that mark a test source file.
var testSuffixes = []string{
	"Test.kt",
	"Test.java",
	"Tests.kt",
	"Tests.java",
	"Spec.kt",
	"Spec.java",
	"_test.go",
}

// IsTestFile reports whether a repository path points at a test file.
// Pure and total: any string input yields an answer, no I/O involved.
func IsTestFile(path string) bool {
	for _, suffix := range metadataSuffixes {
		if strings.HasSuffix(path, suffix) {
			return false
		}
	}

	if strings.Contains(path, "/test/") || strings.Contains(path, "/tests/") {
		return true
	}
	if strings.Contains(path, "Test.") || strings.Contains(path, "Tests.") {
		return true
	}
	for _, suffix := range testSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}
