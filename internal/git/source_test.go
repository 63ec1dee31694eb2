package git

import (
	"testing"

	"github.com/contriblens/contriblens/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSource() *CLISource {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewCLISource(logger)
}

func record(sha, email, date, body, files string) string {
	return recordSep + sha + fieldSep + email + fieldSep + date + fieldSep + body + fieldSep + "\n" + files
}

func TestParseLog(t *testing.T) {
	output := record(
		"a1b2c3", "alice@example.com", "2024-03-01T12:00:00+01:00",
		"Fixes IDEA-123\n\nLonger explanation.\n",
		"M\tsrc/main/Foo.kt\nA\tsrc/test/FooTest.kt\nD\told/Gone.java\n",
	) + record(
		"d4e5f6", "bob@example.com", "2024-03-03T09:30:00Z",
		"cleanup",
		"",
	)

	commits := testSource().parseLog(output)
	require.Len(t, commits, 2)

	first := commits[0]
	assert.Equal(t, "a1b2c3", first.SHA)
	assert.Equal(t, "alice@example.com", first.AuthorEmail)
	assert.Equal(t, "Fixes IDEA-123\n\nLonger explanation.", first.Message)
	assert.Equal(t, 2024, first.AuthoredAt.Year())
	require.Len(t, first.Files, 3)
	assert.Equal(t, models.ChangedFile{Path: "src/main/Foo.kt", Kind: models.ChangeModified}, first.Files[0])
	assert.Equal(t, models.ChangedFile{Path: "src/test/FooTest.kt", Kind: models.ChangeAdded}, first.Files[1])
	assert.Equal(t, models.ChangedFile{Path: "old/Gone.java", Kind: models.ChangeDeleted}, first.Files[2])

	second := commits[1]
	assert.Equal(t, "cleanup", second.Message)
	assert.Empty(t, second.Files)
}

func TestParseLogBodyWithStatusLookalike(t *testing.T) {
	// A commit body containing a line shaped like name-status output must
	// not be mistaken for a file change.
	output := record(
		"c0ffee", "carol@example.com", "2024-03-05T10:00:00Z",
		"Explain migration\n\nM\tnot/a/file.txt\n",
		"M\treal/file.go\n",
	)

	commits := testSource().parseLog(output)
	require.Len(t, commits, 1)
	require.Len(t, commits[0].Files, 1)
	assert.Equal(t, "real/file.go", commits[0].Files[0].Path)
	assert.Contains(t, commits[0].Message, "not/a/file.txt")
}

func TestParseLogRenames(t *testing.T) {
	output := record(
		"abc123", "dave@example.com", "2024-03-06T10:00:00Z",
		"move things",
		"R100\told/Name.kt\tnew/Name.kt\nC75\tbase.go\tcopy.go\n",
	)

	commits := testSource().parseLog(output)
	require.Len(t, commits, 1)
	require.Len(t, commits[0].Files, 2)
	assert.Equal(t, "new/Name.kt", commits[0].Files[0].Path)
	assert.Equal(t, models.ChangeModified, commits[0].Files[0].Kind)
	assert.Equal(t, "copy.go", commits[0].Files[1].Path)
}

func TestParseLogSkipsBadRecords(t *testing.T) {
	output := record(
		"good", "erin@example.com", "2024-03-07T10:00:00Z", "fine", "",
	) + recordSep + "garbage without separators" + record(
		"baddate", "erin@example.com", "not-a-date", "broken", "",
	)

	commits := testSource().parseLog(output)
	require.Len(t, commits, 1)
	assert.Equal(t, "good", commits[0].SHA)
}

func TestParseLogEmpty(t *testing.T) {
	assert.Empty(t, testSource().parseLog(""))
}
