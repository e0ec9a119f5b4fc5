package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckAllowsCleanQuery(t *testing.T) {
	err := Check("what's the weather in Paris?", map[string]any{"location": "Paris"})
	assert.NoError(t, err)
}

func TestCheckRejectsDropTable(t *testing.T) {
	err := Check("robert'); DROP TABLE students;--", nil)
	assert.Error(t, err)
	var rejected *RejectedError
	assert.ErrorAs(t, err, &rejected)
}

func TestCheckRejectsShellMetacharacters(t *testing.T) {
	err := Check("list files `rm -rf /`", nil)
	assert.Error(t, err)
}

func TestCheckRejectsPathTraversal(t *testing.T) {
	err := Check("read ../../etc/passwd", nil)
	assert.Error(t, err)
}

func TestCheckInspectsFieldValuesToo(t *testing.T) {
	err := Check("benign query", map[string]any{"path": "../../secret"})
	assert.Error(t, err)
}

func TestCheckIgnoresNonStringFields(t *testing.T) {
	err := Check("benign", map[string]any{"count": 5, "nested": map[string]any{"x": 1}})
	assert.NoError(t, err)
}

func TestStripCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", Strip("  a   b\tc  \n"))
}
