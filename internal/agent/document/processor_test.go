package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinPages(t *testing.T) {
	assert.Equal(t, "", JoinPages(nil))
	assert.Equal(t, "", JoinPages([]string{"", "  \n"}))
	assert.Equal(t,
		"--- Page 1 ---\nName: Jane\n--- Page 2 ---\n\n--- Page 3 ---\nDiagnosis: CP",
		JoinPages([]string{"Name: Jane", "", "Diagnosis: CP\n"}))
}
